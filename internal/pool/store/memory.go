package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"sahara/internal/pool/models"
	id "sahara/pkg/domain"
	"sahara/pkg/platform/sentinel"
	"sahara/pkg/platform/tx"
)

// InMemory keeps pools in process. Writes register an undo with the
// surrounding memory transaction.
type InMemory struct {
	mu    sync.RWMutex
	pools map[id.PoolID]*models.Pool
}

func NewInMemory() *InMemory {
	return &InMemory{pools: make(map[id.PoolID]*models.Pool)}
}

func (s *InMemory) Create(ctx context.Context, p *models.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pools[p.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.pools[p.ID] = p.Clone()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.pools, p.ID)
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, poolID id.PoolID) (*models.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[poolID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

// ListByDisaster returns a disaster's pools, oldest first.
func (s *InMemory) ListByDisaster(_ context.Context, disaster id.DisasterID) ([]*models.Pool, error) {
	s.mu.RLock()
	var out []*models.Pool
	for _, p := range s.pools {
		if p.DisasterID == disaster {
			out = append(out, p.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *models.Pool) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

// Execute validates and mutates a copy under the store lock, then swaps it in.
func (s *InMemory) Execute(ctx context.Context, poolID id.PoolID, validate ValidateFunc, mutate MutateFunc) (*models.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.pools[poolID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	next := prev.Clone()
	if err := validate(next); err != nil {
		return nil, err
	}
	if err := mutate(next); err != nil {
		return nil, err
	}
	s.pools[poolID] = next

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.pools[poolID] = prev
	})
	return next.Clone(), nil
}

type registrationKey struct {
	pool        id.PoolID
	beneficiary id.BeneficiaryID
}

// InMemoryRegistrations keeps pool registrations in process.
type InMemoryRegistrations struct {
	mu   sync.RWMutex
	regs map[registrationKey]*models.Registration
}

func NewInMemoryRegistrations() *InMemoryRegistrations {
	return &InMemoryRegistrations{regs: make(map[registrationKey]*models.Registration)}
}

// Create returns sentinel.ErrAlreadyUsed when the beneficiary is already enrolled.
func (s *InMemoryRegistrations) Create(ctx context.Context, r *models.Registration) error {
	key := registrationKey{pool: r.PoolID, beneficiary: r.BeneficiaryID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.regs[key]; exists {
		return sentinel.ErrAlreadyUsed
	}
	cp := *r
	s.regs[key] = &cp

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.regs, key)
	})
	return nil
}

func (s *InMemoryRegistrations) Find(_ context.Context, poolID id.PoolID, beneficiaryID id.BeneficiaryID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.regs[registrationKey{pool: poolID, beneficiary: beneficiaryID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// ListByPool returns registrations in enrollment order.
func (s *InMemoryRegistrations) ListByPool(_ context.Context, poolID id.PoolID) ([]*models.Registration, error) {
	s.mu.RLock()
	var out []*models.Registration
	for key, r := range s.regs {
		if key.pool != poolID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *models.Registration) int {
		if c := a.RegisteredAt.Compare(b.RegisteredAt); c != 0 {
			return c
		}
		return strings.Compare(a.BeneficiaryID.String(), b.BeneficiaryID.String())
	})
	return out, nil
}

// MarkDistributed flips the Distributed marker. A registration that is already
// marked returns sentinel.ErrAlreadyUsed.
func (s *InMemoryRegistrations) MarkDistributed(ctx context.Context, poolID id.PoolID, beneficiaryID id.BeneficiaryID) error {
	key := registrationKey{pool: poolID, beneficiary: beneficiaryID}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.Distributed {
		return sentinel.ErrAlreadyUsed
	}
	r.Distributed = true

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if current, ok := s.regs[key]; ok {
			current.Distributed = false
		}
	})
	return nil
}
