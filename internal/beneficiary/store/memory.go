package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"sahara/internal/beneficiary/models"
	id "sahara/pkg/domain"
	"sahara/pkg/platform/sentinel"
	"sahara/pkg/platform/tx"
	"sahara/pkg/requestcontext"
)

type identityKey struct {
	authority id.ActorID
	disaster  id.DisasterID
}

// InMemory keeps beneficiaries in process. Every write registers an undo with the
// surrounding memory transaction.
type InMemory struct {
	mu         sync.RWMutex
	records    map[id.BeneficiaryID]*models.Beneficiary
	byIdentity map[identityKey]id.BeneficiaryID
}

func NewInMemory() *InMemory {
	return &InMemory{
		records:    make(map[id.BeneficiaryID]*models.Beneficiary),
		byIdentity: make(map[identityKey]id.BeneficiaryID),
	}
}

func (s *InMemory) Create(ctx context.Context, b *models.Beneficiary) error {
	key := identityKey{authority: b.Authority, disaster: b.DisasterID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byIdentity[key]; taken {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.records[b.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.records[b.ID] = b.Clone()
	s.byIdentity[key] = b.ID

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.records, b.ID)
		delete(s.byIdentity, key)
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, beneficiaryID id.BeneficiaryID) (*models.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.records[beneficiaryID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return b.Clone(), nil
}

// ListByDisaster returns matching records ordered by registration time.
func (s *InMemory) ListByDisaster(_ context.Context, disaster id.DisasterID, f Filter) ([]*models.Beneficiary, error) {
	s.mu.RLock()
	var out []*models.Beneficiary
	for _, b := range s.records {
		if b.DisasterID != disaster {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, b.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *models.Beneficiary) int {
		if c := a.RegisteredAt.Compare(b.RegisteredAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	if len(out) > f.limit() {
		out = out[:f.limit()]
	}
	return out, nil
}

// Execute validates and mutates a copy under the store lock, then swaps it in.
func (s *InMemory) Execute(ctx context.Context, beneficiaryID id.BeneficiaryID, validate ValidateFunc, mutate MutateFunc) (*models.Beneficiary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.records[beneficiaryID]
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
	s.records[beneficiaryID] = next

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		restored := prev.Clone()
		// AddReceived may have run from another transaction since.
		if current, ok := s.records[beneficiaryID]; ok {
			restored.TotalReceived = current.TotalReceived
		}
		s.records[beneficiaryID] = restored
	})
	return next.Clone(), nil
}

// AddReceived is an atomic checked add on TotalReceived.
func (s *InMemory) AddReceived(ctx context.Context, beneficiaryID id.BeneficiaryID, amount uint64) error {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.records[beneficiaryID]
	if !ok {
		return sentinel.ErrNotFound
	}
	prevUpdated := b.UpdatedAt
	if err := b.AddReceived(amount, now); err != nil {
		return err
	}

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if current, ok := s.records[beneficiaryID]; ok {
			current.TotalReceived -= amount
			current.UpdatedAt = prevUpdated
		}
	})
	return nil
}
