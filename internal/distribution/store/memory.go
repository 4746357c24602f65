package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"sahara/internal/distribution/models"
	id "sahara/pkg/domain"
	"sahara/pkg/platform/sentinel"
	"sahara/pkg/platform/tx"
)

type allocationKey struct {
	pool        id.PoolID
	beneficiary id.BeneficiaryID
}

// InMemory keeps distributions in process with the same rollback behavior as
// the pool store.
type InMemory struct {
	mu            sync.RWMutex
	distributions map[id.DistributionID]*models.Distribution
	byAllocation  map[allocationKey]id.DistributionID
}

func NewInMemory() *InMemory {
	return &InMemory{
		distributions: make(map[id.DistributionID]*models.Distribution),
		byAllocation:  make(map[allocationKey]id.DistributionID),
	}
}

// Create returns sentinel.ErrAlreadyUsed when the id or the (pool, beneficiary)
// pair already exists.
func (s *InMemory) Create(ctx context.Context, d *models.Distribution) error {
	key := allocationKey{pool: d.PoolID, beneficiary: d.BeneficiaryID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.distributions[d.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.byAllocation[key]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.distributions[d.ID] = d.Clone()
	s.byAllocation[key] = d.ID

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.distributions, d.ID)
		delete(s.byAllocation, key)
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, distributionID id.DistributionID) (*models.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.distributions[distributionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return d.Clone(), nil
}

// ListByPool returns a pool's distributions in creation order.
func (s *InMemory) ListByPool(_ context.Context, poolID id.PoolID) ([]*models.Distribution, error) {
	s.mu.RLock()
	var out []*models.Distribution
	for _, d := range s.distributions {
		if d.PoolID == poolID {
			out = append(out, d.Clone())
		}
	}
	s.mu.RUnlock()

	sortByCreated(out)
	return out, nil
}

// ListReclaimable returns untouched distributions whose claim deadline passed
// before now, earliest deadline first.
func (s *InMemory) ListReclaimable(_ context.Context, now time.Time, limit int) ([]*models.Distribution, error) {
	s.mu.RLock()
	var out []*models.Distribution
	for _, d := range s.distributions {
		if d.IsReclaimable(now) {
			out = append(out, d.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *models.Distribution) int {
		if c := a.ClaimDeadline.Compare(*b.ClaimDeadline); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Execute validates and mutates a copy under the store lock, then swaps it in.
func (s *InMemory) Execute(ctx context.Context, distributionID id.DistributionID, validate ValidateFunc, mutate MutateFunc) (*models.Distribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.distributions[distributionID]
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
	s.distributions[distributionID] = next

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.distributions[distributionID] = prev
	})
	return next.Clone(), nil
}

func sortByCreated(out []*models.Distribution) {
	slices.SortFunc(out, func(a, b *models.Distribution) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
}
