package aggregate

import (
	"context"
	"sync"

	id "sahara/pkg/domain"
	"sahara/pkg/platform/tx"
	"sahara/pkg/requestcontext"
)

type InMemory struct {
	mu     sync.Mutex
	scopes map[string]*Stats
}

func NewInMemory() *InMemory {
	return &InMemory{scopes: make(map[string]*Stats)}
}

func (s *InMemory) Apply(ctx context.Context, disaster id.DisasterID, d Delta) error {
	if d.IsZero() {
		return nil
	}
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	disasterStats := s.scope(DisasterScope(disaster))
	platformStats := s.scope(PlatformScope)
	appliedDisaster := disasterStats.Apply(d, now)
	appliedPlatform := platformStats.Apply(d, now)

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		disasterStats.revert(appliedDisaster)
		platformStats.revert(appliedPlatform)
	})
	return nil
}

func (s *InMemory) Disaster(_ context.Context, disaster id.DisasterID) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.scope(DisasterScope(disaster))
	return &cp, nil
}

func (s *InMemory) Platform(_ context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.scope(PlatformScope)
	return &cp, nil
}

// scope returns the row for key, creating a zero row. Caller holds mu.
func (s *InMemory) scope(key string) *Stats {
	st, ok := s.scopes[key]
	if !ok {
		st = &Stats{Scope: key}
		s.scopes[key] = st
	}
	return st
}
