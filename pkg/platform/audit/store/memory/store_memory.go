package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	audit "sahara/pkg/platform/audit"
	"sahara/pkg/platform/tx"
)

// InMemoryStore keeps events per subject and an outbox queue for the relay worker.
type InMemoryStore struct {
	mu        sync.RWMutex
	events    map[string][]audit.Event
	outbox    []audit.OutboxEntry
	published map[uuid.UUID]bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events:    make(map[string][]audit.Event),
		published: make(map[uuid.UUID]bool),
	}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string][]audit.Event)
	s.outbox = nil
	s.published = make(map[uuid.UUID]bool)
}

func (s *InMemoryStore) Append(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	body, err := audit.EncodePayload(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.Subject] = append(s.events[event.Subject], event)
	s.outbox = append(s.outbox, audit.OutboxEntry{
		ID:        event.ID,
		Key:       audit.PartitionKey(event),
		EventType: event.Action,
		Payload:   body,
		CreatedAt: event.Timestamp,
	})

	subject := event.Subject
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if list := s.events[subject]; len(list) > 0 {
			s.events[subject] = list[:len(list)-1]
		}
		for i := len(s.outbox) - 1; i >= 0; i-- {
			if s.outbox[i].ID == event.ID {
				s.outbox = append(s.outbox[:i], s.outbox[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[subject]...), nil
}

// ListAll returns every event across subjects.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []audit.Event
	for _, list := range s.events {
		all = append(all, list...)
	}
	return all, nil
}

func (s *InMemoryStore) FetchUnpublished(_ context.Context, limit int) ([]audit.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.OutboxEntry
	for _, e := range s.outbox {
		if s.published[e.ID] {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.published[id] = true
	}
	return nil
}
