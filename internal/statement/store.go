package statement

import (
	"context"
	"slices"
	"sync"

	"sahara/pkg/platform/sentinel"
)

// Object is one stored statement document.
type Object struct {
	Key         string
	ContentType string
	Body        []byte
}

// Store writes statement documents. Keys are never overwritten.
type Store interface {
	Put(ctx context.Context, obj Object) error
}

// InMemory keeps statements in process.
type InMemory struct {
	mu      sync.RWMutex
	objects map[string]Object
}

func NewInMemory() *InMemory {
	return &InMemory{objects: make(map[string]Object)}
}

func (s *InMemory) Put(_ context.Context, obj Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[obj.Key]; exists {
		return sentinel.ErrAlreadyUsed
	}
	obj.Body = slices.Clone(obj.Body)
	s.objects[obj.Key] = obj
	return nil
}

// Get returns a stored statement.
func (s *InMemory) Get(_ context.Context, key string) (Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return Object{}, sentinel.ErrNotFound
	}
	obj.Body = slices.Clone(obj.Body)
	return obj, nil
}
