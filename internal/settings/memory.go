package settings

import (
	"context"
	"sync"
)

// InMemory holds settings in process. Used when Redis is not configured and in tests.
type InMemory struct {
	mu       sync.RWMutex
	settings Settings
}

func NewInMemory(initial Settings) *InMemory {
	return &InMemory{settings: initial.clone()}
}

func (m *InMemory) Current(_ context.Context) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.clone(), nil
}

// Save replaces the settings after validating them.
func (m *InMemory) Save(_ context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s.clone()
	return nil
}

// SetPaused flips the platform pause switch.
func (m *InMemory) SetPaused(_ context.Context, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.Paused = paused
	return nil
}
