package session

import (
	"context"
	"sync"

	"storefront-client/internal/domain"
)

type memoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewMemory returns a process-local store; sessions die with the process.
func NewMemory() Repository {
	return &memoryRepo{sessions: make(map[string]domain.Session)}
}

func (r *memoryRepo) Get(_ context.Context, profile string) (*domain.Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[profile]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return &s, nil
}

func (r *memoryRepo) Save(_ context.Context, profile string, s domain.Session) error {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	r.mu.Lock()
	r.sessions[profile] = s
	r.mu.Unlock()
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, profile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[profile]; !ok {
		return domain.ErrNotFound
	}
	delete(r.sessions, profile)
	return nil
}
