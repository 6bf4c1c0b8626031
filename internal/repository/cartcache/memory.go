package cartcache

import (
	"context"
	"sync"

	"storefront-client/internal/domain"
)

type memoryCache struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
}

func NewMemory() Cache {
	return &memoryCache{carts: make(map[string]domain.Cart)}
}

func (m *memoryCache) Get(_ context.Context, profile string) (*domain.Cart, error) {
	m.mu.RLock()
	cart, ok := m.carts[profile]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	out := cart.Clone()
	return &out, nil
}

func (m *memoryCache) Set(_ context.Context, profile string, cart domain.Cart) error {
	m.mu.Lock()
	m.carts[profile] = cart.Clone()
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) Delete(_ context.Context, profile string) error {
	m.mu.Lock()
	delete(m.carts, profile)
	m.mu.Unlock()
	return nil
}
