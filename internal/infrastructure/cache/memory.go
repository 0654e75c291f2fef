package cache

import (
	"context"
	"sync"

	"github.com/kihuni/Hoodie-Hub/internal/domain"
)

type MemoryCache struct {
	mu sync.RWMutex
	m  map[string]*domain.Cart
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]*domain.Cart)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*domain.Cart, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cart, ok := c.m[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	cp := *cart
	cp.Items = append([]domain.CartItem(nil), cart.Items...)
	return &cp, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, cart *domain.Cart) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *cart
	cp.Items = append([]domain.CartItem(nil), cart.Items...)
	c.m[key] = &cp
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}
