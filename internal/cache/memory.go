package cache

import (
	"context"
	"sync"
	"time"

	"github.com/go-authgate/meshgate/internal/core"

	"golang.org/x/sync/singleflight"
)

type cacheItem[T any] struct {
	value     T
	expiresAt time.Time
}

// Compile-time interface check.
var _ core.Cache[struct{}] = (*MemoryCache[struct{}])(nil)

// MemoryCache is an in-process cache with lazy expiration. Concurrent misses
// on the same key share one fetch. Suitable for single-instance deployments.
type MemoryCache[T any] struct {
	mu    sync.RWMutex
	items map[string]cacheItem[T]
	group singleflight.Group
	now   func() time.Time
}

// NewMemoryCache creates a new memory cache instance.
func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{
		items: make(map[string]cacheItem[T]),
		now:   time.Now,
	}
}

// Get retrieves a value from cache.
func (m *MemoryCache[T]) Get(_ context.Context, key string) (T, error) {
	m.mu.RLock()
	item, exists := m.items[key]
	m.mu.RUnlock()

	if !exists || !m.now().Before(item.expiresAt) {
		var zero T
		return zero, ErrCacheMiss
	}
	return item.value, nil
}

// Set stores a value in cache with TTL.
func (m *MemoryCache[T]) Set(_ context.Context, key string, value T, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = cacheItem[T]{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

// Delete removes a key from cache.
func (m *MemoryCache[T]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// Close drops every entry.
func (m *MemoryCache[T]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]cacheItem[T])
	return nil
}

// Health always succeeds for the memory cache.
func (m *MemoryCache[T]) Health(context.Context) error {
	return nil
}

// GetWithFetch returns the cached value or loads it with fetchFunc.
// Failed fetches are not cached.
func (m *MemoryCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context, key string) (T, error),
) (T, error) {
	if value, err := m.Get(ctx, key); err == nil {
		return value, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		value, err := fetchFunc(ctx, key)
		if err != nil {
			return nil, err
		}
		_ = m.Set(ctx, key, value, ttl)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Purge removes expired entries and returns how many were dropped.
func (m *MemoryCache[T]) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, item := range m.items {
		if !now.Before(item.expiresAt) {
			delete(m.items, key)
			removed++
		}
	}
	return removed
}
