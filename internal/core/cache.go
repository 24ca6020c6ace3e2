package core

import (
	"context"
	"time"
)

// Cache[T] is the key-value cache behind user profiles, the resolved
// network name and the device gauge counts. Implementations live in
// internal/cache (memory, Redis, Redis with client-side caching).
type Cache[T any] interface {
	// Get returns cache.ErrCacheMiss for absent or expired keys.
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// GetWithFetch is read-through: on a miss fetchFunc loads the value and
	// the result is stored for ttl. Fetch errors are returned and not cached.
	GetWithFetch(
		ctx context.Context,
		key string,
		ttl time.Duration,
		fetchFunc func(ctx context.Context, key string) (T, error),
	) (T, error)

	// Health reports backend reachability for the health endpoint.
	Health(ctx context.Context) error
	Close() error
}
