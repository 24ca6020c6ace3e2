package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-authgate/meshgate/internal/core"

	"github.com/redis/rueidis/rueidisaside"
)

// Compile-time interface check.
var _ core.Cache[struct{}] = (*RueidisAsideCache[struct{}])(nil)

// RueidisAsideCache uses rueidisaside for server-assisted client-side caching.
// Redis invalidates the local copy when a key changes, and concurrent misses
// across instances are collapsed onto one fetch.
type RueidisAsideCache[T any] struct {
	client    rueidisaside.CacheAsideClient
	keyPrefix string
	clientTTL time.Duration
}

// NewRueidisAsideCache creates the cache. clientTTL bounds how long a value
// lives in the local cache; cacheSizeMB bounds the local cache per connection.
func NewRueidisAsideCache[T any](
	ctx context.Context,
	opts RedisOptions,
	clientTTL time.Duration,
	cacheSizeMB int,
) (*RueidisAsideCache[T], error) {
	clientOpt := opts.clientOption(false)
	if cacheSizeMB > 0 {
		clientOpt.CacheSizeEachConn = cacheSizeMB * 1024 * 1024
	}

	client, err := rueidisaside.NewClient(rueidisaside.ClientOption{ClientOption: clientOpt})
	if err != nil {
		return nil, fmt.Errorf("failed to create rueidisaside client: %w", err)
	}

	c := client.Client()
	if err := c.Do(ctx, c.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RueidisAsideCache[T]{
		client:    client,
		keyPrefix: opts.KeyPrefix,
		clientTTL: clientTTL,
	}, nil
}

// Get reads through the local cache without populating Redis on a miss.
func (r *RueidisAsideCache[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	val, err := r.client.Get(ctx, r.clientTTL, r.keyPrefix+key,
		func(context.Context, string) (string, error) {
			return "", ErrCacheMiss
		})
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return zero, ErrCacheMiss
		}
		return zero, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if val == "" {
		return zero, ErrCacheMiss
	}
	return decode[T](val)
}

// GetWithFetch populates Redis from fetchFunc on a miss. rueidisaside takes
// a distributed lock so only one caller fetches.
func (r *RueidisAsideCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context, key string) (T, error),
) (T, error) {
	val, err := r.client.Get(ctx, ttl, r.keyPrefix+key,
		func(ctx context.Context, _ string) (string, error) {
			value, err := fetchFunc(ctx, key)
			if err != nil {
				return "", err
			}
			return encode(value)
		})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to get with fetch: %w", err)
	}
	return decode[T](val)
}

// Set stores a value in Redis with TTL.
func (r *RueidisAsideCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	encoded, err := encode(value)
	if err != nil {
		return err
	}

	c := r.client.Client()
	cmd := c.B().Set().Key(r.keyPrefix + key).Value(encoded).Ex(ttl).Build()
	if err := c.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Delete removes a key, which also invalidates every client-side copy.
func (r *RueidisAsideCache[T]) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.keyPrefix+key)
}

// Close closes the Redis connection.
func (r *RueidisAsideCache[T]) Close() error {
	r.client.Close()
	return nil
}

// Health checks if Redis is reachable.
func (r *RueidisAsideCache[T]) Health(ctx context.Context) error {
	c := r.client.Client()
	if err := c.Do(ctx, c.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
