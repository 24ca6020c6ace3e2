package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-authgate/meshgate/internal/core"

	"github.com/redis/rueidis"
)

// Compile-time interface check.
var _ core.Cache[struct{}] = (*RueidisCache[struct{}])(nil)

// RedisOptions describes how to reach Redis.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

func (o RedisOptions) clientOption(disableCache bool) rueidis.ClientOption {
	return rueidis.ClientOption{
		InitAddress:  []string{o.Addr},
		Password:     o.Password,
		SelectDB:     o.DB,
		DisableCache: disableCache,
	}
}

// RueidisCache stores JSON encoded values in Redis through rueidis.
// Suitable for multi-instance deployments where cache needs to be shared.
type RueidisCache[T any] struct {
	client    rueidis.Client
	keyPrefix string
}

// NewRueidisCache connects to Redis and verifies the connection with PING.
func NewRueidisCache[T any](ctx context.Context, opts RedisOptions) (*RueidisCache[T], error) {
	client, err := rueidis.NewClient(opts.clientOption(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RueidisCache[T]{client: client, keyPrefix: opts.KeyPrefix}, nil
}

// Get retrieves a value from Redis.
func (r *RueidisCache[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	str, err := r.client.Do(ctx, r.client.B().Get().Key(r.keyPrefix+key).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return zero, ErrCacheMiss
		}
		return zero, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	return decode[T](str)
}

// Set stores a value in Redis with TTL.
func (r *RueidisCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	encoded, err := encode(value)
	if err != nil {
		return err
	}

	cmd := r.client.B().Set().Key(r.keyPrefix + key).Value(encoded).Ex(ttl).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Delete removes a key from Redis.
func (r *RueidisCache[T]) Delete(ctx context.Context, key string) error {
	if err := r.client.Do(ctx, r.client.B().Del().Key(r.keyPrefix+key).Build()).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RueidisCache[T]) Close() error {
	r.client.Close()
	return nil
}

// Health checks if Redis is reachable.
func (r *RueidisCache[T]) Health(ctx context.Context) error {
	if err := r.client.Do(ctx, r.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// GetWithFetch retrieves a value using the cache-aside pattern.
// No stampede protection is provided; use RueidisAsideCache for that.
func (r *RueidisCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context, key string) (T, error),
) (T, error) {
	if value, err := r.Get(ctx, key); err == nil {
		return value, nil
	}
	value, err := fetchFunc(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	_ = r.Set(ctx, key, value, ttl)
	return value, nil
}

func encode[T any](value T) (string, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return string(b), nil
}

func decode[T any](s string) (T, error) {
	var value T
	if err := json.Unmarshal([]byte(s), &value); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return value, nil
}
