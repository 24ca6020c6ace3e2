package metrics

import (
	"context"
	"time"

	"github.com/go-authgate/meshgate/internal/core"
	"github.com/go-authgate/meshgate/internal/models"
)

// CacheWrapper provides a read-through cache for gauge data.
// It queries the database on cache miss and updates the cache for subsequent requests.
// In multi-instance deployments backed by Redis only one replica hits the
// database per TTL window.
type CacheWrapper struct {
	store core.MetricsStore
	cache core.Cache[int64]
}

// NewCacheWrapper creates a new cache wrapper for metrics.
func NewCacheWrapper(store core.MetricsStore, cache core.Cache[int64]) *CacheWrapper {
	return &CacheWrapper{
		store: store,
		cache: cache,
	}
}

// GetDevicesCount retrieves the number of devices in the given status.
func (m *CacheWrapper) GetDevicesCount(
	ctx context.Context,
	status models.DeviceStatus,
	ttl time.Duration,
) (int64, error) {
	return m.cache.GetWithFetch(
		ctx,
		"devices:"+string(status),
		ttl,
		func(ctx context.Context, _ string) (int64, error) {
			return m.store.CountDevicesByStatus(ctx, status)
		},
	)
}
