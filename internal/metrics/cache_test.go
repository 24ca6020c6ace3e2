package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-authgate/meshgate/internal/cache"
	"github.com/go-authgate/meshgate/internal/mocks"
	"github.com/go-authgate/meshgate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestCacheWrapper_GetDevicesCount_CacheHit(t *testing.T) {
	ctx := context.Background()
	memCache := cache.NewMemoryCache[int64]()
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockMetricsStore(ctrl)
	// No expectations: if CountDevicesByStatus is called, gomock fails automatically

	wrapper := NewCacheWrapper(mockStore, memCache)
	require.NoError(t, memCache.Set(ctx, "devices:active", 42, time.Minute))

	count, err := wrapper.GetDevicesCount(ctx, models.DeviceStatusActive, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
}

func TestCacheWrapper_GetDevicesCount_CacheMiss(t *testing.T) {
	ctx := context.Background()
	memCache := cache.NewMemoryCache[int64]()
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockMetricsStore(ctrl)
	mockStore.EXPECT().
		CountDevicesByStatus(gomock.Any(), models.DeviceStatusPending).
		Return(int64(7), nil).
		Times(1)

	wrapper := NewCacheWrapper(mockStore, memCache)

	count, err := wrapper.GetDevicesCount(ctx, models.DeviceStatusPending, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)

	// Served from cache the second time
	count, err = wrapper.GetDevicesCount(ctx, models.DeviceStatusPending, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)

	cached, err := memCache.Get(ctx, "devices:pending")
	require.NoError(t, err)
	assert.Equal(t, int64(7), cached)
}

func TestCacheWrapper_GetDevicesCount_DBError(t *testing.T) {
	ctx := context.Background()
	memCache := cache.NewMemoryCache[int64]()
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockMetricsStore(ctrl)
	dbErr := errors.New("database connection failed")
	mockStore.EXPECT().
		CountDevicesByStatus(gomock.Any(), models.DeviceStatusRevoked).
		Return(int64(0), dbErr)

	wrapper := NewCacheWrapper(mockStore, memCache)

	_, err := wrapper.GetDevicesCount(ctx, models.DeviceStatusRevoked, time.Minute)
	assert.ErrorIs(t, err, dbErr)

	_, err = memCache.Get(ctx, "devices:revoked")
	assert.ErrorIs(t, err, cache.ErrCacheMiss, "errors must not be cached")
}
