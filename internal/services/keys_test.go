package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-authgate/meshgate/internal/cache"
	"github.com/go-authgate/meshgate/internal/mocks"
	"github.com/go-authgate/meshgate/internal/tailnet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func TestKeyResolver_Precedence(t *testing.T) {
	s := setupTestStore(t)
	users := NewUserService(s, nil, 0, zap.NewNop())
	withKey := createTestOrg(t, s, "tskey-tenant")
	withoutKey := createTestOrg(t, s, "")

	r := NewKeyResolver(users, nil, "tskey-default", []string{"tag:employee"}, false, zap.NewNop())
	ctx := context.Background()

	got, err := r.Resolve(ctx, withKey.ID, "tskey-explicit", "")
	require.NoError(t, err)
	assert.Equal(t, "tskey-explicit", got.Key)
	assert.Equal(t, KeySourceExplicit, got.Source)
	assert.Equal(t, []string{"tag:corp"}, got.Tags)
	assert.Equal(t, "engineering", got.Group)

	got, err = r.Resolve(ctx, withKey.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, KeySourceTenant, got.Source)
	assert.Equal(t, withKey.Name, got.TenantName)

	got, err = r.Resolve(ctx, withoutKey.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, "tskey-default", got.Key)
	assert.Equal(t, KeySourceDefault, got.Source)

	got, err = r.Resolve(ctx, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"tag:employee"}, got.Tags)
}

func TestKeyResolver_NoKey(t *testing.T) {
	s := setupTestStore(t)
	users := NewUserService(s, nil, 0, zap.NewNop())
	org := createTestOrg(t, s, "")

	r := NewKeyResolver(users, nil, "", nil, true, zap.NewNop())
	_, err := r.Resolve(context.Background(), org.ID, "", "")
	require.ErrorIs(t, err, ErrNoAuthKey)
	assert.Contains(t, err.Error(), org.ID)
}

func TestKeyResolver_IssueFailureJoinsCause(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	s := setupTestStore(t)
	users := NewUserService(s, nil, 0, zap.NewNop())
	session := NewDirectorySession(dir, nil, 0, zap.NewNop())

	dir.EXPECT().Authenticate(gomock.Any()).Return("", tailnet.ErrUpstreamAuth)

	r := NewKeyResolver(users, session, "", []string{"tag:employee"}, true, zap.NewNop())
	_, err := r.Resolve(context.Background(), "", "", "meshgate: Laptop")
	assert.ErrorIs(t, err, ErrNoAuthKey)
	assert.ErrorIs(t, err, tailnet.ErrUpstreamAuth)
}

func TestDirectorySession_CachesNetworkName(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	mockCache := mocks.NewMockCache[string](ctrl)

	dir.EXPECT().Authenticate(gomock.Any()).Return("access", nil).Times(2)
	gomock.InOrder(
		mockCache.EXPECT().
			GetWithFetch(gomock.Any(), networkNameCacheKey, gomock.Any(), gomock.Any()).
			DoAndReturn(callFetchFn[string]),
		mockCache.EXPECT().
			GetWithFetch(gomock.Any(), networkNameCacheKey, gomock.Any(), gomock.Any()).
			Return("example.com", nil),
	)
	dir.EXPECT().ResolveNetworkName(gomock.Any(), "access").Return("example.com", true).Times(1)

	session := NewDirectorySession(dir, mockCache, time.Minute, zap.NewNop())
	for range 2 {
		token, network, err := session.Open(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "access", token)
		assert.Equal(t, "example.com", network)
	}
}

func TestDirectorySession_CacheErrorFallsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	mockCache := mocks.NewMockCache[string](ctrl)

	dir.EXPECT().Authenticate(gomock.Any()).Return("access", nil)
	mockCache.EXPECT().GetWithFetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", errors.New("cache down"))
	dir.EXPECT().ResolveNetworkName(gomock.Any(), "access").Return("-", true)

	_, network, err := NewDirectorySession(dir, mockCache, time.Minute, zap.NewNop()).Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "-", network)
}

func TestDirectorySession_FallbackScopeIsNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)

	dir.EXPECT().Authenticate(gomock.Any()).Return("access", nil).Times(3)
	gomock.InOrder(
		dir.EXPECT().ResolveNetworkName(gomock.Any(), "access").Return(tailnet.DefaultNetwork, false),
		dir.EXPECT().ResolveNetworkName(gomock.Any(), "access").Return("corp.example", true),
	)

	session := NewDirectorySession(dir, cache.NewMemoryCache[string](), time.Minute, zap.NewNop())
	ctx := context.Background()

	_, network, err := session.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, tailnet.DefaultNetwork, network)

	// Discovery is retried, and the discovered name is then served from cache.
	for range 2 {
		_, network, err = session.Open(ctx)
		require.NoError(t, err)
		assert.Equal(t, "corp.example", network)
	}
}
