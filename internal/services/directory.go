package services

import (
	"context"
	"errors"
	"time"

	"github.com/go-authgate/meshgate/internal/core"

	"go.uber.org/zap"
)

const networkNameCacheKey = "tailnet:network"

// DirectorySession opens authenticated scopes against the external
// directory. The network name rarely changes, so discovery results are
// cached; access tokens are short-lived and fetched per scope.
type DirectorySession struct {
	dir      core.Directory
	cache    core.Cache[string]
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewDirectorySession(
	dir core.Directory,
	cache core.Cache[string],
	cacheTTL time.Duration,
	logger *zap.Logger,
) *DirectorySession {
	return &DirectorySession{
		dir:      dir,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.Named("directory"),
	}
}

// Directory returns the underlying client.
func (d *DirectorySession) Directory() core.Directory {
	return d.dir
}

// undiscoveredNetwork carries the degraded scope returned when discovery
// failed. It is surfaced as a fetch error so the cache never stores it.
type undiscoveredNetwork struct {
	fallback string
}

func (e *undiscoveredNetwork) Error() string {
	return "network name not discovered, using " + e.fallback
}

// Open authenticates and resolves the network scope. Only a discovered name
// is cached; a fallback scope is used for this call and discovery is retried
// on the next one.
func (d *DirectorySession) Open(ctx context.Context) (accessToken, network string, err error) {
	accessToken, err = d.dir.Authenticate(ctx)
	if err != nil {
		return "", "", err
	}

	resolve := func(ctx context.Context, _ string) (string, error) {
		name, discovered := d.dir.ResolveNetworkName(ctx, accessToken)
		if !discovered {
			return "", &undiscoveredNetwork{fallback: name}
		}
		return name, nil
	}
	if d.cache == nil || d.cacheTTL <= 0 {
		network, _ = d.dir.ResolveNetworkName(ctx, accessToken)
		return accessToken, network, nil
	}

	network, err = d.cache.GetWithFetch(ctx, networkNameCacheKey, d.cacheTTL, resolve)
	if err != nil {
		var undiscovered *undiscoveredNetwork
		if errors.As(err, &undiscovered) {
			return accessToken, undiscovered.fallback, nil
		}
		d.logger.Warn("network name cache unavailable", zap.Error(err))
		network, _ = d.dir.ResolveNetworkName(ctx, accessToken)
	}
	return accessToken, network, nil
}
