package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-authgate/meshgate/internal/cache"
	"github.com/go-authgate/meshgate/internal/config"
	"github.com/go-authgate/meshgate/internal/core"
	"github.com/go-authgate/meshgate/internal/metrics"

	"go.uber.org/zap"
)

const cacheKeyPrefix = "meshgate:"

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config, logger *zap.Logger) core.Recorder {
	recorder := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		logger.Info("Prometheus metrics initialized")
	} else {
		logger.Info("metrics disabled (using noop implementation)")
	}
	return recorder
}

// initializeMetricsCache returns nil when nothing would read the gauges.
func initializeMetricsCache(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
) (core.Cache[int64], error) {
	if !cfg.MetricsEnabled || !cfg.MetricsGaugeUpdateEnabled {
		return nil, nil //nolint:nilnil // metrics cache not needed in this configuration
	}
	return initializeCache[int64](ctx, cfg, logger, "metrics")
}

// initializeCache builds one named cache of the configured type. Every cache
// shares the Redis connection settings and is separated by key prefix.
func initializeCache[T any](
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	name string,
) (core.Cache[T], error) {
	if cfg.CacheInitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.CacheInitTimeout)
		defer cancel()
	}

	opts := cache.RedisOptions{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cacheKeyPrefix + name + ":",
	}

	switch cfg.CacheType {
	case config.CacheTypeRedisAside:
		c, err := cache.NewRueidisAsideCache[T](ctx, opts, cfg.CacheClientTTL, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis-aside %s cache: %w", name, err)
		}
		logger.Info("cache initialized",
			zap.String("cache", name),
			zap.String("type", config.CacheTypeRedisAside),
			zap.String("addr", cfg.RedisAddr),
			zap.Duration("client_ttl", cfg.CacheClientTTL),
		)
		return c, nil

	case config.CacheTypeRedis:
		c, err := cache.NewRueidisCache[T](ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis %s cache: %w", name, err)
		}
		logger.Info("cache initialized",
			zap.String("cache", name),
			zap.String("type", config.CacheTypeRedis),
			zap.String("addr", cfg.RedisAddr),
		)
		return c, nil

	default: // memory
		logger.Info("cache initialized",
			zap.String("cache", name),
			zap.String("type", config.CacheTypeMemory),
		)
		return cache.NewMemoryCache[T](), nil
	}
}
