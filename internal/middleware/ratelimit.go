package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-authgate/meshgate/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterRedis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// RateLimitConfig holds the configuration for one named limiter.
type RateLimitConfig struct {
	// Name separates the counters of different limiters sharing a store.
	Name              string
	RequestsPerMinute int
	CleanupInterval   time.Duration // memory store only

	// StoreType is config.RateLimitStoreMemory or config.RateLimitStoreRedis.
	StoreType   string
	RedisClient *redis.Client

	// OnLimit runs before the 429 response is written, e.g. to audit.
	OnLimit func(c *gin.Context)
	Logger  *zap.Logger
}

// RateLimiter limits requests per client IP over a one minute window.
type RateLimiter struct {
	name    string
	limiter *limiter.Limiter
	onLimit func(c *gin.Context)
	logger  *zap.Logger
}

// NewRateLimiter creates a limiter backed by memory or a shared Redis client.
func NewRateLimiter(cfg RateLimitConfig) (*RateLimiter, error) {
	if cfg.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("rate limit %q: requests per minute must be positive", cfg.Name)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	rate := limiter.Rate{
		Period: time.Minute,
		Limit:  int64(cfg.RequestsPerMinute),
	}

	var store limiter.Store
	switch cfg.StoreType {
	case config.RateLimitStoreRedis:
		if cfg.RedisClient == nil {
			return nil, errors.New("redis rate limit store requires a redis client")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cfg.RedisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		var err error
		store, err = limiterRedis.NewStoreWithOptions(cfg.RedisClient, limiter.StoreOptions{
			Prefix:          "ratelimit:" + cfg.Name,
			CleanUpInterval: cfg.CleanupInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}
	default:
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          "ratelimit:" + cfg.Name,
			CleanUpInterval: cfg.CleanupInterval,
		})
	}

	return &RateLimiter{
		name:    cfg.Name,
		limiter: limiter.New(store, rate),
		onLimit: cfg.OnLimit,
		logger:  cfg.Logger.Named("ratelimit"),
	}, nil
}

func (r *RateLimiter) reached(c *gin.Context) {
	if r.onLimit != nil {
		r.onLimit(c)
	}
	r.logger.Warn("rate limit exceeded",
		zap.String("limiter", r.name),
		zap.String("client_ip", c.ClientIP()),
	)
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error": "too many requests, please try again later",
	})
}

// Handler limits every request on the route.
func (r *RateLimiter) Handler() gin.HandlerFunc {
	return mgin.NewMiddleware(r.limiter, mgin.WithLimitReachedHandler(r.reached))
}

// Allow counts one request from the caller and reports whether it may
// proceed. When it may not, the 429 response has already been written. Store
// failures let the request through.
func (r *RateLimiter) Allow(c *gin.Context) bool {
	lctx, err := r.limiter.Get(c.Request.Context(), c.ClientIP())
	if err != nil {
		r.logger.Error("rate limit store failed", zap.String("limiter", r.name), zap.Error(err))
		return true
	}

	c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

	if lctx.Reached {
		r.reached(c)
		return false
	}
	return true
}
