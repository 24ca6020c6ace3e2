package bootstrap

import (
	"fmt"

	"github.com/go-authgate/meshgate/internal/config"
	"github.com/go-authgate/meshgate/internal/middleware"
	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// setupRateLimiting builds the limiters the enrollment endpoint applies per
// action. Both are nil when rate limiting is disabled.
func setupRateLimiting(
	cfg *config.Config,
	auditService *services.AuditService,
	redisClient *redis.Client,
	logger *zap.Logger,
) (verify, generate *middleware.RateLimiter, err error) {
	if !cfg.EnableRateLimit {
		logger.Info("rate limiting disabled")
		return nil, nil, nil
	}

	if cfg.RateLimitStore == config.RateLimitStoreRedis {
		logger.Info("rate limiting enabled", zap.String("store", "redis (shared)"))
	} else {
		logger.Info("rate limiting enabled", zap.String("store", "memory (single instance only)"))
	}

	createLimiter := func(name string, requestsPerMinute int) (*middleware.RateLimiter, error) {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			Name:              name,
			RequestsPerMinute: requestsPerMinute,
			CleanupInterval:   cfg.RateLimitCleanupInterval,
			StoreType:         cfg.RateLimitStore,
			RedisClient:       redisClient,
			OnLimit:           auditRateLimit(auditService, name),
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter for %s: %w", name, err)
		}
		return limiter, nil
	}

	if verify, err = createLimiter("verify", cfg.VerifyRateLimit); err != nil {
		return nil, nil, err
	}
	if generate, err = createLimiter("generate", cfg.GenerateRateLimit); err != nil {
		return nil, nil, err
	}
	return verify, generate, nil
}

func auditRateLimit(auditService *services.AuditService, name string) func(c *gin.Context) {
	return func(c *gin.Context) {
		auditService.Log(c.Request.Context(), services.AuditLogEntry{
			EventType:     models.EventRateLimitExceeded,
			Severity:      models.SeverityWarning,
			ActorIP:       c.ClientIP(),
			Action:        "Rate limit exceeded",
			Details:       models.AuditDetails{"limiter": name},
			Success:       false,
			UserAgent:     c.Request.UserAgent(),
			RequestPath:   c.Request.URL.Path,
			RequestMethod: c.Request.Method,
		})
	}
}
