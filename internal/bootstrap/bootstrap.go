package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-authgate/meshgate/internal/config"
	"github.com/go-authgate/meshgate/internal/core"
	"github.com/go-authgate/meshgate/internal/middleware"
	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/services"
	"github.com/go-authgate/meshgate/internal/store"
	"github.com/go-authgate/meshgate/internal/token"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config
	Logger *zap.Logger

	// Core infrastructure
	DB                   *store.Store
	MetricsRecorder      core.Recorder
	MetricsCache         core.Cache[int64]
	UserCache            core.Cache[models.User]
	NetworkNameCache     core.Cache[string]
	RateLimitRedisClient *redis.Client
	Directory            core.Directory // nil when no Tailscale credentials are set

	// Services
	AuditService      *services.AuditService
	UserService       *services.UserService
	DirectorySession  *services.DirectorySession
	KeyResolver       *services.KeyResolver
	Notifier          *services.DeviceNotifier
	EnrollmentService *services.EnrollmentService
	ReconcileService  *services.ReconcileService
	StatusMonitor     *services.StatusMonitor
	DeviceService     *services.DeviceService
	TokenProvider     *token.LocalTokenProvider

	// HTTP
	VerifyLimiter   *middleware.RateLimiter
	GenerateLimiter *middleware.RateLimiter
	Router          *gin.Engine
	Server          *http.Server
}

// New validates cfg and builds everything below the HTTP layer. CLI commands
// that only need services use it directly and must call Close.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Application, error) {
	app := &Application{
		Config: cfg,
		Logger: logger,
	}

	// Phase 1: Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	// Phase 3: Initialize business layer
	app.initializeBusinessLayer()

	return app, nil
}

// Run initializes and starts the application and blocks until shutdown.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	app, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Phase 4: Initialize HTTP layer
	if err := app.initializeHTTPLayer(ctx); err != nil {
		_ = app.Close()
		return err
	}

	// Phase 5: Start server with graceful shutdown
	return app.startWithGracefulShutdown()
}

// initializeInfrastructure sets up database, metrics, caches, Redis and the
// Tailscale directory client
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error
	cfg := app.Config

	// Database
	app.DB, err = initializeDatabase(ctx, cfg, app.Logger)
	if err != nil {
		return err
	}

	// Metrics
	app.MetricsRecorder = initializeMetrics(cfg, app.Logger)
	app.MetricsCache, err = initializeMetricsCache(ctx, cfg, app.Logger)
	if err != nil {
		return err
	}

	// Caches used by the business layer
	app.UserCache, err = initializeCache[models.User](ctx, cfg, app.Logger, "users")
	if err != nil {
		return err
	}
	app.NetworkNameCache, err = initializeCache[string](ctx, cfg, app.Logger, "network")
	if err != nil {
		return err
	}

	// Redis (for rate limiting)
	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(ctx, cfg, app.Logger)
	if err != nil {
		return err
	}

	// Tailscale directory
	app.Directory, err = initializeDirectory(cfg, app.Logger, app.MetricsRecorder)
	return err
}

// initializeBusinessLayer sets up services
func (app *Application) initializeBusinessLayer() {
	cfg := app.Config

	// Audit service (required by other services)
	app.AuditService = services.NewAuditService(
		app.DB,
		app.Logger,
		cfg.EnableAuditLogging,
		cfg.AuditLogBufferSize,
	)

	app.initializeServices()
}

// initializeHTTPLayer sets up rate limiters, handlers, router, and server
func (app *Application) initializeHTTPLayer(_ context.Context) error {
	var err error
	app.VerifyLimiter, app.GenerateLimiter, err = setupRateLimiting(
		app.Config,
		app.AuditService,
		app.RateLimitRedisClient,
		app.Logger,
	)
	if err != nil {
		return err
	}

	app.Router = app.setupRouter()
	app.Server = createHTTPServer(app.Config, app.Router)
	return nil
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() error {
	m := graceful.NewManager()

	// Add jobs
	addServerRunningJob(m, app.Server, app.Logger)
	addServerShutdownJob(m, app.Server, app.Config.ServerShutdownTimeout, app.Logger)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient, app.Logger)
	addAuditServiceShutdownJob(m, app.AuditService, app.Config.AuditShutdownTimeout, app.Logger)
	addAuditLogCleanupJob(m, app.Config, app.AuditService, app.Logger)
	addMetricsGaugeUpdateJob(m, app.Config, app.DB, app.MetricsRecorder, app.MetricsCache, app.Logger)
	addPendingReconcileJob(m, app.Config, app.ReconcileService, app.DirectorySession, app.Logger)
	addPendingExpiryJob(m, app.Config, app.ReconcileService, app.Logger)
	if err := addDirectorySyncJob(m, app.Config, app.ReconcileService, app.DirectorySession, app.Logger); err != nil {
		return err
	}
	addCachePurgeJob(m, app.Config.CleanupInterval, app.cachePurgers(), app.Logger)
	addCacheCleanupJob(m, app.cacheClosers(), app.Logger)
	addDatabaseCloseJob(m, app.DB, app.Logger)

	// Wait for graceful shutdown
	<-m.Done()
	return nil
}

// cacheClosers lists the caches that were created, keyed by name.
func (app *Application) cacheClosers() map[string]func() error {
	closers := make(map[string]func() error)
	if app.MetricsCache != nil {
		closers["metrics"] = app.MetricsCache.Close
	}
	if app.UserCache != nil {
		closers["users"] = app.UserCache.Close
	}
	if app.NetworkNameCache != nil {
		closers["network"] = app.NetworkNameCache.Close
	}
	return closers
}

// cachePurgers lists the in-process caches. Redis-backed caches expire
// entries server-side and are not included.
func (app *Application) cachePurgers() map[string]purger {
	purgers := make(map[string]purger)
	for name, c := range map[string]any{
		"metrics": app.MetricsCache,
		"users":   app.UserCache,
		"network": app.NetworkNameCache,
	} {
		if p, ok := c.(purger); ok {
			purgers[name] = p
		}
	}
	return purgers
}

// Close releases what New acquired. The server path closes the same
// resources through its graceful shutdown jobs instead.
func (app *Application) Close() error {
	var errs []error
	if app.AuditService != nil {
		ctx, cancel := context.WithTimeout(context.Background(), app.Config.AuditShutdownTimeout)
		errs = append(errs, app.AuditService.Shutdown(ctx))
		cancel()
	}
	for _, closeFn := range app.cacheClosers() {
		errs = append(errs, closeFn())
	}
	if app.RateLimitRedisClient != nil {
		errs = append(errs, app.RateLimitRedisClient.Close())
	}
	if app.DB != nil {
		errs = append(errs, app.DB.Close())
	}
	return errors.Join(errs...)
}
