package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-authgate/meshgate/internal/config"
	"github.com/go-authgate/meshgate/internal/core"
	"github.com/go-authgate/meshgate/internal/metrics"
	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/services"
	"github.com/go-authgate/meshgate/internal/store"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	auditCleanupInterval = 24 * time.Hour
	directoryJobTimeout  = 5 * time.Minute
)

// createHTTPServer creates the HTTP server instance. WriteTimeout stays
// unset because status streams hold the response open.
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server, logger *zap.Logger) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("failed to start server", zap.Error(err))
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds HTTP server shutdown handler
func addServerShutdownJob(
	m *graceful.Manager,
	srv *http.Server,
	timeout time.Duration,
	logger *zap.Logger,
) {
	m.AddShutdownJob(func() error {
		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("server forced to shutdown", zap.Error(err))
			return err
		}

		logger.Info("server exited")
		return nil
	})
}

// addRedisClientShutdownJob adds Redis client shutdown handler
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client, logger *zap.Logger) {
	if redisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := redisClient.Close(); err != nil {
			logger.Error("error closing Redis client", zap.Error(err))
			return err
		}
		logger.Info("Redis connection closed")
		return nil
	})
}

// addAuditServiceShutdownJob flushes buffered audit entries
func addAuditServiceShutdownJob(
	m *graceful.Manager,
	auditService *services.AuditService,
	timeout time.Duration,
	logger *zap.Logger,
) {
	m.AddShutdownJob(func() error {
		logger.Info("shutting down audit service")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := auditService.Shutdown(ctx); err != nil {
			logger.Error("error shutting down audit service", zap.Error(err))
			return err
		}
		return nil
	})
}

func addDatabaseCloseJob(m *graceful.Manager, db *store.Store, logger *zap.Logger) {
	m.AddShutdownJob(func() error {
		if err := db.Close(); err != nil {
			logger.Error("error closing database", zap.Error(err))
			return err
		}
		return nil
	})
}

// addPeriodicJob runs fn once at startup and then on every tick until
// shutdown.
func addPeriodicJob(m *graceful.Manager, interval time.Duration, fn func(ctx context.Context)) {
	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		fn(ctx)
		for {
			select {
			case <-ticker.C:
				fn(ctx)
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addAuditLogCleanupJob adds periodic audit log cleanup job
func addAuditLogCleanupJob(
	m *graceful.Manager,
	cfg *config.Config,
	auditService *services.AuditService,
	logger *zap.Logger,
) {
	if !cfg.EnableAuditLogging || cfg.AuditLogRetention <= 0 {
		return
	}

	addPeriodicJob(m, auditCleanupInterval, func(ctx context.Context) {
		deleted, err := auditService.CleanupOldLogs(ctx, cfg.AuditLogRetention)
		if err != nil {
			logger.Error("failed to clean up old audit logs", zap.Error(err))
			return
		}
		if deleted > 0 {
			logger.Info("cleaned up old audit logs", zap.Int64("deleted", deleted))
		}
	})
}

// addPendingReconcileJob retries pending devices against the directory so
// that an activation missed by verify is picked up without a client call.
func addPendingReconcileJob(
	m *graceful.Manager,
	cfg *config.Config,
	reconcile *services.ReconcileService,
	session *services.DirectorySession,
	logger *zap.Logger,
) {
	if session == nil || cfg.ReconcileInterval <= 0 {
		return
	}

	addPeriodicJob(m, cfg.ReconcileInterval, func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, directoryJobTimeout)
		defer cancel()

		summary, err := reconcile.ReconcilePending(ctx)
		if err != nil {
			logger.Warn("pending reconcile failed", zap.Error(err))
			return
		}
		if summary.Updated > 0 {
			logger.Info("pending devices reconciled",
				zap.Int("checked", summary.Checked),
				zap.Int("updated", summary.Updated),
			)
		}
	})
}

// addPendingExpiryJob drops pending devices that never connected within the
// retention window.
func addPendingExpiryJob(
	m *graceful.Manager,
	cfg *config.Config,
	reconcile *services.ReconcileService,
	logger *zap.Logger,
) {
	if cfg.CleanupInterval <= 0 || cfg.PendingDeviceRetention <= 0 {
		return
	}

	addPeriodicJob(m, cfg.CleanupInterval, func(ctx context.Context) {
		expired, err := reconcile.ExpirePending(ctx, cfg.PendingDeviceRetention)
		if err != nil {
			logger.Error("failed to expire pending devices", zap.Error(err))
			return
		}
		if expired > 0 {
			logger.Info("expired stale pending devices", zap.Int("expired", expired))
		}
	})
}

// newDirectorySyncScheduler schedules the full directory sync. Overlapping
// runs are skipped rather than queued.
func newDirectorySyncScheduler(
	cfg *config.Config,
	reconcile *services.ReconcileService,
	logger *zap.Logger,
) (*cron.Cron, error) {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	_, err := c.AddFunc(cfg.SyncSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), directoryJobTimeout)
		defer cancel()

		summary, err := reconcile.SyncAll(ctx)
		if err != nil {
			logger.Warn("directory sync failed", zap.Error(err))
			return
		}
		logger.Info("directory sync finished",
			zap.Int("checked", summary.Checked),
			zap.Int("matched", summary.Matched),
			zap.Int("updated", summary.Updated),
			zap.Duration("duration", summary.Duration),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_SCHEDULE %q: %w", cfg.SyncSchedule, err)
	}
	return c, nil
}

func addDirectorySyncJob(
	m *graceful.Manager,
	cfg *config.Config,
	reconcile *services.ReconcileService,
	session *services.DirectorySession,
	logger *zap.Logger,
) error {
	if session == nil || cfg.SyncSchedule == "" {
		return nil
	}

	c, err := newDirectorySyncScheduler(cfg, reconcile, logger)
	if err != nil {
		return err
	}

	m.AddRunningJob(func(ctx context.Context) error {
		c.Start()
		logger.Info("directory sync scheduled", zap.String("schedule", cfg.SyncSchedule))
		<-ctx.Done()
		<-c.Stop().Done()
		return nil
	})
	return nil
}

// addMetricsGaugeUpdateJob adds periodic metrics gauge update job
func addMetricsGaugeUpdateJob(
	m *graceful.Manager,
	cfg *config.Config,
	db *store.Store,
	recorder core.Recorder,
	metricsCache core.Cache[int64],
	logger *zap.Logger,
) {
	if !cfg.MetricsEnabled || !cfg.MetricsGaugeUpdateEnabled || metricsCache == nil {
		return
	}

	cacheWrapper := metrics.NewCacheWrapper(db, metricsCache)
	errLog := newErrorLogger(logger)

	addPeriodicJob(m, cfg.MetricsGaugeUpdateInterval, func(ctx context.Context) {
		updateGaugeMetricsWithCache(ctx, cacheWrapper, recorder, cfg.MetricsGaugeUpdateInterval, errLog)
	})
}

// purger is implemented by caches that keep expired entries until swept.
type purger interface {
	Purge() int
}

// addCachePurgeJob periodically drops expired entries from in-process caches
func addCachePurgeJob(
	m *graceful.Manager,
	interval time.Duration,
	purgers map[string]purger,
	logger *zap.Logger,
) {
	if interval <= 0 || len(purgers) == 0 {
		return
	}

	addPeriodicJob(m, interval, func(context.Context) {
		purgeExpired(purgers, logger)
	})
}

func purgeExpired(purgers map[string]purger, logger *zap.Logger) int {
	total := 0
	for name, p := range purgers {
		if n := p.Purge(); n > 0 {
			logger.Debug("purged expired cache entries", zap.String("cache", name), zap.Int("removed", n))
			total += n
		}
	}
	return total
}

// addCacheCleanupJob closes every cache on shutdown
func addCacheCleanupJob(m *graceful.Manager, closers map[string]func() error, logger *zap.Logger) {
	if len(closers) == 0 {
		return
	}

	m.AddShutdownJob(func() error {
		for name, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Error("error closing cache", zap.String("cache", name), zap.Error(err))
			}
		}
		return nil
	})
}

// errorLogger handles rate-limited error logging
type errorLogger struct {
	mu              sync.Mutex
	lastErrorTimes  map[string]time.Time
	rateLimitWindow time.Duration
	logger          *zap.Logger
	now             func() time.Time
}

func newErrorLogger(logger *zap.Logger) *errorLogger {
	return &errorLogger{
		lastErrorTimes:  make(map[string]time.Time),
		rateLimitWindow: 5 * time.Minute, // Log at most once per 5 minutes per operation
		logger:          logger,
		now:             time.Now,
	}
}

// logIfNeeded logs an error only if rate limit allows. It reports whether
// the error was logged.
func (e *errorLogger) logIfNeeded(operation string, err error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	lastTime, exists := e.lastErrorTimes[operation]
	if exists && now.Sub(lastTime) < e.rateLimitWindow {
		return false
	}

	e.logger.Warn("database query failed",
		zap.String("operation", operation),
		zap.Error(err),
		zap.Duration("suppressed_for", e.rateLimitWindow),
	)
	e.lastErrorTimes[operation] = now
	return true
}

var gaugeStatuses = []models.DeviceStatus{
	models.DeviceStatusPending,
	models.DeviceStatusActive,
	models.DeviceStatusRevoked,
}

// updateGaugeMetricsWithCache updates the device gauges through the cache so
// that replicas sharing Redis do not each query the database.
func updateGaugeMetricsWithCache(
	ctx context.Context,
	cacheWrapper *metrics.CacheWrapper,
	recorder core.Recorder,
	cacheTTL time.Duration,
	errLog *errorLogger,
) {
	for _, status := range gaugeStatuses {
		count, err := cacheWrapper.GetDevicesCount(ctx, status, cacheTTL)
		if err != nil {
			operation := "count_devices_" + string(status)
			recorder.RecordDatabaseQueryError(operation)
			errLog.logIfNeeded(operation, err)
			continue
		}
		recorder.SetDevicesCount(string(status), int(count))
	}
}
