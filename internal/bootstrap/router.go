package bootstrap

import (
	_ "github.com/go-authgate/meshgate/api" // swagger docs
	"github.com/go-authgate/meshgate/internal/config"
	"github.com/go-authgate/meshgate/internal/handlers"
	"github.com/go-authgate/meshgate/internal/metrics"
	"github.com/go-authgate/meshgate/internal/middleware"
	"github.com/go-authgate/meshgate/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// handlerSet holds all HTTP handlers and the authenticator guarding them
type handlerSet struct {
	enrollment *handlers.EnrollmentHandler
	device     *handlers.DeviceHandler
	audit      *handlers.AuditHandler
	health     *handlers.HealthHandler
	authn      *middleware.Authenticator
}

func (app *Application) initializeHandlers() handlerSet {
	optional := map[string]handlers.HealthChecker{}
	if app.UserCache != nil {
		optional["user_cache"] = app.UserCache
	}
	if app.NetworkNameCache != nil {
		optional["network_cache"] = app.NetworkNameCache
	}

	return handlerSet{
		enrollment: handlers.NewEnrollmentHandler(
			app.EnrollmentService,
			app.ReconcileService,
			app.DeviceService,
			app.VerifyLimiter,
			app.GenerateLimiter,
			app.Logger,
		),
		device: handlers.NewDeviceHandler(
			app.DeviceService,
			app.ReconcileService,
			app.StatusMonitor,
			app.Notifier,
			app.Logger,
		),
		audit:  handlers.NewAuditHandler(app.AuditService, app.Logger),
		health: handlers.NewHealthHandler(app.DB, optional),
		authn:  middleware.NewAuthenticator(app.TokenProvider, app.UserService, app.Logger),
	}
}

// setupRouter configures the Gin router with all routes and middleware
func (app *Application) setupRouter() *gin.Engine {
	cfg := app.Config
	setupGinMode(cfg, app.Logger)
	r := gin.New()

	r.Use(metrics.HTTPMetricsMiddleware(app.MetricsRecorder))
	r.Use(middleware.RequestLogger(app.Logger), gin.Recovery())
	r.Use(middleware.IPMiddleware())

	h := app.initializeHandlers()

	r.GET("/health", h.health.Check)
	setupMetricsEndpoint(r, cfg, app.Logger)
	setupSwagger(r, cfg, app.Logger)
	setupAllRoutes(r, h)

	app.Logger.Info("meshgate server starting",
		zap.String("addr", cfg.ServerAddr),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("directory", app.Directory != nil),
	)
	return r
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config, logger *zap.Logger) {
	switch {
	case !cfg.MetricsEnabled:
		logger.Info("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		logger.Info("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		logger.Warn("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupSwagger serves the API documentation, by default outside production
func setupSwagger(r *gin.Engine, cfg *config.Config, logger *zap.Logger) {
	if !cfg.EnableSwagger {
		return
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	logger.Info("Swagger UI enabled", zap.String("url", cfg.BaseURL+"/swagger/index.html"))
}

// setupAllRoutes configures all application routes
func setupAllRoutes(r *gin.Engine, h handlerSet) {
	// The enrollment endpoint is public for verify; every other action
	// checks the optional user itself.
	r.POST("/api/enrollment", h.authn.OptionalAuth(), h.enrollment.Handle)

	api := r.Group("/api", h.authn.RequireAuth())
	{
		api.GET("/devices", h.device.ListDevices)
		api.GET("/devices/status", h.device.Status)
		api.GET("/devices/status/stream", h.device.StatusStream)
		api.POST(
			"/devices/sync",
			middleware.RequireRole(models.RoleAdmin, models.RoleSupport),
			h.device.Sync,
		)
		api.GET("/devices/:id", h.device.GetDevice)
		api.GET("/devices/:id/events", h.device.ListEvents)
		api.POST("/devices/:id/revoke", h.device.RevokeDevice)
	}

	admin := api.Group("/admin")
	{
		admin.GET(
			"/audit",
			middleware.RequireRole(models.RoleAdmin, models.RoleOrgAdmin),
			h.audit.ListAuditLogs,
		)
		admin.GET(
			"/audit/export",
			middleware.RequireRole(models.RoleAdmin, models.RoleOrgAdmin),
			h.audit.ExportAuditLogs,
		)
		admin.GET("/audit/stats", middleware.RequireRole(models.RoleAdmin), h.audit.GetAuditLogStats)
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config, logger *zap.Logger) {
	gin.SetMode(ginModeMap[cfg.IsProduction])
	logger.Info("gin mode", zap.String("mode", ginModeMap[cfg.IsProduction]))
}

var ginModeMap = map[bool]string{
	true:  gin.ReleaseMode,
	false: gin.DebugMode,
}
