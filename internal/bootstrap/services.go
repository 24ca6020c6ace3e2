package bootstrap

import (
	"fmt"

	"github.com/go-authgate/meshgate/internal/config"
	"github.com/go-authgate/meshgate/internal/core"
	"github.com/go-authgate/meshgate/internal/services"
	"github.com/go-authgate/meshgate/internal/tailnet"
	"github.com/go-authgate/meshgate/internal/token"

	"go.uber.org/zap"
)

// initializeDirectory returns a nil directory when no OAuth client
// credentials are configured. Enrollment then relies on provisioned keys and
// devices stay pending until a directory is available.
func initializeDirectory(cfg *config.Config, logger *zap.Logger, m core.Recorder) (core.Directory, error) {
	if !cfg.DirectoryConfigured() {
		logger.Warn("Tailscale directory not configured; reconciliation and key issuance are disabled")
		return nil, nil //nolint:nilnil // directory not configured
	}

	client, err := tailnet.NewClient(cfg, logger, m)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Tailscale client: %w", err)
	}
	logger.Info("Tailscale directory client initialized",
		zap.String("api_url", cfg.TailscaleAPIURL),
		zap.Bool("issue_keys", cfg.TailscaleIssueKeys),
	)
	return client, nil
}

// initializeServices creates all business logic services
func (app *Application) initializeServices() {
	cfg := app.Config
	logger := app.Logger

	app.Notifier = services.NewDeviceNotifier()
	app.UserService = services.NewUserService(app.DB, app.UserCache, cfg.CacheClientTTL, logger)

	// A nil session tells every consumer the directory is unavailable.
	if app.Directory != nil {
		app.DirectorySession = services.NewDirectorySession(
			app.Directory,
			app.NetworkNameCache,
			cfg.NetworkNameCacheTTL,
			logger,
		)
	}

	app.KeyResolver = services.NewKeyResolver(
		app.UserService,
		app.DirectorySession,
		cfg.TailscaleAuthKey,
		cfg.TailscaleDefaultTags,
		cfg.TailscaleIssueKeys,
		logger,
	)
	app.EnrollmentService = services.NewEnrollmentService(
		app.DB,
		cfg,
		app.UserService,
		app.KeyResolver,
		app.AuditService,
		app.Notifier,
		app.MetricsRecorder,
		logger,
	)
	app.ReconcileService = services.NewReconcileService(
		app.DB,
		app.DirectorySession,
		app.AuditService,
		app.Notifier,
		app.MetricsRecorder,
		logger,
	)
	app.StatusMonitor = services.NewStatusMonitor(
		app.DB,
		app.DirectorySession,
		cfg.StatusFreshnessWindow,
		cfg.StatusPollInterval,
		app.MetricsRecorder,
		logger,
	)
	app.DeviceService = services.NewDeviceService(app.DB, app.AuditService, app.Notifier, logger)
	app.TokenProvider = token.NewLocalTokenProvider(cfg)
}
