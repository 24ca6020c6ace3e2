package bootstrap

import (
	"fmt"

	"github.com/go-authgate/meshgate/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a JSON logger in production and a console logger
// otherwise, at the configured level.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.LogLevel != "" {
		var err error
		if level, err = zapcore.ParseLevel(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
		}
	}

	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Named("meshgate"), nil
}
