//	@title			meshgate API
//	@version		1.0
//	@description	Device enrollment and connection tracking for a Tailscale network

//	@contact.name	API Support
//	@contact.url	https://github.com/go-authgate/meshgate

//	@license.name	MIT

//	@BasePath	/

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the API token.

//go:generate go run github.com/swaggo/swag/cmd/swag init -g main.go -o api --outputTypes go,json --parseInternal

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-authgate/meshgate/internal/bootstrap"
	"github.com/go-authgate/meshgate/internal/config"
	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "meshgate",
		Short:         "meshgate - device enrollment for a Tailscale network",
		Long:          "Enroll user devices into a Tailscale network and track their connection state",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serverCmd(),
		syncCmd(),
		tokenCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger every command shares.
func setup() (*config.Config, *zap.Logger, error) {
	cfg := config.Load()
	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func serverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the enrollment API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("starting", zap.String("app", version.App), zap.String("version", version.String()))
			return bootstrap.Run(cmd.Context(), cfg, logger)
		},
	}
}

func syncCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile every device against the Tailscale directory once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			app, err := bootstrap.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			if app.DirectorySession == nil {
				return errors.New("TAILSCALE_CLIENT_ID and TAILSCALE_CLIENT_SECRET are required for sync")
			}

			full, err := app.ReconcileService.SyncAll(ctx)
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			pending, err := app.ReconcileService.ReconcilePending(ctx)
			if err != nil {
				return fmt.Errorf("pending reconcile failed: %w", err)
			}

			fmt.Printf("Devices checked:  %d\n", full.Checked)
			fmt.Printf("Devices matched:  %d\n", full.Matched)
			fmt.Printf("Devices updated:  %d\n", full.Updated+pending.Updated)
			fmt.Printf("Failures:         %d\n", full.Failed+pending.Failed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Abort the sync after this long")
	return cmd
}

func tokenCmd() *cobra.Command {
	var userID, username string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an existing user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" && username == "" {
				return errors.New("one of --user or --username is required")
			}

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			app, err := bootstrap.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			var user *models.User
			if userID != "" {
				user, err = app.DB.GetUserByID(ctx, userID)
			} else {
				user, err = app.DB.GetUserByUsername(ctx, username)
			}
			if err != nil {
				return fmt.Errorf("user not found: %w", err)
			}

			res, err := app.TokenProvider.GenerateToken(ctx, user.ID, user.Role)
			if err != nil {
				return err
			}
			fmt.Println(res.TokenString)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&username, "username", "", "Username (e.g. admin)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(*cobra.Command, []string) {
			version.PrintVersion()
		},
	}
}
