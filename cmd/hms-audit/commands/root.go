package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/upb/hms-audit/app"
	"github.com/upb/hms-audit/config"
	"github.com/upb/hms-audit/internal/observability"
	"go.uber.org/zap"
)

// NewRootCommand builds the hms-audit command tree
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hms-audit",
		Short: "Change audit and stock alerts for hospital records",
		Long: `hms-audit records every write to the hospital's patient, doctor, staff,
medical, facility and lab tables in an append-only audit log, and raises
low-stock and expiry alerts for the medical inventory.

Configuration is read from the environment and an optional .env file.

Quick start:
  hms-audit migrate                       # Create the schema
  hms-audit serve                         # Run the API and the alert scheduler
  hms-audit audit recent                  # Show the latest changes
  hms-audit notifications watch           # Show unseen alerts one at a time`,
		SilenceUsage: true,
	}

	cmd.AddCommand(ServeCommand())
	cmd.AddCommand(MigrateCommand())
	cmd.AddCommand(AuditCommand())
	cmd.AddCommand(AlertsCommand())
	cmd.AddCommand(NotificationsCommand())
	cmd.AddCommand(TokenCommand())

	return cmd
}

// Execute runs the root command. It is called by main.main.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadRuntime reads the configuration and builds the process logger
func loadRuntime(ctx context.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, nil, err
	}

	logger, err := observability.NewLogger(observability.LoggerConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
		File:   cfg.Observability.LogFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, logger.With(zap.String("env", cfg.Environment)), nil
}

// openDependencies loads the runtime and connects to the database. The
// caller must Close the result.
func openDependencies(ctx context.Context) (*app.Dependencies, error) {
	cfg, logger, err := loadRuntime(ctx)
	if err != nil {
		return nil, err
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return deps, nil
}
