package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/upb/hms-audit/app"
	"github.com/upb/hms-audit/routes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ServeCommand runs the HTTP API and the alert scheduler
func ServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the alert scheduler",
		Long: `Serve the audit, notification, dashboard and record APIs. When
ALERT_ENABLED is true the alert scheduler runs alongside the server.

SIGINT or SIGTERM stops the server gracefully; an alert cycle in flight
finishes or rolls back before the process exits.`,
		RunE: runServe,
	}

	cmd.Flags().Bool("migrate", false, "Create the schema before serving")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := notifyContext(cmd.Context())
	defer stop()

	deps, err := openDependencies(ctx)
	if err != nil {
		return err
	}
	defer closeDependencies(deps)

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if err := deps.RepoFactory.InitSchema(ctx); err != nil {
			return err
		}
	}

	return serve(ctx, deps)
}

func serve(ctx context.Context, deps *app.Dependencies) error {
	cfg := deps.Config.Server
	logger := deps.Logger

	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           routes.SetupRoutes(deps),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening",
			zap.String("addr", srv.Addr),
			zap.Bool("tls", cfg.TLS.Enabled))

		var err error
		if cfg.TLS.Enabled {
			err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if deps.Config.Scheduler.Enabled {
		g.Go(func() error {
			return deps.Scheduler.Run(gctx)
		})
	} else {
		logger.Info("periodic alert evaluation disabled")
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

func closeDependencies(deps *app.Dependencies) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := deps.Close(ctx); err != nil {
		deps.Logger.Warn("shutdown incomplete", zap.Error(err))
	}
}
