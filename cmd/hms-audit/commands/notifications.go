package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/services/delivery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NotificationsCommand groups the notification commands
func NotificationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif"},
		Short:   "List and acknowledge alerts",
	}

	cmd.AddCommand(notificationsListCommand())
	cmd.AddCommand(notificationsWatchCommand())

	return cmd
}

func notificationsListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List unseen alerts, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			all, _ := cmd.Flags().GetBool("all")
			asJSON, _ := cmd.Flags().GetBool("json")

			deps, err := openDependencies(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDependencies(deps)

			var alerts []*models.Alert
			if all {
				alerts, err = deps.Notifications.List(cmd.Context(), limit, 0)
			} else {
				alerts, err = deps.Notifications.ListUnseen(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), alerts)
			}
			printAlerts(cmd.OutOrStdout(), alerts)
			return nil
		},
	}

	cmd.Flags().Int("limit", defaultListLimit, "Maximum number of alerts")
	cmd.Flags().Bool("all", false, "Include seen alerts, newest first")
	cmd.Flags().Bool("json", false, "Print alerts as JSON")

	return cmd
}

func printAlerts(out io.Writer, alerts []*models.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintln(out, "No alerts found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSEVERITY\tSEEN\tTITLE\tDETAIL")
	fmt.Fprintln(w, "--\t-------\t--------\t----\t-----\t------")
	for _, a := range alerts {
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\t%s\n",
			a.ID,
			a.CreatedAt.Format("2006-01-02 15:04"),
			a.Severity,
			a.Seen,
			a.Title,
			a.DetailText(),
		)
	}
	w.Flush()
}

func notificationsWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show unseen alerts one at a time",
		Long: `Show unseen alerts oldest first, one toast at a time. Type "a" and
Enter to open the alert, or "d" to dismiss it. Both mark it seen. A toast
left unanswered is hidden after DELIVERY_DISPLAY_TIMEOUT and shown again
next time.

New alerts are picked up every --refresh interval. Press Ctrl-C to stop.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}

	cmd.Flags().Duration("refresh", 30*time.Second, "How often to look for new alerts")

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	refresh, _ := cmd.Flags().GetDuration("refresh")
	if refresh <= 0 {
		return fmt.Errorf("--refresh must be positive")
	}

	ctx, stop := notifyContext(cmd.Context())
	defer stop()

	deps, err := openDependencies(ctx)
	if err != nil {
		return err
	}
	defer closeDependencies(deps)

	if err := deps.SeenWriter.Start(); err != nil {
		return err
	}

	presenter := delivery.NewTerminalPresenter(cmd.OutOrStdout())
	queue := deps.NewQueue(presenter, delivery.WithNavigation(func(a *models.Alert) {
		presenter.Println(openHint(a))
	}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queue.Run(gctx)
	})
	g.Go(func() error {
		return presenter.ReadKeys(gctx, cmd.InOrStdin())
	})
	g.Go(func() error {
		return refreshLoop(gctx, queue, refresh, deps.Logger)
	})

	return g.Wait()
}

// refreshLoop asks the queue for new alerts until ctx is done
func refreshLoop(ctx context.Context, queue *delivery.Queue, every time.Duration, logger *zap.Logger) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := queue.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("alert refresh failed", zap.Error(err))
			}
		}
	}
}

// openHint tells the user where the alert's records live
func openHint(a *models.Alert) string {
	return fmt.Sprintf("> %s\n  hms-audit audit table %s", a.Title, models.TableMedical)
}
