package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// AlertsCommand groups alert evaluation commands
func AlertsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Evaluate stock and expiry alerts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "evaluate",
		Short: "Run one alert cycle now",
		Long: `Evaluate the low-stock and expiry rules once and store any new alerts.
An alert that is already unseen is not stored again.

If another process is running a cycle, this one is skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := openDependencies(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDependencies(deps)

			report, err := deps.Scheduler.RunNow(cmd.Context())
			if err != nil {
				return fmt.Errorf("alert cycle %s: %w", report.Outcome, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Cycle %s %s in %s: %d candidates, %d inserted, %d already unseen, %d dropped.\n",
				report.ID, report.Outcome, report.Duration.Round(time.Millisecond),
				report.Candidates, report.Result.Inserted, report.Result.Skipped, report.Result.Dropped)
			return nil
		},
	})

	return cmd
}
