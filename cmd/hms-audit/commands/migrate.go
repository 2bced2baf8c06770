package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// MigrateCommand creates the schema
func MigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tracked tables, the audit log and the notification table",
		Long: `Create every table and index the service needs. Existing tables are
left untouched, so the command is safe to run on every deploy.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := openDependencies(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDependencies(deps)

			if err := deps.RepoFactory.InitSchema(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
}
