package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/upb/hms-audit/models"
)

const defaultListLimit = 20

// AuditCommand groups the audit log queries
func AuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit log",
		Long: `Show captured writes, newest first.

Examples:
  hms-audit audit recent --limit 50
  hms-audit audit table medical
  hms-audit audit entity patient P-1001 --json`,
	}

	cmd.PersistentFlags().Int("limit", defaultListLimit, "Maximum number of events")
	cmd.PersistentFlags().Bool("json", false, "Print events as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "recent",
		Short: "Show the latest changes across all tables",
		Args:  cobra.NoArgs,
		RunE:  runAudit,
	})
	cmd.AddCommand(&cobra.Command{
		Use:       "table <table>",
		Short:     "Show the latest changes to one table",
		Args:      cobra.ExactArgs(1),
		ValidArgs: models.TrackedTables(),
		RunE:      runAudit,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "entity <table> <id>",
		Short: "Show the change history of one row",
		Args:  cobra.ExactArgs(2),
		RunE:  runAudit,
	})

	return cmd
}

func runAudit(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	deps, err := openDependencies(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDependencies(deps)

	var events []*models.AuditEvent
	switch len(args) {
	case 0:
		events, err = deps.Audit.Recent(cmd.Context(), limit)
	case 1:
		events, err = deps.Audit.ByTable(cmd.Context(), args[0], limit)
	default:
		events, err = deps.Audit.ByEntity(cmd.Context(), args[0], args[1], limit)
	}
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(cmd.OutOrStdout(), events)
	}
	printEvents(cmd.OutOrStdout(), events)
	return nil
}

func printEvents(out io.Writer, events []*models.AuditEvent) {
	if len(events) == 0 {
		fmt.Fprintln(out, "No audit events found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tTABLE\tACTION\tENTITY\tCHANGE")
	fmt.Fprintln(w, "--\t----\t-----\t------\t------\t------")
	for _, ev := range events {
		entity := "-"
		if ev.EntityID != nil {
			entity = *ev.EntityID
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			ev.ID,
			ev.Timestamp.Format("2006-01-02 15:04:05"),
			ev.TableName,
			ev.Action,
			entity,
			changeSummary(ev),
		)
	}
	w.Flush()
}

// changeSummary describes an event in one line. Updates list the columns
// whose values differ between the two images.
func changeSummary(ev *models.AuditEvent) string {
	switch ev.Action {
	case models.AuditActionInsert:
		return fmt.Sprintf("created (%d columns)", len(ev.NewValues))
	case models.AuditActionDelete:
		return fmt.Sprintf("deleted (%d columns)", len(ev.OldValues))
	}

	var parts []string
	for _, f := range ev.NewValues {
		old, ok := ev.OldValues.Get(f.Name)
		if ok && fmt.Sprint(old) == fmt.Sprint(f.Value) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %v -> %v", f.Name, old, f.Value))
	}
	if len(parts) == 0 {
		return "no column changed"
	}
	return strings.Join(parts, ", ")
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
