package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/upb/hms-audit/middleware"
)

// TokenCommand issues API bearer tokens signed with JWT_SECRET
func TokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		Long: `Issue a bearer token for the HTTP API, signed with JWT_SECRET.

Viewers can read the audit log, notifications and records. Editors can
also write records and run alert cycles.

Examples:
  hms-audit token --sub reception-1 --role viewer
  hms-audit token --sub pharmacy-2 --role editor --ttl 8h`,
		Args: cobra.NoArgs,
		RunE: runToken,
	}

	cmd.Flags().String("sub", "", "Subject the token is issued to (required)")
	cmd.Flags().StringSlice("role", []string{middleware.RoleViewer}, "Roles: viewer, editor")
	cmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("sub")

	return cmd
}

func runToken(cmd *cobra.Command, _ []string) error {
	sub, _ := cmd.Flags().GetString("sub")
	roles, _ := cmd.Flags().GetStringSlice("role")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	for _, r := range roles {
		if r != middleware.RoleViewer && r != middleware.RoleEditor {
			return fmt.Errorf("unknown role %q", r)
		}
	}
	if ttl <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}

	cfg, logger, err := loadRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.Auth.Enabled() {
		return fmt.Errorf("JWT_SECRET is not set")
	}

	token, err := middleware.NewHMACValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer).Issue(sub, roles, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
