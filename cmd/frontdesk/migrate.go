package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/hotel-frontdesk/internal/config"
)

func newMigrateCommand(root *rootOptions) *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(root.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Store != config.StoreSQLite {
				return fmt.Errorf("migrate requires store=%s, got %q", config.StoreSQLite, a.cfg.Store)
			}
			if err := a.openStore(cmd.Context(), !statusOnly); err != nil {
				return err
			}
			return printMigrationStatus(cmd, a, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "report migration state without applying anything")
	return cmd
}

func printMigrationStatus(cmd *cobra.Command, a *app, w io.Writer) error {
	status, err := a.sqlite.MigrationStatus(cmd.Context())
	if err != nil {
		return err
	}
	current := status.CurrentVersion
	if current == "" {
		current = "none"
	}
	fmt.Fprintf(w, "current version: %s\n", current)
	fmt.Fprintf(w, "applied: %d\n", len(status.AppliedMigrations))
	fmt.Fprintf(w, "pending: %d\n", status.PendingCount)
	for _, m := range status.PendingMigrations {
		fmt.Fprintf(w, "  %s %s\n", m.Version, m.Description)
	}
	return nil
}
