package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/daybook/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run any pending database migrations",
	Long: `Migrate applies any pending SQL migrations to the database.

Migrations are embedded in the daybook binary and tracked via the
schema_migrations table. Each migration file is applied exactly once, so
this command is safe to run multiple times.

Use --status to show the current migration status.`,
	RunE: runMigrate,
}

var migrateStatus bool

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "Show current migration status")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	_, database, err := openUnmigrated(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	if migrateStatus {
		return showMigrationStatus(cmd, database)
	}

	applied, err := database.MigrateWithInfo()
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(applied) == 0 {
		fmt.Fprintln(out, "Database is up to date. No migrations to apply.")
		return nil
	}
	fmt.Fprintf(out, "Applied %d migration(s):\n", len(applied))
	for _, name := range applied {
		fmt.Fprintf(out, "  ✓ %s\n", name)
	}
	return nil
}

func showMigrationStatus(cmd *cobra.Command, database *db.DB) error {
	applied, pending, err := database.MigrationStatus()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Database: %s\n\n", database.Path())
	fmt.Fprintf(out, "Applied (%d):\n", len(applied))
	for _, name := range applied {
		fmt.Fprintf(out, "  ✓ %s\n", name)
	}
	fmt.Fprintf(out, "\nPending (%d):\n", len(pending))
	for _, name := range pending {
		fmt.Fprintf(out, "  - %s\n", name)
	}
	return nil
}
