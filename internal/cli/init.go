package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/daybook/internal/cli/appctx"
	"github.com/lherron/daybook/internal/config"
	"github.com/lherron/daybook/internal/db"
	"github.com/lherron/daybook/internal/domain"
	"github.com/lherron/daybook/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the daybook database",
	Long: `Initialize creates the SQLite database, runs migrations, and creates the
default user (from --user, --as, DAYBOOK_USER, or default_user in config.yaml).`,
	RunE: runInit,
}

var initUser string

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initUser, "user", "", "Username of the default user to create")
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, database, err := openUnmigrated(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	applied, err := database.MigrateWithInfo()
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(applied) == 0 {
		fmt.Fprintf(out, "✓ Database already initialized at %s\n", cfg.DBPath)
	} else {
		fmt.Fprintf(out, "✓ Initialized database at %s\n", cfg.DBPath)
		fmt.Fprintf(out, "✓ Applied %d migration(s)\n", len(applied))
	}

	username := initUser
	if username == "" {
		username = cfg.DefaultUser
	}
	if username == "" {
		return nil
	}

	s := store.New(database).WithLogger(cfg.NewLogger(cmd.ErrOrStderr()))
	user, err := s.Users.Create(cmd.Context(), username)
	switch {
	case errors.Is(err, domain.ErrDuplicateName):
		fmt.Fprintf(out, "✓ User %s already exists\n", username)
	case err != nil:
		return fmt.Errorf("failed to create user: %w", err)
	default:
		fmt.Fprintf(out, "✓ Created user %s (%s)\n", user.Username, user.ID)
	}
	return nil
}

// openUnmigrated opens the configured database without checking for
// pending migrations. Only init and migrate use it.
func openUnmigrated(cmd *cobra.Command) (*config.Config, *db.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	appctx.ApplyFlags(cmd, cfg)

	if cfg.DBPath == "" {
		return nil, nil, fmt.Errorf("database path not specified (use --db flag or set DAYBOOK_DB_PATH)")
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, database, nil
}
