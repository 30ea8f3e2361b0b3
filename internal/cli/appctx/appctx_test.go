package appctx

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/lherron/daybook/internal/db"
	"github.com/lherron/daybook/internal/store"
)

// isolateEnv points HOME and the working directory at a temp dir so no
// config.yaml or .env.local from the host leaks into the test.
func isolateEnv(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("DAYBOOK_USER", "")
	t.Setenv("DAYBOOK_OUTPUT", "")
	t.Setenv("DAYBOOK_LOG_LEVEL", "")
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return tmpDir
}

func migratedDB(t *testing.T, path string, usernames ...string) {
	t.Helper()
	database, err := db.Open(path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()
	if err := database.Migrate(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	s := store.New(database)
	for _, name := range usernames {
		if _, err := s.Users.Create(context.Background(), name); err != nil {
			t.Fatalf("Failed to create user %q: %v", name, err)
		}
	}
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("db", "", "Database path")
	cmd.Flags().String("as", "", "User")
	cmd.Flags().StringP("output", "o", "", "Output format")
	return cmd
}

func TestBootstrap_ConfigOnly(t *testing.T) {
	tmpDir := isolateEnv(t)
	t.Setenv("DAYBOOK_DB_PATH", filepath.Join(tmpDir, "test.db"))

	app, err := Bootstrap(newTestCmd(), Options{})
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.Config == nil {
		t.Error("Config should not be nil")
	}
	if app.Logger == nil {
		t.Error("Logger should not be nil")
	}
	if app.DB != nil || app.Store != nil {
		t.Error("DB and Store should be nil when NeedsDB is false")
	}
	if app.UserUUID() != "" {
		t.Error("UserUUID should be empty when NeedsUser is false")
	}
}

func TestBootstrap_WithDB(t *testing.T) {
	tmpDir := isolateEnv(t)
	dbPath := filepath.Join(tmpDir, "test.db")
	migratedDB(t, dbPath)
	t.Setenv("DAYBOOK_DB_PATH", dbPath)

	app, err := Bootstrap(newTestCmd(), DefaultOptions())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.DB == nil || app.Store == nil {
		t.Fatal("DB and Store should be set when NeedsDB is true")
	}
}

func TestBootstrap_FlagOverrides(t *testing.T) {
	tmpDir := isolateEnv(t)
	dbPath := filepath.Join(tmpDir, "test.db")
	overridePath := filepath.Join(tmpDir, "override.db")
	migratedDB(t, dbPath)
	migratedDB(t, overridePath, "bob")
	t.Setenv("DAYBOOK_DB_PATH", dbPath)
	t.Setenv("DAYBOOK_USER", "alice")

	cmd := newTestCmd()
	if err := cmd.ParseFlags([]string{"--db", overridePath, "--as", "bob", "-o", "json"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	app, err := Bootstrap(cmd, WithUser())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.Config.DBPath != overridePath {
		t.Errorf("DBPath = %q, want %q", app.Config.DBPath, overridePath)
	}
	if app.User == nil || app.User.Username != "bob" {
		t.Errorf("User = %+v, want bob", app.User)
	}
	if app.Config.Output != "json" {
		t.Errorf("Output = %q, want json", app.Config.Output)
	}
}

func TestBootstrap_WithUser(t *testing.T) {
	tmpDir := isolateEnv(t)
	dbPath := filepath.Join(tmpDir, "test.db")
	migratedDB(t, dbPath, "alice")
	t.Setenv("DAYBOOK_DB_PATH", dbPath)
	t.Setenv("DAYBOOK_USER", "alice")

	app, err := Bootstrap(newTestCmd(), WithUser())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.UserUUID() == "" {
		t.Error("UserUUID should not be empty when NeedsUser is true")
	}
	if app.User.ID != "U-00001" {
		t.Errorf("User.ID = %q, want U-00001", app.User.ID)
	}
}

func TestBootstrap_UserNotConfigured(t *testing.T) {
	tmpDir := isolateEnv(t)
	dbPath := filepath.Join(tmpDir, "test.db")
	migratedDB(t, dbPath, "alice")
	t.Setenv("DAYBOOK_DB_PATH", dbPath)

	_, err := Bootstrap(newTestCmd(), WithUser())
	if err == nil {
		t.Fatal("Expected error when user is not configured")
	}
	if !strings.Contains(err.Error(), "no user configured") {
		t.Errorf("Error message should mention missing user, got %q", err.Error())
	}
}

func TestBootstrap_UnknownUser(t *testing.T) {
	tmpDir := isolateEnv(t)
	dbPath := filepath.Join(tmpDir, "test.db")
	migratedDB(t, dbPath, "alice")
	t.Setenv("DAYBOOK_DB_PATH", dbPath)
	t.Setenv("DAYBOOK_USER", "mallory")

	_, err := Bootstrap(newTestCmd(), WithUser())
	if err == nil || !strings.Contains(err.Error(), "failed to resolve user") {
		t.Fatalf("Expected resolve error, got %v", err)
	}
}

func TestBootstrap_PendingMigrations(t *testing.T) {
	tmpDir := isolateEnv(t)
	dbPath := filepath.Join(tmpDir, "fresh.db")
	t.Setenv("DAYBOOK_DB_PATH", dbPath)

	_, err := Bootstrap(newTestCmd(), DefaultOptions())
	if err == nil {
		t.Fatal("Expected error for unmigrated database")
	}
	if !strings.Contains(err.Error(), "daybook migrate") {
		t.Errorf("Error should point at daybook migrate, got %q", err.Error())
	}
}

func TestOptions(t *testing.T) {
	if opts := DefaultOptions(); !opts.NeedsDB || opts.NeedsUser {
		t.Errorf("DefaultOptions = %+v", opts)
	}
	if opts := WithUser(); !opts.NeedsDB || !opts.NeedsUser {
		t.Errorf("WithUser = %+v", opts)
	}
}

func TestApp_Close_Multiple(t *testing.T) {
	app := &App{}
	app.Close()
	app.Close()
}
