package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lherron/daybook/internal/db"
	"github.com/lherron/daybook/internal/store"
)

// TempDB creates a temporary migrated SQLite database for testing
func TempDB(t *testing.T) (*db.DB, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := database.Migrate(); err != nil {
		database.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
	})

	return database, dbPath
}

// TempStore creates a store over a temporary database with one user named
// username. It returns the store, the user's UUID, and the database path.
func TempStore(t *testing.T, username string) (*store.Store, string, string) {
	t.Helper()

	database, dbPath := TempDB(t)
	s := store.New(database)
	user, err := s.Users.Create(context.Background(), username)
	if err != nil {
		t.Fatalf("Failed to create user %q: %v", username, err)
	}
	return s, user.UUID, dbPath
}

// AssertNoError asserts that an error is nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}
