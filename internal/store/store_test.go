package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lherron/daybook/internal/db"
	"github.com/lherron/daybook/internal/domain"
)

// setupTestDB creates a temporary test database with migrations applied.
func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// setupTestStore returns a store and the UUID of a fresh user.
func setupTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	s := New(setupTestDB(t))
	user, err := s.Users.Create(context.Background(), "alice")
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return s, user.UUID
}

// setupTestRoutine creates a routine holding items with the given titles in order.
func setupTestRoutine(t *testing.T, s *Store, userUUID, name string, titles ...string) (*domain.Routine, map[string]string) {
	t.Helper()
	ctx := context.Background()
	routine, err := s.Routines.Create(ctx, userUUID, name)
	if err != nil {
		t.Fatalf("failed to create routine %q: %v", name, err)
	}
	uuids := make(map[string]string, len(titles))
	for _, title := range titles {
		item, err := s.Items.Create(ctx, userUUID, ItemCreateParams{RoutineUUID: routine.UUID, Title: title})
		if err != nil {
			t.Fatalf("failed to create item %q: %v", title, err)
		}
		uuids[title] = item.UUID
	}
	return routine, uuids
}

// order returns the titles of a routine's items in priority order and fails
// the test unless priorities are exactly 1..N.
func order(t *testing.T, s *Store, userUUID, routineUUID string) []string {
	t.Helper()
	items, err := s.Items.List(context.Background(), userUUID, routineUUID, ItemListOptions{IncludeInactive: true})
	if err != nil {
		t.Fatalf("failed to list items: %v", err)
	}
	titles := make([]string, len(items))
	for i, item := range items {
		if item.Priority != i+1 {
			t.Fatalf("item %q has priority %d at position %d", item.Title, item.Priority, i+1)
		}
		titles[i] = item.Title
	}
	return titles
}

func assertOrder(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func intPtr(v int) *int       { return &v }
func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
