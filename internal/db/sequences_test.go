package db

import (
	"context"
	"path/filepath"
	"testing"
)

func openMigrated(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return database
}

func TestFriendlyIDsAssignedOnInsert(t *testing.T) {
	database := openMigrated(t)

	for i, name := range []string{"alice", "bob"} {
		_, err := database.Exec(`INSERT INTO users (uuid, id, username) VALUES (?, '', ?)`, name+"-uuid", name)
		if err != nil {
			t.Fatalf("failed to insert user %s: %v", name, err)
		}

		var id string
		if err := database.QueryRow(`SELECT id FROM users WHERE uuid = ?`, name+"-uuid").Scan(&id); err != nil {
			t.Fatalf("failed to read user id: %v", err)
		}
		want := []string{"U-00001", "U-00002"}[i]
		if id != want {
			t.Errorf("user %s id = %q, want %q", name, id, want)
		}
	}
}

func TestFriendlyIDTriggersOnEveryTable(t *testing.T) {
	database := openMigrated(t)

	inserts := []struct {
		table, uuid, insert, want string
	}{
		{"users", "u1", `INSERT INTO users (uuid, id, username) VALUES ('u1', '', 'alice')`, "U-00001"},
		{"routines", "r1", `INSERT INTO routines (uuid, id, user_uuid, name) VALUES ('r1', '', 'u1', 'Morning')`, "R-00001"},
		{"routine_items", "i1", `INSERT INTO routine_items (uuid, id, routine_uuid, title, priority) VALUES ('i1', '', 'r1', 'Stretch', 1)`, "I-00001"},
		{"day_pages", "d1", `INSERT INTO day_pages (uuid, id, user_uuid, date) VALUES ('d1', '', 'u1', '2026-10-19')`, "D-00001"},
	}
	for _, tt := range inserts {
		if _, err := database.Exec(tt.insert); err != nil {
			t.Fatalf("insert into %s: %v", tt.table, err)
		}
		var id string
		if err := database.QueryRow("SELECT id FROM "+tt.table+" WHERE uuid = ?", tt.uuid).Scan(&id); err != nil {
			t.Fatalf("read %s id: %v", tt.table, err)
		}
		if id != tt.want {
			t.Errorf("%s id = %q, want %q", tt.table, id, tt.want)
		}
	}
}

func TestSequenceDriftDetectAndFix(t *testing.T) {
	database := openMigrated(t)

	_, err := database.Exec(`INSERT INTO users (uuid, id, username) VALUES ('user-uuid-1', '', 'alice')`)
	if err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}

	// Explicit friendly ID bypasses the sequence trigger.
	_, err = database.Exec(`
		INSERT INTO routines (uuid, id, user_uuid, name)
		VALUES ('routine-uuid-1', 'R-00042', 'user-uuid-1', 'Morning Routine')
	`)
	if err != nil {
		t.Fatalf("failed to insert routine: %v", err)
	}

	drifts, err := CheckSequences(context.Background(), database)
	if err != nil {
		t.Fatalf("failed to detect sequence drift: %v", err)
	}

	foundRoutine := false
	for _, drift := range drifts {
		if drift.Name == "user_seq" {
			t.Errorf("user_seq should not drift, got %+v", drift)
		}
		if drift.Name == "routine_seq" {
			foundRoutine = true
			if drift.MaxID != 42 {
				t.Errorf("expected max ID 42, got %d", drift.MaxID)
			}
			if drift.Current != 0 {
				t.Errorf("expected sequence 0 before fix, got %d", drift.Current)
			}
		}
	}

	if !foundRoutine {
		t.Fatalf("expected routine_seq drift to be detected")
	}

	if _, err := RepairSequences(context.Background(), database); err != nil {
		t.Fatalf("failed to fix sequence drift: %v", err)
	}

	var seq int
	if err := database.QueryRow("SELECT seq FROM sqlite_sequence WHERE name = 'routine_seq'").Scan(&seq); err != nil {
		t.Fatalf("failed to query sqlite_sequence: %v", err)
	}
	if seq != 42 {
		t.Fatalf("expected sqlite_sequence to be 42 after fix, got %d", seq)
	}

	drifts, err = CheckSequences(context.Background(), database)
	if err != nil {
		t.Fatalf("failed to detect sequence drift after fix: %v", err)
	}
	if len(drifts) != 0 {
		t.Fatalf("expected no drift after fix, found %d", len(drifts))
	}

	// The next generated ID continues after the repaired sequence.
	_, err = database.Exec(`INSERT INTO routines (uuid, id, user_uuid, name) VALUES ('routine-uuid-2', '', 'user-uuid-1', 'Evening')`)
	if err != nil {
		t.Fatalf("failed to insert routine: %v", err)
	}
	var id string
	if err := database.QueryRow(`SELECT id FROM routines WHERE uuid = 'routine-uuid-2'`).Scan(&id); err != nil {
		t.Fatalf("failed to read routine id: %v", err)
	}
	if id != "R-00043" {
		t.Errorf("next routine id = %q, want R-00043", id)
	}
}

func TestPriorityCheckConstraint(t *testing.T) {
	database := openMigrated(t)

	mustExec := func(q string) {
		t.Helper()
		if _, err := database.Exec(q); err != nil {
			t.Fatalf("exec %q: %v", q, err)
		}
	}
	mustExec(`INSERT INTO users (uuid, id, username) VALUES ('u1', '', 'alice')`)
	mustExec(`INSERT INTO routines (uuid, id, user_uuid, name) VALUES ('r1', '', 'u1', 'Morning')`)

	_, err := database.Exec(`INSERT INTO routine_items (uuid, id, routine_uuid, title, priority) VALUES ('i1', '', 'r1', 'Stretch', 0)`)
	if err == nil {
		t.Fatal("expected priority 0 to violate the check constraint")
	}

	_, err = database.Exec(`INSERT INTO routines (uuid, id, user_uuid, name) VALUES ('r2', '', 'u1', 'Morning')`)
	if err == nil {
		t.Fatal("expected duplicate routine name to violate the unique constraint")
	}
}
