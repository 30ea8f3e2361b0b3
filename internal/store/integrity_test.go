package store

import (
	"context"
	"testing"
)

func TestIntegrity_CheckDensityAndCompact(t *testing.T) {
	s, userUUID := setupTestStore(t)
	ctx := context.Background()
	broken, uuids := setupTestRoutine(t, s, userUUID, "Morning", "A", "B", "C")
	healthy, _ := setupTestRoutine(t, s, userUUID, "Evening", "X", "Y")

	// Simulate a write made outside the reconciler.
	if _, err := s.DB().Exec("UPDATE routine_items SET priority = 7 WHERE uuid = ?", uuids["B"]); err != nil {
		t.Fatalf("failed to corrupt priorities: %v", err)
	}

	issues, err := s.Integrity.CheckDensity(ctx)
	if err != nil {
		t.Fatalf("CheckDensity failed: %v", err)
	}
	if len(issues) != 1 || issues[0].RoutineUUID != broken.UUID {
		t.Fatalf("expected one issue for %s, got %+v", broken.UUID, issues)
	}
	if got := issues[0].Priorities; len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 7 {
		t.Errorf("priorities = %v, want [1 3 7]", got)
	}

	n, err := s.Integrity.Compact(ctx, broken.UUID)
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if n != 2 {
		t.Errorf("renumbered = %d, want 2", n)
	}
	assertOrder(t, order(t, s, userUUID, broken.UUID), "A", "C", "B")

	n, err = s.Integrity.Compact(ctx, healthy.UUID)
	if err != nil || n != 0 {
		t.Errorf("Compact on healthy routine = %d, %v", n, err)
	}

	issues, err = s.Integrity.CheckDensity(ctx)
	if err != nil {
		t.Fatalf("CheckDensity failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("expected no issues after compaction, got %+v", issues)
	}
}
