package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/lherron/daybook/internal/domain"
	"github.com/lherron/daybook/internal/events"
)

func TestItemStore_CreateAppends(t *testing.T) {
	s, userUUID := setupTestStore(t)
	routine, _ := setupTestRoutine(t, s, userUUID, "Morning", "A", "B")

	item, err := s.Items.Create(context.Background(), userUUID, ItemCreateParams{
		RoutineUUID: routine.UUID,
		Title:       "E",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if item.Priority != 3 {
		t.Errorf("expected priority 3, got %d", item.Priority)
	}
	if item.ID == "" || item.ETag != 1 || !item.Active {
		t.Errorf("unexpected item defaults: %+v", item)
	}
	assertOrder(t, order(t, s, userUUID, routine.UUID), "A", "B", "E")
}

func TestItemStore_CreateNormalizesTitle(t *testing.T) {
	s, userUUID := setupTestStore(t)
	routine, _ := setupTestRoutine(t, s, userUUID, "  morning routine ")

	if routine.Name != "Morning Routine" {
		t.Errorf("routine name = %q, want %q", routine.Name, "Morning Routine")
	}

	item, err := s.Items.Create(context.Background(), userUUID, ItemCreateParams{
		RoutineUUID: routine.UUID,
		Title:       "  brushing teeth",
		Description: strPtr("two minutes"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if item.Title != "Brushing Teeth" {
		t.Errorf("title = %q, want %q", item.Title, "Brushing Teeth")
	}
	if item.Description == nil || *item.Description != "two minutes" {
		t.Errorf("description = %v, want %q", item.Description, "two minutes")
	}
}

func TestItemStore_CreateInsertShiftsTail(t *testing.T) {
	s, userUUID := setupTestStore(t)
	routine, uuids := setupTestRoutine(t, s, userUUID, "Morning", "A", "B", "C", "D")
	ctx := context.Background()

	before, err := s.Items.Get(ctx, userUUID, uuids["C"])
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	item, err := s.Items.Create(ctx, userUUID, ItemCreateParams{
		RoutineUUID: routine.UUID,
		Title:       "X",
		Priority:    intPtr(2),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if item.Priority != 2 {
		t.Errorf("expected priority 2, got %d", item.Priority)
	}
	assertOrder(t, order(t, s, userUUID, routine.UUID), "A", "X", "B", "C", "D")

	after, err := s.Items.Get(ctx, userUUID, uuids["C"])
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if after.ETag != before.ETag+1 {
		t.Errorf("shifted sibling etag = %d, want %d", after.ETag, before.ETag+1)
	}
}

func TestItemStore_CreateClampsPastEnd(t *testing.T) {
	s, userUUID := setupTestStore(t)
	routine, _ := setupTestRoutine(t, s, userUUID, "Morning", "A", "B")

	item, err := s.Items.Create(context.Background(), userUUID, ItemCreateParams{
		RoutineUUID: routine.UUID,
		Title:       "Z",
		Priority:    intPtr(99),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if item.Priority != 3 {
		t.Errorf("expected clamped priority 3, got %d", item.Priority)
	}
	assertOrder(t, order(t, s, userUUID, routine.UUID), "A", "B", "Z")
}

func TestItemStore_RejectsInvalidPriority(t *testing.T) {
	s, userUUID := setupTestStore(t)
	routine, uuids := setupTestRoutine(t, s, userUUID, "Morning", "A")
	ctx := context.Background()

	_, err := s.Items.Create(ctx, userUUID, ItemCreateParams{RoutineUUID: routine.UUID, Title: "B", Priority: intPtr(0)})
	if !errors.Is(err, domain.ErrInvalidPriority) {
		t.Errorf("Create: expected ErrInvalidPriority, got %v", err)
	}

	_, err = s.Items.Update(ctx, userUUID, uuids["A"], ItemUpdateParams{Priority: intPtr(-3)}, 0)
	if !errors.Is(err, domain.ErrInvalidPriority) {
		t.Errorf("Update: expected ErrInvalidPriority, got %v", err)
	}
}

func TestItemStore_MoveToFrontAndBack(t *testing.T) {
	s, userUUID := setupTestStore(t)
	routine, uuids := setupTestRoutine(t, s, userUUID, "Morning", "A", "B", "C", "D")
	ctx := context.Background()

	item, err := s.Items.Update(ctx, userUUID, uuids["C"], ItemUpdateParams{Priority: intPtr(1)}, 0)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if item.Priority != 1 {
		t.Errorf("expected priority 1, got %d", item.Priority)
	}
	assertOrder(t, order(t, s, userUUID, routine.UUID), "C", "A", "B", "D")

	if _, err := s.Items.Update(ctx, userUUID, uuids["C"], ItemUpdateParams{Priority: intPtr(3)}, 0); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	assertOrder(t, order(t, s, userUUID, routine.UUID), "A", "B", "C", "D")
}

func TestItemStore_UpdateWithoutPositionKeepsPriority(t *testing.T) {
	s, userUUID := setupTestStore(t)
	routine, uuids := setupTestRoutine(t, s, userUUID, "Morning", "A", "B", "C")

	item, err := s.Items.Update(context.Background(), userUUID, uuids["A"], ItemUpdateParams{
		Title:  strPtr("first thing"),
		Active: boolPtr(false),
	}, 0)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if item.Priority != 1 || item.Title != "First Thing" || item.Active {
		t.Errorf("unexpected item after update: %+v", item)
	}
	assertOrder(t, order(t, s, userUUID, routine.UUID), "First Thing", "B", "C")
}

func TestItemStore_ToEndWithinRoutine(t *testing.T) {
	s, userUUID := setupTestStore(t)
	routine, uuids := setupTestRoutine(t, s, userUUID, "Morning", "A", "B", "C")

	item, err := s.Items.Update(context.Background(), userUUID, uuids["A"], ItemUpdateParams{ToEnd: true}, 0)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if item.Priority != 3 {
		t.Errorf("expected priority 3, got %d", item.Priority)
	}
	assertOrder(t, order(t, s, userUUID, routine.UUID), "B", "C", "A")
}

func TestItemStore_MoveAcrossRoutines(t *testing.T) {
	s, userUUID := setupTestStore(t)
	r1, uuids := setupTestRoutine(t, s, userUUID, "Morning", "A", "B", "C")
	r2, _ := setupTestRoutine(t, s, userUUID, "Evening", "X")

	item, err := s.Items.Move(context.Background(), userUUID, uuids["B"], r2.UUID, intPtr(1), 0)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if item.RoutineUUID != r2.UUID || item.Priority != 1 {
		t.Errorf("moved item = %+v", item)
	}
	assertOrder(t, order(t, s, userUUID, r1.UUID), "A", "C")
	assertOrder(t, order(t, s, userUUID, r2.UUID), "B", "X")
}

func TestItemStore_MoveAcrossRoutinesAppends(t *testing.T) {
	s, userUUID := setupTestStore(t)
	r1, uuids := setupTestRoutine(t, s, userUUID, "Morning", "A", "B")
	r2, _ := setupTestRoutine(t, s, userUUID, "Evening", "X", "Y")

	item, err := s.Items.Move(context.Background(), userUUID, uuids["A"], r2.UUID, nil, 0)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if item.Priority != 3 {
		t.Errorf("expected priority 3, got %d", item.Priority)
	}
	assertOrder(t, order(t, s, userUUID, r1.UUID), "B")
	assertOrder(t, order(t, s, userUUID, r2.UUID), "X", "Y", "A")
}

func TestItemStore_MoveIntoOtherUsersRoutine(t *testing.T) {
	s, userUUID := setupTestStore(t)
	ctx := context.Background()
	r1, uuids := setupTestRoutine(t, s, userUUID, "Morning", "A", "B")

	bob, err := s.Users.Create(ctx, "bob")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	foreign, _ := setupTestRoutine(t, s, bob.UUID, "Morning", "Z")

	_, err = s.Items.Move(ctx, userUUID, uuids["A"], foreign.UUID, intPtr(1), 0)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	assertOrder(t, order(t, s, userUUID, r1.UUID), "A", "B")
	assertOrder(t, order(t, s, bob.UUID, foreign.UUID), "Z")
}

func TestItemStore_DeleteCompacts(t *testing.T) {
	s, userUUID := setupTestStore(t)
	routine, uuids := setupTestRoutine(t, s, userUUID, "Morning", "A", "B", "C", "D")

	if err := s.Items.Delete(context.Background(), userUUID, uuids["B"], 0); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	assertOrder(t, order(t, s, userUUID, routine.UUID), "A", "C", "D")

	_, err := s.Items.Get(context.Background(), userUUID, uuids["B"])
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected deleted item to be gone, got %v", err)
	}
}

func TestItemStore_MissingItem(t *testing.T) {
	s, userUUID := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Items.Update(ctx, userUUID, "00000000-0000-0000-0000-000000000000", ItemUpdateParams{Priority: intPtr(1)}, 0)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Update: expected ErrNotFound, got %v", err)
	}

	err = s.Items.Delete(ctx, userUUID, "00000000-0000-0000-0000-000000000000", 0)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestItemStore_ETagMismatch(t *testing.T) {
	s, userUUID := setupTestStore(t)
	routine, uuids := setupTestRoutine(t, s, userUUID, "Morning", "A", "B", "C")
	ctx := context.Background()

	stale, err := s.Items.Get(ctx, userUUID, uuids["C"])
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// Moving A behind C shifts C, which bumps its etag.
	if _, err := s.Items.Update(ctx, userUUID, uuids["A"], ItemUpdateParams{Priority: intPtr(3)}, 0); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	_, err = s.Items.Update(ctx, userUUID, uuids["C"], ItemUpdateParams{Priority: intPtr(1)}, stale.ETag)
	var mismatch *domain.ETagMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ETagMismatchError, got %v", err)
	}
	if mismatch.Expected != stale.ETag {
		t.Errorf("mismatch expected = %d, want %d", mismatch.Expected, stale.ETag)
	}
	assertOrder(t, order(t, s, userUUID, routine.UUID), "B", "C", "A")

	err = s.Items.Delete(ctx, userUUID, uuids["C"], stale.ETag)
	if !errors.As(err, &mismatch) {
		t.Fatalf("Delete: expected ETagMismatchError, got %v", err)
	}
}

func TestItemStore_FailedWriteRollsBackShifts(t *testing.T) {
	s, userUUID := setupTestStore(t)
	routine, uuids := setupTestRoutine(t, s, userUUID, "Morning", "A", "B", "C", "D")
	ctx := context.Background()

	_, err := s.DB().Exec(`
		CREATE TRIGGER reject_boom BEFORE UPDATE OF title ON routine_items
		WHEN NEW.title = 'Boom'
		BEGIN SELECT RAISE(ABORT, 'boom rejected'); END
	`)
	if err != nil {
		t.Fatalf("failed to create trigger: %v", err)
	}

	_, err = s.Items.Update(ctx, userUUID, uuids["D"], ItemUpdateParams{
		Title:    strPtr("boom"),
		Priority: intPtr(1),
	}, 0)
	if err == nil {
		t.Fatal("expected update to fail")
	}
	assertOrder(t, order(t, s, userUUID, routine.UUID), "A", "B", "C", "D")
}

func TestItemStore_ResolveAndIsolation(t *testing.T) {
	s, userUUID := setupTestStore(t)
	ctx := context.Background()
	_, uuids := setupTestRoutine(t, s, userUUID, "Morning", "A")

	item, err := s.Items.Get(ctx, userUUID, uuids["A"])
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	byID, err := s.Items.Resolve(ctx, userUUID, item.ID)
	if err != nil || byID.UUID != item.UUID {
		t.Fatalf("Resolve(%s) = %v, %v", item.ID, byID, err)
	}

	bob, err := s.Users.Create(ctx, "bob")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if _, err := s.Items.Resolve(ctx, bob.UUID, item.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected other user's item to be hidden, got %v", err)
	}
	if _, err := s.Items.Resolve(ctx, userUUID, "brush"); err == nil {
		t.Error("expected error for non-ID reference")
	}
}

func TestItemStore_ListHidesInactive(t *testing.T) {
	s, userUUID := setupTestStore(t)
	routine, uuids := setupTestRoutine(t, s, userUUID, "Morning", "A", "B", "C")
	ctx := context.Background()

	if _, err := s.Items.Update(ctx, userUUID, uuids["B"], ItemUpdateParams{Active: boolPtr(false)}, 0); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	items, err := s.Items.List(ctx, userUUID, routine.UUID, ItemListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 || items[0].Title != "A" || items[1].Title != "C" {
		t.Errorf("active items = %+v", items)
	}
	// Inactive items keep their slot.
	if items[1].Priority != 3 {
		t.Errorf("C priority = %d, want 3", items[1].Priority)
	}
}

func TestItemStore_LogsEvents(t *testing.T) {
	s, userUUID := setupTestStore(t)
	routine, uuids := setupTestRoutine(t, s, userUUID, "Morning", "A", "B")
	ctx := context.Background()

	if _, err := s.Items.Update(ctx, userUUID, uuids["B"], ItemUpdateParams{Priority: intPtr(1)}, 0); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	evts, err := s.Events.Recent(ctx, EventFilter{ResourceUUID: uuids["B"]})
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(evts) != 2 {
		t.Fatalf("expected 2 events for B, got %d", len(evts))
	}
	if evts[0].EventType != events.ItemUpdated || evts[1].EventType != events.ItemCreated {
		t.Errorf("event types = %s, %s", evts[0].EventType, evts[1].EventType)
	}

	payload, err := evts[0].PayloadMap()
	if err != nil {
		t.Fatalf("PayloadMap failed: %v", err)
	}
	to, ok := payload["to"].(map[string]interface{})
	if !ok {
		t.Fatalf("payload missing move target: %v", payload)
	}
	if to["routine_uuid"] != routine.UUID || to["priority"] != float64(1) {
		t.Errorf("payload to = %v", to)
	}
	if payload["shifted"] != float64(1) {
		t.Errorf("payload shifted = %v, want 1", payload["shifted"])
	}
}

func TestItemStore_ConcurrentWritesStayDense(t *testing.T) {
	s, userUUID := setupTestStore(t)
	r1, _ := setupTestRoutine(t, s, userUUID, "Morning", "Seed 1", "Seed 2")
	r2, _ := setupTestRoutine(t, s, userUUID, "Evening", "Seed 3")
	ctx := context.Background()

	const workers = 8
	const perWorker = 6

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker*2)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				item, err := s.Items.Create(ctx, userUUID, ItemCreateParams{
					RoutineUUID: r1.UUID,
					Title:       fmt.Sprintf("w%d item %d", w, i),
					Priority:    intPtr(1 + (w+i)%3),
				})
				if err != nil {
					errs <- err
					continue
				}
				if i%2 == 0 {
					if _, err := s.Items.Move(ctx, userUUID, item.UUID, r2.UUID, intPtr(1), 0); err != nil {
						errs <- err
					}
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent write failed: %v", err)
	}

	got1 := order(t, s, userUUID, r1.UUID)
	got2 := order(t, s, userUUID, r2.UUID)
	if total := len(got1) + len(got2); total != 3+workers*perWorker {
		t.Errorf("expected %d items, got %d", 3+workers*perWorker, total)
	}

	issues, err := s.Integrity.CheckDensity(ctx)
	if err != nil {
		t.Fatalf("CheckDensity failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("expected dense routines, got %+v", issues)
	}
}
