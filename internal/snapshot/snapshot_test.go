package snapshot

import (
	"context"
	"strings"
	"testing"

	"github.com/lherron/daybook/internal/store"
	"github.com/lherron/daybook/internal/testutil"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// seed fills a store with a routine of three items and two day pages.
func seed(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, userUUID, _ := testutil.TempStore(t, "alice")

	routine, err := s.Routines.Create(ctx, userUUID, "Morning")
	testutil.AssertNoError(t, err)
	for _, title := range []string{"Stretch", "Meditate", "Journal"} {
		_, err := s.Items.Create(ctx, userUUID, store.ItemCreateParams{RoutineUUID: routine.UUID, Title: title, Description: strPtr(title + " notes")})
		testutil.AssertNoError(t, err)
	}
	_, _, err = s.DayPages.Upsert(ctx, userUUID, "2026-10-18", store.DayPageFields{Event: strPtr("Hike"), Rating: intPtr(8)}, 0)
	testutil.AssertNoError(t, err)
	_, _, err = s.DayPages.Upsert(ctx, userUUID, "2026-10-19", store.DayPageFields{Quote: strPtr("Less, but better")}, 0)
	testutil.AssertNoError(t, err)
	return s
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := seed(t)

	snap, err := Export(ctx, src.DB().DB)
	testutil.AssertNoError(t, err)
	if got := snap.Counts(); got != (Counts{Users: 1, Routines: 1, Items: 3, DayPages: 2}) {
		t.Fatalf("Counts() = %+v", got)
	}
	if !strings.HasPrefix(snap.Meta.SnapshotRev, "sha256:") || snap.Meta.GeneratedAt == "" {
		t.Fatalf("unexpected meta: %+v", snap.Meta)
	}

	data, err := CanonicalJSON(snap)
	testutil.AssertNoError(t, err)
	loaded, err := Decode(data)
	testutil.AssertNoError(t, err)

	dst, _ := testutil.TempDB(t)
	result, err := Import(ctx, dst.DB, loaded, ImportOptions{})
	testutil.AssertNoError(t, err)
	if result.Items != 3 || result.DryRun {
		t.Errorf("unexpected result: %+v", result)
	}

	again, err := Export(ctx, dst.DB)
	testutil.AssertNoError(t, err)
	if again.Meta.SnapshotRev != snap.Meta.SnapshotRev {
		t.Errorf("re-export rev = %s, want %s", again.Meta.SnapshotRev, snap.Meta.SnapshotRev)
	}

	// Imported data is usable through the store, and new IDs do not collide.
	s := store.New(dst)
	var userUUID string
	for uuid := range loaded.Users {
		userUUID = uuid
	}
	routine, err := s.Routines.Resolve(ctx, userUUID, "Morning")
	testutil.AssertNoError(t, err)
	item, err := s.Items.Create(ctx, userUUID, store.ItemCreateParams{RoutineUUID: routine.UUID, Title: "Shower", Priority: intPtr(1)})
	testutil.AssertNoError(t, err)
	if item.ID != "I-00004" {
		t.Errorf("new item ID = %s, want I-00004", item.ID)
	}
	items, err := s.Items.List(ctx, userUUID, routine.UUID, store.ItemListOptions{IncludeInactive: true})
	testutil.AssertNoError(t, err)
	if len(items) != 4 || items[0].Title != "Shower" || items[3].Title != "Journal" {
		t.Errorf("unexpected order after import: %+v", items)
	}
}

func TestCanonicalJSONIsDeterministic(t *testing.T) {
	snap, err := Export(context.Background(), seed(t).DB().DB)
	testutil.AssertNoError(t, err)

	a, err := CanonicalJSON(snap)
	testutil.AssertNoError(t, err)
	b, err := CanonicalJSON(snap)
	testutil.AssertNoError(t, err)
	if string(a) != string(b) {
		t.Error("canonical encoding differs between runs")
	}
	if strings.Contains(string(a), "\n") || strings.Index(string(a), `"day_pages"`) > strings.Index(string(a), `"meta"`) {
		t.Errorf("expected compact output with sorted keys: %.80s", a)
	}

	rev1, _ := ComputeRev(snap)
	snap.Meta.GeneratedAt = "2000-01-01T00:00:00.000Z"
	rev2, _ := ComputeRev(snap)
	if rev1 != rev2 {
		t.Error("generated_at must not affect the revision")
	}
}

func TestImportRequiresEmptyDatabase(t *testing.T) {
	ctx := context.Background()
	src := seed(t)
	snap, err := Export(ctx, src.DB().DB)
	testutil.AssertNoError(t, err)

	dst, _, _ := testutil.TempStore(t, "bob")
	if _, err := Import(ctx, dst.DB().DB, snap, ImportOptions{}); err == nil || !strings.Contains(err.Error(), "not empty") {
		t.Fatalf("expected non-empty error, got %v", err)
	}

	result, err := Import(ctx, dst.DB().DB, snap, ImportOptions{Force: true, DryRun: true})
	testutil.AssertNoError(t, err)
	if !result.DryRun {
		t.Error("expected dry run")
	}
	if _, err := dst.Users.Resolve(ctx, "bob"); err != nil {
		t.Errorf("dry run must not change the database: %v", err)
	}

	_, err = Import(ctx, dst.DB().DB, snap, ImportOptions{Force: true})
	testutil.AssertNoError(t, err)
	if _, err := dst.Users.Resolve(ctx, "bob"); err == nil {
		t.Error("force import should replace existing users")
	}
	if _, err := dst.Users.Resolve(ctx, "alice"); err != nil {
		t.Errorf("alice should exist after import: %v", err)
	}
}

func TestValidateRejectsBrokenSnapshots(t *testing.T) {
	base := func() *Snapshot {
		return &Snapshot{
			Meta:     Meta{SchemaVersion: SchemaVersion},
			Users:    map[string]UserEntry{"u1": {ID: "U-00001", Username: "alice"}},
			Routines: map[string]RoutineEntry{"r1": {ID: "R-00001", UserUUID: "u1", Name: "Morning"}},
			Items: map[string]ItemEntry{
				"i1": {ID: "I-00001", RoutineUUID: "r1", Title: "A", Priority: 1},
				"i2": {ID: "I-00002", RoutineUUID: "r1", Title: "B", Priority: 2},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Snapshot)
		want   string
	}{
		{"schema version", func(s *Snapshot) { s.Meta.SchemaVersion = 9 }, "schema_version"},
		{"orphan routine", func(s *Snapshot) { s.Routines["r2"] = RoutineEntry{UserUUID: "nobody"} }, "unknown user"},
		{"orphan item", func(s *Snapshot) { s.Items["i3"] = ItemEntry{RoutineUUID: "nowhere", Priority: 1} }, "unknown routine"},
		{"gap", func(s *Snapshot) { s.Items["i2"] = ItemEntry{RoutineUUID: "r1", Priority: 3} }, "priority 3 at position 2"},
		{"duplicate", func(s *Snapshot) { s.Items["i2"] = ItemEntry{RoutineUUID: "r1", Priority: 1} }, "priority 1 at position 2"},
		{"bad date", func(s *Snapshot) { s.DayPages = map[string]DayPageEntry{"d1": {UserUUID: "u1", Date: "19/10/2026"}} }, "invalid date"},
		{"bad rating", func(s *Snapshot) { s.DayPages = map[string]DayPageEntry{"d1": {UserUUID: "u1", Date: "2026-10-19", Rating: 11}} }, "invalid rating"},
	}

	if err := Validate(base()); err != nil {
		t.Fatalf("base snapshot should be valid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(s)
			err := Validate(s)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	snap, err := Export(context.Background(), seed(t).DB().DB)
	testutil.AssertNoError(t, err)

	result, err := Verify(snap)
	testutil.AssertNoError(t, err)
	if !result.Valid {
		t.Fatalf("fresh export should verify: %s", result.Message)
	}

	for uuid, p := range snap.DayPages {
		p.Quote = "tampered"
		snap.DayPages[uuid] = p
		break
	}
	result, err = Verify(snap)
	testutil.AssertNoError(t, err)
	if result.Valid || !strings.Contains(result.Message, "does not match snapshot_rev") {
		t.Errorf("tampered snapshot verified: %+v", result)
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	if _, err := Decode([]byte(`{"meta": {"schema_version": 1}, "tasks": {}}`)); err == nil {
		t.Error("expected unknown key error")
	}
}
