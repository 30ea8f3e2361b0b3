package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/lherron/daybook/internal/db"
	"github.com/lherron/daybook/internal/domain"
	"github.com/lherron/daybook/internal/ordering"
)

// Import validates snap and loads it into the database in one transaction.
// Friendly IDs, etags, and timestamps are kept as recorded.
func Import(ctx context.Context, database *sql.DB, snap *Snapshot, opts ImportOptions) (*ImportResult, error) {
	if err := Validate(snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}

	result := &ImportResult{SnapshotRev: snap.Meta.SnapshotRev, Counts: snap.Counts(), DryRun: opts.DryRun}

	if !opts.Force {
		var users int
		if err := database.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&users); err != nil {
			return nil, fmt.Errorf("failed to check database: %w", err)
		}
		if users > 0 {
			return nil, fmt.Errorf("database is not empty (use --force to replace its contents)")
		}
	}
	if opts.DryRun {
		return result, nil
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if opts.Force {
		for _, table := range []string{"day_pages", "routine_items", "routines", "users", "event_log"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return nil, fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
	}

	steps := []struct {
		name string
		fn   func(context.Context, *sql.Tx, *Snapshot) error
	}{
		{"users", importUsers},
		{"routines", importRoutines},
		{"items", importItems},
		{"day pages", importDayPages},
	}
	for _, step := range steps {
		if err := step.fn(ctx, tx, snap); err != nil {
			return nil, fmt.Errorf("failed to import %s: %w", step.name, err)
		}
	}

	if _, err := db.RepairSequences(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to advance ID sequences: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	return result, nil
}

// Validate checks references between entries, date and rating ranges, and
// that every routine's item priorities run 1..N.
func Validate(snap *Snapshot) error {
	if snap.Meta.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema_version %d (want %d)", snap.Meta.SchemaVersion, SchemaVersion)
	}

	for uuid, r := range snap.Routines {
		if _, ok := snap.Users[r.UserUUID]; !ok {
			return fmt.Errorf("routine %s references unknown user %s", uuid, r.UserUUID)
		}
	}

	byRoutine := make(map[string][]int)
	for uuid, it := range snap.Items {
		if _, ok := snap.Routines[it.RoutineUUID]; !ok {
			return fmt.Errorf("item %s references unknown routine %s", uuid, it.RoutineUUID)
		}
		byRoutine[it.RoutineUUID] = append(byRoutine[it.RoutineUUID], it.Priority)
	}
	for _, routineUUID := range sortedKeys(byRoutine) {
		prios := byRoutine[routineUUID]
		sort.Ints(prios)
		if err := ordering.CheckDense(prios); err != nil {
			return fmt.Errorf("routine %s: %w", routineUUID, err)
		}
	}

	for uuid, p := range snap.DayPages {
		if _, ok := snap.Users[p.UserUUID]; !ok {
			return fmt.Errorf("day page %s references unknown user %s", uuid, p.UserUUID)
		}
		if err := domain.ValidateDate(p.Date); err != nil {
			return fmt.Errorf("day page %s: %w", uuid, err)
		}
		if p.Rating != 0 {
			r := p.Rating
			if err := domain.ValidateRating(&r); err != nil {
				return fmt.Errorf("day page %s: %w", uuid, err)
			}
		}
	}
	return nil
}

func importUsers(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	for _, uuid := range sortedKeys(snap.Users) {
		u := snap.Users[uuid]
		if _, err := tx.ExecContext(ctx, "INSERT INTO users (uuid, id, username, created_at) VALUES (?, ?, ?, ?)",
			uuid, u.ID, u.Username, u.CreatedAt); err != nil {
			return fmt.Errorf("user %s: %w", u.Username, err)
		}
	}
	return nil
}

func importRoutines(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	for _, uuid := range sortedKeys(snap.Routines) {
		r := snap.Routines[uuid]
		if _, err := tx.ExecContext(ctx, `INSERT INTO routines (uuid, id, user_uuid, name, active, etag, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid, r.ID, r.UserUUID, r.Name, r.Active, r.ETag, r.CreatedAt, r.UpdatedAt); err != nil {
			return fmt.Errorf("routine %s: %w", r.Name, err)
		}
	}
	return nil
}

func importItems(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	for _, uuid := range sortedKeys(snap.Items) {
		it := snap.Items[uuid]
		if _, err := tx.ExecContext(ctx, `INSERT INTO routine_items (uuid, id, routine_uuid, title, description, active,
			priority, etag, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid, it.ID, it.RoutineUUID, it.Title, nullable(it.Description), it.Active,
			it.Priority, it.ETag, it.CreatedAt, it.UpdatedAt); err != nil {
			return fmt.Errorf("item %s: %w", it.Title, err)
		}
	}
	return nil
}

func importDayPages(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	for _, uuid := range sortedKeys(snap.DayPages) {
		p := snap.DayPages[uuid]
		var rating any
		if p.Rating != 0 {
			rating = p.Rating
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO day_pages (uuid, id, user_uuid, date, event, wake_up_time,
			sleep_time, quote, lesson_of_day, positives, negatives, notes_tomorrow, financial_notes, rating, emoji,
			etag, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid, p.ID, p.UserUUID, p.Date, nullable(p.Event), nullable(p.WakeUpTime),
			nullable(p.SleepTime), nullable(p.Quote), nullable(p.LessonOfDay), nullable(p.Positives),
			nullable(p.Negatives), nullable(p.NotesTomorrow), nullable(p.FinancialNotes), rating, nullable(p.Emoji),
			p.ETag, p.CreatedAt, p.UpdatedAt); err != nil {
			return fmt.Errorf("day page %s: %w", p.Date, err)
		}
	}
	return nil
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
