package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Export reads every user, routine, item, and day page into a snapshot and
// stamps it with its revision.
func Export(ctx context.Context, db *sql.DB) (*Snapshot, error) {
	snap := &Snapshot{
		Meta:     Meta{SchemaVersion: SchemaVersion},
		Users:    map[string]UserEntry{},
		Routines: map[string]RoutineEntry{},
		Items:    map[string]ItemEntry{},
		DayPages: map[string]DayPageEntry{},
	}

	steps := []struct {
		name string
		fn   func(context.Context, *sql.DB, *Snapshot) error
	}{
		{"users", exportUsers},
		{"routines", exportRoutines},
		{"items", exportItems},
		{"day pages", exportDayPages},
	}
	for _, step := range steps {
		if err := step.fn(ctx, db, snap); err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", step.name, err)
		}
	}

	rev, err := ComputeRev(snap)
	if err != nil {
		return nil, err
	}
	snap.Meta.SnapshotRev = rev
	snap.Meta.GeneratedAt = FormatTimestamp(time.Now())
	return snap, nil
}

func exportUsers(ctx context.Context, db *sql.DB, snap *Snapshot) error {
	rows, err := db.QueryContext(ctx, "SELECT uuid, id, username, created_at FROM users")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var uuid string
		var e UserEntry
		var created time.Time
		if err := rows.Scan(&uuid, &e.ID, &e.Username, &created); err != nil {
			return err
		}
		e.CreatedAt = FormatTimestamp(created)
		snap.Users[uuid] = e
	}
	return rows.Err()
}

func exportRoutines(ctx context.Context, db *sql.DB, snap *Snapshot) error {
	rows, err := db.QueryContext(ctx, "SELECT uuid, id, user_uuid, name, active, etag, created_at, updated_at FROM routines")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var uuid string
		var e RoutineEntry
		var created, updated time.Time
		if err := rows.Scan(&uuid, &e.ID, &e.UserUUID, &e.Name, &e.Active, &e.ETag, &created, &updated); err != nil {
			return err
		}
		e.CreatedAt, e.UpdatedAt = FormatTimestamp(created), FormatTimestamp(updated)
		snap.Routines[uuid] = e
	}
	return rows.Err()
}

func exportItems(ctx context.Context, db *sql.DB, snap *Snapshot) error {
	rows, err := db.QueryContext(ctx, `SELECT uuid, id, routine_uuid, title, description, active, priority,
		etag, created_at, updated_at FROM routine_items`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var uuid string
		var e ItemEntry
		var description sql.NullString
		var created, updated time.Time
		if err := rows.Scan(&uuid, &e.ID, &e.RoutineUUID, &e.Title, &description, &e.Active, &e.Priority,
			&e.ETag, &created, &updated); err != nil {
			return err
		}
		e.Description = description.String
		e.CreatedAt, e.UpdatedAt = FormatTimestamp(created), FormatTimestamp(updated)
		snap.Items[uuid] = e
	}
	return rows.Err()
}

func exportDayPages(ctx context.Context, db *sql.DB, snap *Snapshot) error {
	rows, err := db.QueryContext(ctx, `SELECT uuid, id, user_uuid, date, event, wake_up_time, sleep_time, quote,
		lesson_of_day, positives, negatives, notes_tomorrow, financial_notes, rating, emoji,
		etag, created_at, updated_at FROM day_pages`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var uuid string
		var e DayPageEntry
		var text [10]sql.NullString
		var rating sql.NullInt64
		var created, updated time.Time
		if err := rows.Scan(&uuid, &e.ID, &e.UserUUID, &e.Date, &text[0], &text[1], &text[2], &text[3],
			&text[4], &text[5], &text[6], &text[7], &text[8], &rating, &text[9],
			&e.ETag, &created, &updated); err != nil {
			return err
		}
		e.Event, e.WakeUpTime, e.SleepTime, e.Quote = text[0].String, text[1].String, text[2].String, text[3].String
		e.LessonOfDay, e.Positives, e.Negatives = text[4].String, text[5].String, text[6].String
		e.NotesTomorrow, e.FinancialNotes, e.Emoji = text[7].String, text[8].String, text[9].String
		e.Rating = int(rating.Int64)
		e.CreatedAt, e.UpdatedAt = FormatTimestamp(created), FormatTimestamp(updated)
		snap.DayPages[uuid] = e
	}
	return rows.Err()
}
