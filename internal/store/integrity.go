package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lherron/daybook/internal/db"
	"github.com/lherron/daybook/internal/domain"
	"github.com/lherron/daybook/internal/events"
	"github.com/lherron/daybook/internal/ordering"
)

// IntegrityStore checks and repairs the per-routine priority sequences.
type IntegrityStore struct {
	store *Store
}

// DensityIssue describes a routine whose priorities are not exactly 1..N.
type DensityIssue struct {
	RoutineUUID string `json:"routine_uuid"`
	RoutineID   string `json:"routine_id"`
	Name        string `json:"name"`
	UserUUID    string `json:"user_uuid"`
	Priorities  []int  `json:"priorities"`
	Problem     string `json:"problem"`
}

// CheckDensity scans every routine and reports those that break the ordering invariant.
func (is *IntegrityStore) CheckDensity(ctx context.Context) ([]DensityIssue, error) {
	rows, err := is.store.db.QueryContext(ctx, `
		SELECT r.uuid, r.id, r.name, r.user_uuid, i.priority
		FROM routine_items i JOIN routines r ON r.uuid = i.routine_uuid
		ORDER BY r.id, i.priority, i.created_at, i.rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan priorities: %w", err)
	}
	defer rows.Close()

	var issues []DensityIssue
	var cur *DensityIssue
	flush := func() {
		if cur == nil {
			return
		}
		if err := ordering.CheckDense(cur.Priorities); err != nil {
			cur.Problem = err.Error()
			issues = append(issues, *cur)
		}
	}

	for rows.Next() {
		var routineUUID, routineID, name, userUUID string
		var priority int
		if err := rows.Scan(&routineUUID, &routineID, &name, &userUUID, &priority); err != nil {
			return nil, fmt.Errorf("failed to scan priority: %w", err)
		}
		if cur == nil || cur.RoutineUUID != routineUUID {
			flush()
			cur = &DensityIssue{RoutineUUID: routineUUID, RoutineID: routineID, Name: name, UserUUID: userUUID}
		}
		cur.Priorities = append(cur.Priorities, priority)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	flush()

	return issues, nil
}

// Compact renumbers a routine's items to 1..N, keeping their current order
// (priority, then creation time). It returns the number of items renumbered.
func (is *IntegrityStore) Compact(ctx context.Context, routineUUID string) (int, error) {
	var renumbered int

	err := is.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		var userUUID string
		err := tx.QueryRowContext(ctx, "SELECT user_uuid FROM routines WHERE uuid = ?", routineUUID).Scan(&userUUID)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(domain.ResourceRoutine, routineUUID)
		}
		if err != nil {
			return fmt.Errorf("failed to get routine: %w", err)
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT uuid, priority FROM routine_items
			WHERE routine_uuid = ?
			ORDER BY priority, created_at, rowid
		`, routineUUID)
		if err != nil {
			return fmt.Errorf("failed to list routine items: %w", err)
		}
		type slot struct {
			uuid     string
			priority int
		}
		var slots []slot
		for rows.Next() {
			var s slot
			if err := rows.Scan(&s.uuid, &s.priority); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan routine item: %w", err)
			}
			slots = append(slots, s)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for i, s := range slots {
			if s.priority == i+1 {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE routine_items SET priority = ?, etag = etag + 1 WHERE uuid = ?",
				i+1, s.uuid,
			); err != nil {
				return fmt.Errorf("failed to renumber routine item: %w", err)
			}
			renumbered++
		}

		if renumbered == 0 {
			return nil
		}
		is.store.logger.Info("routine compacted", "routine", routineUUID, "renumbered", renumbered)
		if err := ew.LogRoutineCompacted(ctx, tx, userUUID, routineUUID, renumbered); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})

	return renumbered, err
}

// SequenceDrifts reports friendly-ID sequences that fell behind their tables.
func (is *IntegrityStore) SequenceDrifts(ctx context.Context) ([]db.SequenceDrift, error) {
	return db.CheckSequences(ctx, is.store.db)
}

// FixSequenceDrifts advances drifted sequences to the highest existing ID.
func (is *IntegrityStore) FixSequenceDrifts(ctx context.Context) ([]db.SequenceDrift, error) {
	drifts, err := db.RepairSequences(ctx, is.store.db)
	for _, d := range drifts {
		is.store.logger.Info("sequence advanced", "sequence", d.Name, "from", d.Current, "to", d.MaxID)
	}
	return drifts, err
}
