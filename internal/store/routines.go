package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lherron/daybook/internal/domain"
	"github.com/lherron/daybook/internal/events"
	"github.com/lherron/daybook/internal/id"
)

// RoutineStore handles routine persistence operations.
type RoutineStore struct {
	store *Store
}

// RoutineUpdateParams lists the routine fields to change. Nil leaves a field as is.
type RoutineUpdateParams struct {
	Name   *string
	Active *bool
}

const routineColumns = "r.uuid, r.id, r.user_uuid, r.name, r.active, r.etag, r.created_at, r.updated_at"

// Create creates a routine for the user. The name is trimmed and title-cased
// and must be unique for that user.
func (rs *RoutineStore) Create(ctx context.Context, userUUID, name string) (*domain.Routine, error) {
	name = domain.NormalizeTitle(name)
	if err := domain.ValidateName(name); err != nil {
		return nil, err
	}

	var routine *domain.Routine
	err := rs.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		uuid := id.New()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO routines (uuid, id, user_uuid, name)
			VALUES (?, '', ?, ?)
		`, uuid, userUUID, name)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("routine %q: %w", name, domain.ErrDuplicateName)
			}
			return fmt.Errorf("failed to create routine: %w", err)
		}

		routine, err = getRoutine(ctx, tx, userUUID, uuid)
		if err != nil {
			return err
		}

		if err := ew.LogRoutineCreated(ctx, tx, routine); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return routine, nil
}

// Update renames or (de)activates a routine and logs a routine.updated event.
func (rs *RoutineStore) Update(ctx context.Context, userUUID, routineUUID string, params RoutineUpdateParams, ifMatch int64) (*domain.Routine, error) {
	var routine *domain.Routine

	err := rs.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		current, err := getRoutine(ctx, tx, userUUID, routineUUID)
		if err != nil {
			return err
		}
		if err := domain.CheckETag(current.ETag, ifMatch); err != nil {
			return err
		}

		var setClauses []string
		var args []any
		changes := map[string]interface{}{}

		if params.Name != nil {
			name := domain.NormalizeTitle(*params.Name)
			if err := domain.ValidateName(name); err != nil {
				return err
			}
			if name != current.Name {
				setClauses = append(setClauses, "name = ?")
				args = append(args, name)
				changes["name"] = name
			}
		}
		if params.Active != nil && *params.Active != current.Active {
			setClauses = append(setClauses, "active = ?")
			args = append(args, *params.Active)
			changes["active"] = *params.Active
		}

		if len(setClauses) == 0 {
			routine = current
			return nil
		}

		setClauses = append(setClauses, "etag = etag + 1", "updated_at = "+nowSQL)
		args = append(args, routineUUID)

		query := fmt.Sprintf("UPDATE routines SET %s WHERE uuid = ?", strings.Join(setClauses, ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("routine %q: %w", changes["name"], domain.ErrDuplicateName)
			}
			return fmt.Errorf("failed to update routine: %w", err)
		}

		routine, err = getRoutine(ctx, tx, userUUID, routineUUID)
		if err != nil {
			return err
		}

		if err := ew.LogRoutineUpdated(ctx, tx, routine, changes); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return routine, nil
}

// Delete removes a routine together with all of its items.
func (rs *RoutineStore) Delete(ctx context.Context, userUUID, routineUUID string, ifMatch int64) error {
	return rs.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		current, err := getRoutine(ctx, tx, userUUID, routineUUID)
		if err != nil {
			return err
		}
		if err := domain.CheckETag(current.ETag, ifMatch); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM routine_items WHERE routine_uuid = ?", routineUUID)
		if err != nil {
			return fmt.Errorf("failed to delete routine items: %w", err)
		}
		itemsDeleted, _ := res.RowsAffected()

		if _, err := tx.ExecContext(ctx, "DELETE FROM routines WHERE uuid = ?", routineUUID); err != nil {
			return fmt.Errorf("failed to delete routine: %w", err)
		}

		if err := ew.LogRoutineDeleted(ctx, tx, current, itemsDeleted); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

// Get returns a routine owned by the user.
func (rs *RoutineStore) Get(ctx context.Context, userUUID, routineUUID string) (*domain.Routine, error) {
	return getRoutine(ctx, rs.store.db, userUUID, routineUUID)
}

// List returns the user's routines ordered by name, with item counts.
func (rs *RoutineStore) List(ctx context.Context, userUUID string, includeInactive bool) ([]domain.Routine, error) {
	query := `
		SELECT ` + routineColumns + `,
			(SELECT COUNT(*) FROM routine_items i WHERE i.routine_uuid = r.uuid) AS item_count
		FROM routines r
		WHERE r.user_uuid = ?`
	if !includeInactive {
		query += " AND r.active = 1"
	}
	query += " ORDER BY r.name"

	rows, err := rs.store.db.QueryContext(ctx, query, userUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list routines: %w", err)
	}
	defer rows.Close()

	var routines []domain.Routine
	for rows.Next() {
		var r domain.Routine
		if err := rows.Scan(&r.UUID, &r.ID, &r.UserUUID, &r.Name, &r.Active, &r.ETag,
			&r.CreatedAt, &r.UpdatedAt, &r.ItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan routine: %w", err)
		}
		routines = append(routines, r)
	}
	return routines, rows.Err()
}

// Resolve looks a routine up by friendly ID, UUID, or case-insensitive name.
func (rs *RoutineStore) Resolve(ctx context.Context, userUUID, ref string) (*domain.Routine, error) {
	ref = strings.TrimSpace(ref)
	base := "SELECT " + routineColumns + " FROM routines r WHERE r.user_uuid = ? AND "

	var row *sql.Row
	switch {
	case id.IsType(ref, id.TypeRoutine):
		row = rs.store.db.QueryRowContext(ctx, base+"r.id = ?", userUUID, strings.ToUpper(ref))
	case id.IsUUID(ref):
		row = rs.store.db.QueryRowContext(ctx, base+"r.uuid = ?", userUUID, ref)
	default:
		row = rs.store.db.QueryRowContext(ctx, base+"r.name = ? COLLATE NOCASE", userUUID, domain.NormalizeTitle(ref))
	}

	r, err := scanRoutine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(domain.ResourceRoutine, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get routine: %w", err)
	}
	return r, nil
}

func getRoutine(ctx context.Context, q queryer, userUUID, routineUUID string) (*domain.Routine, error) {
	r, err := scanRoutine(q.QueryRowContext(ctx,
		"SELECT "+routineColumns+" FROM routines r WHERE r.uuid = ? AND r.user_uuid = ?",
		routineUUID, userUUID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(domain.ResourceRoutine, routineUUID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get routine: %w", err)
	}
	return r, nil
}

func scanRoutine(row rowScanner) (*domain.Routine, error) {
	var r domain.Routine
	if err := row.Scan(&r.UUID, &r.ID, &r.UserUUID, &r.Name, &r.Active, &r.ETag, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}
