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
	"github.com/lherron/daybook/internal/ordering"
)

// ItemStore handles routine item persistence. Every write routes through the
// ordering reconciler inside the same transaction as the row mutation.
type ItemStore struct {
	store *Store
}

// ItemCreateParams contains parameters for creating a routine item.
type ItemCreateParams struct {
	RoutineUUID string
	Title       string
	Description *string
	Inactive    bool
	Priority    *int // nil appends to the end of the routine
}

// ItemUpdateParams lists the item fields to change. Nil leaves a field as is.
//
// The item is repositioned when RoutineUUID names a different routine, when
// Priority is set, or when ToEnd is set. Moving to another routine without a
// priority appends it there.
type ItemUpdateParams struct {
	Title       *string
	Description *string // empty string clears
	Active      *bool
	RoutineUUID *string
	Priority    *int
	ToEnd       bool
}

// ItemListOptions filters List.
type ItemListOptions struct {
	IncludeInactive bool
}

const itemColumns = "i.uuid, i.id, i.routine_uuid, i.title, i.description, i.active, i.priority, i.etag, i.created_at, i.updated_at"

// Create inserts a new item into a routine and logs a routine_item.created event.
func (is *ItemStore) Create(ctx context.Context, userUUID string, params ItemCreateParams) (*domain.RoutineItem, error) {
	title := domain.NormalizeTitle(params.Title)
	if err := domain.ValidateTitle(title); err != nil {
		return nil, err
	}
	if err := domain.ValidatePriority(params.Priority); err != nil {
		return nil, err
	}

	var item *domain.RoutineItem
	err := is.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		if _, err := getRoutine(ctx, tx, userUUID, params.RoutineUUID); err != nil {
			return err
		}

		sh := is.store.shifter(tx)
		plan, err := ordering.Reconcile(ctx, sh, nil, ordering.Placement{
			RoutineUUID: params.RoutineUUID,
			Priority:    params.Priority,
		})
		if err != nil {
			return err
		}

		uuid := id.New()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO routine_items (uuid, id, routine_uuid, title, description, active, priority)
			VALUES (?, '', ?, ?, ?, ?, ?)
		`, uuid, params.RoutineUUID, title, emptyToNil(params.Description), !params.Inactive, plan.Priority)
		if err != nil {
			return fmt.Errorf("failed to create routine item: %w", err)
		}

		item, err = getItem(ctx, tx, userUUID, uuid)
		if err != nil {
			return err
		}

		if err := ew.LogItemCreated(ctx, tx, userUUID, item, sh.touched); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Update edits an item and, when requested, moves it within or across
// routines. The current row is read inside the write transaction, so the
// reconciler always plans against the committed position.
func (is *ItemStore) Update(ctx context.Context, userUUID, itemUUID string, params ItemUpdateParams, ifMatch int64) (*domain.RoutineItem, error) {
	if err := domain.ValidatePriority(params.Priority); err != nil {
		return nil, err
	}

	var item *domain.RoutineItem
	err := is.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		current, err := getItem(ctx, tx, userUUID, itemUUID)
		if err != nil {
			return err
		}
		if err := domain.CheckETag(current.ETag, ifMatch); err != nil {
			return err
		}

		var setClauses []string
		var args []any
		changes := map[string]interface{}{}

		if params.Title != nil {
			title := domain.NormalizeTitle(*params.Title)
			if err := domain.ValidateTitle(title); err != nil {
				return err
			}
			if title != current.Title {
				setClauses = append(setClauses, "title = ?")
				args = append(args, title)
				changes["title"] = title
			}
		}
		if params.Description != nil {
			setClauses = append(setClauses, "description = ?")
			args = append(args, emptyToNil(params.Description))
			changes["description"] = *params.Description
		}
		if params.Active != nil && *params.Active != current.Active {
			setClauses = append(setClauses, "active = ?")
			args = append(args, *params.Active)
			changes["active"] = *params.Active
		}

		target, move := placement(current, params)
		if move {
			if target.RoutineUUID != current.RoutineUUID {
				if _, err := getRoutine(ctx, tx, userUUID, target.RoutineUUID); err != nil {
					return err
				}
			}

			sh := is.store.shifter(tx)
			old := ordering.Slot{RoutineUUID: current.RoutineUUID, Priority: current.Priority}
			plan, err := ordering.Reconcile(ctx, sh, &old, target)
			if err != nil {
				return err
			}

			if target.RoutineUUID != current.RoutineUUID || plan.Priority != current.Priority {
				setClauses = append(setClauses, "routine_uuid = ?", "priority = ?")
				args = append(args, target.RoutineUUID, plan.Priority)
				changes["from"] = map[string]interface{}{"routine_uuid": current.RoutineUUID, "priority": current.Priority}
				changes["to"] = map[string]interface{}{"routine_uuid": target.RoutineUUID, "priority": plan.Priority}
				changes["shifted"] = sh.touched
			}
		}

		if len(setClauses) == 0 {
			item = current
			return nil
		}

		setClauses = append(setClauses, "etag = etag + 1", "updated_at = "+nowSQL)
		args = append(args, itemUUID)

		query := fmt.Sprintf("UPDATE routine_items SET %s WHERE uuid = ?", strings.Join(setClauses, ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update routine item: %w", err)
		}

		item, err = getItem(ctx, tx, userUUID, itemUUID)
		if err != nil {
			return err
		}

		if err := ew.LogItemUpdated(ctx, tx, userUUID, item, changes); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Move repositions an item. A nil priority appends it to the routine.
func (is *ItemStore) Move(ctx context.Context, userUUID, itemUUID, routineUUID string, priority *int, ifMatch int64) (*domain.RoutineItem, error) {
	return is.Update(ctx, userUUID, itemUUID, ItemUpdateParams{
		RoutineUUID: &routineUUID,
		Priority:    priority,
		ToEnd:       priority == nil,
	}, ifMatch)
}

// Delete removes an item and closes the gap it leaves in its routine.
func (is *ItemStore) Delete(ctx context.Context, userUUID, itemUUID string, ifMatch int64) error {
	return is.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		current, err := getItem(ctx, tx, userUUID, itemUUID)
		if err != nil {
			return err
		}
		if err := domain.CheckETag(current.ETag, ifMatch); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM routine_items WHERE uuid = ?", itemUUID); err != nil {
			return fmt.Errorf("failed to delete routine item: %w", err)
		}

		sh := is.store.shifter(tx)
		if err := ordering.CloseGap(ctx, sh, ordering.Slot{
			RoutineUUID: current.RoutineUUID,
			Priority:    current.Priority,
		}); err != nil {
			return err
		}

		if err := ew.LogItemDeleted(ctx, tx, userUUID, current, sh.touched); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

// Get returns an item owned by the user.
func (is *ItemStore) Get(ctx context.Context, userUUID, itemUUID string) (*domain.RoutineItem, error) {
	return getItem(ctx, is.store.db, userUUID, itemUUID)
}

// Resolve looks an item up by friendly ID or UUID.
func (is *ItemStore) Resolve(ctx context.Context, userUUID, ref string) (*domain.RoutineItem, error) {
	ref = strings.TrimSpace(ref)
	column := "i.uuid"
	switch {
	case id.IsType(ref, id.TypeItem):
		column = "i.id"
		ref = strings.ToUpper(ref)
	case id.IsUUID(ref):
	default:
		return nil, domain.Invalidf("invalid item reference %q: expected I-00001 or a UUID", ref)
	}

	item, err := scanItem(is.store.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM routine_items i JOIN routines r ON r.uuid = i.routine_uuid
		WHERE `+column+` = ? AND r.user_uuid = ?
	`, ref, userUUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(domain.ResourceRoutineItem, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get routine item: %w", err)
	}
	return item, nil
}

// List returns a routine's items in priority order. Ties, which only a
// damaged database can hold, fall back to creation order.
func (is *ItemStore) List(ctx context.Context, userUUID, routineUUID string, opts ItemListOptions) ([]domain.RoutineItem, error) {
	if _, err := getRoutine(ctx, is.store.db, userUUID, routineUUID); err != nil {
		return nil, err
	}

	query := "SELECT " + itemColumns + " FROM routine_items i WHERE i.routine_uuid = ?"
	if !opts.IncludeInactive {
		query += " AND i.active = 1"
	}
	query += " ORDER BY i.priority, i.created_at, i.rowid"

	rows, err := is.store.db.QueryContext(ctx, query, routineUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list routine items: %w", err)
	}
	defer rows.Close()

	var items []domain.RoutineItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan routine item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// placement decides where an update puts the item and whether it moves at all.
func placement(current *domain.RoutineItem, params ItemUpdateParams) (ordering.Placement, bool) {
	target := ordering.Placement{RoutineUUID: current.RoutineUUID}
	changesRoutine := params.RoutineUUID != nil && *params.RoutineUUID != current.RoutineUUID
	if changesRoutine {
		target.RoutineUUID = *params.RoutineUUID
	}
	if params.Priority != nil && !params.ToEnd {
		target.Priority = params.Priority
	}
	return target, changesRoutine || params.Priority != nil || params.ToEnd
}

func getItem(ctx context.Context, q queryer, userUUID, itemUUID string) (*domain.RoutineItem, error) {
	item, err := scanItem(q.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM routine_items i JOIN routines r ON r.uuid = i.routine_uuid
		WHERE i.uuid = ? AND r.user_uuid = ?
	`, itemUUID, userUUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(domain.ResourceRoutineItem, itemUUID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get routine item: %w", err)
	}
	return item, nil
}

func scanItem(row rowScanner) (*domain.RoutineItem, error) {
	var i domain.RoutineItem
	if err := row.Scan(&i.UUID, &i.ID, &i.RoutineUUID, &i.Title, &i.Description, &i.Active,
		&i.Priority, &i.ETag, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
