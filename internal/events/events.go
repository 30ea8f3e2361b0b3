package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lherron/daybook/internal/domain"
)

// Event types written to the event log
const (
	UserCreated      = "user.created"
	RoutineCreated   = "routine.created"
	RoutineUpdated   = "routine.updated"
	RoutineDeleted   = "routine.deleted"
	RoutineCompacted = "routine.compacted"
	ItemCreated      = "routine_item.created"
	ItemUpdated      = "routine_item.updated"
	ItemDeleted      = "routine_item.deleted"
	DayPageUpserted  = "day_page.upserted"
	DayPageDeleted   = "day_page.deleted"
)

// Writer handles writing events to the event log
type Writer struct {
	db *sql.DB
}

// NewWriter creates a new event writer
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// LogEvent writes an event to the event log
func (w *Writer) LogEvent(ctx context.Context, tx *sql.Tx, event *domain.Event) error {
	query := `
		INSERT INTO event_log (user_uuid, resource_type, resource_uuid, event_type, etag, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	executor := w.getExecutor(tx)
	_, err := executor.ExecContext(ctx, query, event.UserUUID, event.ResourceType, event.ResourceUUID, event.EventType, event.ETag, event.Payload)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogUserCreated logs a user creation event
func (w *Writer) LogUserCreated(ctx context.Context, tx *sql.Tx, user *domain.User) error {
	return w.log(ctx, tx, &user.UUID, domain.ResourceUser, user.UUID, UserCreated, nil, map[string]interface{}{
		"username": user.Username,
	})
}

// LogRoutineCreated logs a routine creation event
func (w *Writer) LogRoutineCreated(ctx context.Context, tx *sql.Tx, routine *domain.Routine) error {
	return w.log(ctx, tx, &routine.UserUUID, domain.ResourceRoutine, routine.UUID, RoutineCreated, &routine.ETag, map[string]interface{}{
		"name": routine.Name,
	})
}

// LogRoutineUpdated logs a routine update event
func (w *Writer) LogRoutineUpdated(ctx context.Context, tx *sql.Tx, routine *domain.Routine, changes map[string]interface{}) error {
	return w.log(ctx, tx, &routine.UserUUID, domain.ResourceRoutine, routine.UUID, RoutineUpdated, &routine.ETag, changes)
}

// LogRoutineDeleted logs a routine deletion event
func (w *Writer) LogRoutineDeleted(ctx context.Context, tx *sql.Tx, routine *domain.Routine, itemsDeleted int64) error {
	return w.log(ctx, tx, &routine.UserUUID, domain.ResourceRoutine, routine.UUID, RoutineDeleted, nil, map[string]interface{}{
		"name":          routine.Name,
		"items_deleted": itemsDeleted,
	})
}

// LogRoutineCompacted logs a renumbering of a routine's priorities
func (w *Writer) LogRoutineCompacted(ctx context.Context, tx *sql.Tx, userUUID, routineUUID string, renumbered int) error {
	return w.log(ctx, tx, &userUUID, domain.ResourceRoutine, routineUUID, RoutineCompacted, nil, map[string]interface{}{
		"renumbered": renumbered,
	})
}

// LogItemCreated logs a routine item creation event
func (w *Writer) LogItemCreated(ctx context.Context, tx *sql.Tx, userUUID string, item *domain.RoutineItem, shifted int64) error {
	return w.log(ctx, tx, &userUUID, domain.ResourceRoutineItem, item.UUID, ItemCreated, &item.ETag, map[string]interface{}{
		"title":        item.Title,
		"routine_uuid": item.RoutineUUID,
		"priority":     item.Priority,
		"shifted":      shifted,
	})
}

// LogItemUpdated logs a routine item update event. changes carries the
// edited fields plus the from/to position when the item moved.
func (w *Writer) LogItemUpdated(ctx context.Context, tx *sql.Tx, userUUID string, item *domain.RoutineItem, changes map[string]interface{}) error {
	return w.log(ctx, tx, &userUUID, domain.ResourceRoutineItem, item.UUID, ItemUpdated, &item.ETag, changes)
}

// LogItemDeleted logs a routine item deletion event
func (w *Writer) LogItemDeleted(ctx context.Context, tx *sql.Tx, userUUID string, item *domain.RoutineItem, shifted int64) error {
	return w.log(ctx, tx, &userUUID, domain.ResourceRoutineItem, item.UUID, ItemDeleted, nil, map[string]interface{}{
		"title":        item.Title,
		"routine_uuid": item.RoutineUUID,
		"priority":     item.Priority,
		"shifted":      shifted,
	})
}

// LogDayPageUpserted logs a day page write
func (w *Writer) LogDayPageUpserted(ctx context.Context, tx *sql.Tx, page *domain.DayPage, created bool) error {
	return w.log(ctx, tx, &page.UserUUID, domain.ResourceDayPage, page.UUID, DayPageUpserted, &page.ETag, map[string]interface{}{
		"date":    page.Date,
		"created": created,
	})
}

// LogDayPageDeleted logs a day page deletion event
func (w *Writer) LogDayPageDeleted(ctx context.Context, tx *sql.Tx, page *domain.DayPage) error {
	return w.log(ctx, tx, &page.UserUUID, domain.ResourceDayPage, page.UUID, DayPageDeleted, nil, map[string]interface{}{
		"date": page.Date,
	})
}

func (w *Writer) log(ctx context.Context, tx *sql.Tx, userUUID *string, resource domain.ResourceType, resourceUUID, eventType string, etag *int64, payload map[string]interface{}) error {
	var payloadStr *string
	if len(payload) > 0 {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}
		s := string(b)
		payloadStr = &s
	}

	return w.LogEvent(ctx, tx, &domain.Event{
		UserUUID:     userUUID,
		ResourceType: resource,
		ResourceUUID: &resourceUUID,
		EventType:    eventType,
		ETag:         etag,
		Payload:      payloadStr,
	})
}

func (w *Writer) getExecutor(tx *sql.Tx) interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
} {
	if tx != nil {
		return tx
	}
	return w.db
}
