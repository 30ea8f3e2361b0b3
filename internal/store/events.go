package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/lherron/daybook/internal/domain"
)

// EventStore reads the event log.
type EventStore struct {
	store *Store
}

// EventFilter narrows Recent. Zero values match everything.
type EventFilter struct {
	UserUUID     string
	ResourceUUID string
	EventType    string
	Limit        int // defaults to 50
}

// Recent returns matching events, newest first.
func (es *EventStore) Recent(ctx context.Context, filter EventFilter) ([]domain.Event, error) {
	var where []string
	var args []any

	if filter.UserUUID != "" {
		where = append(where, "user_uuid = ?")
		args = append(args, filter.UserUUID)
	}
	if filter.ResourceUUID != "" {
		where = append(where, "resource_uuid = ?")
		args = append(args, filter.ResourceUUID)
	}
	if filter.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, filter.EventType)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT id, timestamp, user_uuid, resource_type, resource_uuid, event_type, etag, payload FROM event_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := es.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.UserUUID, &e.ResourceType, &e.ResourceUUID,
			&e.EventType, &e.ETag, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
