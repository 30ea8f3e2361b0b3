package domain

import (
	"encoding/json"
	"time"
)

// ResourceType identifies the kind of row an event refers to
type ResourceType string

const (
	ResourceUser        ResourceType = "user"
	ResourceRoutine     ResourceType = "routine"
	ResourceRoutineItem ResourceType = "routine_item"
	ResourceDayPage     ResourceType = "day_page"
)

// User owns routines and day pages. Authentication lives outside daybook;
// a user here is only an owner identity.
type User struct {
	UUID      string    `json:"uuid" db:"uuid"`
	ID        string    `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Routine is a named, user-owned ordered collection of routine items,
// e.g. "Morning Routine".
type Routine struct {
	UUID      string    `json:"uuid" db:"uuid"`
	ID        string    `json:"id" db:"id"`
	UserUUID  string    `json:"user_uuid" db:"user_uuid"`
	Name      string    `json:"name" db:"name"`
	Active    bool      `json:"active" db:"active"`
	ETag      int64     `json:"etag" db:"etag"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// ItemCount is populated by list queries.
	ItemCount int `json:"item_count" db:"-"`
}

// RoutineItem is a single ordered entry within a routine. Priority is its
// rank: within a routine the priorities of all items are exactly 1..N.
type RoutineItem struct {
	UUID        string    `json:"uuid" db:"uuid"`
	ID          string    `json:"id" db:"id"`
	RoutineUUID string    `json:"routine_uuid" db:"routine_uuid"`
	Title       string    `json:"title" db:"title"`
	Description *string   `json:"description,omitempty" db:"description"`
	Active      bool      `json:"active" db:"active"`
	Priority    int       `json:"priority" db:"priority"` // 1 is first
	ETag        int64     `json:"etag" db:"etag"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// DayPage is a single day in the planner. A user has at most one page per date.
type DayPage struct {
	UUID           string    `json:"uuid" db:"uuid"`
	ID             string    `json:"id" db:"id"`
	UserUUID       string    `json:"user_uuid" db:"user_uuid"`
	Date           string    `json:"date" db:"date"` // YYYY-MM-DD
	Event          *string   `json:"event,omitempty" db:"event"`
	WakeUpTime     *string   `json:"wake_up_time,omitempty" db:"wake_up_time"` // HH:MM
	SleepTime      *string   `json:"sleep_time,omitempty" db:"sleep_time"`     // HH:MM
	Quote          *string   `json:"quote,omitempty" db:"quote"`
	LessonOfDay    *string   `json:"lesson_of_day,omitempty" db:"lesson_of_day"`
	Positives      *string   `json:"positives,omitempty" db:"positives"`
	Negatives      *string   `json:"negatives,omitempty" db:"negatives"`
	NotesTomorrow  *string   `json:"notes_tomorrow,omitempty" db:"notes_tomorrow"`
	FinancialNotes *string   `json:"financial_notes,omitempty" db:"financial_notes"`
	Rating         *int      `json:"rating,omitempty" db:"rating"` // 1-10
	Emoji          *string   `json:"emoji,omitempty" db:"emoji"`
	ETag           int64     `json:"etag" db:"etag"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Event represents an event in the event log
type Event struct {
	ID           int64        `json:"id" db:"id"`
	Timestamp    time.Time    `json:"timestamp" db:"timestamp"`
	UserUUID     *string      `json:"user_uuid,omitempty" db:"user_uuid"`
	ResourceType ResourceType `json:"resource_type" db:"resource_type"`
	ResourceUUID *string      `json:"resource_uuid,omitempty" db:"resource_uuid"`
	EventType    string       `json:"event_type" db:"event_type"`
	ETag         *int64       `json:"etag,omitempty" db:"etag"`
	Payload      *string      `json:"payload,omitempty" db:"payload"` // JSON
}

// PayloadMap parses the event payload JSON into a map
func (e *Event) PayloadMap() (map[string]interface{}, error) {
	if e.Payload == nil || *e.Payload == "" {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(*e.Payload), &m); err != nil {
		return nil, err
	}
	return m, nil
}
