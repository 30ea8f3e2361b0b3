// Package snapshot exports the whole daybook database as one deterministic
// JSON document and loads such a document back.
package snapshot

import "time"

// SchemaVersion is the snapshot format version written by Export.
const SchemaVersion = 1

// Snapshot is the complete state of a daybook database. Map keys are UUIDs.
type Snapshot struct {
	Meta     Meta                    `json:"meta"`
	Users    map[string]UserEntry    `json:"users,omitempty"`
	Routines map[string]RoutineEntry `json:"routines,omitempty"`
	Items    map[string]ItemEntry    `json:"items,omitempty"`
	DayPages map[string]DayPageEntry `json:"day_pages,omitempty"`
}

// Meta describes a snapshot. SnapshotRev is a content hash that ignores
// GeneratedAt, so two exports of the same state share a revision.
type Meta struct {
	SchemaVersion int    `json:"schema_version"`
	SnapshotRev   string `json:"snapshot_rev,omitempty"`
	GeneratedAt   string `json:"generated_at,omitempty"`
}

type UserEntry struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

type RoutineEntry struct {
	ID        string `json:"id"`
	UserUUID  string `json:"user_uuid"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	ETag      int64  `json:"etag"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ItemEntry struct {
	ID          string `json:"id"`
	RoutineUUID string `json:"routine_uuid"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
	Priority    int    `json:"priority"`
	ETag        int64  `json:"etag"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type DayPageEntry struct {
	ID             string `json:"id"`
	UserUUID       string `json:"user_uuid"`
	Date           string `json:"date"`
	Event          string `json:"event,omitempty"`
	WakeUpTime     string `json:"wake_up_time,omitempty"`
	SleepTime      string `json:"sleep_time,omitempty"`
	Quote          string `json:"quote,omitempty"`
	LessonOfDay    string `json:"lesson_of_day,omitempty"`
	Positives      string `json:"positives,omitempty"`
	Negatives      string `json:"negatives,omitempty"`
	NotesTomorrow  string `json:"notes_tomorrow,omitempty"`
	FinancialNotes string `json:"financial_notes,omitempty"`
	Rating         int    `json:"rating,omitempty"`
	Emoji          string `json:"emoji,omitempty"`
	ETag           int64  `json:"etag"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// Counts summarizes a snapshot.
type Counts struct {
	Users    int `json:"users"`
	Routines int `json:"routines"`
	Items    int `json:"items"`
	DayPages int `json:"day_pages"`
}

// Counts returns the number of entries of each kind.
func (s *Snapshot) Counts() Counts {
	return Counts{Users: len(s.Users), Routines: len(s.Routines), Items: len(s.Items), DayPages: len(s.DayPages)}
}

// ImportOptions configures Import.
type ImportOptions struct {
	// DryRun validates without writing.
	DryRun bool
	// Force replaces existing data. Without it the database must be empty.
	Force bool
}

// ImportResult reports what Import did.
type ImportResult struct {
	SnapshotRev string `json:"snapshot_rev"`
	Counts
	DryRun bool `json:"dry_run,omitempty"`
}

// VerifyResult reports whether a snapshot file is intact.
type VerifyResult struct {
	Valid       bool   `json:"valid"`
	SnapshotRev string `json:"snapshot_rev"`
	Message     string `json:"message,omitempty"`
}

const timestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp formats t the way the database stores timestamps.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
