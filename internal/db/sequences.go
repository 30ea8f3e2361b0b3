package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Sequence is an AUTOINCREMENT table whose counter numbers the friendly IDs
// of Table, formatted as Prefix plus a zero-padded number.
type Sequence struct {
	Name   string
	Table  string
	Prefix string
}

// Sequences lists the friendly-ID sequences created by the schema.
var Sequences = []Sequence{
	{Name: "user_seq", Table: "users", Prefix: "U-"},
	{Name: "routine_seq", Table: "routines", Prefix: "R-"},
	{Name: "item_seq", Table: "routine_items", Prefix: "I-"},
	{Name: "day_page_seq", Table: "day_pages", Prefix: "D-"},
}

// SequenceDrift is a sequence whose counter is below the highest ID already
// in its table. The next insert would hand out a duplicate friendly ID.
type SequenceDrift struct {
	Sequence
	Current int
	MaxID   int
}

// Queryer is satisfied by *sql.DB, *sql.Tx, and *DB.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CheckSequences returns every drifted sequence.
func CheckSequences(ctx context.Context, q Queryer) ([]SequenceDrift, error) {
	var drifts []SequenceDrift
	for _, seq := range Sequences {
		maxID, err := seq.maxID(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to read highest %s ID: %w", seq.Table, err)
		}
		current, err := seq.current(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", seq.Name, err)
		}
		if current < maxID {
			drifts = append(drifts, SequenceDrift{Sequence: seq, Current: current, MaxID: maxID})
		}
	}
	return drifts, nil
}

// RepairSequences advances drifted sequences to the highest existing ID and
// returns what it changed.
func RepairSequences(ctx context.Context, q Queryer) ([]SequenceDrift, error) {
	drifts, err := CheckSequences(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, d := range drifts {
		if err := d.advance(ctx, q); err != nil {
			return nil, fmt.Errorf("failed to advance %s: %w", d.Name, err)
		}
	}
	return drifts, nil
}

func (s Sequence) maxID(ctx context.Context, q Queryer) (int, error) {
	query := fmt.Sprintf(
		"SELECT COALESCE(MAX(CAST(SUBSTR(id, ?) AS INTEGER)), 0) FROM %s WHERE id LIKE ?",
		s.Table,
	)
	var maxID int
	err := q.QueryRowContext(ctx, query, len(s.Prefix)+1, s.Prefix+"%").Scan(&maxID)
	return maxID, err
}

func (s Sequence) current(ctx context.Context, q Queryer) (int, error) {
	var seq sql.NullInt64
	err := q.QueryRowContext(ctx, "SELECT seq FROM sqlite_sequence WHERE name = ?", s.Name).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return int(seq.Int64), err
}

// sqlite_sequence has no key on name, so there is no upsert.
func (d SequenceDrift) advance(ctx context.Context, q Queryer) error {
	res, err := q.ExecContext(ctx, "UPDATE sqlite_sequence SET seq = ? WHERE name = ?", d.MaxID, d.Name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	_, err = q.ExecContext(ctx, "INSERT INTO sqlite_sequence (name, seq) VALUES (?, ?)", d.Name, d.MaxID)
	return err
}
