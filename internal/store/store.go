// Package store provides a persistence layer that abstracts database operations,
// automatically handling etag management, timestamps, priority ordering and
// event logging.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mattn/go-sqlite3"

	"github.com/lherron/daybook/internal/db"
	"github.com/lherron/daybook/internal/domain"
	"github.com/lherron/daybook/internal/events"
	"github.com/lherron/daybook/internal/ordering"
)

// nowSQL is the timestamp expression used for updated_at columns.
const nowSQL = "strftime('%Y-%m-%dT%H:%M:%fZ','now')"

// Store is the root store that provides access to domain-specific stores.
type Store struct {
	db     *db.DB
	logger *slog.Logger

	// Domain-specific stores
	Users     *UserStore
	Routines  *RoutineStore
	Items     *ItemStore
	DayPages  *DayPageStore
	Events    *EventStore
	Integrity *IntegrityStore
}

// New creates a new Store wrapping the given database connection.
func New(database *db.DB) *Store {
	s := &Store{db: database, logger: slog.Default()}
	s.Users = &UserStore{store: s}
	s.Routines = &RoutineStore{store: s}
	s.Items = &ItemStore{store: s}
	s.DayPages = &DayPageStore{store: s}
	s.Events = &EventStore{store: s}
	s.Integrity = &IntegrityStore{store: s}
	return s
}

// WithLogger replaces the logger used for store diagnostics.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// DB returns the underlying database connection (for read-only queries).
func (s *Store) DB() *db.DB {
	return s.db
}

// withTx executes fn within a transaction. If fn returns nil, the transaction
// is committed; otherwise it is rolled back.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx, ew *events.Writer) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ew := events.NewWriter(s.db.DB)
	if err := fn(tx, ew); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// txShifter runs the reconciler's bulk updates inside one write transaction.
type txShifter struct {
	tx      *sql.Tx
	logger  *slog.Logger
	touched int64
}

func (s *Store) shifter(tx *sql.Tx) *txShifter {
	return &txShifter{tx: tx, logger: s.logger}
}

// MaxPriority implements ordering.Shifter.
func (sh *txShifter) MaxPriority(ctx context.Context, routineUUID string) (int, error) {
	var last int
	err := sh.tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(priority), 0) FROM routine_items WHERE routine_uuid = ?",
		routineUUID,
	).Scan(&last)
	return last, err
}

// ApplyShift implements ordering.Shifter. Shifted siblings get a new etag
// so a client holding a stale copy cannot overwrite the new position.
func (sh *txShifter) ApplyShift(ctx context.Context, s ordering.Shift) (int64, error) {
	query := `
		UPDATE routine_items
		SET priority = priority + ?, etag = etag + 1
		WHERE routine_uuid = ? AND priority >= ?`
	args := []any{s.Delta, s.RoutineUUID, s.Min}
	if s.Max != 0 {
		query += " AND priority <= ?"
		args = append(args, s.Max)
	}

	res, err := sh.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	sh.touched += n
	sh.logger.Debug("priority shift applied", "shift", s.String(), "rows", n)
	return n, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func notFound(resource domain.ResourceType, ref string) error {
	return &domain.NotFoundError{Resource: resource, Ref: ref}
}
