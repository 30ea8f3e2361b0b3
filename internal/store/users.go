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

// UserStore handles user persistence operations.
type UserStore struct {
	store *Store
}

const userColumns = "uuid, id, username, created_at"

// Create creates a new user and logs a user.created event.
func (us *UserStore) Create(ctx context.Context, username string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.Invalidf("invalid username: must not be empty")
	}
	if id.IsFriendlyID(username) || id.IsUUID(username) {
		return nil, domain.Invalidf("invalid username %q: must not look like an ID", username)
	}

	var user *domain.User
	err := us.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		uuid := id.New()
		_, err := tx.ExecContext(ctx, `INSERT INTO users (uuid, id, username) VALUES (?, '', ?)`, uuid, username)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("user %q: %w", username, domain.ErrDuplicateName)
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		user, err = scanUser(tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE uuid = ?", uuid))
		if err != nil {
			return fmt.Errorf("failed to read created user: %w", err)
		}

		if err := ew.LogUserCreated(ctx, tx, user); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Resolve looks a user up by friendly ID, UUID, or username.
func (us *UserStore) Resolve(ctx context.Context, ref string) (*domain.User, error) {
	ref = strings.TrimSpace(ref)
	var row *sql.Row
	switch {
	case id.IsType(ref, id.TypeUser):
		row = us.store.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", strings.ToUpper(ref))
	case id.IsUUID(ref):
		row = us.store.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE uuid = ?", ref)
	default:
		row = us.store.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", ref)
	}

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(domain.ResourceUser, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// List returns all users ordered by friendly ID.
func (us *UserStore) List(ctx context.Context) ([]domain.User, error) {
	rows, err := us.store.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.UUID, &u.ID, &u.Username, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
