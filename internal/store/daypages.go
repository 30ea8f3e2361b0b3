package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lherron/daybook/internal/cursor"
	"github.com/lherron/daybook/internal/domain"
	"github.com/lherron/daybook/internal/events"
	"github.com/lherron/daybook/internal/id"
)

// DayPageStore handles day page persistence operations.
type DayPageStore struct {
	store *Store
}

// DayPageFields holds the editable fields of a day page. Nil leaves a field
// unchanged; an empty string clears a text field.
type DayPageFields struct {
	Event          *string
	WakeUpTime     *string
	SleepTime      *string
	Quote          *string
	LessonOfDay    *string
	Positives      *string
	Negatives      *string
	NotesTomorrow  *string
	FinancialNotes *string
	Emoji          *string
	Rating         *int
	ClearRating    bool
}

// DayPageFilter narrows List. Zero values match everything.
type DayPageFilter struct {
	From   string // inclusive YYYY-MM-DD
	To     string // inclusive YYYY-MM-DD
	Rating *int
	Emoji  string
	Query  string // substring of quote, lesson of the day, or positives
	Limit  int
	Cursor string // from a previous DayPageList.NextCursor
}

// DayPageList is one page of List results. NextCursor is empty on the last
// page.
type DayPageList struct {
	Pages      []domain.DayPage `json:"days"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

var dayPageSort = []string{"date"}

const dayPageColumns = `uuid, id, user_uuid, date, event, wake_up_time, sleep_time, quote,
	lesson_of_day, positives, negatives, notes_tomorrow, financial_notes, rating, emoji,
	etag, created_at, updated_at`

// Upsert writes the page for (user, date), creating it on first write.
// The returned bool reports whether the page was created.
func (ds *DayPageStore) Upsert(ctx context.Context, userUUID, date string, fields DayPageFields, ifMatch int64) (*domain.DayPage, bool, error) {
	if err := domain.ValidateDate(date); err != nil {
		return nil, false, err
	}
	cols, vals, err := fields.columns()
	if err != nil {
		return nil, false, err
	}

	var page *domain.DayPage
	var created bool
	err = ds.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		current, err := getDayPage(ctx, tx, userUUID, date)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			created = true
			insertCols := append([]string{"uuid", "id", "user_uuid", "date"}, cols...)
			insertVals := append([]any{id.New(), "", userUUID, date}, vals...)
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(insertCols)), ", ")
			query := fmt.Sprintf("INSERT INTO day_pages (%s) VALUES (%s)", strings.Join(insertCols, ", "), placeholders)
			if _, err := tx.ExecContext(ctx, query, insertVals...); err != nil {
				return fmt.Errorf("failed to create day page: %w", err)
			}
		case err != nil:
			return err
		default:
			if err := domain.CheckETag(current.ETag, ifMatch); err != nil {
				return err
			}
			if len(cols) == 0 {
				page = current
				return nil
			}
			setClauses := make([]string, 0, len(cols)+2)
			for _, c := range cols {
				setClauses = append(setClauses, c+" = ?")
			}
			setClauses = append(setClauses, "etag = etag + 1", "updated_at = "+nowSQL)
			args := append(vals, current.UUID)
			query := fmt.Sprintf("UPDATE day_pages SET %s WHERE uuid = ?", strings.Join(setClauses, ", "))
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to update day page: %w", err)
			}
		}

		page, err = getDayPage(ctx, tx, userUUID, date)
		if err != nil {
			return err
		}
		if err := ew.LogDayPageUpserted(ctx, tx, page, created); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return page, created, nil
}

// Get returns the user's page for a date.
func (ds *DayPageStore) Get(ctx context.Context, userUUID, date string) (*domain.DayPage, error) {
	return getDayPage(ctx, ds.store.db, userUUID, date)
}

// List returns the user's pages, newest first.
func (ds *DayPageStore) List(ctx context.Context, userUUID string, filter DayPageFilter) ([]domain.DayPage, error) {
	list, err := ds.Page(ctx, userUUID, filter)
	if err != nil {
		return nil, err
	}
	return list.Pages, nil
}

// Page returns up to filter.Limit pages after filter.Cursor, newest first,
// and the cursor for the next batch.
func (ds *DayPageStore) Page(ctx context.Context, userUUID string, filter DayPageFilter) (*DayPageList, error) {
	where := []string{"user_uuid = ?"}
	args := []any{userUUID}

	if filter.From != "" {
		where = append(where, "date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		where = append(where, "date <= ?")
		args = append(args, filter.To)
	}
	if filter.Rating != nil {
		where = append(where, "rating = ?")
		args = append(args, *filter.Rating)
	}
	if filter.Emoji != "" {
		where = append(where, "emoji = ?")
		args = append(args, filter.Emoji)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + q + "%"
		where = append(where, "(quote LIKE ? OR lesson_of_day LIKE ? OR positives LIKE ?)")
		args = append(args, like, like, like)
	}

	clauses, err := cursor.Apply(cursor.ApplyOptions{
		SortFields: dayPageSort,
		Descending: []bool{true},
		IDField:    "uuid",
		Limit:      filter.Limit,
		Cursor:     filter.Cursor,
	})
	if err != nil {
		return nil, domain.Invalidf("invalid cursor: %v", err)
	}
	if clauses.Where != "" {
		where = append(where, clauses.Where)
		args = append(args, clauses.WhereParams...)
	}
	args = append(args, clauses.LimitParams...)

	query := "SELECT " + dayPageColumns + " FROM day_pages WHERE " + strings.Join(where, " AND ") +
		" " + clauses.OrderBy + " " + clauses.Limit

	rows, err := ds.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list day pages: %w", err)
	}
	defer rows.Close()

	list := &DayPageList{Pages: []domain.DayPage{}}
	for rows.Next() {
		p, err := scanDayPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan day page: %w", err)
		}
		list.Pages = append(list.Pages, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list day pages: %w", err)
	}

	if filter.Limit > 0 && len(list.Pages) > filter.Limit {
		list.Pages = list.Pages[:filter.Limit]
		last := list.Pages[len(list.Pages)-1]
		list.NextCursor, err = cursor.BuildNextCursor(dayPageSort, []any{last.Date}, last.UUID)
		if err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Delete removes the user's page for a date.
func (ds *DayPageStore) Delete(ctx context.Context, userUUID, date string, ifMatch int64) error {
	return ds.store.withTx(ctx, func(tx *sql.Tx, ew *events.Writer) error {
		current, err := getDayPage(ctx, tx, userUUID, date)
		if err != nil {
			return err
		}
		if err := domain.CheckETag(current.ETag, ifMatch); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM day_pages WHERE uuid = ?", current.UUID); err != nil {
			return fmt.Errorf("failed to delete day page: %w", err)
		}
		if err := ew.LogDayPageDeleted(ctx, tx, current); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

// columns validates the set fields and returns them as column/value pairs.
func (f DayPageFields) columns() ([]string, []any, error) {
	if err := domain.ValidateEvent(f.Event); err != nil {
		return nil, nil, err
	}
	if err := domain.ValidateEmoji(f.Emoji); err != nil {
		return nil, nil, err
	}
	if err := domain.ValidateRating(f.Rating); err != nil {
		return nil, nil, err
	}

	var cols []string
	var vals []any
	text := []struct {
		col string
		val *string
	}{
		{"event", f.Event},
		{"quote", f.Quote},
		{"lesson_of_day", f.LessonOfDay},
		{"positives", f.Positives},
		{"negatives", f.Negatives},
		{"notes_tomorrow", f.NotesTomorrow},
		{"financial_notes", f.FinancialNotes},
		{"emoji", f.Emoji},
	}
	for _, t := range text {
		if t.val != nil {
			cols = append(cols, t.col)
			vals = append(vals, emptyToNil(t.val))
		}
	}

	clocks := []struct {
		col string
		val *string
	}{
		{"wake_up_time", f.WakeUpTime},
		{"sleep_time", f.SleepTime},
	}
	for _, c := range clocks {
		if c.val == nil {
			continue
		}
		cols = append(cols, c.col)
		if strings.TrimSpace(*c.val) == "" {
			vals = append(vals, nil)
			continue
		}
		clock, err := domain.ParseClock(*c.val)
		if err != nil {
			return nil, nil, err
		}
		vals = append(vals, clock)
	}

	switch {
	case f.ClearRating:
		cols = append(cols, "rating")
		vals = append(vals, nil)
	case f.Rating != nil:
		cols = append(cols, "rating")
		vals = append(vals, *f.Rating)
	}

	return cols, vals, nil
}

func getDayPage(ctx context.Context, q queryer, userUUID, date string) (*domain.DayPage, error) {
	p, err := scanDayPage(q.QueryRowContext(ctx,
		"SELECT "+dayPageColumns+" FROM day_pages WHERE user_uuid = ? AND date = ?",
		userUUID, date,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(domain.ResourceDayPage, date)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get day page: %w", err)
	}
	return p, nil
}

func scanDayPage(row rowScanner) (*domain.DayPage, error) {
	var p domain.DayPage
	err := row.Scan(&p.UUID, &p.ID, &p.UserUUID, &p.Date, &p.Event, &p.WakeUpTime, &p.SleepTime,
		&p.Quote, &p.LessonOfDay, &p.Positives, &p.Negatives, &p.NotesTomorrow, &p.FinancialNotes,
		&p.Rating, &p.Emoji, &p.ETag, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
