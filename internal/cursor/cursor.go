// Package cursor implements opaque keyset pagination cursors for list
// queries.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Cursor records where the previous page ended: the sort key values and
// the tiebreaker ID of its last row.
type Cursor struct {
	SortFields []string `json:"sort_fields"`
	LastValues []any    `json:"last_values"`
	LastID     string   `json:"last_id"`
}

// NewCursor creates a cursor from the last row of a page.
func NewCursor(sortFields []string, lastValues []any, lastID string) (*Cursor, error) {
	if len(sortFields) != len(lastValues) {
		return nil, fmt.Errorf("sort fields and last values length mismatch")
	}
	if lastID == "" {
		return nil, fmt.Errorf("last ID required")
	}
	return &Cursor{SortFields: sortFields, LastValues: lastValues, LastID: lastID}, nil
}

// Encode serializes the cursor to an opaque URL-safe string.
func (c *Cursor) Encode() (string, error) {
	if len(c.SortFields) != len(c.LastValues) {
		return "", fmt.Errorf("sort fields and last values length mismatch")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode parses a cursor produced by Encode.
func Decode(encoded string) (*Cursor, error) {
	if encoded == "" {
		return nil, fmt.Errorf("empty cursor string")
	}
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor format: %w", err)
	}
	if len(c.SortFields) == 0 {
		return nil, fmt.Errorf("cursor missing sort fields")
	}
	if len(c.SortFields) != len(c.LastValues) {
		return nil, fmt.Errorf("cursor sort fields and values length mismatch")
	}
	if c.LastID == "" {
		return nil, fmt.Errorf("cursor missing last ID")
	}
	return &c, nil
}

// BuildWhereClause returns the condition selecting rows after the cursor.
// For ORDER BY a DESC, b DESC, id DESC it generates
//
//	(a < ? OR (a = ? AND b < ?) OR (a = ? AND b = ? AND id < ?))
//
// The tiebreaker runs in the direction of the last sort field.
func (c *Cursor) BuildWhereClause(descending []bool, idField string) (string, []any, error) {
	if len(c.SortFields) != len(descending) {
		return "", nil, fmt.Errorf("sort fields and descending flags length mismatch")
	}

	fields := append(slices.Clone(c.SortFields), idField)
	values := append(slices.Clone(c.LastValues), c.LastID)
	dirs := append(slices.Clone(descending), len(descending) > 0 && descending[len(descending)-1])

	var params []any
	var or []string
	for i := range fields {
		var and []string
		for j := 0; j < i; j++ {
			and = append(and, fields[j]+" = ?")
			params = append(params, values[j])
		}
		op := ">"
		if dirs[i] {
			op = "<"
		}
		and = append(and, fmt.Sprintf("%s %s ?", fields[i], op))
		params = append(params, values[i])

		if len(and) == 1 {
			or = append(or, and[0])
		} else {
			or = append(or, "("+strings.Join(and, " AND ")+")")
		}
	}
	return "(" + strings.Join(or, " OR ") + ")", params, nil
}

// ApplyOptions describes a paginated listing.
type ApplyOptions struct {
	SortFields []string
	Descending []bool
	IDField    string
	// Limit is the page size. Zero disables paging.
	Limit int
	// Cursor is the encoded cursor from the previous page, if any.
	Cursor string
}

// Clauses are the SQL fragments for one page.
type Clauses struct {
	Where       string // empty on the first page
	WhereParams []any
	OrderBy     string
	Limit       string // "LIMIT ?" or empty
	LimitParams []any
}

// Apply builds the clauses for the page that follows opts.Cursor. The LIMIT
// asks for one extra row so callers can tell whether another page exists.
func Apply(opts ApplyOptions) (*Clauses, error) {
	if len(opts.SortFields) != len(opts.Descending) {
		return nil, fmt.Errorf("sort fields and descending flags length mismatch")
	}
	if opts.IDField == "" {
		return nil, fmt.Errorf("ID field required")
	}

	c := &Clauses{}
	order := make([]string, 0, len(opts.SortFields)+1)
	for i, f := range opts.SortFields {
		order = append(order, f+" "+direction(opts.Descending[i]))
	}
	last := len(opts.Descending) > 0 && opts.Descending[len(opts.Descending)-1]
	order = append(order, opts.IDField+" "+direction(last))
	c.OrderBy = "ORDER BY " + strings.Join(order, ", ")

	if opts.Limit > 0 {
		c.Limit = "LIMIT ?"
		c.LimitParams = []any{opts.Limit + 1}
	}

	if opts.Cursor == "" {
		return c, nil
	}
	cur, err := Decode(opts.Cursor)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(cur.SortFields, opts.SortFields) {
		return nil, fmt.Errorf("cursor does not match this listing")
	}
	where, params, err := cur.BuildWhereClause(opts.Descending, opts.IDField)
	if err != nil {
		return nil, err
	}
	c.Where, c.WhereParams = where, params
	return c, nil
}

// BuildNextCursor encodes the cursor for the page after a row.
func BuildNextCursor(sortFields []string, values []any, lastID string) (string, error) {
	c, err := NewCursor(sortFields, values, lastID)
	if err != nil {
		return "", err
	}
	return c.Encode()
}

func direction(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}
