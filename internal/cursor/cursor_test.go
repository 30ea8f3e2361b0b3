package cursor

import (
	"reflect"
	"strings"
	"testing"
)

func TestCursorEncodeDecode(t *testing.T) {
	c, err := NewCursor([]string{"date"}, []any{"2026-10-19"}, "0b6d2c1e")
	if err != nil {
		t.Fatalf("NewCursor() error = %v", err)
	}
	encoded, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if strings.ContainsAny(encoded, "+/") {
		t.Errorf("encoded cursor is not URL-safe: %s", encoded)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !reflect.DeepEqual(decoded, c) {
		t.Errorf("Decode() = %+v, want %+v", decoded, c)
	}
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not base64", "!!!"},
		{"not json", "bm90IGpzb24="},
		{"no sort fields", "eyJzb3J0X2ZpZWxkcyI6W10sImxhc3RfdmFsdWVzIjpbXSwibGFzdF9pZCI6IngifQ=="},
		{"missing last id", "eyJzb3J0X2ZpZWxkcyI6WyJkYXRlIl0sImxhc3RfdmFsdWVzIjpbIjIwMjYtMDEtMDEiXSwibGFzdF9pZCI6IiJ9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.input); err == nil {
				t.Errorf("Decode(%q) succeeded, want error", tt.input)
			}
		})
	}
}

func TestBuildWhereClause(t *testing.T) {
	tests := []struct {
		name       string
		cursor     Cursor
		descending []bool
		wantWhere  string
		wantParams []any
	}{
		{
			name:       "single field descending",
			cursor:     Cursor{SortFields: []string{"date"}, LastValues: []any{"2026-10-19"}, LastID: "u1"},
			descending: []bool{true},
			wantWhere:  "(date < ? OR (date = ? AND uuid < ?))",
			wantParams: []any{"2026-10-19", "2026-10-19", "u1"},
		},
		{
			name:       "two fields ascending",
			cursor:     Cursor{SortFields: []string{"rating", "date"}, LastValues: []any{7, "2026-10-19"}, LastID: "u2"},
			descending: []bool{false, false},
			wantWhere:  "(rating > ? OR (rating = ? AND date > ?) OR (rating = ? AND date = ? AND uuid > ?))",
			wantParams: []any{7, 7, "2026-10-19", 7, "2026-10-19", "u2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, params, err := tt.cursor.BuildWhereClause(tt.descending, "uuid")
			if err != nil {
				t.Fatalf("BuildWhereClause() error = %v", err)
			}
			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if !reflect.DeepEqual(params, tt.wantParams) {
				t.Errorf("params = %v, want %v", params, tt.wantParams)
			}
		})
	}

	c := Cursor{SortFields: []string{"date"}, LastValues: []any{"x"}, LastID: "u"}
	if _, _, err := c.BuildWhereClause([]bool{true, false}, "uuid"); err == nil {
		t.Error("expected error for mismatched descending flags")
	}
}

func TestNewCursorValidation(t *testing.T) {
	if _, err := NewCursor([]string{"date", "rating"}, []any{"x"}, "u"); err == nil {
		t.Error("expected length mismatch error")
	}
	if _, err := NewCursor([]string{"date"}, []any{"x"}, ""); err == nil {
		t.Error("expected missing ID error")
	}
	if _, err := BuildNextCursor([]string{"date"}, []any{"x"}, ""); err == nil {
		t.Error("expected BuildNextCursor to reject a missing ID")
	}
}

func TestApplyFirstPage(t *testing.T) {
	c, err := Apply(ApplyOptions{SortFields: []string{"date"}, Descending: []bool{true}, IDField: "uuid", Limit: 20})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if c.Where != "" || c.WhereParams != nil {
		t.Errorf("first page should have no cursor condition, got %q", c.Where)
	}
	if c.OrderBy != "ORDER BY date DESC, uuid DESC" {
		t.Errorf("OrderBy = %q", c.OrderBy)
	}
	if c.Limit != "LIMIT ?" || !reflect.DeepEqual(c.LimitParams, []any{21}) {
		t.Errorf("Limit = %q %v, want one extra row", c.Limit, c.LimitParams)
	}

	c, err = Apply(ApplyOptions{SortFields: []string{"date"}, Descending: []bool{false}, IDField: "uuid"})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if c.Limit != "" || c.OrderBy != "ORDER BY date ASC, uuid ASC" {
		t.Errorf("unexpected clauses: %+v", c)
	}
}

func TestApplyWithCursor(t *testing.T) {
	next, err := BuildNextCursor([]string{"date"}, []any{"2026-10-19"}, "u9")
	if err != nil {
		t.Fatalf("BuildNextCursor() error = %v", err)
	}

	c, err := Apply(ApplyOptions{SortFields: []string{"date"}, Descending: []bool{true}, IDField: "uuid", Limit: 5, Cursor: next})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if c.Where != "(date < ? OR (date = ? AND uuid < ?))" {
		t.Errorf("Where = %q", c.Where)
	}
	if !reflect.DeepEqual(c.WhereParams, []any{"2026-10-19", "2026-10-19", "u9"}) {
		t.Errorf("WhereParams = %v", c.WhereParams)
	}

	_, err = Apply(ApplyOptions{SortFields: []string{"updated_at"}, Descending: []bool{true}, IDField: "uuid", Cursor: next})
	if err == nil || !strings.Contains(err.Error(), "does not match") {
		t.Errorf("expected cursor mismatch error, got %v", err)
	}

	if _, err := Apply(ApplyOptions{SortFields: []string{"date"}, Descending: []bool{true}, IDField: "uuid", Cursor: "garbage!"}); err == nil {
		t.Error("expected error for malformed cursor")
	}
}
