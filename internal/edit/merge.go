// Package edit merges a day page edited offline with the version stored in
// the meantime.
package edit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lherron/daybook/internal/parse"
)

// MergeResult is the outcome of a three-way merge.
type MergeResult struct {
	Merged    *parse.DayPage
	Conflicts []Conflict
}

// Conflict is a field changed differently on both sides.
type Conflict struct {
	Field   string
	Base    string
	Current string
	Edited  string
}

// HasConflict reports whether any field conflicted.
func (r *MergeResult) HasConflict() bool { return len(r.Conflicts) > 0 }

// Merge3Way merges the edited document into the current one.
//
// base is the page when editing started, current is the page as stored
// now, and edited is the user's version. All three describe the same date.
// A field absent from edited keeps its base value. A conflicting field takes
// the edited value and is reported.
func Merge3Way(base, current, edited *parse.DayPage) *MergeResult {
	result := &MergeResult{Merged: &parse.DayPage{Date: current.Date}}

	baseFields := base.TextFields()
	currentFields := current.TextFields()
	editedFields := edited.TextFields()
	for i, f := range result.Merged.TextFields() {
		b := text(*baseFields[i].Value)
		e := b
		if v := *editedFields[i].Value; v != nil {
			e = strings.TrimSpace(*v)
		}
		merged := mergeField(f.Name, b, text(*currentFields[i].Value), e, result)
		*f.Value = &merged
	}

	b := rating(base.Rating)
	e := b
	if edited.Rating != nil {
		e = rating(edited.Rating)
	}
	merged, _ := strconv.Atoi(mergeField("rating", b, rating(current.Rating), e, result))
	result.Merged.Rating = &merged

	return result
}

func mergeField(name, base, current, edited string, result *MergeResult) string {
	switch {
	case base == current:
		return edited
	case base == edited, current == edited:
		return current
	}
	result.Conflicts = append(result.Conflicts, Conflict{Field: name, Base: base, Current: current, Edited: edited})
	return edited
}

// Changed returns the fields of to that differ from from. Text fields are
// compared after trimming surrounding whitespace.
func Changed(from, to *parse.DayPage) *parse.DayPage {
	out := &parse.DayPage{Date: to.Date}
	fromFields := from.TextFields()
	outFields := out.TextFields()
	for i, f := range to.TextFields() {
		if *f.Value == nil {
			continue
		}
		if strings.TrimSpace(**f.Value) != strings.TrimSpace(text(*fromFields[i].Value)) {
			v := **f.Value
			*outFields[i].Value = &v
		}
	}
	if to.Rating != nil && rating(to.Rating) != rating(from.Rating) {
		r := *to.Rating
		out.Rating = &r
	}
	return out
}

// FormatConflicts describes the conflicts for a terminal.
func (r *MergeResult) FormatConflicts() string {
	if !r.HasConflict() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Merge conflicts detected:\n\n")
	for i, c := range r.Conflicts {
		fmt.Fprintf(&sb, "%d. Field %s: base=%q, current=%q, edited=%q\n", i+1, c.Field, c.Base, c.Current, c.Edited)
	}
	sb.WriteString("\nPlease resolve conflicts manually and try again.\n")
	return sb.String()
}

func text(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func rating(r *int) string {
	if r == nil {
		return "0"
	}
	return strconv.Itoa(*r)
}
