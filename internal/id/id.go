package id

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	userIDPattern    = regexp.MustCompile(`^U-\d{5}$`)
	routineIDPattern = regexp.MustCompile(`^R-\d{5}$`)
	itemIDPattern    = regexp.MustCompile(`^I-\d{5}$`)
	dayPageIDPattern = regexp.MustCompile(`^D-\d{5}$`)
)

// Type represents the type of resource
type Type string

const (
	TypeUser    Type = "user"
	TypeRoutine Type = "routine"
	TypeItem    Type = "routine_item"
	TypeDayPage Type = "day_page"
)

// FormatUser formats a user friendly ID
func FormatUser(seq int) string {
	return fmt.Sprintf("U-%05d", seq)
}

// FormatRoutine formats a routine friendly ID
func FormatRoutine(seq int) string {
	return fmt.Sprintf("R-%05d", seq)
}

// FormatItem formats a routine item friendly ID
func FormatItem(seq int) string {
	return fmt.Sprintf("I-%05d", seq)
}

// FormatDayPage formats a day page friendly ID
func FormatDayPage(seq int) string {
	return fmt.Sprintf("D-%05d", seq)
}

// Parse parses an ID string and returns the type and sequence number.
// Friendly IDs are case-insensitive on input.
func Parse(s string) (Type, int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var typ Type
	switch {
	case userIDPattern.MatchString(s):
		typ = TypeUser
	case routineIDPattern.MatchString(s):
		typ = TypeRoutine
	case itemIDPattern.MatchString(s):
		typ = TypeItem
	case dayPageIDPattern.MatchString(s):
		typ = TypeDayPage
	default:
		return "", 0, fmt.Errorf("invalid friendly ID format: %s", s)
	}

	seq, _ := strconv.Atoi(s[2:])
	return typ, seq, nil
}

// IsUUID checks if a string is a valid UUID
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

// IsFriendlyID checks if a string is a valid friendly ID
func IsFriendlyID(s string) bool {
	_, _, err := Parse(s)
	return err == nil
}

// IsType reports whether s is a friendly ID of the given type.
func IsType(s string, typ Type) bool {
	got, _, err := Parse(s)
	return err == nil && got == typ
}

// New returns a fresh lowercase UUIDv4 for a new row.
func New() string {
	return uuid.NewString()
}
