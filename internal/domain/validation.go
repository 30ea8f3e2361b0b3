package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Field limits carried over from the planner schema.
const (
	MaxRoutineNameLen = 100
	MaxItemTitleLen   = 255
	MaxEventLen       = 255
	MaxEmojiLen       = 10
	MinRating         = 1
	MaxRating         = 10

	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName is returned when a user already has a routine with the same name.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrInvalid matches every input validation error via errors.Is.
	ErrInvalid = errors.New("invalid input")

	// ErrInvalidPriority is returned for explicit priorities below 1.
	ErrInvalidPriority error = &ValidationError{msg: "invalid priority: must be 1 or greater"}
)

// ValidationError reports input that failed validation. It unwraps to ErrInvalid.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Invalidf formats a ValidationError.
func Invalidf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// NotFoundError wraps ErrNotFound with the resource kind and reference.
type NotFoundError struct {
	Resource ResourceType
	Ref      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Ref)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NormalizeTitle trims surrounding whitespace and title-cases every word,
// so " brushing teeth" becomes "Brushing Teeth". Apostrophes do not start a
// new word: "don't" becomes "Don't".
func NormalizeTitle(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return cases.Title(language.Und).String(s)
}

// ValidateName validates a normalized routine name
func ValidateName(name string) error {
	if name == "" {
		return Invalidf("invalid name: must not be empty")
	}
	if utf8.RuneCountInString(name) > MaxRoutineNameLen {
		return Invalidf("invalid name: must be at most %d characters", MaxRoutineNameLen)
	}
	return nil
}

// ValidateTitle validates a normalized routine item title
func ValidateTitle(title string) error {
	if title == "" {
		return Invalidf("invalid title: must not be empty")
	}
	if utf8.RuneCountInString(title) > MaxItemTitleLen {
		return Invalidf("invalid title: must be at most %d characters", MaxItemTitleLen)
	}
	return nil
}

// ValidatePriority validates an explicitly requested priority.
// Priorities past the end of a routine are clamped by the reconciler, not rejected.
func ValidatePriority(priority *int) error {
	if priority != nil && *priority < 1 {
		return ErrInvalidPriority
	}
	return nil
}

// ValidateRating validates a day page rating
func ValidateRating(rating *int) error {
	if rating == nil {
		return nil
	}
	if *rating < MinRating || *rating > MaxRating {
		return Invalidf("invalid rating: must be between %d and %d", MinRating, MaxRating)
	}
	return nil
}

// ValidateEmoji validates a mood emoji
func ValidateEmoji(emoji *string) error {
	if emoji == nil {
		return nil
	}
	if utf8.RuneCountInString(*emoji) > MaxEmojiLen {
		return Invalidf("invalid emoji: must be at most %d characters", MaxEmojiLen)
	}
	return nil
}

// ValidateEvent validates a day page event label
func ValidateEvent(event *string) error {
	if event == nil {
		return nil
	}
	if utf8.RuneCountInString(*event) > MaxEventLen {
		return Invalidf("invalid event: must be at most %d characters", MaxEventLen)
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date. "today" and "yesterday" resolve
// against now in the local timezone.
func ParseDate(s string, now time.Time) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today":
		return now.Format(DateLayout), nil
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(DateLayout), nil
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", Invalidf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t.Format(DateLayout), nil
}

// ValidateDate checks that s is a YYYY-MM-DD calendar date.
func ValidateDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return Invalidf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return nil
}

// ParseClock parses an HH:MM wall-clock time and returns it normalized.
func ParseClock(s string) (string, error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(s))
	if err != nil {
		return "", Invalidf("invalid time %q: expected HH:MM", s)
	}
	return t.Format(ClockLayout), nil
}

// ETagMismatchError is returned when an etag doesn't match
type ETagMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *ETagMismatchError) Error() string {
	return fmt.Sprintf("etag mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// CheckETag verifies the current etag when ifMatch is set (> 0).
func CheckETag(current, ifMatch int64) error {
	if ifMatch > 0 && current != ifMatch {
		return &ETagMismatchError{Expected: ifMatch, Actual: current}
	}
	return nil
}
