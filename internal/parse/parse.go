// Package parse reads and writes day pages as JSON, YAML, or markdown
// documents. Markdown documents carry the short fields in YAML front matter
// and the free-text fields as "## " sections.
package parse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lherron/daybook/internal/domain"
)

// DayPage is a day page as a document. A nil field is absent from the
// document; an empty string clears it. A rating of 0 clears the rating.
type DayPage struct {
	Date           string  `json:"date,omitempty" yaml:"date,omitempty"`
	Event          *string `json:"event,omitempty" yaml:"event,omitempty"`
	WakeUpTime     *string `json:"wake_up_time,omitempty" yaml:"wake_up_time,omitempty"`
	SleepTime      *string `json:"sleep_time,omitempty" yaml:"sleep_time,omitempty"`
	Rating         *int    `json:"rating,omitempty" yaml:"rating,omitempty"`
	Emoji          *string `json:"emoji,omitempty" yaml:"emoji,omitempty"`
	Quote          *string `json:"quote,omitempty" yaml:"quote,omitempty"`
	LessonOfDay    *string `json:"lesson_of_day,omitempty" yaml:"lesson_of_day,omitempty"`
	Positives      *string `json:"positives,omitempty" yaml:"positives,omitempty"`
	Negatives      *string `json:"negatives,omitempty" yaml:"negatives,omitempty"`
	NotesTomorrow  *string `json:"notes_tomorrow,omitempty" yaml:"notes_tomorrow,omitempty"`
	FinancialNotes *string `json:"financial_notes,omitempty" yaml:"financial_notes,omitempty"`
}

// NamedText is one text field of a document, addressable for reading and
// writing.
type NamedText struct {
	Name  string
	Value **string
}

// TextFields lists the document's text fields in display order.
func (d *DayPage) TextFields() []NamedText {
	return []NamedText{
		{"event", &d.Event},
		{"wake_up_time", &d.WakeUpTime},
		{"sleep_time", &d.SleepTime},
		{"emoji", &d.Emoji},
		{"quote", &d.Quote},
		{"lesson_of_day", &d.LessonOfDay},
		{"positives", &d.Positives},
		{"negatives", &d.Negatives},
		{"notes_tomorrow", &d.NotesTomorrow},
		{"financial_notes", &d.FinancialNotes},
	}
}

// IsEmpty reports whether the document sets no field at all.
func (d *DayPage) IsEmpty() bool {
	if d.Rating != nil {
		return false
	}
	for _, f := range d.TextFields() {
		if *f.Value != nil {
			return false
		}
	}
	return true
}

// FromDomain returns a complete document for a stored page: every field is
// present, with absent values as empty strings and no rating as 0.
func FromDomain(p *domain.DayPage) *DayPage {
	doc := &DayPage{Date: p.Date}
	src := []*string{p.Event, p.WakeUpTime, p.SleepTime, p.Emoji, p.Quote, p.LessonOfDay,
		p.Positives, p.Negatives, p.NotesTomorrow, p.FinancialNotes}
	for i, f := range doc.TextFields() {
		v := ""
		if src[i] != nil {
			v = *src[i]
		}
		*f.Value = &v
	}
	rating := 0
	if p.Rating != nil {
		rating = *p.Rating
	}
	doc.Rating = &rating
	return doc
}

// Format is a supported document format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "md"
)

// sections maps markdown headings to the fields they hold, in display order.
var sections = []struct {
	heading string
	field   func(*DayPage) **string
}{
	{"Quote", func(d *DayPage) **string { return &d.Quote }},
	{"Lesson of the day", func(d *DayPage) **string { return &d.LessonOfDay }},
	{"Positives", func(d *DayPage) **string { return &d.Positives }},
	{"Negatives", func(d *DayPage) **string { return &d.Negatives }},
	{"Notes for tomorrow", func(d *DayPage) **string { return &d.NotesTomorrow }},
	{"Financial notes", func(d *DayPage) **string { return &d.FinancialNotes }},
}

// DetectFormat guesses the format of a document.
func DetectFormat(data []byte) (Format, error) {
	text := string(data)
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(text, "---\n") || strings.HasPrefix(trimmed, "## ") {
		return FormatMarkdown, nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var js json.RawMessage
		if err := json.Unmarshal(data, &js); err != nil {
			return "", fmt.Errorf("input appears to be JSON but is invalid")
		}
		return FormatJSON, nil
	}

	var probe any
	if err := yaml.Unmarshal(data, &probe); err == nil {
		if _, ok := probe.(map[string]any); ok {
			return FormatYAML, nil
		}
	}

	return FormatMarkdown, nil
}

// ParseJSON parses a JSON document. Unknown keys are rejected.
func ParseJSON(data []byte) (*DayPage, error) {
	var doc DayPage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &doc, nil
}

// ParseYAML parses a YAML document. Unknown keys are rejected.
func ParseYAML(data []byte) (*DayPage, error) {
	doc, err := decodeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return doc, nil
}

// ParseMarkdown parses optional YAML front matter followed by "## " sections.
// A section that is present but empty clears its field.
func ParseMarkdown(data []byte) (*DayPage, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	doc := &DayPage{}
	body := text
	if strings.HasPrefix(text, "---\n") {
		front, rest, err := splitFrontMatter(text)
		if err != nil {
			return nil, err
		}
		doc, err = decodeYAML([]byte(front))
		if err != nil {
			return nil, fmt.Errorf("failed to parse front matter: %w", err)
		}
		body = rest
	}

	if err := parseSections(body, doc); err != nil {
		return nil, err
	}
	if doc.IsEmpty() && doc.Date == "" {
		return nil, fmt.Errorf("document sets no fields")
	}
	return doc, nil
}

// Parse parses data in the given format, detecting it when format is empty.
func Parse(data []byte, format string) (*DayPage, error) {
	f := Format(format)
	if f == "" {
		detected, err := DetectFormat(data)
		if err != nil {
			return nil, err
		}
		f = detected
	}

	switch f {
	case FormatJSON:
		return ParseJSON(data)
	case FormatYAML, "yml":
		return ParseYAML(data)
	case FormatMarkdown, "markdown":
		return ParseMarkdown(data)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// RenderMarkdown renders a document as markdown. Front matter keys and
// section headings are written even when empty so an editor shows every
// field.
func RenderMarkdown(d *DayPage) []byte {
	front := struct {
		Date       string `yaml:"date"`
		Event      string `yaml:"event"`
		WakeUpTime string `yaml:"wake_up_time"`
		SleepTime  string `yaml:"sleep_time"`
		Rating     int    `yaml:"rating"`
		Emoji      string `yaml:"emoji"`
	}{
		Date:       d.Date,
		Event:      value(d.Event),
		WakeUpTime: value(d.WakeUpTime),
		SleepTime:  value(d.SleepTime),
		Emoji:      value(d.Emoji),
	}
	if d.Rating != nil {
		front.Rating = *d.Rating
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	// Encoding a flat struct of strings and an int cannot fail.
	_ = enc.Encode(front)
	_ = enc.Close()
	buf.WriteString("---\n")

	for _, s := range sections {
		fmt.Fprintf(&buf, "\n## %s\n\n", s.heading)
		if v := strings.TrimSpace(value(*s.field(d))); v != "" {
			buf.WriteString(v)
			buf.WriteString("\n")
		}
	}
	return buf.Bytes()
}

func decodeYAML(data []byte) (*DayPage, error) {
	var doc DayPage
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &doc, nil
}

// splitFrontMatter splits "---\n<front>\n---\n<body>" into its parts.
func splitFrontMatter(text string) (string, string, error) {
	rest := text[len("---\n"):]
	if strings.HasPrefix(rest, "---\n") || rest == "---" {
		return "", strings.TrimPrefix(rest, "---"), nil
	}
	if i := strings.Index(rest, "\n---\n"); i >= 0 {
		return rest[:i], rest[i+len("\n---\n"):], nil
	}
	if strings.HasSuffix(rest, "\n---") {
		return strings.TrimSuffix(rest, "\n---"), "", nil
	}
	return "", "", fmt.Errorf("invalid markdown front matter format")
}

func parseSections(body string, doc *DayPage) error {
	var (
		current **string
		heading string
		content []string
	)
	flush := func() {
		if current == nil {
			return
		}
		v := strings.TrimSpace(strings.Join(content, "\n"))
		*current = &v
	}

	seen := make(map[string]bool)
	for n, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "## ") {
			if current == nil && strings.TrimSpace(line) != "" {
				return fmt.Errorf("line %d: text outside a section", n+1)
			}
			content = append(content, line)
			continue
		}

		flush()
		heading = strings.TrimSpace(line[3:])
		field := sectionField(doc, heading)
		if field == nil {
			return fmt.Errorf("line %d: unknown section %s", n+1, strconv.Quote(heading))
		}
		key := strings.ToLower(heading)
		if seen[key] {
			return fmt.Errorf("line %d: duplicate section %s", n+1, strconv.Quote(heading))
		}
		if *field != nil {
			return fmt.Errorf("line %d: section %s is also set in front matter", n+1, strconv.Quote(heading))
		}
		seen[key] = true
		current = field
		content = content[:0]
	}
	flush()
	return nil
}

func sectionField(doc *DayPage, heading string) **string {
	for _, s := range sections {
		if strings.EqualFold(s.heading, heading) {
			return s.field(doc)
		}
	}
	return nil
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
