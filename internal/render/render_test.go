package render

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatTable},
		{in: "JSON", want: FormatJSON},
		{in: " yaml ", want: FormatYAML},
		{in: "tsv", want: FormatTSV},
		{in: "csv", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFormat(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{Format: FormatTable})
	err := r.Render(nil, []string{"DATE", "EMOJI", "RATING"}, [][]string{
		{"2024-03-10", "🌄", "8"},
		{"2024-03-09", "", "10"},
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	want := strings.Join([]string{
		"DATE        EMOJI  RATING",
		"----------  -----  ------",
		"2024-03-10  🌄      8",
		"2024-03-09         10",
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("table output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestRenderStructured(t *testing.T) {
	data := map[string]interface{}{"name": "Morning Routine", "items": 3}

	var buf bytes.Buffer
	if err := NewRenderer(&buf, Options{Format: FormatJSON}).Render(data, nil, nil); err != nil {
		t.Fatalf("json render failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"name": "Morning Routine"`) {
		t.Errorf("unexpected json: %s", buf.String())
	}

	buf.Reset()
	if err := NewRenderer(&buf, Options{Format: FormatYAML}).Render(data, nil, nil); err != nil {
		t.Fatalf("yaml render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "name: Morning Routine") {
		t.Errorf("unexpected yaml: %s", buf.String())
	}

	buf.Reset()
	if err := NewRenderer(&buf, Options{Format: FormatTSV}).Render(data, []string{"A", "B"}, [][]string{{"1", "2"}}); err != nil {
		t.Fatalf("tsv render failed: %v", err)
	}
	if buf.String() != "A\tB\n1\t2\n" {
		t.Errorf("unexpected tsv: %q", buf.String())
	}
}

func TestRenderTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRenderer(&buf, Options{}).RenderTable([]string{"A"}, nil); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty table, got %q", buf.String())
	}
}
