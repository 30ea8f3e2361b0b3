package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/daybook/internal/cli/appctx"
	"github.com/lherron/daybook/internal/render"
)

// newRenderer returns a renderer for the configured output format.
func newRenderer(app *appctx.App, cmd *cobra.Command) (*render.Renderer, error) {
	format, err := render.ParseFormat(app.Config.Output)
	if err != nil {
		return nil, err
	}
	return render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: format}), nil
}

// structuredOutput reports whether the output format is json or yaml.
func structuredOutput(app *appctx.App) bool {
	format, err := render.ParseFormat(app.Config.Output)
	return err == nil && (format == render.FormatJSON || format == render.FormatYAML)
}

// parsePriority parses an optional priority flag. Empty means unset.
func parsePriority(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	p, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("invalid priority %q: must be an integer", s)
	}
	return &p, nil
}

// changedString returns a pointer to value when the named flag was set.
func changedString(cmd *cobra.Command, name, value string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}

// changedBool returns a pointer to value when the named flag was set.
func changedBool(cmd *cobra.Command, name string, value bool) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
