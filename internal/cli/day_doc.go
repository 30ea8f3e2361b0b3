package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/daybook/internal/cli/appctx"
	"github.com/lherron/daybook/internal/domain"
	"github.com/lherron/daybook/internal/edit"
	"github.com/lherron/daybook/internal/parse"
	"github.com/lherron/daybook/internal/store"
)

var dayApplyCmd = &cobra.Command{
	Use:   "apply [file|-]",
	Short: "Write a day page from a JSON, YAML, or markdown document",
	Long: `Write a day page from a document. Without a file, or with "-", the
document is read from stdin. Only fields present in the document change;
an empty value clears a field and "rating: 0" clears the rating.

Markdown documents take the short fields as YAML front matter and the
free-text fields as sections:

  ---
  date: 2026-10-19
  event: Launch day
  rating: 8
  ---

  ## Positives

  Shipped the release.

The date comes from --date, then the document, then today.`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.WithUser(), runDayApply),
}

var dayEditCmd = &cobra.Command{
	Use:   "edit [date]",
	Short: "Edit a day page in $EDITOR with 3-way merge",
	Long: `Open a day page as markdown in $EDITOR. On save, the fields you changed
are merged with anything written to the page while the editor was open.
Conflicting changes abort the edit without writing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.WithUser(), runDayEdit),
}

var (
	dayApplyDate   string
	dayApplyFormat string
	dayEditIfMatch int64
)

// runEditor opens path in the user's editor and waits for it to exit.
var runEditor = func(ctx context.Context, cmd *cobra.Command, path string) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	c := exec.CommandContext(ctx, editor, path)
	c.Stdin = os.Stdin
	c.Stdout = cmd.OutOrStdout()
	c.Stderr = cmd.ErrOrStderr()
	return c.Run()
}

func init() {
	dayCmd.AddCommand(dayApplyCmd, dayEditCmd)
	defineDayApplyFlags(dayApplyCmd)
	defineDayEditFlags(dayEditCmd)
}

func defineDayApplyFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&dayApplyDate, "date", "", "Day to write (default: the document's date, then today)")
	cmd.Flags().StringVar(&dayApplyFormat, "format", "", "Document format: json, yaml, or md (default: detect)")
	cmd.Flags().Int64Var(&dayIfMatch, "if-match", 0, "Only update if etag matches")
}

func defineDayEditFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&dayEditIfMatch, "if-match", 0, "Only edit if etag matches")
}

func runDayApply(app *appctx.App, cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	doc, err := parse.Parse(data, dayApplyFormat)
	if err != nil {
		return err
	}
	date, err := applyDate(dayApplyDate, doc.Date)
	if err != nil {
		return err
	}
	if doc.IsEmpty() {
		return fmt.Errorf("document sets no fields")
	}

	page, created, err := app.Store.DayPages.Upsert(cmd.Context(), app.UserUUID(), date, docFields(doc), dayIfMatch)
	if err != nil {
		return err
	}
	printDayWrite(cmd, page, created)
	return nil
}

// applyDate picks the day a document is written to.
func applyDate(flag, docDate string) (string, error) {
	now := time.Now()
	if flag == "" {
		return domain.ParseDate(docDate, now)
	}
	date, err := domain.ParseDate(flag, now)
	if err != nil {
		return "", err
	}
	if docDate != "" && docDate != date {
		return "", fmt.Errorf("--date %s does not match the document's date %s", date, docDate)
	}
	return date, nil
}

func runDayEdit(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	date, err := dateArg(args)
	if err != nil {
		return err
	}

	var baseETag int64
	basePage := &domain.DayPage{Date: date}
	current, err := app.Store.DayPages.Get(ctx, app.UserUUID(), date)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return err
	default:
		basePage, baseETag = current, current.ETag
	}
	if err := domain.CheckETag(baseETag, dayEditIfMatch); err != nil {
		return err
	}
	base := parse.FromDomain(basePage)

	edited, err := editDocument(ctx, cmd, base)
	if err != nil {
		return err
	}
	if edited.Date != "" && edited.Date != date {
		return fmt.Errorf("the date cannot be changed in the editor (was %s, now %s)", date, edited.Date)
	}

	changes := edit.Changed(base, edited)
	if changes.IsEmpty() {
		fmt.Fprintln(cmd.OutOrStdout(), "No changes.")
		return nil
	}

	page, created, err := app.Store.DayPages.Upsert(ctx, app.UserUUID(), date, docFields(changes), baseETag)
	var mismatch *domain.ETagMismatchError
	if errors.As(err, &mismatch) {
		page, created, err = mergeAndWrite(ctx, app, cmd, date, base, edited)
	}
	if err != nil {
		return err
	}
	printDayWrite(cmd, page, created)
	return nil
}

// mergeAndWrite replays an edit on top of a page that changed while the
// editor was open.
func mergeAndWrite(ctx context.Context, app *appctx.App, cmd *cobra.Command, date string, base, edited *parse.DayPage) (*domain.DayPage, bool, error) {
	stored, err := app.Store.DayPages.Get(ctx, app.UserUUID(), date)
	if err != nil {
		return nil, false, err
	}
	current := parse.FromDomain(stored)

	result := edit.Merge3Way(base, current, edited)
	if result.HasConflict() {
		fmt.Fprint(cmd.ErrOrStderr(), result.FormatConflicts())
		return nil, false, fmt.Errorf("%s changed while editing; nothing written", date)
	}

	app.Logger.Debug("merged concurrent day page edit", "date", date, "etag", stored.ETag)
	return app.Store.DayPages.Upsert(ctx, app.UserUUID(), date, docFields(edit.Changed(current, result.Merged)), stored.ETag)
}

func editDocument(ctx context.Context, cmd *cobra.Command, doc *parse.DayPage) (*parse.DayPage, error) {
	f, err := os.CreateTemp("", "daybook-edit-*.md")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(parse.RenderMarkdown(doc)); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := runEditor(ctx, cmd, path); err != nil {
		return nil, fmt.Errorf("editor failed: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read edited file: %w", err)
	}
	edited, err := parse.ParseMarkdown(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse edited document: %w", err)
	}
	return edited, nil
}

// docFields converts a document into store fields. Absent fields stay nil.
func docFields(doc *parse.DayPage) store.DayPageFields {
	fields := store.DayPageFields{
		Event:          doc.Event,
		WakeUpTime:     doc.WakeUpTime,
		SleepTime:      doc.SleepTime,
		Quote:          doc.Quote,
		LessonOfDay:    doc.LessonOfDay,
		Positives:      doc.Positives,
		Negatives:      doc.Negatives,
		NotesTomorrow:  doc.NotesTomorrow,
		FinancialNotes: doc.FinancialNotes,
		Emoji:          doc.Emoji,
	}
	if doc.Rating != nil {
		if *doc.Rating == 0 {
			fields.ClearRating = true
		} else {
			fields.Rating = doc.Rating
		}
	}
	return fields
}

func printDayWrite(cmd *cobra.Command, page *domain.DayPage, created bool) {
	verb := "Updated"
	if created {
		verb = "Created"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s, etag: %d)\n", verb, page.Date, page.ID, page.ETag)
}
