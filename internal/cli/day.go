package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/daybook/internal/cli/appctx"
	"github.com/lherron/daybook/internal/domain"
	"github.com/lherron/daybook/internal/parse"
	"github.com/lherron/daybook/internal/store"
)

var dayCmd = &cobra.Command{
	Use:     "day",
	Aliases: []string{"d"},
	Short:   "Read and write day pages",
	Long: `A day page holds one day of the planner: the event of the day, wake and
sleep times, quote, lesson, positives, negatives, notes for tomorrow,
financial notes, a 1-10 rating, and a mood emoji.

Dates are YYYY-MM-DD, "today", or "yesterday". Omitted dates mean today.`,
}

var daySetCmd = &cobra.Command{
	Use:   "set [date]",
	Short: "Create or update a day page",
	Args:  cobra.MaximumNArgs(1),
	RunE:  appctx.WithApp(appctx.WithUser(), runDaySet),
}

var dayCatCmd = &cobra.Command{
	Use:   "cat [date]",
	Short: "Print a day page",
	Args:  cobra.MaximumNArgs(1),
	RunE:  appctx.WithApp(appctx.WithUser(), runDayCat),
}

var dayLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List day pages, newest first",
	Args:    cobra.NoArgs,
	RunE:    appctx.WithApp(appctx.WithUser(), runDayLs),
}

var dayRmCmd = &cobra.Command{
	Use:   "rm <date>",
	Short: "Delete a day page",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.WithUser(), runDayRm),
}

var (
	dayEvent       string
	dayWake        string
	daySleep       string
	dayQuote       string
	dayLesson      string
	dayPositives   string
	dayNegatives   string
	dayTomorrow    string
	dayFinancial   string
	dayRating      int
	dayEmoji       string
	dayClearRating bool
	dayIfMatch     int64
	dayCatMarkdown bool

	dayLsFrom   string
	dayLsTo     string
	dayLsRating int
	dayLsEmoji  string
	dayLsQuery  string
	dayLsLimit  int
	dayLsCursor string
)

func init() {
	rootCmd.AddCommand(dayCmd)
	dayCmd.AddCommand(daySetCmd, dayCatCmd, dayLsCmd, dayRmCmd)

	defineDaySetFlags(daySetCmd)
	defineDayLsFlags(dayLsCmd)
	dayCatCmd.Flags().BoolVar(&dayCatMarkdown, "md", false, "Print as an editable markdown document")
	dayRmCmd.Flags().Int64Var(&dayIfMatch, "if-match", 0, "Only delete if etag matches")
}

func defineDaySetFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&dayEvent, "event", "", "Event of the day")
	f.StringVar(&dayWake, "wake", "", "Wake-up time (HH:MM)")
	f.StringVar(&daySleep, "sleep", "", "Sleep time (HH:MM)")
	f.StringVar(&dayQuote, "quote", "", "Quote of the day")
	f.StringVar(&dayLesson, "lesson", "", "Lesson of the day")
	f.StringVar(&dayPositives, "positives", "", "What went well")
	f.StringVar(&dayNegatives, "negatives", "", "What went badly")
	f.StringVar(&dayTomorrow, "tomorrow", "", "Notes for tomorrow")
	f.StringVar(&dayFinancial, "financial", "", "Financial notes")
	f.IntVar(&dayRating, "rating", 0, "Rating of the day (1-10)")
	f.StringVar(&dayEmoji, "emoji", "", "Mood emoji")
	f.BoolVar(&dayClearRating, "clear-rating", false, "Remove the rating")
	f.Int64Var(&dayIfMatch, "if-match", 0, "Only update if etag matches")
}

func defineDayLsFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&dayLsFrom, "from", "", "Earliest date (inclusive)")
	f.StringVar(&dayLsTo, "to", "", "Latest date (inclusive)")
	f.IntVar(&dayLsRating, "rating", 0, "Only pages with this rating")
	f.StringVar(&dayLsEmoji, "emoji", "", "Only pages with this emoji")
	f.StringVarP(&dayLsQuery, "query", "q", "", "Search quote, lesson, and positives")
	f.IntVarP(&dayLsLimit, "limit", "n", 0, "Maximum pages to list (0 = all)")
	f.StringVar(&dayLsCursor, "cursor", "", "Continue after a previous listing (requires -n)")
}

func runDaySet(app *appctx.App, cmd *cobra.Command, args []string) error {
	date, err := dateArg(args)
	if err != nil {
		return err
	}

	fields := store.DayPageFields{
		Event:          changedString(cmd, "event", dayEvent),
		WakeUpTime:     changedString(cmd, "wake", dayWake),
		SleepTime:      changedString(cmd, "sleep", daySleep),
		Quote:          changedString(cmd, "quote", dayQuote),
		LessonOfDay:    changedString(cmd, "lesson", dayLesson),
		Positives:      changedString(cmd, "positives", dayPositives),
		Negatives:      changedString(cmd, "negatives", dayNegatives),
		NotesTomorrow:  changedString(cmd, "tomorrow", dayTomorrow),
		FinancialNotes: changedString(cmd, "financial", dayFinancial),
		Emoji:          changedString(cmd, "emoji", dayEmoji),
		ClearRating:    dayClearRating,
	}
	if cmd.Flags().Changed("rating") {
		if dayClearRating {
			return fmt.Errorf("--rating and --clear-rating are mutually exclusive")
		}
		rating := dayRating
		fields.Rating = &rating
	}

	page, created, err := app.Store.DayPages.Upsert(cmd.Context(), app.UserUUID(), date, fields, dayIfMatch)
	if err != nil {
		return err
	}

	printDayWrite(cmd, page, created)
	return nil
}

func runDayCat(app *appctx.App, cmd *cobra.Command, args []string) error {
	date, err := dateArg(args)
	if err != nil {
		return err
	}
	page, err := app.Store.DayPages.Get(cmd.Context(), app.UserUUID(), date)
	if err != nil {
		return err
	}

	if dayCatMarkdown {
		_, err := cmd.OutOrStdout().Write(parse.RenderMarkdown(parse.FromDomain(page)))
		return err
	}
	if structuredOutput(app) {
		r, err := newRenderer(app, cmd)
		if err != nil {
			return err
		}
		return r.Render(page, nil, nil)
	}
	writeDayPage(cmd, page)
	return nil
}

func runDayLs(app *appctx.App, cmd *cobra.Command, args []string) error {
	if dayLsCursor != "" && dayLsLimit == 0 {
		return fmt.Errorf("--cursor requires --limit")
	}
	filter := store.DayPageFilter{
		Emoji:  dayLsEmoji,
		Query:  dayLsQuery,
		Limit:  dayLsLimit,
		Cursor: dayLsCursor,
	}
	now := time.Now()
	if dayLsFrom != "" {
		from, err := domain.ParseDate(dayLsFrom, now)
		if err != nil {
			return err
		}
		filter.From = from
	}
	if dayLsTo != "" {
		to, err := domain.ParseDate(dayLsTo, now)
		if err != nil {
			return err
		}
		filter.To = to
	}
	if dayLsRating != 0 {
		rating := dayLsRating
		filter.Rating = &rating
	}

	list, err := app.Store.DayPages.Page(cmd.Context(), app.UserUUID(), filter)
	if err != nil {
		return err
	}
	pages := list.Pages

	r, err := newRenderer(app, cmd)
	if err != nil {
		return err
	}
	rows := make([][]string, len(pages))
	for i, p := range pages {
		rating := ""
		if p.Rating != nil {
			rating = strconv.Itoa(*p.Rating)
		}
		rows[i] = []string{p.Date, p.ID, rating, deref(p.Emoji), deref(p.Event)}
	}
	if err := r.Render(pages, []string{"DATE", "ID", "RATING", "MOOD", "EVENT"}, rows); err != nil {
		return err
	}
	if list.NextCursor != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "More pages: --cursor %s\n", list.NextCursor)
	}
	return nil
}

func runDayRm(app *appctx.App, cmd *cobra.Command, args []string) error {
	date, err := dateArg(args)
	if err != nil {
		return err
	}
	if err := app.Store.DayPages.Delete(cmd.Context(), app.UserUUID(), date, dayIfMatch); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", date)
	return nil
}

func dateArg(args []string) (string, error) {
	var s string
	if len(args) > 0 {
		s = args[0]
	}
	return domain.ParseDate(s, time.Now())
}

func writeDayPage(cmd *cobra.Command, p *domain.DayPage) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# %s (%s)\n", p.Date, p.ID)

	fields := []struct {
		label string
		value *string
	}{
		{"Event", p.Event},
		{"Woke up", p.WakeUpTime},
		{"Slept", p.SleepTime},
		{"Mood", p.Emoji},
		{"Quote", p.Quote},
		{"Lesson of the day", p.LessonOfDay},
		{"Positives", p.Positives},
		{"Negatives", p.Negatives},
		{"Notes for tomorrow", p.NotesTomorrow},
		{"Financial notes", p.FinancialNotes},
	}
	for _, f := range fields {
		if f.value == nil || strings.TrimSpace(*f.value) == "" {
			continue
		}
		fmt.Fprintf(out, "%s: %s\n", f.label, *f.value)
	}
	if p.Rating != nil {
		fmt.Fprintf(out, "Rating: %d/10\n", *p.Rating)
	}
}
