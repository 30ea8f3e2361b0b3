package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/daybook/internal/cli/appctx"
	"github.com/lherron/daybook/internal/domain"
	"github.com/lherron/daybook/internal/id"
	"github.com/lherron/daybook/internal/store"
)

var logCmd = &cobra.Command{
	Use:   "log [routine|item]",
	Short: "Show recent changes",
	Long: `Show recent changes from the event log, newest first.

Examples:
  daybook log                      # Everything for the current user
  daybook log R-00001              # History of one routine
  daybook log I-00004 -n 5         # Last five changes to an item
  daybook log --type routine_item.updated
`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.WithUser(), runLog),
}

var (
	logLimit int
	logType  string
)

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 20, "Number of events to show")
	logCmd.Flags().StringVar(&logType, "type", "", "Only events of this type")
}

func runLog(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	filter := store.EventFilter{
		UserUUID:  app.UserUUID(),
		EventType: logType,
		Limit:     logLimit,
	}

	if len(args) == 1 {
		ref := args[0]
		if id.IsType(ref, id.TypeItem) {
			item, err := app.Store.Items.Resolve(ctx, app.UserUUID(), ref)
			if err != nil {
				return err
			}
			filter.ResourceUUID = item.UUID
		} else {
			routine, err := app.Store.Routines.Resolve(ctx, app.UserUUID(), ref)
			if err != nil {
				return err
			}
			filter.ResourceUUID = routine.UUID
		}
	}

	events, err := app.Store.Events.Recent(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to query event log: %w", err)
	}

	r, err := newRenderer(app, cmd)
	if err != nil {
		return err
	}
	rows := make([][]string, len(events))
	for i, e := range events {
		rows[i] = []string{formatTime(e.Timestamp), e.EventType, deref(e.ResourceUUID), summarizePayload(&e)}
	}
	return r.Render(events, []string{"TIME", "EVENT", "RESOURCE", "DETAILS"}, rows)
}

// summarizePayload renders the top-level payload keys as "k=v" pairs.
func summarizePayload(e *domain.Event) string {
	m, err := e.PayloadMap()
	if err != nil || len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, " ")
}
