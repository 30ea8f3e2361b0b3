package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/lherron/daybook/internal/cli/appctx"
	"github.com/lherron/daybook/internal/domain"
	"github.com/lherron/daybook/internal/ordering"
	"github.com/lherron/daybook/internal/store"
)

var itemMvCmd = &cobra.Command{
	Use:   "mv <item>",
	Short: "Move an item within or across routines",
	Long: `Move an item to a new priority, to another routine, or both.

  daybook item mv I-00004 -p 1                 # to the top of its routine
  daybook item mv I-00004 --end                # to the bottom
  daybook item mv I-00004 --to Evening -p 2    # into another routine at 2
  daybook item mv I-00004 --to Evening         # append to another routine
  daybook item mv I-00004 -p 1 --dry-run       # show the reordering only

Priorities past the end of the destination are clamped to its end.`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.WithUser(), runItemMv),
}

var (
	itemMvTo       string
	itemMvPriority string
	itemMvEnd      bool
	itemMvDryRun   bool
	itemMvIfMatch  int64
)

func init() {
	itemCmd.AddCommand(itemMvCmd)
	defineItemMvFlags(itemMvCmd)
}

func defineItemMvFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&itemMvTo, "to", "", "Destination routine (default: the item's routine)")
	cmd.Flags().StringVarP(&itemMvPriority, "priority", "p", "", "Destination priority")
	cmd.Flags().BoolVar(&itemMvEnd, "end", false, "Move to the end of the destination routine")
	cmd.Flags().BoolVar(&itemMvDryRun, "dry-run", false, "Print the resulting reordering as a diff without writing")
	cmd.Flags().Int64Var(&itemMvIfMatch, "if-match", 0, "Only move if etag matches")
}

func runItemMv(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	userUUID := app.UserUUID()

	if itemMvEnd && itemMvPriority != "" {
		return fmt.Errorf("--end and --priority are mutually exclusive")
	}
	priority, err := parsePriority(itemMvPriority)
	if err != nil {
		return err
	}
	if err := domain.ValidatePriority(priority); err != nil {
		return err
	}

	item, err := app.Store.Items.Resolve(ctx, userUUID, args[0])
	if err != nil {
		return err
	}

	source, err := app.Store.Routines.Get(ctx, userUUID, item.RoutineUUID)
	if err != nil {
		return err
	}
	dest := source
	if itemMvTo != "" {
		dest, err = app.Store.Routines.Resolve(ctx, userUUID, itemMvTo)
		if err != nil {
			return err
		}
	}
	if dest.UUID == source.UUID && priority == nil && !itemMvEnd {
		return fmt.Errorf("nothing to move (use -p, --end, or --to)")
	}

	if itemMvDryRun {
		target := ordering.Placement{RoutineUUID: dest.UUID, Priority: priority}
		return previewMove(ctx, app.Store, userUUID, item, []*domain.Routine{source, dest}, target, cmd.OutOrStdout())
	}

	moved, err := app.Store.Items.Update(ctx, userUUID, item.UUID, store.ItemUpdateParams{
		RoutineUUID: &dest.UUID,
		Priority:    priority,
		ToEnd:       priority == nil,
	}, itemMvIfMatch)
	if err != nil {
		return err
	}

	if dest.UUID != source.UUID {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s #%d -> %s #%d\n",
			moved.ID, moved.Title, source.Name, item.Priority, dest.Name, moved.Priority)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: #%d -> #%d\n", moved.ID, moved.Title, item.Priority, moved.Priority)
	}
	return nil
}

// previewMove loads the affected routines into an in-memory board, applies
// the move there, and writes a unified diff of each routine's listing.
func previewMove(ctx context.Context, s *store.Store, userUUID string, item *domain.RoutineItem, routines []*domain.Routine, target ordering.Placement, w io.Writer) error {
	board := ordering.NewBoard()
	seen := map[string]bool{}
	var affected []*domain.Routine
	for _, r := range routines {
		if seen[r.UUID] {
			continue
		}
		seen[r.UUID] = true
		affected = append(affected, r)

		items, err := s.Items.List(ctx, userUUID, r.UUID, store.ItemListOptions{IncludeInactive: true})
		if err != nil {
			return err
		}
		for _, it := range items {
			board.Add(r.UUID, it.UUID, boardLabel(it), it.Priority)
		}
	}

	before := make(map[string][]string, len(affected))
	for _, r := range affected {
		before[r.UUID] = board.Lines(r.UUID)
	}
	if _, err := board.Update(ctx, item.UUID, target); err != nil {
		return err
	}

	changed := false
	for _, r := range affected {
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        before[r.UUID],
			B:        board.Lines(r.UUID),
			FromFile: r.Name + " (current)",
			ToFile:   r.Name + " (after move)",
			Context:  3,
		})
		if err != nil {
			return fmt.Errorf("failed to diff %s: %w", r.Name, err)
		}
		if diff != "" {
			changed = true
			fmt.Fprint(w, diff)
		}
	}
	if !changed {
		fmt.Fprintln(w, "No change.")
	}
	return nil
}

func boardLabel(it domain.RoutineItem) string {
	label := it.ID + " " + it.Title
	if !it.Active {
		label += " (inactive)"
	}
	return label
}
