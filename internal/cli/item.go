package cli

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/spf13/cobra"

	"github.com/lherron/daybook/internal/bulk"
	"github.com/lherron/daybook/internal/cli/appctx"
	"github.com/lherron/daybook/internal/domain"
	"github.com/lherron/daybook/internal/store"
)

var itemCmd = &cobra.Command{
	Use:     "item",
	Aliases: []string{"i"},
	Short:   "Manage routine items",
	Long: `Routine items are the ranked entries of a routine. Priorities run 1..N
inside each routine; adding, moving, or removing an item renumbers its
siblings so the sequence never has gaps or duplicates.

Items are referenced by friendly ID (I-00001) or UUID.`,
}

var itemAddCmd = &cobra.Command{
	Use:   "add <routine> <title>...",
	Short: "Add items to a routine",
	Long: `Add items to a routine. Without -p the items are appended. With -p N the
first title is inserted at N, the next at N+1, and so on; every existing item
from N on moves down. N past the end of the routine appends.`,
	Args: cobra.MinimumNArgs(2),
	RunE: appctx.WithApp(appctx.WithUser(), runItemAdd),
}

var itemLsCmd = &cobra.Command{
	Use:     "ls <routine>",
	Aliases: []string{"list"},
	Short:   "List a routine's items in priority order",
	Args:    cobra.ExactArgs(1),
	RunE:    appctx.WithApp(appctx.WithUser(), runItemLs),
}

var itemSetCmd = &cobra.Command{
	Use:   "set <item>",
	Short: "Edit an item",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.WithUser(), runItemSet),
}

var itemRmCmd = &cobra.Command{
	Use:   "rm <item>...",
	Short: "Delete items and close the gaps they leave",
	Args:  cobra.MinimumNArgs(1),
	RunE:  appctx.WithApp(appctx.WithUser(), runItemRm),
}

var (
	itemPriority    string
	itemDescription string
	itemInactive    bool
	itemLsAll       bool
	itemSetTitle    string
	itemSetActive   bool
	itemIfMatch     int64
	itemJobs        int
	itemContinue    bool
)

func init() {
	rootCmd.AddCommand(itemCmd)
	itemCmd.AddCommand(itemAddCmd, itemLsCmd, itemSetCmd, itemRmCmd)

	defineItemAddFlags(itemAddCmd)
	itemLsCmd.Flags().BoolVarP(&itemLsAll, "all", "a", false, "Include inactive items")
	defineItemSetFlags(itemSetCmd)
	defineItemRmFlags(itemRmCmd)
}

func defineItemAddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&itemPriority, "priority", "p", "", "Insert at this priority (default: append)")
	cmd.Flags().StringVarP(&itemDescription, "description", "d", "", "Item description")
	cmd.Flags().BoolVar(&itemInactive, "inactive", false, "Create the item inactive")
	cmd.Flags().BoolVar(&itemContinue, "continue-on-error", false, "Keep adding after a failure")
}

func defineItemRmFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&itemIfMatch, "if-match", 0, "Only delete if etag matches (single item only)")
	cmd.Flags().IntVarP(&itemJobs, "jobs", "j", 1, "Parallel workers (0 = one per CPU)")
	cmd.Flags().BoolVar(&itemContinue, "continue-on-error", false, "Keep deleting after a failure")
}

func defineItemSetFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&itemSetTitle, "title", "", "New title")
	cmd.Flags().StringVarP(&itemDescription, "description", "d", "", "New description (empty clears)")
	cmd.Flags().BoolVar(&itemSetActive, "active", true, "Mark the item active or inactive")
	cmd.Flags().StringVarP(&itemPriority, "priority", "p", "", "Move to this priority within the routine")
	cmd.Flags().Int64Var(&itemIfMatch, "if-match", 0, "Only update if etag matches")
}

func runItemAdd(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	routine, err := app.Store.Routines.Resolve(ctx, app.UserUUID(), args[0])
	if err != nil {
		return err
	}
	priority, err := parsePriority(itemPriority)
	if err != nil {
		return err
	}
	description := changedString(cmd, "description", itemDescription)

	// Ordered: each title lands after the previous one.
	op := &bulk.Operation{Ordered: true, ContinueOnError: itemContinue, Logger: app.Logger}
	placed := 0
	result := op.Execute(ctx, args[1:], func(ctx context.Context, _ int, title string) error {
		var at *int
		if priority != nil {
			p := *priority + placed
			at = &p
		}
		item, err := app.Store.Items.Create(ctx, app.UserUUID(), store.ItemCreateParams{
			RoutineUUID: routine.UUID,
			Title:       title,
			Description: description,
			Inactive:    itemInactive,
			Priority:    at,
		})
		if err != nil {
			return err
		}
		placed++
		printItem(cmd, item)
		return nil
	})
	result.PrintSummary(cmd.ErrOrStderr())
	return result.Err()
}

func runItemLs(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	routine, err := app.Store.Routines.Resolve(ctx, app.UserUUID(), args[0])
	if err != nil {
		return err
	}
	items, err := app.Store.Items.List(ctx, app.UserUUID(), routine.UUID, store.ItemListOptions{IncludeInactive: itemLsAll})
	if err != nil {
		return err
	}

	r, err := newRenderer(app, cmd)
	if err != nil {
		return err
	}
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{strconv.Itoa(it.Priority), it.ID, it.Title, yesNo(it.Active), deref(it.Description)}
	}
	return r.Render(items, []string{"#", "ID", "TITLE", "ACTIVE", "DESCRIPTION"}, rows)
}

func runItemSet(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	item, err := app.Store.Items.Resolve(ctx, app.UserUUID(), args[0])
	if err != nil {
		return err
	}
	priority, err := parsePriority(itemPriority)
	if err != nil {
		return err
	}

	params := store.ItemUpdateParams{
		Title:       changedString(cmd, "title", itemSetTitle),
		Description: changedString(cmd, "description", itemDescription),
		Active:      changedBool(cmd, "active", itemSetActive),
		Priority:    priority,
	}
	if params.Title == nil && params.Description == nil && params.Active == nil && params.Priority == nil {
		return fmt.Errorf("nothing to update (use --title, -d, --active, or -p)")
	}

	updated, err := app.Store.Items.Update(ctx, app.UserUUID(), item.UUID, params, itemIfMatch)
	if err != nil {
		return err
	}
	printItem(cmd, updated)
	return nil
}

func runItemRm(app *appctx.App, cmd *cobra.Command, args []string) error {
	if itemIfMatch != 0 && len(args) > 1 {
		return fmt.Errorf("--if-match applies to a single item")
	}

	var mu sync.Mutex
	op := &bulk.Operation{Jobs: itemJobs, ContinueOnError: itemContinue, Logger: app.Logger}
	result := op.Execute(cmd.Context(), args, func(ctx context.Context, _ int, ref string) error {
		item, err := app.Store.Items.Resolve(ctx, app.UserUUID(), ref)
		if err != nil {
			return err
		}
		if err := app.Store.Items.Delete(ctx, app.UserUUID(), item.UUID, itemIfMatch); err != nil {
			return err
		}
		mu.Lock()
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", item.ID, item.Title)
		mu.Unlock()
		return nil
	})
	result.PrintSummary(cmd.ErrOrStderr())
	return result.Err()
}

func printItem(cmd *cobra.Command, it *domain.RoutineItem) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d. %s (etag: %d)\n", it.ID, it.Priority, it.Title, it.ETag)
}
