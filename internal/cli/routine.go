package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lherron/daybook/internal/cli/appctx"
	"github.com/lherron/daybook/internal/domain"
	"github.com/lherron/daybook/internal/store"
)

var routineCmd = &cobra.Command{
	Use:     "routine",
	Aliases: []string{"r"},
	Short:   "Manage routines",
	Long: `Routines are named, ordered lists of items such as "Morning Routine".
A routine can be referenced by friendly ID (R-00001), UUID, or name.`,
}

var routineAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a routine",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.WithUser(), runRoutineAdd),
}

var routineLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List routines",
	Args:    cobra.NoArgs,
	RunE:    appctx.WithApp(appctx.WithUser(), runRoutineLs),
}

var routineSetCmd = &cobra.Command{
	Use:   "set <routine>",
	Short: "Rename or (de)activate a routine",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.WithUser(), runRoutineSet),
}

var routineRmCmd = &cobra.Command{
	Use:   "rm <routine>",
	Short: "Delete a routine and all of its items",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.WithUser(), runRoutineRm),
}

var (
	routineLsAll     bool
	routineSetName   string
	routineSetActive bool
	routineIfMatch   int64
)

func init() {
	rootCmd.AddCommand(routineCmd)
	routineCmd.AddCommand(routineAddCmd, routineLsCmd, routineSetCmd, routineRmCmd)

	routineLsCmd.Flags().BoolVarP(&routineLsAll, "all", "a", false, "Include inactive routines")
	defineRoutineSetFlags(routineSetCmd)
	routineRmCmd.Flags().Int64Var(&routineIfMatch, "if-match", 0, "Only delete if etag matches")
}

func defineRoutineSetFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&routineSetName, "name", "", "New routine name")
	cmd.Flags().BoolVar(&routineSetActive, "active", true, "Mark the routine active or inactive")
	cmd.Flags().Int64Var(&routineIfMatch, "if-match", 0, "Only update if etag matches")
}

func runRoutineAdd(app *appctx.App, cmd *cobra.Command, args []string) error {
	routine, err := app.Store.Routines.Create(cmd.Context(), app.UserUUID(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), routine.ID)
	return nil
}

func runRoutineLs(app *appctx.App, cmd *cobra.Command, args []string) error {
	routines, err := app.Store.Routines.List(cmd.Context(), app.UserUUID(), routineLsAll)
	if err != nil {
		return err
	}

	r, err := newRenderer(app, cmd)
	if err != nil {
		return err
	}
	rows := make([][]string, len(routines))
	for i, rt := range routines {
		rows[i] = []string{rt.ID, rt.Name, strconv.Itoa(rt.ItemCount), yesNo(rt.Active), formatTime(rt.UpdatedAt)}
	}
	return r.Render(routines, []string{"ID", "NAME", "ITEMS", "ACTIVE", "UPDATED"}, rows)
}

func runRoutineSet(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	routine, err := app.Store.Routines.Resolve(ctx, app.UserUUID(), args[0])
	if err != nil {
		return err
	}

	params := store.RoutineUpdateParams{
		Name:   changedString(cmd, "name", routineSetName),
		Active: changedBool(cmd, "active", routineSetActive),
	}
	if params.Name == nil && params.Active == nil {
		return fmt.Errorf("nothing to update (use --name or --active)")
	}

	updated, err := app.Store.Routines.Update(ctx, app.UserUUID(), routine.UUID, params, routineIfMatch)
	if err != nil {
		return err
	}
	printRoutine(cmd, updated)
	return nil
}

func runRoutineRm(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	routine, err := app.Store.Routines.Resolve(ctx, app.UserUUID(), args[0])
	if err != nil {
		return err
	}
	if err := app.Store.Routines.Delete(ctx, app.UserUUID(), routine.UUID, routineIfMatch); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", routine.ID, routine.Name)
	return nil
}

func printRoutine(cmd *cobra.Command, r *domain.Routine) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (active: %s, etag: %d)\n", r.ID, r.Name, yesNo(r.Active), r.ETag)
}
