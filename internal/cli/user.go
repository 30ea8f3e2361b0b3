package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/daybook/internal/cli/appctx"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runUserAdd),
}

var userLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List users",
	Args:    cobra.NoArgs,
	RunE:    appctx.WithApp(appctx.DefaultOptions(), runUserLs),
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd, userLsCmd)
}

func runUserAdd(app *appctx.App, cmd *cobra.Command, args []string) error {
	user, err := app.Store.Users.Create(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), user.ID)
	return nil
}

func runUserLs(app *appctx.App, cmd *cobra.Command, args []string) error {
	users, err := app.Store.Users.List(cmd.Context())
	if err != nil {
		return err
	}

	r, err := newRenderer(app, cmd)
	if err != nil {
		return err
	}
	rows := make([][]string, len(users))
	for i, u := range users {
		rows[i] = []string{u.ID, u.Username, formatTime(u.CreatedAt)}
	}
	return r.Render(users, []string{"ID", "USERNAME", "CREATED"}, rows)
}
