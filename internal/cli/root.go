package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "daybook",
	Short: "Routines and day pages for a personal planner",
	Long: `daybook keeps ordered routines (morning, evening, workout...) and one
page per day on a SQLite backend. Routine items are ranked 1..N and stay
gap-free as they are added, moved, and removed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to database file (overrides DAYBOOK_DB_PATH)")
	rootCmd.PersistentFlags().String("as", "", "User to act as (username, U-id, or UUID)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format: table, json, yaml, tsv")
}
