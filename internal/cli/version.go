package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/daybook/internal/db"
	"github.com/lherron/daybook/internal/snapshot"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type versionInfo struct {
	Version           string   `json:"version"`
	Commit            string   `json:"commit"`
	BuildDate         string   `json:"build_date"`
	SchemaMigrations  []string `json:"schema_migrations"`
	SnapshotSchema    int      `json:"snapshot_schema_version"`
	SupportedCommands []string `json:"supported_commands"`
	SupportedFormats  []string `json:"supported_formats"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Displays the build version and the schema versions this binary
reads and writes. Agents can use --json to discover supported commands.`,
	RunE: runVersion,
}

var versionJSON bool

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output as JSON")
}

func runVersion(cmd *cobra.Command, args []string) error {
	migrations, err := db.MigrationNames()
	if err != nil {
		return err
	}
	info := versionInfo{
		Version:          Version,
		Commit:           GitCommit,
		BuildDate:        BuildDate,
		SchemaMigrations: migrations,
		SnapshotSchema:   snapshot.SchemaVersion,
		SupportedCommands: []string{
			"init", "migrate", "user", "routine", "item", "day",
			"doctor", "log", "state", "version",
		},
		SupportedFormats: []string{"table", "json", "yaml", "tsv"},
	}

	out := cmd.OutOrStdout()
	if versionJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	}

	fmt.Fprintf(out, "daybook version %s\n", info.Version)
	fmt.Fprintf(out, "  commit:   %s\n", info.Commit)
	fmt.Fprintf(out, "  built:    %s\n", info.BuildDate)
	if n := len(migrations); n > 0 {
		fmt.Fprintf(out, "  schema:   %s\n", migrations[n-1])
	}
	fmt.Fprintf(out, "  snapshot: v%d\n", info.SnapshotSchema)
	return nil
}
