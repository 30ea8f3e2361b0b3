package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lherron/daybook/internal/cli/appctx"
	"github.com/lherron/daybook/internal/db"
	"github.com/lherron/daybook/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check database health and routine ordering",
	Long: `Doctor checks SQLite health, verifies that every routine's item priorities
are exactly 1..N, and looks for friendly-ID sequences that fell behind their
tables.

With --fix, routines with gaps or duplicates are renumbered in their current
order and drifted sequences are advanced.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runDoctor),
}

var (
	doctorFix     bool
	doctorVerbose bool
)

type checkResult struct {
	Name    string   `json:"name"`
	Status  string   `json:"status"` // "ok", "warning", "error"
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

type doctorReport struct {
	DBPath        string        `json:"db_path"`
	Checks        []checkResult `json:"checks"`
	Fixes         []string      `json:"fixes,omitempty"`
	Warnings      int           `json:"warnings"`
	Errors        int           `json:"errors"`
	OverallStatus string        `json:"overall_status"`
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Repair ordering and sequence problems")
	doctorCmd.Flags().BoolVar(&doctorVerbose, "verbose", false, "Verbose output")
}

func runDoctor(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	report := &doctorReport{DBPath: app.Config.DBPath}

	if doctorFix {
		fixes, err := applyFixes(ctx, app.Store)
		if err != nil {
			return err
		}
		report.Fixes = fixes
	}

	report.Checks = append(report.Checks, checkDatabasePragmas(app.DB)...)
	report.Checks = append(report.Checks, checkOrdering(ctx, app.Store))
	report.Checks = append(report.Checks, checkSequences(ctx, app.Store))
	report.tally()

	if structuredOutput(app) {
		r, err := newRenderer(app, cmd)
		if err != nil {
			return err
		}
		if err := r.Render(report, nil, nil); err != nil {
			return err
		}
	} else {
		printHumanReport(cmd, report)
	}

	if report.Errors > 0 {
		return fmt.Errorf("doctor found %d error(s)", report.Errors)
	}
	return nil
}

func (r *doctorReport) tally() {
	r.OverallStatus = "ok"
	for _, check := range r.Checks {
		switch check.Status {
		case "warning":
			r.Warnings++
		case "error":
			r.Errors++
		}
	}
	if r.Errors > 0 {
		r.OverallStatus = "error"
	} else if r.Warnings > 0 {
		r.OverallStatus = "warning"
	}
}

func checkDatabasePragmas(database *db.DB) []checkResult {
	var results []checkResult

	var journalMode string
	database.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if journalMode == "wal" {
		results = append(results, checkResult{Name: "wal_mode", Status: "ok", Message: "WAL mode enabled"})
	} else {
		results = append(results, checkResult{
			Name:    "wal_mode",
			Status:  "warning",
			Message: fmt.Sprintf("WAL mode not enabled (current: %s)", journalMode),
		})
	}

	var foreignKeys int
	database.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys)
	if foreignKeys == 1 {
		results = append(results, checkResult{Name: "foreign_keys", Status: "ok", Message: "Foreign keys enabled"})
	} else {
		results = append(results, checkResult{
			Name:    "foreign_keys",
			Status:  "error",
			Message: "Foreign keys not enabled",
			Details: []string{"Deleting a routine will not cascade to its items"},
		})
	}

	var integrity string
	database.QueryRow("PRAGMA integrity_check").Scan(&integrity)
	if integrity == "ok" {
		results = append(results, checkResult{Name: "integrity_check", Status: "ok", Message: "Database integrity check passed"})
	} else {
		results = append(results, checkResult{
			Name:    "integrity_check",
			Status:  "error",
			Message: fmt.Sprintf("Database integrity check failed: %s", integrity),
			Details: []string{"Restore from backup recommended"},
		})
	}

	return results
}

func checkOrdering(ctx context.Context, s *store.Store) checkResult {
	issues, err := s.Integrity.CheckDensity(ctx)
	if err != nil {
		return checkResult{Name: "routine_ordering", Status: "error", Message: fmt.Sprintf("Failed to check ordering: %v", err)}
	}
	if len(issues) == 0 {
		return checkResult{Name: "routine_ordering", Status: "ok", Message: "Every routine is ranked 1..N"}
	}

	details := make([]string, len(issues))
	for i, issue := range issues {
		details[i] = fmt.Sprintf("%s %s: %s %v", issue.RoutineID, issue.Name, issue.Problem, issue.Priorities)
	}
	return checkResult{
		Name:    "routine_ordering",
		Status:  "error",
		Message: fmt.Sprintf("%d routine(s) have gaps or duplicate priorities (run with --fix)", len(issues)),
		Details: details,
	}
}

func checkSequences(ctx context.Context, s *store.Store) checkResult {
	drifts, err := s.Integrity.SequenceDrifts(ctx)
	if err != nil {
		return checkResult{Name: "id_sequences", Status: "error", Message: fmt.Sprintf("Failed to check sequences: %v", err)}
	}
	if len(drifts) == 0 {
		return checkResult{Name: "id_sequences", Status: "ok", Message: "Friendly-ID sequences are current"}
	}

	details := make([]string, len(drifts))
	for i, d := range drifts {
		details[i] = fmt.Sprintf("%s: sequence %d, max %s id %d", d.Name, d.Current, d.Table, d.MaxID)
	}
	return checkResult{
		Name:    "id_sequences",
		Status:  "warning",
		Message: fmt.Sprintf("%d sequence(s) behind their tables (run with --fix)", len(drifts)),
		Details: details,
	}
}

func applyFixes(ctx context.Context, s *store.Store) ([]string, error) {
	var fixes []string

	issues, err := s.Integrity.CheckDensity(ctx)
	if err != nil {
		return nil, err
	}
	for _, issue := range issues {
		n, err := s.Integrity.Compact(ctx, issue.RoutineUUID)
		if err != nil {
			return fixes, fmt.Errorf("failed to compact %s: %w", issue.RoutineID, err)
		}
		fixes = append(fixes, fmt.Sprintf("renumbered %d item(s) in %s %s", n, issue.RoutineID, issue.Name))
	}

	drifts, err := s.Integrity.FixSequenceDrifts(ctx)
	if err != nil {
		return fixes, fmt.Errorf("failed to fix sequences: %w", err)
	}
	for _, d := range drifts {
		fixes = append(fixes, fmt.Sprintf("advanced %s from %d to %d", d.Name, d.Current, d.MaxID))
	}
	return fixes, nil
}

func printHumanReport(cmd *cobra.Command, report *doctorReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Database: %s\n\n", report.DBPath)

	if len(report.Fixes) > 0 {
		fmt.Fprintln(out, "Fixes")
		for _, fix := range report.Fixes {
			fmt.Fprintf(out, "  ✓ %s\n", fix)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Checks")
	for _, check := range report.Checks {
		icon := "✓"
		switch check.Status {
		case "warning":
			icon = "⚠"
		case "error":
			icon = "✗"
		}
		fmt.Fprintf(out, "  %s %s\n", icon, check.Message)
		if (doctorVerbose || check.Status != "ok") && len(check.Details) > 0 {
			fmt.Fprintf(out, "      %s\n", strings.Join(check.Details, "\n      "))
		}
	}
	fmt.Fprintln(out)

	switch {
	case report.Errors > 0:
		fmt.Fprintf(out, "Summary: %d error(s), %d warning(s)\n", report.Errors, report.Warnings)
	case report.Warnings > 0:
		fmt.Fprintf(out, "Summary: %d warning(s)\n", report.Warnings)
	default:
		fmt.Fprintln(out, "Summary: All checks passed ✓")
	}
}
