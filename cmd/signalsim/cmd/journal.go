package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/signalsim/internal/id"
	"github.com/rustyeddy/signalsim/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query runs recorded in a SQLite journal",
	Long: `Query and display runs from a SQLite journal.

Subcommands:
  runs  - Compare every recorded run
  show  - Org report of one run

Examples:
  signalsim journal runs --db results/runs.db
  signalsim journal show 01HZX... --db results/runs.db`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs as an Org table",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the Org report of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalShowCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./signalsim.sqlite", "path to SQLite journal DB")
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	runs, err := j.ListRuns()
	if err != nil {
		return fmt.Errorf("query runs: %w", err)
	}
	return journal.RenderComparison(cmd.OutOrStdout(), runs)
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	run, err := j.GetRun(args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	trades, err := j.ListTransactions(run.RunID)
	if err != nil {
		return fmt.Errorf("query transactions: %w", err)
	}

	report := journal.RunReport{
		RunSummary: run,
		Dataset:    journalDBPath,
		Created:    runCreated(run),
		Trades:     trades,
	}
	return report.Render(cmd.OutOrStdout())
}

// runCreated is when a run started. Runs that failed before starting fall
// back to the time in their id.
func runCreated(run journal.RunSummary) time.Time {
	if !run.StartedAt.IsZero() {
		return run.StartedAt
	}
	if t, err := id.Time(run.RunID); err == nil {
		return t
	}
	return time.Now()
}
