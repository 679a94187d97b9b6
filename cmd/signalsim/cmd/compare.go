package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/signalsim/backtest"
	"github.com/rustyeddy/signalsim/journal"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run every strategy over the same data and compare them",
	Long: `Compare runs the Basic, Aggressive and Conservative strategies one
after the other, each with its own portfolio and the same starting capital.
A strategy that fails is reported as failed; the others still run.

Example:
  signalsim compare -f signalsim.yaml --report results/compare.org`,
	RunE: runCompare,
}

var compareReport string

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringVar(&compareReport, "report", "", "write an Org comparison table to this path")
}

func runCompare(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Comparing strategies with config: %s\n", configPath)
	feed, err := loadFeed(out, cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	j, err := cfg.OpenJournal(ctx)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	bar := newProgressBar(cmd.ErrOrStderr(), 100, "Comparing...")
	c := &backtest.Comparison{
		Provider:       feed,
		InitialCapital: cfg.Account.InitialCapital,
		Commission:     cfg.Account.Commission,
		Horizon:        cfg.Simulation.Horizon,
		Journal:        j,
		Logger:         logger,
		Progress: func(p backtest.Progress) {
			bar.Describe(p.Strategy)
			_ = bar.Set(int(p.Percent))
		},
	}

	results, err := c.Run(ctx)
	_ = bar.Finish()
	fmt.Fprintln(out)
	backtest.Print(out, results)
	if err != nil {
		return fmt.Errorf("comparison interrupted: %w", err)
	}

	if compareReport != "" {
		if err := os.MkdirAll(filepath.Dir(compareReport), 0o755); err != nil {
			return err
		}
		f, err := os.Create(compareReport)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()
		if err := journal.RenderComparison(f, results.Summaries()); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(out, "\nReport saved to: %s\n", compareReport)
	}
	return nil
}
