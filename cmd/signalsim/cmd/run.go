package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/signalsim/journal"
	"github.com/rustyeddy/signalsim/sim"
	"github.com/rustyeddy/signalsim/strategies"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one strategy over the configured data",
	Long: `Run a backtest using settings from a configuration file.

Every trading day open positions are checked for sale first, then new
positions are opened on a buy signal. Whatever is still open on the last
day is sold at its last known close. Ctrl-C stops the run early and
liquidates.

Example:
  signalsim run -f signalsim.yaml --strategy conservative --report results/run.org`,
	RunE: runRun,
}

var (
	runStrategy string
	runReport   string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runStrategy, "strategy", "s", "", "strategy override ("+fmt.Sprint(strategies.Names())+")")
	runCmd.Flags().StringVar(&runReport, "report", "", "write an Org report of the run to this path")
}

func runRun(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if runStrategy != "" {
		cfg.Simulation.Strategy = runStrategy
	}
	strategy, err := cfg.Strategy()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Running backtest with config: %s\n", configPath)
	fmt.Fprintf(out, "  Strategy: %s\n", strategy.Name())
	fmt.Fprintf(out, "  Capital: %s (commission %.2f%%)\n", journal.Money(cfg.Account.InitialCapital), cfg.Account.Commission*100)
	fmt.Fprintf(out, "  Horizon: %d days\n", cfg.Simulation.Horizon)

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

	events := make(chan sim.Event, 64)
	engine, err := sim.NewEngine(sim.Options{
		Strategy:       strategy,
		Provider:       feed,
		InitialCapital: cfg.Account.InitialCapital,
		Commission:     cfg.Account.Commission,
		Horizon:        cfg.Simulation.Horizon,
		Journal:        j,
		Logger:         logger,
		Events:         events,
	})
	if err != nil {
		return err
	}

	bar := newProgressBar(cmd.ErrOrStderr(), len(feed.Dates()), "Backtesting...")
	drawn := make(chan struct{})
	go func() {
		defer close(drawn)
		for ev := range events {
			_ = bar.Set(ev.Progress.CurrentDay)
		}
	}()

	stats, runErr := engine.Run(ctx)
	close(events)
	<-drawn
	_ = bar.Finish()
	fmt.Fprintln(out)

	summary := engine.RunSummary()
	printStats(out, summary, stats)

	if runReport != "" {
		report := journal.RunReport{
			RunSummary: summary,
			Predictor:  feed.Predictor(),
			Dataset:    cfg.Data.Dir,
			Created:    time.Now(),
			Trades:     tradeRecords(summary, engine.Transactions()),
		}
		if err := report.WriteOrg(runReport); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(out, "\nReport saved to: %s\n", runReport)
	}

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}
