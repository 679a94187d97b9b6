package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "signalsim",
	Short: "Backtest {0,1} trading signals against daily stock data",
	Long: `Signalsim replays daily bars day by day, turns a predictor's buy
signal into trades through a strategy, and reports how the portfolio did.

It provides tools for:
  - Running one strategy over a date range
  - Comparing the Basic, Aggressive and Conservative strategies
  - Stepping through the data by hand
  - Serving run control and progress over HTTP and websocket
  - Converting bar files between CSV and Parquet`,
	SilenceUsage: true,
}

var configPath string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", "signalsim.yaml", "path to config file (YAML or JSON)")
}
