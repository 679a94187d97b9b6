package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/signalsim/market"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Work with bar files",
}

var dataConvertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Convert a bar file between CSV and Parquet",
	Long: `Convert reads a .csv, .csv.xz, .csv.lzma or .parquet bar file and
writes it as CSV or Parquet depending on the output extension. Only the
signal column survives a conversion to Parquet.

Example:
  signalsim data convert data/AAPL.csv.xz data/AAPL.parquet`,
	Args: cobra.ExactArgs(2),
	RunE: runDataConvert,
}

var dataConvertTicker string

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataConvertCmd)

	dataConvertCmd.Flags().StringVarP(&dataConvertTicker, "ticker", "t", "", "ticker to record (default from the input file name)")
}

func runDataConvert(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]

	s, err := market.LoadFile(in)
	if err != nil {
		return fmt.Errorf("read %s: %w", in, err)
	}
	if dataConvertTicker != "" {
		s.Ticker = market.NormalizeTicker(dataConvertTicker)
	}

	if err := writeSeries(out, s); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d %s bars to %s\n", s.Len(), s.Ticker, out)
	return nil
}

func writeSeries(path string, s market.Series) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return market.WriteParquet(path, s)
	case ".csv":
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := market.WriteCSV(f, s); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	default:
		return fmt.Errorf("unsupported output extension %q (want .csv or .parquet)", filepath.Ext(path))
	}
}
