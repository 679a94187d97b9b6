package market

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rustyeddy/signalsim/internal/logging"
)

// SignalColumn is the extra column holding a precomputed model signal.
const SignalColumn = "signal"

// Formats understood by LoadDir.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// LoadFile picks a loader from the file extension.
func LoadFile(path string) (Series, error) {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return LoadParquet(path)
	}
	return LoadCSV(path)
}

// LoadDir loads one file per ticker from dir. For the csv format it tries
// <TICKER>.csv, then .csv.xz and .csv.lzma, in upper and lower case.
// Tickers that fail to load are logged and left out; the feed reports them
// as dropped.
func LoadDir(dir, format string, tickers []string, logger *slog.Logger) (Dataset, error) {
	logger = logging.OrDefault(logger)

	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	var exts []string
	switch strings.ToLower(format) {
	case "", FormatCSV:
		exts = []string{".csv", ".csv.xz", ".csv.lzma"}
	case FormatParquet:
		exts = []string{".parquet"}
	default:
		return nil, fmt.Errorf("unknown data format %q", format)
	}

	ds := make(Dataset)
	for _, raw := range tickers {
		t := NormalizeTicker(raw)
		path, ok := findFile(dir, t, exts)
		if !ok {
			logger.Warn("no data file for ticker", "ticker", t, "dir", dir)
			continue
		}
		s, err := LoadFile(path)
		if err != nil {
			logger.Warn("load ticker failed", "ticker", t, "path", path, "err", err)
			continue
		}
		s.Ticker = t
		ds.Add(s)
	}
	return ds, nil
}

func findFile(dir, ticker string, exts []string) (string, bool) {
	for _, name := range []string{ticker, strings.ToLower(ticker)} {
		for _, ext := range exts {
			p := filepath.Join(dir, name+ext)
			if _, err := os.Stat(p); err == nil {
				return p, true
			}
		}
	}
	return "", false
}
