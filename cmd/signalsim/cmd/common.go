package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"

	"github.com/rustyeddy/signalsim/config"
	"github.com/rustyeddy/signalsim/internal/logging"
	"github.com/rustyeddy/signalsim/market"
)

// loadConfig reads the config file and builds the logger it asks for.
// Logs go to stderr so they do not mix with command output.
func loadConfig(path string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	return cfg, logger, nil
}

// loadFeed builds the data provider and tells the user which tickers were
// left out.
func loadFeed(w io.Writer, cfg *config.Config, logger *slog.Logger) (*market.Feed, error) {
	feed, err := cfg.LoadFeed(logger)
	if err != nil {
		return nil, fmt.Errorf("prepare data: %w", err)
	}
	for _, d := range feed.Dropped() {
		fmt.Fprintf(w, "  skipped %s\n", d)
	}
	fmt.Fprintf(w, "  Tickers: %v\n", feed.Tickers())
	fmt.Fprintf(w, "  Trading days: %d\n", len(feed.Dates()))
	return feed, nil
}

// signalContext is canceled on Ctrl-C so a run ends Stopped rather than
// being killed.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newProgressBar(w io.Writer, max int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
