package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rustyeddy/signalsim/journal"
	"github.com/rustyeddy/signalsim/market"
	"github.com/rustyeddy/signalsim/predict"
	"github.com/rustyeddy/signalsim/strategies"
)

// Strategy returns the configured strategy variant.
func (c *Config) Strategy() (strategies.Strategy, error) {
	return strategies.ByName(c.Simulation.Strategy)
}

// NewPredictor builds the configured predictor.
func (c *Config) NewPredictor() (market.Predictor, error) {
	return predict.New(c.Predictor.predictConfig())
}

// LoadFeed reads the bar files for the configured tickers and prepares the
// engine's data provider.
func (c *Config) LoadFeed(logger *slog.Logger) (*market.Feed, error) {
	p, err := c.NewPredictor()
	if err != nil {
		return nil, err
	}
	start, err := c.Simulation.StartDate()
	if err != nil {
		return nil, err
	}
	end, err := c.Simulation.EndDate()
	if err != nil {
		return nil, err
	}

	ds, err := market.LoadDir(c.Data.Dir, c.Data.Format, c.Simulation.Tickers, logger)
	if err != nil {
		return nil, fmt.Errorf("load data: %w", err)
	}

	return market.NewFeed(ds, p, market.FeedOptions{
		Tickers: c.Simulation.Tickers,
		Start:   start,
		End:     end,
		Horizon: c.Simulation.Horizon,
		Logger:  logger,
	})
}

// OpenJournal opens the configured journal sink. "none" gives journal.Nop.
func (c *Config) OpenJournal(ctx context.Context) (journal.Journal, error) {
	switch c.Journal.Type {
	case "", JournalNone:
		return journal.Nop{}, nil
	case JournalCSV:
		return journal.NewCSV(c.Journal.Dir)
	case JournalSQLite:
		return journal.NewSQLite(c.Journal.DBPath)
	case JournalPostgres:
		return journal.NewPostgres(ctx, c.Journal.DSN)
	default:
		return nil, fmt.Errorf("unknown journal type %q", c.Journal.Type)
	}
}
