// Package backtest runs every strategy variant over the same data and
// collects the results side by side.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rustyeddy/signalsim/internal/logging"
	"github.com/rustyeddy/signalsim/journal"
	"github.com/rustyeddy/signalsim/portfolio"
	"github.com/rustyeddy/signalsim/sim"
	"github.com/rustyeddy/signalsim/strategies"
)

// Setup prepares the data provider for one strategy. Returning an error
// marks that strategy failed without stopping the comparison.
type Setup func(ctx context.Context, s strategies.Strategy) (sim.Provider, error)

// Progress is the overall progress across all variants. Days are counted
// as if the variants ran back to back.
type Progress struct {
	Strategy   string  `json:"strategy"`
	Index      int     `json:"index"`
	Count      int     `json:"count"`
	CurrentDay int     `json:"current_day"`
	TotalDays  int     `json:"total_days"`
	Percent    float64 `json:"percent"`
}

// Overall blends the progress of variant idx of n into one figure.
func Overall(idx, n int, p sim.Progress) Progress {
	out := Progress{
		Index:      idx,
		Count:      n,
		CurrentDay: p.CurrentDay + idx*p.TotalDays,
		TotalDays:  p.TotalDays * n,
	}
	if n > 0 {
		out.Percent = (float64(idx)*100 + p.Percent) / float64(n)
	}
	return out
}

// Comparison runs each strategy on its own engine and ledger with the same
// capital, commission and horizon.
type Comparison struct {
	Strategies []strategies.Strategy
	// Provider is shared by every variant unless Setup is set.
	Provider Provider
	Setup    Setup

	InitialCapital float64
	Commission     float64
	Horizon        int

	Journal  journal.Journal
	Logger   *slog.Logger
	Progress func(Progress)
}

// Provider is the data source the engines read.
type Provider = sim.Provider

// Run executes every variant in order. A variant that fails setup or fails
// mid-run is recorded with Failed set; the others still run. Run only
// returns an error for a bad configuration or a canceled context.
func (c *Comparison) Run(ctx context.Context) (Results, error) {
	if c.Provider == nil && c.Setup == nil {
		return nil, errors.New("backtest: Provider or Setup is required")
	}
	if c.Horizon < 1 {
		return nil, fmt.Errorf("backtest: horizon must be >= 1 (got %d)", c.Horizon)
	}

	variants := c.Strategies
	if len(variants) == 0 {
		variants = strategies.All()
	}
	logger := logging.OrDefault(c.Logger)

	results := make(Results, 0, len(variants))
	for i, s := range variants {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		logger.Info("comparison variant", "strategy", s.Name(), "index", i+1, "of", len(variants))
		r := c.runOne(ctx, i, len(variants), s, logger)
		if r.Failed {
			logger.Warn("comparison variant failed", "strategy", s.Name(), "err", r.Err)
		}
		results = append(results, r)
	}
	return results, nil
}

func (c *Comparison) runOne(ctx context.Context, idx, n int, s strategies.Strategy, logger *slog.Logger) Result {
	res := Result{Strategy: s.Name(), InitialCapital: c.InitialCapital}

	provider := c.Provider
	if c.Setup != nil {
		p, err := c.Setup(ctx, s)
		if err != nil {
			return res.fail(fmt.Errorf("setup: %w", err))
		}
		provider = p
	}

	events := make(chan sim.Event, 64)
	e, err := sim.NewEngine(sim.Options{
		Strategy:       s,
		Provider:       provider,
		InitialCapital: c.InitialCapital,
		Commission:     c.Commission,
		Horizon:        c.Horizon,
		Journal:        c.Journal,
		Logger:         logger,
		Events:         events,
	})
	if err != nil {
		return res.fail(fmt.Errorf("setup: %w", err))
	}

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for ev := range events {
			if c.Progress == nil {
				continue
			}
			p := Overall(idx, n, ev.Progress)
			p.Strategy = s.Name()
			c.Progress(p)
		}
	}()

	stats, runErr := e.Run(ctx)
	close(events)
	<-forwarded

	res.RunID = e.RunID()
	res.State = e.State()
	res.Stats = stats
	res.Equity = e.Equity()
	res.Transactions = e.Transactions()
	res.Positions = e.Summary().Positions
	res.summary = e.RunSummary()
	if runErr != nil {
		return res.fail(runErr)
	}
	return res
}

// Result is one variant's outcome. A failed variant has Failed and Err set;
// whatever the engine produced before failing is kept.
type Result struct {
	Strategy       string                      `json:"strategy"`
	RunID          string                      `json:"run_id,omitempty"`
	State          sim.State                   `json:"state"`
	Failed         bool                        `json:"failed"`
	Err            string                      `json:"error,omitempty"`
	InitialCapital float64                     `json:"initial_capital"`
	Stats          sim.RunStatistics           `json:"stats"`
	Equity         []portfolio.Valuation       `json:"equity"`
	Transactions   []portfolio.Transaction     `json:"transactions"`
	Positions      []portfolio.PositionSummary `json:"positions,omitempty"`

	summary journal.RunSummary
}

func (r Result) fail(err error) Result {
	r.Failed = true
	r.State = sim.Failed
	r.Err = err.Error()
	return r
}

// Summary converts the result for the journal and report writers.
func (r Result) Summary() journal.RunSummary {
	if r.summary.RunID != "" {
		s := r.summary
		s.Status = r.State.String()
		s.Error = r.Err
		return s
	}

	s := journal.RunSummary{
		RunID:            r.RunID,
		Strategy:         r.Strategy,
		Status:           r.State.String(),
		Error:            r.Err,
		InitialCapital:   r.InitialCapital,
		FinalValue:       r.Stats.FinalPortfolioValue,
		TotalReturn:      r.Stats.TotalReturn,
		ReturnPct:        r.Stats.ReturnPct,
		Transactions:     r.Stats.TotalTransactions,
		Buys:             r.Stats.BuyTransactions,
		Sells:            r.Stats.SellTransactions,
		ProfitableTrades: r.Stats.ProfitableTrades,
		LosingTrades:     r.Stats.LosingTrades,
		Accuracy:         r.Stats.Accuracy,
		TotalPL:          r.Stats.TotalProfitLoss,
		BestTrade:        r.Stats.BestTrade,
		WorstTrade:       r.Stats.WorstTrade,
		MaxDrawdownPct:   r.Stats.MaxDrawdownPct,
		StartedAt:        r.Stats.StartTime,
		FinishedAt:       r.Stats.EndTime,
		Positions:        r.Positions,

		CorrectPredictions: r.Stats.CorrectPredictions,
		TotalPredictions:   r.Stats.TotalPredictions,
		TickerAccuracy:     r.Stats.TickerAccuracy,
	}
	if len(r.Equity) > 0 {
		s.Start = r.Equity[0].Date
		s.End = r.Equity[len(r.Equity)-1].Date
	}
	return s
}

type Results []Result

// ByStrategy indexes results by strategy name.
func (rs Results) ByStrategy() map[string]Result {
	out := make(map[string]Result, len(rs))
	for _, r := range rs {
		out[r.Strategy] = r
	}
	return out
}

// Succeeded returns the results that did not fail.
func (rs Results) Succeeded() Results {
	var out Results
	for _, r := range rs {
		if !r.Failed {
			out = append(out, r)
		}
	}
	return out
}

// Best is the successful result with the highest final value.
func (rs Results) Best() (Result, bool) {
	var (
		best  Result
		found bool
	)
	for _, r := range rs.Succeeded() {
		if !found || r.Stats.FinalPortfolioValue > best.Stats.FinalPortfolioValue {
			best, found = r, true
		}
	}
	return best, found
}

func (rs Results) Summaries() []journal.RunSummary {
	out := make([]journal.RunSummary, len(rs))
	for i, r := range rs {
		out[i] = r.Summary()
	}
	return out
}
