package backtest

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/signalsim/journal"
	"github.com/rustyeddy/signalsim/market"
	"github.com/rustyeddy/signalsim/predict"
	"github.com/rustyeddy/signalsim/sim"
	"github.com/rustyeddy/signalsim/strategies"
)

// tenDayFeed is a steadily rising ticker whose signal column says buy on
// every other day.
func tenDayFeed(t *testing.T) *market.Feed {
	t.Helper()

	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, 10)
	for i := range bars {
		c := 100 + float64(i)
		sig := 0.0
		if i%2 == 0 {
			sig = 1
		}
		bars[i] = market.Bar{
			Date:  start.AddDate(0, 0, i),
			Open:  c - 0.5,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
			Extra: map[string]float64{market.SignalColumn: sig},
		}
	}

	ds := make(market.Dataset)
	ds.Add(market.NewSeries("AAA", bars))

	f, err := market.NewFeed(ds, predict.NewColumn("", 0), market.FeedOptions{Horizon: 2})
	require.NoError(t, err)
	return f
}

func TestOverall(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		idx  int
		n    int
		in   sim.Progress
		want Progress
	}{
		{"first half way", 0, 3, sim.Progress{CurrentDay: 5, TotalDays: 10, Percent: 50},
			Progress{Index: 0, Count: 3, CurrentDay: 5, TotalDays: 30, Percent: 50.0 / 3}},
		{"second half way", 1, 3, sim.Progress{CurrentDay: 5, TotalDays: 10, Percent: 50},
			Progress{Index: 1, Count: 3, CurrentDay: 15, TotalDays: 30, Percent: 50}},
		{"last done", 2, 3, sim.Progress{CurrentDay: 10, TotalDays: 10, Percent: 100},
			Progress{Index: 2, Count: 3, CurrentDay: 30, TotalDays: 30, Percent: 100}},
		{"no variants", 0, 0, sim.Progress{CurrentDay: 1, TotalDays: 10, Percent: 10},
			Progress{CurrentDay: 1, TotalDays: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Overall(tt.idx, tt.n, tt.in)
			assert.InDelta(t, tt.want.Percent, got.Percent, 1e-9)
			got.Percent, tt.want.Percent = 0, 0
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComparisonValidation(t *testing.T) {
	t.Parallel()

	_, err := (&Comparison{Horizon: 1}).Run(context.Background())
	assert.Error(t, err)

	_, err = (&Comparison{Provider: tenDayFeed(t)}).Run(context.Background())
	assert.Error(t, err)
}

func TestComparisonFailedSetupDoesNotAbort(t *testing.T) {
	t.Parallel()

	feed := tenDayFeed(t)

	var (
		mu       sync.Mutex
		progress []Progress
	)
	c := &Comparison{
		Setup: func(_ context.Context, s strategies.Strategy) (sim.Provider, error) {
			if s.Name() == "Aggressive Strategy" {
				return nil, errors.New("no data for you")
			}
			return feed, nil
		},
		InitialCapital: 10000,
		Commission:     0.001,
		Horizon:        2,
		Progress: func(p Progress) {
			mu.Lock()
			defer mu.Unlock()
			progress = append(progress, p)
		},
	}

	results, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Basic Strategy", results[0].Strategy)
	assert.Equal(t, "Aggressive Strategy", results[1].Strategy)
	assert.Equal(t, "Conservative Strategy", results[2].Strategy)

	failed := results[1]
	assert.True(t, failed.Failed)
	assert.Equal(t, sim.Failed, failed.State)
	assert.Contains(t, failed.Err, "no data for you")
	assert.Empty(t, failed.Equity)

	for _, r := range []Result{results[0], results[2]} {
		assert.False(t, r.Failed, r.Strategy)
		assert.Equal(t, sim.Completed, r.State, r.Strategy)
		assert.Len(t, r.Equity, 10, r.Strategy)
		assert.NotEmpty(t, r.RunID, r.Strategy)
		assert.Positive(t, r.Stats.BuyTransactions, r.Strategy)
		// a rising market with everything liquidated
		assert.Greater(t, r.Stats.FinalPortfolioValue, 10000.0, r.Strategy)
	}

	assert.Len(t, results.Succeeded(), 2)
	assert.Contains(t, results.ByStrategy(), "Conservative Strategy")

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i].Percent, progress[i-1].Percent)
	}
	last := progress[len(progress)-1]
	assert.Equal(t, "Conservative Strategy", last.Strategy)
	assert.InDelta(t, 100, last.Percent, 1e-9)
	assert.Equal(t, 30, last.TotalDays)
}

func TestComparisonSharedProviderIsDeterministic(t *testing.T) {
	t.Parallel()

	c := &Comparison{
		Strategies:     []strategies.Strategy{strategies.Basic(), strategies.Basic()},
		Provider:       tenDayFeed(t),
		InitialCapital: 5000,
		Horizon:        2,
	}
	results, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, results[0].Stats.FinalPortfolioValue, results[1].Stats.FinalPortfolioValue)
	assert.Equal(t, results[0].Equity, results[1].Equity)
	assert.NotEqual(t, results[0].RunID, results[1].RunID)
}

func TestComparisonCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &Comparison{Provider: tenDayFeed(t), InitialCapital: 1000, Horizon: 2}
	results, err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestResultsBestAndSummary(t *testing.T) {
	t.Parallel()

	rs := Results{
		{Strategy: "a", State: sim.Completed, Stats: sim.RunStatistics{FinalPortfolioValue: 900}},
		{Strategy: "b", Failed: true, State: sim.Failed, Err: "boom"},
		{Strategy: "c", State: sim.Completed, Stats: sim.RunStatistics{
			FinalPortfolioValue: 1200,
			CorrectPredictions:  2,
			TotalPredictions:    3,
			TickerAccuracy:      []journal.TickerAccuracy{{Ticker: "AAA", Correct: 2, Total: 3}},
		}},
	}

	best, ok := rs.Best()
	require.True(t, ok)
	assert.Equal(t, "c", best.Strategy)

	_, ok = Results{{Strategy: "x", Failed: true}}.Best()
	assert.False(t, ok)

	sums := rs.Summaries()
	require.Len(t, sums, 3)
	assert.Equal(t, "failed", sums[1].Status)
	assert.Equal(t, "boom", sums[1].Error)
	assert.Equal(t, 1200.0, sums[2].FinalValue)
	assert.Equal(t, 2, sums[2].CorrectPredictions)
	assert.Equal(t, 3, sums[2].TotalPredictions)
	assert.Equal(t, []journal.TickerAccuracy{{Ticker: "AAA", Correct: 2, Total: 3}}, sums[2].TickerAccuracy)
}

func TestPrint(t *testing.T) {
	t.Parallel()

	rs := Results{
		{Strategy: "Basic Strategy", State: sim.Completed, Stats: sim.RunStatistics{
			FinalPortfolioValue: 10600, ReturnPct: 6, SellTransactions: 1, Accuracy: 1,
		}},
		{Strategy: "Aggressive Strategy", Failed: true, State: sim.Failed, Err: "setup: boom"},
	}

	var buf bytes.Buffer
	Print(&buf, rs)
	out := buf.String()

	assert.Contains(t, out, "Strategy Comparison")
	assert.Contains(t, out, "$10,600.00")
	assert.Contains(t, out, "setup: boom")
	assert.Contains(t, out, "Best:          Basic Strategy")
}
