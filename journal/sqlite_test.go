package journal

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/signalsim/portfolio"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)

	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('runs','transactions','daily','daily_positions','predictions')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	assert.True(t, found["runs"])
	assert.True(t, found["transactions"])
	assert.True(t, found["daily"])
	assert.True(t, found["daily_positions"])
	assert.True(t, found["predictions"])
}

func TestSQLiteTransactions(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	buy := sampleTransaction()
	sell := sampleTransaction()
	sell.ID = "T2"
	sell.Action = portfolio.Sell
	sell.Date = buy.Date.AddDate(0, 0, 1)
	sell.RealizedPL = 42.5

	require.NoError(t, j.RecordTransaction(buy))
	require.NoError(t, j.RecordTransaction(sell))

	got, err := j.ListTransactions("R1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "T1", got[0].ID)
	assert.Equal(t, portfolio.Buy, got[0].Action)
	assert.True(t, got[0].Date.Equal(buy.Date))
	assert.InDelta(t, buy.TotalAmount, got[0].TotalAmount, 1e-9)
	assert.Equal(t, portfolio.Sell, got[1].Action)
	assert.InDelta(t, 42.5, got[1].RealizedPL, 1e-9)

	none, err := j.ListTransactions("other")
	require.NoError(t, err)
	assert.Empty(t, none)

	// ids are unique
	assert.Error(t, j.RecordTransaction(buy))
}

func TestSQLiteDaily(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	d1 := sampleDaily()
	d2 := sampleDaily()
	d2.Date = d1.Date.AddDate(0, 0, 1)
	d2.TotalValue = 10100

	require.NoError(t, j.RecordDaily(d2))
	require.NoError(t, j.RecordDaily(d1))

	got, err := j.ListDaily("R1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Date.Equal(d1.Date))
	assert.InDelta(t, 10100, got[1].TotalValue, 1e-9)
	assert.Equal(t, 1, got[1].OpenPositions)

	for _, d := range got {
		assert.Equal(t, map[string]int{"AAPL": 1, "MSFT": 0}, d.Signals)
		require.Len(t, d.Positions, 1)
		assert.Equal(t, "AAPL", d.Positions[0].Ticker)
		assert.Equal(t, 10, d.Positions[0].Shares)
		assert.InDelta(t, 6.75, d.Positions[0].UnrealizedPL, 1e-9)
	}
}

func TestSQLitePredictions(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	miss := samplePrediction()
	hit := samplePrediction()
	hit.SellPrice, hit.Actual = 190, 1
	other := samplePrediction()
	other.Ticker, other.Predicted = "MSFT", 0

	for _, p := range []PredictionRecord{miss, hit, other} {
		require.NoError(t, j.RecordPrediction(p))
	}

	got, err := j.ListPredictions("R1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "AAPL", got[0].Ticker)
	assert.True(t, got[0].OutcomeDate.Equal(miss.OutcomeDate))
	assert.False(t, got[0].Correct())
	assert.True(t, got[1].Correct())
	assert.True(t, got[2].Correct())

	acc, err := j.TickerAccuracy("R1")
	require.NoError(t, err)
	assert.Equal(t, []TickerAccuracy{
		{Ticker: "AAPL", Correct: 1, Total: 2},
		{Ticker: "MSFT", Correct: 1, Total: 1},
	}, acc)

	s := sampleSummary()
	s.CorrectPredictions, s.TotalPredictions = 2, 3
	require.NoError(t, j.Finalize(s))

	run, err := j.GetRun("R1")
	require.NoError(t, err)
	assert.Equal(t, 2, run.CorrectPredictions)
	assert.Equal(t, 3, run.TotalPredictions)
	assert.Equal(t, acc, run.TickerAccuracy)

	runs, err := j.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, acc, runs[0].TickerAccuracy)
}

func TestSQLiteConcurrentWriters(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			d := sampleDaily()
			d.RunID = fmt.Sprintf("R%d", r)
			for i := 0; i < 20; i++ {
				d.Date = d.Date.AddDate(0, 0, 1)
				assert.NoError(t, j.RecordDaily(d))
			}
		}(r)
	}
	wg.Wait()

	for r := 0; r < 4; r++ {
		got, err := j.ListDaily(fmt.Sprintf("R%d", r))
		require.NoError(t, err)
		assert.Len(t, got, 20)
	}
}

func TestSQLiteRuns(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	s := sampleSummary()
	require.NoError(t, j.Finalize(s))

	got, err := j.GetRun("R1")
	require.NoError(t, err)
	assert.Equal(t, s.Strategy, got.Strategy)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got.Tickers)
	assert.True(t, got.Start.Equal(s.Start))
	assert.True(t, got.FinishedAt.Equal(s.FinishedAt))
	assert.InDelta(t, s.FinalValue, got.FinalValue, 1e-9)
	assert.Equal(t, s.Sells, got.Sells)

	// finalizing again replaces the row
	s.Status = "stopped"
	require.NoError(t, j.Finalize(s))

	failed := RunSummary{RunID: "R2", Strategy: "Aggressive Strategy", Status: "failed", Error: "boom"}
	require.NoError(t, j.Finalize(failed))

	runs, err := j.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]RunSummary{}
	for _, r := range runs {
		byID[r.RunID] = r
	}
	assert.Equal(t, "stopped", byID["R1"].Status)
	assert.Equal(t, "boom", byID["R2"].Error)
	assert.True(t, byID["R2"].Start.IsZero())

	_, err = j.GetRun("nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
