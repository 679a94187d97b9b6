package journal

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/signalsim/portfolio"
)

func TestMoney(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{10000, "$10,000.00"},
		{1234.565, "$1,234.57"},
		{-1234.565, "-$1,234.57"},
		{0.004, "$0.00"},
		{math.NaN(), "n/a"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Money(tt.in), "Money(%v)", tt.in)
	}
}

func TestRunReportRender(t *testing.T) {
	t.Parallel()

	r := RunReport{
		RunSummary: sampleSummary(),
		Predictor:  "COLUMN(signal)",
		Trades:     []TransactionRecord{sampleTransaction()},
		Notes:      []string{"AAPL carried the run"},
	}
	r.Positions = []portfolio.PositionSummary{{Ticker: "MSFT", Shares: 3, AvgPrice: 400, CurrentPrice: 410, UnrealizedPL: 30}}

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf))
	out := buf.String()

	assert.Contains(t, out, "* BACKTEST: Basic Strategy AAPL,MSFT")
	assert.Contains(t, out, ":RUN_ID:      R1")
	assert.Contains(t, out, ":PREDICTOR:   COLUMN(signal)")
	assert.Contains(t, out, ":DATASET:     (dataset?)")
	assert.Contains(t, out, ":START_DATE:  2024-01-01")
	assert.Contains(t, out, ":END_BAL:     10250.75")
	assert.Contains(t, out, ":ACCURACY:    50.00")
	assert.Contains(t, out, ":PREDICTIONS: 1/2")
	assert.Contains(t, out, "(1 of 2 predictions)")
	assert.Contains(t, out, "** Model Accuracy")
	assert.Contains(t, out, "| AAPL | 1 | 1 | 100.00 |")
	assert.Contains(t, out, "| MSFT | 0 | 1 | 0.00 |")
	assert.Contains(t, out, "| Initial capital  | $10,000.00 |")
	assert.Contains(t, out, "- Return:           *2.51%*")
	assert.Contains(t, out, "| MSFT | 3 | 400.00 | 410.00 | $30.00 |")
	assert.Contains(t, out, "| 2024-01-02 | BUY | AAPL | 10 | 185.25 | $1,856.21 |")
	assert.Contains(t, out, "- AAPL carried the run")
	assert.NotContains(t, out, "Run failed")
	assert.NotContains(t, out, "Next Actions")
}

func TestRunReportFailed(t *testing.T) {
	t.Parallel()

	r := RunReport{RunSummary: RunSummary{RunID: "R2", Strategy: "Basic Strategy", Status: "failed", Error: "no tickers survived setup"}}

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf))
	assert.Contains(t, buf.String(), "Run failed: =no tickers survived setup=")
	assert.Contains(t, buf.String(), ":START_DATE:  (open)")
}

func TestRunReportWriteOrg(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reports", "run.org")
	require.NoError(t, RunReport{RunSummary: sampleSummary()}.WriteOrg(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), ":STRATEGY:    Basic Strategy")
}

func TestRenderComparison(t *testing.T) {
	t.Parallel()

	a := sampleSummary()
	b := RunSummary{Strategy: "Aggressive Strategy", Status: "failed"}

	var buf bytes.Buffer
	require.NoError(t, RenderComparison(&buf, []RunSummary{a, b}))
	out := buf.String()

	assert.Contains(t, out, "* STRATEGY COMPARISON")
	assert.Contains(t, out, "| Basic Strategy | completed | $10,250.75 | 2.51 | 1.25 | 2 | 1 | 1 | 50.00 | 1/2 |")
	assert.Contains(t, out, "| Aggressive Strategy | failed | $0.00 |")
}
