package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)

func costBasis(l *Ledger) float64 {
	sum := 0.0
	for _, p := range l.Positions() {
		sum += p.TotalCost
	}
	return sum
}

func TestLedgerGetPositionDefault(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000, 0.002)
	p := l.Position("AAPL")
	assert.Equal(t, "AAPL", p.Ticker)
	assert.Equal(t, 0, p.Shares)
	assert.Equal(t, 0.0, p.AvgPrice)
	assert.False(t, p.IsOpen())
	assert.Empty(t, l.Positions())
}

func TestLedgerBuy(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000, 0.002)
	tx, err := l.Buy("AAPL", 10, 100, day0)
	require.NoError(t, err)

	assert.Equal(t, Buy, tx.Action)
	assert.InDelta(t, 2.0, tx.Commission, 1e-9)
	assert.InDelta(t, 1002.0, tx.TotalAmount, 1e-9)
	assert.NotEmpty(t, tx.ID)
	assert.InDelta(t, 8998.0, l.Cash(), 1e-9)

	p := l.Position("AAPL")
	assert.Equal(t, 10, p.Shares)
	assert.InDelta(t, 100.0, p.AvgPrice, 1e-9)
	assert.InDelta(t, 1000.0, p.TotalCost, 1e-9)
	assert.Len(t, l.Transactions(), 1)
}

func TestLedgerWeightedAverageCost(t *testing.T) {
	t.Parallel()

	l := NewLedger(100_000, 0.001)
	_, err := l.Buy("MSFT", 30, 250, day0)
	require.NoError(t, err)
	_, err = l.Buy("MSFT", 10, 290, day0.AddDate(0, 0, 1))
	require.NoError(t, err)

	want := (30*250.0 + 10*290.0) / 40
	p := l.Position("MSFT")
	assert.Equal(t, 40, p.Shares)
	assert.InEpsilon(t, want, p.AvgPrice, 1e-9)
	assert.InEpsilon(t, p.TotalCost, float64(p.Shares)*p.AvgPrice, 1e-9)
}

func TestLedgerPartialSellKeepsAverage(t *testing.T) {
	t.Parallel()

	l := NewLedger(100_000, 0.002)
	_, err := l.Buy("MSFT", 30, 250, day0)
	require.NoError(t, err)
	_, err = l.Buy("MSFT", 10, 290, day0)
	require.NoError(t, err)
	avg := l.Position("MSFT").AvgPrice

	tx, err := l.Sell("MSFT", 15, 400, day0.AddDate(0, 0, 2))
	require.NoError(t, err)

	p := l.Position("MSFT")
	assert.Equal(t, 25, p.Shares)
	assert.InEpsilon(t, avg, p.AvgPrice, 1e-12)
	assert.InEpsilon(t, 25*avg, p.TotalCost, 1e-9)

	assert.Equal(t, Sell, tx.Action)
	assert.InDelta(t, 15*400*0.002, tx.Commission, 1e-9)
	assert.InDelta(t, 15*400*(1-0.002), tx.TotalAmount, 1e-9)
	assert.InDelta(t, tx.TotalAmount-15*avg, tx.RealizedPL, 1e-9)
}

func TestLedgerFullSellRemovesEntry(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000, 0)
	_, err := l.Buy("AAPL", 10, 100, day0)
	require.NoError(t, err)
	_, err = l.Sell("AAPL", 10, 110, day0)
	require.NoError(t, err)

	assert.Empty(t, l.Positions())
	assert.False(t, l.Position("AAPL").IsOpen())
	assert.InDelta(t, 10_100.0, l.Cash(), 1e-9)
}

func TestLedgerRejectedOrdersLeaveStateUnchanged(t *testing.T) {
	t.Parallel()

	l := NewLedger(1_000, 0.002)
	_, err := l.Buy("AAPL", 5, 100, day0)
	require.NoError(t, err)

	cash := l.Cash()
	pos := l.Position("AAPL")
	txs := len(l.Transactions())

	tests := []struct {
		name string
		op   func() error
		want error
	}{
		{"buy over cash", func() error { _, err := l.Buy("AAPL", 10, 100, day0); return err }, ErrInsufficientFunds},
		{"sell more than held", func() error { _, err := l.Sell("AAPL", 6, 100, day0); return err }, ErrInsufficientShares},
		{"sell unknown ticker", func() error { _, err := l.Sell("MSFT", 1, 100, day0); return err }, ErrInsufficientShares},
		{"zero shares", func() error { _, err := l.Buy("AAPL", 0, 100, day0); return err }, ErrInvalidOrder},
		{"negative shares", func() error { _, err := l.Sell("AAPL", -1, 100, day0); return err }, ErrInvalidOrder},
		{"zero price", func() error { _, err := l.Buy("AAPL", 1, 0, day0); return err }, ErrInvalidOrder},
	}
	for _, tt := range tests {
		err := tt.op()
		require.Error(t, err, tt.name)
		assert.ErrorIs(t, err, tt.want, tt.name)
		assert.Equal(t, cash, l.Cash(), tt.name)
		assert.Equal(t, pos, l.Position("AAPL"), tt.name)
		assert.Len(t, l.Transactions(), txs, tt.name)
	}
}

func TestLedgerCanBuyIncludesCommission(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000, 0.002)
	assert.False(t, l.CanBuy("AAPL", 100, 100))
	assert.True(t, l.CanBuy("AAPL", 99, 100))

	_, err := l.Buy("AAPL", 100, 100, day0)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestLedgerConservation(t *testing.T) {
	t.Parallel()

	l := NewLedger(50_000, 0.002)
	type op struct {
		buy    bool
		ticker string
		shares int
		price  float64
	}
	ops := []op{
		{true, "AAPL", 50, 120},
		{true, "MSFT", 20, 300},
		{true, "AAPL", 10, 130},
		{false, "AAPL", 25, 0},
		{false, "MSFT", 20, 0},
	}

	for _, o := range ops {
		before := l.Cash() + costBasis(l)
		var tx Transaction
		var err error
		if o.buy {
			tx, err = l.Buy(o.ticker, o.shares, o.price, day0)
		} else {
			// sell at average cost so only commission moves the total
			px := l.Position(o.ticker).AvgPrice
			tx, err = l.Sell(o.ticker, o.shares, px, day0)
		}
		require.NoError(t, err)
		after := l.Cash() + costBasis(l)
		assert.InDelta(t, before-tx.Commission, after, 1e-6)
		assert.GreaterOrEqual(t, l.Cash(), 0.0)
	}
}

func TestLedgerValueAndSummary(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000, 0)
	_, err := l.Buy("AAPL", 10, 100, day0)
	require.NoError(t, err)
	_, err = l.Buy("MSFT", 5, 200, day0)
	require.NoError(t, err)

	prices := map[string]float64{"AAPL": 110}
	// MSFT has no price and is marked at its average cost
	assert.InDelta(t, 8_000+1_100+1_000, l.Value(prices), 1e-9)

	s := l.Summary(prices)
	assert.InDelta(t, 8_000.0, s.Cash, 1e-9)
	assert.InDelta(t, 10_100.0, s.TotalValue, 1e-9)
	assert.InDelta(t, 100.0, s.TotalReturn, 1e-9)
	assert.InDelta(t, 1.0, s.ReturnPct, 1e-9)
	require.Len(t, s.Positions, 2)
	assert.Equal(t, "AAPL", s.Positions[0].Ticker)
	assert.InDelta(t, 100.0, s.Positions[0].UnrealizedPL, 1e-9)
	assert.InDelta(t, 10.0, s.Positions[0].UnrealizedPLPct, 1e-9)
	assert.InDelta(t, 0.0, s.Positions[1].UnrealizedPL, 1e-9)
}

func TestLedgerZeroInitialCapital(t *testing.T) {
	t.Parallel()

	l := NewLedger(0, 0.002)
	s := l.Summary(nil)
	assert.Equal(t, 0.0, s.ReturnPct)
	v := l.RecordDailyValue(day0, nil)
	assert.Equal(t, 0.0, v.ReturnPct)
}

func TestLedgerRecordDailyValueAppends(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000, 0)
	l.RecordDailyValue(day0, nil)
	l.RecordDailyValue(day0, nil)
	assert.Len(t, l.Valuations(), 2)
}

func TestLedgerReset(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000, 0.002)
	_, err := l.Buy("AAPL", 10, 100, day0)
	require.NoError(t, err)
	_, err = l.Sell("AAPL", 5, 100, day0)
	require.NoError(t, err)
	l.RecordDailyValue(day0, map[string]float64{"AAPL": 100})

	l.Reset()
	assert.Equal(t, 10_000.0, l.Cash())
	assert.Empty(t, l.Positions())
	assert.Empty(t, l.Transactions())
	assert.Empty(t, l.Valuations())

	l.Reset()
	assert.Equal(t, 10_000.0, l.Cash())
}

func TestLedgerCopiesAreIsolated(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000, 0)
	_, err := l.Buy("AAPL", 1, 100, day0)
	require.NoError(t, err)

	txs := l.Transactions()
	txs[0].Shares = 999
	assert.Equal(t, 1, l.Transactions()[0].Shares)
}
