package market

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// daily builds consecutive calendar-day bars starting at start with the
// given closes. Open is close minus one.
func daily(start string, closes ...float64) []Bar {
	d := day(start)
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{Date: d.AddDate(0, 0, i), Open: c - 1, High: c + 1, Low: c - 2, Close: c, Volume: 1000}
	}
	return bars
}

func TestNewSeriesSortsAndDedupes(t *testing.T) {
	t.Parallel()

	bars := []Bar{
		{Date: day("2024-01-03"), Close: 3},
		{Date: day("2024-01-01"), Close: 1},
		{Date: day("2024-01-02").Add(15 * time.Hour), Close: 2},
		{Date: day("2024-01-03"), Close: 33},
	}
	s := NewSeries(" aapl ", bars)

	assert.Equal(t, "AAPL", s.Ticker)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{1, 2, 33}, Closes(s.Bars))
	assert.Equal(t, day("2024-01-02"), s.Bars[1].Date)

	// input is not mutated
	assert.Equal(t, 3.0, bars[0].Close)
}

func TestSeriesLookups(t *testing.T) {
	t.Parallel()

	s := NewSeries("X", daily("2024-01-01", 10, 11, 12, 13, 14))

	b, ok := s.At(day("2024-01-03"))
	require.True(t, ok)
	assert.Equal(t, 12.0, b.Close)

	_, ok = s.At(day("2023-12-31"))
	assert.False(t, ok)

	assert.Len(t, s.Until(day("2024-01-02")), 2)
	assert.Empty(t, s.Until(day("2023-12-01")))
	assert.Len(t, s.Until(day("2030-01-01")), 5)

	assert.Equal(t, []float64{11, 12, 13}, Closes(s.Between(day("2024-01-02"), day("2024-01-04"))))
	assert.Len(t, s.Between(time.Time{}, day("2024-01-02")), 2)
	assert.Len(t, s.Between(day("2024-01-04"), time.Time{}), 2)
	assert.Empty(t, s.Between(day("2025-01-01"), day("2025-02-01")))

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 14.0, last.Close)

	_, ok = Series{}.Last()
	assert.False(t, ok)
}

func TestValidPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		p    float64
		want bool
	}{
		{1, true},
		{0.01, true},
		{0, false},
		{-3, false},
		{math.NaN(), false},
		{math.Inf(1), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidPrice(tt.p), "price %v", tt.p)
	}
}

func TestDatasetTickers(t *testing.T) {
	t.Parallel()

	ds := make(Dataset)
	ds.Add(NewSeries("msft", nil))
	ds.Add(Series{Ticker: "aapl"})

	assert.Equal(t, []string{"AAPL", "MSFT"}, ds.Tickers())
}
