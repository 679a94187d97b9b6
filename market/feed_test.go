package market

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upDay signals 1 when the last close is above the one before it.
type upDay struct{ warmup int }

func (upDay) Name() string  { return "up-day" }
func (u upDay) Warmup() int { return u.warmup }
func (upDay) Predict(h []Bar) (int, error) {
	if len(h) < 2 {
		return 0, errors.New("need two bars")
	}
	if h[len(h)-1].Close > h[len(h)-2].Close {
		return 1, nil
	}
	return 0, nil
}

func testDataset() Dataset {
	ds := make(Dataset)
	// 2023-12-29 .. 2024-01-07
	ds.Add(NewSeries("AAA", daily("2023-12-29", 9, 10, 11, 10, 12, 13, 12, 14, 15, 16)))
	// starts inside the window, no lead bars
	ds.Add(NewSeries("BBB", daily("2024-01-02", 20, 21, 22, 23)))
	// only one bar in the window
	ds.Add(NewSeries("CCC", daily("2023-12-20", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13)))
	return ds
}

func TestNewFeedDropsTickers(t *testing.T) {
	t.Parallel()

	f, err := NewFeed(testDataset(), upDay{warmup: 2}, FeedOptions{
		Tickers: []string{"aaa", "bbb", "ccc", "zzz"},
		Start:   day("2024-01-01"),
		End:     day("2024-01-05"),
		Horizon: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA"}, f.Tickers())
	assert.Equal(t, "up-day", f.Predictor())

	dropped := map[string]error{}
	for _, d := range f.Dropped() {
		dropped[d.Ticker] = d.Err
	}
	require.Len(t, dropped, 3)
	assert.ErrorIs(t, dropped["BBB"], ErrInsufficientHistory)
	assert.ErrorIs(t, dropped["CCC"], ErrInsufficientHistory)
	assert.ErrorIs(t, dropped["ZZZ"], ErrNoData)

	dates := f.Dates()
	require.Len(t, dates, 5)
	assert.Equal(t, day("2024-01-01"), dates[0])
	assert.Equal(t, day("2024-01-05"), dates[4])
}

func TestNewFeedNoSurvivors(t *testing.T) {
	t.Parallel()

	_, err := NewFeed(testDataset(), upDay{}, FeedOptions{
		Tickers: []string{"CCC"},
		Start:   day("2024-01-01"),
		End:     day("2024-01-05"),
		Horizon: 1,
	})
	assert.ErrorIs(t, err, ErrNoTickers)
}

func TestNewFeedValidation(t *testing.T) {
	t.Parallel()

	_, err := NewFeed(testDataset(), nil, FeedOptions{Horizon: 1})
	assert.Error(t, err)

	_, err = NewFeed(testDataset(), upDay{}, FeedOptions{Horizon: 0})
	assert.Error(t, err)

	_, err = NewFeed(testDataset(), upDay{}, FeedOptions{
		Start: day("2024-02-01"), End: day("2024-01-01"), Horizon: 1,
	})
	assert.Error(t, err)
}

func TestFeedDatesAreUnion(t *testing.T) {
	t.Parallel()

	ds := make(Dataset)
	ds.Add(NewSeries("A", []Bar{
		{Date: day("2024-01-01"), Open: 1, Close: 1},
		{Date: day("2024-01-03"), Open: 1, Close: 2},
	}))
	ds.Add(NewSeries("B", []Bar{
		{Date: day("2024-01-02"), Open: 1, Close: 1},
		{Date: day("2024-01-03"), Open: 1, Close: 1},
	}))

	f, err := NewFeed(ds, upDay{}, FeedOptions{Horizon: 1})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2024-01-01"), day("2024-01-02"), day("2024-01-03")}, f.Dates())

	snap := f.Snapshot(day("2024-01-01"))
	assert.Contains(t, snap.Quotes, "A")
	assert.NotContains(t, snap.Quotes, "B")
}

func TestFeedSnapshotSignals(t *testing.T) {
	t.Parallel()

	f, err := NewFeed(testDataset(), upDay{warmup: 1}, FeedOptions{
		Tickers: []string{"AAA"},
		Start:   day("2024-01-01"),
		End:     day("2024-01-05"),
		Horizon: 1,
	})
	require.NoError(t, err)

	// 2023-12-31 close 11, 2024-01-01 close 10
	q := f.Snapshot(day("2024-01-01")).Quotes["AAA"]
	assert.True(t, q.HasSignal)
	assert.Equal(t, 0, q.Signal)
	assert.Equal(t, 9.0, q.Open)
	assert.Equal(t, 10.0, q.Close)

	q = f.Snapshot(day("2024-01-02")).Quotes["AAA"]
	assert.True(t, q.HasSignal)
	assert.Equal(t, 1, q.Signal)

	assert.Empty(t, f.Snapshot(day("2024-03-01")).Quotes)
}

func TestFeedPredictorErrorLeavesSignalAbsent(t *testing.T) {
	t.Parallel()

	ds := make(Dataset)
	ds.Add(NewSeries("A", daily("2024-01-01", 1, 2, 3)))

	f, err := NewFeed(ds, upDay{}, FeedOptions{Horizon: 1})
	require.NoError(t, err)

	assert.False(t, f.Snapshot(day("2024-01-01")).Quotes["A"].HasSignal)
	assert.True(t, f.Snapshot(day("2024-01-02")).Quotes["A"].HasSignal)
}

func TestSnapshotCloses(t *testing.T) {
	t.Parallel()

	s := Snapshot{Quotes: map[string]Quote{
		"A": {Close: 10},
		"B": {Close: math.NaN()},
		"C": {Close: 0},
	}}
	assert.Equal(t, map[string]float64{"A": 10}, s.Closes())
}

func TestFeedLastClose(t *testing.T) {
	t.Parallel()

	bars := daily("2024-01-01", 10, 11, 12)
	bars[2].Close = math.NaN()
	ds := make(Dataset)
	ds.Add(NewSeries("A", bars))

	f, err := NewFeed(ds, upDay{}, FeedOptions{Horizon: 1})
	require.NoError(t, err)

	p, ok := f.LastClose("a", day("2024-01-03"))
	require.True(t, ok)
	assert.Equal(t, 11.0, p)

	p, ok = f.LastClose("A", day("2024-06-30"))
	require.True(t, ok)
	assert.Equal(t, 11.0, p)

	// before the series starts: fall back to the last known close
	p, ok = f.LastClose("A", day("2023-01-01"))
	require.True(t, ok)
	assert.Equal(t, 11.0, p)

	_, ok = f.LastClose("NOPE", day("2024-01-01"))
	assert.False(t, ok)

	assert.Len(t, f.History("A", day("2024-01-02")), 2)
	_, ok = f.BarAt("A", day("2024-01-02"))
	assert.True(t, ok)
}
