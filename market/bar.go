package market

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNoData means a ticker has no usable row for a date or at all.
	ErrNoData = errors.New("no data")
	// ErrInsufficientHistory means a ticker cannot be simulated over the
	// requested window: too few bars for the predictor or the horizon.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrNoTickers means setup dropped every ticker.
	ErrNoTickers = errors.New("no tickers survived setup")
)

// Bar is one daily OHLCV row. Extra holds any additional numeric columns
// (precomputed indicators, a model's signal column).
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Extra  map[string]float64
}

// Day truncates t to midnight UTC. All dates in this package are days.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidPrice reports whether p can be traded at.
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// Series is the date-sorted bar history of one ticker.
type Series struct {
	Ticker string
	Bars   []Bar
}

// NewSeries sorts bars by date, normalises dates to days and keeps the last
// bar when a date repeats.
func NewSeries(ticker string, bars []Bar) Series {
	cp := make([]Bar, len(bars))
	copy(cp, bars)
	for i := range cp {
		cp[i].Date = Day(cp[i].Date)
	}
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Date.Before(cp[j].Date) })

	out := cp[:0]
	for _, b := range cp {
		if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return Series{Ticker: NormalizeTicker(ticker), Bars: out}
}

func (s Series) Len() int { return len(s.Bars) }

// search returns the number of bars dated on or before date.
func (s Series) search(date time.Time) int {
	date = Day(date)
	return sort.Search(len(s.Bars), func(i int) bool { return s.Bars[i].Date.After(date) })
}

// At returns the bar dated exactly date.
func (s Series) At(date time.Time) (Bar, bool) {
	n := s.search(date)
	if n == 0 || !s.Bars[n-1].Date.Equal(Day(date)) {
		return Bar{}, false
	}
	return s.Bars[n-1], true
}

// Until returns bars dated on or before date. The slice aliases the series.
func (s Series) Until(date time.Time) []Bar {
	return s.Bars[:s.search(date)]
}

// Between returns bars in [start, end]. A zero bound is open.
func (s Series) Between(start, end time.Time) []Bar {
	lo := 0
	if !start.IsZero() {
		lo = s.search(Day(start).AddDate(0, 0, -1))
	}
	hi := len(s.Bars)
	if !end.IsZero() {
		hi = s.search(end)
	}
	if lo > hi {
		return nil
	}
	return s.Bars[lo:hi]
}

// Last returns the most recent bar.
func (s Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Closes extracts close prices from bars.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Dataset maps ticker to series.
type Dataset map[string]Series

// Add stores a series under its normalised ticker.
func (d Dataset) Add(s Series) {
	d[NormalizeTicker(s.Ticker)] = s
}

// Tickers lists dataset tickers sorted.
func (d Dataset) Tickers() []string {
	out := make([]string, 0, len(d))
	for t := range d {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
