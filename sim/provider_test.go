package sim

import (
	"math"
	"sort"
	"time"

	"github.com/rustyeddy/signalsim/market"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

// bar is one scripted quote. A negative signal means no signal.
type bar struct {
	signal int
	open   float64
	close  float64
}

// fakeProvider serves scripted quotes per ticker and day index.
type fakeProvider struct {
	days   int
	script map[string][]bar

	// hooks
	onSnapshot func(i int)
}

func newFake(days int) *fakeProvider {
	return &fakeProvider{days: days, script: make(map[string][]bar)}
}

func (f *fakeProvider) with(ticker string, bars ...bar) *fakeProvider {
	f.script[ticker] = bars
	return f
}

func (f *fakeProvider) Tickers() []string {
	out := make([]string, 0, len(f.script))
	for t := range f.script {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (f *fakeProvider) Dates() []time.Time {
	out := make([]time.Time, f.days)
	for i := range out {
		out[i] = day(i)
	}
	return out
}

func (f *fakeProvider) index(date time.Time) int {
	return int(date.Sub(day(0)).Hours() / 24)
}

func (f *fakeProvider) Snapshot(date time.Time) market.Snapshot {
	i := f.index(date)
	if f.onSnapshot != nil {
		f.onSnapshot(i)
	}
	snap := market.Snapshot{Date: date, Quotes: map[string]market.Quote{}}
	for t, bars := range f.script {
		if i >= len(bars) {
			continue
		}
		b := bars[i]
		q := market.Quote{Ticker: t, Open: b.open, Close: b.close}
		if b.signal >= 0 {
			q.Signal, q.HasSignal = b.signal, true
		}
		snap.Quotes[t] = q
	}
	return snap
}

func (f *fakeProvider) LastClose(ticker string, date time.Time) (float64, bool) {
	bars := f.script[ticker]
	for i := min(f.index(date), len(bars)-1); i >= 0; i-- {
		if market.ValidPrice(bars[i].close) {
			return bars[i].close, true
		}
	}
	return 0, false
}

var nan = math.NaN()
