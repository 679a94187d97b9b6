package market

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rustyeddy/signalsim/internal/logging"
)

// Predictor turns the bar history of one ticker, up to and including the
// day being predicted, into a {0,1} signal.
type Predictor interface {
	Name() string
	// Warmup is the number of bars that must precede the test window.
	Warmup() int
	Predict(history []Bar) (int, error)
}

// FeedOptions bound the test window. A zero Start or End is open.
type FeedOptions struct {
	Tickers []string
	Start   time.Time
	End     time.Time
	Horizon int
	Logger  *slog.Logger
}

// Quote is what the engine sees for one ticker on one day. Open and Close
// may be NaN; callers check them with ValidPrice.
type Quote struct {
	Ticker    string
	Signal    int
	HasSignal bool
	Open      float64
	Close     float64
}

// Snapshot holds the quotes of every ticker that has a bar on Date.
type Snapshot struct {
	Date   time.Time
	Quotes map[string]Quote
}

// Closes returns the valid closing prices in the snapshot.
func (s Snapshot) Closes() map[string]float64 {
	out := make(map[string]float64, len(s.Quotes))
	for t, q := range s.Quotes {
		if ValidPrice(q.Close) {
			out[t] = q.Close
		}
	}
	return out
}

// Drop records a ticker removed during feed setup.
type Drop struct {
	Ticker string
	Err    error
}

func (d Drop) String() string { return d.Ticker + ": " + d.Err.Error() }

// Feed is the data provider for a simulation: per-ticker bars, the trading
// dates of the test window and precomputed signals.
type Feed struct {
	data      Dataset
	tickers   []string
	dates     []time.Time
	signals   map[string]map[int64]int
	dropped   []Drop
	predictor string
}

// NewFeed validates every requested ticker against the window and the
// predictor's warmup. Tickers that cannot be simulated are dropped and
// reported by Dropped. It fails with ErrNoTickers when none survive.
func NewFeed(ds Dataset, p Predictor, opts FeedOptions) (*Feed, error) {
	if p == nil {
		return nil, errors.New("feed: Predictor is required")
	}
	if opts.Horizon < 1 {
		return nil, fmt.Errorf("feed: horizon must be >= 1 (got %d)", opts.Horizon)
	}
	if !opts.Start.IsZero() && !opts.End.IsZero() && opts.End.Before(opts.Start) {
		return nil, fmt.Errorf("feed: end %s before start %s",
			opts.End.Format(time.DateOnly), opts.Start.Format(time.DateOnly))
	}
	logger := logging.OrDefault(opts.Logger)

	requested := opts.Tickers
	if len(requested) == 0 {
		requested = ds.Tickers()
	}

	f := &Feed{
		data:      make(Dataset),
		signals:   make(map[string]map[int64]int),
		predictor: p.Name(),
	}
	seenDates := make(map[int64]time.Time)

	for _, raw := range requested {
		t := NormalizeTicker(raw)
		if _, dup := f.data[t]; dup {
			continue
		}
		s, ok := ds[t]
		if !ok || s.Len() == 0 {
			f.drop(logger, t, ErrNoData)
			continue
		}

		window := s.Between(opts.Start, opts.End)
		if len(window) <= opts.Horizon {
			f.drop(logger, t, fmt.Errorf("%w: %d bars in window, horizon %d",
				ErrInsufficientHistory, len(window), opts.Horizon))
			continue
		}
		lead := s.Len() - len(s.Between(opts.Start, time.Time{}))
		if lead < p.Warmup() {
			f.drop(logger, t, fmt.Errorf("%w: %d bars before window, %s needs %d",
				ErrInsufficientHistory, lead, p.Name(), p.Warmup()))
			continue
		}

		sig := make(map[int64]int, len(window))
		for i, b := range window {
			v, err := p.Predict(s.Bars[:lead+i+1])
			if err != nil {
				logger.Debug("no signal", "ticker", t, "date", b.Date.Format(time.DateOnly), "err", err)
			} else {
				sig[b.Date.Unix()] = v
			}
			seenDates[b.Date.Unix()] = b.Date
		}

		f.data[t] = s
		f.signals[t] = sig
		f.tickers = append(f.tickers, t)
	}

	if len(f.tickers) == 0 {
		return nil, ErrNoTickers
	}

	sort.Strings(f.tickers)
	for _, d := range seenDates {
		f.dates = append(f.dates, d)
	}
	sort.Slice(f.dates, func(i, j int) bool { return f.dates[i].Before(f.dates[j]) })

	logger.Info("feed ready",
		"predictor", p.Name(),
		"tickers", len(f.tickers),
		"dropped", len(f.dropped),
		"days", len(f.dates))
	return f, nil
}

func (f *Feed) drop(logger *slog.Logger, ticker string, err error) {
	logger.Warn("dropping ticker", "ticker", ticker, "err", err)
	f.dropped = append(f.dropped, Drop{Ticker: ticker, Err: err})
}

// Tickers lists surviving tickers, sorted.
func (f *Feed) Tickers() []string { return append([]string(nil), f.tickers...) }

// Dates lists the trading dates of the test window in increasing order.
func (f *Feed) Dates() []time.Time { return append([]time.Time(nil), f.dates...) }

// Dropped lists tickers removed during setup.
func (f *Feed) Dropped() []Drop { return append([]Drop(nil), f.dropped...) }

// Predictor names the predictor that produced the signals.
func (f *Feed) Predictor() string { return f.predictor }

// Snapshot returns the quotes for date. Tickers without a bar that day are
// absent from the result.
func (f *Feed) Snapshot(date time.Time) Snapshot {
	date = Day(date)
	snap := Snapshot{Date: date, Quotes: make(map[string]Quote, len(f.tickers))}
	for _, t := range f.tickers {
		b, ok := f.data[t].At(date)
		if !ok {
			continue
		}
		q := Quote{Ticker: t, Open: b.Open, Close: b.Close}
		q.Signal, q.HasSignal = f.signals[t][date.Unix()]
		snap.Quotes[t] = q
	}
	return snap
}

// History returns the bars of ticker up to and including date.
func (f *Feed) History(ticker string, date time.Time) []Bar {
	s, ok := f.data[NormalizeTicker(ticker)]
	if !ok {
		return nil
	}
	return s.Until(date)
}

// BarAt returns the bar of ticker dated exactly date.
func (f *Feed) BarAt(ticker string, date time.Time) (Bar, bool) {
	s, ok := f.data[NormalizeTicker(ticker)]
	if !ok {
		return Bar{}, false
	}
	return s.At(date)
}

// LastClose returns the close of the latest bar at or before date with a
// tradable price. When there is none it falls back to the last valid close
// anywhere in the series.
func (f *Feed) LastClose(ticker string, date time.Time) (float64, bool) {
	s, ok := f.data[NormalizeTicker(ticker)]
	if !ok {
		return 0, false
	}
	if p, ok := lastValidClose(s.Until(date)); ok {
		return p, true
	}
	return lastValidClose(s.Bars)
}

func lastValidClose(bars []Bar) (float64, bool) {
	for i := len(bars) - 1; i >= 0; i-- {
		if ValidPrice(bars[i].Close) {
			return bars[i].Close, true
		}
	}
	return 0, false
}
