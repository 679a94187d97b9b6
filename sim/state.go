package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/signalsim/market"
)

var (
	// ErrConcurrentRun rejects a run requested while one is in progress.
	ErrConcurrentRun = errors.New("simulation already running")
	ErrNotRunning    = errors.New("simulation not running")
	// ErrBuyAfterSell is the manual-mode rule: no buying on a day that
	// already saw a sell.
	ErrBuyAfterSell = errors.New("buy not allowed after a sell on the same day")
	ErrNoPrice      = errors.New("no price")
	// ErrFinished means every trading date has been consumed; Reset to
	// run again.
	ErrFinished = errors.New("simulation finished")
)

// State is the run lifecycle:
//
//	NotStarted -> Running -> Completed | Failed | Stopped
//
// Reset returns a finished engine to NotStarted.
type State int

const (
	NotStarted State = iota
	Running
	Completed
	Failed
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for st := NotStarted; st <= Stopped; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Finished reports whether s is a terminal state.
func (s State) Finished() bool {
	return s == Completed || s == Failed || s == Stopped
}

// Provider supplies trading dates and per-day quotes. *market.Feed is the
// production implementation.
type Provider interface {
	Tickers() []string
	Dates() []time.Time
	Snapshot(date time.Time) market.Snapshot
	// LastClose is the closing price of ticker on or before date, used to
	// liquidate at the end of a run.
	LastClose(ticker string, date time.Time) (float64, bool)
}

// OpenTrade tracks a position the engine opened, for the sell rules and
// for scoring the prediction that opened it.
type OpenTrade struct {
	Ticker     string    `json:"ticker"`
	BuyDate    time.Time `json:"buy_date"`
	BuyPrice   float64   `json:"buy_price"`
	Prediction int       `json:"prediction"`
	Shares     int       `json:"shares"`
}

// Progress is how far a run has got through its trading dates.
type Progress struct {
	CurrentDay int     `json:"current_day"`
	TotalDays  int     `json:"total_days"`
	Percent    float64 `json:"percent"`
}

func newProgress(day, total int) Progress {
	p := Progress{CurrentDay: day, TotalDays: total}
	if total > 0 {
		p.Percent = float64(day) / float64(total) * 100
	}
	return p
}

// LiveStats is the statistics view polled while a run is in progress.
type LiveStats struct {
	State          State   `json:"state"`
	PortfolioValue float64 `json:"portfolio_value"`
	Return         float64 `json:"return"`
	ReturnPct      float64 `json:"return_pct"`
	Transactions   int     `json:"transactions"`
	Accuracy       float64 `json:"accuracy"`
	OpenPositions  int     `json:"open_positions"`
}
