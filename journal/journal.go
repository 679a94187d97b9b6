// Package journal records what a simulation does: every transaction, one
// snapshot per simulated day and a final summary per run. Journals are a
// side channel; the engine logs their errors and carries on.
package journal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rustyeddy/signalsim/portfolio"
)

// TransactionRecord is a ledger transaction tagged with its run.
type TransactionRecord struct {
	RunID    string
	Strategy string
	portfolio.Transaction
}

// DailyRecord is the end-of-day portfolio snapshot. Signals holds the
// predictor output of every ticker that had one that day; Positions are
// the open positions marked at the day's last known closes.
type DailyRecord struct {
	RunID         string
	Strategy      string
	Date          time.Time
	Cash          float64
	TotalValue    float64
	ReturnPct     float64
	OpenPositions int

	Signals   map[string]int
	Positions []portfolio.PositionSummary
}

// PredictionRecord is a buy signal scored against what the price did by
// the time the position was sold. Actual is 1 when the sell price was
// above the buy price.
type PredictionRecord struct {
	RunID    string
	Strategy string
	Ticker   string

	Date      time.Time
	Predicted int
	BuyPrice  float64

	OutcomeDate time.Time
	SellPrice   float64
	Actual      int
}

func (p PredictionRecord) Correct() bool { return p.Predicted == p.Actual }

// TickerAccuracy is the prediction score of one ticker over a run.
type TickerAccuracy struct {
	Ticker  string `json:"ticker"`
	Correct int    `json:"correct"`
	Total   int    `json:"total"`
}

// Accuracy is Correct / Total in [0, 1], 0 when nothing was scored.
func (a TickerAccuracy) Accuracy() float64 {
	if a.Total == 0 {
		return 0
	}
	return float64(a.Correct) / float64(a.Total)
}

// RunSummary is written once when a run finishes, whatever its outcome.
type RunSummary struct {
	RunID    string
	Strategy string
	Status   string
	Error    string

	Tickers        []string
	Start          time.Time
	End            time.Time
	Horizon        int
	InitialCapital float64
	Commission     float64

	FinalValue  float64
	TotalReturn float64
	ReturnPct   float64

	Transactions     int
	Buys             int
	Sells            int
	ProfitableTrades int
	LosingTrades     int
	TotalPL          float64
	BestTrade        float64
	WorstTrade       float64
	MaxDrawdownPct   float64

	Accuracy           float64
	CorrectPredictions int
	TotalPredictions   int
	TickerAccuracy     []TickerAccuracy

	StartedAt  time.Time
	FinishedAt time.Time

	Positions []portfolio.PositionSummary
}

type Journal interface {
	RecordTransaction(TransactionRecord) error
	RecordDaily(DailyRecord) error
	RecordPrediction(PredictionRecord) error
	Finalize(RunSummary) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTransaction(TransactionRecord) error { return nil }
func (Nop) RecordDaily(DailyRecord) error             { return nil }
func (Nop) RecordPrediction(PredictionRecord) error   { return nil }
func (Nop) Finalize(RunSummary) error                 { return nil }
func (Nop) Close() error                              { return nil }

// Multi fans every call out to each journal. All journals are called even
// when one fails; the errors are joined.
type Multi []Journal

func (m Multi) RecordTransaction(r TransactionRecord) error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.RecordTransaction(r))
	}
	return errors.Join(errs...)
}

func (m Multi) RecordDaily(r DailyRecord) error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.RecordDaily(r))
	}
	return errors.Join(errs...)
}

func (m Multi) RecordPrediction(r PredictionRecord) error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.RecordPrediction(r))
	}
	return errors.Join(errs...)
}

func (m Multi) Finalize(s RunSummary) error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.Finalize(s))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.Close())
	}
	return errors.Join(errs...)
}

// FormatSignals renders signals as "AAA=1 BBB=0", sorted by ticker.
func FormatSignals(signals map[string]int) string {
	keys := make([]string, 0, len(signals))
	for k := range signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, signals[k])
	}
	return strings.Join(parts, " ")
}

// ParseSignals is the inverse of FormatSignals.
func ParseSignals(s string) (map[string]int, error) {
	out := make(map[string]int)
	for _, field := range strings.Fields(s) {
		ticker, v, ok := strings.Cut(field, "=")
		if !ok || ticker == "" {
			return nil, fmt.Errorf("bad signal %q", field)
		}
		switch v {
		case "0":
			out[ticker] = 0
		case "1":
			out[ticker] = 1
		default:
			return nil, fmt.Errorf("bad signal %q", field)
		}
	}
	return out, nil
}
