package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/signalsim/internal/id"
	"github.com/rustyeddy/signalsim/internal/logging"
	"github.com/rustyeddy/signalsim/journal"
	"github.com/rustyeddy/signalsim/market"
	"github.com/rustyeddy/signalsim/portfolio"
)

type SessionOptions struct {
	RunID          string
	Provider       Provider
	InitialCapital float64
	Commission     float64

	Journal journal.Journal
	Logger  *slog.Logger
}

// Session is manual mode: a person decides what to buy and sell each day.
// Buys fill at the day's open (close when there is no open), sells at the
// close. Once something is sold on a day, buying is refused until the next
// day.
type Session struct {
	mu sync.Mutex

	runID    string
	provider Provider
	journal  journal.Journal
	logger   *slog.Logger

	dates []time.Time
	day   int

	ledger    *portfolio.Ledger
	last      map[string]float64
	soldToday bool
	closed    bool
	started   time.Time
}

func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Provider == nil {
		return nil, errors.New("session: Provider is required")
	}
	if opts.InitialCapital < 0 {
		return nil, fmt.Errorf("session: initial capital must be >= 0 (got %v)", opts.InitialCapital)
	}
	if opts.Commission < 0 || opts.Commission >= 1 {
		return nil, fmt.Errorf("session: commission must be in [0, 1) (got %v)", opts.Commission)
	}
	dates := opts.Provider.Dates()
	if len(dates) == 0 {
		return nil, errors.New("session: provider has no trading dates")
	}

	runID := opts.RunID
	if runID == "" {
		runID = id.New()
	}
	j := opts.Journal
	if j == nil {
		j = journal.Nop{}
	}

	s := &Session{
		runID:    runID,
		provider: opts.Provider,
		journal:  j,
		logger:   logging.OrDefault(opts.Logger).With("run", runID, "mode", "manual"),
		dates:    dates,
		ledger:   portfolio.NewLedger(opts.InitialCapital, opts.Commission),
		last:     make(map[string]float64),
		started:  time.Now(),
	}
	s.observeLocked()
	return s, nil
}

func (s *Session) RunID() string { return s.runID }

// Date is the current trading day. ok is false once every day is done.
func (s *Session) Date() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishedLocked() {
		return time.Time{}, false
	}
	return s.dates[s.day], true
}

// Snapshot returns today's quotes.
func (s *Session) Snapshot() (market.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishedLocked() {
		return market.Snapshot{}, ErrFinished
	}
	return s.provider.Snapshot(s.dates[s.day]), nil
}

// CanBuy reports whether buying is still allowed today.
func (s *Session) CanBuy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.finishedLocked() && !s.soldToday
}

func (s *Session) Buy(ticker string, shares int) (portfolio.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finishedLocked() {
		return portfolio.Transaction{}, ErrFinished
	}
	if s.soldToday {
		return portfolio.Transaction{}, ErrBuyAfterSell
	}

	ticker = market.NormalizeTicker(ticker)
	date := s.dates[s.day]
	q, ok := s.provider.Snapshot(date).Quotes[ticker]
	if !ok {
		return portfolio.Transaction{}, fmt.Errorf("%s on %s: %w", ticker, date.Format(time.DateOnly), ErrNoPrice)
	}
	price := q.Open
	if !market.ValidPrice(price) {
		price = q.Close
	}
	if !market.ValidPrice(price) {
		return portfolio.Transaction{}, fmt.Errorf("%s on %s: %w", ticker, date.Format(time.DateOnly), ErrNoPrice)
	}

	tx, err := s.ledger.Buy(ticker, shares, price, date)
	if err != nil {
		return portfolio.Transaction{}, err
	}
	s.recordTx(tx)
	return tx, nil
}

func (s *Session) Sell(ticker string, shares int) (portfolio.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finishedLocked() {
		return portfolio.Transaction{}, ErrFinished
	}

	ticker = market.NormalizeTicker(ticker)
	date := s.dates[s.day]
	q, ok := s.provider.Snapshot(date).Quotes[ticker]
	if !ok || !market.ValidPrice(q.Close) {
		return portfolio.Transaction{}, fmt.Errorf("%s on %s: %w", ticker, date.Format(time.DateOnly), ErrNoPrice)
	}

	tx, err := s.ledger.Sell(ticker, shares, q.Close, date)
	if err != nil {
		return portfolio.Transaction{}, err
	}
	s.soldToday = true
	s.recordTx(tx)
	return tx, nil
}

// NextDay closes the current day, recording its valuation, and moves to
// the next one. It returns false when there are no days left.
func (s *Session) NextDay() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finishedLocked() {
		return false, ErrFinished
	}
	s.closeDayLocked()
	s.day++
	s.soldToday = false
	if s.finishedLocked() {
		return false, nil
	}
	s.observeLocked()
	return true, nil
}

func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newProgress(s.day, len(s.dates))
}

func (s *Session) Summary() portfolio.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Summary(s.last)
}

func (s *Session) Transactions() []portfolio.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Transactions()
}

func (s *Session) Equity() []portfolio.Valuation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Valuations()
}

// Close records the current day if it was not closed yet and writes the
// run summary. Positions are left as they are and valued at the last
// known prices.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if !s.finishedLocked() {
		s.closeDayLocked()
	}
	s.closed = true
	summary := s.runSummaryLocked()
	s.mu.Unlock()

	if err := s.journal.Finalize(summary); err != nil {
		s.logger.Warn("journal write failed", "record", "finalize", "err", err)
	}
	return nil
}

func (s *Session) finishedLocked() bool {
	return s.closed || s.day >= len(s.dates)
}

// observeLocked folds today's closes into the last known prices.
func (s *Session) observeLocked() {
	for t, q := range s.provider.Snapshot(s.dates[s.day]).Quotes {
		if market.ValidPrice(q.Close) {
			s.last[t] = q.Close
		}
	}
}

func (s *Session) closeDayLocked() {
	date := s.dates[s.day]
	signals := make(map[string]int)
	for t, q := range s.provider.Snapshot(date).Quotes {
		if q.HasSignal {
			signals[t] = q.Signal
		}
	}

	v := s.ledger.RecordDailyValue(date, s.last)
	err := s.journal.RecordDaily(journal.DailyRecord{
		RunID:         s.runID,
		Strategy:      "manual",
		Date:          date,
		Cash:          s.ledger.Cash(),
		TotalValue:    v.TotalValue,
		ReturnPct:     v.ReturnPct,
		OpenPositions: len(s.ledger.Positions()),
		Signals:       signals,
		Positions:     s.ledger.Summary(s.last).Positions,
	})
	if err != nil {
		s.logger.Warn("journal write failed", "record", "daily", "err", err)
	}
}

func (s *Session) recordTx(tx portfolio.Transaction) {
	s.logger.Debug("manual trade", "action", tx.Action, "ticker", tx.Ticker, "shares", tx.Shares, "price", tx.Price)
	err := s.journal.RecordTransaction(journal.TransactionRecord{RunID: s.runID, Strategy: "manual", Transaction: tx})
	if err != nil {
		s.logger.Warn("journal write failed", "record", "transaction", "err", err)
	}
}

func (s *Session) runSummaryLocked() journal.RunSummary {
	sum := s.ledger.Summary(s.last)
	out := journal.RunSummary{
		RunID:          s.runID,
		Strategy:       "manual",
		Status:         Completed.String(),
		Tickers:        s.provider.Tickers(),
		Start:          s.dates[0],
		End:            s.dates[len(s.dates)-1],
		InitialCapital: s.ledger.InitialCapital(),
		Commission:     s.ledger.CommissionRate(),
		FinalValue:     sum.TotalValue,
		TotalReturn:    sum.TotalReturn,
		ReturnPct:      sum.ReturnPct,
		MaxDrawdownPct: MaxDrawdownPct(s.ledger.Valuations()),
		StartedAt:      s.started,
		FinishedAt:     time.Now(),
		Positions:      sum.Positions,
	}
	for _, tx := range s.ledger.Transactions() {
		out.Transactions++
		if tx.Action == portfolio.Buy {
			out.Buys++
		} else {
			out.Sells++
			if tx.RealizedPL > 0 {
				out.ProfitableTrades++
			} else {
				out.LosingTrades++
			}
		}
	}
	return out
}
