package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/signalsim/internal/id"
	"github.com/rustyeddy/signalsim/internal/logging"
	"github.com/rustyeddy/signalsim/journal"
	"github.com/rustyeddy/signalsim/market"
	"github.com/rustyeddy/signalsim/portfolio"
	"github.com/rustyeddy/signalsim/strategies"
)

// Options configure an Engine. Journal, Logger and Events are optional.
type Options struct {
	// RunID names every run of the engine. Empty means a fresh ULID per run.
	RunID          string
	Strategy       strategies.Strategy
	Provider       Provider
	InitialCapital float64
	Commission     float64
	Horizon        int

	Journal journal.Journal
	Logger  *slog.Logger
	Events  chan<- Event
}

func (o Options) validate() error {
	if o.Strategy == nil {
		return errors.New("sim: Strategy is required")
	}
	if o.Provider == nil {
		return errors.New("sim: Provider is required")
	}
	if o.InitialCapital < 0 {
		return fmt.Errorf("sim: initial capital must be >= 0 (got %v)", o.InitialCapital)
	}
	if o.Commission < 0 || o.Commission >= 1 {
		return fmt.Errorf("sim: commission must be in [0, 1) (got %v)", o.Commission)
	}
	if o.Horizon < 1 {
		return fmt.Errorf("sim: horizon must be >= 1 (got %d)", o.Horizon)
	}
	return nil
}

// Engine runs one strategy over the provider's trading dates, one day at a
// time. It owns its ledger. Only one run can be in progress; a finished
// engine must be Reset before it runs again.
type Engine struct {
	mu sync.Mutex

	opts     Options
	strategy strategies.Strategy
	provider Provider
	journal  journal.Journal
	logger   *slog.Logger
	events   chan<- Event

	tickers []string
	dates   []time.Time

	ledger *portfolio.Ledger
	open   map[string]OpenTrade
	last   map[string]float64
	day    int

	state    State
	stopping bool
	runID    string
	stats    RunStatistics
	err      error
	done     chan struct{}
}

func NewEngine(opts Options) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if len(opts.Provider.Tickers()) == 0 {
		return nil, fmt.Errorf("sim: %w", market.ErrNoTickers)
	}
	if len(opts.Provider.Dates()) == 0 {
		return nil, errors.New("sim: provider has no trading dates")
	}

	j := opts.Journal
	if j == nil {
		j = journal.Nop{}
	}

	e := &Engine{
		opts:     opts,
		strategy: opts.Strategy,
		provider: opts.Provider,
		journal:  j,
		logger:   logging.OrDefault(opts.Logger),
		events:   opts.Events,
		tickers:  opts.Provider.Tickers(),
		dates:    opts.Provider.Dates(),
		ledger:   portfolio.NewLedger(opts.InitialCapital, opts.Commission),
	}
	e.resetLocked()
	return e, nil
}

// Run executes the whole simulation on the calling goroutine and returns
// the final statistics. It fails with ErrConcurrentRun while another run
// is in progress and with ErrFinished if the engine has not been Reset
// since its last run.
func (e *Engine) Run(ctx context.Context) (RunStatistics, error) {
	if err := e.begin(); err != nil {
		return RunStatistics{}, err
	}
	return e.loop(ctx)
}

// Start is Run on a new goroutine. Rejections are returned synchronously;
// the outcome is available from Wait, the event channel or State.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.begin(); err != nil {
		return err
	}
	go e.loop(ctx)
	return nil
}

// Wait blocks until the current or last run finishes.
func (e *Engine) Wait() (RunStatistics, error) {
	e.mu.Lock()
	if e.state == NotStarted {
		e.mu.Unlock()
		return RunStatistics{}, ErrNotRunning
	}
	done := e.done
	e.mu.Unlock()

	<-done

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats, e.err
}

// Stop asks a running simulation to end after the current day. Open
// positions are liquidated and the run ends Stopped.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Running {
		return ErrNotRunning
	}
	e.stopping = true
	return nil
}

// Reset restores the ledger and the date index to the start.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Running {
		return ErrConcurrentRun
	}
	e.resetLocked()
	return nil
}

func (e *Engine) resetLocked() {
	e.ledger.Reset()
	e.open = make(map[string]OpenTrade)
	e.last = make(map[string]float64)
	e.day = 0
	e.state = NotStarted
	e.stopping = false
	e.runID = ""
	e.stats = RunStatistics{}
	e.err = nil
	e.done = make(chan struct{})
}

func (e *Engine) begin() error {
	e.mu.Lock()

	switch {
	case e.state == Running:
		e.mu.Unlock()
		return ErrConcurrentRun
	case e.state.Finished():
		e.mu.Unlock()
		return ErrFinished
	}

	e.state = Running
	e.runID = e.opts.RunID
	if e.runID == "" {
		e.runID = id.New()
	}
	e.stats.StartTime = time.Now()
	e.logger = logging.OrDefault(e.opts.Logger).With("run", e.runID, "strategy", e.strategy.Name())
	ev := e.eventLocked(EventStarted, time.Time{})
	e.mu.Unlock()

	e.logger.Info("simulation started",
		"tickers", len(e.tickers),
		"days", len(e.dates),
		"capital", e.opts.InitialCapital)
	send(e.events, ev)
	return nil
}

func (e *Engine) loop(ctx context.Context) (RunStatistics, error) {
	var runErr error
	for {
		if ctx.Err() != nil {
			e.mu.Lock()
			e.stopping = true
			e.mu.Unlock()
		}
		if e.stopRequested() {
			break
		}

		done, ev, err := e.step()
		if err != nil {
			runErr = err
			break
		}
		send(e.events, ev)
		if done {
			break
		}
	}
	return e.finish(runErr)
}

func (e *Engine) stopRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopping
}

// step simulates one day. The provider is queried without holding the
// lock. A panic inside the day is returned as an error.
func (e *Engine) step() (done bool, ev Event, err error) {
	e.mu.Lock()
	date := e.dates[e.day]
	e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sim: panic on %s: %v", date.Format(time.DateOnly), r)
		}
	}()

	snap := e.provider.Snapshot(date)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.advanceDayLocked(date, snap); err != nil {
		return false, Event{}, fmt.Errorf("sim: %s: %w", date.Format(time.DateOnly), err)
	}
	return e.day >= len(e.dates), e.eventLocked(EventDay, date), nil
}

// advanceDayLocked runs the sell pass, the buy pass and the end-of-day
// valuation for date.
func (e *Engine) advanceDayLocked(date time.Time, snap market.Snapshot) error {
	for t, q := range snap.Quotes {
		if market.ValidPrice(q.Close) {
			e.last[t] = q.Close
		}
	}

	if err := e.sellPassLocked(date, snap); err != nil {
		return err
	}
	if err := e.buyPassLocked(date, snap); err != nil {
		return err
	}

	signals := make(map[string]int)
	for t, q := range snap.Quotes {
		if q.HasSignal {
			signals[t] = q.Signal
		}
	}

	v := e.ledger.RecordDailyValue(date, e.last)
	e.record("daily", e.journal.RecordDaily(journal.DailyRecord{
		RunID:         e.runID,
		Strategy:      e.strategy.Name(),
		Date:          date,
		Cash:          e.ledger.Cash(),
		TotalValue:    v.TotalValue,
		ReturnPct:     v.ReturnPct,
		OpenPositions: len(e.open),
		Signals:       signals,
		Positions:     e.ledger.Summary(e.last).Positions,
	}))

	e.day++
	return nil
}

func (e *Engine) sellPassLocked(date time.Time, snap market.Snapshot) error {
	for _, t := range sortedKeys(e.open) {
		pos := e.ledger.Position(t)
		if !pos.IsOpen() {
			delete(e.open, t)
			continue
		}
		q, ok := snap.Quotes[t]
		if !ok || !market.ValidPrice(q.Close) {
			continue
		}
		if !e.strategy.ShouldSell(t, pos, q.Close, e.open[t].BuyDate, date, e.opts.Horizon) {
			continue
		}
		if err := e.closeLocked(t, q.Close, date); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) buyPassLocked(date time.Time, snap market.Snapshot) error {
	cash := e.ledger.Cash()
	summary := e.ledger.Summary(e.last)

	for _, t := range e.tickers {
		q, ok := snap.Quotes[t]
		if !ok || !q.HasSignal || !market.ValidPrice(q.Close) {
			continue
		}
		if e.ledger.Position(t).IsOpen() {
			continue
		}
		if !e.strategy.ShouldBuy(t, q.Signal, q.Close, summary) {
			continue
		}
		shares := e.strategy.PositionSize(t, cash, len(e.tickers), q.Close)
		if shares <= 0 {
			continue
		}

		price := q.Open
		if !market.ValidPrice(price) {
			price = q.Close
		}
		if !e.ledger.CanBuy(t, shares, price) {
			e.logger.Debug("buy skipped: insufficient funds", "ticker", t, "shares", shares, "price", price)
			continue
		}

		tx, err := e.ledger.Buy(t, shares, price, date)
		if err != nil {
			return fmt.Errorf("buy %s: %w", t, err)
		}
		e.open[t] = OpenTrade{Ticker: t, BuyDate: date, BuyPrice: price, Prediction: q.Signal, Shares: shares}
		e.stats.recordBuy()
		e.logger.Debug("buy", "ticker", t, "shares", shares, "price", price, "date", date.Format(time.DateOnly))
		e.recordTx(tx)
	}
	return nil
}

// closeLocked sells the whole position in ticker and scores the trade.
func (e *Engine) closeLocked(ticker string, price float64, date time.Time) error {
	pos := e.ledger.Position(ticker)
	tx, err := e.ledger.Sell(ticker, pos.Shares, price, date)
	if err != nil {
		return fmt.Errorf("sell %s: %w", ticker, err)
	}

	ot, ok := e.open[ticker]
	var pl float64
	if ok {
		pl = e.stats.recordSell(ot, price, pos.Shares)
		e.record("prediction", e.journal.RecordPrediction(journal.PredictionRecord{
			RunID:       e.runID,
			Strategy:    e.strategy.Name(),
			Ticker:      ticker,
			Date:        ot.BuyDate,
			Predicted:   ot.Prediction,
			BuyPrice:    ot.BuyPrice,
			OutcomeDate: date,
			SellPrice:   price,
			Actual:      outcome(ot.BuyPrice, price),
		}))
	} else {
		e.logger.Warn("sell without a tracked buy; prediction not scored", "ticker", ticker)
		pl = e.stats.recordTrade(pos.AvgPrice, price, pos.Shares)
	}
	delete(e.open, ticker)

	e.logger.Debug("sell", "ticker", ticker, "shares", pos.Shares, "price", price, "pl", pl, "date", date.Format(time.DateOnly))
	e.recordTx(tx)
	return nil
}

// liquidateLocked closes every open position at the last known close on or
// before date. A position with no price at all stays open and is valued
// at cost.
func (e *Engine) liquidateLocked(date time.Time) error {
	for _, t := range sortedKeys(e.open) {
		price, ok := e.provider.LastClose(t, date)
		if !ok || !market.ValidPrice(price) {
			price, ok = e.last[t]
		}
		if !ok {
			e.logger.Warn("cannot liquidate: no price", "ticker", t)
			continue
		}
		if !e.ledger.Position(t).IsOpen() {
			delete(e.open, t)
			continue
		}
		e.last[t] = price
		if err := e.closeLocked(t, price, date); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) finish(runErr error) (RunStatistics, error) {
	e.mu.Lock()

	state := Completed
	switch {
	case runErr != nil:
		state = Failed
	case e.stopping:
		state = Stopped
	}

	if state != Failed && e.day > 0 {
		if err := e.liquidateLocked(e.dates[e.day-1]); err != nil {
			runErr = fmt.Errorf("sim: liquidate: %w", err)
			state = Failed
		}
	}

	e.stats.finalize(e.ledger.Summary(e.last), e.ledger.Valuations(), time.Now())
	e.state = state
	e.err = runErr
	e.stopping = false

	summary := e.runSummaryLocked()
	stats := e.stats
	ev := e.eventLocked(finishedEvent(state), time.Time{})
	if runErr != nil {
		ev.Err = runErr.Error()
	}
	done := e.done
	logger := e.logger
	day := e.day
	e.mu.Unlock()

	e.record("finalize", e.journal.Finalize(summary))

	if runErr != nil {
		logger.Error("simulation failed", "err", runErr, "day", day)
	} else {
		logger.Info("simulation finished",
			"state", state.String(),
			"value", stats.FinalPortfolioValue,
			"return_pct", stats.ReturnPct,
			"trades", stats.SellTransactions,
			"accuracy", stats.Accuracy)
	}

	close(done)
	send(e.events, ev)
	return stats, runErr
}

func (e *Engine) runSummaryLocked() journal.RunSummary {
	sum := e.ledger.Summary(e.last)
	s := journal.RunSummary{
		RunID:            e.runID,
		Strategy:         e.strategy.Name(),
		Status:           e.state.String(),
		Tickers:          append([]string(nil), e.tickers...),
		Start:            e.dates[0],
		End:              e.dates[len(e.dates)-1],
		Horizon:          e.opts.Horizon,
		InitialCapital:   e.ledger.InitialCapital(),
		Commission:       e.ledger.CommissionRate(),
		FinalValue:       e.stats.FinalPortfolioValue,
		TotalReturn:      e.stats.TotalReturn,
		ReturnPct:        e.stats.ReturnPct,
		Transactions:     e.stats.TotalTransactions,
		Buys:             e.stats.BuyTransactions,
		Sells:            e.stats.SellTransactions,
		ProfitableTrades: e.stats.ProfitableTrades,
		LosingTrades:     e.stats.LosingTrades,
		Accuracy:         e.stats.Accuracy,
		TotalPL:          e.stats.TotalProfitLoss,
		BestTrade:        e.stats.BestTrade,
		WorstTrade:       e.stats.WorstTrade,
		MaxDrawdownPct:   e.stats.MaxDrawdownPct,
		StartedAt:        e.stats.StartTime,
		FinishedAt:       e.stats.EndTime,
		Positions:        sum.Positions,

		CorrectPredictions: e.stats.CorrectPredictions,
		TotalPredictions:   e.stats.TotalPredictions,
		TickerAccuracy:     e.stats.TickerAccuracy,
	}
	if e.err != nil {
		s.Error = e.err.Error()
	}
	return s
}

func (e *Engine) recordTx(tx portfolio.Transaction) {
	e.record("transaction", e.journal.RecordTransaction(journal.TransactionRecord{
		RunID:       e.runID,
		Strategy:    e.strategy.Name(),
		Transaction: tx,
	}))
}

// record logs a journal failure. Journal errors never affect the run.
func (e *Engine) record(what string, err error) {
	if err != nil {
		e.logger.Warn("journal write failed", "record", what, "err", err)
	}
}

func (e *Engine) eventLocked(kind EventKind, date time.Time) Event {
	return Event{
		Kind:     kind,
		RunID:    e.runID,
		Strategy: e.strategy.Name(),
		Date:     date,
		Progress: newProgress(e.day, len(e.dates)),
		Stats:    e.liveStatsLocked(),
	}
}

func (e *Engine) liveStatsLocked() LiveStats {
	sum := e.ledger.Summary(e.last)
	return LiveStats{
		State:          e.state,
		PortfolioValue: sum.TotalValue,
		Return:         sum.TotalReturn,
		ReturnPct:      sum.ReturnPct,
		Transactions:   e.stats.TotalTransactions,
		Accuracy:       e.stats.accuracy(),
		OpenPositions:  len(e.open),
	}
}

// Queries. All are safe to call while a run is in progress.

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err is the error of the last failed run.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

func (e *Engine) Strategy() strategies.Strategy { return e.strategy }

func (e *Engine) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return newProgress(e.day, len(e.dates))
}

func (e *Engine) Stats() LiveStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liveStatsLocked()
}

// Statistics is the full statistics record. Derived fields such as the
// final value are only set once the run has finished.
func (e *Engine) Statistics() RunStatistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) Summary() portfolio.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Summary(e.last)
}

// RunSummary is the record the journal receives when the run finishes.
func (e *Engine) RunSummary() journal.RunSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runSummaryLocked()
}

func (e *Engine) Equity() []portfolio.Valuation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Valuations()
}

func (e *Engine) Transactions() []portfolio.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Transactions()
}

func (e *Engine) OpenTrades() []OpenTrade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]OpenTrade, 0, len(e.open))
	for _, t := range sortedKeys(e.open) {
		out = append(out, e.open[t])
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
