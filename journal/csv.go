package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	transactionHeader = []string{"run_id", "strategy", "id", "date", "ticker", "action", "shares", "price", "commission", "total_amount", "realized_pl"}
	dailyHeader       = []string{"run_id", "strategy", "date", "cash", "total_value", "return_pct", "open_positions", "signals"}
	positionHeader    = []string{"run_id", "strategy", "date", "ticker", "shares", "avg_price", "current_price", "market_value", "unrealized_pl", "unrealized_pl_pct"}
	predictionHeader  = []string{"run_id", "strategy", "ticker", "date", "predicted", "buy_price", "outcome_date", "sell_price", "actual", "correct"}
	summaryHeader     = []string{"run_id", "strategy", "status", "error", "tickers", "start", "end", "horizon", "initial_capital", "commission", "final_value", "total_return", "return_pct", "transactions", "buys", "sells", "profitable_trades", "losing_trades", "accuracy", "total_pl", "best_trade", "worst_trade", "max_drawdown_pct", "started_at", "finished_at", "correct_predictions", "total_predictions", "ticker_accuracy"}
)

// CSVJournal writes transactions.csv, daily.csv, positions.csv,
// predictions.csv and summary.csv into a directory. Rows are flushed as
// they are written. Several runs may share one journal.
type CSVJournal struct {
	mu sync.Mutex

	transactions *csv.Writer
	daily        *csv.Writer
	positions    *csv.Writer
	predictions  *csv.Writer
	summary      *csv.Writer
	files        []*os.File
}

func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	j := &CSVJournal{}
	open := func(name string, header []string) (*csv.Writer, error) {
		fh, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, fh)
		w := csv.NewWriter(fh)
		return w, writeRow(w, header)
	}

	var err error
	if j.transactions, err = open("transactions.csv", transactionHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.daily, err = open("daily.csv", dailyHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.positions, err = open("positions.csv", positionHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.predictions, err = open("predictions.csv", predictionHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.summary, err = open("summary.csv", summaryHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) RecordTransaction(t TransactionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return writeRow(j.transactions, []string{
		t.RunID,
		t.Strategy,
		t.ID,
		t.Date.Format(time.DateOnly),
		t.Ticker,
		string(t.Action),
		strconv.Itoa(t.Shares),
		f(t.Price),
		f(t.Commission),
		f(t.TotalAmount),
		f(t.RealizedPL),
	})
}

// RecordDaily writes the day to daily.csv and each of its open positions
// to positions.csv.
func (j *CSVJournal) RecordDaily(d DailyRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	date := d.Date.Format(time.DateOnly)
	err := writeRow(j.daily, []string{
		d.RunID,
		d.Strategy,
		date,
		f(d.Cash),
		f(d.TotalValue),
		f(d.ReturnPct),
		strconv.Itoa(d.OpenPositions),
		FormatSignals(d.Signals),
	})
	if err != nil {
		return err
	}
	for _, p := range d.Positions {
		err := writeRow(j.positions, []string{
			d.RunID,
			d.Strategy,
			date,
			p.Ticker,
			strconv.Itoa(p.Shares),
			f(p.AvgPrice),
			f(p.CurrentPrice),
			f(p.MarketValue),
			f(p.UnrealizedPL),
			f(p.UnrealizedPLPct),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (j *CSVJournal) RecordPrediction(p PredictionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return writeRow(j.predictions, []string{
		p.RunID,
		p.Strategy,
		p.Ticker,
		p.Date.Format(time.DateOnly),
		strconv.Itoa(p.Predicted),
		f(p.BuyPrice),
		dateOrEmpty(p.OutcomeDate),
		f(p.SellPrice),
		strconv.Itoa(p.Actual),
		strconv.FormatBool(p.Correct()),
	})
}

func (j *CSVJournal) Finalize(s RunSummary) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return writeRow(j.summary, []string{
		s.RunID,
		s.Strategy,
		s.Status,
		s.Error,
		strings.Join(s.Tickers, " "),
		dateOrEmpty(s.Start),
		dateOrEmpty(s.End),
		strconv.Itoa(s.Horizon),
		f(s.InitialCapital),
		f(s.Commission),
		f(s.FinalValue),
		f(s.TotalReturn),
		f(s.ReturnPct),
		strconv.Itoa(s.Transactions),
		strconv.Itoa(s.Buys),
		strconv.Itoa(s.Sells),
		strconv.Itoa(s.ProfitableTrades),
		strconv.Itoa(s.LosingTrades),
		f(s.Accuracy),
		f(s.TotalPL),
		f(s.BestTrade),
		f(s.WorstTrade),
		f(s.MaxDrawdownPct),
		s.StartedAt.Format(time.RFC3339),
		s.FinishedAt.Format(time.RFC3339),
		strconv.Itoa(s.CorrectPredictions),
		strconv.Itoa(s.TotalPredictions),
		formatTickerAccuracy(s.TickerAccuracy),
	})
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, w := range []*csv.Writer{j.transactions, j.daily, j.positions, j.predictions, j.summary} {
		w.Flush()
		if err := w.Error(); err != nil {
			j.closeFiles()
			return err
		}
	}
	return j.closeFiles()
}

func (j *CSVJournal) closeFiles() error {
	var first error
	for _, fh := range j.files {
		if err := fh.Close(); err != nil && first == nil {
			first = err
		}
	}
	j.files = nil
	return first
}

func writeRow(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// formatTickerAccuracy renders "AAA=3/4 BBB=1/2".
func formatTickerAccuracy(accs []TickerAccuracy) string {
	parts := make([]string, len(accs))
	for i, a := range accs {
		parts[i] = a.Ticker + "=" + strconv.Itoa(a.Correct) + "/" + strconv.Itoa(a.Total)
	}
	return strings.Join(parts, " ")
}

func dateOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
