package journal

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// one connection serializes writers from concurrent runs
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTransaction(t TransactionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO transactions
		(id, run_id, strategy, date, ticker, action, shares, price, commission, total_amount, realized_pl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.RunID, t.Strategy, t.Date, t.Ticker, string(t.Action),
		t.Shares, t.Price, t.Commission, t.TotalAmount, t.RealizedPL,
	)
	return err
}

// RecordDaily stores the day and its open positions in one transaction.
func (j *SQLite) RecordDaily(d DailyRecord) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO daily
		(run_id, strategy, date, cash, total_value, return_pct, open_positions, signals)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.RunID, d.Strategy, d.Date, d.Cash, d.TotalValue, d.ReturnPct, d.OpenPositions,
		FormatSignals(d.Signals),
	)
	if err != nil {
		return err
	}
	for _, p := range d.Positions {
		_, err := tx.Exec(`
			INSERT INTO daily_positions
			(run_id, strategy, date, ticker, shares, avg_price, current_price, market_value, unrealized_pl, unrealized_pl_pct)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.RunID, d.Strategy, d.Date, p.Ticker, p.Shares, p.AvgPrice, p.CurrentPrice,
			p.MarketValue, p.UnrealizedPL, p.UnrealizedPLPct,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (j *SQLite) RecordPrediction(p PredictionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO predictions
		(run_id, strategy, ticker, date, predicted, buy_price, outcome_date, sell_price, actual, correct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.RunID, p.Strategy, p.Ticker, p.Date, p.Predicted, p.BuyPrice,
		nullTime(p.OutcomeDate), p.SellPrice, p.Actual, p.Correct(),
	)
	return err
}

// Finalize stores the run row. Finalizing the same run twice replaces it.
func (j *SQLite) Finalize(s RunSummary) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO runs
		(run_id, strategy, status, error, tickers, start_date, end_date, horizon,
		 initial_capital, commission, final_value, total_return, return_pct,
		 transactions, buys, sells, profitable_trades, losing_trades, accuracy,
		 total_pl, best_trade, worst_trade, max_drawdown_pct, correct_predictions, total_predictions,
		 started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Strategy, s.Status, s.Error, strings.Join(s.Tickers, " "),
		nullTime(s.Start), nullTime(s.End), s.Horizon,
		s.InitialCapital, s.Commission, s.FinalValue, s.TotalReturn, s.ReturnPct,
		s.Transactions, s.Buys, s.Sells, s.ProfitableTrades, s.LosingTrades, s.Accuracy,
		s.TotalPL, s.BestTrade, s.WorstTrade, s.MaxDrawdownPct,
		s.CorrectPredictions, s.TotalPredictions,
		nullTime(s.StartedAt), nullTime(s.FinishedAt),
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
