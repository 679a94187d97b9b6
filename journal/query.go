package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/signalsim/portfolio"
)

const runColumns = `run_id, strategy, status, error, tickers, start_date, end_date, horizon,
	initial_capital, commission, final_value, total_return, return_pct,
	transactions, buys, sells, profitable_trades, losing_trades, accuracy,
	total_pl, best_trade, worst_trade, max_drawdown_pct, correct_predictions, total_predictions,
	started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunSummary, error) {
	var (
		s                                 RunSummary
		tickers                           string
		start, end, startedAt, finishedAt sql.NullTime
	)
	err := row.Scan(
		&s.RunID, &s.Strategy, &s.Status, &s.Error, &tickers, &start, &end, &s.Horizon,
		&s.InitialCapital, &s.Commission, &s.FinalValue, &s.TotalReturn, &s.ReturnPct,
		&s.Transactions, &s.Buys, &s.Sells, &s.ProfitableTrades, &s.LosingTrades, &s.Accuracy,
		&s.TotalPL, &s.BestTrade, &s.WorstTrade, &s.MaxDrawdownPct, &s.CorrectPredictions, &s.TotalPredictions,
		&startedAt, &finishedAt,
	)
	if err != nil {
		return RunSummary{}, err
	}
	s.Tickers = strings.Fields(tickers)
	s.Start, s.End = start.Time, end.Time
	s.StartedAt, s.FinishedAt = startedAt.Time, finishedAt.Time
	return s, nil
}

// GetRun returns a single finalized run by ID, with its per-ticker
// prediction accuracy.
func (j *SQLite) GetRun(runID string) (RunSummary, error) {
	row := j.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	s, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunSummary{}, fmt.Errorf("run %q not found", runID)
	}
	if err != nil {
		return RunSummary{}, err
	}
	s.TickerAccuracy, err = j.TickerAccuracy(runID)
	return s, err
}

// ListRuns returns every finalized run, oldest first.
func (j *SQLite) ListRuns() ([]RunSummary, error) {
	rows, err := j.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at ASC, run_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		s, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range out {
		if out[i].TickerAccuracy, err = j.TickerAccuracy(out[i].RunID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// TickerAccuracy scores the recorded predictions of a run per ticker,
// sorted by ticker.
func (j *SQLite) TickerAccuracy(runID string) ([]TickerAccuracy, error) {
	rows, err := j.db.Query(`
		SELECT ticker, SUM(CASE WHEN correct THEN 1 ELSE 0 END), COUNT(*)
		FROM predictions
		WHERE run_id = ?
		GROUP BY ticker
		ORDER BY ticker ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TickerAccuracy
	for rows.Next() {
		var a TickerAccuracy
		if err := rows.Scan(&a.Ticker, &a.Correct, &a.Total); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListPredictions returns the scored predictions of a run in the order
// they were recorded.
func (j *SQLite) ListPredictions(runID string) ([]PredictionRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, strategy, ticker, date, predicted, buy_price, outcome_date, sell_price, actual
		FROM predictions
		WHERE run_id = ?
		ORDER BY rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PredictionRecord
	for rows.Next() {
		var (
			rec     PredictionRecord
			outcome sql.NullTime
		)
		if err := rows.Scan(
			&rec.RunID,
			&rec.Strategy,
			&rec.Ticker,
			&rec.Date,
			&rec.Predicted,
			&rec.BuyPrice,
			&outcome,
			&rec.SellPrice,
			&rec.Actual,
		); err != nil {
			return nil, err
		}
		rec.OutcomeDate = outcome.Time
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListTransactions returns the transactions of a run in the order they
// were recorded.
func (j *SQLite) ListTransactions(runID string) ([]TransactionRecord, error) {
	rows, err := j.db.Query(`
		SELECT id, run_id, strategy, date, ticker, action, shares, price, commission, total_amount, realized_pl
		FROM transactions
		WHERE run_id = ?
		ORDER BY rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TransactionRecord
	for rows.Next() {
		var (
			rec    TransactionRecord
			action string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Strategy,
			&rec.Date,
			&rec.Ticker,
			&action,
			&rec.Shares,
			&rec.Price,
			&rec.Commission,
			&rec.TotalAmount,
			&rec.RealizedPL,
		); err != nil {
			return nil, err
		}
		rec.Action = portfolio.Action(action)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDaily returns the equity curve of a run ordered by date, with each
// day's signals and open positions.
func (j *SQLite) ListDaily(runID string) ([]DailyRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, strategy, date, cash, total_value, return_pct, open_positions, signals
		FROM daily
		WHERE run_id = ?
		ORDER BY date ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyRecord
	for rows.Next() {
		var (
			rec     DailyRecord
			signals string
		)
		if err := rows.Scan(
			&rec.RunID,
			&rec.Strategy,
			&rec.Date,
			&rec.Cash,
			&rec.TotalValue,
			&rec.ReturnPct,
			&rec.OpenPositions,
			&signals,
		); err != nil {
			return nil, err
		}
		if rec.Signals, err = ParseSignals(signals); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	positions, err := j.listPositions(runID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Positions = positions[out[i].Date.Unix()]
	}
	return out, nil
}

// listPositions returns the daily positions of a run keyed by the Unix
// time of their date.
func (j *SQLite) listPositions(runID string) (map[int64][]portfolio.PositionSummary, error) {
	rows, err := j.db.Query(`
		SELECT date, ticker, shares, avg_price, current_price, market_value, unrealized_pl, unrealized_pl_pct
		FROM daily_positions
		WHERE run_id = ?
		ORDER BY date ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]portfolio.PositionSummary)
	for rows.Next() {
		var (
			date time.Time
			p    portfolio.PositionSummary
		)
		if err := rows.Scan(
			&date,
			&p.Ticker,
			&p.Shares,
			&p.AvgPrice,
			&p.CurrentPrice,
			&p.MarketValue,
			&p.UnrealizedPL,
			&p.UnrealizedPLPct,
		); err != nil {
			return nil, err
		}
		p.TotalCost = p.AvgPrice * float64(p.Shares)
		out[date.Unix()] = append(out[date.Unix()], p)
	}
	return out, rows.Err()
}
