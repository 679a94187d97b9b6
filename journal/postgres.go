package journal

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// pgExecer is the subset of *pgxpool.Pool the journal uses.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres writes runs into a Postgres database. Money columns are NUMERIC
// and are sent as decimals rounded to four places.
type Postgres struct {
	db      pgExecer
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgres connects to dsn, verifies connectivity and creates the
// tables if needed.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	j := newPostgres(pool)
	j.pool = pool
	if err := j.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

func newPostgres(db pgExecer) *Postgres {
	return &Postgres{db: db, timeout: 5 * time.Second}
}

func (j *Postgres) migrate(ctx context.Context) error {
	if _, err := j.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (j *Postgres) exec(sql string, args ...any) error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	_, err := j.db.Exec(ctx, sql, args...)
	return err
}

func (j *Postgres) RecordTransaction(t TransactionRecord) error {
	return j.exec(`
		INSERT INTO transactions
		(id, run_id, strategy, date, ticker, action, shares, price, commission, total_amount, realized_pl)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.RunID, t.Strategy, t.Date, t.Ticker, string(t.Action), t.Shares,
		money(t.Price), money(t.Commission), money(t.TotalAmount), money(t.RealizedPL),
	)
}

func (j *Postgres) RecordDaily(d DailyRecord) error {
	err := j.exec(`
		INSERT INTO daily
		(run_id, strategy, date, cash, total_value, return_pct, open_positions, signals)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.RunID, d.Strategy, d.Date, money(d.Cash), money(d.TotalValue), d.ReturnPct, d.OpenPositions,
		FormatSignals(d.Signals),
	)
	if err != nil {
		return err
	}
	for _, p := range d.Positions {
		err := j.exec(`
			INSERT INTO daily_positions
			(run_id, strategy, date, ticker, shares, avg_price, current_price, market_value, unrealized_pl, unrealized_pl_pct)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			d.RunID, d.Strategy, d.Date, p.Ticker, p.Shares, money(p.AvgPrice), money(p.CurrentPrice),
			money(p.MarketValue), money(p.UnrealizedPL), p.UnrealizedPLPct,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (j *Postgres) RecordPrediction(p PredictionRecord) error {
	return j.exec(`
		INSERT INTO predictions
		(run_id, strategy, ticker, date, predicted, buy_price, outcome_date, sell_price, actual, correct)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.RunID, p.Strategy, p.Ticker, p.Date, p.Predicted, money(p.BuyPrice),
		timeOrNil(p.OutcomeDate), money(p.SellPrice), p.Actual, p.Correct(),
	)
}

func (j *Postgres) Finalize(s RunSummary) error {
	return j.exec(`
		INSERT INTO runs
		(run_id, strategy, status, error, tickers, start_date, end_date, horizon,
		 initial_capital, commission, final_value, total_return, return_pct,
		 transactions, buys, sells, profitable_trades, losing_trades, accuracy,
		 total_pl, best_trade, worst_trade, max_drawdown_pct, correct_predictions, total_predictions,
		 started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			final_value = EXCLUDED.final_value,
			total_return = EXCLUDED.total_return,
			return_pct = EXCLUDED.return_pct,
			transactions = EXCLUDED.transactions,
			buys = EXCLUDED.buys,
			sells = EXCLUDED.sells,
			profitable_trades = EXCLUDED.profitable_trades,
			losing_trades = EXCLUDED.losing_trades,
			accuracy = EXCLUDED.accuracy,
			total_pl = EXCLUDED.total_pl,
			best_trade = EXCLUDED.best_trade,
			worst_trade = EXCLUDED.worst_trade,
			max_drawdown_pct = EXCLUDED.max_drawdown_pct,
			correct_predictions = EXCLUDED.correct_predictions,
			total_predictions = EXCLUDED.total_predictions,
			finished_at = EXCLUDED.finished_at`,
		s.RunID, s.Strategy, s.Status, s.Error, strings.Join(s.Tickers, " "),
		timeOrNil(s.Start), timeOrNil(s.End), s.Horizon,
		money(s.InitialCapital), decimal.NewFromFloat(s.Commission), money(s.FinalValue), money(s.TotalReturn), s.ReturnPct,
		s.Transactions, s.Buys, s.Sells, s.ProfitableTrades, s.LosingTrades, s.Accuracy,
		money(s.TotalPL), money(s.BestTrade), money(s.WorstTrade), s.MaxDrawdownPct,
		s.CorrectPredictions, s.TotalPredictions,
		timeOrNil(s.StartedAt), timeOrNil(s.FinishedAt),
	)
}

// Close releases the pool when the journal owns one.
func (j *Postgres) Close() error {
	if j.pool != nil {
		j.pool.Close()
	}
	return nil
}

func money(x float64) decimal.Decimal {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(x).Round(4)
}

func timeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
