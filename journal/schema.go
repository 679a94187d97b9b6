package journal

// Schema is the SQLite layout. Postgres uses PostgresSchema, the same
// tables with NUMERIC money columns.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	strategy TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL,
	tickers TEXT NOT NULL,
	start_date DATETIME,
	end_date DATETIME,
	horizon INTEGER NOT NULL,
	initial_capital REAL NOT NULL,
	commission REAL NOT NULL,
	final_value REAL NOT NULL,
	total_return REAL NOT NULL,
	return_pct REAL NOT NULL,
	transactions INTEGER NOT NULL,
	buys INTEGER NOT NULL,
	sells INTEGER NOT NULL,
	profitable_trades INTEGER NOT NULL,
	losing_trades INTEGER NOT NULL,
	accuracy REAL NOT NULL,
	total_pl REAL NOT NULL,
	best_trade REAL NOT NULL,
	worst_trade REAL NOT NULL,
	max_drawdown_pct REAL NOT NULL,
	correct_predictions INTEGER NOT NULL,
	total_predictions INTEGER NOT NULL,
	started_at DATETIME,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	strategy TEXT NOT NULL,
	date DATETIME NOT NULL,
	ticker TEXT NOT NULL,
	action TEXT NOT NULL,
	shares INTEGER NOT NULL,
	price REAL NOT NULL,
	commission REAL NOT NULL,
	total_amount REAL NOT NULL,
	realized_pl REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS daily (
	run_id TEXT NOT NULL,
	strategy TEXT NOT NULL,
	date DATETIME NOT NULL,
	cash REAL NOT NULL,
	total_value REAL NOT NULL,
	return_pct REAL NOT NULL,
	open_positions INTEGER NOT NULL,
	signals TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_positions (
	run_id TEXT NOT NULL,
	strategy TEXT NOT NULL,
	date DATETIME NOT NULL,
	ticker TEXT NOT NULL,
	shares INTEGER NOT NULL,
	avg_price REAL NOT NULL,
	current_price REAL NOT NULL,
	market_value REAL NOT NULL,
	unrealized_pl REAL NOT NULL,
	unrealized_pl_pct REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS predictions (
	run_id TEXT NOT NULL,
	strategy TEXT NOT NULL,
	ticker TEXT NOT NULL,
	date DATETIME NOT NULL,
	predicted INTEGER NOT NULL,
	buy_price REAL NOT NULL,
	outcome_date DATETIME,
	sell_price REAL NOT NULL,
	actual INTEGER NOT NULL,
	correct BOOLEAN NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_run ON transactions(run_id, date);
CREATE INDEX IF NOT EXISTS idx_daily_run ON daily(run_id, date);
CREATE INDEX IF NOT EXISTS idx_daily_positions_run ON daily_positions(run_id, date);
CREATE INDEX IF NOT EXISTS idx_predictions_run ON predictions(run_id, ticker);
`

const PostgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	strategy TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL,
	tickers TEXT NOT NULL,
	start_date DATE,
	end_date DATE,
	horizon INTEGER NOT NULL,
	initial_capital NUMERIC(18,4) NOT NULL,
	commission NUMERIC(10,6) NOT NULL,
	final_value NUMERIC(18,4) NOT NULL,
	total_return NUMERIC(18,4) NOT NULL,
	return_pct DOUBLE PRECISION NOT NULL,
	transactions INTEGER NOT NULL,
	buys INTEGER NOT NULL,
	sells INTEGER NOT NULL,
	profitable_trades INTEGER NOT NULL,
	losing_trades INTEGER NOT NULL,
	accuracy DOUBLE PRECISION NOT NULL,
	total_pl NUMERIC(18,4) NOT NULL,
	best_trade NUMERIC(18,4) NOT NULL,
	worst_trade NUMERIC(18,4) NOT NULL,
	max_drawdown_pct DOUBLE PRECISION NOT NULL,
	correct_predictions INTEGER NOT NULL,
	total_predictions INTEGER NOT NULL,
	started_at TIMESTAMPTZ,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	strategy TEXT NOT NULL,
	date DATE NOT NULL,
	ticker TEXT NOT NULL,
	action TEXT NOT NULL,
	shares INTEGER NOT NULL,
	price NUMERIC(18,4) NOT NULL,
	commission NUMERIC(18,4) NOT NULL,
	total_amount NUMERIC(18,4) NOT NULL,
	realized_pl NUMERIC(18,4) NOT NULL
);

CREATE TABLE IF NOT EXISTS daily (
	run_id TEXT NOT NULL,
	strategy TEXT NOT NULL,
	date DATE NOT NULL,
	cash NUMERIC(18,4) NOT NULL,
	total_value NUMERIC(18,4) NOT NULL,
	return_pct DOUBLE PRECISION NOT NULL,
	open_positions INTEGER NOT NULL,
	signals TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_positions (
	run_id TEXT NOT NULL,
	strategy TEXT NOT NULL,
	date DATE NOT NULL,
	ticker TEXT NOT NULL,
	shares INTEGER NOT NULL,
	avg_price NUMERIC(18,4) NOT NULL,
	current_price NUMERIC(18,4) NOT NULL,
	market_value NUMERIC(18,4) NOT NULL,
	unrealized_pl NUMERIC(18,4) NOT NULL,
	unrealized_pl_pct DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS predictions (
	run_id TEXT NOT NULL,
	strategy TEXT NOT NULL,
	ticker TEXT NOT NULL,
	date DATE NOT NULL,
	predicted INTEGER NOT NULL,
	buy_price NUMERIC(18,4) NOT NULL,
	outcome_date DATE,
	sell_price NUMERIC(18,4) NOT NULL,
	actual INTEGER NOT NULL,
	correct BOOLEAN NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_run ON transactions(run_id, date);
CREATE INDEX IF NOT EXISTS idx_daily_run ON daily(run_id, date);
CREATE INDEX IF NOT EXISTS idx_daily_positions_run ON daily_positions(run_id, date);
CREATE INDEX IF NOT EXISTS idx_predictions_run ON predictions(run_id, ticker);
`
