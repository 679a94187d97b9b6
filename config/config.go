package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/signalsim/market"
	"github.com/rustyeddy/signalsim/predict"
	"github.com/rustyeddy/signalsim/strategies"
)

// EnvPostgresDSN overrides journal.dsn when set.
const EnvPostgresDSN = "SIGNALSIM_POSTGRES_DSN"

// Journal types.
const (
	JournalNone     = "none"
	JournalCSV      = "csv"
	JournalSQLite   = "sqlite"
	JournalPostgres = "postgres"
)

// Config represents the complete backtest configuration
type Config struct {
	Account    AccountConfig    `json:"account" yaml:"account"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Data       DataConfig       `json:"data" yaml:"data"`
	Predictor  PredictorConfig  `json:"predictor" yaml:"predictor"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Server     ServerConfig     `json:"server" yaml:"server"`
}

// AccountConfig contains the starting capital and the per-trade commission
// rate.
type AccountConfig struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	Commission     float64 `json:"commission" yaml:"commission"`
}

// SimulationConfig contains the test window and the strategy to run
type SimulationConfig struct {
	Tickers  []string `json:"tickers" yaml:"tickers"`
	Start    string   `json:"start" yaml:"start"` // YYYY-MM-DD
	End      string   `json:"end" yaml:"end"`
	Horizon  int      `json:"horizon" yaml:"horizon"`
	Strategy string   `json:"strategy" yaml:"strategy"`
}

// StartDate parses Start. An empty value is the zero time.
func (s SimulationConfig) StartDate() (time.Time, error) { return parseDate(s.Start) }

// EndDate parses End. An empty value is the zero time.
func (s SimulationConfig) EndDate() (time.Time, error) { return parseDate(s.End) }

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

// DataConfig says where bar files live
type DataConfig struct {
	Format string `json:"format" yaml:"format"` // "csv" or "parquet"
	Dir    string `json:"dir" yaml:"dir"`
}

// PredictorConfig selects the signal source
type PredictorConfig struct {
	Type      string  `json:"type" yaml:"type"` // "column", "ema-cross" or "sma-cross"
	Column    string  `json:"column,omitempty" yaml:"column,omitempty"`
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Fast      int     `json:"fast,omitempty" yaml:"fast,omitempty"`
	Slow      int     `json:"slow,omitempty" yaml:"slow,omitempty"`
	MinSpread float64 `json:"min_spread,omitempty" yaml:"min_spread,omitempty"`
	ADXPeriod int     `json:"adx_period,omitempty" yaml:"adx_period,omitempty"`
	ADXMin    float64 `json:"adx_min,omitempty" yaml:"adx_min,omitempty"`
}

func (p PredictorConfig) predictConfig() predict.Config {
	return predict.Config{
		Type:      p.Type,
		Column:    p.Column,
		Threshold: p.Threshold,
		Fast:      p.Fast,
		Slow:      p.Slow,
		MinSpread: p.MinSpread,
		ADXPeriod: p.ADXPeriod,
		ADXMin:    p.ADXMin,
	}
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "none", "csv", "sqlite" or "postgres"
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// LoggingConfig is passed to logging.New
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "text" or "json"
}

// ServerConfig is the listen address for serve
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// LoadFromFile loads configuration from a file (YAML first, JSON fallback)
// and applies environment overrides.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv copies environment overrides into c.
func (c *Config) ApplyEnv() {
	if dsn := os.Getenv(EnvPostgresDSN); dsn != "" {
		c.Journal.DSN = dsn
	}
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.InitialCapital <= 0 {
		return fmt.Errorf("account.initial_capital must be positive")
	}
	if c.Account.Commission < 0 || c.Account.Commission >= 1 {
		return fmt.Errorf("account.commission must be between 0 and 1")
	}

	if c.Simulation.Horizon < 1 {
		return fmt.Errorf("simulation.horizon must be >= 1")
	}
	start, err := c.Simulation.StartDate()
	if err != nil {
		return fmt.Errorf("simulation.start must be YYYY-MM-DD: %w", err)
	}
	end, err := c.Simulation.EndDate()
	if err != nil {
		return fmt.Errorf("simulation.end must be YYYY-MM-DD: %w", err)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("simulation.end must not be before simulation.start")
	}
	if _, err := strategies.ByName(c.Simulation.Strategy); err != nil {
		return fmt.Errorf("simulation.strategy: %w", err)
	}

	switch c.Data.Format {
	case market.FormatCSV, market.FormatParquet:
	default:
		return fmt.Errorf("data.format must be 'csv' or 'parquet'")
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}

	if _, err := predict.New(c.Predictor.predictConfig()); err != nil {
		return fmt.Errorf("predictor: %w", err)
	}

	switch c.Journal.Type {
	case "", JournalNone:
	case JournalCSV:
		if c.Journal.Dir == "" {
			return fmt.Errorf("journal.dir required for CSV type")
		}
	case JournalSQLite:
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for SQLite type")
		}
	case JournalPostgres:
		if c.Journal.DSN == "" {
			return fmt.Errorf("journal.dsn (or %s) required for Postgres type", EnvPostgresDSN)
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv', 'sqlite' or 'postgres'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			InitialCapital: 10000,
			Commission:     0.002,
		},
		Simulation: SimulationConfig{
			Tickers:  []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA"},
			Start:    "2020-01-01",
			End:      "2023-12-31",
			Horizon:  1,
			Strategy: "basic",
		},
		Data: DataConfig{
			Format: market.FormatCSV,
			Dir:    "./data",
		},
		Predictor: PredictorConfig{
			Type:   predict.TypeColumn,
			Column: market.SignalColumn,
		},
		Journal: JournalConfig{
			Type: JournalCSV,
			Dir:  "./results",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}
