// Package predict holds the signal models a simulation can be driven by.
// Every predictor returns 1 when it expects the price to rise over the
// horizon and 0 otherwise.
package predict

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/signalsim/market"
)

// Predictor type names accepted by New.
const (
	TypeColumn   = "column"
	TypeEMACross = "ema-cross"
	TypeSMACross = "sma-cross"
)

// Config selects and parameterises a predictor.
type Config struct {
	Type string

	// Column predictor: name of the extra column, threshold above which
	// the signal is 1. Defaults: "signal", 0.5.
	Column    string
	Threshold float64

	// Cross predictors.
	Fast      int
	Slow      int
	MinSpread float64
	ADXPeriod int
	ADXMin    float64
}

func (cfg Config) cross() CrossConfig {
	return CrossConfig{
		Fast:      cfg.Fast,
		Slow:      cfg.Slow,
		MinSpread: cfg.MinSpread,
		ADXPeriod: cfg.ADXPeriod,
		ADXMin:    cfg.ADXMin,
	}
}

// New builds the predictor named by cfg.Type.
func New(cfg Config) (market.Predictor, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", TypeColumn:
		return NewColumn(cfg.Column, cfg.Threshold), nil
	case TypeEMACross:
		return NewEMACross(cfg.cross())
	case TypeSMACross:
		return NewSMACross(cfg.cross())
	default:
		return nil, fmt.Errorf("unknown predictor type %q", cfg.Type)
	}
}
