package predict

import (
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/signalsim/indicators"
	"github.com/rustyeddy/signalsim/market"
)

type CrossConfig struct {
	Fast int
	Slow int

	// Optional noise filter: require (fast-slow)/slow >= MinSpread to
	// signal. 0 disables.
	MinSpread float64

	// Optional trend filter: only signal while ADX(ADXPeriod) >= ADXMin.
	// ADXPeriod 0 disables.
	ADXPeriod int
	ADXMin    float64
}

// Cross signals 1 while the fast moving average sits above the slow one.
type Cross struct {
	name      string
	avg       indicators.Average
	fast      int
	slow      int
	minSpread float64
	adxPeriod int
	adxMin    float64
}

func NewEMACross(cfg CrossConfig) (*Cross, error) {
	return newCross("EMA", indicators.EMA, cfg)
}

func NewSMACross(cfg CrossConfig) (*Cross, error) {
	return newCross("SMA", indicators.SMA, cfg)
}

func newCross(kind string, avg indicators.Average, cfg CrossConfig) (*Cross, error) {
	if cfg.Fast <= 0 || cfg.Slow <= 0 {
		return nil, errors.New("cross periods must be > 0")
	}
	if cfg.Fast >= cfg.Slow {
		return nil, fmt.Errorf("cross requires fast < slow (got %d, %d)", cfg.Fast, cfg.Slow)
	}
	if cfg.MinSpread < 0 {
		return nil, errors.New("cross min spread must be >= 0")
	}
	if cfg.ADXPeriod < 0 {
		return nil, errors.New("cross adx period must be >= 0")
	}
	if cfg.ADXMin < 0 || cfg.ADXMin > 100 {
		return nil, fmt.Errorf("cross adx min must be in [0, 100] (got %v)", cfg.ADXMin)
	}

	name := fmt.Sprintf("%s_CROSS(%d,%d)", kind, cfg.Fast, cfg.Slow)
	if cfg.ADXPeriod > 0 {
		name = fmt.Sprintf("%s_CROSS_ADX(%d,%d,%d>=%g)", kind, cfg.Fast, cfg.Slow, cfg.ADXPeriod, cfg.ADXMin)
	}
	return &Cross{
		name:      name,
		avg:       avg,
		fast:      cfg.Fast,
		slow:      cfg.Slow,
		minSpread: cfg.MinSpread,
		adxPeriod: cfg.ADXPeriod,
		adxMin:    cfg.ADXMin,
	}, nil
}

func (x *Cross) Name() string { return x.name }

// Warmup is one slow period before the first predicted day, so the slow
// average is defined on day one. The ADX filter needs twice its period.
func (x *Cross) Warmup() int {
	return max(x.slow, 2*x.adxPeriod)
}

func (x *Cross) Predict(history []market.Bar) (int, error) {
	closes := make([]float64, 0, len(history))
	var adx *indicators.ADX
	if x.adxPeriod > 0 {
		adx = indicators.NewADX(x.adxPeriod)
	}
	for _, b := range history {
		if !market.ValidPrice(b.Close) {
			continue
		}
		closes = append(closes, b.Close)
		if adx != nil && market.ValidPrice(b.High) && market.ValidPrice(b.Low) {
			adx.Update(b.High, b.Low, b.Close)
		}
	}

	fast, err := x.avg(closes, x.fast)
	if err != nil {
		return 0, fmt.Errorf("%s fast: %w", x.name, err)
	}
	slow, err := x.avg(closes, x.slow)
	if err != nil {
		return 0, fmt.Errorf("%s slow: %w", x.name, err)
	}
	if slow == 0 || math.IsNaN(fast) || math.IsNaN(slow) {
		return 0, fmt.Errorf("%s: undefined averages", x.name)
	}

	if fast <= slow || (fast-slow)/slow < x.minSpread {
		return 0, nil
	}
	if adx != nil {
		if !adx.Ready() {
			return 0, fmt.Errorf("%s: %s not ready", x.name, adx.Name())
		}
		if adx.Value() < x.adxMin {
			return 0, nil
		}
	}
	return 1, nil
}
