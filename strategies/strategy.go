package strategies

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rustyeddy/signalsim/portfolio"
)

// Strategy decides when to open and close positions and how large they are.
// Implementations must be pure: the same inputs always give the same answer.
//
// The engine only asks ShouldBuy for tickers with no open position.
type Strategy interface {
	Name() string
	Description() string
	ShouldBuy(ticker string, signal int, price float64, snap portfolio.Summary) bool
	PositionSize(ticker string, cash float64, tickers int, price float64) int
	ShouldSell(ticker string, pos portfolio.Position, price float64, bought, now time.Time, horizon int) bool
}

// Threshold is a Strategy whose variants differ only in numbers: the share of
// cash committed, how long a position is held relative to the horizon, and
// optional stop-loss / take-profit levels on the unrealized return.
type Threshold struct {
	Key   string
	Title string
	About string

	// Fraction of available cash split evenly between tickers.
	Budget float64
	// Sell once days held >= HoldFactor * horizon.
	HoldFactor float64
	// Sell when unrealized return < StopLoss. Zero disables.
	StopLoss float64
	// Sell when unrealized return > TakeProfit. Zero disables.
	TakeProfit float64
}

func (s *Threshold) Name() string        { return s.Title }
func (s *Threshold) Description() string { return s.About }

// ShouldBuy buys on a positive signal.
func (s *Threshold) ShouldBuy(ticker string, signal int, price float64, snap portfolio.Summary) bool {
	return signal == 1
}

// PositionSize is floor(Budget * cash / tickers / price), never negative.
func (s *Threshold) PositionSize(ticker string, cash float64, tickers int, price float64) int {
	if tickers <= 0 || price <= 0 || cash <= 0 || math.IsNaN(price) {
		return 0
	}
	budget := s.Budget * cash / float64(tickers)
	shares := int(math.Floor(budget / price))
	if shares < 0 {
		return 0
	}
	return shares
}

// ShouldSell applies the holding period and then the return thresholds.
func (s *Threshold) ShouldSell(ticker string, pos portfolio.Position, price float64, bought, now time.Time, horizon int) bool {
	if float64(DaysHeld(bought, now)) >= s.HoldFactor*float64(horizon) {
		return true
	}
	ret := pos.UnrealizedReturn(price)
	if s.StopLoss != 0 && ret < s.StopLoss {
		return true
	}
	if s.TakeProfit != 0 && ret > s.TakeProfit {
		return true
	}
	return false
}

// DaysHeld counts whole calendar days between two dates.
func DaysHeld(bought, now time.Time) int {
	return int(now.Sub(bought).Hours() / 24)
}

// Basic buys on signal and sells after the horizon.
func Basic() *Threshold {
	return &Threshold{
		Key:        "basic",
		Title:      "Basic Strategy",
		About:      "Buy on signal=1, sell after the prediction horizon; equal split of all cash",
		Budget:     1.0,
		HoldFactor: 1.0,
	}
}

// Aggressive commits 80% of cash and cuts losers below -5%.
func Aggressive() *Threshold {
	return &Threshold{
		Key:        "aggressive",
		Title:      "Aggressive Strategy",
		About:      "80% of cash, sell after the horizon or on a loss beyond 5%",
		Budget:     0.8,
		HoldFactor: 1.0,
		StopLoss:   -0.05,
	}
}

// Conservative commits half the cash, holds 1.5x the horizon, takes profit
// above 10% and stops out below -3%.
func Conservative() *Threshold {
	return &Threshold{
		Key:        "conservative",
		Title:      "Conservative Strategy",
		About:      "50% of cash, hold 1.5x the horizon, take profit above 10%, stop loss beyond 3%",
		Budget:     0.5,
		HoldFactor: 1.5,
		StopLoss:   -0.03,
		TakeProfit: 0.10,
	}
}

var registry = map[string]func() *Threshold{
	"basic":        Basic,
	"aggressive":   Aggressive,
	"conservative": Conservative,
}

// Names lists the registered strategy keys in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// All returns one instance of every variant in comparison order.
func All() []Strategy {
	return []Strategy{Basic(), Aggressive(), Conservative()}
}

// ByName looks up a variant. "Basic Strategy" and "basic" both work.
func ByName(name string) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimSuffix(key, " strategy")
	if ctor, ok := registry[key]; ok {
		return ctor(), nil
	}
	return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
}
