package portfolio

import (
	"fmt"
	"time"
)

// Action is the side of a ledger transaction.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// Position is the holding for one ticker. A ticker with no shares has no
// position entry in the ledger; Ledger.Position returns the zero value for it.
type Position struct {
	Ticker    string  `json:"ticker"`
	Shares    int     `json:"shares"`
	AvgPrice  float64 `json:"avg_price"`
	TotalCost float64 `json:"total_cost"`
}

// IsOpen reports whether the position holds any shares.
func (p Position) IsOpen() bool { return p.Shares > 0 }

// UnrealizedReturn is (price - avg) / avg, or 0 for an empty position.
func (p Position) UnrealizedReturn(price float64) float64 {
	if p.AvgPrice == 0 {
		return 0
	}
	return (price - p.AvgPrice) / p.AvgPrice
}

// Transaction is an append-only ledger entry.
//
// TotalAmount is the cash that left the account for a BUY (cost plus
// commission) and the cash that came in for a SELL (proceeds minus
// commission). RealizedPL is only set on sells and is measured against the
// pre-sell average cost, commission on the sell leg included.
type Transaction struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Ticker      string    `json:"ticker"`
	Action      Action    `json:"action"`
	Shares      int       `json:"shares"`
	Price       float64   `json:"price"`
	Commission  float64   `json:"commission"`
	TotalAmount float64   `json:"total_amount"`
	RealizedPL  float64   `json:"realized_pl"`
}

func (t Transaction) String() string {
	return fmt.Sprintf("%s %s %d %s @ %.2f", t.Date.Format("2006-01-02"), t.Action, t.Shares, t.Ticker, t.Price)
}

// Valuation is one point of the equity curve.
type Valuation struct {
	Date       time.Time `json:"date"`
	TotalValue float64   `json:"total_value"`
	ReturnPct  float64   `json:"return_pct"`
}

// PositionSummary is a marked-to-market view of a single position.
type PositionSummary struct {
	Ticker          string  `json:"ticker"`
	Shares          int     `json:"shares"`
	AvgPrice        float64 `json:"avg_price"`
	CurrentPrice    float64 `json:"current_price"`
	MarketValue     float64 `json:"market_value"`
	TotalCost       float64 `json:"total_cost"`
	UnrealizedPL    float64 `json:"unrealized_pl"`
	UnrealizedPLPct float64 `json:"unrealized_pl_pct"`
}

// Summary is the portfolio marked at a set of prices.
type Summary struct {
	Cash        float64           `json:"cash"`
	TotalValue  float64           `json:"total_value"`
	TotalReturn float64           `json:"total_return"`
	ReturnPct   float64           `json:"return_pct"`
	Positions   []PositionSummary `json:"positions"`
}

// ReturnPct is the percentage change from initial to final, 0 when initial
// is 0.
func ReturnPct(initial, final float64) float64 {
	if initial == 0 {
		return 0
	}
	return (final - initial) / initial * 100
}
