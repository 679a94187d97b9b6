package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rustyeddy/signalsim/internal/id"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrInvalidOrder       = errors.New("invalid order")
)

// Ledger owns cash, positions, the transaction log and the equity curve.
// It knows nothing about time or strategy; callers supply dates and prices.
//
// A Ledger is not safe for concurrent use. The engine that owns it
// serialises access.
type Ledger struct {
	initial    float64
	commission float64

	cash         float64
	positions    map[string]Position
	transactions []Transaction
	valuations   []Valuation
}

// NewLedger returns a ledger holding initialCapital in cash. commission is a
// fraction (0.002 = 0.2%) charged on both legs.
func NewLedger(initialCapital, commission float64) *Ledger {
	return &Ledger{
		initial:    initialCapital,
		commission: commission,
		cash:       initialCapital,
		positions:  make(map[string]Position),
	}
}

func (l *Ledger) InitialCapital() float64 { return l.initial }
func (l *Ledger) CommissionRate() float64 { return l.commission }
func (l *Ledger) Cash() float64           { return l.cash }

// Position returns the holding for ticker, or a zero position.
func (l *Ledger) Position(ticker string) Position {
	if p, ok := l.positions[ticker]; ok {
		return p
	}
	return Position{Ticker: ticker}
}

// Positions returns open positions sorted by ticker.
func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// CanBuy reports whether shares*price plus commission fits in cash.
func (l *Ledger) CanBuy(ticker string, shares int, price float64) bool {
	if !validOrder(shares, price) {
		return false
	}
	cost := float64(shares) * price
	return cost*(1+l.commission) <= l.cash
}

// Buy debits cash and adds to the position, re-averaging its cost. On error
// the ledger is unchanged.
func (l *Ledger) Buy(ticker string, shares int, price float64, date time.Time) (Transaction, error) {
	if !validOrder(shares, price) {
		return Transaction{}, fmt.Errorf("buy %d %s @ %v: %w", shares, ticker, price, ErrInvalidOrder)
	}
	if !l.CanBuy(ticker, shares, price) {
		return Transaction{}, fmt.Errorf("buy %d %s @ %.2f: %w", shares, ticker, price, ErrInsufficientFunds)
	}

	cost := float64(shares) * price
	commission := cost * l.commission
	total := cost + commission

	l.cash -= total

	pos := l.Position(ticker)
	pos.Shares += shares
	pos.TotalCost += cost
	pos.AvgPrice = pos.TotalCost / float64(pos.Shares)
	l.positions[ticker] = pos

	tx := Transaction{
		ID:          id.New(),
		Date:        date,
		Ticker:      ticker,
		Action:      Buy,
		Shares:      shares,
		Price:       price,
		Commission:  commission,
		TotalAmount: total,
	}
	l.transactions = append(l.transactions, tx)
	return tx, nil
}

// CanSell reports whether at least shares are held.
func (l *Ledger) CanSell(ticker string, shares int) bool {
	return shares > 0 && l.Position(ticker).Shares >= shares
}

// Sell credits proceeds net of commission and reduces the position pro rata.
// The average price of the remaining shares does not change. On error the
// ledger is unchanged.
func (l *Ledger) Sell(ticker string, shares int, price float64, date time.Time) (Transaction, error) {
	if !validOrder(shares, price) {
		return Transaction{}, fmt.Errorf("sell %d %s @ %v: %w", shares, ticker, price, ErrInvalidOrder)
	}
	if !l.CanSell(ticker, shares) {
		return Transaction{}, fmt.Errorf("sell %d %s: %w", shares, ticker, ErrInsufficientShares)
	}

	revenue := float64(shares) * price
	commission := revenue * l.commission
	net := revenue - commission

	pos := l.positions[ticker]
	costPerShare := pos.TotalCost / float64(pos.Shares)
	soldCost := costPerShare * float64(shares)

	l.cash += net

	remaining := pos.Shares - shares
	if remaining == 0 {
		delete(l.positions, ticker)
	} else {
		pos.Shares = remaining
		pos.TotalCost = costPerShare * float64(remaining)
		l.positions[ticker] = pos
	}

	tx := Transaction{
		ID:          id.New(),
		Date:        date,
		Ticker:      ticker,
		Action:      Sell,
		Shares:      shares,
		Price:       price,
		Commission:  commission,
		TotalAmount: net,
		RealizedPL:  net - soldCost,
	}
	l.transactions = append(l.transactions, tx)
	return tx, nil
}

// Value is cash plus every position marked at prices. A ticker missing from
// prices is marked at its average cost.
func (l *Ledger) Value(prices map[string]float64) float64 {
	v := l.cash
	for t, p := range l.positions {
		v += float64(p.Shares) * markPrice(prices, t, p)
	}
	return v
}

// Summary marks the portfolio at prices.
func (l *Ledger) Summary(prices map[string]float64) Summary {
	total := l.Value(prices)
	s := Summary{
		Cash:        l.cash,
		TotalValue:  total,
		TotalReturn: total - l.initial,
		ReturnPct:   ReturnPct(l.initial, total),
		Positions:   make([]PositionSummary, 0, len(l.positions)),
	}
	for _, p := range l.Positions() {
		px := markPrice(prices, p.Ticker, p)
		mv := float64(p.Shares) * px
		s.Positions = append(s.Positions, PositionSummary{
			Ticker:          p.Ticker,
			Shares:          p.Shares,
			AvgPrice:        p.AvgPrice,
			CurrentPrice:    px,
			MarketValue:     mv,
			TotalCost:       p.TotalCost,
			UnrealizedPL:    mv - p.TotalCost,
			UnrealizedPLPct: ReturnPct(p.TotalCost, mv),
		})
	}
	return s
}

// RecordDailyValue appends one point to the equity curve. It does not
// deduplicate: call it once per simulated day.
func (l *Ledger) RecordDailyValue(date time.Time, prices map[string]float64) Valuation {
	v := l.Value(prices)
	val := Valuation{
		Date:       date,
		TotalValue: v,
		ReturnPct:  ReturnPct(l.initial, v),
	}
	l.valuations = append(l.valuations, val)
	return val
}

// Transactions returns a copy of the transaction log in insertion order.
func (l *Ledger) Transactions() []Transaction {
	return append([]Transaction(nil), l.transactions...)
}

// Valuations returns a copy of the equity curve.
func (l *Ledger) Valuations() []Valuation {
	return append([]Valuation(nil), l.valuations...)
}

// Reset restores the ledger to its initial capital with no positions,
// transactions or valuations.
func (l *Ledger) Reset() {
	l.cash = l.initial
	l.positions = make(map[string]Position)
	l.transactions = nil
	l.valuations = nil
}

func markPrice(prices map[string]float64, ticker string, p Position) float64 {
	if px, ok := prices[ticker]; ok && !math.IsNaN(px) {
		return px
	}
	return p.AvgPrice
}

func validOrder(shares int, price float64) bool {
	return shares > 0 && price > 0 && !math.IsInf(price, 0) && !math.IsNaN(price)
}
