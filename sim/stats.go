package sim

import (
	"sort"
	"time"

	"github.com/rustyeddy/signalsim/journal"
	"github.com/rustyeddy/signalsim/portfolio"
)

// RunStatistics is updated only when a trade executes and when the run
// finishes, so it can always be rebuilt from the transaction log.
//
// Trade P&L is (sell - buy) * shares without commission. A trade with
// zero P&L counts as losing. A prediction is correct when a signal of 1
// was followed by a price rise, or a signal of 0 by no rise.
type RunStatistics struct {
	TotalTransactions  int     `json:"total_transactions"`
	BuyTransactions    int     `json:"buy_transactions"`
	SellTransactions   int     `json:"sell_transactions"`
	CorrectPredictions int     `json:"correct_predictions"`
	TotalPredictions   int     `json:"total_predictions"`
	ProfitableTrades   int     `json:"profitable_trades"`
	LosingTrades       int     `json:"losing_trades"`
	TotalProfitLoss    float64 `json:"total_profit_loss"`
	BestTrade          float64 `json:"best_trade"`
	WorstTrade         float64 `json:"worst_trade"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	FinalPortfolioValue float64 `json:"final_portfolio_value"`
	TotalReturn         float64 `json:"total_return"`
	ReturnPct           float64 `json:"return_pct"`
	// Accuracy is CorrectPredictions / TotalPredictions over completed
	// round trips, in [0, 1].
	Accuracy       float64 `json:"accuracy"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`

	// TickerAccuracy splits the prediction counts by ticker, sorted by
	// ticker. It is replaced, never modified in place, so copies of the
	// statistics stay valid while a run goes on.
	TickerAccuracy []journal.TickerAccuracy `json:"ticker_accuracy"`
}

func (s *RunStatistics) recordBuy() {
	s.TotalTransactions++
	s.BuyTransactions++
}

// recordSell counts a closed round trip, scores its prediction and
// returns its P&L.
func (s *RunStatistics) recordSell(t OpenTrade, sellPrice float64, shares int) float64 {
	pl := s.recordTrade(t.BuyPrice, sellPrice, shares)
	s.scorePrediction(t.Ticker, t.Prediction, outcome(t.BuyPrice, sellPrice))
	return pl
}

// recordTrade counts a sell and its P&L without scoring a prediction.
func (s *RunStatistics) recordTrade(buyPrice, sellPrice float64, shares int) float64 {
	s.TotalTransactions++
	s.SellTransactions++

	pl := (sellPrice - buyPrice) * float64(shares)
	s.TotalProfitLoss += pl
	if pl > 0 {
		s.ProfitableTrades++
		if pl > s.BestTrade {
			s.BestTrade = pl
		}
	} else {
		s.LosingTrades++
		if pl < s.WorstTrade {
			s.WorstTrade = pl
		}
	}

	return pl
}

func (s *RunStatistics) scorePrediction(ticker string, predicted, actual int) {
	correct := predicted == actual
	s.TotalPredictions++
	if correct {
		s.CorrectPredictions++
	}
	s.Accuracy = s.accuracy()

	next := make([]journal.TickerAccuracy, 0, len(s.TickerAccuracy)+1)
	found := false
	for _, a := range s.TickerAccuracy {
		if a.Ticker == ticker {
			found = true
			a.Total++
			if correct {
				a.Correct++
			}
		}
		next = append(next, a)
	}
	if !found {
		a := journal.TickerAccuracy{Ticker: ticker, Total: 1}
		if correct {
			a.Correct = 1
		}
		next = append(next, a)
		sort.Slice(next, func(i, j int) bool { return next[i].Ticker < next[j].Ticker })
	}
	s.TickerAccuracy = next
}

// outcome is 1 when the price rose between buy and sell.
func outcome(buyPrice, sellPrice float64) int {
	if sellPrice > buyPrice {
		return 1
	}
	return 0
}

func (s *RunStatistics) accuracy() float64 {
	if s.TotalPredictions == 0 {
		return 0
	}
	return float64(s.CorrectPredictions) / float64(s.TotalPredictions)
}

func (s *RunStatistics) finalize(sum portfolio.Summary, curve []portfolio.Valuation, end time.Time) {
	s.EndTime = end
	s.FinalPortfolioValue = sum.TotalValue
	s.TotalReturn = sum.TotalReturn
	s.ReturnPct = sum.ReturnPct
	s.Accuracy = s.accuracy()
	s.MaxDrawdownPct = MaxDrawdownPct(curve)
}

// WinRate is ProfitableTrades over closed trades, in [0, 1].
func (s RunStatistics) WinRate() float64 {
	closed := s.ProfitableTrades + s.LosingTrades
	if closed == 0 {
		return 0
	}
	return float64(s.ProfitableTrades) / float64(closed)
}

// MaxDrawdownPct is the largest peak-to-trough fall of the equity curve,
// as a positive percentage of the peak.
func MaxDrawdownPct(curve []portfolio.Valuation) float64 {
	peak, worst := 0.0, 0.0
	for _, v := range curve {
		if v.TotalValue > peak {
			peak = v.TotalValue
			continue
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v.TotalValue) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}
