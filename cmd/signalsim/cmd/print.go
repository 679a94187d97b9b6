package cmd

import (
	"fmt"
	"io"

	"github.com/rustyeddy/signalsim/journal"
	"github.com/rustyeddy/signalsim/portfolio"
	"github.com/rustyeddy/signalsim/sim"
)

func printStats(w io.Writer, s journal.RunSummary, st sim.RunStatistics) {
	fmt.Fprintln(w, "==========================================")
	fmt.Fprintf(w, " %s (%s)\n", s.Strategy, s.Status)
	fmt.Fprintln(w, "==========================================")
	fmt.Fprintf(w, "Run ID:           %s\n", s.RunID)
	fmt.Fprintf(w, "Initial value:    %s\n", journal.Money(s.InitialCapital))
	fmt.Fprintf(w, "Final value:      %s\n", journal.Money(st.FinalPortfolioValue))
	fmt.Fprintf(w, "Total return:     %s (%.2f%%)\n", journal.Money(st.TotalReturn), st.ReturnPct)
	fmt.Fprintf(w, "Max drawdown:     %.2f%%\n", st.MaxDrawdownPct)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Transactions:     %d (%d buys, %d sells)\n", st.TotalTransactions, st.BuyTransactions, st.SellTransactions)
	fmt.Fprintf(w, "Profitable:       %d\n", st.ProfitableTrades)
	fmt.Fprintf(w, "Losing:           %d\n", st.LosingTrades)
	fmt.Fprintf(w, "Win rate:         %.2f%%\n", st.WinRate()*100)
	fmt.Fprintf(w, "Accuracy:         %.2f%% (%d/%d)\n", st.Accuracy*100, st.CorrectPredictions, st.TotalPredictions)
	fmt.Fprintf(w, "Trade P&L:        %s\n", journal.Money(st.TotalProfitLoss))
	fmt.Fprintf(w, "Best trade:       %s\n", journal.Money(st.BestTrade))
	fmt.Fprintf(w, "Worst trade:      %s\n", journal.Money(st.WorstTrade))
	if len(st.TickerAccuracy) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Model accuracy by ticker:")
		for _, a := range st.TickerAccuracy {
			fmt.Fprintf(w, "  %-6s %6.2f%% (%d/%d)\n", a.Ticker, a.Accuracy()*100, a.Correct, a.Total)
		}
	}
	if s.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", s.Error)
	}
}

func printSummary(w io.Writer, s portfolio.Summary) {
	fmt.Fprintf(w, "Cash:   %s\n", journal.Money(s.Cash))
	fmt.Fprintf(w, "Value:  %s (%+.2f%%)\n", journal.Money(s.TotalValue), s.ReturnPct)
	for _, p := range s.Positions {
		fmt.Fprintf(w, "  %-6s %6d @ %-10s now %-10s P&L %s (%+.2f%%)\n",
			p.Ticker, p.Shares,
			journal.Money(p.AvgPrice), journal.Money(p.CurrentPrice),
			journal.Money(p.UnrealizedPL), p.UnrealizedPLPct)
	}
}

func tradeRecords(s journal.RunSummary, txs []portfolio.Transaction) []journal.TransactionRecord {
	out := make([]journal.TransactionRecord, len(txs))
	for i, tx := range txs {
		out[i] = journal.TransactionRecord{RunID: s.RunID, Strategy: s.Strategy, Transaction: tx}
	}
	return out
}
