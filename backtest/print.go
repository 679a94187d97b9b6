package backtest

import (
	"fmt"
	"io"

	"github.com/rustyeddy/signalsim/journal"
)

// Print writes a plain-text comparison table.
func Print(w io.Writer, rs Results) {
	fmt.Fprintln(w, "==========================================================================")
	fmt.Fprintln(w, " Strategy Comparison")
	fmt.Fprintln(w, "==========================================================================")
	fmt.Fprintf(w, "%-24s %-10s %14s %9s %8s %7s %9s\n",
		"Strategy", "Status", "Final Value", "Return", "Max DD", "Trades", "Accuracy")
	fmt.Fprintln(w, "--------------------------------------------------------------------------")

	for _, r := range rs {
		if r.Failed {
			fmt.Fprintf(w, "%-24s %-10s %s\n", r.Strategy, r.State, r.Err)
			continue
		}
		fmt.Fprintf(w, "%-24s %-10s %14s %8.2f%% %7.2f%% %7d %8.2f%%\n",
			r.Strategy,
			r.State,
			journal.Money(r.Stats.FinalPortfolioValue),
			r.Stats.ReturnPct,
			r.Stats.MaxDrawdownPct,
			r.Stats.SellTransactions,
			r.Stats.Accuracy*100,
		)
	}

	if best, ok := rs.Best(); ok {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Best:          %s (%s)\n", best.Strategy, journal.Money(best.Stats.FinalPortfolioValue))
	}
}
