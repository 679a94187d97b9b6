package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/signalsim/journal"
	"github.com/rustyeddy/signalsim/market"
	"github.com/rustyeddy/signalsim/sim"
)

var manualCmd = &cobra.Command{
	Use:   "manual",
	Short: "Step through the data and trade by hand",
	Long: `Manual opens a session on the first trading day and reads commands
from stdin:

  quotes           show today's signals and prices
  buy TICKER N     buy N shares at today's open
  sell TICKER N    sell N shares at today's close
  next             move to the next trading day
  status           show cash, value and positions
  quit             end the session

Buying is not allowed after a sell on the same day.

Example:
  signalsim manual -f signalsim.yaml`,
	RunE: runManual,
}

func init() {
	rootCmd.AddCommand(manualCmd)
}

func runManual(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	feed, err := loadFeed(out, cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	j, err := cfg.OpenJournal(ctx)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	s, err := sim.NewSession(sim.SessionOptions{
		Provider:       feed,
		InitialCapital: cfg.Account.InitialCapital,
		Commission:     cfg.Account.Commission,
		Journal:        j,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	return manualLoop(s, cmd.InOrStdin(), out)
}

// manualLoop runs session commands until quit, EOF or the last day.
func manualLoop(s *sim.Session, in io.Reader, out io.Writer) error {
	defer func() {
		_ = s.Close()
		fmt.Fprintln(out, "\nSession closed.")
		printSummary(out, s.Summary())
	}()

	sc := bufio.NewScanner(in)
	for {
		date, ok := s.Date()
		if !ok {
			fmt.Fprintln(out, "No more trading days.")
			return nil
		}
		fmt.Fprintf(out, "%s> ", date.Format(time.DateOnly))
		if !sc.Scan() {
			return sc.Err()
		}

		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "quit", "exit", "q":
			return nil

		case "quotes":
			snap, err := s.Snapshot()
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			printQuotes(out, snap.Quotes)

		case "buy", "sell":
			if len(fields) != 3 {
				fmt.Fprintf(out, "usage: %s TICKER SHARES\n", fields[0])
				continue
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil {
				fmt.Fprintf(out, "bad share count %q\n", fields[2])
				continue
			}
			trade := s.Buy
			if strings.EqualFold(fields[0], "sell") {
				trade = s.Sell
			}
			tx, err := trade(strings.ToUpper(fields[1]), n)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "%s (commission %s)\n", tx, journal.Money(tx.Commission))

		case "next":
			more, err := s.NextDay()
			if err != nil {
				if errors.Is(err, sim.ErrFinished) {
					return nil
				}
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			if !more {
				fmt.Fprintln(out, "Reached the last trading day.")
				return nil
			}

		case "status":
			p := s.Progress()
			fmt.Fprintf(out, "Day %d of %d\n", p.CurrentDay+1, p.TotalDays)
			printSummary(out, s.Summary())

		default:
			fmt.Fprintf(out, "unknown command %q\n", fields[0])
		}
	}
}

func printQuotes(w io.Writer, quotes map[string]market.Quote) {
	tickers := make([]string, 0, len(quotes))
	for t := range quotes {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	for _, t := range tickers {
		q := quotes[t]
		signal := "-"
		if q.HasSignal {
			signal = strconv.Itoa(q.Signal)
		}
		fmt.Fprintf(w, "  %-6s signal %s  open %-10s close %s\n", t, signal, journal.Money(q.Open), journal.Money(q.Close))
	}
}
