package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/quantfold/leapsback/internal/backtest"
)

// WriteComparison prints the year-by-year strategy comparison table, with
// entry/exit delta and IV to show the market regime each strategy traded in.
func WriteComparison(w io.Writer, r *Report) {
	fmt.Fprintf(w, "\nSTRATEGY COMPARISON: ANNUAL vs QUARTERLY ROLLING (%s)\n", r.Symbol)
	rule := strings.Repeat("-", 120)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-6s | %-9s | %9s | %8s | %8s | %8s | %8s | %7s | %9s | %9s\n",
		"Year", "Strategy", "Return", "Entry D", "Exit D", "Entry IV", "Exit IV", "Trades", "Win Rate", "Dev a/m")
	fmt.Fprintln(w, rule)

	for _, year := range r.Years() {
		if yr := findYear(r.Annual, year); yr != nil {
			writeComparisonRow(w, fmt.Sprintf("%d", year), "Annual", yr)
		}
		if yr := findYear(r.Quarterly, year); yr != nil {
			writeComparisonRow(w, "", "Quarterly", yr)
		}
		fmt.Fprintln(w, rule)
	}

	writeStats(w, "Annual", Stats(r.Annual))
	writeStats(w, "Quarterly", Stats(r.Quarterly))
}

func writeComparisonRow(w io.Writer, yearCol, name string, yr *backtest.YearResult) {
	s := yr.Summary
	fmt.Fprintf(w, "%-6s | %-9s | %+8.1f%% | %8.2f | %8.2f | %8.3f | %8.3f | %7d | %8.1f%% | %5.1f/%-3d\n",
		yearCol, name, s.ReturnPct, s.AvgEntryDelta, s.AvgExitDelta,
		s.AvgEntryIV, s.AvgExitIV, s.TotalTrades, winRate(s),
		s.AvgDeviationDays, s.MaxDeviationDays)
}

func writeStats(w io.Writer, name string, st StrategyStats) {
	if st.Years == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s strategy over %d years:\n", name, st.Years)
	fmt.Fprintf(w, "  Average yearly return: %+.1f%%\n", st.AvgReturnPct)
	fmt.Fprintf(w, "  Trades: %d (wins: %d)\n", st.TotalTrades, st.WinningTrades)
	fmt.Fprintf(w, "  Commissions paid: $%.2f, avg capital utilization: %.1f%%\n",
		st.CommissionsPaid, st.AvgUtilization)
	fmt.Fprintf(w, "  Final capital: $%.2f\n", st.FinalCash)
}

// WriteTradeLog prints every period of a result set, including skipped ones,
// with the full contract identifier for traded periods.
func WriteTradeLog(w io.Writer, results []backtest.YearResult) {
	for _, yr := range results {
		fmt.Fprintf(w, "\n%d (%s): $%.2f -> $%.2f (%+.1f%%)\n",
			yr.Year, yr.Strategy, yr.StartCash, yr.EndCash, yr.Summary.ReturnPct)
		for _, p := range yr.Periods {
			if !p.Traded() {
				fmt.Fprintf(w, "  %-6s %s -> %s: no trade (%s)\n",
					p.Label, p.Entry.Format("2006-01-02"), p.Exit.Format("2006-01-02"), p.SkipReason)
				continue
			}
			t := p.Trade
			fmt.Fprintf(w, "  %-6s %s -> %s: %s x%d entry %.2f exit %.2f pnl %+.2f/contract (%+.1f%%)",
				p.Label, p.Entry.Format("2006-01-02"), p.Exit.Format("2006-01-02"),
				t.Selection.Contract.OCCSymbol(), p.Sizing.Contracts,
				t.EntryPrice, t.ExitPrice, t.PnLPerContract, t.ReturnPct)
			if t.Split != nil {
				fmt.Fprintf(w, " [split %d:1, exit strike %s]", t.Split.Ratio, t.ExitStrike)
			}
			fmt.Fprintln(w)
		}
	}
}
