package reporting

import (
	"fmt"
	"strings"

	"github.com/quantfold/leapsback/internal/backtest"
)

// RenderCSV renders every period of the run as CSV, one row per period,
// skipped periods included so the output accounts for every window.
func RenderCSV(r *Report) string {
	var sb strings.Builder

	sb.WriteString("year,strategy,period,entry_date,exit_date,contract,strike,exit_strike,")
	sb.WriteString("entry_price,exit_price,contracts,pnl_per_contract,return_pct,")
	sb.WriteString("start_cash,end_cash,skip_reason\n")

	writeCSVRows(&sb, r.Annual)
	writeCSVRows(&sb, r.Quarterly)
	return sb.String()
}

func writeCSVRows(sb *strings.Builder, results []backtest.YearResult) {
	for _, yr := range results {
		for _, p := range yr.Periods {
			if !p.Traded() {
				sb.WriteString(fmt.Sprintf("%d,%s,%s,%s,%s,,,,,,0,,,%.2f,%.2f,%s\n",
					yr.Year, yr.Strategy, p.Label,
					p.Entry.Format("2006-01-02"), p.Exit.Format("2006-01-02"),
					p.StartCash, p.EndCash, csvEscape(p.SkipReason)))
				continue
			}
			t := p.Trade
			sb.WriteString(fmt.Sprintf("%d,%s,%s,%s,%s,%s,%.3f,%.3f,%.6f,%.6f,%d,%.6f,%.6f,%.2f,%.2f,\n",
				yr.Year, yr.Strategy, p.Label,
				p.Entry.Format("2006-01-02"), p.Exit.Format("2006-01-02"),
				t.Selection.Contract.OCCSymbol(),
				t.Selection.Contract.Strike.Dollars(), t.ExitStrike.Dollars(),
				t.EntryPrice, t.ExitPrice, p.Sizing.Contracts,
				t.PnLPerContract, t.ReturnPct, p.StartCash, p.EndCash))
		}
	}
}

// csvEscape keeps free-text skip reasons from breaking the row format.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
