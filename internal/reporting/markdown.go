package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/quantfold/leapsback/internal/backtest"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# LEAPS Backtest Report: %s\n\n", r.Symbol))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("## Yearly Results\n\n")
	sb.WriteString("| Year | Strategy | Return | Trades | Wins | Avg Hold | Avg Months | Dev avg/max | Start Cash | End Cash |\n")
	sb.WriteString("|------|----------|--------|--------|------|----------|------------|-------------|------------|----------|\n")
	for _, year := range r.Years() {
		if yr := findYear(r.Annual, year); yr != nil {
			writeMarkdownRow(&sb, yr)
		}
		if yr := findYear(r.Quarterly, year); yr != nil {
			writeMarkdownRow(&sb, yr)
		}
	}
	sb.WriteString("\n")

	sb.WriteString("## Trades\n\n")
	sb.WriteString("| Year | Period | Contract | Entry | Exit | Contracts | P&L/contract | Return | Note |\n")
	sb.WriteString("|------|--------|----------|-------|------|-----------|--------------|--------|------|\n")
	writeMarkdownTrades(&sb, r.Annual)
	writeMarkdownTrades(&sb, r.Quarterly)
	sb.WriteString("\n")

	if st := Stats(r.Annual); st.Years > 0 {
		sb.WriteString(fmt.Sprintf("Annual: avg yearly return %+.1f%% over %d years, final capital $%.2f.\n\n",
			st.AvgReturnPct, st.Years, st.FinalCash))
	}
	if st := Stats(r.Quarterly); st.Years > 0 {
		sb.WriteString(fmt.Sprintf("Quarterly: avg yearly return %+.1f%% over %d years, final capital $%.2f.\n",
			st.AvgReturnPct, st.Years, st.FinalCash))
	}
	return sb.String()
}

func writeMarkdownRow(sb *strings.Builder, yr *backtest.YearResult) {
	s := yr.Summary
	sb.WriteString(fmt.Sprintf("| %d | %s | %+.1f%% | %d | %d | %.0f d | %.1f | %.1f/%d d | $%.2f | $%.2f |\n",
		yr.Year, yr.Strategy, s.ReturnPct, s.TotalTrades, s.WinningTrades,
		s.AvgHoldDays, s.AvgMonthsToExp, s.AvgDeviationDays, s.MaxDeviationDays,
		yr.StartCash, yr.EndCash))
}

func writeMarkdownTrades(sb *strings.Builder, results []backtest.YearResult) {
	for _, yr := range results {
		for _, p := range yr.Periods {
			if !p.Traded() {
				sb.WriteString(fmt.Sprintf("| %d | %s | - | - | - | 0 | - | - | %s |\n",
					yr.Year, p.Label, p.SkipReason))
				continue
			}
			t := p.Trade
			note := ""
			if t.Split != nil {
				note = fmt.Sprintf("split %d:1", t.Split.Ratio)
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.2f | %.2f | %d | %+.2f | %+.1f%% | %s |\n",
				yr.Year, p.Label, t.Selection.Contract.OCCSymbol(),
				t.EntryPrice, t.ExitPrice, p.Sizing.Contracts,
				t.PnLPerContract, t.ReturnPct, note))
		}
	}
}
