// Package reporting renders backtest results: a console comparison of the
// two strategies, a detailed per-trade log, and Markdown/CSV exports.
package reporting

import (
	"sort"
	"time"

	"github.com/quantfold/leapsback/internal/backtest"
)

// Report bundles the results of both strategies over a run for rendering.
// Either slice may be empty when only one strategy was requested.
type Report struct {
	Symbol      string
	GeneratedAt time.Time
	Annual      []backtest.YearResult
	Quarterly   []backtest.YearResult
}

// NewReport assembles a report over the run's results.
func NewReport(symbol string, annual, quarterly []backtest.YearResult) *Report {
	return &Report{
		Symbol:      symbol,
		GeneratedAt: time.Now(),
		Annual:      annual,
		Quarterly:   quarterly,
	}
}

// Years returns every year present in either result set, ascending.
func (r *Report) Years() []int {
	seen := make(map[int]struct{})
	for _, yr := range r.Annual {
		seen[yr.Year] = struct{}{}
	}
	for _, yr := range r.Quarterly {
		seen[yr.Year] = struct{}{}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func findYear(results []backtest.YearResult, year int) *backtest.YearResult {
	for i := range results {
		if results[i].Year == year {
			return &results[i]
		}
	}
	return nil
}

// winRate returns winning trades over total trades as a percentage.
func winRate(s backtest.YearSummary) float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.WinningTrades) / float64(s.TotalTrades) * 100
}

// StrategyStats summarizes one strategy across all its years.
type StrategyStats struct {
	Years           int
	AvgReturnPct    float64
	TotalTrades     int
	WinningTrades   int
	CommissionsPaid float64
	AvgUtilization  float64
	FinalCash       float64
}

// Stats aggregates a result set across years.
func Stats(results []backtest.YearResult) StrategyStats {
	var st StrategyStats
	var returnSum, utilSum float64
	var utilYears int
	for _, yr := range results {
		st.Years++
		returnSum += yr.Summary.ReturnPct
		st.TotalTrades += yr.Summary.TotalTrades
		st.WinningTrades += yr.Summary.WinningTrades
		st.CommissionsPaid += yr.Summary.CommissionsPaid
		if yr.Summary.TotalTrades > 0 {
			utilSum += yr.Summary.AvgUtilization
			utilYears++
		}
		st.FinalCash = yr.EndCash
	}
	if st.Years > 0 {
		st.AvgReturnPct = returnSum / float64(st.Years)
	}
	if utilYears > 0 {
		st.AvgUtilization = utilSum / float64(utilYears)
	}
	return st
}
