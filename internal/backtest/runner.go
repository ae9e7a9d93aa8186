// Package backtest orchestrates multi-period runs: it builds the trading
// schedule for a year, resolves the entry spot price, hands each period to the
// strategy, sizes the position, and compounds capital across periods.
package backtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/quantfold/leapsback/internal/capital"
	"github.com/quantfold/leapsback/internal/engine"
	"github.com/quantfold/leapsback/internal/models"
	"github.com/quantfold/leapsback/internal/spot"
)

// Calendar is the slice of the trading-calendar service the runner needs.
type Calendar interface {
	FirstTradingDay(ctx context.Context, symbol string, year int) (time.Time, error)
	LastTradingDay(ctx context.Context, symbol string, year int) (time.Time, error)
	MostRecentTradingDay(ctx context.Context, symbol string, year int) (time.Time, error)
	LastTradingDayOfQuarter(ctx context.Context, symbol string, year, q int) (time.Time, error)
}

// SpotResolver is the slice of the spot-price service the runner needs.
type SpotResolver interface {
	Resolve(ctx context.Context, symbol string, date time.Time) (spot.Outcome, error)
}

// Config carries the run parameters shared by every year of a backtest.
type Config struct {
	Symbol          string
	StartingCapital float64
	Commission      float64 // per contract, charged at entry and exit
	MaxContracts    int     // 0 means uncapped
	FixedStrikes    bool    // quarterly only: reuse the first quarter's strike
}

// Runner executes one strategy over a range of years.
type Runner struct {
	calendar Calendar
	spots    SpotResolver
	strategy engine.Strategy
	cfg      Config
	logger   *log.Logger

	// now is overridable in tests for current-year detection.
	now func() time.Time
}

// NewRunner wires a runner. A nil logger discards output.
func NewRunner(cal Calendar, spots SpotResolver, strategy engine.Strategy, cfg Config, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Runner{
		calendar: cal,
		spots:    spots,
		strategy: strategy,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// PeriodResult records one period of a year, traded or skipped.
type PeriodResult struct {
	Label      string
	Entry      time.Time
	Exit       time.Time
	SpotPrice  float64
	Trade      *models.Trade // nil when the period had no trade
	Sizing     capital.PositionSize
	Proceeds   capital.ExitProceeds
	StartCash  float64
	EndCash    float64
	SkipReason string // non-empty when Trade is nil
}

// Traded reports whether the period executed a position.
func (p *PeriodResult) Traded() bool { return p.Trade != nil && p.Sizing.Contracts > 0 }

// YearResult aggregates one strategy's periods for one year.
type YearResult struct {
	Year      int
	Strategy  string
	Periods   []PeriodResult
	StartCash float64
	EndCash   float64
	Summary   YearSummary
}

// YearSummary is the terminal per-year aggregate.
type YearSummary struct {
	TotalTrades      int
	WinningTrades    int
	TotalPnL         float64 // capital delta over the year
	ReturnPct        float64
	AvgHoldDays      float64
	AvgMonthsToExp   float64
	AvgDeviationDays float64
	MaxDeviationDays int
	CommissionsPaid  float64 // entry plus exit, all trades
	AvgUtilization   float64 // percent of cash deployed per trade
	AvgEntryDelta    float64
	AvgExitDelta     float64
	AvgEntryIV       float64
	AvgExitIV        float64
}

// RunYear executes every period of one year, compounding capital from
// startCash. Only calendar failures abort the year; every data or selection
// problem inside a period downgrades to a recorded no-trade.
func (r *Runner) RunYear(ctx context.Context, year int, startCash float64) (*YearResult, error) {
	periods, err := r.schedule(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("building %d schedule for %s: %w", year, r.cfg.Symbol, err)
	}

	result := &YearResult{
		Year:      year,
		Strategy:  r.strategy.Name(),
		StartCash: startCash,
	}

	cash := startCash
	var lockedStrike models.Strike
	for _, period := range periods {
		pr := r.runPeriod(ctx, period, cash, lockedStrike)
		if pr.Traded() {
			cash = pr.EndCash
			if r.cfg.FixedStrikes && lockedStrike == 0 {
				lockedStrike = pr.Trade.Selection.Contract.Strike
				r.logger.Printf("%d %s: locking strike %s for remaining periods",
					year, period.Label, lockedStrike)
			}
		}
		result.Periods = append(result.Periods, pr)
	}

	result.EndCash = cash
	result.Summary = summarizeYear(result)
	return result, nil
}

// schedule derives the period windows for the year. The annual strategy gets
// one window covering the year; the quarterly strategy gets four back-to-back
// windows whose boundaries are quarter-end trading days. For the current
// calendar year the final exit is capped at the most recent trading day.
func (r *Runner) schedule(ctx context.Context, year int) ([]engine.Period, error) {
	symbol := r.cfg.Symbol
	entry, err := r.calendar.FirstTradingDay(ctx, symbol, year)
	if err != nil {
		return nil, err
	}

	currentYear := year == r.now().Year()
	yearEnd, err := r.lastExit(ctx, year, currentYear)
	if err != nil {
		return nil, err
	}

	if r.strategy.Name() == "annual" {
		return []engine.Period{{Label: "Annual", Entry: entry, Exit: yearEnd}}, nil
	}

	q1End, err := r.calendar.LastTradingDayOfQuarter(ctx, symbol, year, 1)
	if err != nil {
		return nil, err
	}
	q2End, err := r.calendar.LastTradingDayOfQuarter(ctx, symbol, year, 2)
	if err != nil {
		return nil, err
	}
	q3End, err := r.calendar.LastTradingDayOfQuarter(ctx, symbol, year, 3)
	if err != nil {
		return nil, err
	}

	all := []engine.Period{
		{Label: "Q1", Entry: entry, Exit: q1End},
		{Label: "Q2", Entry: q1End, Exit: q2End},
		{Label: "Q3", Entry: q2End, Exit: q3End},
		{Label: "Q4", Entry: q3End, Exit: yearEnd},
	}

	// Drop windows that have not happened yet (current year in progress).
	var out []engine.Period
	for _, p := range all {
		if !p.Entry.Before(p.Exit) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *Runner) lastExit(ctx context.Context, year int, currentYear bool) (time.Time, error) {
	if currentYear {
		return r.calendar.MostRecentTradingDay(ctx, r.cfg.Symbol, year)
	}
	return r.calendar.LastTradingDay(ctx, r.cfg.Symbol, year)
}

func (r *Runner) runPeriod(ctx context.Context, period engine.Period, cash float64, lockedStrike models.Strike) PeriodResult {
	pr := PeriodResult{
		Label:     period.Label,
		Entry:     period.Entry,
		Exit:      period.Exit,
		StartCash: cash,
		EndCash:   cash,
	}

	outcome, err := r.spots.Resolve(ctx, r.cfg.Symbol, period.Entry)
	if err != nil {
		pr.SkipReason = fmt.Sprintf("spot resolution: %v", err)
		return pr
	}
	switch outcome.Status {
	case spot.StatusMarketClosed:
		pr.SkipReason = "market closed on entry date"
		return pr
	case spot.StatusTemporaryFailure:
		pr.SkipReason = fmt.Sprintf("spot providers exhausted (%s)", outcome.Kind)
		return pr
	}
	pr.SpotPrice = outcome.Price

	trade, err := r.strategy.SelectTrade(ctx, r.cfg.Symbol, period, outcome.Price, lockedStrike)
	if err != nil {
		pr.SkipReason = err.Error()
		if !engine.IsNoTrade(err) {
			r.logger.Printf("%s: selection error: %v", period.Label, err)
		}
		return pr
	}
	pr.Trade = trade

	sizing, err := capital.SizePosition(cash, trade.EntryPrice, r.cfg.Commission, r.cfg.MaxContracts)
	if err != nil {
		pr.SkipReason = fmt.Sprintf("position sizing: %v", err)
		return pr
	}
	pr.Sizing = sizing
	if sizing.Contracts == 0 {
		pr.SkipReason = "insufficient capital for one contract"
		return pr
	}

	proceeds, err := capital.SizeExit(sizing.Contracts, trade.ExitPrice, r.cfg.Commission)
	if err != nil {
		pr.SkipReason = fmt.Sprintf("exit sizing: %v", err)
		return pr
	}
	pr.Proceeds = proceeds
	pr.EndCash = capital.Compound(proceeds, sizing)

	r.logger.Printf("%s: %s entry %.2f exit %.2f x%d, cash %.2f -> %.2f",
		period.Label, trade.Selection.Contract.OCCSymbol(), trade.EntryPrice,
		trade.ExitPrice, sizing.Contracts, pr.StartCash, pr.EndCash)
	return pr
}

func summarizeYear(yr *YearResult) YearSummary {
	s := YearSummary{
		TotalPnL: yr.EndCash - yr.StartCash,
	}
	if yr.StartCash > 0 {
		s.ReturnPct = s.TotalPnL / yr.StartCash * 100
	}

	var holdDays, months, utilization, devDays float64
	var entryDeltas, exitDeltas, entryIVs, exitIVs []float64
	for i := range yr.Periods {
		p := &yr.Periods[i]
		if !p.Traded() {
			continue
		}
		s.TotalTrades++
		if p.Trade.Won() {
			s.WinningTrades++
		}
		holdDays += float64(p.Trade.HoldDays)
		months += p.Trade.Selection.MonthsToExpiry
		utilization += p.Sizing.Utilization
		s.CommissionsPaid += p.Sizing.Commission + p.Proceeds.Commission
		devDays += float64(p.Trade.Selection.DeviationDays)
		if p.Trade.Selection.DeviationDays > s.MaxDeviationDays {
			s.MaxDeviationDays = p.Trade.Selection.DeviationDays
		}
		if g := p.Trade.EntryGreeks; g != nil {
			entryDeltas = append(entryDeltas, g.Delta)
			entryIVs = append(entryIVs, g.IV)
		}
		if g := p.Trade.ExitGreeks; g != nil {
			exitDeltas = append(exitDeltas, g.Delta)
			exitIVs = append(exitIVs, g.IV)
		}
	}
	if s.TotalTrades > 0 {
		s.AvgHoldDays = holdDays / float64(s.TotalTrades)
		s.AvgMonthsToExp = months / float64(s.TotalTrades)
		s.AvgDeviationDays = devDays / float64(s.TotalTrades)
		s.AvgUtilization = utilization / float64(s.TotalTrades)
	}
	s.AvgEntryDelta = mean(entryDeltas)
	s.AvgExitDelta = mean(exitDeltas)
	s.AvgEntryIV = mean(entryIVs)
	s.AvgExitIV = mean(exitIVs)
	return s
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Run executes the strategy over [startYear, endYear], compounding capital
// across years as well as periods.
func (r *Runner) Run(ctx context.Context, startYear, endYear int) ([]YearResult, error) {
	if startYear > endYear {
		return nil, fmt.Errorf("invalid year range %d-%d", startYear, endYear)
	}
	var results []YearResult
	cash := r.cfg.StartingCapital
	for year := startYear; year <= endYear; year++ {
		yr, err := r.RunYear(ctx, year, cash)
		if err != nil {
			// A year with no calendar is skipped, not fatal to the run.
			r.logger.Printf("skipping %d: %v", year, err)
			continue
		}
		cash = yr.EndCash
		results = append(results, *yr)
	}
	return results, nil
}
