package engine

import (
	"context"
	"time"

	"github.com/quantfold/leapsback/internal/models"
)

// daysPerMonth converts a day count to fractional months for reporting.
const daysPerMonth = 30.4375

// Period is one entry/exit window handed to a strategy by the orchestrator.
type Period struct {
	Label string // "Annual", "Q1".."Q4"
	Entry time.Time
	Exit  time.Time
}

// Strategy selects and fully prices one trade for a period. Implementations
// return a trade ready for capital sizing, or a selection-stage error
// (IsNoTrade) when the period has no executable trade. fixedStrike pins the
// strike to reuse from an earlier period; zero means free choice.
type Strategy interface {
	Name() string
	SelectTrade(ctx context.Context, symbol string, period Period, spotPrice float64, fixedStrike models.Strike) (*models.Trade, error)
}

// priceSelection runs the shared pricing pipeline for a chosen expiration and
// strike: split detection, 10:00 entry quote, split-adjusted exit lookup, and
// best-effort Greeks. The returned trade's ExitPrice is already multiplied by
// the split ratio when a split falls inside the window.
func priceSelection(ctx context.Context, pricer *Pricer, splits *SplitTable, symbol string, sel models.ContractSelection, period Period) (*models.Trade, error) {
	entryStrike := sel.Contract.Strike

	entryPrice, err := pricer.EntryPrice(ctx, symbol, sel.Contract.Expiration, period.Entry, entryStrike)
	if err != nil {
		return nil, err
	}

	split := splits.Between(symbol, period.Entry, period.Exit)
	exitStrike := entryStrike
	if split != nil {
		exitStrike = entryStrike.SplitAdjust(split.Ratio)
	}

	exitContract := sel.Contract
	exitContract.Strike = exitStrike
	exitPrice, err := pricer.ExitPrice(ctx, exitContract, period.Exit)
	if err != nil {
		return nil, err
	}
	if split != nil {
		// One pre-split contract became Ratio post-split contracts; the
		// position's exit value is the adjusted price times the ratio.
		exitPrice *= float64(split.Ratio)
	}

	trade := models.NewTrade(sel, period.Entry, period.Exit, entryPrice, exitPrice, exitStrike, split)
	trade.EntryGreeks = pricer.GreeksAt(ctx, symbol, sel.Contract.Expiration, period.Entry, entryStrike)
	trade.ExitGreeks = pricer.GreeksAt(ctx, symbol, sel.Contract.Expiration, period.Exit, exitStrike)
	return trade, nil
}

// chooseStrike applies fixed-strike mode when requested, otherwise takes the
// closest ITM candidate.
func chooseStrike(calls []ITMCall, fixedStrike models.Strike) (models.Strike, error) {
	if len(calls) == 0 {
		return 0, ErrNoEligibleCalls
	}
	if fixedStrike != 0 {
		if _, ok := findStrike(calls, fixedStrike); !ok {
			return 0, ErrFixedStrikeGone
		}
		return fixedStrike, nil
	}
	return calls[0].Strike, nil
}
