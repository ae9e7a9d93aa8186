package models

import (
	"time"

	"github.com/google/uuid"
)

// Trade is one completed entry/exit round trip for a single contract.
// ExitPrice already reflects any split that occurred during the holding
// window (the raw exit quote multiplied by the split ratio); it must never
// be post-multiplied again downstream.
type Trade struct {
	ID        string
	EntryDate time.Time
	ExitDate  time.Time

	Selection ContractSelection

	// ExitStrike is the strike identifier used for the exit-side lookup.
	// It differs from Selection.Contract.Strike only when a split occurred.
	ExitStrike Strike

	EntryPrice float64 // per-contract option price at the 10:00 entry quote
	ExitPrice  float64 // per-contract, split-adjusted

	EntryGreeks *Greeks
	ExitGreeks  *Greeks

	Split *SplitEvent // non-nil when the holding window spans a split

	PnLPerContract float64
	ReturnPct      float64
	HoldDays       int
}

// NewTrade assembles a trade record and derives P&L, return, and hold time.
func NewTrade(sel ContractSelection, entryDate, exitDate time.Time, entryPrice, exitPrice float64, exitStrike Strike, split *SplitEvent) *Trade {
	t := &Trade{
		ID:         uuid.New().String(),
		EntryDate:  entryDate,
		ExitDate:   exitDate,
		Selection:  sel,
		ExitStrike: exitStrike,
		EntryPrice: entryPrice,
		ExitPrice:  exitPrice,
		Split:      split,
	}
	t.PnLPerContract = exitPrice - entryPrice
	if entryPrice > 0 {
		t.ReturnPct = (t.PnLPerContract / entryPrice) * 100
	}
	t.HoldDays = int(exitDate.Sub(entryDate).Hours() / 24)
	return t
}

// Won reports whether the trade closed with a per-contract profit.
func (t *Trade) Won() bool {
	return t.PnLPerContract > 0
}
