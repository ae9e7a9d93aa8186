// Package models defines the core domain types shared across the backtester:
// option contracts, fixed-point strikes, split events, and trade records.
package models

import (
	"fmt"
	"time"
)

// Strike is an option strike price in thousandths of a dollar (the unit the
// market-data terminal uses on the wire). Comparing strikes in this fixed-point
// unit avoids floating-point mismatches between selection and pricing lookups.
type Strike int64

// StrikeFromDollars converts a dollar price into the fixed-point strike unit.
func StrikeFromDollars(d float64) Strike {
	return Strike(d * 1000)
}

// Dollars returns the strike as a dollar amount.
func (s Strike) Dollars() float64 {
	return float64(s) / 1000
}

// SplitAdjust returns the post-split strike identifier for a forward split.
// Exchanges divide the strike by the split ratio, truncating to the listed
// fixed-point grid, so integer division matches the adjusted contract symbol.
func (s Strike) SplitAdjust(ratio int) Strike {
	if ratio <= 1 {
		return s
	}
	return s / Strike(ratio)
}

func (s Strike) String() string {
	return fmt.Sprintf("$%.2f", s.Dollars())
}

// Right identifies the option side.
type Right string

const (
	// RightCall is a call option.
	RightCall Right = "C"
	// RightPut is a put option.
	RightPut Right = "P"
)

// OptionContract identifies a single listed option.
type OptionContract struct {
	Symbol     string
	Expiration time.Time
	Strike     Strike
	Right      Right
}

// OCCSymbol renders the contract in the compact OCC-style form used in trade
// logs, e.g. GOOG260116C01500000.
func (c OptionContract) OCCSymbol() string {
	return fmt.Sprintf("%s%s%s%08d", c.Symbol, c.Expiration.Format("060102"), c.Right, c.Strike)
}

// ContractSelection is the outcome of a strategy's expiration/strike search:
// the chosen contract plus how it relates to the strategy's target date.
type ContractSelection struct {
	Contract       OptionContract
	TargetDate     time.Time // the date the strategy aimed for (zero for annual)
	MonthsToExpiry float64   // actual months between entry and expiration
	DeviationDays  int       // |expiration - target| in days
}

// SplitEvent records a known forward stock split. The table is loaded from
// configuration; only splits falling inside a trade's holding window affect it.
type SplitEvent struct {
	Symbol      string
	Date        time.Time
	Ratio       int
	Description string
}

// Greeks is a best-effort snapshot of an option's sensitivities. A nil
// *Greeks means the data was unavailable; that never fails a trade.
type Greeks struct {
	Delta float64 `json:"delta"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Gamma float64 `json:"gamma"`
	IV    float64 `json:"iv"`
}
