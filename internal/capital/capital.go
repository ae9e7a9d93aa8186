// Package capital handles position sizing and exit proceeds under cash,
// commission, and lot constraints. All arithmetic runs on decimals so that
// sizing and compounding stay exact across long multi-year runs.
package capital

import (
	"errors"

	"github.com/shopspring/decimal"
)

// SharesPerContract is the fixed lot one option contract controls.
const SharesPerContract = 100

// ErrInvalidInput is returned when capital or price inputs make sizing
// meaningless (non-positive capital or option price, non-positive contract
// count on exit).
var ErrInvalidInput = errors.New("capital: invalid sizing input")

var lot = decimal.NewFromInt(SharesPerContract)

// PositionSize describes how many contracts a given amount of cash buys.
// Contracts == 0 is a valid outcome meaning the trade is skipped and capital
// carries over unchanged; it is not an error.
type PositionSize struct {
	Contracts    int
	TotalCost    float64 // option cost plus entry commission
	Commission   float64 // entry commission only
	LeftoverCash float64
	Utilization  float64 // percent of available capital deployed
}

// ExitProceeds describes the cash received when a position is closed.
type ExitProceeds struct {
	Gross      float64
	Commission float64
	Net        float64
}

// SizePosition computes the largest affordable whole-contract position.
// Cost per contract is optionPrice*100 + commission; the count is floored
// and capped at maxContracts.
func SizePosition(availableCapital, optionPrice, commissionPerContract float64, maxContracts int) (PositionSize, error) {
	if availableCapital <= 0 || optionPrice <= 0 {
		return PositionSize{}, ErrInvalidInput
	}

	cash := decimal.NewFromFloat(availableCapital)
	price := decimal.NewFromFloat(optionPrice)
	commission := decimal.NewFromFloat(commissionPerContract)

	costPerContract := price.Mul(lot).Add(commission)
	n := cash.Div(costPerContract).Floor().IntPart()
	if maxContracts > 0 && n > int64(maxContracts) {
		n = int64(maxContracts)
	}
	if n <= 0 {
		return PositionSize{LeftoverCash: availableCapital}, nil
	}

	count := decimal.NewFromInt(n)
	entryCommission := count.Mul(commission)
	totalCost := count.Mul(price).Mul(lot).Add(entryCommission)
	leftover := cash.Sub(totalCost)
	utilization := totalCost.Div(cash).Mul(decimal.NewFromInt(100))

	return PositionSize{
		Contracts:    int(n),
		TotalCost:    totalCost.InexactFloat64(),
		Commission:   entryCommission.InexactFloat64(),
		LeftoverCash: leftover.InexactFloat64(),
		Utilization:  utilization.InexactFloat64(),
	}, nil
}

// SizeExit computes gross and net proceeds from selling numContracts at
// exitPrice. An exit price of zero is legitimate (the contract expired
// worthless); the commission is still charged.
func SizeExit(numContracts int, exitPrice, commissionPerContract float64) (ExitProceeds, error) {
	if numContracts <= 0 {
		return ExitProceeds{}, ErrInvalidInput
	}
	if exitPrice < 0 {
		return ExitProceeds{}, ErrInvalidInput
	}

	count := decimal.NewFromInt(int64(numContracts))
	gross := count.Mul(decimal.NewFromFloat(exitPrice)).Mul(lot)
	commission := count.Mul(decimal.NewFromFloat(commissionPerContract))
	net := gross.Sub(commission)

	return ExitProceeds{
		Gross:      gross.InexactFloat64(),
		Commission: commission.InexactFloat64(),
		Net:        net.InexactFloat64(),
	}, nil
}

// Compound returns the capital available for the next period after a closed
// trade: net exit proceeds plus the cash that never got deployed.
func Compound(exit ExitProceeds, sizing PositionSize) float64 {
	return decimal.NewFromFloat(exit.Net).Add(decimal.NewFromFloat(sizing.LeftoverCash)).InexactFloat64()
}
