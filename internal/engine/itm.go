// Package engine implements contract selection: expiration enumeration per
// strategy, the shared in-the-money call filter, split detection, and the
// entry/exit pricing pipeline that turns a selection into a completed trade.
package engine

import (
	"math"
	"sort"

	"github.com/quantfold/leapsback/internal/marketdata"
	"github.com/quantfold/leapsback/internal/models"
)

// ITMCall is one eligible in-the-money call candidate on the entry date.
type ITMCall struct {
	Strike   models.Strike
	Distance float64 // |strike - spot| in fixed-point units
	Close    float64
	Bid      float64
	Ask      float64
}

// HasClose reports whether the candidate carried a positive closing price,
// the stronger of the two data-quality gates.
func (c ITMCall) HasClose() bool { return c.Close > 0 }

// FilterITMCalls keeps the call contracts struck strictly below the spot
// price that also pass the data-quality gate (positive close, or positive bid
// and ask). The result is sorted ascending by distance from spot, so index 0
// is the closest ITM strike. Both strategies share this primitive.
func FilterITMCalls(records []marketdata.BulkRecord, spotPrice float64) []ITMCall {
	spotFixed := models.StrikeFromDollars(spotPrice)

	var calls []ITMCall
	for i := range records {
		rec := &records[i]
		if !rec.IsCall() {
			continue
		}
		closePx, bid, ask, ok := rec.EOD()
		if !ok {
			continue
		}
		strike := rec.Contract.Strike
		if strike >= spotFixed {
			continue
		}
		if closePx <= 0 && (bid <= 0 || ask <= 0) {
			continue
		}
		calls = append(calls, ITMCall{
			Strike:   strike,
			Distance: math.Abs(float64(strike - spotFixed)),
			Close:    closePx,
			Bid:      bid,
			Ask:      ask,
		})
	}
	sort.SliceStable(calls, func(i, j int) bool { return calls[i].Distance < calls[j].Distance })
	return calls
}

// findStrike returns the candidate with the exact strike, for fixed-strike
// mode. ok is false when that strike is not among the eligible calls.
func findStrike(calls []ITMCall, strike models.Strike) (ITMCall, bool) {
	for _, c := range calls {
		if c.Strike == strike {
			return c, true
		}
	}
	return ITMCall{}, false
}
