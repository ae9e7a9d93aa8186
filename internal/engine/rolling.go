package engine

import (
	"context"
	"io"
	"log"
	"math"
	"time"

	"github.com/quantfold/leapsback/internal/models"
)

// leapsFloorDays is the minimum days-to-expiration for a contract to qualify
// as a LEAP.
const leapsFloorDays = 365

// RollingFifteenMonthStrategy buys the contract expiring closest to fifteen
// months out and rolls it at each period boundary. Unlike the annual probe,
// the target expiration is chosen once; if its dataset is incomplete the
// period simply records no trade.
type RollingFifteenMonthStrategy struct {
	md     MarketData
	pricer *Pricer
	splits *SplitTable
	logger *log.Logger
}

var _ Strategy = (*RollingFifteenMonthStrategy)(nil)

// NewRollingFifteenMonthStrategy wires the rolling strategy.
func NewRollingFifteenMonthStrategy(md MarketData, pricer *Pricer, splits *SplitTable, logger *log.Logger) *RollingFifteenMonthStrategy {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &RollingFifteenMonthStrategy{md: md, pricer: pricer, splits: splits, logger: logger}
}

func (s *RollingFifteenMonthStrategy) Name() string { return "quarterly" }

// SelectTrade picks the tradable expiration at least one year out whose
// distance to entry+15 months is minimal, then prices it. Equidistant
// candidates resolve to the later date, keeping more time value on the roll.
func (s *RollingFifteenMonthStrategy) SelectTrade(ctx context.Context, symbol string, period Period, spotPrice float64, fixedStrike models.Strike) (*models.Trade, error) {
	target := period.Entry.AddDate(0, 15, 0)
	floor := period.Entry.AddDate(0, 0, leapsFloorDays)

	available, err := s.md.TradableExpirations(ctx, symbol, period.Entry)
	if err != nil {
		return nil, err
	}

	expiration, ok := closestExpiration(available, target, floor)
	if !ok {
		return nil, ErrNoExpirations
	}
	deviation := int(math.Abs(expiration.Sub(target).Hours() / 24))
	s.logger.Printf("selected expiration %s (%d days from 15-month target)",
		expiration.Format("2006-01-02"), deviation)

	entryChain, err := s.md.BulkEOD(ctx, symbol, expiration, period.Entry, period.Entry)
	if err != nil {
		return nil, err
	}
	calls := FilterITMCalls(entryChain, spotPrice)
	strike, err := chooseStrike(calls, fixedStrike)
	if err != nil {
		return nil, err
	}

	sel := models.ContractSelection{
		Contract: models.OptionContract{
			Symbol:     symbol,
			Expiration: expiration,
			Strike:     strike,
			Right:      models.RightCall,
		},
		TargetDate:     target,
		MonthsToExpiry: expiration.Sub(period.Entry).Hours() / 24 / daysPerMonth,
		DeviationDays:  deviation,
	}
	return priceSelection(ctx, s.pricer, s.splits, symbol, sel, period)
}

// closestExpiration returns the candidate at or beyond floor with minimal
// absolute distance to target. Ties prefer the later expiration.
func closestExpiration(candidates []time.Time, target, floor time.Time) (time.Time, bool) {
	var best time.Time
	bestDist := math.MaxFloat64
	found := false
	for _, exp := range candidates {
		if exp.Before(floor) {
			continue
		}
		dist := math.Abs(exp.Sub(target).Hours() / 24)
		if !found || dist < bestDist || (dist == bestDist && exp.After(best)) {
			best, bestDist, found = exp, dist, true
		}
	}
	return best, found
}
