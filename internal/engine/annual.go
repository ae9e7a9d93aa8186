package engine

import (
	"context"
	"io"
	"log"
	"sort"
	"time"

	"github.com/quantfold/leapsback/internal/models"
)

// AnnualJanuaryStrategy buys a single January LEAP of the following year and
// holds it until the period's exit date.
//
// Candidate expirations are probed sequentially in date order, and the first
// one with a complete dataset wins (entry EOD chain present, an eligible ITM
// call, a 10:00 entry quote, an exit record). Historical chains are sparse
// enough that always taking the earliest listed January expiration would
// silently fail whole years.
type AnnualJanuaryStrategy struct {
	md     MarketData
	pricer *Pricer
	splits *SplitTable
	logger *log.Logger
}

var _ Strategy = (*AnnualJanuaryStrategy)(nil)

// NewAnnualJanuaryStrategy wires the annual strategy.
func NewAnnualJanuaryStrategy(md MarketData, pricer *Pricer, splits *SplitTable, logger *log.Logger) *AnnualJanuaryStrategy {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &AnnualJanuaryStrategy{md: md, pricer: pricer, splits: splits, logger: logger}
}

func (s *AnnualJanuaryStrategy) Name() string { return "annual" }

// SelectTrade probes each January expiration of entryYear+1 in order and
// returns the first fully priced trade. fixedStrike is honored when set,
// though the orchestrator only uses it for the quarterly strategy.
func (s *AnnualJanuaryStrategy) SelectTrade(ctx context.Context, symbol string, period Period, spotPrice float64, fixedStrike models.Strike) (*models.Trade, error) {
	candidates, err := s.januaryExpirations(ctx, symbol, period.Entry)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoExpirations
	}

	var lastErr error = ErrNoEligibleCalls
	for _, expiration := range candidates {
		trade, err := s.tryExpiration(ctx, symbol, expiration, period, spotPrice, fixedStrike)
		if err != nil {
			if IsNoTrade(err) {
				s.logger.Printf("expiration %s incomplete (%v), trying next",
					expiration.Format("2006-01-02"), err)
				lastErr = err
				continue
			}
			return nil, err
		}
		return trade, nil
	}
	return nil, lastErr
}

// januaryExpirations lists every expiration in January of the year after the
// entry date, strictly after the entry date, ascending.
func (s *AnnualJanuaryStrategy) januaryExpirations(ctx context.Context, symbol string, entry time.Time) ([]time.Time, error) {
	all, err := s.md.ListExpirations(ctx, symbol)
	if err != nil {
		return nil, err
	}
	targetYear := entry.Year() + 1
	var out []time.Time
	for _, exp := range all {
		if exp.Year() == targetYear && exp.Month() == time.January && exp.After(entry) {
			out = append(out, exp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *AnnualJanuaryStrategy) tryExpiration(ctx context.Context, symbol string, expiration time.Time, period Period, spotPrice float64, fixedStrike models.Strike) (*models.Trade, error) {
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
		MonthsToExpiry: expiration.Sub(period.Entry).Hours() / 24 / daysPerMonth,
	}
	return priceSelection(ctx, s.pricer, s.splits, symbol, sel, period)
}
