package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/quantfold/leapsback/internal/marketdata"
	"github.com/quantfold/leapsback/internal/models"
)

// EntryTimeMS is the intraday quote timestamp for entries: 10:00 exchange
// time as a millisecond offset into the trading day. Entering half an hour
// after the open avoids the worst of the opening-auction spreads while the
// quote is still close to the resolved opening spot price.
const EntryTimeMS = 36_000_000

// MarketData is the slice of the terminal client the engine consumes.
type MarketData interface {
	ListExpirations(ctx context.Context, symbol string) ([]time.Time, error)
	TradableExpirations(ctx context.Context, symbol string, date time.Time) ([]time.Time, error)
	BulkEOD(ctx context.Context, symbol string, expiration, start, end time.Time) ([]marketdata.BulkRecord, error)
	BulkEODGreeks(ctx context.Context, symbol string, expiration, date time.Time) ([]marketdata.BulkRecord, error)
	BulkAtTimeQuotes(ctx context.Context, symbol string, expiration, date time.Time, intervalMS int) ([]marketdata.BulkRecord, error)
	OptionEOD(ctx context.Context, contract models.OptionContract, date time.Time) (*marketdata.EODQuote, bool, error)
}

// Selection-stage failures. Strategies treat all of them as "skip this
// candidate or period," never as a backtest abort.
var (
	ErrNoExpirations   = errors.New("no candidate expirations")
	ErrNoEligibleCalls = errors.New("no eligible ITM calls")
	ErrFixedStrikeGone = errors.New("fixed strike not available for expiration")
	ErrNoEntryPrice    = errors.New("no valid entry price")
	ErrNoExitPrice     = errors.New("no exit price data")
)

// IsNoTrade reports whether err is a selection-stage failure that simply
// means "no trade this period."
func IsNoTrade(err error) bool {
	return errors.Is(err, ErrNoExpirations) ||
		errors.Is(err, ErrNoEligibleCalls) ||
		errors.Is(err, ErrFixedStrikeGone) ||
		errors.Is(err, ErrNoEntryPrice) ||
		errors.Is(err, ErrNoExitPrice)
}

// Pricer retrieves entry quotes, exit records, and Greeks for a selected
// contract.
type Pricer struct {
	md     MarketData
	logger *log.Logger
}

// NewPricer wraps a market-data source. A nil logger discards output.
func NewPricer(md MarketData, logger *log.Logger) *Pricer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Pricer{md: md, logger: logger}
}

// EntryPrice returns the contract's price at the 10:00 quote snapshot on the
// entry date: ask preferred, bid as fallback, ErrNoEntryPrice when neither is
// positive or the strike has no quote row.
func (p *Pricer) EntryPrice(ctx context.Context, symbol string, expiration, entryDate time.Time, strike models.Strike) (float64, error) {
	quotes, err := p.md.BulkAtTimeQuotes(ctx, symbol, expiration, entryDate, EntryTimeMS)
	if err != nil {
		return 0, err
	}
	for i := range quotes {
		rec := &quotes[i]
		if rec.Contract.Strike != strike || !rec.IsCall() {
			continue
		}
		bid, ask, ok := rec.Quote()
		if !ok {
			continue
		}
		if ask > 0 {
			return ask, nil
		}
		if bid > 0 {
			p.logger.Printf("entry quote for %s %s: ask empty, using bid %.2f",
				symbol, strike, bid)
			return bid, nil
		}
	}
	return 0, ErrNoEntryPrice
}

// ExitPrice returns the contract's end-of-day price on the exit date: close
// preferred, bid as fallback. A record whose prices are all zero is a valid
// worthless exit at exactly 0.0; a missing record is ErrNoExitPrice.
func (p *Pricer) ExitPrice(ctx context.Context, contract models.OptionContract, exitDate time.Time) (float64, error) {
	quote, found, err := p.md.OptionEOD(ctx, contract, exitDate)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrNoExitPrice
	}
	switch {
	case quote.Close > 0:
		return quote.Close, nil
	case quote.Bid > 0:
		return quote.Bid, nil
	default:
		// Expired or closed at zero.
		return 0.0, nil
	}
}

// GreeksAt fetches the Greeks snapshot for one strike of an expiration on a
// date. Best effort: any failure returns nil rather than an error, since
// Greeks are reporting-only.
func (p *Pricer) GreeksAt(ctx context.Context, symbol string, expiration, date time.Time, strike models.Strike) *models.Greeks {
	records, err := p.md.BulkEODGreeks(ctx, symbol, expiration, date)
	if err != nil {
		p.logger.Printf("greeks fetch failed for %s %s on %s: %v",
			symbol, strike, date.Format("2006-01-02"), err)
		return nil
	}
	for i := range records {
		rec := &records[i]
		if rec.Contract.Strike != strike {
			continue
		}
		if g, ok := rec.Greeks(); ok {
			return g
		}
	}
	return nil
}
