// Package calendar resolves historical trading days for a symbol, backed by a
// permanent cache so each year is fetched from the terminal exactly once.
package calendar

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/quantfold/leapsback/internal/cache"
)

// DatesLister is the slice of the market-data client the calendar needs.
type DatesLister interface {
	ListTradeDates(ctx context.Context, symbol string) ([]time.Time, error)
}

// Service answers trading-day questions for one symbol at a time. Year
// calendars are immutable history, so cached entries never expire.
type Service struct {
	lister DatesLister
	store  cache.Store
	logger *log.Logger

	// now is overridable in tests for current-year capping.
	now func() time.Time
}

// NewService builds a calendar service over a dates lister and a cache store.
func NewService(lister DatesLister, store cache.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		lister: lister,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func cacheKey(symbol string, year int) string {
	return "calendar/" + symbol + "/" + strconv.Itoa(year)
}

// TradingDays returns every trading day of the year for symbol, ascending.
// The result is served from cache after the first fetch.
func (s *Service) TradingDays(ctx context.Context, symbol string, year int) ([]time.Time, error) {
	key := cacheKey(symbol, year)

	var cached []string
	if ok, err := s.store.Get(key, &cached); err != nil {
		s.logger.Printf("calendar cache read failed for %s: %v", key, err)
	} else if ok {
		return parseDays(cached)
	}

	all, err := s.lister.ListTradeDates(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching trading calendar for %s: %w", symbol, err)
	}

	var days []time.Time
	var encoded []string
	for _, d := range all {
		if d.Year() != year {
			continue
		}
		days = append(days, d)
		encoded = append(encoded, d.Format("20060102"))
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no trading days for %s in %d", symbol, year)
	}

	if err := s.store.Put(key, encoded, cache.NoExpiry); err != nil {
		s.logger.Printf("calendar cache write failed for %s: %v", key, err)
	}
	return days, nil
}

// FirstTradingDay returns the first trading day of the year.
func (s *Service) FirstTradingDay(ctx context.Context, symbol string, year int) (time.Time, error) {
	days, err := s.TradingDays(ctx, symbol, year)
	if err != nil {
		return time.Time{}, err
	}
	return days[0], nil
}

// LastTradingDay returns the last trading day of the year.
func (s *Service) LastTradingDay(ctx context.Context, symbol string, year int) (time.Time, error) {
	days, err := s.TradingDays(ctx, symbol, year)
	if err != nil {
		return time.Time{}, err
	}
	return days[len(days)-1], nil
}

// MostRecentTradingDay returns the latest trading day of the year that is not
// in the future. For completed years this equals LastTradingDay; for the
// current year it caps the backtest window at data that can exist.
func (s *Service) MostRecentTradingDay(ctx context.Context, symbol string, year int) (time.Time, error) {
	days, err := s.TradingDays(ctx, symbol, year)
	if err != nil {
		return time.Time{}, err
	}
	today := s.now()
	for i := len(days) - 1; i >= 0; i-- {
		if !days[i].After(today) {
			return days[i], nil
		}
	}
	return time.Time{}, fmt.Errorf("no trading day in %d on or before %s", year, today.Format("2006-01-02"))
}

// FirstTradingDayOfQuarter returns the earliest trading day whose month falls
// inside quarter q (1-4).
func (s *Service) FirstTradingDayOfQuarter(ctx context.Context, symbol string, year, q int) (time.Time, error) {
	if q < 1 || q > 4 {
		return time.Time{}, fmt.Errorf("quarter %d out of range", q)
	}
	days, err := s.TradingDays(ctx, symbol, year)
	if err != nil {
		return time.Time{}, err
	}
	firstMonth := time.Month(3*q - 2)
	for _, d := range days {
		if d.Month() >= firstMonth {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("no trading day in Q%d %d", q, year)
}

// LastTradingDayOfQuarter returns the latest trading day whose month falls
// inside quarter q (1-4).
func (s *Service) LastTradingDayOfQuarter(ctx context.Context, symbol string, year, q int) (time.Time, error) {
	if q < 1 || q > 4 {
		return time.Time{}, fmt.Errorf("quarter %d out of range", q)
	}
	days, err := s.TradingDays(ctx, symbol, year)
	if err != nil {
		return time.Time{}, err
	}
	lastMonth := time.Month(3 * q)
	for i := len(days) - 1; i >= 0; i-- {
		if days[i].Month() <= lastMonth {
			return days[i], nil
		}
	}
	return time.Time{}, fmt.Errorf("no trading day in Q%d %d", q, year)
}

func parseDays(encoded []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(encoded))
	for _, e := range encoded {
		d, err := time.Parse("20060102", e)
		if err != nil {
			return nil, fmt.Errorf("corrupt calendar cache entry %q: %w", e, err)
		}
		out = append(out, d)
	}
	return out, nil
}
