package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/leapsback/internal/cache"
)

type fakeLister struct {
	dates []time.Time
	calls int
	err   error
}

func (f *fakeLister) ListTradeDates(_ context.Context, _ string) ([]time.Time, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.dates, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testDates() []time.Time {
	return []time.Time{
		day(2019, time.December, 31),
		day(2020, time.January, 2),
		day(2020, time.January, 3),
		day(2020, time.March, 31),
		day(2020, time.April, 1),
		day(2020, time.June, 30),
		day(2020, time.July, 1),
		day(2020, time.September, 30),
		day(2020, time.October, 1),
		day(2020, time.December, 31),
		day(2021, time.January, 4),
	}
}

func TestTradingDays_FiltersYearAndCaches(t *testing.T) {
	lister := &fakeLister{dates: testDates()}
	svc := NewService(lister, cache.NewMemoryStore(), nil)

	days, err := svc.TradingDays(context.Background(), "GOOG", 2020)
	require.NoError(t, err)
	require.Len(t, days, 9)
	assert.Equal(t, day(2020, time.January, 2), days[0])
	assert.Equal(t, day(2020, time.December, 31), days[8])

	// Second call is served from cache; the terminal is not touched again.
	_, err = svc.TradingDays(context.Background(), "GOOG", 2020)
	require.NoError(t, err)
	assert.Equal(t, 1, lister.calls)
}

func TestTradingDays_EmptyYear(t *testing.T) {
	lister := &fakeLister{dates: testDates()}
	svc := NewService(lister, cache.NewMemoryStore(), nil)

	_, err := svc.TradingDays(context.Background(), "GOOG", 1995)
	assert.Error(t, err)
}

func TestFirstAndLastTradingDay(t *testing.T) {
	svc := NewService(&fakeLister{dates: testDates()}, cache.NewMemoryStore(), nil)

	first, err := svc.FirstTradingDay(context.Background(), "GOOG", 2020)
	require.NoError(t, err)
	assert.Equal(t, day(2020, time.January, 2), first)

	last, err := svc.LastTradingDay(context.Background(), "GOOG", 2020)
	require.NoError(t, err)
	assert.Equal(t, day(2020, time.December, 31), last)
}

func TestMostRecentTradingDay_CapsAtToday(t *testing.T) {
	svc := NewService(&fakeLister{dates: testDates()}, cache.NewMemoryStore(), nil)
	svc.now = func() time.Time { return day(2020, time.July, 15) }

	got, err := svc.MostRecentTradingDay(context.Background(), "GOOG", 2020)
	require.NoError(t, err)
	assert.Equal(t, day(2020, time.July, 1), got)

	// A completed year is unaffected by the cap.
	svc.now = func() time.Time { return day(2024, time.May, 1) }
	got, err = svc.MostRecentTradingDay(context.Background(), "GOOG", 2020)
	require.NoError(t, err)
	assert.Equal(t, day(2020, time.December, 31), got)
}

func TestQuarterBoundaries(t *testing.T) {
	svc := NewService(&fakeLister{dates: testDates()}, cache.NewMemoryStore(), nil)
	ctx := context.Background()

	cases := []struct {
		q           int
		first, last time.Time
	}{
		{1, day(2020, time.January, 2), day(2020, time.March, 31)},
		{2, day(2020, time.April, 1), day(2020, time.June, 30)},
		{3, day(2020, time.July, 1), day(2020, time.September, 30)},
		{4, day(2020, time.October, 1), day(2020, time.December, 31)},
	}
	for _, tc := range cases {
		first, err := svc.FirstTradingDayOfQuarter(ctx, "GOOG", 2020, tc.q)
		require.NoError(t, err, "Q%d first", tc.q)
		assert.Equal(t, tc.first, first, "Q%d first", tc.q)

		last, err := svc.LastTradingDayOfQuarter(ctx, "GOOG", 2020, tc.q)
		require.NoError(t, err, "Q%d last", tc.q)
		assert.Equal(t, tc.last, last, "Q%d last", tc.q)
	}

	_, err := svc.FirstTradingDayOfQuarter(ctx, "GOOG", 2020, 5)
	assert.Error(t, err)
}
