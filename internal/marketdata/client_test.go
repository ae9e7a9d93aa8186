package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/leapsback/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, nil).WithRetry(RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
}

func TestStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/system/mdds/status", r.URL.Path)
		_, _ = w.Write([]byte("CONNECTED"))
	})
	require.NoError(t, c.Status(context.Background()))
}

func TestStatus_Disconnected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("DISCONNECTED"))
	})
	assert.Error(t, c.Status(context.Background()))
}

func TestListTradeDates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/list/dates/stock/trade", r.URL.Path)
		assert.Equal(t, "GOOG", r.URL.Query().Get("root"))
		_, _ = w.Write([]byte(`{"response":[20200103,20200102,20200102,20200106]}`))
	})

	dates, err := c.ListTradeDates(context.Background(), "GOOG")
	require.NoError(t, err)
	require.Len(t, dates, 3)
	// De-duplicated and ascending.
	assert.Equal(t, "20200102", FormatDate(dates[0]))
	assert.Equal(t, "20200103", FormatDate(dates[1]))
	assert.Equal(t, "20200106", FormatDate(dates[2]))
}

func TestTradableExpirations(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/list/contracts/option/quote", r.URL.Path)
		assert.Equal(t, "20200102", r.URL.Query().Get("start_date"))
		_, _ = w.Write([]byte(`{"response":[
			["GOOG",20210115,1500000,"C"],
			["GOOG",20200117,1400000,"C"],
			["GOOG",20210115,1550000,"P"],
			["GOOG"],
			["GOOG","bogus",1,"C"]
		]}`))
	})

	entry := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	exps, err := c.TradableExpirations(context.Background(), "GOOG", entry)
	require.NoError(t, err)
	require.Len(t, exps, 2)
	assert.Equal(t, "20200117", FormatDate(exps[0]))
	assert.Equal(t, "20210115", FormatDate(exps[1]))
}

func TestBulkEOD_TickAccessors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bulk_hist/option/eod", r.URL.Path)
		_, _ = w.Write([]byte(`{"response":[
			{"contract":{"root":"GOOG","expiration":20210115,"strike":1400000,"right":"C"},
			 "ticks":[[0,0,0,0,0,42.5,0,0,0,0,41.0,0,0,0,44.0,0,0]]},
			{"contract":{"root":"GOOG","expiration":20210115,"strike":1450000,"right":"P"},
			 "ticks":[]}
		]}`))
	})

	exp := time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)
	day := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	records, err := c.BulkEOD(context.Background(), "GOOG", exp, day, day)
	require.NoError(t, err)
	require.Len(t, records, 2)

	closePx, bid, ask, ok := records[0].EOD()
	assert.True(t, ok)
	assert.Equal(t, 42.5, closePx)
	assert.Equal(t, 41.0, bid)
	assert.Equal(t, 44.0, ask)
	assert.True(t, records[0].IsCall())
	assert.Equal(t, models.Strike(1400000), records[0].Contract.Strike)

	_, _, _, ok = records[1].EOD()
	assert.False(t, ok)
}

func TestOptionEOD_MissingVsWorthless(t *testing.T) {
	var body atomic.Value
	body.Store(`{"response":[]}`)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/hist/option/eod", r.URL.Path)
		assert.Equal(t, "7500", r.URL.Query().Get("strike"))
		_, _ = w.Write([]byte(body.Load().(string)))
	})

	contract := models.OptionContract{
		Symbol:     "GOOG",
		Expiration: time.Date(2023, 1, 20, 0, 0, 0, 0, time.UTC),
		Strike:     7500,
		Right:      models.RightCall,
	}
	day := time.Date(2022, 12, 30, 0, 0, 0, 0, time.UTC)

	_, found, err := c.OptionEOD(context.Background(), contract, day)
	require.NoError(t, err)
	assert.False(t, found)

	// A present record with all-zero prices is found; worthless, not missing.
	body.Store(`{"response":[[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0]]}`)
	quote, found, err := c.OptionEOD(context.Background(), contract, day)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Zero(t, quote.Close)
	assert.Zero(t, quote.Bid)
}

func TestGetJSON_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response":[20200102]}`))
	})

	dates, err := c.ListTradeDates(context.Background(), "GOOG")
	require.NoError(t, err)
	assert.Len(t, dates, 1)
	assert.EqualValues(t, 3, calls.Load())
}

func TestGetJSON_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad root"))
	})

	_, err := c.ListTradeDates(context.Background(), "GOOG")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.EqualValues(t, 1, calls.Load())
}

func TestBulkRecordGreeks(t *testing.T) {
	tick := make([]float64, 34)
	tick[greeksTickDelta] = 0.82
	tick[greeksTickTheta] = -0.05
	tick[greeksTickVega] = 0.42
	tick[greeksTickGamma] = 0.002
	tick[greeksTickIV] = 0.31
	rec := BulkRecord{Ticks: [][]float64{tick}}

	g, ok := rec.Greeks()
	require.True(t, ok)
	assert.Equal(t, 0.82, g.Delta)
	assert.Equal(t, 0.31, g.IV)

	short := BulkRecord{Ticks: [][]float64{make([]float64, 10)}}
	_, ok = short.Greeks()
	assert.False(t, ok)
}
