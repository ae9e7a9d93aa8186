package dashboard

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/leapsback/internal/backtest"
	"github.com/quantfold/leapsback/internal/reporting"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	report := reporting.NewReport("GOOG",
		[]backtest.YearResult{{
			Year: 2020, Strategy: "annual", StartCash: 100000, EndCash: 118986.70,
			Summary: backtest.YearSummary{TotalTrades: 1, WinningTrades: 1, ReturnPct: 18.99},
		}},
		nil)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s, err := NewServer(Config{Port: 0}, report, logger)
	require.NoError(t, err)
	return s
}

func TestHandleDashboard(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "LEAPS Backtest: GOOG")
	assert.Contains(t, body, "2020")
	assert.Contains(t, body, "118986.70")
}

func TestHandleSummary(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summary", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var view SummaryView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "GOOG", view.Symbol)
	assert.Equal(t, 1, view.Annual.TotalTrades)
	assert.InDelta(t, 118986.70, view.Annual.FinalCash, 1e-9)
}

func TestHandleResults(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"Symbol":"GOOG"`)
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}
