package reporting

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/leapsback/internal/backtest"
	"github.com/quantfold/leapsback/internal/capital"
	"github.com/quantfold/leapsback/internal/models"
)

func sampleResults(t *testing.T) (annual, quarterly []backtest.YearResult) {
	t.Helper()
	entry := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	exit := time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)

	sel := models.ContractSelection{
		Contract: models.OptionContract{
			Symbol:     "GOOG",
			Expiration: time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC),
			Strike:     1400000,
			Right:      models.RightCall,
		},
		MonthsToExpiry: 12.4,
	}
	trade := models.NewTrade(sel, entry, exit, 50.0, 60.0, sel.Contract.Strike, nil)

	sizing, err := capital.SizePosition(100000, 50.0, 0.35, 0)
	require.NoError(t, err)
	proceeds, err := capital.SizeExit(sizing.Contracts, 60.0, 0.35)
	require.NoError(t, err)

	traded := backtest.PeriodResult{
		Label: "Annual", Entry: entry, Exit: exit,
		SpotPrice: 1500.0, Trade: trade, Sizing: sizing, Proceeds: proceeds,
		StartCash: 100000, EndCash: capital.Compound(proceeds, sizing),
	}
	annualYear := backtest.YearResult{
		Year: 2020, Strategy: "annual",
		Periods:   []backtest.PeriodResult{traded},
		StartCash: 100000, EndCash: traded.EndCash,
	}
	annualYear.Summary = backtest.YearSummary{
		TotalTrades: 1, WinningTrades: 1,
		TotalPnL:  annualYear.EndCash - 100000,
		ReturnPct: (annualYear.EndCash - 100000) / 1000,
	}

	skipped := backtest.PeriodResult{
		Label: "Q1", Entry: entry, Exit: time.Date(2020, 3, 31, 0, 0, 0, 0, time.UTC),
		StartCash: 100000, EndCash: 100000,
		SkipReason: "market closed on entry date",
	}
	quarterlyYear := backtest.YearResult{
		Year: 2020, Strategy: "quarterly",
		Periods:   []backtest.PeriodResult{skipped},
		StartCash: 100000, EndCash: 100000,
	}
	return []backtest.YearResult{annualYear}, []backtest.YearResult{quarterlyYear}
}

func TestWriteComparison(t *testing.T) {
	annual, quarterly := sampleResults(t)
	r := NewReport("GOOG", annual, quarterly)

	var buf strings.Builder
	WriteComparison(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "2020")
	assert.Contains(t, out, "Annual")
	assert.Contains(t, out, "Quarterly")
	assert.Contains(t, out, "Final capital: $118986.70")
}

func TestWriteTradeLog(t *testing.T) {
	annual, quarterly := sampleResults(t)

	var buf strings.Builder
	WriteTradeLog(&buf, annual)
	WriteTradeLog(&buf, quarterly)
	out := buf.String()

	assert.Contains(t, out, "GOOG210115C01400000")
	assert.Contains(t, out, "x19")
	assert.Contains(t, out, "no trade (market closed on entry date)")
}

func TestRenderMarkdown(t *testing.T) {
	annual, quarterly := sampleResults(t)
	r := NewReport("GOOG", annual, quarterly)

	out := RenderMarkdown(r)
	assert.True(t, strings.HasPrefix(out, "# LEAPS Backtest Report: GOOG"))
	assert.Contains(t, out, "| 2020 | annual |")
	assert.Contains(t, out, "GOOG210115C01400000")
	assert.Contains(t, out, "market closed on entry date")
}

func TestRenderCSV(t *testing.T) {
	annual, quarterly := sampleResults(t)
	r := NewReport("GOOG", annual, quarterly)

	out := RenderCSV(r)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3, "header plus one row per period")
	assert.True(t, strings.HasPrefix(lines[0], "year,strategy,period"))
	assert.Contains(t, lines[1], "GOOG210115C01400000")
	assert.Contains(t, lines[2], "market closed on entry date")
}

func TestCSVEscape(t *testing.T) {
	assert.Equal(t, "plain", csvEscape("plain"))
	assert.Equal(t, `"a,b"`, csvEscape("a,b"))
	assert.Equal(t, `"say ""hi"""`, csvEscape(`say "hi"`))
}

func TestStats(t *testing.T) {
	annual, _ := sampleResults(t)
	st := Stats(annual)
	assert.Equal(t, 1, st.Years)
	assert.Equal(t, 1, st.TotalTrades)
	assert.InDelta(t, 118986.70, st.FinalCash, 1e-9)

	assert.Zero(t, Stats(nil).Years)
}
