package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
environment:
  log_level: info

backtest:
  symbol: GOOG
  starting_capital: 100000
  commission_per_contract: 0.35
  max_contracts_per_trade: 0
  start_year: 2016
  end_year: 0

terminal:
  base_url: http://127.0.0.1:25510
  timeout: 60s

providers:
  tiingo:
    api_key: ${TIINGO_API_KEY}
    timeout: 15s
  marketstack:
    api_key: ${MARKETSTACK_API_KEY}

cache:
  calendar_path: data/calendar_cache.json
  spot_path: data/spot_cache.json
  failure_ttl: 1h

splits:
  - symbol: GOOG
    date: 2022-07-15
    ratio: 20
    description: "GOOG 20:1 stock split"

dashboard:
  enabled: true
  port: 9847
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TIINGO_API_KEY", "tiingo-secret")
	t.Setenv("MARKETSTACK_API_KEY", "ms-secret")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "GOOG", cfg.Backtest.Symbol)
	assert.Equal(t, 100000.0, cfg.Backtest.StartingCapital)
	assert.Equal(t, "tiingo-secret", cfg.Providers.Tiingo.APIKey, "env vars expand")
	assert.Equal(t, "ms-secret", cfg.Providers.MarketStack.APIKey)
	assert.Equal(t, 60*time.Second, cfg.TerminalTimeout())
	assert.Equal(t, time.Hour, cfg.FailureTTL())
	assert.Equal(t, 15*time.Second, cfg.Providers.Tiingo.TimeoutOrDefault())
	assert.Equal(t, 15*time.Second, cfg.Providers.MarketStack.TimeoutOrDefault(), "default when unset")
	assert.Equal(t, 9847, cfg.Dashboard.Port)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	_, err := Load(writeConfig(t, validYAML+"\nbogus_section:\n  x: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEndYearOrNow(t *testing.T) {
	cfg := &Config{Backtest: BacktestConfig{EndYear: 0}}
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 2026, cfg.EndYearOrNow(now))

	cfg.Backtest.EndYear = 2023
	assert.Equal(t, 2023, cfg.EndYearOrNow(now))
}

func TestSplitEvents(t *testing.T) {
	t.Setenv("TIINGO_API_KEY", "x")
	t.Setenv("MARKETSTACK_API_KEY", "y")
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	events := cfg.SplitEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "GOOG", events[0].Symbol)
	assert.Equal(t, 20, events[0].Ratio)
	assert.Equal(t, time.Date(2022, 7, 15, 0, 0, 0, 0, time.UTC), events[0].Date)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Backtest: BacktestConfig{
				Symbol:          "GOOG",
				StartingCapital: 100000,
				StartYear:       2016,
			},
			Cache: CacheConfig{
				CalendarPath: "data/calendar.json",
				SpotPath:     "data/spot.json",
			},
		}
	}

	require.NoError(t, base().Validate())

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing symbol", func(c *Config) { c.Backtest.Symbol = "" }, "backtest.symbol"},
		{"zero capital", func(c *Config) { c.Backtest.StartingCapital = 0 }, "starting_capital"},
		{"negative commission", func(c *Config) { c.Backtest.Commission = -1 }, "commission_per_contract"},
		{"end before start", func(c *Config) { c.Backtest.EndYear = 2010 }, "end_year"},
		{"bad terminal timeout", func(c *Config) { c.Terminal.Timeout = "soon" }, "terminal.timeout"},
		{"bad provider timeout", func(c *Config) { c.Providers.Tiingo.Timeout = "xx" }, "providers.tiingo.timeout"},
		{"missing spot path", func(c *Config) { c.Cache.SpotPath = "" }, "cache.spot_path"},
		{"bad failure ttl", func(c *Config) { c.Cache.FailureTTL = "never" }, "failure_ttl"},
		{"bad split ratio", func(c *Config) {
			c.Splits = []SplitConfig{{Symbol: "GOOG", Date: "2022-07-15", Ratio: 1}}
		}, "ratio"},
		{"bad split date", func(c *Config) {
			c.Splits = []SplitConfig{{Symbol: "GOOG", Date: "07/15/2022", Ratio: 20}}
		}, "date"},
		{"bad dashboard port", func(c *Config) {
			c.Dashboard = DashboardConfig{Enabled: true, Port: 0}
		}, "dashboard.port"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
