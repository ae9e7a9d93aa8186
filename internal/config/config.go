// Package config provides configuration management for the backtester.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/quantfold/leapsback/internal/models"
)

const (
	// defaultFailureTTL is used when cache.failure_ttl is unset.
	defaultFailureTTL = time.Hour
	// defaultTerminalTimeout is used when terminal.timeout is unset.
	defaultTerminalTimeout = 60 * time.Second
	// defaultProviderTimeout is used when a provider timeout is unset.
	defaultProviderTimeout = 15 * time.Second
	// splitDateFormat is the wire format of splits[].date entries.
	splitDateFormat = "2006-01-02"
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Backtest    BacktestConfig    `yaml:"backtest"`
	Terminal    TerminalConfig    `yaml:"terminal"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Cache       CacheConfig       `yaml:"cache"`
	Splits      []SplitConfig     `yaml:"splits"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
}

// EnvironmentConfig defines the runtime environment settings.
type EnvironmentConfig struct {
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// BacktestConfig defines the run parameters.
type BacktestConfig struct {
	Symbol          string  `yaml:"symbol"`
	StartingCapital float64 `yaml:"starting_capital"`
	Commission      float64 `yaml:"commission_per_contract"`
	MaxContracts    int     `yaml:"max_contracts_per_trade"` // 0 = uncapped
	StartYear       int     `yaml:"start_year"`
	EndYear         int     `yaml:"end_year"` // 0 = current year
}

// TerminalConfig defines how to reach the local market-data terminal.
type TerminalConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// ProvidersConfig defines the spot-price provider chain.
type ProvidersConfig struct {
	Tiingo      ProviderConfig `yaml:"tiingo"`
	MarketStack ProviderConfig `yaml:"marketstack"`
}

// ProviderConfig is one spot provider's credentials and limits.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

// TimeoutOrDefault returns the provider's HTTP timeout.
func (p ProviderConfig) TimeoutOrDefault() time.Duration {
	return parseDurationOr(p.Timeout, defaultProviderTimeout)
}

// CacheConfig defines the on-disk cache files.
type CacheConfig struct {
	CalendarPath string `yaml:"calendar_path"`
	SpotPath     string `yaml:"spot_path"`
	FailureTTL   string `yaml:"failure_ttl"`
}

// SplitConfig is one known forward split, externalized from code.
type SplitConfig struct {
	Symbol      string `yaml:"symbol"`
	Date        string `yaml:"date"` // YYYY-MM-DD
	Ratio       int    `yaml:"ratio"`
	Description string `yaml:"description"`
}

// DashboardConfig defines the optional results web server.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables (API keys live in the environment).
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.Backtest.Symbol == "" {
		return fmt.Errorf("backtest.symbol is required")
	}
	if c.Backtest.StartingCapital <= 0 {
		return fmt.Errorf("backtest.starting_capital must be > 0")
	}
	if c.Backtest.Commission < 0 {
		return fmt.Errorf("backtest.commission_per_contract must be >= 0")
	}
	if c.Backtest.MaxContracts < 0 {
		return fmt.Errorf("backtest.max_contracts_per_trade must be >= 0")
	}
	if c.Backtest.StartYear < 2000 {
		return fmt.Errorf("backtest.start_year must be >= 2000")
	}
	if c.Backtest.EndYear != 0 && c.Backtest.EndYear < c.Backtest.StartYear {
		return fmt.Errorf("backtest.end_year (%d) must be >= start_year (%d)",
			c.Backtest.EndYear, c.Backtest.StartYear)
	}

	if c.Terminal.Timeout != "" {
		if _, err := time.ParseDuration(c.Terminal.Timeout); err != nil {
			return fmt.Errorf("terminal.timeout invalid: %w", err)
		}
	}
	for name, p := range map[string]ProviderConfig{
		"tiingo": c.Providers.Tiingo, "marketstack": c.Providers.MarketStack,
	} {
		if p.Timeout == "" {
			continue
		}
		if _, err := time.ParseDuration(p.Timeout); err != nil {
			return fmt.Errorf("providers.%s.timeout invalid: %w", name, err)
		}
	}

	if c.Cache.CalendarPath == "" {
		return fmt.Errorf("cache.calendar_path is required")
	}
	if c.Cache.SpotPath == "" {
		return fmt.Errorf("cache.spot_path is required")
	}
	if c.Cache.FailureTTL != "" {
		if _, err := time.ParseDuration(c.Cache.FailureTTL); err != nil {
			return fmt.Errorf("cache.failure_ttl invalid: %w", err)
		}
	}

	for i, s := range c.Splits {
		if s.Symbol == "" {
			return fmt.Errorf("splits[%d].symbol is required", i)
		}
		if s.Ratio < 2 {
			return fmt.Errorf("splits[%d].ratio must be >= 2", i)
		}
		if _, err := time.Parse(splitDateFormat, s.Date); err != nil {
			return fmt.Errorf("splits[%d].date invalid (want YYYY-MM-DD): %w", i, err)
		}
	}

	if c.Dashboard.Enabled && (c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535) {
		return fmt.Errorf("dashboard.port must be 1-65535 when the dashboard is enabled")
	}

	return nil
}

// EndYearOrNow resolves the configured end year, defaulting to the current
// calendar year.
func (c *Config) EndYearOrNow(now time.Time) int {
	if c.Backtest.EndYear != 0 {
		return c.Backtest.EndYear
	}
	return now.Year()
}

// TerminalTimeout returns the configured terminal timeout duration.
func (c *Config) TerminalTimeout() time.Duration {
	return parseDurationOr(c.Terminal.Timeout, defaultTerminalTimeout)
}

// FailureTTL returns how long temporary spot failures stay cached.
func (c *Config) FailureTTL() time.Duration {
	return parseDurationOr(c.Cache.FailureTTL, defaultFailureTTL)
}

// SplitEvents converts the configured split table into domain events.
// Validate has already checked the dates parse.
func (c *Config) SplitEvents() []models.SplitEvent {
	events := make([]models.SplitEvent, 0, len(c.Splits))
	for _, s := range c.Splits {
		date, err := time.Parse(splitDateFormat, s.Date)
		if err != nil {
			continue
		}
		events = append(events, models.SplitEvent{
			Symbol:      s.Symbol,
			Date:        date,
			Ratio:       s.Ratio,
			Description: s.Description,
		})
	}
	return events
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
