package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/quantfold/leapsback/internal/backtest"
	"github.com/quantfold/leapsback/internal/cache"
	"github.com/quantfold/leapsback/internal/calendar"
	"github.com/quantfold/leapsback/internal/config"
	"github.com/quantfold/leapsback/internal/dashboard"
	"github.com/quantfold/leapsback/internal/engine"
	"github.com/quantfold/leapsback/internal/marketdata"
	"github.com/quantfold/leapsback/internal/reporting"
	"github.com/quantfold/leapsback/internal/spot"
)

type options struct {
	configPath   string
	strategy     string
	capital      float64
	commission   float64
	maxContracts int
	startYear    int
	endYear      int
	fixedStrikes bool
	quiet        bool
	cacheStats   bool
	csvPath      string
	markdownPath string
	serve        bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&opts.strategy, "strategy", "both", "Strategy to run: annual, quarterly, or both")
	flag.Float64Var(&opts.capital, "capital", 0, "Override starting capital")
	flag.Float64Var(&opts.commission, "commission", 0, "Override per-contract commission")
	flag.IntVar(&opts.maxContracts, "max-contracts", 0, "Override max contracts per trade (0 = uncapped)")
	flag.IntVar(&opts.startYear, "start-year", 0, "Override first backtest year")
	flag.IntVar(&opts.endYear, "end-year", 0, "Override last backtest year")
	flag.BoolVar(&opts.fixedStrikes, "fixed-strikes", false, "Lock the strike chosen by the first quarterly trade for the rest of the run")
	flag.BoolVar(&opts.quiet, "quiet", false, "Suppress the per-trade log, print the comparison table only")
	flag.BoolVar(&opts.cacheStats, "cache-stats", false, "Print cache hit/miss statistics after the run")
	flag.StringVar(&opts.csvPath, "csv", "", "Write per-period results as CSV to this file")
	flag.StringVar(&opts.markdownPath, "markdown", "", "Write the full report as Markdown to this file")
	flag.BoolVar(&opts.serve, "serve", false, "Serve the results dashboard after the run completes")
	flag.Parse()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyOverrides(cfg, &opts)

	logger := log.New(os.Stderr, "[BACKTEST] ", log.LstdFlags)
	if opts.quiet {
		logger.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, &opts, logger); err != nil {
		log.Fatalf("Backtest failed: %v", err)
	}
}

// applyOverrides copies explicitly-set flags over the loaded config so the
// file stays the single source of defaults.
func applyOverrides(cfg *config.Config, opts *options) {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["capital"] {
		cfg.Backtest.StartingCapital = opts.capital
	}
	if set["commission"] {
		cfg.Backtest.Commission = opts.commission
	}
	if set["max-contracts"] {
		cfg.Backtest.MaxContracts = opts.maxContracts
	}
	if set["start-year"] {
		cfg.Backtest.StartYear = opts.startYear
	}
	if set["end-year"] {
		cfg.Backtest.EndYear = opts.endYear
	}
	if opts.serve {
		cfg.Dashboard.Enabled = true
		if cfg.Dashboard.Port == 0 {
			cfg.Dashboard.Port = 9847
		}
	}
}

func run(ctx context.Context, cfg *config.Config, opts *options, logger *log.Logger) error {
	if opts.strategy != "annual" && opts.strategy != "quarterly" && opts.strategy != "both" {
		return fmt.Errorf("unknown strategy %q (want annual, quarterly, or both)", opts.strategy)
	}

	calStore, err := cache.NewJSONStore(cfg.Cache.CalendarPath)
	if err != nil {
		return fmt.Errorf("opening calendar cache: %w", err)
	}
	spotStore, err := cache.NewJSONStore(cfg.Cache.SpotPath)
	if err != nil {
		return fmt.Errorf("opening spot cache: %w", err)
	}

	terminal := marketdata.NewClient(cfg.Terminal.BaseURL, cfg.TerminalTimeout(), logger)
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := terminal.Status(probeCtx); err != nil {
		return fmt.Errorf("market-data terminal check failed: %w", err)
	}
	logger.Printf("Terminal connected at %s", cfg.Terminal.BaseURL)

	cal := calendar.NewService(terminal, calStore, logger)
	resolver := spot.NewResolver(spotStore, logger,
		spot.NewTiingoProvider(cfg.Providers.Tiingo.APIKey, cfg.Providers.Tiingo.TimeoutOrDefault()),
		spot.NewMarketStackProvider(cfg.Providers.MarketStack.APIKey, cfg.Providers.MarketStack.TimeoutOrDefault()),
	).WithFailureTTL(cfg.FailureTTL())

	splits := engine.NewSplitTable(cfg.SplitEvents())
	pricer := engine.NewPricer(terminal, logger)

	startYear := cfg.Backtest.StartYear
	endYear := cfg.EndYearOrNow(time.Now())
	logger.Printf("Backtesting %s %d-%d, strategy=%s, capital=$%.2f",
		cfg.Backtest.Symbol, startYear, endYear, opts.strategy, cfg.Backtest.StartingCapital)

	runnerCfg := backtest.Config{
		Symbol:          cfg.Backtest.Symbol,
		StartingCapital: cfg.Backtest.StartingCapital,
		Commission:      cfg.Backtest.Commission,
		MaxContracts:    cfg.Backtest.MaxContracts,
		FixedStrikes:    opts.fixedStrikes,
	}

	var annual, quarterly []backtest.YearResult
	if opts.strategy == "annual" || opts.strategy == "both" {
		strat := engine.NewAnnualJanuaryStrategy(terminal, pricer, splits, logger)
		annual, err = backtest.NewRunner(cal, resolver, strat, runnerCfg, logger).Run(ctx, startYear, endYear)
		if err != nil {
			return fmt.Errorf("annual run: %w", err)
		}
	}
	if opts.strategy == "quarterly" || opts.strategy == "both" {
		strat := engine.NewRollingFifteenMonthStrategy(terminal, pricer, splits, logger)
		quarterly, err = backtest.NewRunner(cal, resolver, strat, runnerCfg, logger).Run(ctx, startYear, endYear)
		if err != nil {
			return fmt.Errorf("quarterly run: %w", err)
		}
	}

	report := reporting.NewReport(cfg.Backtest.Symbol, annual, quarterly)
	reporting.WriteComparison(os.Stdout, report)
	if !opts.quiet {
		reporting.WriteTradeLog(os.Stdout, annual)
		reporting.WriteTradeLog(os.Stdout, quarterly)
	}

	if opts.csvPath != "" {
		if err := os.WriteFile(opts.csvPath, []byte(reporting.RenderCSV(report)), 0o644); err != nil {
			return fmt.Errorf("writing CSV report: %w", err)
		}
		logger.Printf("CSV report written to %s", opts.csvPath)
	}
	if opts.markdownPath != "" {
		if err := os.WriteFile(opts.markdownPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
			return fmt.Errorf("writing Markdown report: %w", err)
		}
		logger.Printf("Markdown report written to %s", opts.markdownPath)
	}

	if opts.cacheStats {
		printCacheStats(os.Stdout, calStore, spotStore)
	}

	if cfg.Dashboard.Enabled && opts.serve {
		return serveDashboard(ctx, cfg, report)
	}
	return nil
}

func printCacheStats(w io.Writer, calStore, spotStore cache.Store) {
	stats := map[string]cache.Stats{
		"calendar": calStore.Stats(),
		"spot":     spotStore.Stats(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	fmt.Fprintln(w, "Cache statistics:")
	if err := enc.Encode(stats); err != nil {
		fmt.Fprintf(w, "failed to encode cache stats: %v\n", err)
	}
}

// serveDashboard blocks until the process is signalled, then shuts the
// server down gracefully.
func serveDashboard(ctx context.Context, cfg *config.Config, report *reporting.Report) error {
	weblog := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Environment.LogLevel); err == nil {
		weblog.SetLevel(level)
	}

	server, err := dashboard.NewServer(dashboard.Config{Port: cfg.Dashboard.Port}, report, weblog)
	if err != nil {
		return fmt.Errorf("creating dashboard: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		weblog.Info("Shutting down dashboard")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
