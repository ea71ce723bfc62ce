// Command backtest runs the short-straddle lifecycle engine over a SQLite
// options-chain database, writing the trade ledger back into the same file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/eddiefleurent/stamford_straddler/internal/backtest"
	"github.com/eddiefleurent/stamford_straddler/internal/config"
	"github.com/eddiefleurent/stamford_straddler/internal/notify"
	"github.com/eddiefleurent/stamford_straddler/internal/regime"
	"github.com/eddiefleurent/stamford_straddler/internal/reporting"
	"github.com/eddiefleurent/stamford_straddler/internal/storage/sqlite"
	"github.com/eddiefleurent/stamford_straddler/internal/strategy"
)

type cliOptions struct {
	reset      bool
	exportCSV  string
	reportPath string
}

func main() {
	var (
		configPath    = flag.String("config", "", "Optional YAML config file; explicit flags override it")
		dbPath        = flag.String("db-path", "", "SQLite database with chain data and the ledger (required)")
		dte           = flag.Float64("dte", 30, "Minimum days-to-expiry for new trades")
		profitTake    = flag.Float64("profit-take", 30, "Close when premium decay reaches this percent of captured premium")
		stopLoss      = flag.Float64("stop-loss", 100, "Close when premium growth reaches this percent of captured premium")
		tradeDelay    = flag.Int("trade-delay", 0, "Minimum days between consecutive trade opens (0 disables)")
		maxOpenTrades = flag.Int("max-open-trades", 1, "Maximum concurrently open trades")
		closeAtExpiry = flag.Bool("close-at-expiry", false, "Hold every trade to expiration, ignoring P/L exits")
		selection     = flag.String("selection", "nearest", "Strike selection policy: nearest or delta")
		callDelta     = flag.Float64("call-delta", 0.5, "Call delta ceiling for the delta policy")
		putDelta      = flag.Float64("put-delta", 0.5, "Put |delta| ceiling for the delta policy")
		recordLegs    = flag.Bool("record-legs", false, "Write per-leg audit rows alongside the history table")
		adjustments   = flag.Bool("adjustments", false, "Enable the leg-imbalance exit rule")
		notifyEvery   = flag.Int("notify-every", 0, "Send a progress notification every N dates (0 disables)")
		reset         = flag.Bool("reset", false, "Drop this DTE's ledger tables before running")
		exportCSV     = flag.String("export-csv", "", "Write the trade ledger as CSV to this file after the run")
		reportPath    = flag.String("report", "", "Write a Markdown ledger report to this file after the run")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Explicitly-set flags override the file.
	overlay := map[string]func(){
		"db-path":         func() { cfg.Storage.Path = *dbPath },
		"dte":             func() { cfg.Strategy.DTETarget = *dte },
		"profit-take":     func() { cfg.Strategy.Exit.ProfitTakePct = *profitTake },
		"stop-loss":       func() { cfg.Strategy.Exit.StopLossPct = *stopLoss },
		"trade-delay":     func() { cfg.Strategy.Entry.TradeDelayDays = *tradeDelay },
		"max-open-trades": func() { cfg.Strategy.Entry.MaxOpenTrades = *maxOpenTrades },
		"close-at-expiry": func() { cfg.Strategy.Exit.CloseAtExpiry = *closeAtExpiry },
		"selection":       func() { cfg.Strategy.Selection = *selection },
		"call-delta":      func() { cfg.Strategy.CallDeltaCeiling = *callDelta },
		"put-delta":       func() { cfg.Strategy.PutDeltaCeiling = *putDelta },
		"record-legs":     func() { cfg.Strategy.RecordLegs = *recordLegs },
		"adjustments":     func() { cfg.Strategy.Exit.CheckAdjustments = *adjustments },
		"notify-every":    func() { cfg.Notify.NotifyEvery = *notifyEvery },
	}
	flag.Visit(func(f *flag.Flag) {
		if apply, ok := overlay[f.Name]; ok {
			apply()
		}
	})

	if cfg.Storage.Path == "" {
		logger.Fatal("--db-path is required (or storage.path in the config file)")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	// Graceful shutdown on Ctrl-C: the engine stops at the next quote date.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Println("Shutdown signal received, stopping after the current date...")
		cancel()
	}()

	opts := cliOptions{reset: *reset, exportCSV: *exportCSV, reportPath: *reportPath}
	if err := run(ctx, cfg, logger, opts); err != nil {
		logger.Fatalf("Backtest failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger, opts cliOptions) error {
	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Printf("Warning: closing database: %v", err)
		}
	}()

	trades, err := sqlite.NewTradeStore(ctx, db, cfg.Strategy.DTETarget)
	if err != nil {
		return fmt.Errorf("open trade store: %w", err)
	}
	chain, err := sqlite.NewChainStore(ctx, db)
	if err != nil {
		return fmt.Errorf("open chain store: %w", err)
	}

	if opts.reset {
		if err := trades.Reset(ctx); err != nil {
			return fmt.Errorf("reset ledger: %w", err)
		}
		logger.Printf("Ledger reset for DTE target %g", cfg.Strategy.DTETarget)
	}

	selector, err := strategy.NewSelector(strategy.SelectionPolicy(cfg.Strategy.Selection),
		chain, cfg.Strategy.CallDeltaCeiling, cfg.Strategy.PutDeltaCeiling)
	if err != nil {
		return fmt.Errorf("build selector: %w", err)
	}

	exits := &strategy.ExitEvaluator{
		ProfitTakePct:     cfg.Strategy.Exit.ProfitTakePct,
		StopLossPct:       cfg.Strategy.Exit.StopLossPct,
		CheckAdjustment:   cfg.Strategy.Exit.CheckAdjustments,
		CloseAtExpiryOnly: cfg.Strategy.Exit.CloseAtExpiry,
	}

	gate := &strategy.EntryGate{
		MaxOpenTrades:  cfg.Strategy.Entry.MaxOpenTrades,
		TradeDelayDays: cfg.Strategy.Entry.TradeDelayDays,
	}
	if cfg.Regime.Enabled {
		bars, err := sqlite.NewBarStore(ctx, db)
		if err != nil {
			return fmt.Errorf("open bar store: %w", err)
		}
		detector, err := regime.NewDetector(ctx, bars, cfg.Regime.Symbol, cfg.Regime.Threshold)
		if err != nil {
			return fmt.Errorf("build regime detector (run tickerload first?): %w", err)
		}
		gate.Elevated = detector.Elevated
		logger.Printf("Regime filter active: %s close >= %g pauses entries",
			detector.Symbol(), detector.Threshold())
	}

	var notifier notify.Notifier
	if cfg.NotifyEnabled() {
		telegram, err := notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			return fmt.Errorf("build telegram notifier: %w", err)
		}
		notifier = notify.NewBreaker(telegram)
		logger.Printf("Telegram notifications enabled (chat %d)", cfg.Notify.TelegramChatID)
	}

	engine, err := backtest.NewEngine(backtest.Deps{
		Trades:   trades,
		Chain:    chain,
		Selector: selector,
		Exits:    exits,
		Gate:     gate,
		Notifier: notifier,
		Logger:   logger,
	}, backtest.Config{
		DTETarget:   cfg.Strategy.DTETarget,
		RecordLegs:  cfg.Strategy.RecordLegs,
		NotifyEvery: cfg.Notify.NotifyEvery,
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	if _, err := engine.Run(ctx); err != nil {
		return err
	}

	if opts.exportCSV != "" {
		all, err := trades.AllTrades(ctx)
		if err != nil {
			return fmt.Errorf("load ledger for export: %w", err)
		}
		if err := os.WriteFile(opts.exportCSV, []byte(reporting.RenderCSV(all)), 0o600); err != nil {
			return fmt.Errorf("write CSV export: %w", err)
		}
		logger.Printf("Exported %d trades to %s", len(all), opts.exportCSV)
	}

	if opts.reportPath != "" {
		report, err := reporting.NewGenerator(trades).Generate(ctx, cfg.Strategy.DTETarget)
		if err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
		if err := os.WriteFile(opts.reportPath, []byte(reporting.RenderMarkdown(report)), 0o600); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Printf("Wrote ledger report to %s", opts.reportPath)
	}

	return nil
}
