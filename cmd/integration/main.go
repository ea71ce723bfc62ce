// Command integration is an end-to-end smoke check: it synthesizes a few
// months of option-chain data, loads it into a throwaway SQLite file, runs
// the backtest against it, and verifies the ledger, reporting, regime, and
// dashboard layers against each other. Exit code 1 if any check fails.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/stamford_straddler/internal/backtest"
	"github.com/eddiefleurent/stamford_straddler/internal/dashboard"
	"github.com/eddiefleurent/stamford_straddler/internal/mock"
	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/regime"
	"github.com/eddiefleurent/stamford_straddler/internal/reporting"
	"github.com/eddiefleurent/stamford_straddler/internal/storage/sqlite"
	"github.com/eddiefleurent/stamford_straddler/internal/strategy"
)

const (
	dteTarget   = 30.0
	tradingDays = 70
)

type fixture struct {
	trades  *sqlite.TradeStore
	chain   *sqlite.ChainStore
	bars    *sqlite.BarStore
	dates   []time.Time
	summary *backtest.Summary
	ledger  []*models.Trade
}

func main() {
	fmt.Println("=== Stamford Straddler - End-to-End Smoke Check ===")
	fmt.Println()

	logger := log.New(os.Stdout, "[E2E] ", log.LstdFlags)

	dbPath := filepath.Join(os.TempDir(), fmt.Sprintf("straddler-e2e-%d.db", os.Getpid()))
	defer func() {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			logger.Printf("Warning: failed to clean up %s: %v", dbPath, err)
		}
	}()

	ctx := context.Background()
	db, err := sqlite.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	f := &fixture{dates: weekdays(time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), tradingDays)}
	if f.trades, err = sqlite.NewTradeStore(ctx, db, dteTarget); err != nil {
		log.Fatalf("Failed to open trade store: %v", err)
	}
	if f.chain, err = sqlite.NewChainStore(ctx, db); err != nil {
		log.Fatalf("Failed to open chain store: %v", err)
	}
	if f.bars, err = sqlite.NewBarStore(ctx, db); err != nil {
		log.Fatalf("Failed to open bar store: %v", err)
	}

	fmt.Println("✅ All components initialized successfully")
	fmt.Println()

	runChecks(ctx, f, logger)
}

func runChecks(ctx context.Context, f *fixture, logger *log.Logger) {
	checks := []struct {
		name string
		fn   func(context.Context, *fixture, *log.Logger) bool
	}{
		{"Chain Synthesis & Load", checkChainLoad},
		{"Backtest Run", checkBacktestRun},
		{"Ledger Invariants", checkLedgerInvariants},
		{"Regime Detector", checkRegimeDetector},
		{"Reporting & Export", checkReporting},
		{"Dashboard API", checkDashboardAPI},
	}

	passed := 0
	for i, c := range checks {
		banner := fmt.Sprintf("Test %d: %s", i+1, c.name)
		fmt.Println(banner)
		fmt.Println(strings.Repeat("=", len(banner)))
		if c.fn(ctx, f, logger) {
			passed++
			fmt.Println("✅ PASSED")
		} else {
			fmt.Println("❌ FAILED")
		}
		fmt.Println()
	}

	fmt.Println("=== Smoke Check Results ===")
	fmt.Printf("Tests Passed: %d/%d\n", passed, len(checks))
	if passed != len(checks) {
		fmt.Printf("⚠️  %d check(s) failed\n", len(checks)-passed)
		os.Exit(1)
	}
	fmt.Println("🎉 ALL CHECKS PASSED")
}

// checkChainLoad synthesizes the whole quote-date range and loads it through
// the same bulk-insert path cmd/chainload uses.
func checkChainLoad(ctx context.Context, f *fixture, logger *log.Logger) bool {
	gen := mock.NewChainGenerator()
	start := f.dates[0]
	expirations := []time.Time{
		start.AddDate(0, 0, 35),
		start.AddDate(0, 0, 63),
		start.AddDate(0, 0, 91),
	}

	total := 0
	for _, date := range f.dates {
		rows := gen.Snapshot(date, expirations)
		if err := f.chain.InsertRows(ctx, rows); err != nil {
			logger.Printf("Insert failed on %s: %v", date.Format("2006-01-02"), err)
			return false
		}
		total += len(rows)
		gen.Step()
	}
	logger.Printf("Loaded %d chain rows across %d dates", total, len(f.dates))

	if err := f.bars.InsertBars(ctx, gen.VolatilityBars("VIX", f.dates, 20)); err != nil {
		logger.Printf("Bar insert failed: %v", err)
		return false
	}

	got, err := f.chain.QuoteDates(ctx)
	if err != nil {
		logger.Printf("QuoteDates failed: %v", err)
		return false
	}
	if len(got) != len(f.dates) {
		logger.Printf("QuoteDates returned %d dates, want %d", len(got), len(f.dates))
		return false
	}
	return true
}

func checkBacktestRun(ctx context.Context, f *fixture, logger *log.Logger) bool {
	selector, err := strategy.NewSelector(strategy.PolicyNearestToMoney, f.chain, 0, 0)
	if err != nil {
		logger.Printf("Selector: %v", err)
		return false
	}
	engine, err := backtest.NewEngine(backtest.Deps{
		Trades:   f.trades,
		Chain:    f.chain,
		Selector: selector,
		Exits:    &strategy.ExitEvaluator{ProfitTakePct: 30, StopLossPct: 100},
		Gate:     &strategy.EntryGate{MaxOpenTrades: 1},
		Logger:   logger,
	}, backtest.Config{DTETarget: dteTarget, RecordLegs: true})
	if err != nil {
		logger.Printf("Engine: %v", err)
		return false
	}

	summary, err := engine.Run(ctx)
	if err != nil {
		logger.Printf("Run: %v", err)
		return false
	}
	logger.Printf("Summary: %s", summary)
	f.summary = summary

	// The first date offers a 35-DTE expiration, so at least one trade must
	// open, and the range outlives every expiration, so at least one closes.
	if summary.TradesOpened == 0 || summary.TradesClosed == 0 {
		logger.Printf("Expected trades to open and close: opened=%d closed=%d",
			summary.TradesOpened, summary.TradesClosed)
		return false
	}
	if summary.QuoteDates != len(f.dates) {
		logger.Printf("Summary covers %d dates, want %d", summary.QuoteDates, len(f.dates))
		return false
	}
	return true
}

func checkLedgerInvariants(ctx context.Context, f *fixture, logger *log.Logger) bool {
	all, err := f.trades.AllTrades(ctx)
	if err != nil {
		logger.Printf("AllTrades: %v", err)
		return false
	}
	f.ledger = all

	if len(all) != f.summary.TradesOpened {
		logger.Printf("Ledger has %d trades, summary opened %d", len(all), f.summary.TradesOpened)
		return false
	}

	open := 0
	for _, tr := range all {
		switch tr.Status {
		case models.StatusOpen:
			open++
			if tr.CloseReason != "" || !tr.CloseDate.IsZero() || tr.ClosingPremium != 0 {
				logger.Printf("Trade %s is OPEN but carries close fields", tr.ID)
				return false
			}
		case models.StatusClosed, models.StatusExpired:
			if tr.CloseReason == "" || tr.CloseDate.IsZero() {
				logger.Printf("Trade %s is %s but lacks close fields", tr.ID, tr.Status)
				return false
			}
		default:
			logger.Printf("Trade %s has unexpected status %s", tr.ID, tr.Status)
			return false
		}
		if tr.PremiumCaptured <= 0 {
			logger.Printf("Trade %s captured premium %v", tr.ID, tr.PremiumCaptured)
			return false
		}
	}
	if open > 1 {
		logger.Printf("%d trades open at once with max_open_trades=1", open)
		return false
	}
	if open != f.summary.OpenAtEnd {
		logger.Printf("Ledger has %d open, summary says %d", open, f.summary.OpenAtEnd)
		return false
	}
	logger.Printf("%d trades, %d still open, invariants hold", len(all), open)
	return true
}

func checkRegimeDetector(ctx context.Context, f *fixture, logger *log.Logger) bool {
	// The synthetic index never closes below 9, so a threshold of 5 must
	// read elevated on every stored date and quiet on a date with no bar.
	detector, err := regime.NewDetector(ctx, f.bars, "VIX", 5)
	if err != nil {
		logger.Printf("NewDetector: %v", err)
		return false
	}
	if !detector.Elevated(f.dates[0]) {
		logger.Printf("Expected %s to be elevated", f.dates[0].Format("2006-01-02"))
		return false
	}
	if detector.Elevated(f.dates[0].AddDate(-1, 0, 0)) {
		logger.Println("A date with no bar reported elevated")
		return false
	}
	logger.Printf("Regime detector answers for %d stored dates", len(f.dates))
	return true
}

func checkReporting(ctx context.Context, f *fixture, logger *log.Logger) bool {
	report, err := reporting.NewGenerator(f.trades).Generate(ctx, dteTarget)
	if err != nil {
		logger.Printf("Generate: %v", err)
		return false
	}
	if report.TotalTrades != len(f.ledger) {
		logger.Printf("Report counts %d trades, ledger has %d", report.TotalTrades, len(f.ledger))
		return false
	}

	csv := reporting.RenderCSV(f.ledger)
	lines := strings.Count(strings.TrimSpace(csv), "\n") + 1
	if lines != len(f.ledger)+1 {
		logger.Printf("CSV has %d lines, want %d", lines, len(f.ledger)+1)
		return false
	}

	md := reporting.RenderMarkdown(report)
	if !strings.Contains(md, "Backtest Ledger Report") {
		logger.Println("Markdown report missing its title")
		return false
	}
	logger.Printf("Report: %d trades, %.2f net premium P/L", report.TotalTrades, report.NetPremiumPnL)
	return true
}

func checkDashboardAPI(ctx context.Context, f *fixture, logger *log.Logger) bool {
	srvLogger := logrus.New()
	srv := dashboard.NewServer(dashboard.Config{Addr: ":0", DTETarget: dteTarget}, f.trades, srvLogger)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		logger.Printf("GET /health: %v", err)
		return false
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.Printf("GET /health returned %d", resp.StatusCode)
		return false
	}

	resp, err = http.Get(ts.URL + "/api/summary")
	if err != nil {
		logger.Printf("GET /api/summary: %v", err)
		return false
	}
	defer resp.Body.Close()

	var summary struct {
		TotalTrades  int
		ClosedTrades int
	}
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		logger.Printf("Decode summary: %v", err)
		return false
	}
	if summary.TotalTrades != len(f.ledger) || summary.ClosedTrades != f.summary.TradesClosed {
		logger.Printf("API summary %+v disagrees with the run (%d trades, %d closed)",
			summary, len(f.ledger), f.summary.TradesClosed)
		return false
	}
	logger.Printf("API serves %d trades, %d closed", summary.TotalTrades, summary.ClosedTrades)
	return true
}

func weekdays(start time.Time, count int) []time.Time {
	days := make([]time.Time, 0, count)
	for d := start; len(days) < count; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	return days
}
