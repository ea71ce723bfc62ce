// Command tickerload downloads daily OHLCV history for one or more symbols
// and stores it in the daily_bars table the regime detector reads.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eddiefleurent/stamford_straddler/internal/marketdata"
	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/storage/sqlite"
)

func main() {
	var (
		dbPath  = flag.String("db-path", "", "SQLite database to store bars in (required)")
		symbols = flag.String("symbols", "", "Comma-separated feed symbols, e.g. vix,spy.us (required)")
		baseURL = flag.String("base-url", "https://stooq.com", "CSV bar feed base URL")
		timeout = flag.Duration("timeout", 10*time.Second, "Per-request HTTP timeout")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[tickerload] ", log.LstdFlags)

	if *dbPath == "" {
		logger.Fatal("--db-path is required")
	}
	list := splitSymbols(*symbols)
	if len(list) == 0 {
		logger.Fatal("--symbols is required")
	}

	if err := run(context.Background(), logger, *dbPath, list, *baseURL, *timeout); err != nil {
		logger.Fatalf("Download failed: %v", err)
	}
}

func run(ctx context.Context, logger *log.Logger, dbPath string, symbols []string, baseURL string, timeout time.Duration) error {
	client, err := marketdata.NewClient(baseURL, logger)
	if err != nil {
		return fmt.Errorf("build feed client: %w", err)
	}
	client = client.WithHTTPClient(&http.Client{Timeout: timeout})

	// Fetches run concurrently; the first failure cancels the rest.
	results := make([][]*models.DailyBar, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	for i, symbol := range symbols {
		g.Go(func() error {
			bars, err := client.DailyBars(gctx, symbol)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", symbol, err)
			}
			results[i] = bars
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	db, err := sqlite.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Printf("Warning: closing database: %v", err)
		}
	}()

	store, err := sqlite.NewBarStore(ctx, db)
	if err != nil {
		return fmt.Errorf("open bar store: %w", err)
	}

	// Inserts are serial: it is one database file.
	for i, bars := range results {
		if err := store.InsertBars(ctx, bars); err != nil {
			return fmt.Errorf("store %s: %w", symbols[i], err)
		}
		logger.Printf("%s: stored %d bars (%s to %s)",
			strings.ToUpper(symbols[i]), len(bars),
			bars[0].Date.Format("2006-01-02"), bars[len(bars)-1].Date.Format("2006-01-02"))
	}
	return nil
}

func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
