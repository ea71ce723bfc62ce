// Command dashboard serves the read-only ledger API over a backtest database.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/stamford_straddler/internal/dashboard"
	"github.com/eddiefleurent/stamford_straddler/internal/storage/sqlite"
)

func main() {
	var (
		dbPath    = flag.String("db-path", "", "SQLite database holding the ledger (required)")
		dte       = flag.Float64("dte", 30, "DTE target whose ledger tables to serve")
		addr      = flag.String("addr", ":8080", "Listen address")
		authToken = flag.String("auth-token", "", "Require this token via X-Auth-Token or ?token= (empty disables auth)")
	)
	flag.Parse()

	logger := logrus.New()

	if *dbPath == "" {
		logger.Fatal("--db-path is required")
	}

	ctx := context.Background()
	db, err := sqlite.Open(*dbPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("Closing database")
		}
	}()

	trades, err := sqlite.NewTradeStore(ctx, db, *dte)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open trade store")
	}

	server := dashboard.NewServer(dashboard.Config{
		Addr:      *addr,
		AuthToken: *authToken,
		DTETarget: *dte,
	}, trades, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	case sig := <-sigChan:
		logger.Infof("Received %s, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Shutdown error")
		}
	}
}
