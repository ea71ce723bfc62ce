// Package dashboard serves a read-only JSON API over a finished backtest
// ledger: the trade list, per-trade history and legs, and the aggregate
// report. Charting and plotting tools consume it; nothing here writes.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/reporting"
	"github.com/eddiefleurent/stamford_straddler/internal/storage"
)

// Server hosts the ledger API.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	trades    storage.TradeStore
	reports   *reporting.Generator
	logger    *logrus.Logger
	addr      string
	authToken string
	dteTarget float64
}

// Config carries the server's listen address and optional access token.
type Config struct {
	Addr      string
	AuthToken string
	DTETarget float64
}

// NewServer wires the routes over the given ledger.
func NewServer(cfg Config, trades storage.TradeStore, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Server{
		router:    chi.NewRouter(),
		trades:    trades,
		reports:   reporting.NewGenerator(trades),
		logger:    logger,
		addr:      cfg.Addr,
		authToken: cfg.AuthToken,
		dteTarget: cfg.DTETarget,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/api/trades", s.handleGetTrades)
	s.router.Get("/api/trades/{id}", s.handleGetTrade)
	s.router.Get("/api/trades/{id}/history", s.handleGetHistory)
	s.router.Get("/api/trades/{id}/legs", s.handleGetLegs)
	s.router.Get("/api/summary", s.handleGetSummary)
	s.router.Get("/health", s.handleHealth)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token != s.authToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler exposes the route tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving the API until Shutdown or a listener error.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting ledger API on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	var trades interface{}
	var err error
	if r.URL.Query().Get("status") == "open" {
		trades, err = s.trades.OpenTrades(r.Context())
	} else {
		trades, err = s.trades.AllTrades(r.Context())
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to load trades")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(trades); err != nil {
		s.logger.WithError(err).Error("Failed to encode trades")
	}
}

func (s *Server) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	trade, err := s.trades.GetTrade(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		s.logger.WithError(err).Error("Failed to load trade")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(trade); err != nil {
		s.logger.WithError(err).Error("Failed to encode trade")
	}
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// 404 for unknown trades; an existing trade with no marks returns [].
	if _, err := s.trades.GetTrade(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		s.logger.WithError(err).Error("Failed to load trade")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	history, err := s.trades.HistoryForTrade(r.Context(), id)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load history")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []*models.HistoryRow{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(history); err != nil {
		s.logger.WithError(err).Error("Failed to encode history")
	}
}

func (s *Server) handleGetLegs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.trades.GetTrade(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		s.logger.WithError(err).Error("Failed to load trade")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	legs, err := s.trades.LegsForTrade(r.Context(), id)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load legs")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if legs == nil {
		legs = []*models.Leg{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(legs); err != nil {
		s.logger.WithError(err).Error("Failed to encode legs")
	}
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	report, err := s.reports.Generate(r.Context(), s.dteTarget)
	if err != nil {
		s.logger.WithError(err).Error("Failed to generate summary")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.logger.WithError(err).Error("Failed to encode summary")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.WithError(err).Error("Failed to encode health response")
	}
}
