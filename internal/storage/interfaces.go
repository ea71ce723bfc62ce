// Package storage defines the persistence contracts for the backtest: the
// trade ledger, the read-only historical chain data, and daily bars for the
// volatility-regime signal.
package storage

import (
	"context"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
)

// TradeStore persists the ledger for one DTE configuration: trades, their
// mark-to-market history, and (when leg recording is enabled) per-contract
// legs. History and legs are append-only.
type TradeStore interface {
	// CreateTrade inserts a new OPEN trade. Returns ErrDuplicateKey if the id
	// already exists, ErrInvalidInput if the trade fails validation.
	CreateTrade(ctx context.Context, trade *models.Trade) error

	// CloseTrade persists the terminal status and close-* fields of an
	// existing trade. Returns ErrNotFound if the id is unknown,
	// ErrInvalidInput if the trade is not terminal or fails validation.
	CloseTrade(ctx context.Context, trade *models.Trade) error

	// GetTrade retrieves one trade by id. Returns ErrNotFound if not exists.
	GetTrade(ctx context.Context, id string) (*models.Trade, error)

	// OpenTrades retrieves every OPEN trade, ordered by open date ASC.
	OpenTrades(ctx context.Context) ([]*models.Trade, error)

	// AllTrades retrieves the whole ledger, ordered by open date ASC.
	AllTrades(ctx context.Context) ([]*models.Trade, error)

	// LastOpenDate returns the most recent trade-open date in the ledger.
	// Returns ErrNotFound when no trade has ever been opened.
	LastOpenDate(ctx context.Context) (time.Time, error)

	// AppendHistory appends one mark-to-market observation. Returns
	// ErrInvalidInput if the row carries no trade id or date.
	AppendHistory(ctx context.Context, row *models.HistoryRow) error

	// HistoryForTrade retrieves a trade's observations, ordered by date ASC.
	HistoryForTrade(ctx context.Context, tradeID string) ([]*models.HistoryRow, error)

	// AppendLegs appends leg observations. Returns ErrInvalidInput if any leg
	// carries no trade id or date.
	AppendLegs(ctx context.Context, legs []*models.Leg) error

	// LegsForTrade retrieves a trade's legs, ordered by date ASC.
	LegsForTrade(ctx context.Context, tradeID string) ([]*models.Leg, error)
}

// ChainStore reads the historical options-chain snapshots (options_data) and,
// for the loader, writes them. All read methods are pure lookups over static
// data; a miss is an expected condition, not a fault.
type ChainStore interface {
	// QuoteDates retrieves the distinct quote dates, ordered ASC.
	QuoteDates(ctx context.Context) ([]time.Time, error)

	// NearestExpiration returns the earliest expiration available on the
	// quote date whose days-to-expiry is >= minDTE. Returns ErrNotFound when
	// none qualifies.
	NearestExpiration(ctx context.Context, quoteDate time.Time, minDTE float64) (time.Time, error)

	// ClosestToSpot retrieves up to limit rows for (quoteDate, expiration),
	// ordered by absolute strike distance from the underlying price, ties in
	// storage order. Returns ErrNotFound when the pair has no rows.
	ClosestToSpot(ctx context.Context, quoteDate, expiration time.Time, limit int) ([]*models.ChainRow, error)

	// DeltaTargeted returns the single row whose call delta and absolute put
	// delta are both under their ceilings, ranked by combined proximity to
	// the ceilings. Returns ErrNotFound when no row qualifies.
	DeltaTargeted(ctx context.Context, quoteDate, expiration time.Time, callCeiling, putCeiling float64) (*models.ChainRow, error)

	// StrikeQuote returns the underlying/call/put last prices of the exact
	// (quoteDate, strike, expiration) row. Returns ErrNotFound when absent;
	// callers treat that as "cannot price" and skip the update rather than
	// fabricate a value.
	StrikeQuote(ctx context.Context, quoteDate time.Time, strike float64, expiration time.Time) (*models.StrikeQuote, error)

	// InsertRows bulk-inserts snapshot rows (the chain loader's write path).
	// Returns ErrInvalidInput on rows without a quote date or expiration.
	InsertRows(ctx context.Context, rows []*models.ChainRow) error
}

// BarStore persists daily OHLCV bars used by the regime detector.
type BarStore interface {
	// InsertBars inserts or replaces bars keyed by (symbol, date). Returns
	// ErrInvalidInput on bars without a symbol or date.
	InsertBars(ctx context.Context, bars []*models.DailyBar) error

	// BarsForSymbol retrieves a symbol's bars, ordered by date ASC.
	// Returns ErrNotFound when the symbol has no bars.
	BarsForSymbol(ctx context.Context, symbol string) ([]*models.DailyBar, error)
}
