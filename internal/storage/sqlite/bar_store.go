package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/storage"
	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

// BarStore implements storage.BarStore over the daily_bars table.
type BarStore struct {
	db *sql.DB
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// NewBarStore creates the daily_bars schema when absent and returns a store
// over it.
func NewBarStore(ctx context.Context, db *sql.DB) (*BarStore, error) {
	if err := createBarSchema(ctx, db); err != nil {
		return nil, err
	}
	return &BarStore{db: db}, nil
}

// InsertBars upserts bars keyed on (symbol, date). Re-downloading a range
// overwrites rather than duplicating.
func (s *BarStore) InsertBars(ctx context.Context, bars []*models.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}
	for _, b := range bars {
		if b == nil || b.Symbol == "" || b.Date.IsZero() {
			return fmt.Errorf("%w: daily bar requires a symbol and date", storage.ErrInvalidInput)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO daily_bars
		(symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare bar insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			strings.ToUpper(b.Symbol), util.FormatDay(b.Date),
			b.Open, b.High, b.Low, b.Close, b.Volume,
		); err != nil {
			return fmt.Errorf("insert bar %s/%s: %w", b.Symbol, util.FormatDay(b.Date), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// BarsForSymbol retrieves every stored bar for the symbol ordered by date
// ASC. Returns ErrNotFound when the symbol has no bars.
func (s *BarStore) BarsForSymbol(ctx context.Context, symbol string) ([]*models.DailyBar, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, date, open, high, low, close, volume
		FROM daily_bars WHERE symbol = ? ORDER BY date ASC`, strings.ToUpper(symbol))
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var out []*models.DailyBar
	for rows.Next() {
		var (
			b   models.DailyBar
			raw string
		)
		if err := rows.Scan(&b.Symbol, &raw, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		if b.Date, err = util.ParseDay(raw); err != nil {
			return nil, fmt.Errorf("parse bar date %q: %w", raw, err)
		}
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bars: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no bars for symbol %s: %w", symbol, storage.ErrNotFound)
	}
	return out, nil
}
