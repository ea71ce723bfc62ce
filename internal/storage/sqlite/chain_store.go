package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/storage"
	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

// ChainStore implements storage.ChainStore over the options_data table.
type ChainStore struct {
	db *sql.DB
}

// Compile-time interface check.
var _ storage.ChainStore = (*ChainStore)(nil)

// NewChainStore creates the options_data schema when absent and returns a
// store over it.
func NewChainStore(ctx context.Context, db *sql.DB) (*ChainStore, error) {
	if err := createChainSchema(ctx, db); err != nil {
		return nil, err
	}
	return &ChainStore{db: db}, nil
}

const chainColumns = `quote_date, expire_date, strike, underlying_last, dte,
	strike_distance, strike_distance_pct,
	call_last, call_bid, call_ask, call_volume, call_open_interest,
	call_delta, call_gamma, call_theta, call_vega, call_iv,
	put_last, put_bid, put_ask, put_volume, put_open_interest,
	put_delta, put_gamma, put_theta, put_vega, put_iv`

// QuoteDates retrieves the distinct quote dates, ordered ASC.
func (s *ChainStore) QuoteDates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT quote_date FROM options_data ORDER BY quote_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("query quote dates: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan quote date: %w", err)
		}
		day, err := util.ParseDay(raw)
		if err != nil {
			return nil, fmt.Errorf("parse quote date %q: %w", raw, err)
		}
		out = append(out, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quote dates: %w", err)
	}
	return out, nil
}

// NearestExpiration returns the earliest expiration on the quote date with
// days-to-expiry >= minDTE. Returns ErrNotFound when none qualifies.
func (s *ChainStore) NearestExpiration(ctx context.Context, quoteDate time.Time, minDTE float64) (time.Time, error) {
	query := `SELECT expire_date FROM options_data
		WHERE quote_date = ? AND dte >= ?
		ORDER BY expire_date ASC LIMIT 1`
	var raw string
	err := s.db.QueryRowContext(ctx, query, util.FormatDay(quoteDate), minDTE).Scan(&raw)
	if err != nil {
		if isNotFoundError(err) {
			return time.Time{}, fmt.Errorf("no expiration with dte >= %v on %s: %w",
				minDTE, util.FormatDay(quoteDate), storage.ErrNotFound)
		}
		return time.Time{}, fmt.Errorf("nearest expiration: %w", err)
	}
	day, err := util.ParseDay(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse expire date %q: %w", raw, err)
	}
	return day, nil
}

// ClosestToSpot retrieves up to limit rows for (quoteDate, expiration)
// ordered by absolute strike distance from the underlying price, ties in
// storage order. Returns ErrNotFound when the pair has no rows.
func (s *ChainStore) ClosestToSpot(ctx context.Context, quoteDate, expiration time.Time, limit int) ([]*models.ChainRow, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", storage.ErrInvalidInput, limit)
	}
	query := fmt.Sprintf(`SELECT %s FROM options_data
		WHERE quote_date = ? AND expire_date = ?
		ORDER BY ABS(strike - underlying_last) ASC, rowid ASC
		LIMIT ?`, chainColumns)

	rows, err := s.queryRows(ctx, query, util.FormatDay(quoteDate), util.FormatDay(expiration), limit)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no chain rows on %s for expiry %s: %w",
			util.FormatDay(quoteDate), util.FormatDay(expiration), storage.ErrNotFound)
	}
	return rows, nil
}

// DeltaTargeted returns the single row whose call delta and absolute put
// delta are both under their ceilings, ranked by combined proximity to the
// ceilings. Returns ErrNotFound when no row qualifies.
func (s *ChainStore) DeltaTargeted(ctx context.Context, quoteDate, expiration time.Time, callCeiling, putCeiling float64) (*models.ChainRow, error) {
	query := fmt.Sprintf(`SELECT %s FROM options_data
		WHERE quote_date = ? AND expire_date = ?
		  AND call_delta > 0 AND call_delta < ?
		  AND put_delta < 0 AND ABS(put_delta) < ?
		ORDER BY (? - call_delta) + (? - ABS(put_delta)) ASC, rowid ASC
		LIMIT 1`, chainColumns)

	rows, err := s.queryRows(ctx, query,
		util.FormatDay(quoteDate), util.FormatDay(expiration),
		callCeiling, putCeiling, callCeiling, putCeiling)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no chain row under deltas call<%v |put|<%v on %s: %w",
			callCeiling, putCeiling, util.FormatDay(quoteDate), storage.ErrNotFound)
	}
	return rows[0], nil
}

// StrikeQuote returns the underlying/call/put last prices of the exact
// (quoteDate, strike, expiration) row. Returns ErrNotFound when absent.
func (s *ChainStore) StrikeQuote(ctx context.Context, quoteDate time.Time, strike float64, expiration time.Time) (*models.StrikeQuote, error) {
	query := `SELECT underlying_last, call_last, put_last FROM options_data
		WHERE quote_date = ? AND expire_date = ? AND strike = ?
		LIMIT 1`
	var q models.StrikeQuote
	err := s.db.QueryRowContext(ctx, query,
		util.FormatDay(quoteDate), util.FormatDay(expiration), strike).
		Scan(&q.Underlying, &q.CallPrice, &q.PutPrice)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("no chain row on %s strike %v expiry %s: %w",
				util.FormatDay(quoteDate), strike, util.FormatDay(expiration), storage.ErrNotFound)
		}
		return nil, fmt.Errorf("strike quote: %w", err)
	}
	return &q, nil
}

// InsertRows bulk-inserts snapshot rows atomically.
func (s *ChainStore) InsertRows(ctx context.Context, rows []*models.ChainRow) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if r == nil || r.QuoteDate.IsZero() || r.Expiration.IsZero() {
			return fmt.Errorf("%w: chain row requires a quote date and expiration", storage.ErrInvalidInput)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`INSERT INTO options_data (%s) VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, chainColumns)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare chain insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			util.FormatDay(r.QuoteDate), util.FormatDay(r.Expiration), r.Strike, r.UnderlyingLast, r.DTE,
			r.StrikeDistance, r.StrikeDistancePct,
			r.Call.Last, r.Call.Bid, r.Call.Ask, r.Call.Volume, r.Call.OpenInterest,
			r.Call.Delta, r.Call.Gamma, r.Call.Theta, r.Call.Vega, r.Call.IV,
			r.Put.Last, r.Put.Bid, r.Put.Ask, r.Put.Volume, r.Put.OpenInterest,
			r.Put.Delta, r.Put.Gamma, r.Put.Theta, r.Put.Vega, r.Put.IV,
		); err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("insert chain row %s/%s/%v: %w",
					util.FormatDay(r.QuoteDate), util.FormatDay(r.Expiration), r.Strike, storage.ErrDuplicateKey)
			}
			return fmt.Errorf("insert chain row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Truncate removes every snapshot row (used by the loader's --truncate).
func (s *ChainStore) Truncate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM options_data`); err != nil {
		return fmt.Errorf("truncate options_data: %w", err)
	}
	return nil
}

func (s *ChainStore) queryRows(ctx context.Context, query string, args ...any) ([]*models.ChainRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chain rows: %w", err)
	}
	defer rows.Close()

	var out []*models.ChainRow
	for rows.Next() {
		row, err := scanChainRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chain rows: %w", err)
	}
	return out, nil
}

func scanChainRow(rs rowScanner) (*models.ChainRow, error) {
	var (
		r            models.ChainRow
		quote, expir string
	)
	err := rs.Scan(&quote, &expir, &r.Strike, &r.UnderlyingLast, &r.DTE,
		&r.StrikeDistance, &r.StrikeDistancePct,
		&r.Call.Last, &r.Call.Bid, &r.Call.Ask, &r.Call.Volume, &r.Call.OpenInterest,
		&r.Call.Delta, &r.Call.Gamma, &r.Call.Theta, &r.Call.Vega, &r.Call.IV,
		&r.Put.Last, &r.Put.Bid, &r.Put.Ask, &r.Put.Volume, &r.Put.OpenInterest,
		&r.Put.Delta, &r.Put.Gamma, &r.Put.Theta, &r.Put.Vega, &r.Put.IV)
	if err != nil {
		return nil, fmt.Errorf("scan chain row: %w", err)
	}
	if r.QuoteDate, err = util.ParseDay(quote); err != nil {
		return nil, fmt.Errorf("parse quote date %q: %w", quote, err)
	}
	if r.Expiration, err = util.ParseDay(expir); err != nil {
		return nil, fmt.Errorf("parse expire date %q: %w", expir, err)
	}
	return &r, nil
}
