package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/storage"
	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

// TradeStore implements storage.TradeStore on one DTE schema family.
type TradeStore struct {
	db     *sql.DB
	tables ledgerTables
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// NewTradeStore binds a store to the schema family for the given DTE,
// creating the family's tables when they do not exist yet.
func NewTradeStore(ctx context.Context, db *sql.DB, dte float64) (*TradeStore, error) {
	tag, err := TagForDTE(dte)
	if err != nil {
		return nil, err
	}
	s := &TradeStore{db: db, tables: tablesForTag(tag)}
	if err := createLedgerSchema(ctx, db, s.tables); err != nil {
		return nil, err
	}
	return s, nil
}

// Reset drops and recreates the schema family. Reruns against the same
// database are only idempotent after this clean slate.
func (s *TradeStore) Reset(ctx context.Context) error {
	for _, table := range []string{s.tables.history, s.tables.legs, s.tables.trades} {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return createLedgerSchema(ctx, s.db, s.tables)
}

const tradeColumns = `trade_id, status, open_date, expire_date, dte, strike_price,
	open_underlying, open_call_price, open_put_price, premium_captured,
	close_underlying, close_call_price, close_put_price, closing_premium,
	closed_at, close_reason`

// CreateTrade inserts a new OPEN trade. Returns ErrDuplicateKey if the id
// already exists, ErrInvalidInput if the trade fails validation.
func (s *TradeStore) CreateTrade(ctx context.Context, trade *models.Trade) error {
	if trade == nil {
		return fmt.Errorf("%w: nil trade", storage.ErrInvalidInput)
	}
	if err := trade.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	if !trade.IsOpen() {
		return fmt.Errorf("%w: new trades must be OPEN, got %s", storage.ErrInvalidInput, trade.Status)
	}

	query := fmt.Sprintf(`INSERT INTO %s (
		trade_id, status, open_date, expire_date, dte, strike_price,
		open_underlying, open_call_price, open_put_price, premium_captured
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.tables.trades)

	_, err := s.db.ExecContext(ctx, query,
		trade.ID, string(trade.Status), util.FormatDay(trade.OpenDate), util.FormatDay(trade.Expiration),
		trade.OpenDTE, trade.Strike,
		trade.OpenUnderlying, trade.OpenCallPrice, trade.OpenPutPrice, trade.PremiumCaptured,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("insert trade %s: %w", trade.ID, storage.ErrDuplicateKey)
		}
		return fmt.Errorf("insert trade %s: %w", trade.ID, err)
	}
	return nil
}

// CloseTrade persists the terminal status and close-* fields of a trade that
// is still OPEN in the ledger. Returns ErrNotFound if no OPEN trade with the
// id exists, ErrInvalidInput if the trade is not terminal or inconsistent.
func (s *TradeStore) CloseTrade(ctx context.Context, trade *models.Trade) error {
	if trade == nil {
		return fmt.Errorf("%w: nil trade", storage.ErrInvalidInput)
	}
	if !trade.Status.Terminal() {
		return fmt.Errorf("%w: close requires a terminal status, got %s", storage.ErrInvalidInput, trade.Status)
	}
	if err := trade.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	query := fmt.Sprintf(`UPDATE %s SET
		status = ?, close_underlying = ?, close_call_price = ?, close_put_price = ?,
		closing_premium = ?, closed_at = ?, close_reason = ?
	WHERE trade_id = ? AND status = ?`, s.tables.trades)

	res, err := s.db.ExecContext(ctx, query,
		string(trade.Status), trade.CloseUnderlying, trade.CloseCallPrice, trade.ClosePutPrice,
		trade.ClosingPremium, util.FormatDay(trade.CloseDate), trade.CloseReason,
		trade.ID, string(models.StatusOpen),
	)
	if err != nil {
		return fmt.Errorf("close trade %s: %w", trade.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close trade %s: %w", trade.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("close trade %s: no open trade: %w", trade.ID, storage.ErrNotFound)
	}
	return nil
}

// GetTrade retrieves one trade by id. Returns ErrNotFound if not exists.
func (s *TradeStore) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE trade_id = ?`, tradeColumns, s.tables.trades)
	trade, err := scanTrade(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("trade %s: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("get trade %s: %w", id, err)
	}
	return trade, nil
}

// OpenTrades retrieves every OPEN trade, ordered by open date ASC.
func (s *TradeStore) OpenTrades(ctx context.Context) ([]*models.Trade, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE status = ? ORDER BY open_date ASC, rowid ASC`,
		tradeColumns, s.tables.trades)
	return s.queryTrades(ctx, query, string(models.StatusOpen))
}

// AllTrades retrieves the whole ledger, ordered by open date ASC.
func (s *TradeStore) AllTrades(ctx context.Context) ([]*models.Trade, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY open_date ASC, rowid ASC`,
		tradeColumns, s.tables.trades)
	return s.queryTrades(ctx, query)
}

// LastOpenDate returns the most recent trade-open date. Returns ErrNotFound
// when the ledger is empty.
func (s *TradeStore) LastOpenDate(ctx context.Context) (time.Time, error) {
	query := fmt.Sprintf(`SELECT open_date FROM %s ORDER BY open_date DESC LIMIT 1`, s.tables.trades)
	var raw string
	if err := s.db.QueryRowContext(ctx, query).Scan(&raw); err != nil {
		if isNotFoundError(err) {
			return time.Time{}, storage.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("last open date: %w", err)
	}
	day, err := util.ParseDay(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("last open date: parse %q: %w", raw, err)
	}
	return day, nil
}

// AppendHistory appends one mark-to-market observation and stamps the row's
// generated id.
func (s *TradeStore) AppendHistory(ctx context.Context, row *models.HistoryRow) error {
	if row == nil || strings.TrimSpace(row.TradeID) == "" || row.Date.IsZero() {
		return fmt.Errorf("%w: history row requires a trade id and date", storage.ErrInvalidInput)
	}
	query := fmt.Sprintf(`INSERT INTO %s (trade_id, date, underlying_price, call_price, put_price)
		VALUES (?, ?, ?, ?, ?)`, s.tables.history)
	res, err := s.db.ExecContext(ctx, query,
		row.TradeID, util.FormatDay(row.Date), row.Underlying, row.CallPrice, row.PutPrice)
	if err != nil {
		return fmt.Errorf("append history for trade %s: %w", row.TradeID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		row.ID = id
	}
	return nil
}

// HistoryForTrade retrieves a trade's observations, ordered by date ASC.
func (s *TradeStore) HistoryForTrade(ctx context.Context, tradeID string) ([]*models.HistoryRow, error) {
	query := fmt.Sprintf(`SELECT history_id, trade_id, date, underlying_price, call_price, put_price
		FROM %s WHERE trade_id = ? ORDER BY date ASC, history_id ASC`, s.tables.history)
	rows, err := s.db.QueryContext(ctx, query, tradeID)
	if err != nil {
		return nil, fmt.Errorf("history for trade %s: %w", tradeID, err)
	}
	defer rows.Close()

	var out []*models.HistoryRow
	for rows.Next() {
		var (
			h   models.HistoryRow
			raw string
		)
		if err := rows.Scan(&h.ID, &h.TradeID, &raw, &h.Underlying, &h.CallPrice, &h.PutPrice); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if h.Date, err = util.ParseDay(raw); err != nil {
			return nil, fmt.Errorf("parse history date %q: %w", raw, err)
		}
		out = append(out, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return out, nil
}

// AppendLegs appends leg observations atomically (one logical unit per pair).
func (s *TradeStore) AppendLegs(ctx context.Context, legs []*models.Leg) error {
	if len(legs) == 0 {
		return nil
	}
	for _, leg := range legs {
		if leg == nil || strings.TrimSpace(leg.TradeID) == "" || leg.Date.IsZero() {
			return fmt.Errorf("%w: leg requires a trade id and date", storage.ErrInvalidInput)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`INSERT INTO %s (
		trade_id, date, expire_date, strike, contract_type, position_type, leg_role,
		open_premium, current_premium, open_underlying, current_underlying,
		delta, gamma, vega, theta, iv
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.tables.legs)

	for _, leg := range legs {
		var delta, gamma, vega, theta, iv any
		if leg.Greeks != nil {
			delta, gamma, vega, theta, iv = leg.Greeks.Delta, leg.Greeks.Gamma, leg.Greeks.Vega, leg.Greeks.Theta, leg.Greeks.IV
		}
		if _, err := tx.ExecContext(ctx, query,
			leg.TradeID, util.FormatDay(leg.Date), util.FormatDay(leg.Expiration), leg.Strike,
			string(leg.Contract), string(leg.Position), string(leg.Role),
			leg.OpenPremium, leg.CurrentPremium, leg.OpenUnderlying, leg.CurrentUnderlying,
			delta, gamma, vega, theta, iv,
		); err != nil {
			return fmt.Errorf("insert leg for trade %s: %w", leg.TradeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LegsForTrade retrieves a trade's legs, ordered by date ASC.
func (s *TradeStore) LegsForTrade(ctx context.Context, tradeID string) ([]*models.Leg, error) {
	query := fmt.Sprintf(`SELECT leg_id, trade_id, date, expire_date, strike, contract_type,
		position_type, leg_role, open_premium, current_premium, open_underlying, current_underlying,
		delta, gamma, vega, theta, iv
	FROM %s WHERE trade_id = ? ORDER BY date ASC, leg_id ASC`, s.tables.legs)

	rows, err := s.db.QueryContext(ctx, query, tradeID)
	if err != nil {
		return nil, fmt.Errorf("legs for trade %s: %w", tradeID, err)
	}
	defer rows.Close()

	var out []*models.Leg
	for rows.Next() {
		leg, err := scanLeg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, leg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leg rows: %w", err)
	}
	return out, nil
}

func (s *TradeStore) queryTrades(ctx context.Context, query string, args ...any) ([]*models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []*models.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return out, nil
}

func scanTrade(rs rowScanner) (*models.Trade, error) {
	var (
		t                      models.Trade
		status, openD, expireD string
		closeUnd, closeCall    sql.NullFloat64
		closePut, closingPrem  sql.NullFloat64
		closedAt, closeReason  sql.NullString
	)
	err := rs.Scan(&t.ID, &status, &openD, &expireD, &t.OpenDTE, &t.Strike,
		&t.OpenUnderlying, &t.OpenCallPrice, &t.OpenPutPrice, &t.PremiumCaptured,
		&closeUnd, &closeCall, &closePut, &closingPrem, &closedAt, &closeReason)
	if err != nil {
		return nil, err
	}
	t.Status = models.TradeStatus(status)
	if t.OpenDate, err = util.ParseDay(openD); err != nil {
		return nil, fmt.Errorf("parse open_date %q: %w", openD, err)
	}
	if t.Expiration, err = util.ParseDay(expireD); err != nil {
		return nil, fmt.Errorf("parse expire_date %q: %w", expireD, err)
	}
	if closedAt.Valid {
		if t.CloseDate, err = util.ParseDay(closedAt.String); err != nil {
			return nil, fmt.Errorf("parse closed_at %q: %w", closedAt.String, err)
		}
	}
	t.CloseReason = closeReason.String
	t.CloseUnderlying = closeUnd.Float64
	t.CloseCallPrice = closeCall.Float64
	t.ClosePutPrice = closePut.Float64
	t.ClosingPremium = closingPrem.Float64
	return &t, nil
}

func scanLeg(rs rowScanner) (*models.Leg, error) {
	var (
		l                         models.Leg
		date, expire              string
		contract, position, role  string
		delta, gamma, vega, theta sql.NullFloat64
		iv                        sql.NullFloat64
	)
	err := rs.Scan(&l.ID, &l.TradeID, &date, &expire, &l.Strike, &contract,
		&position, &role, &l.OpenPremium, &l.CurrentPremium, &l.OpenUnderlying, &l.CurrentUnderlying,
		&delta, &gamma, &vega, &theta, &iv)
	if err != nil {
		return nil, fmt.Errorf("scan leg row: %w", err)
	}
	l.Contract = models.ContractType(contract)
	l.Position = models.PositionType(position)
	l.Role = models.LegRole(role)
	if l.Date, err = util.ParseDay(date); err != nil {
		return nil, fmt.Errorf("parse leg date %q: %w", date, err)
	}
	if l.Expiration, err = util.ParseDay(expire); err != nil {
		return nil, fmt.Errorf("parse leg expire_date %q: %w", expire, err)
	}
	if delta.Valid || gamma.Valid || vega.Valid || theta.Valid || iv.Valid {
		l.Greeks = &models.Greeks{
			Delta: delta.Float64,
			Gamma: gamma.Float64,
			Vega:  vega.Float64,
			Theta: theta.Float64,
			IV:    iv.Float64,
		}
	}
	return &l, nil
}
