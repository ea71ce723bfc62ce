package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/eddiefleurent/stamford_straddler/internal/storage"
)

// tagPattern is the allow-list for schema-family tags. A tag is interpolated
// into DDL/DML identifiers, so anything outside this charset is rejected
// before it reaches a statement.
var tagPattern = regexp.MustCompile(`^[0-9]{1,4}(_[0-9]{1,4})?$`)

// TagForDTE derives the schema-family tag from the configured minimum
// days-to-expiry: 30 -> "30", 7.5 -> "7_5". Multiple DTE configurations
// coexist in one database file under distinct table families.
func TagForDTE(dte float64) (string, error) {
	if math.IsNaN(dte) || math.IsInf(dte, 0) || dte < 0 {
		return "", fmt.Errorf("%w: dte %v out of range", storage.ErrInvalidInput, dte)
	}
	tag := strings.ReplaceAll(strconv.FormatFloat(dte, 'f', -1, 64), ".", "_")
	if !tagPattern.MatchString(tag) {
		return "", fmt.Errorf("%w: dte %v produces unsafe table tag %q", storage.ErrInvalidInput, dte, tag)
	}
	return tag, nil
}

// ledgerTables are the table names of one DTE schema family.
type ledgerTables struct {
	trades  string
	legs    string
	history string
}

func tablesForTag(tag string) ledgerTables {
	return ledgerTables{
		trades:  "trades_dte_" + tag,
		legs:    "trade_legs_dte_" + tag,
		history: "trade_history_dte_" + tag,
	}
}

func createLedgerSchema(ctx context.Context, db *sql.DB, t ledgerTables) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			trade_id         TEXT PRIMARY KEY,
			status           TEXT NOT NULL,
			open_date        TEXT NOT NULL,
			expire_date      TEXT NOT NULL,
			dte              REAL NOT NULL,
			strike_price     REAL NOT NULL,
			open_underlying  REAL NOT NULL,
			open_call_price  REAL NOT NULL,
			open_put_price   REAL NOT NULL,
			premium_captured REAL NOT NULL,
			close_underlying REAL,
			close_call_price REAL,
			close_put_price  REAL,
			closing_premium  REAL,
			closed_at        TEXT,
			close_reason     TEXT
		)`, t.trades),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_status ON %s(status)`, t.trades, t.trades),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_open_date ON %s(open_date)`, t.trades, t.trades),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			leg_id             INTEGER PRIMARY KEY AUTOINCREMENT,
			trade_id           TEXT NOT NULL REFERENCES %s(trade_id),
			date               TEXT NOT NULL,
			expire_date        TEXT NOT NULL,
			strike             REAL NOT NULL,
			contract_type      TEXT NOT NULL,
			position_type      TEXT NOT NULL,
			leg_role           TEXT NOT NULL,
			open_premium       REAL NOT NULL,
			current_premium    REAL NOT NULL,
			open_underlying    REAL NOT NULL,
			current_underlying REAL NOT NULL,
			delta              REAL,
			gamma              REAL,
			vega               REAL,
			theta              REAL,
			iv                 REAL
		)`, t.legs, t.trades),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_trade ON %s(trade_id, date)`, t.legs, t.legs),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			history_id       INTEGER PRIMARY KEY AUTOINCREMENT,
			trade_id         TEXT NOT NULL REFERENCES %s(trade_id),
			date             TEXT NOT NULL,
			underlying_price REAL NOT NULL,
			call_price       REAL NOT NULL,
			put_price        REAL NOT NULL
		)`, t.history, t.trades),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_trade ON %s(trade_id, date)`, t.history, t.history),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create ledger schema: %w", err)
		}
	}
	return nil
}

func createChainSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS options_data (
			quote_date          TEXT NOT NULL,
			expire_date         TEXT NOT NULL,
			strike              REAL NOT NULL,
			underlying_last     REAL NOT NULL,
			dte                 REAL NOT NULL,
			strike_distance     REAL NOT NULL,
			strike_distance_pct REAL NOT NULL,
			call_last           REAL NOT NULL,
			call_bid            REAL NOT NULL,
			call_ask            REAL NOT NULL,
			call_volume         INTEGER NOT NULL DEFAULT 0,
			call_open_interest  INTEGER NOT NULL DEFAULT 0,
			call_delta          REAL NOT NULL,
			call_gamma          REAL NOT NULL,
			call_theta          REAL NOT NULL,
			call_vega           REAL NOT NULL,
			call_iv             REAL NOT NULL,
			put_last            REAL NOT NULL,
			put_bid             REAL NOT NULL,
			put_ask             REAL NOT NULL,
			put_volume          INTEGER NOT NULL DEFAULT 0,
			put_open_interest   INTEGER NOT NULL DEFAULT 0,
			put_delta           REAL NOT NULL,
			put_gamma           REAL NOT NULL,
			put_theta           REAL NOT NULL,
			put_vega            REAL NOT NULL,
			put_iv              REAL NOT NULL,
			PRIMARY KEY (quote_date, expire_date, strike)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_options_quote_date ON options_data(quote_date)`,
		`CREATE INDEX IF NOT EXISTS idx_options_expire_date ON options_data(expire_date)`,
		`CREATE INDEX IF NOT EXISTS idx_options_quote_expire ON options_data(quote_date, expire_date)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create chain schema: %w", err)
		}
	}
	return nil
}

func createBarSchema(ctx context.Context, db *sql.DB) error {
	stmt := `CREATE TABLE IF NOT EXISTS daily_bars (
		symbol TEXT NOT NULL,
		date   TEXT NOT NULL,
		open   REAL NOT NULL,
		high   REAL NOT NULL,
		low    REAL NOT NULL,
		close  REAL NOT NULL,
		volume INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (symbol, date)
	)`
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create bar schema: %w", err)
	}
	return nil
}
