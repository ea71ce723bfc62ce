// Package backtest drives the trade lifecycle over the ordered historical
// quote dates: mark open trades to market, apply the exit rules, gate and
// open new entries, and persist every step to the ledger.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/notify"
	"github.com/eddiefleurent/stamford_straddler/internal/storage"
	"github.com/eddiefleurent/stamford_straddler/internal/strategy"
	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

// Config carries the engine's run parameters.
type Config struct {
	// DTETarget is the minimum days-to-expiry a new trade's expiration must
	// have on its open date.
	DTETarget float64
	// RecordLegs enables per-leg audit rows alongside the history table.
	RecordLegs bool
	// NotifyEvery sends a progress notification after every N processed
	// dates. Zero disables progress messages.
	NotifyEvery int
}

// Deps are the engine's collaborators. Trades, Chain, Selector, Exits and
// Gate are required; Notifier and Logger default to no-op and log.Default.
type Deps struct {
	Trades   storage.TradeStore
	Chain    storage.ChainStore
	Selector strategy.StrikeSelector
	Exits    *strategy.ExitEvaluator
	Gate     *strategy.EntryGate
	Notifier notify.Notifier
	Logger   *log.Logger
}

// Engine is the backtest driver. It is single-threaded: dates are processed
// strictly in ascending order because each entry decision depends on every
// earlier day's exit decisions.
type Engine struct {
	trades   storage.TradeStore
	chain    storage.ChainStore
	selector strategy.StrikeSelector
	exits    *strategy.ExitEvaluator
	gate     *strategy.EntryGate
	notifier notify.Notifier
	logger   *log.Logger
	cfg      Config
}

// NewEngine wires an engine from its collaborators.
func NewEngine(deps Deps, cfg Config) (*Engine, error) {
	if deps.Trades == nil || deps.Chain == nil || deps.Selector == nil || deps.Exits == nil || deps.Gate == nil {
		return nil, errors.New("backtest: trades, chain, selector, exits and gate are all required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Noop{}
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	return &Engine{
		trades:   deps.Trades,
		chain:    deps.Chain,
		selector: deps.Selector,
		exits:    deps.Exits,
		gate:     deps.Gate,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		cfg:      cfg,
	}, nil
}

// Run walks every quote date in the chain in ascending order. Data gaps are
// logged and isolated to their date; ledger write failures abort the run so
// the persisted state stays trustworthy.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	dates, err := e.chain.QuoteDates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load quote dates: %w", err)
	}
	if len(dates) == 0 {
		return nil, errors.New("chain data has no quote dates")
	}

	summary := NewSummary(dates)
	e.logger.Printf("Backtesting %d quote dates (%s to %s)",
		len(dates), util.FormatDay(dates[0]), util.FormatDay(dates[len(dates)-1]))

	for i, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest canceled: %w", err)
		}
		if err := e.processDate(ctx, date, summary); err != nil {
			return nil, fmt.Errorf("quote date %s: %w", util.FormatDay(date), err)
		}
		e.progress(ctx, i+1, summary)
	}

	open, err := e.trades.OpenTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("count open trades: %w", err)
	}
	summary.OpenAtEnd = len(open)

	e.logger.Printf("Backtest complete: %s", summary)
	e.send(ctx, "Backtest complete: "+summary.String())
	return summary, nil
}

// processDate runs one quote date: exits first, then at most one new entry.
func (e *Engine) processDate(ctx context.Context, date time.Time, summary *Summary) error {
	open, err := e.trades.OpenTrades(ctx)
	if err != nil {
		return fmt.Errorf("load open trades: %w", err)
	}

	stillOpen := 0
	for _, trade := range open {
		closed, err := e.touchTrade(ctx, date, trade, summary)
		if err != nil {
			return err
		}
		if !closed {
			stillOpen++
		}
	}

	return e.tryEntry(ctx, date, stillOpen, summary)
}

// touchTrade marks one open trade to market and applies the exit rules.
// The returned bool reports whether the trade left OPEN today.
func (e *Engine) touchTrade(ctx context.Context, date time.Time, trade *models.Trade, summary *Summary) (bool, error) {
	day := util.FormatDay(date)
	quote := e.resolveQuote(ctx, date, trade)
	resolved := quote != nil && quote.Premium() > 0

	verdict := e.exits.Evaluate(trade, date, quote)
	if !verdict.Close {
		if !resolved {
			e.logger.Printf("%s: trade %s unpriceable, skipping mark", day, shortID(trade.ID))
			return false, nil
		}
		if err := e.mark(ctx, date, trade, quote, models.LegRoleAudit); err != nil {
			return false, err
		}
		return false, nil
	}

	var underlying, call, put float64
	if verdict.Reason != models.ReasonInvalidClose {
		underlying, call, put = quote.Underlying, quote.CallPrice, quote.PutPrice
	}
	if err := trade.Close(verdict.To, verdict.Reason, date, underlying, call, put); err != nil {
		// The evaluator only proposes transitions the model allows, so this
		// is a data inconsistency; isolate it to the date.
		e.logger.Printf("%s: cannot close trade %s: %v", day, shortID(trade.ID), err)
		return false, nil
	}
	if err := e.trades.CloseTrade(ctx, trade); err != nil {
		return true, fmt.Errorf("close trade %s: %w", trade.ID, err)
	}
	if resolved {
		if err := e.mark(ctx, date, trade, quote, models.LegRoleClose); err != nil {
			return true, err
		}
	}

	summary.recordClose(trade)
	e.logger.Printf("%s: exit signal for trade %s: %s (%s)", day, shortID(trade.ID), verdict.Reason, verdict.Detail)
	return true, nil
}

// resolveQuote fetches the day's prices for the trade's exact strike and
// expiration. Any miss yields nil: the caller must not fabricate a value.
func (e *Engine) resolveQuote(ctx context.Context, date time.Time, trade *models.Trade) *models.StrikeQuote {
	quote, err := e.chain.StrikeQuote(ctx, date, trade.Strike, trade.Expiration)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logger.Printf("%s: chain lookup failed for trade %s: %v",
				util.FormatDay(date), shortID(trade.ID), err)
		}
		return nil
	}
	return quote
}

// mark appends the day's history row (and optionally leg rows) for a trade.
func (e *Engine) mark(ctx context.Context, date time.Time, trade *models.Trade, quote *models.StrikeQuote, role models.LegRole) error {
	row := &models.HistoryRow{
		TradeID:    trade.ID,
		Date:       date,
		Underlying: quote.Underlying,
		CallPrice:  quote.CallPrice,
		PutPrice:   quote.PutPrice,
	}
	if err := e.trades.AppendHistory(ctx, row); err != nil {
		return fmt.Errorf("append history for trade %s: %w", trade.ID, err)
	}
	if e.cfg.RecordLegs {
		legs := trade.LegPair(role, date, quote.Underlying, quote.CallPrice, quote.PutPrice, nil, nil)
		if err := e.trades.AppendLegs(ctx, legs); err != nil {
			return fmt.Errorf("append legs for trade %s: %w", trade.ID, err)
		}
	}
	return nil
}

// tryEntry opens at most one new trade on the date, when the gate allows
// and the chain offers a qualifying straddle.
func (e *Engine) tryEntry(ctx context.Context, date time.Time, openCount int, summary *Summary) error {
	day := util.FormatDay(date)

	lastOpen, err := e.trades.LastOpenDate(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load last open date: %w", err)
	}

	if allow, reason := e.gate.Allow(date, openCount, lastOpen); !allow {
		e.logger.Printf("%s: entry blocked: %s", day, reason)
		return nil
	}

	expiration, err := e.chain.NearestExpiration(ctx, date, e.cfg.DTETarget)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			e.logger.Printf("%s: no expiration with DTE >= %v, skipping entry", day, e.cfg.DTETarget)
		} else {
			e.logger.Printf("%s: expiration lookup failed, skipping entry: %v", day, err)
		}
		return nil
	}

	row, err := e.selector.Select(ctx, date, expiration)
	if err != nil {
		if errors.Is(err, strategy.ErrNoQualifyingOptions) {
			e.logger.Printf("%s: %v, skipping entry", day, err)
		} else {
			e.logger.Printf("%s: strike selection failed, skipping entry: %v", day, err)
		}
		return nil
	}

	trade, err := models.NewTrade(date, row.Expiration, row.Strike, row.UnderlyingLast, row.Call.Last, row.Put.Last)
	if err != nil {
		e.logger.Printf("%s: cannot build trade from chain row: %v", day, err)
		return nil
	}

	if err := e.trades.CreateTrade(ctx, trade); err != nil {
		return fmt.Errorf("create trade: %w", err)
	}
	first := &models.HistoryRow{
		TradeID:    trade.ID,
		Date:       date,
		Underlying: row.UnderlyingLast,
		CallPrice:  row.Call.Last,
		PutPrice:   row.Put.Last,
	}
	if err := e.trades.AppendHistory(ctx, first); err != nil {
		return fmt.Errorf("append opening history for trade %s: %w", trade.ID, err)
	}
	if e.cfg.RecordLegs {
		legs := trade.LegPair(models.LegRoleOpen, date, row.UnderlyingLast,
			row.Call.Last, row.Put.Last, row.Call.Greeks(), row.Put.Greeks())
		if err := e.trades.AppendLegs(ctx, legs); err != nil {
			return fmt.Errorf("append opening legs for trade %s: %w", trade.ID, err)
		}
	}

	summary.TradesOpened++
	e.logger.Printf("%s: opened trade %s: strike %.2f exp %s premium %.2f",
		day, shortID(trade.ID), trade.Strike, util.FormatDay(trade.Expiration), trade.PremiumCaptured)
	return nil
}

func (e *Engine) progress(ctx context.Context, done int, summary *Summary) {
	if e.cfg.NotifyEvery <= 0 || done%e.cfg.NotifyEvery != 0 || done == summary.QuoteDates {
		return
	}
	e.send(ctx, fmt.Sprintf("Backtest progress: %d/%d dates, %d opened, %d closed",
		done, summary.QuoteDates, summary.TradesOpened, summary.TradesClosed))
}

func (e *Engine) send(ctx context.Context, message string) {
	if err := e.notifier.Notify(ctx, message); err != nil {
		e.logger.Printf("Warning: notification failed: %v", err)
	}
}

// shortID returns a truncated ID string, safely handling IDs shorter than 8 characters
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
