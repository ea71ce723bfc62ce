package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/storage"
)

// Generator produces reports from a trade ledger.
type Generator struct {
	trades storage.TradeStore
	now    func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator over the given ledger.
func NewGenerator(trades storage.TradeStore) *Generator {
	return &Generator{
		trades: trades,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate reads the full ledger and aggregates it into a Report.
func (g *Generator) Generate(ctx context.Context, dteTarget float64) (*Report, error) {
	trades, err := g.trades.AllTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}

	report := &Report{
		GeneratedAt: g.now(),
		DTETarget:   dteTarget,
		TotalTrades: len(trades),
	}

	byReason := make(map[string]int)
	priced := 0
	for _, trade := range trades {
		if report.FirstOpenDate.IsZero() || trade.OpenDate.Before(report.FirstOpenDate) {
			report.FirstOpenDate = trade.OpenDate
		}

		if trade.IsOpen() {
			report.OpenTrades++
			continue
		}

		report.ClosedTrades++
		byReason[trade.CloseReason]++
		if trade.CloseDate.After(report.LastCloseDate) {
			report.LastCloseDate = trade.CloseDate
		}

		if trade.CloseReason == models.ReasonInvalidClose {
			report.InvalidCloses++
			continue
		}

		priced++
		pnl := trade.RealizedPnL()
		report.NetPremiumPnL += pnl
		if pnl > 0 {
			report.Wins++
		} else {
			report.Losses++
		}
	}

	if priced > 0 {
		report.WinRatePct = float64(report.Wins) / float64(priced) * 100
		report.AveragePnL = report.NetPremiumPnL / float64(priced)
	}

	reasons := make([]string, 0, len(byReason))
	for reason := range byReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		report.ClosedByReason = append(report.ClosedByReason, ReasonCount{Reason: reason, Count: byReason[reason]})
	}

	return report, nil
}
