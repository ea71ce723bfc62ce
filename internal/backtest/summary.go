package backtest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

// Summary aggregates what a run did: how many dates were walked, trades
// opened and closed by reason, and the realized premium P/L. It exists for
// operator output; the ledger remains the source of truth.
type Summary struct {
	QuoteDates     int            `json:"quote_dates"`
	FirstDate      time.Time      `json:"first_date"`
	LastDate       time.Time      `json:"last_date"`
	TradesOpened   int            `json:"trades_opened"`
	TradesClosed   int            `json:"trades_closed"`
	ClosedByReason map[string]int `json:"closed_by_reason"`
	OpenAtEnd      int            `json:"open_at_end"`
	// RealizedPnL sums premium captured minus closing premium across priced
	// terminal trades. Invalid closes are excluded: they have no closing
	// prices, so counting them would book the full credit as profit.
	RealizedPnL float64 `json:"realized_pnl"`
}

// NewSummary seeds a summary for the ordered quote dates of a run.
func NewSummary(dates []time.Time) *Summary {
	s := &Summary{
		QuoteDates:     len(dates),
		ClosedByReason: make(map[string]int),
	}
	if len(dates) > 0 {
		s.FirstDate = dates[0]
		s.LastDate = dates[len(dates)-1]
	}
	return s
}

func (s *Summary) recordClose(trade *models.Trade) {
	s.TradesClosed++
	s.ClosedByReason[trade.CloseReason]++
	if trade.CloseReason != models.ReasonInvalidClose {
		s.RealizedPnL += trade.RealizedPnL()
	}
}

// String renders a one-line operator summary.
func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d dates (%s to %s): opened %d, closed %d",
		s.QuoteDates, util.FormatDay(s.FirstDate), util.FormatDay(s.LastDate),
		s.TradesOpened, s.TradesClosed)
	if len(s.ClosedByReason) > 0 {
		reasons := make([]string, 0, len(s.ClosedByReason))
		for reason := range s.ClosedByReason {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		parts := make([]string, 0, len(reasons))
		for _, reason := range reasons {
			parts = append(parts, fmt.Sprintf("%s: %d", reason, s.ClosedByReason[reason]))
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	fmt.Fprintf(&b, ", realized P/L %.2f, open at end %d", s.RealizedPnL, s.OpenAtEnd)
	return b.String()
}
