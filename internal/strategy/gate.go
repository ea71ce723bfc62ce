package strategy

import (
	"fmt"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

// RegimePredicate reports whether a date sits inside a detected
// high-volatility regime. The gate refuses new entries on such dates; the
// signal itself is owned by the caller.
type RegimePredicate func(date time.Time) bool

// EntryGate decides whether a new trade may open on a quote date. It owns
// no state: the caller supplies the current OPEN count and the most recent
// open date.
type EntryGate struct {
	// MaxOpenTrades caps concurrent OPEN trades.
	MaxOpenTrades int
	// TradeDelayDays is the minimum calendar-day spacing between opens.
	// Zero means no spacing requirement.
	TradeDelayDays int
	// Elevated, when set, vetoes entries regardless of the other checks.
	Elevated RegimePredicate
}

// Allow reports whether a new trade may open on quoteDate and why not when
// denied. lastOpen is the zero time when no trade has ever opened.
func (g *EntryGate) Allow(quoteDate time.Time, openCount int, lastOpen time.Time) (bool, string) {
	if g.Elevated != nil && g.Elevated(quoteDate) {
		return false, "high volatility regime"
	}
	if openCount >= g.MaxOpenTrades {
		return false, fmt.Sprintf("max open trades reached (%d/%d)", openCount, g.MaxOpenTrades)
	}
	if g.TradeDelayDays > 0 && !lastOpen.IsZero() {
		elapsed := util.DaysBetween(lastOpen, quoteDate)
		if elapsed < g.TradeDelayDays {
			return false, fmt.Sprintf("trade delay not met (%d of %d days since %s)",
				elapsed, g.TradeDelayDays, util.FormatDay(lastOpen))
		}
	}
	return true, "entry conditions met"
}
