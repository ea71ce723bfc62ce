package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
)

// adjustmentRatio is the leg-imbalance threshold: when the expensive leg
// costs more than this multiple of the cheap leg, the position should be
// restructured rather than held.
const adjustmentRatio = 4.0

// ExitEvaluator decides, from a trade's entry premium and the day's quote,
// whether the trade must leave OPEN and why. It is pure: persistence and
// history rows are the caller's job.
type ExitEvaluator struct {
	// ProfitTakePct closes when captured premium decay reaches this percent.
	ProfitTakePct float64
	// StopLossPct closes when the loss reaches this percent of the captured
	// premium.
	StopLossPct float64
	// CheckAdjustment enables the leg-imbalance exit.
	CheckAdjustment bool
	// CloseAtExpiryOnly disables every discretionary exit, leaving expiry as
	// the sole close. Used to study pure theta decay.
	CloseAtExpiryOnly bool
}

// Verdict is the evaluator's decision for one open trade on one quote date.
type Verdict struct {
	Close  bool
	To     models.TradeStatus
	Reason string
	// Detail is a log-friendly explanation of the triggering rule.
	Detail string
}

// Evaluate applies the exit rules in fixed priority order; the first match
// wins. quote carries the day's resolved prices for the trade's strike and
// expiration, or nil when the chain had no usable row.
//
// Priority: expiry beats everything, profit take beats stop loss, and the
// leg-imbalance check runs only when neither P/L rule triggered.
func (e *ExitEvaluator) Evaluate(trade *models.Trade, quoteDate time.Time, quote *models.StrikeQuote) Verdict {
	resolved := quote != nil && quote.Premium() > 0

	if trade.ExpiredBy(quoteDate) {
		if !resolved {
			return Verdict{
				Close:  true,
				To:     models.StatusExpired,
				Reason: models.ReasonInvalidClose,
				Detail: "expired with unresolvable closing prices",
			}
		}
		return Verdict{
			Close:  true,
			To:     models.StatusExpired,
			Reason: models.ReasonExpired,
			Detail: fmt.Sprintf("quote date reached expiration %s", trade.Expiration.Format("2006-01-02")),
		}
	}

	// Unpriceable day before expiry: hold and let the caller skip the mark.
	if !resolved {
		return Verdict{}
	}
	if e.CloseAtExpiryOnly {
		return Verdict{}
	}

	diffPct := trade.PremiumDiffPct(quote.Premium())
	if diffPct >= e.ProfitTakePct {
		return Verdict{
			Close:  true,
			To:     models.StatusClosed,
			Reason: models.ReasonProfitTake,
			Detail: fmt.Sprintf("premium diff %.2f%% >= %.2f%%", diffPct, e.ProfitTakePct),
		}
	}
	if diffPct <= -e.StopLossPct {
		return Verdict{
			Close:  true,
			To:     models.StatusClosed,
			Reason: models.ReasonStopLoss,
			Detail: fmt.Sprintf("premium diff %.2f%% <= -%.2f%%", diffPct, e.StopLossPct),
		}
	}

	if e.CheckAdjustment && quote.CallPrice > 0 && quote.PutPrice > 0 {
		expensive := math.Max(quote.CallPrice, quote.PutPrice)
		cheap := math.Min(quote.CallPrice, quote.PutPrice)
		if expensive/cheap > adjustmentRatio {
			return Verdict{
				Close:  true,
				To:     models.StatusClosed,
				Reason: models.ReasonRequireAdjustment,
				Detail: fmt.Sprintf("leg ratio %.2f > %.2f (call %v, put %v)",
					expensive/cheap, adjustmentRatio, quote.CallPrice, quote.PutPrice),
			}
		}
	}

	return Verdict{}
}
