package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

// Trade represents one short straddle position: a call and a put sold at the
// same strike and expiration on a single quote date.
type Trade struct {
	ID              string      `json:"id"`
	Status          TradeStatus `json:"status"`
	OpenDate        time.Time   `json:"open_date"`
	Expiration      time.Time   `json:"expiration"`
	OpenDTE         float64     `json:"open_dte"`
	Strike          float64     `json:"strike"`
	OpenUnderlying  float64     `json:"open_underlying"`
	OpenCallPrice   float64     `json:"open_call_price"`
	OpenPutPrice    float64     `json:"open_put_price"`
	PremiumCaptured float64     `json:"premium_captured"`
	CloseDate       time.Time   `json:"close_date,omitempty"`
	CloseReason     string      `json:"close_reason,omitempty"`
	CloseUnderlying float64     `json:"close_underlying,omitempty"`
	CloseCallPrice  float64     `json:"close_call_price,omitempty"`
	ClosePutPrice   float64     `json:"close_put_price,omitempty"`
	ClosingPremium  float64     `json:"closing_premium,omitempty"`
}

// HistoryRow is one mark-to-market observation: the prices resolved for a
// trade's strike/expiration on one quote date. Rows are append-only.
type HistoryRow struct {
	ID         int64     `json:"id"`
	TradeID    string    `json:"trade_id"`
	Date       time.Time `json:"date"`
	Underlying float64   `json:"underlying"`
	CallPrice  float64   `json:"call_price"`
	PutPrice   float64   `json:"put_price"`
}

// NewTrade opens a trade from the day's selected chain prices. The premium
// captured is exactly the sum of the opening call and put premiums.
func NewTrade(openDate, expiration time.Time, strike, underlying, callPrice, putPrice float64) (*Trade, error) {
	if callPrice <= 0 || putPrice <= 0 {
		return nil, fmt.Errorf("non-positive opening premium: call=%.2f put=%.2f", callPrice, putPrice)
	}
	openDay := util.Day(openDate)
	expDay := util.Day(expiration)
	if expDay.Before(openDay) {
		return nil, fmt.Errorf("expiration %s precedes open date %s",
			util.FormatDay(expDay), util.FormatDay(openDay))
	}
	return &Trade{
		ID:              uuid.NewString(),
		Status:          StatusOpen,
		OpenDate:        openDay,
		Expiration:      expDay,
		OpenDTE:         float64(util.DaysBetween(openDay, expDay)),
		Strike:          strike,
		OpenUnderlying:  underlying,
		OpenCallPrice:   callPrice,
		OpenPutPrice:    putPrice,
		PremiumCaptured: callPrice + putPrice,
	}, nil
}

// IsOpen returns true while the trade has not reached a terminal status.
func (t *Trade) IsOpen() bool {
	return t.Status == StatusOpen
}

// PremiumDiffPct returns the P/L percentage of the captured premium at the
// given current straddle premium: positive when the premium has decayed in
// the seller's favor, negative when the straddle has become more expensive.
func (t *Trade) PremiumDiffPct(currentPremium float64) float64 {
	if t.PremiumCaptured == 0 {
		return 0
	}
	return (t.PremiumCaptured - currentPremium) / t.PremiumCaptured * 100
}

// DTEOn returns the trade's remaining days to expiration as of the given
// quote date, clamped at zero once the date reaches expiration.
func (t *Trade) DTEOn(date time.Time) int {
	d := util.DaysBetween(date, t.Expiration)
	if d < 0 {
		return 0
	}
	return d
}

// ExpiredBy returns true once the quote date has reached the expiration date.
func (t *Trade) ExpiredBy(date time.Time) bool {
	return !util.Day(date).Before(util.Day(t.Expiration))
}

// Close transitions the trade out of OPEN and populates every close field in
// one step, so the ledger never holds a partially closed trade. The closing
// premium is the sum of the closing call and put prices.
func (t *Trade) Close(to TradeStatus, reason string, closeDate time.Time, underlying, callPrice, putPrice float64) error {
	if err := CanTransition(t.Status, to, reason); err != nil {
		return fmt.Errorf("trade %s: %w", t.ID, err)
	}
	day := util.Day(closeDate)
	if day.Before(t.OpenDate) {
		return fmt.Errorf("trade %s: close date %s precedes open date %s",
			t.ID, util.FormatDay(day), util.FormatDay(t.OpenDate))
	}
	t.Status = to
	t.CloseDate = day
	t.CloseReason = reason
	t.CloseUnderlying = underlying
	t.CloseCallPrice = callPrice
	t.ClosePutPrice = putPrice
	t.ClosingPremium = callPrice + putPrice
	return nil
}

// RealizedPnL returns the realized premium P/L for a terminal trade (credit
// received minus what it cost to exit), zero while the trade is still open.
func (t *Trade) RealizedPnL() float64 {
	if !t.Status.Terminal() {
		return 0
	}
	return t.PremiumCaptured - t.ClosingPremium
}

// Validate ensures the trade's fields are consistent with its status.
func (t *Trade) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("trade has no id")
	}
	if !t.Status.Valid() {
		return fmt.Errorf("trade %s: unknown status %q", t.ID, t.Status)
	}
	if t.OpenDate.IsZero() {
		return fmt.Errorf("trade %s: OpenDate must be set", t.ID)
	}
	if t.Expiration.IsZero() {
		return fmt.Errorf("trade %s: Expiration must be set", t.ID)
	}
	if t.Expiration.Before(t.OpenDate) {
		return fmt.Errorf("trade %s: Expiration (%s) precedes OpenDate (%s)",
			t.ID, util.FormatDay(t.Expiration), util.FormatDay(t.OpenDate))
	}
	if t.OpenCallPrice <= 0 || t.OpenPutPrice <= 0 {
		return fmt.Errorf("trade %s: opening premiums must be positive (call=%.2f put=%.2f)",
			t.ID, t.OpenCallPrice, t.OpenPutPrice)
	}
	if t.PremiumCaptured != t.OpenCallPrice+t.OpenPutPrice {
		return fmt.Errorf("trade %s: PremiumCaptured %.4f != OpenCallPrice+OpenPutPrice %.4f",
			t.ID, t.PremiumCaptured, t.OpenCallPrice+t.OpenPutPrice)
	}

	switch t.Status {
	case StatusOpen:
		// Open trades must not carry any close data.
		if !t.CloseDate.IsZero() {
			return fmt.Errorf("trade %s in status %s: CloseDate must be zero (current: %v)",
				t.ID, t.Status, t.CloseDate)
		}
		if strings.TrimSpace(t.CloseReason) != "" {
			return fmt.Errorf("trade %s in status %s: CloseReason must be empty (current: %s)",
				t.ID, t.Status, t.CloseReason)
		}
		if t.CloseUnderlying != 0 || t.CloseCallPrice != 0 || t.ClosePutPrice != 0 || t.ClosingPremium != 0 {
			return fmt.Errorf("trade %s in status %s: close prices must be zero", t.ID, t.Status)
		}
	case StatusClosed, StatusExpired:
		// Terminal trades must carry complete close data; close prices may be
		// zero only for an Invalid Close, which had no resolvable prices.
		if t.CloseDate.IsZero() {
			return fmt.Errorf("trade %s in status %s: CloseDate must be set", t.ID, t.Status)
		}
		if strings.TrimSpace(t.CloseReason) == "" {
			return fmt.Errorf("trade %s in status %s: CloseReason must be set", t.ID, t.Status)
		}
		if err := CanTransition(StatusOpen, t.Status, t.CloseReason); err != nil {
			return fmt.Errorf("trade %s in status %s: %w", t.ID, t.Status, err)
		}
		if t.CloseDate.Before(t.OpenDate) {
			return fmt.Errorf("trade %s in status %s: CloseDate (%s) precedes OpenDate (%s)",
				t.ID, t.Status, util.FormatDay(t.CloseDate), util.FormatDay(t.OpenDate))
		}
		if t.ClosingPremium != t.CloseCallPrice+t.ClosePutPrice {
			return fmt.Errorf("trade %s in status %s: ClosingPremium %.4f != CloseCallPrice+ClosePutPrice %.4f",
				t.ID, t.Status, t.ClosingPremium, t.CloseCallPrice+t.ClosePutPrice)
		}
		if t.CloseReason != ReasonInvalidClose && t.ClosingPremium <= 0 {
			return fmt.Errorf("trade %s in status %s: ClosingPremium must be positive for reason %q (current: %.4f)",
				t.ID, t.Status, t.CloseReason, t.ClosingPremium)
		}
	}
	return nil
}
