package models

import (
	"math"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

// ContractType identifies the option side of a leg.
type ContractType string

const (
	ContractCall ContractType = "CALL"
	ContractPut  ContractType = "PUT"
)

// PositionType identifies the direction of a leg.
type PositionType string

const (
	PositionLong  PositionType = "LONG"
	PositionShort PositionType = "SHORT"
)

// LegRole classifies why a leg row was recorded.
type LegRole string

const (
	// LegRoleOpen rows are written once when the trade is created.
	LegRoleOpen LegRole = "TRADE_OPEN"
	// LegRoleAudit rows are written on every mark-to-market touch.
	LegRoleAudit LegRole = "TRADE_AUDIT"
	// LegRoleClose rows are written when the trade leaves OPEN.
	LegRoleClose LegRole = "TRADE_CLOSE"
)

// Greeks are option sensitivities copied verbatim from the chain snapshot.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	IV    float64 `json:"iv"`
}

// Leg is one option contract observation within a trade. Premiums are
// sign-normalized: positive for LONG, negative for SHORT.
type Leg struct {
	ID                int64        `json:"id"`
	TradeID           string       `json:"trade_id"`
	Date              time.Time    `json:"date"`
	Expiration        time.Time    `json:"expiration"`
	Strike            float64      `json:"strike"`
	Contract          ContractType `json:"contract_type"`
	Position          PositionType `json:"position_type"`
	Role              LegRole      `json:"leg_role"`
	OpenPremium       float64      `json:"open_premium"`
	CurrentPremium    float64      `json:"current_premium"`
	OpenUnderlying    float64      `json:"open_underlying"`
	CurrentUnderlying float64      `json:"current_underlying"`
	Greeks            *Greeks      `json:"greeks,omitempty"`
}

// SignedPremium normalizes a quoted (always positive) premium to the leg
// direction: positive for LONG, negative for SHORT.
func SignedPremium(position PositionType, quoted float64) float64 {
	p := math.Abs(quoted)
	if position == PositionShort {
		return -p
	}
	return p
}

// LegPair builds the trade's two short-leg observations for one quote date.
// Quoted prices are passed positive; normalization happens here.
func (t *Trade) LegPair(role LegRole, date time.Time, underlying, callPrice, putPrice float64, callGreeks, putGreeks *Greeks) []*Leg {
	day := util.Day(date)
	return []*Leg{
		{
			TradeID:           t.ID,
			Date:              day,
			Expiration:        t.Expiration,
			Strike:            t.Strike,
			Contract:          ContractCall,
			Position:          PositionShort,
			Role:              role,
			OpenPremium:       SignedPremium(PositionShort, t.OpenCallPrice),
			CurrentPremium:    SignedPremium(PositionShort, callPrice),
			OpenUnderlying:    t.OpenUnderlying,
			CurrentUnderlying: underlying,
			Greeks:            callGreeks,
		},
		{
			TradeID:           t.ID,
			Date:              day,
			Expiration:        t.Expiration,
			Strike:            t.Strike,
			Contract:          ContractPut,
			Position:          PositionShort,
			Role:              role,
			OpenPremium:       SignedPremium(PositionShort, t.OpenPutPrice),
			CurrentPremium:    SignedPremium(PositionShort, putPrice),
			OpenUnderlying:    t.OpenUnderlying,
			CurrentUnderlying: underlying,
			Greeks:            putGreeks,
		},
	}
}
