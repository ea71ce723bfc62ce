// Package models provides the domain types and lifecycle rules for the
// straddle backtest ledger: trades, legs, mark-to-market history, and the
// chain snapshot rows they are priced from.
package models

import "fmt"

// TradeStatus represents the lifecycle state of a trade in the ledger.
type TradeStatus string

const (
	// StatusOpen means the trade is live and marked to market every quote date.
	StatusOpen TradeStatus = "OPEN"
	// StatusClosed means a discretionary rule closed the trade before expiration.
	StatusClosed TradeStatus = "CLOSED"
	// StatusExpired means the trade was held through its expiration date.
	StatusExpired TradeStatus = "EXPIRED"
)

// Close reasons recorded on terminal trades.
const (
	ReasonProfitTake        = "Profit Take"
	ReasonStopLoss          = "Stop Loss"
	ReasonRequireAdjustment = "Require Adjustment"
	ReasonExpired           = "Option Expired"
	ReasonInvalidClose      = "Invalid Close"
)

// StatusTransition defines one valid way for a trade to change status.
type StatusTransition struct {
	From        TradeStatus
	To          TradeStatus
	Reason      string
	Description string
}

// ValidTransitions enumerates every way a trade may leave OPEN. Every target
// is terminal: there are no transitions out of CLOSED or EXPIRED.
var ValidTransitions = []StatusTransition{
	{StatusOpen, StatusClosed, ReasonProfitTake, "Profit target reached"},
	{StatusOpen, StatusClosed, ReasonStopLoss, "Stop loss breached"},
	{StatusOpen, StatusClosed, ReasonRequireAdjustment, "Leg imbalance requires restructuring"},
	{StatusOpen, StatusExpired, ReasonExpired, "Held through expiration"},
	{StatusOpen, StatusExpired, ReasonInvalidClose, "Expired without resolvable closing prices"},
}

// Valid returns true if the status is one of the defined constants.
func (s TradeStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusExpired:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions are allowed from s.
func (s TradeStatus) Terminal() bool {
	return s == StatusClosed || s == StatusExpired
}

// CanTransition checks whether moving from -> to with the given close reason
// is an allowed lifecycle transition.
func CanTransition(from, to TradeStatus, reason string) error {
	for _, tr := range ValidTransitions {
		if tr.From == from && tr.To == to && tr.Reason == reason {
			return nil
		}
	}
	return fmt.Errorf("invalid transition from %s to %s with reason %q", from, to, reason)
}
