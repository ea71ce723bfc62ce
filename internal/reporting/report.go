// Package reporting summarizes a finished backtest ledger: counts per close
// reason, win rate, and net premium P/L, with CSV and Markdown renderings.
// It validates runs; it is not a performance-analytics suite.
package reporting

import "time"

// Report is the post-run view of one ledger (one DTE table family).
type Report struct {
	// Metadata
	GeneratedAt time.Time
	DTETarget   float64

	// Ledger totals
	TotalTrades  int
	OpenTrades   int
	ClosedTrades int

	// Close reasons, sorted by reason name.
	ClosedByReason []ReasonCount

	// Outcomes over priced terminal trades. Invalid closes carry no closing
	// prices and are tracked separately instead of polluting the P/L.
	Wins          int
	Losses        int
	WinRatePct    float64
	NetPremiumPnL float64
	AveragePnL    float64
	InvalidCloses int

	// Date coverage
	FirstOpenDate time.Time
	LastCloseDate time.Time
}

// ReasonCount is one close reason and how many trades ended with it.
type ReasonCount struct {
	Reason string
	Count  int
}
