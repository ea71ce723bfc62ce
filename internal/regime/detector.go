// Package regime flags high-volatility market regimes from daily bar history.
// The backtest entry gate consults it to pause new entries while a volatility
// index closes at or above a configured level.
package regime

import (
	"context"
	"fmt"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/storage"
	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

// Detector answers "was volatility elevated on this date" from an in-memory
// date index built once at construction. It is immutable after NewDetector
// and safe for concurrent use.
type Detector struct {
	symbol    string
	threshold float64
	closes    map[string]float64
}

// NewDetector loads the symbol's full bar history and indexes closes by day.
// The threshold is the close level at or above which the regime counts as
// elevated.
func NewDetector(ctx context.Context, bars storage.BarStore, symbol string, threshold float64) (*Detector, error) {
	if symbol == "" {
		return nil, fmt.Errorf("regime: symbol is required")
	}
	if threshold <= 0 {
		return nil, fmt.Errorf("regime: threshold must be > 0, got %v", threshold)
	}

	history, err := bars.BarsForSymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("regime: load %s bars: %w", symbol, err)
	}

	closes := make(map[string]float64, len(history))
	for _, bar := range history {
		closes[util.FormatDay(bar.Date)] = bar.Close
	}
	return &Detector{symbol: symbol, threshold: threshold, closes: closes}, nil
}

// Elevated reports whether the index closed at or above the threshold on the
// date. A date with no bar gives no signal and never vetoes an entry.
func (d *Detector) Elevated(date time.Time) bool {
	level, ok := d.closes[util.FormatDay(date)]
	return ok && level >= d.threshold
}

// Symbol returns the volatility index the detector watches.
func (d *Detector) Symbol() string { return d.symbol }

// Threshold returns the close level at or above which entries pause.
func (d *Detector) Threshold() float64 { return d.threshold }
