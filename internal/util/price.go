// Package util provides common helpers for price and trading-day math.
package util

import "math"

// RoundToTick rounds x to the nearest tick increment.
// For example, with tick=0.01, 1.2345 becomes 1.23 or 1.24 depending on rounding.
// A zero tick returns x unchanged; a negative tick is treated as its absolute value.
func RoundToTick(x, tick float64) float64 {
	t := math.Abs(tick)
	if t == 0 {
		return x
	}
	return math.Round(x/t) * t
}

// FloorToTick rounds x down to the nearest tick increment.
func FloorToTick(x, tick float64) float64 {
	t := math.Abs(tick)
	if t == 0 {
		return x
	}
	return math.Floor(x/t) * t
}

// CeilToTick rounds x up to the nearest tick increment.
func CeilToTick(x, tick float64) float64 {
	t := math.Abs(tick)
	if t == 0 {
		return x
	}
	return math.Ceil(x/t) * t
}
