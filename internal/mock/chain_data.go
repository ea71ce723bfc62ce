// Package mock synthesizes option-chain snapshots for smoke tests and the
// integration binary: a random-walk underlying quoted against a strike grid,
// priced with a crude sqrt-time premium model. Good enough to drive the
// backtest end to end; nothing here is market-accurate.
package mock

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

// secureFloat64 generates a cryptographically secure random float64 between 0 and 1
func secureFloat64() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		// Fallback to a reasonable default if crypto/rand fails
		return 0.5
	}
	return float64(n.Int64()) / (1 << 53)
}

// secureInt63n generates a cryptographically secure random int64 between 0 and n-1
func secureInt63n(n int64) int64 {
	max := big.NewInt(n)
	r, err := rand.Int(rand.Reader, max)
	if err != nil {
		// Fallback to a reasonable default if crypto/rand fails
		return n / 2
	}
	return r.Int64()
}

// ChainGenerator holds the walk state between snapshots.
type ChainGenerator struct {
	underlying float64
	vol        float64
}

// NewChainGenerator starts the walk at an SPY-like level with a plausible
// implied volatility.
func NewChainGenerator() *ChainGenerator {
	return &ChainGenerator{
		underlying: 440.0 + secureFloat64()*20, // around 440-460
		vol:        0.12 + secureFloat64()*0.18,
	}
}

// Underlying reports the walk's current level.
func (g *ChainGenerator) Underlying() float64 {
	return g.underlying
}

// Step advances the underlying one trading day (drift-free, up to ±0.75%).
func (g *ChainGenerator) Step() {
	g.underlying += g.underlying * (secureFloat64() - 0.5) * 0.015
}

// Snapshot produces one quote date's rows: a 21-strike grid centered on the
// underlying for every expiration that has not yet passed.
func (g *ChainGenerator) Snapshot(quoteDate time.Time, expirations []time.Time) []*models.ChainRow {
	var rows []*models.ChainRow
	for _, expiry := range expirations {
		dte := util.DaysBetween(quoteDate, expiry)
		if dte < 0 {
			continue
		}
		rows = append(rows, g.expirationRows(quoteDate, expiry, float64(dte))...)
	}
	return rows
}

func (g *ChainGenerator) expirationRows(quoteDate, expiry time.Time, dte float64) []*models.ChainRow {
	const strikeInterval = 5.0
	start := math.Floor(g.underlying/strikeInterval)*strikeInterval - 50
	end := start + 100

	// Keep a sliver of time value on expiration day so rows stay priceable.
	timeValue := math.Max(dte, 0.5) / 365.0

	var rows []*models.ChainRow
	for strike := start; strike <= end; strike += strikeInterval {
		distance := math.Abs(strike - g.underlying)
		decay := math.Exp(-distance * 0.02)

		// Exponential-decay delta: 0.5 at the money, fading OTM, growing ITM.
		callDelta := 0.5 * decay
		if strike < g.underlying {
			callDelta = 1 - 0.5*decay
		}
		putDelta := callDelta - 1

		callPrice := g.legPrice(timeValue, callDelta)
		putPrice := g.legPrice(timeValue, putDelta)

		rows = append(rows, &models.ChainRow{
			QuoteDate:         quoteDate,
			Expiration:        expiry,
			Strike:            strike,
			UnderlyingLast:    g.underlying,
			DTE:               dte,
			StrikeDistance:    distance,
			StrikeDistancePct: distance / g.underlying,
			Call:              g.legQuote(callPrice, callDelta, decay, timeValue),
			Put:               g.legQuote(putPrice, putDelta, decay, timeValue),
		})
	}
	return rows
}

// legPrice approximates an option's time value: the ATM-straddle rule of
// thumb (0.8 * vol * spot * sqrt(T)) split per leg and scaled by |delta|.
func (g *ChainGenerator) legPrice(timeValue, delta float64) float64 {
	return math.Max(0.05, 0.8*g.vol*g.underlying*math.Sqrt(timeValue)*math.Abs(delta))
}

func (g *ChainGenerator) legQuote(price, delta, decay, timeValue float64) models.OptionQuote {
	return models.OptionQuote{
		Last:         price,
		Bid:          math.Max(0, price-0.05),
		Ask:          price + 0.05,
		Volume:       secureInt63n(10000),
		OpenInterest: secureInt63n(50000),
		Delta:        delta,
		Gamma:        0.012 * decay,
		Theta:        -price / math.Max(timeValue*365.0, 1),
		Vega:         0.10 * g.underlying * math.Sqrt(timeValue) * 0.01,
		IV:           g.vol,
	}
}

// VolatilityBars produces daily closes for a synthetic volatility index that
// meanders around the base level, for seeding the regime table.
func (g *ChainGenerator) VolatilityBars(symbol string, dates []time.Time, base float64) []*models.DailyBar {
	level := base
	bars := make([]*models.DailyBar, 0, len(dates))
	for _, date := range dates {
		level = math.Max(9, level+(secureFloat64()-0.5)*3)
		bars = append(bars, &models.DailyBar{
			Symbol: symbol,
			Date:   date,
			Open:   level * 0.99,
			High:   level * 1.02,
			Low:    level * 0.97,
			Close:  level,
			Volume: secureInt63n(1000000),
		})
	}
	return bars
}
