package mock

import (
	"testing"
	"time"
)

func TestChainGenerator_Snapshot(t *testing.T) {
	g := NewChainGenerator()
	quoteDate := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
	expirations := []time.Time{
		time.Date(2023, 2, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 3, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2022, 12, 30, 0, 0, 0, 0, time.UTC), // already past
	}

	rows := g.Snapshot(quoteDate, expirations)
	if len(rows) != 42 { // 21 strikes x 2 live expirations
		t.Fatalf("got %d rows, want 42", len(rows))
	}

	spot := g.Underlying()
	for _, r := range rows {
		if !r.QuoteDate.Equal(quoteDate) {
			t.Fatalf("row quote date %v, want %v", r.QuoteDate, quoteDate)
		}
		if r.Expiration.Before(quoteDate) {
			t.Fatalf("past expiration %v leaked into the snapshot", r.Expiration)
		}
		if r.Call.Last <= 0 || r.Put.Last <= 0 {
			t.Fatalf("strike %.0f has non-positive premium %v/%v", r.Strike, r.Call.Last, r.Put.Last)
		}
		if r.Call.Delta < 0 || r.Call.Delta > 1 {
			t.Errorf("strike %.0f call delta %v out of [0,1]", r.Strike, r.Call.Delta)
		}
		if r.Put.Delta > 0 || r.Put.Delta < -1 {
			t.Errorf("strike %.0f put delta %v out of [-1,0]", r.Strike, r.Put.Delta)
		}
		if r.UnderlyingLast != spot {
			t.Errorf("strike %.0f underlying %v, want %v", r.Strike, r.UnderlyingLast, spot)
		}
	}
}

func TestChainGenerator_NearestStrikeLooksAtTheMoney(t *testing.T) {
	g := NewChainGenerator()
	quoteDate := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
	expiry := time.Date(2023, 2, 17, 0, 0, 0, 0, time.UTC)

	rows := g.Snapshot(quoteDate, []time.Time{expiry})

	best := rows[0]
	for _, r := range rows {
		if r.StrikeDistance < best.StrikeDistance {
			best = r
		}
	}
	// The closest strike sits within half the grid interval of the spot, so
	// its deltas should be near +-0.5 and its straddle should cost the most.
	if best.StrikeDistance > 2.5 {
		t.Fatalf("nearest strike is %.2f away from spot", best.StrikeDistance)
	}
	if best.Call.Delta < 0.45 || best.Call.Delta > 0.55 {
		t.Errorf("ATM call delta = %v, want ~0.5", best.Call.Delta)
	}
	for _, r := range rows {
		if r.StraddlePremium() > best.StraddlePremium()+0.01 {
			t.Errorf("strike %.0f straddle %.2f beats the ATM straddle %.2f",
				r.Strike, r.StraddlePremium(), best.StraddlePremium())
		}
	}
}

func TestChainGenerator_StepMovesTheWalk(t *testing.T) {
	g := NewChainGenerator()
	before := g.Underlying()
	moved := false
	for i := 0; i < 20; i++ {
		g.Step()
		if g.Underlying() != before {
			moved = true
		}
	}
	if !moved {
		t.Error("20 steps never moved the underlying")
	}
	if g.Underlying() < 300 || g.Underlying() > 600 {
		t.Errorf("walk drifted implausibly far: %v", g.Underlying())
	}
}

func TestChainGenerator_VolatilityBars(t *testing.T) {
	g := NewChainGenerator()
	dates := []time.Time{
		time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	bars := g.VolatilityBars("VIX", dates, 20)
	if len(bars) != 3 {
		t.Fatalf("got %d bars, want 3", len(bars))
	}
	for i, b := range bars {
		if b.Symbol != "VIX" {
			t.Errorf("bar %d symbol %q", i, b.Symbol)
		}
		if !b.Date.Equal(dates[i]) {
			t.Errorf("bar %d date %v, want %v", i, b.Date, dates[i])
		}
		if b.Close < 9 {
			t.Errorf("bar %d close %v below floor", i, b.Close)
		}
		if b.High < b.Low {
			t.Errorf("bar %d high %v < low %v", i, b.High, b.Low)
		}
	}
}
