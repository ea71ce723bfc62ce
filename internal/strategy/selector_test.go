package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/storage/memory"
)

func seedRow(t *testing.T, store *memory.ChainStore, quote, expire time.Time, strike, underlying, callDelta, putDelta, callLast, putLast float64) {
	t.Helper()
	err := store.InsertRows(context.Background(), []*models.ChainRow{{
		QuoteDate:      quote,
		Expiration:     expire,
		Strike:         strike,
		UnderlyingLast: underlying,
		DTE:            float64(expire.Sub(quote) / (24 * time.Hour)),
		Call:           models.OptionQuote{Last: callLast, Delta: callDelta},
		Put:            models.OptionQuote{Last: putLast, Delta: putDelta},
	}})
	if err != nil {
		t.Fatalf("InsertRows failed: %v", err)
	}
}

func TestNearestToMoneySelector_Select(t *testing.T) {
	ctx := context.Background()
	store := memory.NewChainStore()
	quote := day(t, "2023-01-03")
	expire := day(t, "2023-02-03")

	seedRow(t, store, quote, expire, 395, 401, 0.60, -0.40, 11.2, 6.0)
	seedRow(t, store, quote, expire, 400, 401, 0.52, -0.48, 8.4, 7.6)
	seedRow(t, store, quote, expire, 405, 401, 0.44, -0.56, 6.2, 9.9)

	sel, err := NewSelector(PolicyNearestToMoney, store, 0, 0)
	if err != nil {
		t.Fatalf("NewSelector failed: %v", err)
	}

	row, err := sel.Select(ctx, quote, expire)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if row.Strike != 400 {
		t.Errorf("Select() strike = %v, want 400", row.Strike)
	}
}

func TestNearestToMoneySelector_NoRows(t *testing.T) {
	sel := &NearestToMoneySelector{chain: memory.NewChainStore()}

	_, err := sel.Select(context.Background(), day(t, "2023-01-03"), day(t, "2023-02-03"))
	if !errors.Is(err, ErrNoQualifyingOptions) {
		t.Errorf("expected ErrNoQualifyingOptions, got %v", err)
	}
}

func TestNearestToMoneySelector_NonPositiveLeg(t *testing.T) {
	store := memory.NewChainStore()
	quote := day(t, "2023-01-03")
	expire := day(t, "2023-02-03")

	// Nearest strike has a dead put; the selector must refuse the pair, not
	// fall back to a worse strike.
	seedRow(t, store, quote, expire, 400, 401, 0.52, -0.48, 8.4, 0)
	seedRow(t, store, quote, expire, 405, 401, 0.44, -0.56, 6.2, 9.9)

	sel := &NearestToMoneySelector{chain: store}
	_, err := sel.Select(context.Background(), quote, expire)
	if !errors.Is(err, ErrNoQualifyingOptions) {
		t.Errorf("expected ErrNoQualifyingOptions, got %v", err)
	}
}

func TestDeltaTargetedSelector_Select(t *testing.T) {
	ctx := context.Background()
	store := memory.NewChainStore()
	quote := day(t, "2023-01-03")
	expire := day(t, "2023-02-03")

	seedRow(t, store, quote, expire, 400, 401, 0.52, -0.48, 8.4, 7.6)
	seedRow(t, store, quote, expire, 420, 401, 0.32, -0.30, 3.1, 2.4)
	seedRow(t, store, quote, expire, 430, 401, 0.25, -0.20, 2.0, 1.5)

	sel, err := NewSelector(PolicyDeltaTargeted, store, 0.35, 0.35)
	if err != nil {
		t.Fatalf("NewSelector failed: %v", err)
	}

	row, err := sel.Select(ctx, quote, expire)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if row.Strike != 420 {
		t.Errorf("Select() strike = %v, want 420", row.Strike)
	}

	// Tighter ceilings leave nothing.
	tight := &DeltaTargetedSelector{chain: store, callCeiling: 0.1, putCeiling: 0.1}
	if _, err := tight.Select(ctx, quote, expire); !errors.Is(err, ErrNoQualifyingOptions) {
		t.Errorf("expected ErrNoQualifyingOptions, got %v", err)
	}
}

func TestDeltaTargetedSelector_NonPositiveLeg(t *testing.T) {
	store := memory.NewChainStore()
	quote := day(t, "2023-01-03")
	expire := day(t, "2023-02-03")

	seedRow(t, store, quote, expire, 420, 401, 0.32, -0.30, 0, 2.4)

	sel := &DeltaTargetedSelector{chain: store, callCeiling: 0.35, putCeiling: 0.35}
	_, err := sel.Select(context.Background(), quote, expire)
	if !errors.Is(err, ErrNoQualifyingOptions) {
		t.Errorf("expected ErrNoQualifyingOptions, got %v", err)
	}
}

func TestNewSelector_UnknownPolicy(t *testing.T) {
	if _, err := NewSelector(SelectionPolicy("random"), memory.NewChainStore(), 0, 0); err == nil {
		t.Error("expected error for unknown policy")
	}
}
