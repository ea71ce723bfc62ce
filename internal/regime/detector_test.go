package regime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/storage"
	"github.com/eddiefleurent/stamford_straddler/internal/storage/memory"
	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

func seedBars(t *testing.T, closes map[string]float64) *memory.BarStore {
	t.Helper()
	store := memory.NewBarStore()
	bars := make([]*models.DailyBar, 0, len(closes))
	for date, c := range closes {
		d, err := util.ParseDay(date)
		if err != nil {
			t.Fatalf("ParseDay(%q): %v", date, err)
		}
		bars = append(bars, &models.DailyBar{
			Symbol: "VIX",
			Date:   d,
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		})
	}
	if err := store.InsertBars(context.Background(), bars); err != nil {
		t.Fatalf("InsertBars() error: %v", err)
	}
	return store
}

func TestDetector_Elevated(t *testing.T) {
	store := seedBars(t, map[string]float64{
		"2023-01-03": 21.8,
		"2023-01-04": 25.0,
		"2023-01-05": 32.4,
	})

	d, err := NewDetector(context.Background(), store, "VIX", 25)
	if err != nil {
		t.Fatalf("NewDetector() error: %v", err)
	}

	tests := []struct {
		date string
		want bool
	}{
		{"2023-01-03", false}, // below threshold
		{"2023-01-04", true},  // exactly at threshold
		{"2023-01-05", true},  // above threshold
		{"2023-01-06", false}, // no bar, no signal
	}
	for _, tt := range tests {
		day, err := util.ParseDay(tt.date)
		if err != nil {
			t.Fatalf("ParseDay(%q): %v", tt.date, err)
		}
		if got := d.Elevated(day); got != tt.want {
			t.Errorf("Elevated(%s) = %v, want %v", tt.date, got, tt.want)
		}
	}
}

func TestDetector_IgnoresTimeOfDay(t *testing.T) {
	store := seedBars(t, map[string]float64{"2023-01-04": 30})
	d, err := NewDetector(context.Background(), store, "VIX", 25)
	if err != nil {
		t.Fatalf("NewDetector() error: %v", err)
	}

	noon := time.Date(2023, 1, 4, 12, 30, 0, 0, time.UTC)
	if !d.Elevated(noon) {
		t.Error("Elevated() = false for an intraday timestamp on an elevated day")
	}
}

func TestNewDetector_Errors(t *testing.T) {
	store := seedBars(t, map[string]float64{"2023-01-04": 30})

	if _, err := NewDetector(context.Background(), store, "", 25); err == nil {
		t.Error("NewDetector() with empty symbol: want error, got nil")
	}
	if _, err := NewDetector(context.Background(), store, "VIX", 0); err == nil {
		t.Error("NewDetector() with zero threshold: want error, got nil")
	}

	_, err := NewDetector(context.Background(), store, "SPY", 25)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("NewDetector() for symbol without bars: err = %v, want ErrNotFound", err)
	}
}
