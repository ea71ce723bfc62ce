package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/storage"
	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	bars map[string]map[string]*models.DailyBar // symbol -> date -> bar
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{bars: make(map[string]map[string]*models.DailyBar)}
}

// InsertBars upserts bars keyed on (symbol, date).
func (s *BarStore) InsertBars(_ context.Context, bars []*models.DailyBar) error {
	for _, b := range bars {
		if b == nil || b.Symbol == "" || b.Date.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range bars {
		symbol := strings.ToUpper(b.Symbol)
		if s.bars[symbol] == nil {
			s.bars[symbol] = make(map[string]*models.DailyBar)
		}
		barCopy := *b
		barCopy.Symbol = symbol
		barCopy.Date = util.Day(b.Date)
		s.bars[symbol][util.FormatDay(b.Date)] = &barCopy
	}
	return nil
}

// BarsForSymbol retrieves every stored bar for the symbol ordered by date ASC.
func (s *BarStore) BarsForSymbol(_ context.Context, symbol string) ([]*models.DailyBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySymbol := s.bars[strings.ToUpper(symbol)]
	if len(bySymbol) == 0 {
		return nil, storage.ErrNotFound
	}

	var result []*models.DailyBar
	for _, b := range bySymbol {
		barCopy := *b
		result = append(result, &barCopy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.BarStore = (*BarStore)(nil)
