// Package memory provides in-memory storage.* implementations, used by
// tests and dry runs where no ledger file should be written.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu      sync.RWMutex
	trades  map[string]*models.Trade // keyed by trade id
	seq     map[string]int64         // insertion order, for stable sorts
	history []*models.HistoryRow
	legs    []*models.Leg
	nextSeq int64
	nextHst int64
	nextLeg int64
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		trades: make(map[string]*models.Trade),
		seq:    make(map[string]int64),
	}
}

// CreateTrade adds a new OPEN trade. Returns ErrDuplicateKey if the id exists.
func (s *TradeStore) CreateTrade(_ context.Context, trade *models.Trade) error {
	if trade == nil {
		return storage.ErrInvalidInput
	}
	if err := trade.Validate(); err != nil {
		return storage.ErrInvalidInput
	}
	if !trade.IsOpen() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trades[trade.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	tradeCopy := *trade
	s.trades[trade.ID] = &tradeCopy
	s.nextSeq++
	s.seq[trade.ID] = s.nextSeq
	return nil
}

// CloseTrade persists the terminal state of a trade that is still OPEN here.
func (s *TradeStore) CloseTrade(_ context.Context, trade *models.Trade) error {
	if trade == nil || !trade.Status.Terminal() {
		return storage.ErrInvalidInput
	}
	if err := trade.Validate(); err != nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.trades[trade.ID]
	if !exists || !existing.IsOpen() {
		return storage.ErrNotFound
	}

	tradeCopy := *trade
	s.trades[trade.ID] = &tradeCopy
	return nil
}

// GetTrade retrieves a trade by its id. Returns ErrNotFound if not exists.
func (s *TradeStore) GetTrade(_ context.Context, id string) (*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trade, exists := s.trades[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	tradeCopy := *trade
	return &tradeCopy, nil
}

// OpenTrades retrieves every OPEN trade, ordered by open date ASC.
func (s *TradeStore) OpenTrades(_ context.Context) ([]*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Trade
	for _, trade := range s.trades {
		if trade.IsOpen() {
			tradeCopy := *trade
			result = append(result, &tradeCopy)
		}
	}
	s.sortTrades(result)
	return result, nil
}

// AllTrades retrieves every trade regardless of status, ordered by open date ASC.
func (s *TradeStore) AllTrades(_ context.Context) ([]*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Trade
	for _, trade := range s.trades {
		tradeCopy := *trade
		result = append(result, &tradeCopy)
	}
	s.sortTrades(result)
	return result, nil
}

// LastOpenDate returns the most recent open date across all trades.
func (s *TradeStore) LastOpenDate(_ context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last time.Time
	for _, trade := range s.trades {
		if trade.OpenDate.After(last) {
			last = trade.OpenDate
		}
	}
	if last.IsZero() {
		return time.Time{}, storage.ErrNotFound
	}
	return last, nil
}

// AppendHistory adds a mark-to-market row and assigns its id.
func (s *TradeStore) AppendHistory(_ context.Context, row *models.HistoryRow) error {
	if row == nil || strings.TrimSpace(row.TradeID) == "" || row.Date.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextHst++
	row.ID = s.nextHst
	rowCopy := *row
	s.history = append(s.history, &rowCopy)
	return nil
}

// HistoryForTrade retrieves a trade's history rows, ordered by date ASC.
func (s *TradeStore) HistoryForTrade(_ context.Context, tradeID string) ([]*models.HistoryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.HistoryRow
	for _, row := range s.history {
		if row.TradeID == tradeID {
			rowCopy := *row
			result = append(result, &rowCopy)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// AppendLegs adds leg observations and assigns their ids.
func (s *TradeStore) AppendLegs(_ context.Context, legs []*models.Leg) error {
	for _, leg := range legs {
		if leg == nil || strings.TrimSpace(leg.TradeID) == "" || leg.Date.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, leg := range legs {
		s.nextLeg++
		leg.ID = s.nextLeg
		legCopy := *leg
		if leg.Greeks != nil {
			greeksCopy := *leg.Greeks
			legCopy.Greeks = &greeksCopy
		}
		s.legs = append(s.legs, &legCopy)
	}
	return nil
}

// LegsForTrade retrieves a trade's legs, ordered by date ASC.
func (s *TradeStore) LegsForTrade(_ context.Context, tradeID string) ([]*models.Leg, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Leg
	for _, leg := range s.legs {
		if leg.TradeID == tradeID {
			legCopy := *leg
			if leg.Greeks != nil {
				greeksCopy := *leg.Greeks
				legCopy.Greeks = &greeksCopy
			}
			result = append(result, &legCopy)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

func (s *TradeStore) sortTrades(trades []*models.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		if !trades[i].OpenDate.Equal(trades[j].OpenDate) {
			return trades[i].OpenDate.Before(trades[j].OpenDate)
		}
		return s.seq[trades[i].ID] < s.seq[trades[j].ID]
	})
}

// Verify interface compliance at compile time.
var _ storage.TradeStore = (*TradeStore)(nil)
