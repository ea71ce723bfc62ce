package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/storage"
	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

type chainKey struct {
	quote  string
	expire string
	strike float64
}

// ChainStore is an in-memory implementation of storage.ChainStore.
type ChainStore struct {
	mu   sync.RWMutex
	rows []*models.ChainRow
	keys map[chainKey]struct{}
}

// NewChainStore creates a new in-memory chain store.
func NewChainStore() *ChainStore {
	return &ChainStore{keys: make(map[chainKey]struct{})}
}

// InsertRows adds snapshot rows. Returns ErrDuplicateKey when a
// (quote date, expiration, strike) key already exists.
func (s *ChainStore) InsertRows(_ context.Context, rows []*models.ChainRow) error {
	for _, r := range rows {
		if r == nil || r.QuoteDate.IsZero() || r.Expiration.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Reject before mutating so a failed batch leaves the store untouched.
	for _, r := range rows {
		if _, exists := s.keys[keyFor(r)]; exists {
			return storage.ErrDuplicateKey
		}
	}
	seen := make(map[chainKey]struct{}, len(rows))
	for _, r := range rows {
		if _, dup := seen[keyFor(r)]; dup {
			return storage.ErrDuplicateKey
		}
		seen[keyFor(r)] = struct{}{}
	}

	for _, r := range rows {
		rowCopy := *r
		s.rows = append(s.rows, &rowCopy)
		s.keys[keyFor(r)] = struct{}{}
	}
	return nil
}

// QuoteDates retrieves the distinct quote dates, ordered ASC.
func (s *ChainStore) QuoteDates(_ context.Context) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]time.Time)
	for _, r := range s.rows {
		seen[util.FormatDay(r.QuoteDate)] = util.Day(r.QuoteDate)
	}

	var result []time.Time
	for _, d := range seen {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Before(result[j]) })
	return result, nil
}

// NearestExpiration returns the earliest expiration on the quote date with
// days-to-expiry >= minDTE.
func (s *ChainStore) NearestExpiration(_ context.Context, quoteDate time.Time, minDTE float64) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best time.Time
	for _, r := range s.rows {
		if !sameDay(r.QuoteDate, quoteDate) || r.DTE < minDTE {
			continue
		}
		if best.IsZero() || r.Expiration.Before(best) {
			best = util.Day(r.Expiration)
		}
	}
	if best.IsZero() {
		return time.Time{}, storage.ErrNotFound
	}
	return best, nil
}

// ClosestToSpot retrieves up to limit rows for (quoteDate, expiration)
// ordered by absolute strike distance from the underlying price.
func (s *ChainStore) ClosestToSpot(_ context.Context, quoteDate, expiration time.Time, limit int) ([]*models.ChainRow, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.filter(quoteDate, expiration, func(*models.ChainRow) bool { return true })
	if len(result) == 0 {
		return nil, storage.ErrNotFound
	}
	sort.SliceStable(result, func(i, j int) bool {
		return math.Abs(result[i].Strike-result[i].UnderlyingLast) <
			math.Abs(result[j].Strike-result[j].UnderlyingLast)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DeltaTargeted returns the row whose call delta and absolute put delta are
// both under their ceilings, ranked by combined proximity to the ceilings.
func (s *ChainStore) DeltaTargeted(_ context.Context, quoteDate, expiration time.Time, callCeiling, putCeiling float64) (*models.ChainRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.filter(quoteDate, expiration, func(r *models.ChainRow) bool {
		return r.Call.Delta > 0 && r.Call.Delta < callCeiling &&
			r.Put.Delta < 0 && math.Abs(r.Put.Delta) < putCeiling
	})
	if len(result) == 0 {
		return nil, storage.ErrNotFound
	}
	sort.SliceStable(result, func(i, j int) bool {
		pi := (callCeiling - result[i].Call.Delta) + (putCeiling - math.Abs(result[i].Put.Delta))
		pj := (callCeiling - result[j].Call.Delta) + (putCeiling - math.Abs(result[j].Put.Delta))
		return pi < pj
	})
	return result[0], nil
}

// StrikeQuote returns the prices of the exact (quoteDate, strike, expiration) row.
func (s *ChainStore) StrikeQuote(_ context.Context, quoteDate time.Time, strike float64, expiration time.Time) (*models.StrikeQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rows {
		if sameDay(r.QuoteDate, quoteDate) && sameDay(r.Expiration, expiration) && r.Strike == strike {
			return &models.StrikeQuote{
				Underlying: r.UnderlyingLast,
				CallPrice:  r.Call.Last,
				PutPrice:   r.Put.Last,
			}, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *ChainStore) filter(quoteDate, expiration time.Time, keep func(*models.ChainRow) bool) []*models.ChainRow {
	var result []*models.ChainRow
	for _, r := range s.rows {
		if sameDay(r.QuoteDate, quoteDate) && sameDay(r.Expiration, expiration) && keep(r) {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}
	return result
}

func keyFor(r *models.ChainRow) chainKey {
	return chainKey{
		quote:  util.FormatDay(r.QuoteDate),
		expire: util.FormatDay(r.Expiration),
		strike: r.Strike,
	}
}

func sameDay(a, b time.Time) bool {
	return util.Day(a).Equal(util.Day(b))
}

// Verify interface compliance at compile time.
var _ storage.ChainStore = (*ChainStore)(nil)
