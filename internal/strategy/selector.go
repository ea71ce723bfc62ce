// Package strategy holds the decision rules of the straddle engine: strike
// selection at entry, the exit state machine, and the entry gate. Everything
// here is deterministic; market data arrives through storage.ChainStore and
// decisions are returned to the caller, which owns persistence.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/storage"
)

// SelectionPolicy names a strike-selection rule.
type SelectionPolicy string

const (
	// PolicyNearestToMoney picks the strike closest to the day's underlying
	// price: a standard at-the-money straddle.
	PolicyNearestToMoney SelectionPolicy = "nearest"
	// PolicyDeltaTargeted picks the strike whose call delta and absolute put
	// delta sit nearest to, without exceeding, configured ceilings.
	PolicyDeltaTargeted SelectionPolicy = "delta"
)

// ErrNoQualifyingOptions signals that no straddle can be formed on the
// requested date and expiration: either no chain row exists or the best
// candidate has a non-positive leg price. Callers skip the entry; they must
// never open a half-formed trade.
var ErrNoQualifyingOptions = errors.New("no qualifying options")

// StrikeSelector maps a quote date and chosen expiration to exactly one
// chain row: the call and put pair the trade will short.
type StrikeSelector interface {
	Select(ctx context.Context, quoteDate, expiration time.Time) (*models.ChainRow, error)
}

// NewSelector builds the selector for a policy name.
func NewSelector(policy SelectionPolicy, chain storage.ChainStore, callCeiling, putCeiling float64) (StrikeSelector, error) {
	switch policy {
	case PolicyNearestToMoney:
		return &NearestToMoneySelector{chain: chain}, nil
	case PolicyDeltaTargeted:
		return &DeltaTargetedSelector{chain: chain, callCeiling: callCeiling, putCeiling: putCeiling}, nil
	default:
		return nil, fmt.Errorf("unknown selection policy %q", policy)
	}
}

// NearestToMoneySelector picks the row whose strike is closest to the
// underlying price.
type NearestToMoneySelector struct {
	chain storage.ChainStore
}

var _ StrikeSelector = (*NearestToMoneySelector)(nil)

func (s *NearestToMoneySelector) Select(ctx context.Context, quoteDate, expiration time.Time) (*models.ChainRow, error) {
	rows, err := s.chain.ClosestToSpot(ctx, quoteDate, expiration, 1)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: no chain rows", ErrNoQualifyingOptions)
		}
		return nil, err
	}
	return validateSelection(rows[0])
}

// DeltaTargetedSelector picks the row nearest to the delta ceilings without
// exceeding them on either side.
type DeltaTargetedSelector struct {
	chain       storage.ChainStore
	callCeiling float64
	putCeiling  float64
}

var _ StrikeSelector = (*DeltaTargetedSelector)(nil)

func (s *DeltaTargetedSelector) Select(ctx context.Context, quoteDate, expiration time.Time) (*models.ChainRow, error) {
	row, err := s.chain.DeltaTargeted(ctx, quoteDate, expiration, s.callCeiling, s.putCeiling)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: no row under delta ceilings call<%v |put|<%v",
				ErrNoQualifyingOptions, s.callCeiling, s.putCeiling)
		}
		return nil, err
	}
	return validateSelection(row)
}

// validateSelection rejects rows that cannot seed a short straddle: both
// legs must carry a positive premium or there is no credit to capture.
func validateSelection(row *models.ChainRow) (*models.ChainRow, error) {
	if row.Call.Last <= 0 || row.Put.Last <= 0 {
		return nil, fmt.Errorf("%w: non-positive leg price at strike %v (call %v, put %v)",
			ErrNoQualifyingOptions, row.Strike, row.Call.Last, row.Put.Last)
	}
	return row, nil
}
