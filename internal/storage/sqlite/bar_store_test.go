package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/storage"
)

func newTestBarStore(t *testing.T) *BarStore {
	t.Helper()
	store, err := NewBarStore(context.Background(), openTestDB(t))
	require.NoError(t, err)
	return store
}

func TestBarStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestBarStore(t)

	bars := []*models.DailyBar{
		{Symbol: "SPY", Date: day(t, "2023-01-04"), Open: 384.4, High: 386.4, Low: 382.6, Close: 383.8, Volume: 81_000_000},
		{Symbol: "SPY", Date: day(t, "2023-01-03"), Open: 384.0, High: 386.9, Low: 377.8, Close: 380.8, Volume: 93_000_000},
		{Symbol: "VIX", Date: day(t, "2023-01-03"), Open: 22.7, High: 23.6, Low: 22.3, Close: 22.9, Volume: 0},
	}
	require.NoError(t, store.InsertBars(ctx, bars))

	got, err := store.BarsForSymbol(ctx, "SPY")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Date.Equal(day(t, "2023-01-03")))
	assert.True(t, got[1].Date.Equal(day(t, "2023-01-04")))
	assert.Equal(t, 380.8, got[0].Close)
	assert.Equal(t, int64(81_000_000), got[1].Volume)
}

func TestBarStoreSymbolIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	store := newTestBarStore(t)

	require.NoError(t, store.InsertBars(ctx, []*models.DailyBar{
		{Symbol: "spy", Date: day(t, "2023-01-03"), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
	}))

	got, err := store.BarsForSymbol(ctx, "SPY")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SPY", got[0].Symbol)
}

func TestBarStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := newTestBarStore(t)

	bar := &models.DailyBar{Symbol: "SPY", Date: day(t, "2023-01-03"), Open: 384.0, High: 386.9, Low: 377.8, Close: 380.8, Volume: 93_000_000}
	require.NoError(t, store.InsertBars(ctx, []*models.DailyBar{bar}))

	revised := *bar
	revised.Close = 381.2
	require.NoError(t, store.InsertBars(ctx, []*models.DailyBar{&revised}))

	got, err := store.BarsForSymbol(ctx, "SPY")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 381.2, got[0].Close)
}

func TestBarStoreMissingSymbol(t *testing.T) {
	store := newTestBarStore(t)

	_, err := store.BarsForSymbol(context.Background(), "QQQ")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBarStoreRejectsInvalidBar(t *testing.T) {
	store := newTestBarStore(t)

	err := store.InsertBars(context.Background(), []*models.DailyBar{
		{Date: day(t, "2023-01-03"), Close: 1},
	})
	require.ErrorIs(t, err, storage.ErrInvalidInput)
}
