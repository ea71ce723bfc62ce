package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	err   error
	calls int
	last  string
}

func (f *fakeNotifier) Notify(_ context.Context, message string) error {
	f.calls++
	f.last = message
	return f.err
}

func TestBreakerPassesThrough(t *testing.T) {
	fake := &fakeNotifier{}
	b := NewBreaker(fake)

	require.NoError(t, b.Notify(context.Background(), "hello"))
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, "hello", fake.last)
}

func TestBreakerTripsAfterRepeatedFailures(t *testing.T) {
	fake := &fakeNotifier{err: errors.New("telegram down")}
	b := NewBreakerWithSettings(fake, BreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  2,
		FailureRatio: 0.5,
	})
	ctx := context.Background()

	// Failures below the minimum pass the inner error through.
	require.ErrorContains(t, b.Notify(ctx, "one"), "telegram down")
	require.ErrorContains(t, b.Notify(ctx, "two"), "telegram down")

	// Tripped: the channel is no longer called.
	err := b.Notify(ctx, "three")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, fake.calls)
}

func TestBreakerStaysClosedUnderMinRequests(t *testing.T) {
	fake := &fakeNotifier{err: errors.New("flaky")}
	b := NewBreakerWithSettings(fake, BreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  10,
		FailureRatio: 0.5,
	})

	for i := 0; i < 5; i++ {
		err := b.Notify(context.Background(), "msg")
		require.ErrorContains(t, err, "flaky")
	}
	assert.Equal(t, 5, fake.calls)
}
