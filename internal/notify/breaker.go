package notify

import (
	"context"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings configures circuit breaker behavior.
type BreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// Breaker wraps a Notifier with a circuit breaker so a dead channel (bad
// token, network outage) stops being hammered mid-run.
type Breaker struct {
	next    Notifier
	breaker *gobreaker.CircuitBreaker
}

// Compile-time interface check.
var _ Notifier = (*Breaker)(nil)

// NewBreaker wraps next with default settings.
func NewBreaker(next Notifier) *Breaker {
	return NewBreakerWithSettings(next, BreakerSettings{
		MaxRequests:  1,                // Allow 1 probe when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  3,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewBreakerWithSettings wraps next with custom settings.
func NewBreakerWithSettings(next Notifier, settings BreakerSettings) *Breaker {
	gbSettings := gobreaker.Settings{
		Name:        "NotifierCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s state changed from %s to %s", name, from, to)
		},
	}

	return &Breaker{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

func (b *Breaker) Notify(ctx context.Context, message string) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.Notify(ctx, message)
	})
	return err
}
