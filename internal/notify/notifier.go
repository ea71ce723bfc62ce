// Package notify delivers backtest progress and completion messages to an
// operator channel. The engine treats delivery as best effort: a failed
// notification is logged and never interrupts a run.
package notify

import "context"

// Notifier sends a plain-text message to the configured channel.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Noop discards every message. Used when no channel is configured.
type Noop struct{}

// Compile-time interface check.
var _ Notifier = Noop{}

func (Noop) Notify(context.Context, string) error { return nil }
