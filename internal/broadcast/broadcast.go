// Package broadcast publishes the ephemeral "currently checked in" signal
// consumed by out-of-process status surfaces. The engine only needs a
// start/end signal; delivery guarantees are the consumer's problem.
package broadcast

import (
	"context"
	"time"
)

// Broadcaster starts and ends the live attendance status for an owner.
type Broadcaster interface {
	Start(ctx context.Context, ownerID string, checkInTime time.Time) error
	End(ctx context.Context, ownerID string) error
}

// Noop discards broadcasts. Used when no redis is configured.
type Noop struct{}

func (Noop) Start(context.Context, string, time.Time) error { return nil }
func (Noop) End(context.Context, string) error              { return nil }
