// Package reminder marks pending attendance reminders for an out-of-process
// notifier. Scheduling and cancellation are fire-and-forget: the gate chain
// logs failures and moves on.
package reminder

import (
	"context"
	"time"
)

// Default working hours, mirroring the reminder times of the original
// notification setup (remind 15 minutes before the end of work).
const (
	WorkStartHour = 9
	WorkEndHour   = 18
)

// Kind identifies a reminder category.
type Kind string

const (
	// KindCheckOut reminds an owner who checked in to check out.
	KindCheckOut Kind = "check_out"
	// KindIncompleteSession nags about a day left without a check-out.
	KindIncompleteSession Kind = "incomplete_session"
)

// Scheduler schedules and cancels per-owner reminders for a calendar day.
type Scheduler interface {
	Schedule(ctx context.Context, kind Kind, ownerID string, day time.Time) error
	Cancel(ctx context.Context, kind Kind, ownerID string, day time.Time) error
}

// Noop discards reminder operations. Used when no redis is configured.
type Noop struct{}

func (Noop) Schedule(context.Context, Kind, string, time.Time) error { return nil }
func (Noop) Cancel(context.Context, Kind, string, time.Time) error   { return nil }
