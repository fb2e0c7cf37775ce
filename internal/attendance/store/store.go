// Package store defines the attendance persistence contract and its
// implementations. The local embedded (badger), remote synchronized
// (postgres), and in-memory backends conform to the same interface so the
// gate chain runs against any of them interchangeably.
package store

import (
	"context"
	"time"

	"punchd/internal/attendance/models"
)

// Store is the attendance persistence contract.
//
// CheckIn is an upsert keyed by (owner, calendar day): calling it twice in a
// day updates the existing record, never creates a second one. Every method
// returns value snapshots; callers must re-fetch rather than trust cached
// state across restarts.
type Store interface {
	// FetchToday returns the record whose calendar day equals today for the
	// owner, or nil when none exists.
	FetchToday(ctx context.Context, ownerID string) (*models.Record, error)

	// FetchHistory returns records in the inclusive day range, descending by
	// day.
	FetchHistory(ctx context.Context, ownerID string, start, end time.Time) ([]models.Record, error)

	// CheckIn creates or updates today's record with the check-in fields.
	CheckIn(ctx context.Context, ownerID string, t time.Time, manual bool, lat, lon float64) (models.Record, error)

	// CheckOut sets the check-out fields on today's record. Returns
	// sentinel.ErrNotFound when no record exists; there is no implicit
	// check-in.
	CheckOut(ctx context.Context, ownerID string, t time.Time, manual bool) (models.Record, error)

	// CreateManual creates or updates the record for an arbitrary calendar
	// day with hand-entered timestamps, marking the manual flag for each
	// supplied field. This backs past-day entry, which CheckIn cannot do
	// because it always keys on the request clock's today.
	CreateManual(ctx context.Context, ownerID string, day time.Time, checkIn, checkOut *time.Time) (models.Record, error)

	// UpdateTime patches the non-nil timestamps only, marking the
	// corresponding manual flag.
	UpdateTime(ctx context.Context, rec models.Record, checkIn, checkOut *time.Time) (models.Record, error)

	// Delete removes one record.
	Delete(ctx context.Context, rec models.Record) error

	// DeleteAll removes every record owned by the owner.
	DeleteAll(ctx context.Context, ownerID string) error

	// Count returns the total records owned by the owner, used for guest
	// quota enforcement.
	Count(ctx context.Context, ownerID string) (int, error)
}

const dayKeyLayout = "2006-01-02"

// dayKey renders a calendar day as the stable storage key component.
func dayKey(day time.Time) string {
	return day.Format(dayKeyLayout)
}
