package models

import (
	"time"

	"github.com/google/uuid"
)

// Record is one owner's attendance for one calendar day. Records are value
// snapshots: stores return fresh copies from every operation and callers never
// hold a shared mutable handle.
type Record struct {
	ID      uuid.UUID
	OwnerID string // empty for local/guest records
	Day     time.Time

	CheckInTime  *time.Time
	CheckOutTime *time.Time

	// Manual flags mark timestamps entered by hand rather than captured live.
	CheckInManual  bool
	CheckOutManual bool

	// Coordinates captured at check-in only.
	Latitude  *float64
	Longitude *float64
}

// DayOf truncates t to the start of its calendar day in loc. The truncated
// day is the natural key for one record per owner.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// NewRecord creates an empty record for the owner's calendar day containing t.
func NewRecord(ownerID string, t time.Time, loc *time.Location) Record {
	return Record{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Day:     DayOf(t, loc),
	}
}

func (r Record) HasCheckedIn() bool {
	return r.CheckInTime != nil
}

func (r Record) HasCheckedOut() bool {
	return r.CheckOutTime != nil
}

// IsComplete reports whether both check-in and check-out happened.
func (r Record) IsComplete() bool {
	return r.HasCheckedIn() && r.HasCheckedOut()
}

// WorkDuration returns the checked-in span. The second return is false when
// either timestamp is missing; an incomplete day has no defined duration.
func (r Record) WorkDuration() (time.Duration, bool) {
	if r.CheckInTime == nil || r.CheckOutTime == nil {
		return 0, false
	}
	return r.CheckOutTime.Sub(*r.CheckInTime), true
}

// Status values describe the record's place in the daily lifecycle.
type Status string

const (
	StatusNotCheckedIn Status = "not_checked_in"
	StatusCheckedIn    Status = "checked_in"
	StatusComplete     Status = "complete"
)

// Status derives the display status for the day.
func (r Record) Status() Status {
	switch {
	case r.IsComplete():
		return StatusComplete
	case r.HasCheckedIn():
		return StatusCheckedIn
	default:
		return StatusNotCheckedIn
	}
}

// DailyStat is one day of the weekly view. Derived, never persisted.
type DailyStat struct {
	Date    time.Time
	Hours   float64
	Weekday string
}

// MonthlySummary aggregates one visible month of records.
type MonthlySummary struct {
	CompleteDays     int
	TotalWorked      time.Duration
	AverageWorkHours float64
	Records          []Record // descending by day
}
