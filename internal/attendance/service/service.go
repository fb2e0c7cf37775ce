// Package service sequences the check-in gate chain: guest quota, biometric
// confirmation, office proximity, then persistence. Gates run strictly in
// order and every abort is translated into one typed domain error at this
// boundary; nothing leaks into the model or aggregation layers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"punchd/internal/attendance/models"
	"punchd/internal/attendance/stats"
	"punchd/internal/attendance/store"
	"punchd/internal/broadcast"
	"punchd/internal/geo"
	"punchd/internal/platform/metrics"
	"punchd/internal/reminder"
	pkgerrors "punchd/pkg/errors"
	"punchd/pkg/requestcontext"
	"punchd/pkg/sentinel"
)

// guestCheckInLimit caps total records for anonymous owners. Fixed, not
// user-configurable.
const guestCheckInLimit = 2

// GuestAllowed is the quota policy: registered owners always pass, guests
// pass while under the record limit.
func GuestAllowed(isAnonymous bool, currentCount int) bool {
	return !isAnonymous || currentCount < guestCheckInLimit
}

// BiometricDecision is the outcome of a biometric prompt.
type BiometricDecision int

const (
	// BiometricGranted continues the gate chain.
	BiometricGranted BiometricDecision = iota
	// BiometricDeclined aborts silently; cancelling the prompt is a normal
	// user action, not an error.
	BiometricDeclined
)

// BiometricGate is the platform biometric capability. A hard failure is
// returned as an error distinct from a declined prompt.
type BiometricGate interface {
	Authenticate(ctx context.Context, reason string) (BiometricDecision, error)
}

// PermissionStatus mirrors the platform location permission states.
type PermissionStatus string

const (
	PermissionAuthorized    PermissionStatus = "authorized"
	PermissionDenied        PermissionStatus = "denied"
	PermissionNotDetermined PermissionStatus = "not_determined"
)

// LocationProvider yields a single current-location reading per attempt.
type LocationProvider interface {
	CurrentLocation(ctx context.Context) (geo.Point, error)
	PermissionStatus(ctx context.Context) PermissionStatus
}

// OutsideOfficeError carries the measured distance for user-facing messaging.
// It is recoverable: the user walks closer and retries.
type OutsideOfficeError struct {
	DistanceMeters float64
}

func (e *OutsideOfficeError) Error() string {
	return fmt.Sprintf("outside office area (%.0fm away)", e.DistanceMeters)
}

// Service orchestrates attendance operations over the selected backend.
type Service struct {
	store     store.Store
	validator *geo.Validator
	biometric BiometricGate
	location  LocationProvider

	broadcaster broadcast.Broadcaster
	reminders   reminder.Scheduler
	metrics     *metrics.Metrics
	logger      *slog.Logger
	loc         *time.Location
}

// Option configures a Service.
type Option func(*Service)

// WithBroadcaster sets the live-status broadcaster.
func WithBroadcaster(b broadcast.Broadcaster) Option {
	return func(s *Service) {
		if b != nil {
			s.broadcaster = b
		}
	}
}

// WithReminders sets the reminder scheduler.
func WithReminders(r reminder.Scheduler) Option {
	return func(s *Service) {
		if r != nil {
			s.reminders = r
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocation sets the time zone used for calendar-day arithmetic.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New constructs the gate chain service.
func New(st store.Store, validator *geo.Validator, biometric BiometricGate, location LocationProvider, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if validator == nil {
		return nil, fmt.Errorf("proximity validator is required")
	}
	if biometric == nil {
		return nil, fmt.Errorf("biometric gate is required")
	}
	if location == nil {
		return nil, fmt.Errorf("location provider is required")
	}
	svc := &Service{
		store:       st,
		validator:   validator,
		biometric:   biometric,
		location:    location,
		broadcaster: broadcast.Noop{},
		reminders:   reminder.Noop{},
		logger:      slog.Default(),
		loc:         time.Local,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// storeError translates a backend failure into a domain error. The remote
// backend refuses to act without a session; everything else is retryable
// persistence trouble.
func storeError(err error, message string) error {
	if errors.Is(err, sentinel.ErrAuthRequired) {
		return pkgerrors.Wrap(err, pkgerrors.CodeUnauthorized, "sign in required")
	}
	return pkgerrors.Wrap(err, pkgerrors.CodeInternal, message)
}

// CheckInResult is the outcome of one check-in attempt. Declined means the
// biometric prompt was cancelled and nothing else happened.
type CheckInResult struct {
	Record   models.Record
	Declined bool
}

// CheckIn runs the full gate chain for the session owner: quota (guests
// only), biometric, proximity, persistence. The first failing gate aborts
// the chain; any side effects fire only after the record is persisted.
func (s *Service) CheckIn(ctx context.Context, t time.Time, manual bool) (CheckInResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveChainDuration(time.Since(start).Seconds())
	}()

	sess, _ := requestcontext.Session(ctx)
	anonymous := sess.OwnerID == "" || sess.Anonymous

	// Gate 1: guest quota, before biometric so a blocked guest never sees
	// the platform auth prompt. The count query failing is not a block:
	// fail open and log.
	if anonymous {
		count, err := s.store.Count(ctx, sess.OwnerID)
		if err != nil {
			s.logger.WarnContext(ctx, "guest quota count failed, proceeding",
				"error", err,
			)
		} else if !GuestAllowed(true, count) {
			s.metrics.RecordGateFailure("quota")
			return CheckInResult{}, pkgerrors.Newf(pkgerrors.CodeQuotaExceeded,
				"guest limit reached (%d check-ins), sign in to continue", guestCheckInLimit)
		}
	}

	// Gate 2: biometric confirmation.
	decision, err := s.biometric.Authenticate(ctx, "Confirm your identity to check in")
	if err != nil {
		s.metrics.RecordGateFailure("biometric")
		return CheckInResult{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "biometric authentication failed")
	}
	if decision == BiometricDeclined {
		return CheckInResult{Declined: true}, nil
	}

	// Gate 3: location acquisition, then proximity.
	if status := s.location.PermissionStatus(ctx); status == PermissionDenied {
		s.metrics.RecordGateFailure("location_denied")
		return CheckInResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized,
			"location access is required to check in")
	}
	loc, err := s.location.CurrentLocation(ctx)
	if err != nil {
		s.metrics.RecordGateFailure("location_unavailable")
		return CheckInResult{}, pkgerrors.Wrap(err, pkgerrors.CodeUnavailable,
			"unable to determine your location")
	}
	validation, err := s.validator.Validate(ctx, loc)
	if err != nil {
		s.metrics.RecordGateFailure("proximity")
		return CheckInResult{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "proximity validation failed")
	}
	if !validation.Valid {
		s.metrics.RecordGateFailure("outside_office")
		return CheckInResult{}, pkgerrors.Wrap(
			&OutsideOfficeError{DistanceMeters: validation.DistanceMeters},
			pkgerrors.CodeOutOfRange, "you must be within the office area to check in")
	}

	// Gate 4: persistence. Idempotent upsert; the caller may retry the same
	// call on failure.
	rec, err := s.store.CheckIn(ctx, sess.OwnerID, t, manual, loc.Latitude, loc.Longitude)
	if err != nil {
		s.metrics.RecordGateFailure("persistence")
		return CheckInResult{}, storeError(err, "failed to save check-in, please try again")
	}

	s.metrics.RecordCheckIn()
	s.afterCheckIn(ctx, rec)
	return CheckInResult{Record: rec}, nil
}

// afterCheckIn fires the post-persistence side effects. Failures are logged,
// never surfaced: the record is already saved.
func (s *Service) afterCheckIn(ctx context.Context, rec models.Record) {
	if rec.CheckInTime != nil {
		if err := s.broadcaster.Start(ctx, rec.OwnerID, *rec.CheckInTime); err != nil {
			s.logger.WarnContext(ctx, "live-status start failed", "error", err)
		}
	}
	for _, kind := range []reminder.Kind{reminder.KindCheckOut, reminder.KindIncompleteSession} {
		if err := s.reminders.Schedule(ctx, kind, rec.OwnerID, rec.Day); err != nil {
			s.logger.WarnContext(ctx, "reminder schedule failed", "kind", kind, "error", err)
		}
	}
}

// CheckOutResult is the outcome of one check-out attempt.
type CheckOutResult struct {
	Record   models.Record
	Declined bool
}

// CheckOut short-circuits quota and proximity: biometric gate, then the
// backend update. Fails with not-found when no check-in exists for today.
func (s *Service) CheckOut(ctx context.Context, t time.Time, manual bool) (CheckOutResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveChainDuration(time.Since(start).Seconds())
	}()

	sess, _ := requestcontext.Session(ctx)

	decision, err := s.biometric.Authenticate(ctx, "Confirm your identity to check out")
	if err != nil {
		s.metrics.RecordGateFailure("biometric")
		return CheckOutResult{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "biometric authentication failed")
	}
	if decision == BiometricDeclined {
		return CheckOutResult{Declined: true}, nil
	}

	// Storage does not order the timestamps; the live flow rejects a
	// check-out earlier than the recorded check-in here.
	today, err := s.store.FetchToday(ctx, sess.OwnerID)
	if err != nil {
		return CheckOutResult{}, storeError(err, "failed to load today's record")
	}
	if today == nil {
		s.metrics.RecordGateFailure("no_check_in")
		return CheckOutResult{}, pkgerrors.New(pkgerrors.CodeNotFound,
			"no active check-in found for today")
	}
	if today.CheckInTime != nil && t.Before(*today.CheckInTime) {
		return CheckOutResult{}, pkgerrors.New(pkgerrors.CodeValidation,
			"check-out time cannot be before check-in time")
	}

	rec, err := s.store.CheckOut(ctx, sess.OwnerID, t, manual)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.RecordGateFailure("no_check_in")
			return CheckOutResult{}, pkgerrors.New(pkgerrors.CodeNotFound,
				"no active check-in found for today")
		}
		s.metrics.RecordGateFailure("persistence")
		return CheckOutResult{}, storeError(err, "failed to save check-out, please try again")
	}

	s.metrics.RecordCheckOut()
	s.afterCheckOut(ctx, rec)
	return CheckOutResult{Record: rec}, nil
}

// afterCheckOut cancels pending reminders and ends the live broadcast.
func (s *Service) afterCheckOut(ctx context.Context, rec models.Record) {
	for _, kind := range []reminder.Kind{reminder.KindCheckOut, reminder.KindIncompleteSession} {
		if err := s.reminders.Cancel(ctx, kind, rec.OwnerID, rec.Day); err != nil {
			s.logger.WarnContext(ctx, "reminder cancel failed", "kind", kind, "error", err)
		}
	}
	if err := s.broadcaster.End(ctx, rec.OwnerID); err != nil {
		s.logger.WarnContext(ctx, "live-status end failed", "error", err)
	}
}

// Today returns the session owner's record for the current calendar day, or
// nil if none exists.
func (s *Service) Today(ctx context.Context) (*models.Record, error) {
	sess, _ := requestcontext.Session(ctx)
	rec, err := s.store.FetchToday(ctx, sess.OwnerID)
	if err != nil {
		return nil, storeError(err, "failed to load today's record")
	}
	return rec, nil
}

// History returns the owner's records for the inclusive day range,
// descending by date.
func (s *Service) History(ctx context.Context, start, end time.Time) ([]models.Record, error) {
	sess, _ := requestcontext.Session(ctx)
	records, err := s.store.FetchHistory(ctx, sess.OwnerID, start, end)
	if err != nil {
		return nil, storeError(err, "failed to load history")
	}
	return records, nil
}

// UpdateTime patches timestamps directly, bypassing every gate. This is the
// explicit manual-edit path; touched fields are flagged manual by storage.
func (s *Service) UpdateTime(ctx context.Context, rec models.Record, checkIn, checkOut *time.Time) (models.Record, error) {
	if checkIn == nil && checkOut == nil {
		return models.Record{}, pkgerrors.New(pkgerrors.CodeBadRequest, "no time supplied")
	}
	updated, err := s.store.UpdateTime(ctx, rec, checkIn, checkOut)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Record{}, pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
		}
		return models.Record{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to update time")
	}
	return updated, nil
}

// AddPastRecord writes a hand-entered record for an arbitrary calendar day,
// bypassing every gate like UpdateTime. Storage marks each supplied field
// manual; an existing record for the day is patched, never duplicated.
func (s *Service) AddPastRecord(ctx context.Context, day time.Time, checkIn, checkOut *time.Time) (models.Record, error) {
	if checkIn == nil && checkOut == nil {
		return models.Record{}, pkgerrors.New(pkgerrors.CodeBadRequest, "no time supplied")
	}
	sess, _ := requestcontext.Session(ctx)
	rec, err := s.store.CreateManual(ctx, sess.OwnerID, day, checkIn, checkOut)
	if err != nil {
		return models.Record{}, storeError(err, "failed to add past record")
	}
	return rec, nil
}

// Delete removes one record.
func (s *Service) Delete(ctx context.Context, rec models.Record) error {
	if err := s.store.Delete(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
		}
		return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to delete record")
	}
	return nil
}

// DeleteAll bulk-clears the session owner's records.
func (s *Service) DeleteAll(ctx context.Context) error {
	sess, _ := requestcontext.Session(ctx)
	if err := s.store.DeleteAll(ctx, sess.OwnerID); err != nil {
		return storeError(err, "failed to clear records")
	}
	return nil
}

// WeeklyStats derives the trailing 7-day view ending today, one entry per
// day, zero hours for absent or incomplete days.
func (s *Service) WeeklyStats(ctx context.Context) ([]models.DailyStat, error) {
	sess, _ := requestcontext.Session(ctx)
	today := models.DayOf(requestcontext.Now(ctx), s.loc)
	start := today.AddDate(0, 0, -6)

	records, err := s.store.FetchHistory(ctx, sess.OwnerID, start, today)
	if err != nil {
		return nil, storeError(err, "failed to load weekly stats")
	}
	return stats.Weekly(records, today, s.loc), nil
}

// MonthlySummary aggregates the visible month containing the given date.
func (s *Service) MonthlySummary(ctx context.Context, month time.Time) (models.MonthlySummary, error) {
	sess, _ := requestcontext.Session(ctx)
	first, last := stats.MonthBounds(month, s.loc)

	records, err := s.store.FetchHistory(ctx, sess.OwnerID, first, last)
	if err != nil {
		return models.MonthlySummary{}, storeError(err, "failed to load monthly summary")
	}
	return stats.Monthly(records, month, s.loc), nil
}
