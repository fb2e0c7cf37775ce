package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"punchd/internal/attendance/models"
	"punchd/pkg/requestcontext"
	"punchd/pkg/sentinel"
)

// SessionProvider lazily establishes a caller session. The remote backend
// signs a guest in anonymously before its first operation when no session
// exists yet.
type SessionProvider interface {
	EnsureSession(ctx context.Context) (requestcontext.OwnerSession, error)
}

// ProfileMirror persists the denormalized owner profile alongside attendance
// data. The remote backend refreshes it on every check-in.
type ProfileMirror interface {
	SaveProfile(ctx context.Context, sess requestcontext.OwnerSession) error
}

// PostgresStore is the remote synchronized backend. The unique
// (owner_id, day) constraint plus INSERT ... ON CONFLICT upsert makes CheckIn
// safe under concurrent calls without a read-then-write race.
type PostgresStore struct {
	db       *sql.DB
	sessions SessionProvider
	profiles ProfileMirror
	logger   *slog.Logger
	loc      *time.Location
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresLocation sets the time zone used to truncate calendar days.
func WithPostgresLocation(loc *time.Location) PostgresOption {
	return func(s *PostgresStore) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithProfileMirror sets the profile mirror refreshed on check-in.
func WithProfileMirror(profiles ProfileMirror) PostgresOption {
	return func(s *PostgresStore) {
		s.profiles = profiles
	}
}

// WithPostgresLogger sets the store logger.
func WithPostgresLogger(logger *slog.Logger) PostgresOption {
	return func(s *PostgresStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewPostgres constructs a postgres-backed store.
func NewPostgres(db *sql.DB, sessions SessionProvider, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		db:       db,
		sessions: sessions,
		logger:   slog.Default(),
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const recordColumns = `id, owner_id, day, check_in_time, check_out_time,
	check_in_manual, check_out_manual, latitude, longitude`

// ensureSession resolves the acting session. A matching context session wins,
// then an explicit owner id, then the provider lazily creates an anonymous
// session.
func (s *PostgresStore) ensureSession(ctx context.Context, ownerID string) (requestcontext.OwnerSession, error) {
	if sess, ok := requestcontext.Session(ctx); ok && sess.OwnerID != "" {
		if ownerID == "" || ownerID == sess.OwnerID {
			return sess, nil
		}
	}
	if ownerID != "" {
		return requestcontext.OwnerSession{OwnerID: ownerID}, nil
	}
	if s.sessions == nil {
		return requestcontext.OwnerSession{}, sentinel.ErrAuthRequired
	}
	sess, err := s.sessions.EnsureSession(ctx)
	if err != nil {
		return requestcontext.OwnerSession{}, fmt.Errorf("ensure session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) ensureOwner(ctx context.Context, ownerID string) (string, error) {
	sess, err := s.ensureSession(ctx, ownerID)
	if err != nil {
		return "", err
	}
	return sess.OwnerID, nil
}

func (s *PostgresStore) scanRecord(row interface{ Scan(...any) error }) (models.Record, error) {
	var (
		rec     models.Record
		day     time.Time
		rawID   string
		checkIn sql.NullTime
		out     sql.NullTime
		lat     sql.NullFloat64
		lon     sql.NullFloat64
	)
	err := row.Scan(&rawID, &rec.OwnerID, &day,
		&checkIn, &out, &rec.CheckInManual, &rec.CheckOutManual, &lat, &lon)
	if err != nil {
		return models.Record{}, err
	}
	if err := rec.ID.UnmarshalText([]byte(rawID)); err != nil {
		return models.Record{}, fmt.Errorf("scan record id: %w", err)
	}
	// DATE columns come back as UTC midnight; re-anchor to the store's zone.
	rec.Day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	if checkIn.Valid {
		t := checkIn.Time
		rec.CheckInTime = &t
	}
	if out.Valid {
		t := out.Time
		rec.CheckOutTime = &t
	}
	if lat.Valid {
		v := lat.Float64
		rec.Latitude = &v
	}
	if lon.Valid {
		v := lon.Float64
		rec.Longitude = &v
	}
	return rec, nil
}

func (s *PostgresStore) FetchToday(ctx context.Context, ownerID string) (*models.Record, error) {
	ownerID, err := s.ensureOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	today := dayKey(models.DayOf(requestcontext.Now(ctx), s.loc))

	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE owner_id = $1 AND day = $2`
	rec, err := s.scanRecord(s.db.QueryRowContext(ctx, query, ownerID, today))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch today: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) FetchHistory(ctx context.Context, ownerID string, start, end time.Time) ([]models.Record, error) {
	ownerID, err := s.ensureOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE owner_id = $1 AND day >= $2 AND day <= $3
		ORDER BY day DESC`
	rows, err := s.db.QueryContext(ctx, query, ownerID,
		dayKey(models.DayOf(start, s.loc)), dayKey(models.DayOf(end, s.loc)))
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("fetch history: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CheckIn(ctx context.Context, ownerID string, t time.Time, manual bool, lat, lon float64) (models.Record, error) {
	sess, err := s.ensureSession(ctx, ownerID)
	if err != nil {
		return models.Record{}, err
	}
	ownerID = sess.OwnerID
	now := requestcontext.Now(ctx)
	fresh := models.NewRecord(ownerID, now, s.loc)

	query := `
		INSERT INTO attendance_records
			(id, owner_id, day, check_in_time, check_in_manual, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id, day) DO UPDATE SET
			check_in_time   = EXCLUDED.check_in_time,
			check_in_manual = EXCLUDED.check_in_manual,
			latitude        = EXCLUDED.latitude,
			longitude       = EXCLUDED.longitude
		RETURNING ` + recordColumns
	rec, err := s.scanRecord(s.db.QueryRowContext(ctx, query,
		fresh.ID.String(), ownerID, dayKey(fresh.Day), t, manual, lat, lon))
	if err != nil {
		return models.Record{}, fmt.Errorf("check in: %w", err)
	}

	// Mirror the ensured session, not just context sessions: lazily created
	// guests have no context session yet still deserve a profile row.
	if s.profiles != nil {
		if err := s.profiles.SaveProfile(ctx, sess); err != nil {
			// The record is already persisted; a stale profile mirror is
			// not worth failing the check-in over.
			s.logger.WarnContext(ctx, "profile mirror failed",
				"owner_id", ownerID,
				"error", err,
			)
		}
	}
	return rec, nil
}

func (s *PostgresStore) CheckOut(ctx context.Context, ownerID string, t time.Time, manual bool) (models.Record, error) {
	ownerID, err := s.ensureOwner(ctx, ownerID)
	if err != nil {
		return models.Record{}, err
	}
	today := dayKey(models.DayOf(requestcontext.Now(ctx), s.loc))

	query := `
		UPDATE attendance_records SET
			check_out_time   = $3,
			check_out_manual = $4
		WHERE owner_id = $1 AND day = $2
		RETURNING ` + recordColumns
	rec, err := s.scanRecord(s.db.QueryRowContext(ctx, query, ownerID, today, t, manual))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Record{}, sentinel.ErrNotFound
		}
		return models.Record{}, fmt.Errorf("check out: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) CreateManual(ctx context.Context, ownerID string, day time.Time, checkIn, checkOut *time.Time) (models.Record, error) {
	ownerID, err := s.ensureOwner(ctx, ownerID)
	if err != nil {
		return models.Record{}, err
	}
	fresh := models.NewRecord(ownerID, day, s.loc)

	query := `
		INSERT INTO attendance_records
			(id, owner_id, day, check_in_time, check_out_time, check_in_manual, check_out_manual)
		VALUES ($1, $2, $3, $4, $5, $4::timestamptz IS NOT NULL, $5::timestamptz IS NOT NULL)
		ON CONFLICT (owner_id, day) DO UPDATE SET
			check_in_time    = COALESCE(EXCLUDED.check_in_time, attendance_records.check_in_time),
			check_in_manual  = attendance_records.check_in_manual OR EXCLUDED.check_in_time IS NOT NULL,
			check_out_time   = COALESCE(EXCLUDED.check_out_time, attendance_records.check_out_time),
			check_out_manual = attendance_records.check_out_manual OR EXCLUDED.check_out_time IS NOT NULL
		RETURNING ` + recordColumns
	rec, err := s.scanRecord(s.db.QueryRowContext(ctx, query,
		fresh.ID.String(), ownerID, dayKey(fresh.Day), checkIn, checkOut))
	if err != nil {
		return models.Record{}, fmt.Errorf("create manual record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) UpdateTime(ctx context.Context, rec models.Record, checkIn, checkOut *time.Time) (models.Record, error) {
	// Scoping by owner and day keeps a caller holding a foreign record value
	// from patching someone else's row.
	query := `
		UPDATE attendance_records SET
			check_in_time    = COALESCE($2, check_in_time),
			check_in_manual  = CASE WHEN $2::timestamptz IS NULL THEN check_in_manual ELSE TRUE END,
			check_out_time   = COALESCE($3, check_out_time),
			check_out_manual = CASE WHEN $3::timestamptz IS NULL THEN check_out_manual ELSE TRUE END
		WHERE id = $1 AND owner_id = $4 AND day = $5
		RETURNING ` + recordColumns
	updated, err := s.scanRecord(s.db.QueryRowContext(ctx, query,
		rec.ID.String(), checkIn, checkOut, rec.OwnerID, dayKey(rec.Day)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Record{}, sentinel.ErrNotFound
		}
		return models.Record{}, fmt.Errorf("update time: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) Delete(ctx context.Context, rec models.Record) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM attendance_records WHERE id = $1 AND owner_id = $2 AND day = $3`,
		rec.ID.String(), rec.OwnerID, dayKey(rec.Day))
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context, ownerID string) error {
	ownerID, err := s.ensureOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM attendance_records WHERE owner_id = $1`, ownerID)
	if err != nil {
		return fmt.Errorf("delete all records: %w", err)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context, ownerID string) (int, error) {
	ownerID, err := s.ensureOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance_records WHERE owner_id = $1`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}
