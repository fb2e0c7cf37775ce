package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"punchd/internal/attendance/models"
	"punchd/pkg/requestcontext"
	"punchd/pkg/sentinel"
)

// MemoryStore keeps records in an in-process map keyed by (owner, day). It is
// the test double for the badger and postgres backends and a zero-setup
// fallback; the mutex makes the read-then-write upsert atomic.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[memoryKey]models.Record
	loc     *time.Location
}

type memoryKey struct {
	ownerID string
	day     string
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryLocation sets the time zone used to truncate calendar days.
func WithMemoryLocation(loc *time.Location) MemoryOption {
	return func(s *MemoryStore) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewMemory constructs an empty in-memory store.
func NewMemory(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[memoryKey]models.Record),
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) key(ownerID string, day time.Time) memoryKey {
	return memoryKey{ownerID: ownerID, day: dayKey(day)}
}

func (s *MemoryStore) FetchToday(ctx context.Context, ownerID string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := models.DayOf(requestcontext.Now(ctx), s.loc)
	if rec, ok := s.records[s.key(ownerID, today)]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (s *MemoryStore) FetchHistory(_ context.Context, ownerID string, start, end time.Time) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	startDay := models.DayOf(start, s.loc)
	endDay := models.DayOf(end, s.loc)

	var out []models.Record
	for key, rec := range s.records {
		if key.ownerID != ownerID {
			continue
		}
		if rec.Day.Before(startDay) || rec.Day.After(endDay) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Day.After(out[j].Day)
	})
	return out, nil
}

func (s *MemoryStore) CheckIn(ctx context.Context, ownerID string, t time.Time, manual bool, lat, lon float64) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := requestcontext.Now(ctx)
	key := s.key(ownerID, models.DayOf(now, s.loc))

	rec, ok := s.records[key]
	if !ok {
		rec = models.NewRecord(ownerID, now, s.loc)
	}
	checkIn := t
	rec.CheckInTime = &checkIn
	rec.CheckInManual = manual
	rec.Latitude = &lat
	rec.Longitude = &lon
	s.records[key] = rec
	return rec, nil
}

func (s *MemoryStore) CheckOut(ctx context.Context, ownerID string, t time.Time, manual bool) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.key(ownerID, models.DayOf(requestcontext.Now(ctx), s.loc))
	rec, ok := s.records[key]
	if !ok {
		return models.Record{}, sentinel.ErrNotFound
	}
	checkOut := t
	rec.CheckOutTime = &checkOut
	rec.CheckOutManual = manual
	s.records[key] = rec
	return rec, nil
}

func (s *MemoryStore) CreateManual(_ context.Context, ownerID string, day time.Time, checkIn, checkOut *time.Time) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.key(ownerID, models.DayOf(day, s.loc))
	rec, ok := s.records[key]
	if !ok {
		rec = models.NewRecord(ownerID, day, s.loc)
	}
	if checkIn != nil {
		t := *checkIn
		rec.CheckInTime = &t
		rec.CheckInManual = true
	}
	if checkOut != nil {
		t := *checkOut
		rec.CheckOutTime = &t
		rec.CheckOutManual = true
	}
	s.records[key] = rec
	return rec, nil
}

func (s *MemoryStore) UpdateTime(_ context.Context, rec models.Record, checkIn, checkOut *time.Time) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.key(rec.OwnerID, rec.Day)
	current, ok := s.records[key]
	if !ok || current.ID != rec.ID {
		return models.Record{}, sentinel.ErrNotFound
	}
	if checkIn != nil {
		t := *checkIn
		current.CheckInTime = &t
		current.CheckInManual = true
	}
	if checkOut != nil {
		t := *checkOut
		current.CheckOutTime = &t
		current.CheckOutManual = true
	}
	s.records[key] = current
	return current, nil
}

func (s *MemoryStore) Delete(_ context.Context, rec models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.key(rec.OwnerID, rec.Day)
	current, ok := s.records[key]
	if !ok || current.ID != rec.ID {
		return sentinel.ErrNotFound
	}
	delete(s.records, key)
	return nil
}

func (s *MemoryStore) DeleteAll(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.records {
		if key.ownerID == ownerID {
			delete(s.records, key)
		}
	}
	return nil
}

func (s *MemoryStore) Count(_ context.Context, ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for key := range s.records {
		if key.ownerID == ownerID {
			count++
		}
	}
	return count, nil
}
