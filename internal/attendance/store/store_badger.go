package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"punchd/internal/attendance/models"
	"punchd/pkg/requestcontext"
	"punchd/pkg/sentinel"
)

// BadgerStore is the local embedded backend. Records live under
// att/<owner>/<day>, so the natural key is the badger key itself: the upsert
// cannot create a duplicate day, and badger transactions make the
// read-then-write atomic.
type BadgerStore struct {
	db  *badger.DB
	loc *time.Location
}

// BadgerOption configures a BadgerStore.
type BadgerOption func(*BadgerStore)

// WithBadgerLocation sets the time zone used to truncate calendar days.
func WithBadgerLocation(loc *time.Location) BadgerOption {
	return func(s *BadgerStore) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewBadger constructs a badger-backed store on an open database.
func NewBadger(db *badger.DB, opts ...BadgerOption) *BadgerStore {
	s := &BadgerStore{
		db:  db,
		loc: time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenBadger opens (or creates) the embedded database at dir. An empty dir
// opens an in-memory database, used by tests.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	return db, nil
}

type badgerRecord struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	Day            string     `json:"day"`
	CheckInTime    *time.Time `json:"check_in_time,omitempty"`
	CheckOutTime   *time.Time `json:"check_out_time,omitempty"`
	CheckInManual  bool       `json:"check_in_manual"`
	CheckOutManual bool       `json:"check_out_manual"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
}

func badgerKey(ownerID string, day time.Time) []byte {
	return []byte("att/" + ownerID + "/" + dayKey(day))
}

func badgerPrefix(ownerID string) []byte {
	return []byte("att/" + ownerID + "/")
}

func (s *BadgerStore) encode(rec models.Record) ([]byte, error) {
	raw, err := json.Marshal(badgerRecord{
		ID:             rec.ID.String(),
		OwnerID:        rec.OwnerID,
		Day:            dayKey(rec.Day),
		CheckInTime:    rec.CheckInTime,
		CheckOutTime:   rec.CheckOutTime,
		CheckInManual:  rec.CheckInManual,
		CheckOutManual: rec.CheckOutManual,
		Latitude:       rec.Latitude,
		Longitude:      rec.Longitude,
	})
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return raw, nil
}

func (s *BadgerStore) decode(raw []byte) (models.Record, error) {
	var stored badgerRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		return models.Record{}, fmt.Errorf("decode record: %w", err)
	}
	id, err := uuid.Parse(stored.ID)
	if err != nil {
		return models.Record{}, fmt.Errorf("decode record id: %w", err)
	}
	day, err := time.ParseInLocation(dayKeyLayout, stored.Day, s.loc)
	if err != nil {
		return models.Record{}, fmt.Errorf("decode record day: %w", err)
	}
	return models.Record{
		ID:             id,
		OwnerID:        stored.OwnerID,
		Day:            day,
		CheckInTime:    stored.CheckInTime,
		CheckOutTime:   stored.CheckOutTime,
		CheckInManual:  stored.CheckInManual,
		CheckOutManual: stored.CheckOutManual,
		Latitude:       stored.Latitude,
		Longitude:      stored.Longitude,
	}, nil
}

// getTxn loads one record inside a transaction, translating the badger miss
// into sentinel.ErrNotFound.
func (s *BadgerStore) getTxn(txn *badger.Txn, key []byte) (models.Record, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return models.Record{}, sentinel.ErrNotFound
		}
		return models.Record{}, fmt.Errorf("get record: %w", err)
	}
	var rec models.Record
	err = item.Value(func(val []byte) error {
		decoded, decodeErr := s.decode(val)
		if decodeErr != nil {
			return decodeErr
		}
		rec = decoded
		return nil
	})
	return rec, err
}

func (s *BadgerStore) FetchToday(ctx context.Context, ownerID string) (*models.Record, error) {
	today := models.DayOf(requestcontext.Now(ctx), s.loc)

	var found *models.Record
	err := s.db.View(func(txn *badger.Txn) error {
		rec, err := s.getTxn(txn, badgerKey(ownerID, today))
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *BadgerStore) FetchHistory(_ context.Context, ownerID string, start, end time.Time) ([]models.Record, error) {
	startKey := dayKey(models.DayOf(start, s.loc))
	endKey := dayKey(models.DayOf(end, s.loc))

	var out []models.Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:         badgerPrefix(ownerID),
			PrefetchValues: true,
			PrefetchSize:   64,
			// Day keys sort lexicographically; reverse iteration yields the
			// descending-by-date order the contract requires.
			Reverse: true,
		})
		defer it.Close()

		// Seek past the range end: the prefix plus endKey and a high byte.
		seek := append(badgerKey(ownerID, models.DayOf(end, s.loc)), 0xff)
		for it.Seek(seek); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			day := key[len(badgerPrefix(ownerID)):]
			if day > endKey {
				continue
			}
			if day < startKey {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				rec, decodeErr := s.decode(val)
				if decodeErr != nil {
					return decodeErr
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) CheckIn(ctx context.Context, ownerID string, t time.Time, manual bool, lat, lon float64) (models.Record, error) {
	now := requestcontext.Now(ctx)
	key := badgerKey(ownerID, models.DayOf(now, s.loc))

	var result models.Record
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := s.getTxn(txn, key)
		if errors.Is(err, sentinel.ErrNotFound) {
			rec = models.NewRecord(ownerID, now, s.loc)
		} else if err != nil {
			return err
		}
		checkIn := t
		rec.CheckInTime = &checkIn
		rec.CheckInManual = manual
		rec.Latitude = &lat
		rec.Longitude = &lon

		raw, err := s.encode(rec)
		if err != nil {
			return err
		}
		result = rec
		return txn.Set(key, raw)
	})
	if err != nil {
		return models.Record{}, err
	}
	return result, nil
}

func (s *BadgerStore) CheckOut(ctx context.Context, ownerID string, t time.Time, manual bool) (models.Record, error) {
	key := badgerKey(ownerID, models.DayOf(requestcontext.Now(ctx), s.loc))

	var result models.Record
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := s.getTxn(txn, key)
		if err != nil {
			return err
		}
		checkOut := t
		rec.CheckOutTime = &checkOut
		rec.CheckOutManual = manual

		raw, err := s.encode(rec)
		if err != nil {
			return err
		}
		result = rec
		return txn.Set(key, raw)
	})
	if err != nil {
		return models.Record{}, err
	}
	return result, nil
}

func (s *BadgerStore) CreateManual(_ context.Context, ownerID string, day time.Time, checkIn, checkOut *time.Time) (models.Record, error) {
	key := badgerKey(ownerID, models.DayOf(day, s.loc))

	var result models.Record
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := s.getTxn(txn, key)
		if errors.Is(err, sentinel.ErrNotFound) {
			rec = models.NewRecord(ownerID, day, s.loc)
		} else if err != nil {
			return err
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
		raw, err := s.encode(rec)
		if err != nil {
			return err
		}
		result = rec
		return txn.Set(key, raw)
	})
	if err != nil {
		return models.Record{}, err
	}
	return result, nil
}

func (s *BadgerStore) UpdateTime(_ context.Context, rec models.Record, checkIn, checkOut *time.Time) (models.Record, error) {
	key := badgerKey(rec.OwnerID, rec.Day)

	var result models.Record
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := s.getTxn(txn, key)
		if err != nil {
			return err
		}
		if current.ID != rec.ID {
			return sentinel.ErrNotFound
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
		raw, err := s.encode(current)
		if err != nil {
			return err
		}
		result = current
		return txn.Set(key, raw)
	})
	if err != nil {
		return models.Record{}, err
	}
	return result, nil
}

func (s *BadgerStore) Delete(_ context.Context, rec models.Record) error {
	key := badgerKey(rec.OwnerID, rec.Day)
	return s.db.Update(func(txn *badger.Txn) error {
		current, err := s.getTxn(txn, key)
		if err != nil {
			return err
		}
		if current.ID != rec.ID {
			return sentinel.ErrNotFound
		}
		return txn.Delete(key)
	})
}

func (s *BadgerStore) DeleteAll(_ context.Context, ownerID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: badgerPrefix(ownerID)})
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) Count(_ context.Context, ownerID string) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: badgerPrefix(ownerID)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
