package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"punchd/pkg/requestcontext"
)

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemory()
	})
}

func TestMemoryStore_ConcurrentCheckIn(t *testing.T) {
	s := NewMemory()
	fixedNow := time.Date(2026, 8, 28, 10, 0, 0, 0, time.Local)
	ctx := requestcontext.WithTime(context.Background(), fixedNow)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			_, err := s.CheckIn(ctx, "owner-1", fixedNow.Add(time.Duration(offset)*time.Second), false, 41.3, 69.2)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	count, err := s.Count(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "concurrent check-ins for one day must collapse to one record")
}

func TestMemoryStore_LocationOption(t *testing.T) {
	tashkent := time.FixedZone("UZT", 5*60*60)
	s := NewMemory(WithMemoryLocation(tashkent))

	// 22:00 UTC on the 28th is already 03:00 on the 29th in UTC+5, so the
	// record must be filed under the 29th.
	lateEvening := time.Date(2026, 8, 28, 22, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), lateEvening)

	rec, err := s.CheckIn(ctx, "owner-1", lateEvening, false, 41.3, 69.2)
	require.NoError(t, err)
	assert.Equal(t, 29, rec.Day.Day(), "22:00 UTC is already the next day in UTC+5")
}
