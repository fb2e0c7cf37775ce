package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"punchd/pkg/requestcontext"
	"punchd/pkg/sentinel"
)

// The behavioral contract both backends must satisfy. Each implementation's
// test file runs this against a fresh store so local and remote stay
// equivalent.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	fixedNow := time.Date(2026, 8, 28, 10, 30, 0, 0, time.Local)
	ctx := requestcontext.WithTime(context.Background(), fixedNow)

	t.Run("FetchToday returns nil before any check-in", func(t *testing.T) {
		s := newStore(t)
		rec, err := s.FetchToday(ctx, "owner-1")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("CheckIn twice in one day yields one record with the second call's times", func(t *testing.T) {
		s := newStore(t)

		first, err := s.CheckIn(ctx, "owner-1", fixedNow, false, 41.3, 69.2)
		require.NoError(t, err)
		require.NotNil(t, first.CheckInTime)

		later := fixedNow.Add(15 * time.Minute)
		second, err := s.CheckIn(ctx, "owner-1", later, true, 41.4, 69.3)
		require.NoError(t, err)

		assert.True(t, second.CheckInTime.Equal(later), "second call's time should win")
		assert.True(t, second.CheckInManual)

		count, err := s.Count(ctx, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, 1, count, "upsert must not create a duplicate day")

		today, err := s.FetchToday(ctx, "owner-1")
		require.NoError(t, err)
		require.NotNil(t, today)
		assert.True(t, today.CheckInTime.Equal(later))
	})

	t.Run("CheckOut without check-in fails with not found and persists nothing", func(t *testing.T) {
		s := newStore(t)

		_, err := s.CheckOut(ctx, "owner-1", fixedNow, false)
		require.ErrorIs(t, err, sentinel.ErrNotFound)

		count, err := s.Count(ctx, "owner-1")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("CheckOut completes today's record", func(t *testing.T) {
		s := newStore(t)

		_, err := s.CheckIn(ctx, "owner-1", fixedNow, false, 41.3, 69.2)
		require.NoError(t, err)

		out := fixedNow.Add(8 * time.Hour)
		rec, err := s.CheckOut(ctx, "owner-1", out, false)
		require.NoError(t, err)
		require.NotNil(t, rec.CheckOutTime)
		assert.True(t, rec.CheckOutTime.Equal(out))
		assert.True(t, rec.IsComplete())

		d, defined := rec.WorkDuration()
		require.True(t, defined)
		assert.Equal(t, 8*time.Hour, d)
	})

	t.Run("UpdateTime with only check-in leaves check-out untouched", func(t *testing.T) {
		s := newStore(t)

		_, err := s.CheckIn(ctx, "owner-1", fixedNow, false, 41.3, 69.2)
		require.NoError(t, err)
		rec, err := s.CheckOut(ctx, "owner-1", fixedNow.Add(8*time.Hour), false)
		require.NoError(t, err)

		edited := fixedNow.Add(-30 * time.Minute)
		updated, err := s.UpdateTime(ctx, rec, &edited, nil)
		require.NoError(t, err)

		assert.True(t, updated.CheckInTime.Equal(edited))
		assert.True(t, updated.CheckInManual, "edited field must be flagged manual")
		assert.True(t, updated.CheckOutTime.Equal(*rec.CheckOutTime), "check-out must be unchanged")
		assert.False(t, updated.CheckOutManual, "untouched flag must stay false")
	})

	t.Run("UpdateTime and Delete refuse a record claimed by another owner", func(t *testing.T) {
		s := newStore(t)

		rec, err := s.CheckIn(ctx, "owner-1", fixedNow, false, 41.3, 69.2)
		require.NoError(t, err)

		foreign := rec
		foreign.OwnerID = "owner-2"

		edited := fixedNow.Add(time.Hour)
		_, err = s.UpdateTime(ctx, foreign, &edited, nil)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
		require.ErrorIs(t, s.Delete(ctx, foreign), sentinel.ErrNotFound)

		today, err := s.FetchToday(ctx, "owner-1")
		require.NoError(t, err)
		require.NotNil(t, today)
		assert.True(t, today.CheckInTime.Equal(fixedNow), "record must be untouched")
	})

	t.Run("CreateManual writes a past day CheckIn cannot reach", func(t *testing.T) {
		s := newStore(t)

		pastDay := fixedNow.AddDate(0, 0, -10)
		in := pastDay.Add(9 * time.Hour)
		out := pastDay.Add(18 * time.Hour)
		rec, err := s.CreateManual(ctx, "owner-1", pastDay, &in, &out)
		require.NoError(t, err)

		assert.True(t, rec.CheckInTime.Equal(in))
		assert.True(t, rec.CheckOutTime.Equal(out))
		assert.True(t, rec.CheckInManual)
		assert.True(t, rec.CheckOutManual)

		history, err := s.FetchHistory(ctx, "owner-1", pastDay, pastDay)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, history[0].CheckInTime.Equal(in))

		// Today's record is unaffected either way.
		today, err := s.FetchToday(ctx, "owner-1")
		require.NoError(t, err)
		assert.Nil(t, today)
	})

	t.Run("CreateManual on an existing day patches the supplied fields only", func(t *testing.T) {
		s := newStore(t)

		rec, err := s.CheckIn(ctx, "owner-1", fixedNow, false, 41.3, 69.2)
		require.NoError(t, err)

		out := fixedNow.Add(8 * time.Hour)
		patched, err := s.CreateManual(ctx, "owner-1", fixedNow, nil, &out)
		require.NoError(t, err)

		assert.True(t, patched.CheckInTime.Equal(*rec.CheckInTime), "check-in must be unchanged")
		assert.False(t, patched.CheckInManual)
		assert.True(t, patched.CheckOutTime.Equal(out))
		assert.True(t, patched.CheckOutManual)

		count, err := s.Count(ctx, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, 1, count, "manual entry must not duplicate the day")
	})

	t.Run("FetchHistory is inclusive and descending by day", func(t *testing.T) {
		s := newStore(t)

		days := []time.Time{
			fixedNow.AddDate(0, 0, -4),
			fixedNow.AddDate(0, 0, -2),
			fixedNow,
		}
		for _, day := range days {
			dayCtx := requestcontext.WithTime(context.Background(), day)
			_, err := s.CheckIn(dayCtx, "owner-1", day, false, 41.3, 69.2)
			require.NoError(t, err)
		}

		history, err := s.FetchHistory(ctx, "owner-1", fixedNow.AddDate(0, 0, -4), fixedNow)
		require.NoError(t, err)
		require.Len(t, history, 3)
		for i := 1; i < len(history); i++ {
			assert.True(t, history[i-1].Day.After(history[i].Day), "history must be newest first")
		}

		// Exclusive of days outside the range.
		history, err = s.FetchHistory(ctx, "owner-1", fixedNow.AddDate(0, 0, -3), fixedNow.AddDate(0, 0, -1))
		require.NoError(t, err)
		require.Len(t, history, 1)
	})

	t.Run("records are scoped per owner", func(t *testing.T) {
		s := newStore(t)

		_, err := s.CheckIn(ctx, "owner-1", fixedNow, false, 41.3, 69.2)
		require.NoError(t, err)
		_, err = s.CheckIn(ctx, "owner-2", fixedNow, false, 41.3, 69.2)
		require.NoError(t, err)

		rec, err := s.FetchToday(ctx, "owner-2")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "owner-2", rec.OwnerID)

		count, err := s.Count(ctx, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Delete removes one record, DeleteAll clears the owner", func(t *testing.T) {
		s := newStore(t)

		rec, err := s.CheckIn(ctx, "owner-1", fixedNow, false, 41.3, 69.2)
		require.NoError(t, err)

		yesterday := fixedNow.AddDate(0, 0, -1)
		yCtx := requestcontext.WithTime(context.Background(), yesterday)
		_, err = s.CheckIn(yCtx, "owner-1", yesterday, false, 41.3, 69.2)
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, rec))
		count, err := s.Count(ctx, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		assert.ErrorIs(t, s.Delete(ctx, rec), sentinel.ErrNotFound)

		require.NoError(t, s.DeleteAll(ctx, "owner-1"))
		count, err = s.Count(ctx, "owner-1")
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
