package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorcenter/core/attendance"
	"github.com/trezcool/tutorcenter/core/geo"
)

// Repository is implemented by every storage backend.
type Repository interface {
	attendance.Store
	attendance.EntityDirectory
	attendance.CenterDirectory
	attendance.Registry
}

// RunRepositorySuite checks the storage contract the attendance service relies on.
func RunRepositorySuite(t *testing.T, repo Repository) {
	ctx := context.Background()
	day := time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)

	ctr := CreateCenter(t, repo, UniqueName("Indiranagar"), Bangalore.Lat(), Bangalore.Lon())
	unset, err := repo.CreateCenter(ctx, attendance.Center{Name: UniqueName("Unset")})
	require.NoError(t, err)
	tutor := CreateEntity(t, repo, attendance.Tutor, UniqueName("Asha"), ctr.ID)
	student := CreateEntity(t, repo, attendance.Student, UniqueName("Bala"), "")

	t.Run("centers", func(t *testing.T) {
		got, err := repo.GetCenter(ctx, ctr.ID)
		require.NoError(t, err)
		assert.Equal(t, ctr.Name, got.Name)
		assert.InDelta(t, Bangalore.Lat(), got.Location.Lat(), 1e-9)
		assert.InDelta(t, Bangalore.Lon(), got.Location.Lon(), 1e-9)

		got, err = repo.GetCenter(ctx, unset.ID)
		require.NoError(t, err)
		assert.False(t, got.HasLocation())

		_, err = repo.GetCenter(ctx, "does-not-exist")
		assert.True(t, errors.Is(err, attendance.ErrCenterNotFound), "got %v", err)
	})

	t.Run("entities", func(t *testing.T) {
		got, err := repo.GetEntity(ctx, tutor.ID)
		require.NoError(t, err)
		assert.Equal(t, tutor, got)

		got, err = repo.GetEntity(ctx, student.ID)
		require.NoError(t, err)
		assert.Empty(t, got.CenterID)

		_, err = repo.GetEntity(ctx, "does-not-exist")
		assert.True(t, errors.Is(err, attendance.ErrEntityNotFound), "got %v", err)

		ents, err := repo.ListEntities(ctx, attendance.EntityFilter{CenterID: ctr.ID})
		require.NoError(t, err)
		assert.Equal(t, []attendance.Entity{tutor}, ents)

		ents, err = repo.ListEntities(ctx, attendance.EntityFilter{Type: attendance.Student})
		require.NoError(t, err)
		assert.Contains(t, ents, student)
		assert.NotContains(t, ents, tutor)
	})

	t.Run("upsert replaces the day", func(t *testing.T) {
		first := geo.NewPoint(12.9717, 77.5946)
		rec, err := repo.UpsertRecord(ctx, tutor.ID, attendance.Record{
			Date:       day,
			Status:     attendance.StatusPresent,
			Location:   &first,
			CenterID:   ctr.ID,
			CenterName: ctr.Name,
			RecordedAt: day.Add(9 * time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, day, rec.Date)

		rec, err = repo.UpsertRecord(ctx, tutor.ID, attendance.Record{
			Date:       day,
			Status:     attendance.StatusAbsent,
			MarkedBy:   "admin",
			RecordedAt: day.Add(18 * time.Hour),
		})
		require.NoError(t, err)
		assert.Nil(t, rec.Location)

		got, err := repo.FindRecord(ctx, tutor.ID, day)
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusAbsent, got.Status)
		assert.Equal(t, "admin", got.MarkedBy)
		assert.Empty(t, got.CenterID)
		assert.True(t, day.Add(18*time.Hour).Equal(got.RecordedAt))

		recs, err := repo.ListRecords(ctx, tutor.ID, day, day)
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	})

	t.Run("concurrent upserts keep one record", func(t *testing.T) {
		other := day.AddDate(0, 0, 1)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				p := geo.NewPoint(12.9716+float64(i)*1e-5, 77.5946)
				_, err := repo.UpsertRecord(ctx, student.ID, attendance.Record{
					Date:       other,
					Status:     attendance.StatusPresent,
					Location:   &p,
					RecordedAt: other.Add(time.Duration(i) * time.Minute),
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		recs, err := repo.ListRecords(ctx, student.ID, other, other)
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	})

	t.Run("list records in range", func(t *testing.T) {
		for _, d := range []time.Time{day.AddDate(0, 0, -20), day.AddDate(0, 0, 2), day.AddDate(0, 1, 0)} {
			_, err := repo.UpsertRecord(ctx, tutor.ID, attendance.Record{Date: d, Status: attendance.StatusPresent, RecordedAt: d})
			require.NoError(t, err)
		}
		first, last := attendance.MonthRange(2024, time.March)
		recs, err := repo.ListRecords(ctx, tutor.ID, first, last)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "2024-03-14", attendance.DayKey(recs[0].Date))
		assert.Equal(t, "2024-03-16", attendance.DayKey(recs[1].Date))
	})

	t.Run("missing records", func(t *testing.T) {
		_, err := repo.FindRecord(ctx, tutor.ID, day.AddDate(1, 0, 0))
		assert.Equal(t, attendance.ErrRecordNotFound, errors.Cause(err))

		_, err = repo.UpsertRecord(ctx, "does-not-exist", attendance.Record{Date: day, Status: attendance.StatusPresent, RecordedAt: day})
		assert.True(t, errors.Is(err, attendance.ErrEntityNotFound), "got %v", err)
	})
}
