package rediscache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorcenter/core/attendance"
	"github.com/trezcool/tutorcenter/storage/database/inmem"
	"github.com/trezcool/tutorcenter/tests"
)

// countingDirectory counts the lookups that reach the backing directory.
type countingDirectory struct {
	attendance.CenterDirectory
	calls int32
}

func (d *countingDirectory) GetCenter(ctx context.Context, id string) (attendance.Center, error) {
	atomic.AddInt32(&d.calls, 1)
	return d.CenterDirectory.GetCenter(ctx, id)
}

func setup(t *testing.T) (*CenterCache, *countingDirectory, *miniredis.Miniredis, *inmemdb.Repository) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := inmemdb.NewRepository(inmemdb.Open())
	next := &countingDirectory{CenterDirectory: repo}
	return NewCenterCache(client, next, time.Minute, new(testutil.Logger)), next, mr, repo
}

func TestCenterCache_GetCenter(t *testing.T) {
	cache, next, mr, repo := setup(t)
	ctx := context.Background()
	ctr := testutil.CreateCenter(t, repo, "Indiranagar", testutil.Bangalore.Lat(), testutil.Bangalore.Lon())

	for i := 0; i < 3; i++ {
		got, err := cache.GetCenter(ctx, ctr.ID)
		require.NoError(t, err)
		assert.Equal(t, ctr, got)
	}
	assert.EqualValues(t, 1, next.calls)
	assert.True(t, mr.Exists(keyPrefix+ctr.ID))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+ctr.ID))

	mr.FastForward(2 * time.Minute)
	_, err := cache.GetCenter(ctx, ctr.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, next.calls)

	require.NoError(t, cache.Invalidate(ctx, ctr.ID))
	assert.False(t, mr.Exists(keyPrefix+ctr.ID))
}

func TestCenterCache_unsetLocation(t *testing.T) {
	cache, _, _, repo := setup(t)
	ctx := context.Background()
	ctr := testutil.CreateCenter(t, repo, "Unset", 0, 0)

	_, err := cache.GetCenter(ctx, ctr.ID)
	require.NoError(t, err)
	got, err := cache.GetCenter(ctx, ctr.ID) // from cache
	require.NoError(t, err)
	assert.False(t, got.HasLocation())
}

func TestCenterCache_notFoundIsNotCached(t *testing.T) {
	cache, next, mr, _ := setup(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := cache.GetCenter(ctx, "gone")
		assert.True(t, errors.Is(err, attendance.ErrCenterNotFound))
	}
	assert.EqualValues(t, 2, next.calls)
	assert.False(t, mr.Exists(keyPrefix+"gone"))
}

func TestCenterCache_redisDown(t *testing.T) {
	cache, next, mr, repo := setup(t)
	ctx := context.Background()
	ctr := testutil.CreateCenter(t, repo, "Indiranagar", testutil.Bangalore.Lat(), testutil.Bangalore.Lon())

	mr.Close()
	got, err := cache.GetCenter(ctx, ctr.ID)
	require.NoError(t, err)
	assert.Equal(t, ctr, got)
	assert.EqualValues(t, 1, next.calls)
}

func TestCenterCache_corruptEntry(t *testing.T) {
	cache, next, mr, repo := setup(t)
	ctx := context.Background()
	ctr := testutil.CreateCenter(t, repo, "Indiranagar", testutil.Bangalore.Lat(), testutil.Bangalore.Lon())

	require.NoError(t, mr.Set(keyPrefix+ctr.ID, "{not json"))
	got, err := cache.GetCenter(ctx, ctr.ID)
	require.NoError(t, err)
	assert.Equal(t, ctr, got)
	assert.EqualValues(t, 1, next.calls)
}
