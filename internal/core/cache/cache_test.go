package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	return New(mr.Addr(), "", 0), mr
}

var items = Entry[item]{Prefix: "property", TTL: time.Minute, Miss: errMissing}

var errMissing = errors.New("missing")

func TestEntryCachesValue(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	var calls int32
	load := func(context.Context) (*item, error) {
		atomic.AddInt32(&calls, 1)
		return &item{ID: "p1", Title: "Villa"}, nil
	}

	got, err := items.Get(ctx, c, "p1", load)
	require.NoError(t, err)
	assert.Equal(t, "Villa", got.Title)

	got, err = items.Get(ctx, c, "p1", load)
	require.NoError(t, err)
	assert.Equal(t, "Villa", got.Title)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, mr.Exists("property:p1"))

	require.NoError(t, items.Forget(ctx, c, "p1"))
	assert.False(t, mr.Exists("property:p1"))
}

func TestEntryCachesMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	var calls int32
	load := func(context.Context) (*item, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errMissing
	}

	_, err := items.Get(ctx, c, "gone", load)
	assert.ErrorIs(t, err, errMissing)
	_, err = items.Get(ctx, c, "gone", load)
	assert.ErrorIs(t, err, errMissing)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	mr.FastForward(time.Minute)
	_, err = items.Get(ctx, c, "gone", load)
	assert.ErrorIs(t, err, errMissing)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestEntryDropsCorruptValue(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("property:bad", "{not json"))
	_, err := items.Get(context.Background(), c, "bad", func(context.Context) (*item, error) {
		return &item{ID: "bad"}, nil
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("property:bad"))
}

func TestGetOrLoadSingleflight(t *testing.T) {
	c, _ := newTestCache(t)
	var calls int32
	release := make(chan struct{})
	load := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte(`"v"`), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetOrLoad(context.Background(), "k", time.Minute, load)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestLoadErrorIsNotCached(t *testing.T) {
	c, mr := newTestCache(t)
	boom := errors.New("boom")
	_, err := c.GetOrLoad(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestNilCacheFallsThrough(t *testing.T) {
	var c *Cache
	got, err := items.Get(context.Background(), c, "k", func(context.Context) (*item, error) {
		return &item{ID: "x"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "x", got.ID)
	assert.False(t, c.IsRevoked(context.Background(), "jti"))
	assert.NoError(t, c.Revoke(context.Background(), "jti", time.Minute))
}

func TestRevokeExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Revoke(ctx, "jti-1", time.Minute))
	assert.True(t, c.IsRevoked(ctx, "jti-1"))
	assert.False(t, c.IsRevoked(ctx, "jti-2"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, c.IsRevoked(ctx, "jti-1"))
}
