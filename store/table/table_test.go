package table

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ok, err := s.Set(ctx, "user:1", []byte(`{"name":"Alice"}`), time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	got, found, err := s.Get(ctx, "user:1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte(`{"name":"Alice"}`), got)
}

func TestUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Set(ctx, "k", []byte("old"), 0)
	require.NoError(t, err)
	_, err = s.Set(ctx, "k", []byte("new"), 0)
	require.NoError(t, err)

	got, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("new"), got)
}

func TestExpiredRowIsMissAndDeleted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Set(ctx, "k", []byte("v"), time.Millisecond)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	var count int64
	require.NoError(t, s.db.Model(&row{}).Where("cache_key = ?", "k").Count(&count).Error)
	assert.Zero(t, count, "expired row should be deleted lazily")
}

func TestNeverExpire(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Set(ctx, "forever", []byte("x"), 0)
	require.NoError(t, err)

	_, found, err := s.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SetMulti(ctx, map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	}, 0))

	got, err := s.GetMulti(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []byte("1"), got["a"])

	require.NoError(t, s.DeleteMulti(ctx, []string{"a", "b"}))
	has, err := s.Has(ctx, "a")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestIncrement(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	v, err := s.Increment(ctx, "n", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	v, err = s.Increment(ctx, "n", -2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	raw, found, err := s.Get(ctx, "n")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "3", string(raw), "counter must be ASCII decimal")
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Set(ctx, "dead", []byte("x"), time.Millisecond)
	require.NoError(t, err)
	_, err = s.Set(ctx, "alive", []byte("y"), 0)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, s.PurgeExpired(ctx))

	var count int64
	require.NoError(t, s.db.Model(&row{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
