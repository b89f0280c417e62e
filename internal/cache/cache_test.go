package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "omni-agent/internal/errors"
)

func TestMemorySetGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(8, time.Hour)

	_, err := m.Get(ctx, "price:sui")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, m.Set(ctx, "price:sui", []byte(`{"price":"1.23"}`), time.Minute))
	got, err := m.Get(ctx, "price:sui")
	require.NoError(t, err)
	assert.Equal(t, `{"price":"1.23"}`, string(got))
	assert.Equal(t, 1, m.Len())
}

func TestMemoryPerEntryTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(8, time.Hour)
	now := time.Now()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "news", []byte("[]"), 30*time.Second))

	now = now.Add(29 * time.Second)
	_, err := m.Get(ctx, "news")
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = m.Get(ctx, "news")
	require.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryEvictsOldest(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, time.Hour)

	require.NoError(t, m.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, m.Set(ctx, "c", []byte("3"), 0))

	_, err := m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = m.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestMemoryReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, time.Hour)
	src := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", src, 0))
	src[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	got[1] = 'y'

	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), time.Minute))
	_, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestNewSelectsDriver(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, Options{Driver: "memory", MaxEntries: 4, MaxTTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = New(ctx, Options{Driver: "none"})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, c)

	_, err = New(ctx, Options{Driver: "memcached"})
	assert.Error(t, err)

	_, err = New(ctx, Options{Driver: "redis"})
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeConfigInvalid, xerrors.CodeOf(err))
}

func TestRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := NewRedis(ctx, RedisConfig{Address: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeCacheFailure, xerrors.CodeOf(err))
}
