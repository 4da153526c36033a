package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProviderRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryProvider(8, time.Minute)

	_, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, ErrCacheMiss)

	value := []byte("v")
	require.NoError(t, c.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Del(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryProviderPerEntryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	c := NewMemoryProvider(8, time.Hour)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	ok, err := c.SetNX(ctx, "k", []byte("other"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	ok, err = c.SetNX(ctx, "k", []byte("other"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryProviderBoundsSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryProvider(3, time.Minute)

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute))
	}
	assert.Equal(t, 3, c.Len())

	_, err := c.Get(ctx, "k0")
	assert.ErrorIs(t, err, ErrCacheMiss)
	got, err := c.Get(ctx, "k9")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryProviderEvictsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryProvider(10000, 50*time.Millisecond)

	for i := 0; i < 500; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), 0))
	}
	require.Equal(t, 500, c.Len())

	assert.Eventually(t, func() bool { return c.Len() == 0 }, 5*time.Second, 20*time.Millisecond)
	_, err := c.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryProviderClose(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryProvider(0, 0)
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Close())
	assert.Zero(t, c.Len())
}

func TestNewProvider(t *testing.T) {
	p, err := New("memory", 16, time.Minute)
	require.NoError(t, err)
	assert.IsType(t, &MemoryProvider{}, p)

	p, err = New("", 0, 0)
	require.NoError(t, err)
	assert.IsType(t, NoopProvider{}, p)

	_, err = New("redis", 0, 0)
	assert.Error(t, err)
}
