package fingerprint

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_LRUEviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend(2)

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Hour))

	// Touch a so b becomes least recently used.
	_, ok, _ := m.Get(ctx, "a")
	require.True(t, ok)

	require.NoError(t, m.Set(ctx, "c", []byte("3"), time.Hour))

	_, ok, _ = m.Get(ctx, "b")
	assert.False(t, ok, "b should be evicted")
	_, ok, _ = m.Get(ctx, "a")
	assert.True(t, ok)
	_, ok, _ = m.Get(ctx, "c")
	assert.True(t, ok)

	n, _ := m.Len(ctx)
	assert.Equal(t, 2, n)
}

func TestMemoryBackend_TTLIsAbsolute(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryBackend(10)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Hour))

	// Frequent access does not extend the lifetime.
	for i := 0; i < 5; i++ {
		now = now.Add(10 * time.Minute)
		_, ok, _ := m.Get(ctx, "k")
		require.True(t, ok)
	}

	now = now.Add(10 * time.Minute)
	_, ok, _ := m.Get(ctx, "k")
	assert.False(t, ok, "entry must expire after its ttl")

	n, _ := m.Len(ctx)
	assert.Equal(t, 0, n)
}

func TestMemoryBackend_OverwriteRefreshes(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend(10)

	require.NoError(t, m.Set(ctx, "k", []byte("old"), time.Hour))
	require.NoError(t, m.Set(ctx, "k", []byte("new"), time.Hour))

	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", string(v))
}

func TestMemoryBackend_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend(10)
	for i := 0; i < 4; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Hour))
	}

	require.NoError(t, m.Delete(ctx, "k0"))
	require.NoError(t, m.Delete(ctx, "missing"))
	n, _ := m.Len(ctx)
	assert.Equal(t, 3, n)

	removed, err := m.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	n, _ = m.Len(ctx)
	assert.Equal(t, 0, n)
}

func TestMemoryBackend_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend(50)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%60)
				_ = m.Set(ctx, key, []byte(fmt.Sprint(w)), time.Hour)
				_, _, _ = m.Get(ctx, key)
			}
		}(w)
	}
	wg.Wait()

	n, _ := m.Len(ctx)
	assert.LessOrEqual(t, n, 50)
	assert.Equal(t, m.order.Len(), len(m.items))
}
