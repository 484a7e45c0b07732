package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chunkcpd/blobstore"
	"github.com/hupe1980/chunkcpd/resource"
)

func TestPayloadCacheLRU(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 100})
	c := newPayloadCache(50, rc)

	c.set("a", make([]byte, 20))
	c.set("b", make([]byte, 20))
	assert.Equal(t, int64(40), rc.MemoryUsage())

	// Touch a so that b is the least recently used entry.
	_, ok := c.get("a")
	require.True(t, ok)

	c.set("c", make([]byte, 20))
	assert.Equal(t, int64(40), rc.MemoryUsage())

	_, ok = c.get("b")
	assert.False(t, ok)
	_, ok = c.get("a")
	assert.True(t, ok)

	// Larger than the whole cache.
	c.set("d", make([]byte, 60))
	_, ok = c.get("d")
	assert.False(t, ok)

	c.remove("a")
	c.remove("c")
	assert.Zero(t, rc.MemoryUsage())

	s := c.stats()
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(2), s.Misses)
	assert.Zero(t, s.Runs)
}

func TestPayloadCacheRespectsController(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 30})
	require.NoError(t, rc.AcquireMemory(20))

	c := newPayloadCache(100, rc)
	c.set("a", make([]byte, 20))

	_, ok := c.get("a")
	assert.False(t, ok)
	assert.Equal(t, int64(20), rc.MemoryUsage())
}

func TestArchiveCache(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	arc := New(store, WithCache(1<<20))

	id, err := arc.Save(ctx, sampleRecord())
	require.NoError(t, err)

	_, err = arc.Load(ctx, id)
	require.NoError(t, err)

	// Served from memory even after the blob is gone.
	require.NoError(t, store.Delete(ctx, "runs/"+id+".cpd"))

	rec, err := arc.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int{300, 650}, rec.ChangePoints)

	s := arc.CacheStats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, 1, s.Runs)

	require.NoError(t, arc.Delete(ctx, id))
	assert.Zero(t, arc.CacheStats().Runs)

	_, err = arc.Load(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, CacheStats{}, New(store).CacheStats())
}
