package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetAndGet(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, ms.Set(ctx, "c", "id-1", "doc"))

	doc, ok, err := ms.Get(ctx, "c", "id-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "doc", doc)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := ms.Get(ctx, "c", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_SetReplaces(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, ms.Set(ctx, "c", "id-1", "first"))
	require.NoError(t, ms.Set(ctx, "c", "id-1", "second"))

	doc, _, err := ms.Get(ctx, "c", "id-1")
	require.NoError(t, err)
	assert.Equal(t, "second", doc)
}

func TestMemoryStore_GetAll(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, ms.Set(ctx, "c", "id-1", 1))
	require.NoError(t, ms.Set(ctx, "c", "id-2", 2))
	require.NoError(t, ms.Set(ctx, "other", "id-3", 3))

	items, err := ms.GetAll(ctx, "c")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestMemoryStore_Delete(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, ms.Set(ctx, "c", "id-1", "doc"))
	require.NoError(t, ms.Delete(ctx, "c", "id-1"))

	_, ok, err := ms.Get(ctx, "c", "id-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting again is a no-op
	require.NoError(t, ms.Delete(ctx, "c", "id-1"))
}

func TestMemoryStore_Update(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, ms.Set(ctx, "c", "id-1", 1))

	updated, err := ms.Update(ctx, "c", "id-1", func(current any) any {
		return current.(int) + 1
	})
	require.NoError(t, err)
	assert.True(t, updated)

	doc, _, err := ms.Get(ctx, "c", "id-1")
	require.NoError(t, err)
	assert.Equal(t, 2, doc)
}

func TestMemoryStore_UpdateMissing(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	updated, err := ms.Update(ctx, "c", "missing", func(current any) any { return current })
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, ms.Set(ctx, "c", "counter", 0))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ms.Update(ctx, "c", "counter", func(current any) any {
				return current.(int) + 1
			})
		}()
	}
	wg.Wait()

	doc, _, err := ms.Get(ctx, "c", "counter")
	require.NoError(t, err)
	assert.Equal(t, 100, doc)
}
