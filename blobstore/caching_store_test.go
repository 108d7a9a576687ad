package blobstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*MemoryStore
	mu    sync.Mutex
	opens map[string]int
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: NewMemoryStore(), opens: make(map[string]int)}
}

func (s *countingStore) Open(ctx context.Context, name string) (Blob, error) {
	s.mu.Lock()
	s.opens[name]++
	s.mu.Unlock()
	return s.MemoryStore.Open(ctx, name)
}

func (s *countingStore) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens[name]
}

func TestCachingStore_Open(t *testing.T) {
	ctx := context.Background()
	inner := newCountingStore()
	require.NoError(t, inner.Put(ctx, "tree", []byte("0123456789")))

	store, err := NewCachingStore(inner, 4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		b, err := store.Open(ctx, "tree")
		require.NoError(t, err)
		buf := make([]byte, 4)
		n, err := b.ReadAt(ctx, buf, 3)
		require.NoError(t, err)
		assert.Equal(t, "3456", string(buf[:n]))
		require.NoError(t, b.Close())
	}

	assert.Equal(t, 1, inner.count("tree"))
	hits, misses := store.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCachingStore_Invalidation(t *testing.T) {
	ctx := context.Background()
	inner := newCountingStore()
	store, err := NewCachingStore(inner, 4)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "tree", []byte("v1")))
	b, err := store.Open(ctx, "tree")
	require.NoError(t, err)
	data, _ := ReadAll(ctx, b)
	assert.Equal(t, "v1", string(data))

	w, err := store.Create(ctx, "tree")
	require.NoError(t, err)
	_, err = w.Write([]byte("v2"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b, err = store.Open(ctx, "tree")
	require.NoError(t, err)
	data, _ = ReadAll(ctx, b)
	assert.Equal(t, "v2", string(data))

	require.NoError(t, store.Delete(ctx, "tree"))
	_, err = store.Open(ctx, "tree")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachingStore_Prefetch(t *testing.T) {
	ctx := context.Background()
	inner := newCountingStore()
	names := []string{"a", "b", "c"}
	for _, n := range names {
		require.NoError(t, inner.Put(ctx, n, []byte(n)))
	}
	store, err := NewCachingStore(inner, 8)
	require.NoError(t, err)

	require.NoError(t, store.Prefetch(ctx, names...))
	for _, n := range names {
		_, err := store.Open(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, 1, inner.count(n))
	}

	assert.ErrorIs(t, store.Prefetch(ctx, "missing"), ErrNotFound)
}
