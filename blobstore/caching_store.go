package blobstore

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// DefaultCacheEntries is the number of blobs a CachingStore keeps by default.
const DefaultCacheEntries = 64

// CachingStore keeps recently opened blobs in memory in front of a slower
// store. Containers are read whole when a tree is loaded, so whole blobs are
// cached rather than blocks.
type CachingStore struct {
	inner  BlobStore
	cache  *lru.Cache[string, []byte]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachingStore wraps inner with an LRU of up to entries blobs.
func NewCachingStore(inner BlobStore, entries int) (*CachingStore, error) {
	if entries <= 0 {
		entries = DefaultCacheEntries
	}
	c, err := lru.New[string, []byte](entries)
	if err != nil {
		return nil, err
	}
	return &CachingStore{inner: inner, cache: c}, nil
}

// Open serves the blob from cache, fetching and caching it on a miss.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	if data, ok := s.cache.Get(name); ok {
		s.hits.Add(1)
		return newMemoryBlob(data), nil
	}
	s.misses.Add(1)
	data, err := s.fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	return newMemoryBlob(data), nil
}

func (s *CachingStore) fetch(ctx context.Context, name string) ([]byte, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	data, err := ReadAll(ctx, b)
	if err != nil {
		return nil, err
	}
	// Mappable contents die with the blob.
	if _, ok := b.(Mappable); ok {
		data = append([]byte(nil), data...)
	}
	s.cache.Add(name, data)
	return data, nil
}

// Prefetch loads the named blobs into the cache concurrently.
func (s *CachingStore) Prefetch(ctx context.Context, names ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, name := range names {
		if s.cache.Contains(name) {
			continue
		}
		g.Go(func() error {
			_, err := s.fetch(ctx, name)
			return err
		})
	}
	return g.Wait()
}

// Create passes through; the cached copy is dropped when the write closes.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	w, err := s.inner.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &invalidatingWriter{WritableBlob: w, onClose: func() { s.cache.Remove(name) }}, nil
}

// Put writes through and invalidates the cached copy.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.cache.Remove(name)
	return s.inner.Put(ctx, name, data)
}

// Delete removes the blob from both the cache and the inner store.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.cache.Remove(name)
	return s.inner.Delete(ctx, name)
}

// List passes through.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Stats returns cache hits and misses since creation.
func (s *CachingStore) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

type invalidatingWriter struct {
	WritableBlob
	onClose func()
}

func (w *invalidatingWriter) Close() error {
	defer w.onClose()
	return w.WritableBlob.Close()
}

func (w *invalidatingWriter) Abort() error {
	return Abort(w.WritableBlob)
}
