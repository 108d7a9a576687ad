package chunkstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hupe1980/kdgo/blobstore"
	"github.com/hupe1980/kdgo/internal/conv"
)

// ChunkInfo describes a chunk without decoding it.
type ChunkInfo struct {
	Name      string
	ItemSize  int
	Rows      int
	Codec     Codec
	StoredLen int
}

// Container is an in-memory chunk store that can be saved to and opened from
// a blob store.
//
// Chunks read from an opened container may alias the underlying blob and
// must be treated as read-only; they stay valid until Close.
type Container struct {
	mu      sync.Mutex
	meta    Metadata
	entries []*entry
	index   map[string]*entry
	blob    blobstore.Blob
	opts    options
	closed  bool
}

var _ Store = (*Container)(nil)

// New returns an empty container.
func New(opts ...Option) *Container {
	return &Container{
		meta:  make(Metadata),
		index: make(map[string]*entry),
		opts:  applyOptions(opts),
	}
}

// Decode parses a container image. The returned container aliases buf.
func Decode(buf []byte, opts ...Option) (*Container, error) {
	meta, entries, err := readContainer(buf)
	if err != nil {
		return nil, err
	}
	c := New(opts...)
	c.meta = meta
	c.entries = entries
	for _, e := range entries {
		c.index[e.name] = e
	}
	return c, nil
}

// Open reads the named container from blobs.
func Open(ctx context.Context, blobs blobstore.BlobStore, name string, opts ...Option) (*Container, error) {
	b, err := blobs.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	buf, err := blobstore.ReadAll(ctx, b)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("chunkstore: read %s: %w", name, err)
	}
	c, err := Decode(buf, opts...)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("chunkstore: open %s: %w", name, err)
	}
	if _, ok := b.(blobstore.Mappable); ok {
		c.blob = b
	} else {
		_ = b.Close()
	}
	c.opts.logger.Debug("chunk container opened", "name", name, "chunks", len(c.entries), "bytes", len(buf))
	return c, nil
}

// ReadChunk implements Store. The payload is verified against its checksum
// and decompressed on first access.
func (c *Container) ReadChunk(name string) (*Chunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	e, ok := c.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChunkNotFound, name)
	}
	if e.raw == nil {
		if err := e.decode(); err != nil {
			return nil, err
		}
	}
	return &Chunk{Name: e.name, ItemSize: e.itemSize, Rows: e.rows, Data: e.raw}, nil
}

func (e *entry) decode() error {
	want, err := conv.MulInt(e.itemSize, e.rows)
	if err != nil || want != e.rawLen {
		return fmt.Errorf("%w: chunk %s declares %d rows of %d bytes but %d raw bytes",
			ErrFormat, e.name, e.rows, e.itemSize, e.rawLen)
	}
	if got := checksum(e.stored); got != e.crc {
		return fmt.Errorf("%w: chunk %s: got %08x, want %08x", ErrChecksum, e.name, got, e.crc)
	}
	raw, err := decompress(e.stored, e.codec, e.rawLen)
	if err != nil {
		return fmt.Errorf("chunk %s: %w", e.name, err)
	}
	e.raw = raw
	return nil
}

// WriteChunk implements Store. The payload is copied.
func (c *Container) WriteChunk(ch *Chunk) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	e := &entry{
		name:     ch.Name,
		itemSize: ch.ItemSize,
		rows:     ch.Rows,
		rawLen:   len(ch.Data),
		raw:      bytes.Clone(ch.Data),
	}
	if e.raw == nil {
		e.raw = []byte{}
	}
	if old, ok := c.index[ch.Name]; ok {
		*old = *e
		return nil
	}
	c.index[e.name] = e
	c.entries = append(c.entries, e)
	return nil
}

// Metadata implements Store.
func (c *Container) Metadata(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.meta[key]
	return v, ok
}

// SetMetadata implements Store.
func (c *Container) SetMetadata(key, value string) error {
	if err := validateMetadata(key, value); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.meta[key] = value
	return nil
}

// AllMetadata returns a copy of the metadata table.
func (c *Container) AllMetadata() Metadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(Metadata, len(c.meta))
	for k, v := range c.meta {
		out[k] = v
	}
	return out
}

// Chunks lists the chunks in write order.
func (c *Container) Chunks() []ChunkInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChunkInfo, len(c.entries))
	for i, e := range c.entries {
		stored := len(e.stored)
		if e.stored == nil {
			stored = len(e.raw)
		}
		out[i] = ChunkInfo{Name: e.name, ItemSize: e.itemSize, Rows: e.rows, Codec: e.codec, StoredLen: stored}
	}
	return out
}

// Encode writes the container image to w and returns the bytes written.
func (c *Container) Encode(w io.Writer) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	frames := make([]*entry, len(c.entries))
	for i, e := range c.entries {
		f, err := c.frame(e)
		if err != nil {
			return 0, err
		}
		frames[i] = f
	}
	return writeContainer(w, c.meta, frames)
}

// frame returns e with its stored payload and checksum filled in. Chunks
// loaded from a blob keep their stored form once verified.
func (c *Container) frame(e *entry) (*entry, error) {
	f := *e
	if e.stored != nil && e.raw == nil {
		if got := checksum(e.stored); got != e.crc {
			return nil, fmt.Errorf("%w: chunk %s", ErrChecksum, e.name)
		}
		return &f, nil
	}
	stored, codec, err := compress(e.raw, c.opts.codec)
	if err != nil {
		return nil, fmt.Errorf("chunkstore: compress %s: %w", e.name, err)
	}
	f.stored = stored
	f.codec = codec
	f.rawLen = len(e.raw)
	f.crc = checksum(stored)
	return &f, nil
}

// Save writes the container to blobs under name. The blob is published only
// if every byte was written.
func (c *Container) Save(ctx context.Context, blobs blobstore.BlobStore, name string) (int64, error) {
	w, err := blobs.Create(ctx, name)
	if err != nil {
		return 0, err
	}
	var dst io.Writer = w
	if c.opts.writeLimit > 0 {
		dst = newLimitedWriter(ctx, w, c.opts.writeLimit)
	}
	n, err := c.Encode(dst)
	if err != nil {
		_ = blobstore.Abort(w)
		return n, fmt.Errorf("chunkstore: save %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("chunkstore: save %s: %w", name, err)
	}
	c.opts.logger.Debug("chunk container saved", "name", name, "bytes", n, "codec", c.opts.codec.String())
	return n, nil
}

// Close releases the underlying blob. Chunks previously returned by
// ReadChunk must not be used afterwards.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.entries = nil
	c.index = nil
	if c.blob != nil {
		err := c.blob.Close()
		c.blob = nil
		return err
	}
	return nil
}
