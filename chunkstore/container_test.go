package chunkstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kdgo/blobstore"
	"github.com/hupe1980/kdgo/internal/fs"
)

func sequentialChunk(name string, rows int) *Chunk {
	data := make([]byte, rows*8)
	for i := 0; i < rows; i++ {
		binary.LittleEndian.PutUint64(data[i*8:], uint64(i%17))
	}
	return &Chunk{Name: name, ItemSize: 8, Rows: rows, Data: data}
}

func TestContainer_RoundTrip(t *testing.T) {
	for _, codec := range []Codec{CodecNone, CodecLZ4, CodecZstd} {
		t.Run(codec.String(), func(t *testing.T) {
			c := New(WithCompression(codec))
			require.NoError(t, c.SetMetadata("KDT_NAME", "points"))
			require.NoError(t, c.SetMetadata("KDT_NDIM", "3"))
			require.NoError(t, c.WriteChunk(sequentialChunk("kdtree_data", 4096)))
			require.NoError(t, c.WriteChunk(&Chunk{Name: "kdtree_perm", ItemSize: 4, Rows: 0}))

			var buf bytes.Buffer
			n, err := c.Encode(&buf)
			require.NoError(t, err)
			assert.Equal(t, int64(buf.Len()), n)

			got, err := Decode(buf.Bytes())
			require.NoError(t, err)

			v, ok := got.Metadata("KDT_NAME")
			assert.True(t, ok)
			assert.Equal(t, "points", v)

			ch, err := got.ReadChunk("kdtree_data")
			require.NoError(t, err)
			want := sequentialChunk("kdtree_data", 4096)
			assert.Equal(t, want.ItemSize, ch.ItemSize)
			assert.Equal(t, want.Rows, ch.Rows)
			assert.Equal(t, want.Data, ch.Data)

			empty, err := got.ReadChunk("kdtree_perm")
			require.NoError(t, err)
			assert.Equal(t, 0, empty.Rows)
			assert.Empty(t, empty.Data)

			infos := got.Chunks()
			require.Len(t, infos, 2)
			assert.Equal(t, "kdtree_data", infos[0].Name)
			if codec != CodecNone {
				assert.Equal(t, codec, infos[0].Codec)
				assert.Less(t, infos[0].StoredLen, len(want.Data))
			}
		})
	}
}

func TestContainer_IncompressibleStoredRaw(t *testing.T) {
	data := make([]byte, 256)
	var x uint32 = 2463534242
	for i := range data {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		data[i] = byte(x)
	}
	c := New(WithCompression(CodecLZ4))
	require.NoError(t, c.WriteChunk(&Chunk{Name: "noise", ItemSize: 1, Rows: len(data), Data: data}))

	var buf bytes.Buffer
	_, err := c.Encode(&buf)
	require.NoError(t, err)

	got, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, CodecNone, got.Chunks()[0].Codec)
	ch, err := got.ReadChunk("noise")
	require.NoError(t, err)
	assert.Equal(t, data, ch.Data)
}

func TestContainer_ReplaceKeepsOrder(t *testing.T) {
	c := New()
	require.NoError(t, c.WriteChunk(sequentialChunk("a", 1)))
	require.NoError(t, c.WriteChunk(sequentialChunk("b", 1)))
	require.NoError(t, c.WriteChunk(sequentialChunk("a", 3)))

	infos := c.Chunks()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)
	assert.Equal(t, 3, infos[0].Rows)
}

func TestContainer_Errors(t *testing.T) {
	c := New()

	_, err := c.ReadChunk("missing")
	assert.ErrorIs(t, err, ErrChunkNotFound)

	err = c.WriteChunk(&Chunk{Name: "bad", ItemSize: 4, Rows: 3, Data: make([]byte, 11)})
	assert.ErrorIs(t, err, ErrInvalidChunk)

	assert.ErrorIs(t, c.SetMetadata("HAS SPACE", "x"), ErrInvalidMetadata)
	assert.ErrorIs(t, c.SetMetadata("KEY", "two\nlines"), ErrInvalidMetadata)
	assert.ErrorIs(t, c.SetMetadata("A=B", "x"), ErrInvalidMetadata)

	require.NoError(t, c.Close())
	_, err = c.ReadChunk("missing")
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, c.Close())
}

func TestDecode_Malformed(t *testing.T) {
	c := New()
	require.NoError(t, c.SetMetadata("K", "v"))
	require.NoError(t, c.WriteChunk(sequentialChunk("data", 16)))
	var buf bytes.Buffer
	_, err := c.Encode(&buf)
	require.NoError(t, err)
	image := buf.Bytes()

	t.Run("bad magic", func(t *testing.T) {
		bad := bytes.Clone(image)
		bad[0] = 'X'
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("truncated", func(t *testing.T) {
		for _, n := range []int{3, 10, len(image) / 2, len(image) - 1} {
			_, err := Decode(image[:n])
			assert.ErrorIs(t, err, ErrFormat, "length %d", n)
		}
	})

	t.Run("trailing bytes", func(t *testing.T) {
		_, err := Decode(append(bytes.Clone(image), 0))
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("corrupt payload", func(t *testing.T) {
		bad := bytes.Clone(image)
		bad[len(bad)-1] ^= 0xFF
		got, err := Decode(bad)
		require.NoError(t, err)
		_, err = got.ReadChunk("data")
		assert.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("oversized raw length", func(t *testing.T) {
		for _, codec := range []Codec{CodecLZ4, CodecZstd} {
			stored := []byte{0x10, 0x00}
			rows := 1 << 50
			c := New()
			e := &entry{name: "data", itemSize: 1, rows: rows, codec: codec, rawLen: rows, stored: stored, crc: checksum(stored)}
			c.entries = append(c.entries, e)
			c.index[e.name] = e

			_, err := c.ReadChunk("data")
			assert.ErrorIs(t, err, ErrFormat, codec.String())
		}
	})
}

func TestDecompress_ExpansionBound(t *testing.T) {
	_, err := decompress(make([]byte, 4), CodecLZ4, 4*255+1)
	assert.ErrorIs(t, err, ErrFormat)

	data := make([]byte, 1<<16)
	for _, codec := range []Codec{CodecLZ4, CodecZstd} {
		stored, used, err := compress(data, codec)
		require.NoError(t, err)
		require.Equal(t, codec, used)
		raw, err := decompress(stored, codec, len(data))
		require.NoError(t, err, codec.String())
		assert.Equal(t, data, raw)
	}
}

func TestContainer_SaveOpen(t *testing.T) {
	ctx := context.Background()
	stores := map[string]blobstore.BlobStore{
		"memory": blobstore.NewMemoryStore(),
		"local":  blobstore.NewLocalStore(t.TempDir()),
	}
	for name, blobs := range stores {
		t.Run(name, func(t *testing.T) {
			c := New(WithCompression(CodecZstd))
			require.NoError(t, c.SetMetadata("KDT_VER", "1"))
			require.NoError(t, c.WriteChunk(sequentialChunk("kdtree_data", 1000)))
			n, err := c.Save(ctx, blobs, "tree.kdc")
			require.NoError(t, err)
			assert.Greater(t, n, int64(0))

			got, err := Open(ctx, blobs, "tree.kdc")
			require.NoError(t, err)
			defer got.Close()
			ch, err := got.ReadChunk("kdtree_data")
			require.NoError(t, err)
			assert.Equal(t, sequentialChunk("kdtree_data", 1000).Data, ch.Data)
			assert.Equal(t, Metadata{"KDT_VER": "1"}, got.AllMetadata())

			// Re-saving an opened container keeps undecoded chunks as stored.
			_, err = got.Save(ctx, blobs, "copy.kdc")
			require.NoError(t, err)
			cp, err := Open(ctx, blobs, "copy.kdc")
			require.NoError(t, err)
			defer cp.Close()
			ch2, err := cp.ReadChunk("kdtree_data")
			require.NoError(t, err)
			assert.Equal(t, ch.Data, ch2.Data)
		})
	}
}

func TestContainer_SaveFailureDoesNotPublish(t *testing.T) {
	ctx := context.Background()
	faulty := fs.NewFaultyFS(fs.Default)
	faulty.AddRule("tree.kdc", fs.Fault{FailAfterBytes: 64})
	blobs := blobstore.NewLocalStore(t.TempDir(), blobstore.WithFileSystem(faulty))

	c := New()
	require.NoError(t, c.WriteChunk(sequentialChunk("kdtree_data", 100000)))
	_, err := c.Save(ctx, blobs, "tree.kdc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrInjected))

	_, err = Open(ctx, blobs, "tree.kdc")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestContainer_WriteLimit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := New(WithWriteLimit(1024))
	require.NoError(t, c.WriteChunk(sequentialChunk("kdtree_data", 100000)))
	blobs := blobstore.NewMemoryStore()
	_, err := c.Save(ctx, blobs, "slow.kdc")
	require.Error(t, err)

	names, err := blobs.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestParseCodec(t *testing.T) {
	for _, c := range []Codec{CodecNone, CodecLZ4, CodecZstd} {
		got, err := ParseCodec(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCodec("brotli")
	assert.Error(t, err)
}
