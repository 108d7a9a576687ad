package chunkstore

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/kdgo/internal/conv"
)

var (
	// ErrChunkNotFound is returned by ReadChunk for unknown names.
	ErrChunkNotFound = errors.New("chunkstore: chunk not found")
	// ErrInvalidChunk is returned when a chunk's payload does not match its
	// declared shape.
	ErrInvalidChunk = errors.New("chunkstore: invalid chunk")
	// ErrInvalidMetadata is returned for metadata keys or values that cannot
	// be represented in the text table.
	ErrInvalidMetadata = errors.New("chunkstore: invalid metadata")
	// ErrFormat is returned when a container cannot be parsed.
	ErrFormat = errors.New("chunkstore: malformed container")
	// ErrChecksum is returned when a chunk payload fails its CRC check.
	ErrChecksum = errors.New("chunkstore: checksum mismatch")
	// ErrClosed is returned by a closed container.
	ErrClosed = errors.New("chunkstore: container is closed")
)

// Chunk is a named array of Rows items of ItemSize bytes each.
type Chunk struct {
	Name     string
	ItemSize int
	Rows     int
	Data     []byte
}

// Validate checks that Data holds exactly Rows*ItemSize bytes.
func (c *Chunk) Validate() error {
	if c.Name == "" || len(c.Name) > 0xFFFF {
		return fmt.Errorf("%w: bad name %q", ErrInvalidChunk, c.Name)
	}
	size, err := conv.MulInt(c.ItemSize, c.Rows)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidChunk, c.Name, err)
	}
	if size != len(c.Data) {
		return fmt.Errorf("%w: %s: %d rows of %d bytes need %d bytes, have %d",
			ErrInvalidChunk, c.Name, c.Rows, c.ItemSize, size, len(c.Data))
	}
	return nil
}

// Store is a chunk container.
type Store interface {
	// ReadChunk returns the named chunk or ErrChunkNotFound.
	ReadChunk(name string) (*Chunk, error)
	// WriteChunk adds or replaces a chunk.
	WriteChunk(c *Chunk) error
	// Metadata returns a metadata value.
	Metadata(key string) (string, bool)
	// SetMetadata adds or replaces a metadata value.
	SetMetadata(key, value string) error
}

// Metadata is the flat key/value table of a container.
type Metadata map[string]string

// Keys returns the keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func validateMetadata(key, value string) error {
	if key == "" || strings.ContainsAny(key, "= \t\r\n") {
		return fmt.Errorf("%w: key %q", ErrInvalidMetadata, key)
	}
	if strings.ContainsAny(value, "\r\n") || strings.TrimSpace(value) != value {
		return fmt.Errorf("%w: value %q for key %s", ErrInvalidMetadata, value, key)
	}
	return nil
}
