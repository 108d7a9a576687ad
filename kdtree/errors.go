package kdtree

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Nearest on an empty tree.
	ErrNotFound = errors.New("kdtree: no point found")

	// ErrClosed is returned by queries against a tree that has been closed.
	ErrClosed = errors.New("kdtree: tree is closed")

	// ErrEndianMismatch is returned when a stored tree was written with a byte
	// order different from the reading machine's.
	ErrEndianMismatch = errors.New("kdtree: stored byte order differs from native byte order")

	// ErrCorrupt is returned when stored tree metadata or chunks are inconsistent.
	ErrCorrupt = errors.New("kdtree: corrupt tree")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("kdtree: k must be positive")
)

// ErrInvalidOptions reports a build option combination that cannot produce a
// queryable tree.
type ErrInvalidOptions struct {
	Reason string
}

func (e *ErrInvalidOptions) Error() string {
	return "kdtree: invalid options: " + e.Reason
}

// ErrInvalidDimension indicates an unusable point dimension.
type ErrInvalidDimension struct {
	Dimension int
	Reason    string
}

func (e *ErrInvalidDimension) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("kdtree: invalid dimension: %d", e.Dimension)
	}
	return fmt.Sprintf("kdtree: invalid dimension %d: %s", e.Dimension, e.Reason)
}

// ErrDimensionMismatch indicates a query point whose length differs from the
// tree dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("kdtree: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrMissingChunk is returned by Read when a mandatory chunk is absent.
type ErrMissingChunk struct {
	Name string
}

func (e *ErrMissingChunk) Error() string {
	return fmt.Sprintf("kdtree: missing chunk %q", e.Name)
}

// ErrChunkSize is returned by Read when a chunk has an unexpected shape.
type ErrChunkSize struct {
	Name     string
	ItemSize int
	Rows     int
	Want     string
}

func (e *ErrChunkSize) Error() string {
	return fmt.Sprintf("kdtree: chunk %q has item size %d and %d rows, want %s", e.Name, e.ItemSize, e.Rows, e.Want)
}

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}
