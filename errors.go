package kdgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/kdgo/blobstore"
	"github.com/hupe1980/kdgo/chunkstore"
	"github.com/hupe1980/kdgo/kdtree"
	"github.com/hupe1980/kdgo/resource"
)

var (
	// ErrNotFound is returned by nearest-neighbour queries on empty trees
	// and when a stored tree does not exist.
	ErrNotFound = errors.New("not found")
	// ErrClosed is returned when using a closed tree.
	ErrClosed = errors.New("tree is closed")
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
	// ErrCorrupt is returned when a stored tree cannot be loaded.
	ErrCorrupt = errors.New("corrupt tree")
	// ErrEndianMismatch is returned when a stored tree was written on a
	// machine with a different byte order.
	ErrEndianMismatch = errors.New("byte order mismatch")
	// ErrMemoryLimit is returned when a tree does not fit the memory budget
	// of the resource controller.
	ErrMemoryLimit = resource.ErrMemoryLimit
)

// ErrDimensionMismatch indicates a query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrInvalidDimension indicates an invalid configured dimension.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidDimension struct {
	Dimension int
	cause     error
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

func (e *ErrInvalidDimension) Unwrap() error { return e.cause }

// ErrInvalidOptions indicates a build configuration that cannot produce a
// queryable tree.
type ErrInvalidOptions struct {
	Reason string
	cause  error
}

func (e *ErrInvalidOptions) Error() string {
	return "invalid options: " + e.Reason
}

func (e *ErrInvalidOptions) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, kdtree.ErrNotFound) || errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, kdtree.ErrClosed) || errors.Is(err, chunkstore.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if errors.Is(err, kdtree.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}

	var dm *kdtree.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	var id *kdtree.ErrInvalidDimension
	if errors.As(err, &id) {
		return &ErrInvalidDimension{Dimension: id.Dimension, cause: err}
	}
	var opt *kdtree.ErrInvalidOptions
	if errors.As(err, &opt) {
		return &ErrInvalidOptions{Reason: opt.Reason, cause: err}
	}

	// Storage errors.
	if errors.Is(err, kdtree.ErrEndianMismatch) {
		return fmt.Errorf("%w: %w", ErrEndianMismatch, err)
	}
	var mc *kdtree.ErrMissingChunk
	var cs *kdtree.ErrChunkSize
	if errors.Is(err, kdtree.ErrCorrupt) ||
		errors.As(err, &mc) ||
		errors.As(err, &cs) ||
		errors.Is(err, chunkstore.ErrChecksum) ||
		errors.Is(err, chunkstore.ErrFormat) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return err
}
