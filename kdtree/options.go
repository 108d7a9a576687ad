package kdtree

import (
	"io"
	"log/slog"

	"github.com/hupe1980/kdgo/coord"
)

// DefaultLeafSize is the target number of points per leaf.
const DefaultLeafSize = 10

// SplitDimMode selects how the split dimension of interior nodes is encoded.
type SplitDimMode uint8

const (
	// SplitDimNone stores no split dimension. Only valid without split planes.
	SplitDimNone SplitDimMode = iota
	// SplitDimPacked packs the dimension into the low bits of the split value.
	// Requires an integer internal kind.
	SplitDimPacked
	// SplitDimArray stores the dimension in a separate byte per interior node.
	SplitDimArray
)

func (m SplitDimMode) String() string {
	switch m {
	case SplitDimNone:
		return "none"
	case SplitDimPacked:
		return "packed"
	case SplitDimArray:
		return "array"
	default:
		return "unknown"
	}
}

// SplitRule selects the splitting dimension of each interior node.
type SplitRule uint8

const (
	// SplitWidest splits along the dimension with the largest extent in the
	// node, lowest dimension index on ties.
	SplitWidest SplitRule = iota
	// SplitRoundRobin splits along dimension level % D.
	SplitRoundRobin
)

// Options configures tree construction.
type Options struct {
	// LeafSize is the target maximum number of points per leaf.
	LeafSize int
	// BoundingBoxes stores a bounding box for every node.
	BoundingBoxes bool
	// SplitPlanes stores a split value for every interior node.
	SplitPlanes bool
	// SplitDims selects the split dimension encoding when SplitPlanes is set.
	SplitDims SplitDimMode
	// LinearLR computes leaf ranges from a closed-form formula instead of
	// storing them.
	LinearLR bool
	// InternalKind selects the stored coordinate kind. Zero means "same as
	// the external kind".
	InternalKind coord.Kind
	// RangeMin and RangeMax fix the quantization range of integer trees.
	// When nil, the range is fitted to the data.
	RangeMin, RangeMax []float64
	// SplitRule selects the splitting dimension.
	SplitRule SplitRule
	// Name is used to namespace chunk names and metadata keys on disk.
	Name string
	// Logger receives build and read diagnostics.
	Logger *slog.Logger
}

// Option configures Options.
type Option func(*Options)

// DefaultOptions returns bounding-box trees with explicit leaf ranges.
func DefaultOptions() Options {
	return Options{
		LeafSize:      DefaultLeafSize,
		BoundingBoxes: true,
	}
}

// WithLeafSize sets the target maximum leaf size.
func WithLeafSize(n int) Option {
	return func(o *Options) { o.LeafSize = n }
}

// WithBoundingBoxes enables or disables per-node bounding boxes.
func WithBoundingBoxes(enabled bool) Option {
	return func(o *Options) { o.BoundingBoxes = enabled }
}

// WithSplitPlanes enables split planes with the given dimension encoding.
// Passing SplitDimNone disables split planes.
func WithSplitPlanes(mode SplitDimMode) Option {
	return func(o *Options) {
		o.SplitPlanes = mode != SplitDimNone
		o.SplitDims = mode
	}
}

// WithLinearLR enables closed-form leaf ranges.
func WithLinearLR(enabled bool) Option {
	return func(o *Options) { o.LinearLR = enabled }
}

// WithInternalKind selects the coordinate kind stored in the tree.
func WithInternalKind(k coord.Kind) Option {
	return func(o *Options) { o.InternalKind = k }
}

// WithRange fixes the quantization range for integer trees.
func WithRange(min, max []float64) Option {
	return func(o *Options) {
		o.RangeMin = min
		o.RangeMax = max
	}
}

// WithSplitRule selects how the split dimension is chosen.
func WithSplitRule(r SplitRule) Option {
	return func(o *Options) { o.SplitRule = r }
}

// WithName names the tree.
func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func (o *Options) validate(dims int) error {
	if dims <= 0 {
		return &ErrInvalidDimension{Dimension: dims, Reason: "must be positive"}
	}
	if o.LeafSize <= 0 {
		return &ErrInvalidOptions{Reason: "leaf size must be positive"}
	}
	if !o.InternalKind.Valid() {
		return &ErrInvalidOptions{Reason: "unsupported internal kind " + o.InternalKind.String()}
	}
	if !o.BoundingBoxes && !o.SplitPlanes {
		return &ErrInvalidOptions{Reason: "neither bounding boxes nor split planes requested"}
	}
	if o.SplitPlanes {
		switch o.SplitDims {
		case SplitDimNone:
			return &ErrInvalidOptions{Reason: "split planes require a split dimension encoding"}
		case SplitDimPacked:
			if !o.InternalKind.IsInteger() {
				return &ErrInvalidOptions{Reason: "packed split dimensions require an integer internal kind"}
			}
			bits := dimBits(dims)
			if bits >= o.InternalKind.Bits() {
				return &ErrInvalidDimension{Dimension: dims, Reason: "too many dimensions to pack into " + o.InternalKind.String()}
			}
		case SplitDimArray:
			if dims > 256 {
				return &ErrInvalidDimension{Dimension: dims, Reason: "split dimension array holds at most 256 dimensions"}
			}
		}
	}
	if !o.InternalKind.IsInteger() {
		if o.RangeMin != nil || o.RangeMax != nil {
			return &ErrInvalidOptions{Reason: "a quantization range only applies to integer kinds"}
		}
	}
	if o.RangeMin != nil || o.RangeMax != nil {
		if len(o.RangeMin) != dims || len(o.RangeMax) != dims {
			return &ErrInvalidOptions{Reason: "range must have one bound per dimension"}
		}
	}
	return nil
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return discardLogger
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
