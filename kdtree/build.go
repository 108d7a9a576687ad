package kdtree

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/hupe1980/kdgo/coord"
)

// Build constructs a tree over n row-major float64 points of dimension dims.
// The input slice is not modified.
func Build(points []float64, n, dims int, optFns ...Option) (Index, error) {
	return build(points, n, dims, optFns)
}

// BuildFloat32 constructs a tree over n row-major float32 points.
func BuildFloat32(points []float32, n, dims int, optFns ...Option) (Index, error) {
	return build(points, n, dims, optFns)
}

// New builds a floating-point tree that takes ownership of points and
// reorders its rows in place.
func New[T coord.Float](points []T, n, dims int, optFns ...Option) (*Tree[T], error) {
	kind := coord.KindOf[T]()
	opts, err := resolveOptions(kind, n, dims, len(points), optFns)
	if err != nil {
		return nil, err
	}
	if opts.InternalKind != kind {
		return nil, &ErrInvalidOptions{Reason: fmt.Sprintf("in-place build stores %s, not %s", kind, opts.InternalKind)}
	}
	return newTree(points, n, dims, kind, coord.Identity(dims), &opts)
}

func resolveOptions(ext coord.Kind, n, dims, length int, optFns []Option) (Options, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.InternalKind == coord.KindUnknown {
		opts.InternalKind = ext
	}
	if err := opts.validate(dims); err != nil {
		return opts, err
	}
	if n < 0 || length != n*dims {
		return opts, &ErrInvalidOptions{Reason: fmt.Sprintf("got %d values for %d points of dimension %d", length, n, dims)}
	}
	if uint64(n) > math.MaxUint32 {
		return opts, &ErrInvalidOptions{Reason: "too many points"}
	}
	return opts, nil
}

func build[E coord.Float](points []E, n, dims int, optFns []Option) (Index, error) {
	ext := coord.KindOf[E]()
	opts, err := resolveOptions(ext, n, dims, len(points), optFns)
	if err != nil {
		return nil, err
	}
	tf, err := newTransform(points, n, dims, &opts)
	if err != nil {
		return nil, err
	}
	switch opts.InternalKind {
	case coord.KindFloat64:
		return newTree(quantize[float64](tf, points, dims), n, dims, ext, tf, &opts)
	case coord.KindFloat32:
		return newTree(quantize[float32](tf, points, dims), n, dims, ext, tf, &opts)
	case coord.KindUint32:
		return newTree(quantize[uint32](tf, points, dims), n, dims, ext, tf, &opts)
	case coord.KindUint16:
		return newTree(quantize[uint16](tf, points, dims), n, dims, ext, tf, &opts)
	default:
		return nil, &ErrInvalidOptions{Reason: "unsupported internal kind " + opts.InternalKind.String()}
	}
}

// quantizationLimit returns the largest internal value for an integer kind,
// leaving room for the packed split dimension.
func quantizationLimit(kind coord.Kind, dims int, packed bool) float64 {
	if !packed {
		return kind.MaxValue()
	}
	return float64(uint64(1)<<uint(kind.Bits()-dimBits(dims)) - 1)
}

func newTransform[E coord.Float](points []E, n, dims int, opts *Options) (*coord.Transform, error) {
	if !opts.InternalKind.IsInteger() {
		return coord.Identity(dims), nil
	}
	limit := quantizationLimit(opts.InternalKind, dims, opts.SplitPlanes && opts.SplitDims == SplitDimPacked)
	var (
		tf  *coord.Transform
		err error
	)
	switch {
	case opts.RangeMin != nil:
		tf, err = coord.NewTransform(opts.RangeMin, opts.RangeMax, limit)
	case n == 0:
		lo, hi := make([]float64, dims), make([]float64, dims)
		for d := range hi {
			hi[d] = 1
		}
		tf, err = coord.NewTransform(lo, hi, limit)
	default:
		pts := make([]float64, len(points))
		for i, v := range points {
			pts[i] = float64(v)
		}
		tf, err = coord.FitTransform(pts, n, dims, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("kdtree: %w", err)
	}
	return tf, nil
}

func quantize[T coord.Value, E coord.Float](tf *coord.Transform, points []E, dims int) []T {
	out := make([]T, len(points))
	for i, v := range points {
		out[i] = coord.ToInternal[T](tf, float64(v), i%dims)
	}
	return out
}

func newTree[T coord.Value](data []T, n, dims int, ext coord.Kind, tf *coord.Transform, opts *Options) (*Tree[T], error) {
	t := &Tree[T]{
		name:     opts.Name,
		id:       uuid.NewString(),
		n:        n,
		dims:     dims,
		ext:      ext,
		tf:       tf,
		linearLR: opts.LinearLR,
		data:     data,
		logger:   opts.logger(),
	}
	_, nbottom := treeShape(n, opts.LeafSize)
	t.setShape(nbottom)

	t.perm = make([]uint32, n)
	for i := range t.perm {
		t.perm[i] = uint32(i)
	}
	if !opts.LinearLR {
		t.lr = make([]uint32, t.nbottom)
	}
	if opts.SplitPlanes {
		t.split = make([]T, t.ninterior)
		if opts.SplitDims == SplitDimArray {
			t.splitDim = make([]uint8, t.ninterior)
		} else {
			t.packer = newSplitPacker(dims)
		}
	}
	t.initLo, t.initHi = initialRegion(t.InternalKind(), tf)
	if opts.BoundingBoxes {
		t.bb = make([]T, t.nnodes*2*dims)
	}

	if n > 0 {
		b := &builder[T]{
			t:    t,
			rule: opts.SplitRule,
			sel:  rowSelector[T]{data: data, perm: t.perm, dims: dims, tmp: make([]T, dims)},
		}
		b.partition(0, 0, n, 0)
	}
	if t.bb != nil {
		for node := t.nnodes - 1; node >= 0; node-- {
			if t.IsLeaf(node) {
				start, end := t.NodeRange(node)
				t.fitBox(node, start, end)
			} else {
				t.unionBox(node)
			}
		}
	}

	t.logger.Debug("kdtree built",
		"name", t.name,
		"points", n,
		"dims", dims,
		"nodes", t.nnodes,
		"leaves", t.nbottom,
		"internal", t.InternalKind().String(),
		"bbox", t.bb != nil,
		"split", t.SplitDims().String(),
		"linear_lr", t.linearLR,
	)
	return t, nil
}

func initialRegion(kind coord.Kind, tf *coord.Transform) (lo, hi float64) {
	if kind.IsInteger() {
		return 0, tf.Limit()
	}
	return math.Inf(-1), math.Inf(1)
}

type builder[T coord.Value] struct {
	t    *Tree[T]
	rule SplitRule
	sel  rowSelector[T]
}

// partition splits the slots [lo, hi) owned by node and recurses.
func (b *builder[T]) partition(node, lo, hi, level int) {
	t := b.t
	if t.IsLeaf(node) {
		if t.lr != nil {
			t.lr[node-t.ninterior] = uint32(hi - 1)
		}
		return
	}
	dim := b.splitDim(lo, hi, level)

	var mid int
	if t.linearLR {
		leaf := 2*node + 2
		for !t.IsLeaf(leaf) {
			leaf = 2*leaf + 1
		}
		mid = linearL(leaf-t.ninterior, t.n, t.nbottom)
	} else {
		mid = lo + (hi-lo)/2
	}
	b.sel.selectNth(lo, hi, mid, dim)

	if t.split != nil {
		leftMax := b.sel.at(lo, dim)
		for s := lo + 1; s < mid; s++ {
			leftMax = max(leftMax, b.sel.at(s, dim))
		}
		t.setSplit(node, dim, midpoint(leftMax, b.sel.at(mid, dim)))
	}

	b.partition(2*node+1, lo, mid, level+1)
	b.partition(2*node+2, mid, hi, level+1)
}

func (b *builder[T]) splitDim(lo, hi, level int) int {
	t := b.t
	if b.rule == SplitRoundRobin {
		return level % t.dims
	}
	best, bestSpread := 0, -1.0
	for d := 0; d < t.dims; d++ {
		mn, mx := b.sel.at(lo, d), b.sel.at(lo, d)
		for s := lo + 1; s < hi; s++ {
			v := b.sel.at(s, d)
			mn = min(mn, v)
			mx = max(mx, v)
		}
		if spread := float64(mx) - float64(mn); spread > bestSpread {
			best, bestSpread = d, spread
		}
	}
	return best
}

// midpoint returns a value in [a, b] halfway between a <= b.
func midpoint[T coord.Value](a, b T) T {
	m := a + (b-a)/2
	if m < a {
		m = a
	}
	if m > b {
		m = b
	}
	return m
}
