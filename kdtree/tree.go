package kdtree

import (
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/hupe1980/kdgo/chunkstore"
	"github.com/hupe1980/kdgo/coord"
)

// Index is the kind-erased view of a tree. Trees returned by Build and Read
// implement it regardless of their internal storage type.
//
// Node indices follow the implicit layout: the root is node 0 and the
// children of node i are 2i+1 and 2i+2. Slots index rows of the permuted
// point array; OriginalIndex maps a slot back to the caller's input order.
type Index interface {
	Name() string
	ID() string
	Len() int
	Dim() int
	NumNodes() int
	NumInterior() int
	NumLeaves() int
	NumLevels() int

	ExternalKind() coord.Kind
	InternalKind() coord.Kind
	Transform() *coord.Transform
	HasBoundingBoxes() bool
	HasSplitPlanes() bool
	SplitDims() SplitDimMode
	LinearLR() bool

	IsLeaf(node int) bool
	NodeRange(node int) (start, end int)
	NodeBounds(node int, lo, hi []float64) bool
	Point(slot int, dst []float64) []float64
	SlotDist2(slot int, q []float64) float64
	OriginalIndex(slot int) int
	SizeBytes() int64

	Nearest(q []float64) (Neighbor, error)
	NearestK(q []float64, k int) ([]Neighbor, error)
	RangeSearch(q []float64, r2 float64) (*Results, error)
	RangeSearchInto(q []float64, r2 float64, res *Results) error

	Close() error
	Closed() bool

	write(store chunkstore.Store) error
}

// Tree is a k-d tree storing coordinates of type T.
//
// A Tree is immutable after construction; queries may run concurrently.
// Close must not race with queries.
type Tree[T coord.Value] struct {
	name string
	id   string

	n    int
	dims int

	nnodes    int
	ninterior int
	nbottom   int
	nlevels   int

	ext      coord.Kind
	tf       *coord.Transform
	linearLR bool

	data     []T      // n*dims, permuted
	perm     []uint32 // slot -> original index
	lr       []uint32 // inclusive right slot per leaf; nil with linear LR
	bb       []T      // nnodes * 2*dims: lo then hi
	split    []T      // per interior node
	splitDim []uint8  // per interior node; nil when packed
	packer   splitPacker

	// initLo and initHi bound the region of split-only trees.
	initLo, initHi float64

	logger *slog.Logger
	closed atomic.Bool
}

var _ Index = (*Tree[float64])(nil)

// treeShape returns the number of levels and leaves for n points: the leaf
// count is the smallest power of two giving leaves of at most leafSize
// points, halved while any leaf would be empty.
func treeShape(n, leafSize int) (nlevels, nbottom int) {
	if n == 0 {
		return 0, 0
	}
	nlevels, nbottom = 1, 1
	for (n+nbottom-1)/nbottom > leafSize && nbottom*2 <= n {
		nbottom *= 2
		nlevels++
	}
	return nlevels, nbottom
}

func (t *Tree[T]) setShape(nbottom int) {
	t.nbottom = nbottom
	if nbottom == 0 {
		t.nnodes, t.ninterior, t.nlevels = 0, 0, 0
		return
	}
	t.nnodes = 2*nbottom - 1
	t.ninterior = nbottom - 1
	t.nlevels = 1
	for b := nbottom; b > 1; b >>= 1 {
		t.nlevels++
	}
}

// Name returns the tree name; empty for unnamed trees.
func (t *Tree[T]) Name() string { return t.name }

// ID returns the build identifier recorded at construction.
func (t *Tree[T]) ID() string { return t.id }

// Len returns the number of points.
func (t *Tree[T]) Len() int { return t.n }

// Dim returns the point dimension.
func (t *Tree[T]) Dim() int { return t.dims }

// NumNodes returns the total node count.
func (t *Tree[T]) NumNodes() int { return t.nnodes }

// NumInterior returns the number of interior nodes.
func (t *Tree[T]) NumInterior() int { return t.ninterior }

// NumLeaves returns the number of leaves.
func (t *Tree[T]) NumLeaves() int { return t.nbottom }

// NumLevels returns the tree depth counted in levels.
func (t *Tree[T]) NumLevels() int { return t.nlevels }

// ExternalKind returns the kind of the points the tree was built from.
func (t *Tree[T]) ExternalKind() coord.Kind { return t.ext }

// InternalKind returns the stored coordinate kind.
func (t *Tree[T]) InternalKind() coord.Kind { return coord.KindOf[T]() }

// Transform returns the external/internal unit mapping.
func (t *Tree[T]) Transform() *coord.Transform { return t.tf }

// HasBoundingBoxes reports whether per-node boxes are stored.
func (t *Tree[T]) HasBoundingBoxes() bool { return t.bb != nil }

// HasSplitPlanes reports whether split values are stored.
func (t *Tree[T]) HasSplitPlanes() bool { return t.split != nil }

// SplitDims returns the split dimension encoding.
func (t *Tree[T]) SplitDims() SplitDimMode {
	switch {
	case t.split == nil:
		return SplitDimNone
	case t.splitDim != nil:
		return SplitDimArray
	default:
		return SplitDimPacked
	}
}

// LinearLR reports whether leaf ranges are computed rather than stored.
func (t *Tree[T]) LinearLR() bool { return t.linearLR }

// IsLeaf reports whether node is a leaf.
func (t *Tree[T]) IsLeaf(node int) bool {
	return node >= t.ninterior
}

// leafL returns the first slot of the given leaf.
func (t *Tree[T]) leafL(leaf int) int {
	if t.linearLR {
		return linearL(leaf, t.n, t.nbottom)
	}
	if leaf == 0 {
		return 0
	}
	return int(t.lr[leaf-1]) + 1
}

// leafR returns the last slot (inclusive) of the given leaf.
func (t *Tree[T]) leafR(leaf int) int {
	if t.linearLR {
		return linearL(leaf+1, t.n, t.nbottom) - 1
	}
	return int(t.lr[leaf])
}

func linearL(leaf, n, nbottom int) int {
	return int(uint64(leaf) * uint64(n) / uint64(nbottom))
}

// NodeRange returns the half-open slot range [start, end) owned by node.
// The range is empty once the tree is closed.
func (t *Tree[T]) NodeRange(node int) (start, end int) {
	if t.closed.Load() {
		return 0, 0
	}
	lo, hi := node, node
	for lo < t.ninterior {
		lo = 2*lo + 1
		hi = 2*hi + 2
	}
	return t.leafL(lo - t.ninterior), t.leafR(hi-t.ninterior) + 1
}

// NodeBounds writes the node's bounding region in external units into lo and
// hi. Trees without boxes derive the region from the split planes of the
// node's ancestors, so it may be unbounded on float trees.
func (t *Tree[T]) NodeBounds(node int, lo, hi []float64) bool {
	if t.closed.Load() || node < 0 || node >= t.nnodes || len(lo) < t.dims || len(hi) < t.dims {
		return false
	}
	if t.bb != nil {
		blo, bhi := t.box(node)
		for d := 0; d < t.dims; d++ {
			lo[d] = coord.FromInternal(t.tf, blo[d], d)
			hi[d] = coord.FromInternal(t.tf, bhi[d], d)
		}
		return true
	}
	for d := 0; d < t.dims; d++ {
		lo[d], hi[d] = t.initLo, t.initHi
	}
	var path [64]int
	depth := 0
	for c := node; c > 0; c = (c - 1) / 2 {
		path[depth] = c
		depth++
	}
	parent := 0
	for i := depth - 1; i >= 0; i-- {
		child := path[i]
		dim, s := t.splitAt(parent)
		v := float64(s)
		if child == 2*parent+1 {
			hi[dim] = math.Min(hi[dim], v)
		} else {
			lo[dim] = math.Max(lo[dim], v)
		}
		parent = child
	}
	for d := 0; d < t.dims; d++ {
		lo[d] = t.tf.Dequantize(lo[d], d)
		hi[d] = t.tf.Dequantize(hi[d], d)
	}
	return true
}

// Point dequantizes the point at slot into dst, growing it if necessary.
func (t *Tree[T]) Point(slot int, dst []float64) []float64 {
	if cap(dst) < t.dims {
		dst = make([]float64, t.dims)
	}
	dst = dst[:t.dims]
	row := t.row(slot)
	for d, v := range row {
		dst[d] = coord.FromInternal(t.tf, v, d)
	}
	return dst
}

// SlotDist2 returns the squared distance, in internal units, between the
// stored point at slot and q, which must already be in internal units.
func (t *Tree[T]) SlotDist2(slot int, q []float64) float64 {
	return coord.Dist2To(q, t.row(slot))
}

// OriginalIndex maps a slot to the index of the point in the build input.
func (t *Tree[T]) OriginalIndex(slot int) int {
	return int(t.perm[slot])
}

// Permutation returns the slot to original index mapping.
func (t *Tree[T]) Permutation() []uint32 { return t.perm }

// Data returns the permuted internal point array.
func (t *Tree[T]) Data() []T { return t.data }

// Close releases the tree's arrays. Subsequent queries return ErrClosed.
func (t *Tree[T]) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.data, t.perm, t.lr, t.bb, t.split, t.splitDim = nil, nil, nil, nil, nil, nil
	return nil
}

// Closed reports whether Close has been called.
func (t *Tree[T]) Closed() bool { return t.closed.Load() }

// SizeBytes returns the memory held by the tree's arrays. It is zero once
// the tree is closed.
func (t *Tree[T]) SizeBytes() int64 {
	n := len(asBytes(t.data)) + len(asBytes(t.bb)) + len(asBytes(t.split)) +
		len(asBytes(t.perm)) + len(asBytes(t.lr)) + len(t.splitDim)
	return int64(n)
}

func (t *Tree[T]) row(slot int) []T {
	return t.data[slot*t.dims : (slot+1)*t.dims]
}
