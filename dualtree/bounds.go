package dualtree

import (
	"github.com/hupe1980/kdgo/kdtree"
)

// Bounds caches the region of every node of a tree in external units.
type Bounds struct {
	dims   int
	lo, hi []float64
}

// NodeBounds computes the regions of all nodes of idx.
func NodeBounds(idx kdtree.Index) (*Bounds, error) {
	dims, nnodes := idx.Dim(), idx.NumNodes()
	b := &Bounds{
		dims: dims,
		lo:   make([]float64, nnodes*dims),
		hi:   make([]float64, nnodes*dims),
	}
	for node := 0; node < nnodes; node++ {
		if !idx.NodeBounds(node, b.Lo(node), b.Hi(node)) {
			return nil, kdtree.ErrClosed
		}
	}
	return b, nil
}

// Lo returns the lower corner of node.
func (b *Bounds) Lo(node int) []float64 {
	return b.lo[node*b.dims : (node+1)*b.dims]
}

// Hi returns the upper corner of node.
func (b *Bounds) Hi(node int) []float64 {
	return b.hi[node*b.dims : (node+1)*b.dims]
}

// MinDist2 is the smallest squared distance between node a of b and node o
// of other.
func (b *Bounds) MinDist2(a int, other *Bounds, o int) float64 {
	return kdtree.BoxBoxMinDist2(b.Lo(a), b.Hi(a), other.Lo(o), other.Hi(o))
}
