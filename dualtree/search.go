package dualtree

import (
	"github.com/hupe1980/kdgo/kdtree"
)

// Visitor decides which node pairs a walk expands. Node a belongs to the
// reference tree and node b to the query tree.
type Visitor interface {
	// ShouldRecurse reports whether the pair may still contribute results.
	ShouldRecurse(a, b int) bool
	// OnLeafPair is called for every accepted pair of leaves.
	OnLeafPair(a, b int)
}

// Search walks every node pair of ref and query accepted by v. Trees with no
// points produce no calls.
func Search(ref, query kdtree.Index, v Visitor) error {
	if ref.Dim() != query.Dim() {
		return &kdtree.ErrDimensionMismatch{Expected: ref.Dim(), Actual: query.Dim()}
	}
	if ref.Len() == 0 || query.Len() == 0 {
		return nil
	}
	w := walker{a: ref, b: query, v: v}
	w.walk(0, 0)
	return nil
}

type walker struct {
	a, b kdtree.Index
	v    Visitor
}

func (w *walker) walk(a, b int) {
	if !w.v.ShouldRecurse(a, b) {
		return
	}
	aLeaf, bLeaf := w.a.IsLeaf(a), w.b.IsLeaf(b)
	switch {
	case aLeaf && bLeaf:
		w.v.OnLeafPair(a, b)
	case aLeaf:
		w.walk(a, 2*b+1)
		w.walk(a, 2*b+2)
	case bLeaf:
		w.walk(2*a+1, b)
		w.walk(2*a+2, b)
	default:
		for _, ca := range [2]int{2*a + 1, 2*a + 2} {
			w.walk(ca, 2*b+1)
			w.walk(ca, 2*b+2)
		}
	}
}
