package dualtree

import (
	"github.com/hupe1980/kdgo/kdtree"
)

// Pair is a reference/query point pair within the join radius.
type Pair struct {
	Ref, Query int     // original indices
	Dist2      float64 // squared distance in external units
}

// RangeVisitor reports every reference/query pair within a radius.
type RangeVisitor struct {
	a, b   kdtree.Index
	ab, bb *Bounds
	r2     float64 // external
	r2i    float64 // reference internal units
	q      []float64
	fn     func(Pair)
}

var _ Visitor = (*RangeVisitor)(nil)

// NewRangeVisitor prepares a radius join calling fn for every pair whose
// squared distance is at most r2.
func NewRangeVisitor(ref, query kdtree.Index, r2 float64, fn func(Pair)) (*RangeVisitor, error) {
	if ref.Dim() != query.Dim() {
		return nil, &kdtree.ErrDimensionMismatch{Expected: ref.Dim(), Actual: query.Dim()}
	}
	ab, err := NodeBounds(ref)
	if err != nil {
		return nil, err
	}
	bb, err := NodeBounds(query)
	if err != nil {
		return nil, err
	}
	tf := ref.Transform()
	v := &RangeVisitor{
		a:   ref,
		b:   query,
		ab:  ab,
		bb:  bb,
		r2:  r2,
		r2i: tf.InternalDist2(r2),
		q:   make([]float64, 0, query.Len()*query.Dim()),
		fn:  fn,
	}
	var p, qq []float64
	for s := 0; s < query.Len(); s++ {
		p = query.Point(s, p)
		qq = tf.QuantizePoint(qq, p)
		v.q = append(v.q, qq...)
	}
	return v, nil
}

// ShouldRecurse implements Visitor.
func (v *RangeVisitor) ShouldRecurse(a, b int) bool {
	return v.ab.MinDist2(a, v.bb, b) <= v.r2*(1+pruneSlack)
}

// OnLeafPair implements Visitor.
func (v *RangeVisitor) OnLeafPair(a, b int) {
	dims := v.b.Dim()
	tf := v.a.Transform()
	as, ae := v.a.NodeRange(a)
	bs, be := v.b.NodeRange(b)
	for s := bs; s < be; s++ {
		q := v.q[s*dims : (s+1)*dims]
		for r := as; r < ae; r++ {
			if d := v.a.SlotDist2(r, q); d <= v.r2i {
				v.fn(Pair{Ref: v.a.OriginalIndex(r), Query: v.b.OriginalIndex(s), Dist2: tf.ExternalDist2(d)})
			}
		}
	}
}

// RangeJoin calls fn for every pair of a reference and a query point within
// squared distance r2, inclusive. Negative or NaN radii match nothing.
func RangeJoin(ref, query kdtree.Index, r2 float64, fn func(Pair)) error {
	if !(r2 >= 0) {
		return nil
	}
	v, err := NewRangeVisitor(ref, query, r2, fn)
	if err != nil {
		return err
	}
	return Search(ref, query, v)
}
