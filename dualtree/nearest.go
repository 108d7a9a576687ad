package dualtree

import (
	"math"

	"github.com/hupe1980/kdgo/kdtree"
)

// pruneSlack widens node bounds to absorb rounding between the external-unit
// box distances and the internal-unit point distances.
const pruneSlack = 1e-9

// Match is the nearest reference point of one query point.
type Match struct {
	Index int     // original index in the reference tree
	Dist2 float64 // squared distance in external units
}

// NearestVisitor finds, for every point of the query tree, its nearest point
// in the reference tree. Bounds per query node only ever shrink during a walk.
//
// Equidistant candidates resolve to the lowest original index.
type NearestVisitor struct {
	a, b   kdtree.Index
	ab, bb *Bounds

	q     []float64 // query points in reference internal units
	best  []float64 // internal squared distance per query slot
	slot  []int     // best reference slot per query slot
	bound []float64 // external squared bound per query node
}

var _ Visitor = (*NearestVisitor)(nil)

// NewNearestVisitor prepares an all-nearest-neighbour walk of query against
// ref.
func NewNearestVisitor(ref, query kdtree.Index) (*NearestVisitor, error) {
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
	dims, n := query.Dim(), query.Len()
	v := &NearestVisitor{
		a:     ref,
		b:     query,
		ab:    ab,
		bb:    bb,
		q:     make([]float64, 0, n*dims),
		best:  make([]float64, n),
		slot:  make([]int, n),
		bound: make([]float64, query.NumNodes()),
	}
	tf := ref.Transform()
	var p, qq []float64
	for s := 0; s < n; s++ {
		p = query.Point(s, p)
		qq = tf.QuantizePoint(qq, p)
		v.q = append(v.q, qq...)
		v.best[s] = math.Inf(1)
		v.slot[s] = -1
	}
	for i := range v.bound {
		v.bound[i] = math.Inf(1)
	}
	return v, nil
}

// ShouldRecurse implements Visitor.
func (v *NearestVisitor) ShouldRecurse(a, b int) bool {
	d := v.ab.MinDist2(a, v.bb, b)
	return d <= v.bound[b]*(1+pruneSlack)
}

// OnLeafPair implements Visitor.
func (v *NearestVisitor) OnLeafPair(a, b int) {
	dims := v.b.Dim()
	as, ae := v.a.NodeRange(a)
	bs, be := v.b.NodeRange(b)
	worst := 0.0
	for s := bs; s < be; s++ {
		q := v.q[s*dims : (s+1)*dims]
		for r := as; r < ae; r++ {
			d := v.a.SlotDist2(r, q)
			if d < v.best[s] || (d == v.best[s] && v.a.OriginalIndex(r) < v.a.OriginalIndex(v.slot[s])) {
				v.best[s], v.slot[s] = d, r
			}
		}
		worst = max(worst, v.best[s])
	}
	v.tighten(b, v.a.Transform().ExternalDist2(worst))
}

// tighten lowers the bound of leaf b and propagates to its ancestors while
// that lowers theirs.
func (v *NearestVisitor) tighten(b int, bound float64) {
	if bound >= v.bound[b] {
		return
	}
	v.bound[b] = bound
	for b > 0 {
		p := (b - 1) / 2
		nb := max(v.bound[2*p+1], v.bound[2*p+2])
		if nb >= v.bound[p] {
			return
		}
		v.bound[p] = nb
		b = p
	}
}

// Matches returns the result for every query point, indexed by the query
// tree's original point index.
func (v *NearestVisitor) Matches() []Match {
	out := make([]Match, v.b.Len())
	tf := v.a.Transform()
	for s, r := range v.slot {
		m := Match{Index: -1, Dist2: math.Inf(1)}
		if r >= 0 {
			m = Match{Index: v.a.OriginalIndex(r), Dist2: tf.ExternalDist2(v.best[s])}
		}
		out[v.b.OriginalIndex(s)] = m
	}
	return out
}

// AllNearest returns, for every point of query, its nearest point in ref.
// The result is indexed by the query tree's original point index.
func AllNearest(ref, query kdtree.Index) ([]Match, error) {
	if query.Len() > 0 && ref.Len() == 0 {
		return nil, kdtree.ErrNotFound
	}
	v, err := NewNearestVisitor(ref, query)
	if err != nil {
		return nil, err
	}
	if err := Search(ref, query, v); err != nil {
		return nil, err
	}
	return v.Matches(), nil
}
