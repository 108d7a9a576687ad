package kdtree

import (
	"math"
	"slices"

	"github.com/hupe1980/kdgo/coord"
	"github.com/hupe1980/kdgo/internal/queue"
)

// searcher consumes leaves during a traversal. bound is the current prune
// radius in internal squared units; subtrees farther than it are skipped.
type searcher interface {
	bound() float64
	leaf(start, end int)
}

func (t *Tree[T]) checkQuery(q []float64) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if len(q) != t.dims {
		return &ErrDimensionMismatch{Expected: t.dims, Actual: len(q)}
	}
	return nil
}

// Nearest returns the stored point closest to q. Among equidistant points the
// first one reached by the traversal wins.
func (t *Tree[T]) Nearest(q []float64) (Neighbor, error) {
	if err := t.checkQuery(q); err != nil {
		return Neighbor{}, err
	}
	if t.n == 0 {
		return Neighbor{}, ErrNotFound
	}
	s := &nearestSearch[T]{t: t, best: math.Inf(1), slot: -1}
	s.q = t.tf.QuantizePoint(make([]float64, 0, t.dims), q)
	t.search(s.q, s)
	if s.slot < 0 {
		return Neighbor{}, ErrNotFound
	}
	return t.neighbor(s.slot, s.best), nil
}

// NearestK returns up to k stored points closest to q, nearest first.
func (t *Tree[T]) NearestK(q []float64, k int) ([]Neighbor, error) {
	if err := t.checkQuery(q); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if t.n == 0 {
		return nil, ErrNotFound
	}
	s := &knnSearch[T]{t: t, h: queue.NewKNN(k, t.n)}
	s.q = t.tf.QuantizePoint(make([]float64, 0, t.dims), q)
	t.search(s.q, s)

	items := s.h.Items()
	out := make([]Neighbor, len(items))
	for i, c := range items {
		out[i] = t.neighbor(c.Slot, c.Dist2)
	}
	slices.SortFunc(out, compareNeighbors)
	return out, nil
}

// RangeSearch returns all stored points within squared external distance r2
// of q, inclusive.
func (t *Tree[T]) RangeSearch(q []float64, r2 float64) (*Results, error) {
	res := NewResults(0)
	if err := t.RangeSearchInto(q, r2, res); err != nil {
		return nil, err
	}
	return res, nil
}

// RangeSearchInto appends range hits to res.
func (t *Tree[T]) RangeSearchInto(q []float64, r2 float64, res *Results) error {
	if err := t.checkQuery(q); err != nil {
		return err
	}
	if t.n == 0 || !(r2 >= 0) {
		return nil
	}
	s := &rangeSearch[T]{t: t, r2: t.tf.InternalDist2(r2), res: res}
	s.q = t.tf.QuantizePoint(make([]float64, 0, t.dims), q)
	t.search(s.q, s)
	return nil
}

func (t *Tree[T]) neighbor(slot int, d2 float64) Neighbor {
	return Neighbor{Index: int(t.perm[slot]), Slot: slot, Dist2: t.tf.ExternalDist2(d2)}
}

// search runs a branch-and-bound traversal for the internal-unit point q.
// Bounding boxes are used when present, otherwise split planes.
func (t *Tree[T]) search(q []float64, s searcher) {
	if t.bb != nil {
		if t.boxDist2(0, q) <= s.bound() {
			t.searchBoxes(0, q, s)
		}
		return
	}
	w := &splitWalk[T]{
		t:  t,
		q:  q,
		s:  s,
		lo: make([]float64, t.dims),
		hi: make([]float64, t.dims),
	}
	for d := range w.lo {
		w.lo[d], w.hi[d] = t.initLo, t.initHi
	}
	if w.regionDist2() <= s.bound() {
		w.visit(0)
	}
}

func (t *Tree[T]) searchBoxes(node int, q []float64, s searcher) {
	if t.IsLeaf(node) {
		leaf := node - t.ninterior
		s.leaf(t.leafL(leaf), t.leafR(leaf)+1)
		return
	}
	near, far := 2*node+1, 2*node+2
	dn, df := t.boxDist2(near, q), t.boxDist2(far, q)
	if df < dn {
		near, far = far, near
		dn, df = df, dn
	}
	if dn <= s.bound() {
		t.searchBoxes(near, q, s)
	}
	if df <= s.bound() {
		t.searchBoxes(far, q, s)
	}
}

// splitWalk traverses a tree without boxes, narrowing the region one split
// plane at a time.
type splitWalk[T coord.Value] struct {
	t      *Tree[T]
	q      []float64
	s      searcher
	lo, hi []float64
}

func (w *splitWalk[T]) regionDist2() float64 {
	return BoxMinDist2(w.lo, w.hi, w.q)
}

func (w *splitWalk[T]) visit(node int) {
	t := w.t
	if t.IsLeaf(node) {
		leaf := node - t.ninterior
		w.s.leaf(t.leafL(leaf), t.leafR(leaf)+1)
		return
	}
	dim, sv := t.splitAt(node)
	v := float64(sv)
	lo, hi := w.lo[dim], w.hi[dim]
	if w.q[dim] <= v {
		w.child(2*node+1, dim, lo, math.Min(hi, v))
		w.child(2*node+2, dim, math.Max(lo, v), hi)
	} else {
		w.child(2*node+2, dim, math.Max(lo, v), hi)
		w.child(2*node+1, dim, lo, math.Min(hi, v))
	}
}

func (w *splitWalk[T]) child(node, dim int, lo, hi float64) {
	oldLo, oldHi := w.lo[dim], w.hi[dim]
	w.lo[dim], w.hi[dim] = lo, hi
	if w.regionDist2() <= w.s.bound() {
		w.visit(node)
	}
	w.lo[dim], w.hi[dim] = oldLo, oldHi
}

type nearestSearch[T coord.Value] struct {
	t    *Tree[T]
	q    []float64
	best float64
	slot int
}

func (s *nearestSearch[T]) bound() float64 { return s.best }

func (s *nearestSearch[T]) leaf(start, end int) {
	for slot := start; slot < end; slot++ {
		if d := coord.Dist2To(s.q, s.t.row(slot)); d < s.best {
			s.best, s.slot = d, slot
		}
	}
}

type rangeSearch[T coord.Value] struct {
	t   *Tree[T]
	q   []float64
	r2  float64
	res *Results
}

func (s *rangeSearch[T]) bound() float64 { return s.r2 }

func (s *rangeSearch[T]) leaf(start, end int) {
	for slot := start; slot < end; slot++ {
		if d := coord.Dist2To(s.q, s.t.row(slot)); d <= s.r2 {
			s.res.add(s.t.neighbor(slot, d))
		}
	}
}

type knnSearch[T coord.Value] struct {
	t *Tree[T]
	q []float64
	h *queue.KNN
}

func (s *knnSearch[T]) bound() float64 {
	top, ok := s.h.Top()
	if !ok || !s.h.Full() {
		return math.Inf(1)
	}
	return top.Dist2
}

func (s *knnSearch[T]) leaf(start, end int) {
	for slot := start; slot < end; slot++ {
		s.h.Offer(queue.Item{Slot: slot, Dist2: coord.Dist2To(s.q, s.t.row(slot))})
	}
}
