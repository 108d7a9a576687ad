package kdtree

import (
	"cmp"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// Neighbor is a query hit. Dist2 is the squared distance in external units.
type Neighbor struct {
	Index int // original input index
	Slot  int // position in the permuted point array
	Dist2 float64
}

func compareNeighbors(a, b Neighbor) int {
	if c := cmp.Compare(a.Dist2, b.Dist2); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

// Results accumulates range search hits. A Results can be reset and reused
// across queries to avoid reallocating.
type Results struct {
	items []Neighbor
}

// NewResults returns an empty accumulator with room for capacity hits.
func NewResults(capacity int) *Results {
	return &Results{items: make([]Neighbor, 0, capacity)}
}

// Len returns the number of hits.
func (r *Results) Len() int { return len(r.items) }

// At returns hit i.
func (r *Results) At(i int) Neighbor { return r.items[i] }

// Neighbors returns the hits. The slice is owned by r.
func (r *Results) Neighbors() []Neighbor { return r.items }

// Indices returns the original indices of all hits in result order.
func (r *Results) Indices() []int {
	out := make([]int, len(r.items))
	for i, n := range r.items {
		out[i] = n.Index
	}
	return out
}

// Sort orders hits by distance, then original index.
func (r *Results) Sort() {
	slices.SortFunc(r.items, compareNeighbors)
}

// Reset empties r, keeping its storage.
func (r *Results) Reset() {
	r.items = r.items[:0]
}

// Bitmap returns the set of original indices of all hits.
func (r *Results) Bitmap() *roaring.Bitmap {
	bm := roaring.New()
	for _, n := range r.items {
		bm.Add(uint32(n.Index))
	}
	return bm
}

func (r *Results) add(n Neighbor) {
	r.items = append(r.items, n)
}
