// Package queue provides the bounded candidate heap used by k-nearest
// searches.
package queue

// Item is a candidate point and its squared distance to the query.
type Item struct {
	Slot  int
	Dist2 float64
}

// KNN holds the k closest candidates seen so far as a max-heap on Dist2,
// so the current k-th distance is always at the top.
type KNN struct {
	k     int
	items []Item
}

// NewKNN returns a heap that keeps at most k items. capacity presizes the
// backing slice.
func NewKNN(k, capacity int) *KNN {
	return &KNN{k: k, items: make([]Item, 0, min(k, capacity))}
}

// Len returns the number of items held.
func (q *KNN) Len() int { return len(q.items) }

// Full reports whether k items are held.
func (q *KNN) Full() bool { return len(q.items) >= q.k }

// Top returns the farthest held item.
func (q *KNN) Top() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Offer adds it if the heap is not full, or replaces the farthest item if
// it is strictly closer. It reports whether it was kept.
func (q *KNN) Offer(it Item) bool {
	if len(q.items) < q.k {
		q.items = append(q.items, it)
		q.siftUp(len(q.items) - 1)
		return true
	}
	if q.k == 0 || it.Dist2 >= q.items[0].Dist2 {
		return false
	}
	q.items[0] = it
	q.siftDown(0)
	return true
}

// Items returns the held items in heap order. The slice is owned by q.
func (q *KNN) Items() []Item { return q.items }

// Reset empties the heap, keeping its storage.
func (q *KNN) Reset() { q.items = q.items[:0] }

func (q *KNN) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if q.items[i].Dist2 <= q.items[p].Dist2 {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *KNN) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.items[r].Dist2 > q.items[l].Dist2 {
			best = r
		}
		if q.items[best].Dist2 <= q.items[i].Dist2 {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}
