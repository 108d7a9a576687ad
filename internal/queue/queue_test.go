package queue

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKNN_KeepsClosest(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	dists := make([]float64, 500)
	q := NewKNN(10, len(dists))
	for i := range dists {
		dists[i] = rng.Float64()
		q.Offer(Item{Slot: i, Dist2: dists[i]})
	}
	require.Equal(t, 10, q.Len())
	assert.True(t, q.Full())

	got := make([]float64, 0, q.Len())
	for _, it := range q.Items() {
		assert.Equal(t, dists[it.Slot], it.Dist2)
		got = append(got, it.Dist2)
	}
	slices.Sort(got)
	slices.Sort(dists)
	assert.Equal(t, dists[:10], got)

	top, ok := q.Top()
	require.True(t, ok)
	assert.Equal(t, dists[9], top.Dist2)
}

func TestKNN_Ties(t *testing.T) {
	q := NewKNN(2, 4)
	assert.True(t, q.Offer(Item{Slot: 0, Dist2: 1}))
	assert.True(t, q.Offer(Item{Slot: 1, Dist2: 1}))
	assert.False(t, q.Offer(Item{Slot: 2, Dist2: 1}))
	assert.True(t, q.Offer(Item{Slot: 3, Dist2: 0.5}))

	slots := []int{q.Items()[0].Slot, q.Items()[1].Slot}
	slices.Sort(slots)
	assert.Contains(t, [][]int{{0, 3}, {1, 3}}, slots)
}

func TestKNN_EmptyAndReset(t *testing.T) {
	q := NewKNN(3, 0)
	_, ok := q.Top()
	assert.False(t, ok)
	assert.False(t, q.Full())

	q.Offer(Item{Slot: 1, Dist2: 2})
	q.Reset()
	assert.Zero(t, q.Len())

	zero := NewKNN(0, 0)
	assert.False(t, zero.Offer(Item{Dist2: 0}))
}
