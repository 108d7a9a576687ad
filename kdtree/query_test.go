package kdtree

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kdgo/coord"
)

func TestNearest_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	const n, dims = 700, 3
	pts := randomPoints(rng, n, dims)
	queries := randomPoints(rng, 50, dims)

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			idx, err := Build(pts, n, dims, v.opts...)
			require.NoError(t, err)

			for i := 0; i < 50; i++ {
				q := queries[i*dims : (i+1)*dims]
				got, err := idx.Nearest(q)
				require.NoError(t, err)

				minD, _ := storedBruteIndex(t, idx, q, 0)
				assert.Equal(t, minD, got.Dist2, "query %d", i)

				if idx.InternalKind() == coord.KindFloat64 {
					want, wantD := bruteNearest(pts, dims, q)
					assert.Equal(t, want, got.Index, "query %d", i)
					assert.Equal(t, wantD, got.Dist2, "query %d", i)
				}
			}
		})
	}
}

func TestRangeSearch_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const n, dims = 600, 2
	pts := randomPoints(rng, n, dims)

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			idx, err := Build(pts, n, dims, v.opts...)
			require.NoError(t, err)

			res := NewResults(16)
			for i := 0; i < 40; i++ {
				q := []float64{rng.Float64()*1.2 - 0.1, rng.Float64()*1.2 - 0.1}
				r2 := rng.Float64() * 0.05

				res.Reset()
				require.NoError(t, idx.RangeSearchInto(q, r2, res))
				_, want := storedBruteIndex(t, idx, q, r2)
				assert.Equal(t, want, nilIfEmpty(sortedIndices(res)), "query %d", i)

				if idx.InternalKind() == coord.KindFloat64 {
					assert.Equal(t, bruteRange(pts, dims, q, r2), nilIfEmpty(sortedIndices(res)))
				}
				for _, nb := range res.Neighbors() {
					assert.LessOrEqual(t, nb.Dist2, r2*(1+1e-12))
				}
			}
		})
	}
}

func nilIfEmpty(s []int) []int {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestRangeSearch_Inclusive(t *testing.T) {
	pts := []float64{0, 0, 3, 4, 6, 8}
	idx, err := Build(pts, 3, 2, WithLeafSize(1))
	require.NoError(t, err)

	res, err := idx.RangeSearch([]float64{0, 0}, 25)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, sortedIndices(res))

	res, err = idx.RangeSearch([]float64{0, 0}, 24.999)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, sortedIndices(res))

	res, err = idx.RangeSearch([]float64{100, 100}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())

	res, err = idx.RangeSearch([]float64{0, 0}, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
}

func TestNearestK(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	const n, dims = 400, 3
	pts := randomPoints(rng, n, dims)

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			idx, err := Build(pts, n, dims, v.opts...)
			require.NoError(t, err)

			q := randomPoints(rng, 1, dims)
			got, err := idx.NearestK(q, 7)
			require.NoError(t, err)
			require.Len(t, got, 7)
			for i := 1; i < len(got); i++ {
				assert.LessOrEqual(t, got[i-1].Dist2, got[i].Dist2)
			}

			if idx.InternalKind() == coord.KindFloat64 {
				type pair struct {
					i int
					d float64
				}
				all := make([]pair, n)
				for i := range all {
					all[i] = pair{i, dist2(q, pts[i*dims:(i+1)*dims])}
				}
				slices.SortFunc(all, func(a, b pair) int {
					if a.d < b.d {
						return -1
					}
					if a.d > b.d {
						return 1
					}
					return a.i - b.i
				})
				for i := range got {
					assert.Equal(t, all[i].i, got[i].Index)
				}
			}

			all, err := idx.NearestK(q, n+10)
			require.NoError(t, err)
			assert.Len(t, all, n)

			_, err = idx.NearestK(q, 0)
			assert.ErrorIs(t, err, ErrInvalidK)
		})
	}
}

// Scenario: 1000 uniformly random 3-D points, leaf size 10, split planes with
// packed dimension.
func TestNearest_PackedSplitScenario(t *testing.T) {
	rng := rand.New(rand.NewSource(1000))
	const n, dims = 1000, 3
	pts := randomPoints(rng, n, dims)
	idx, err := Build(pts, n, dims,
		WithLeafSize(10),
		WithInternalKind(coord.KindUint32),
		WithBoundingBoxes(false),
		WithSplitPlanes(SplitDimPacked),
	)
	require.NoError(t, err)
	assert.Equal(t, SplitDimPacked, idx.SplitDims())
	assert.False(t, idx.HasBoundingBoxes())

	for i := 0; i < 10; i++ {
		q := randomPoints(rng, 1, dims)
		got, err := idx.Nearest(q)
		require.NoError(t, err)
		want, wantD := bruteNearest(pts, dims, q)
		assert.Equal(t, want, got.Index)
		assert.InDelta(t, wantD, got.Dist2, 1e-9)
	}
}

func TestEmptyTree(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			idx, err := Build(nil, 0, 3, v.opts...)
			require.NoError(t, err)
			assert.Equal(t, 0, idx.Len())
			assert.Equal(t, 0, idx.NumNodes())

			_, err = idx.Nearest([]float64{1, 2, 3})
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = idx.NearestK([]float64{1, 2, 3}, 3)
			assert.ErrorIs(t, err, ErrNotFound)

			res, err := idx.RangeSearch([]float64{1, 2, 3}, math.Inf(1))
			require.NoError(t, err)
			assert.Equal(t, 0, res.Len())
		})
	}
}

func TestQuery_Errors(t *testing.T) {
	idx, err := Build([]float64{0, 0, 1, 1}, 2, 2)
	require.NoError(t, err)

	_, err = idx.Nearest([]float64{1})
	var mismatch *ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Expected)
	assert.Equal(t, 1, mismatch.Actual)

	_, err = idx.RangeSearch([]float64{1, 2, 3}, 1)
	assert.ErrorAs(t, err, &mismatch)

	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())
	_, err = idx.Nearest([]float64{0, 0})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = idx.RangeSearch([]float64{0, 0}, 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestResults(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	pts := randomPoints(rng, 200, 2)
	idx, err := Build(pts, 200, 2)
	require.NoError(t, err)

	res, err := idx.RangeSearch([]float64{0.5, 0.5}, 0.04)
	require.NoError(t, err)
	require.Greater(t, res.Len(), 0)

	res.Sort()
	for i := 1; i < res.Len(); i++ {
		assert.LessOrEqual(t, res.At(i-1).Dist2, res.At(i).Dist2)
	}

	bm := res.Bitmap()
	assert.Equal(t, uint64(res.Len()), bm.GetCardinality())
	for _, i := range res.Indices() {
		assert.True(t, bm.Contains(uint32(i)))
	}

	// Slot and Index agree with the permutation.
	for _, nb := range res.Neighbors() {
		assert.Equal(t, nb.Index, idx.OriginalIndex(nb.Slot))
	}

	res.Reset()
	assert.Equal(t, 0, res.Len())
}

func TestNearest_ExternalUnits(t *testing.T) {
	pts := []float64{10, 10, 20, 20, 30, 30, 40, 40}
	idx, err := Build(pts, 4, 2, WithInternalKind(coord.KindUint16), WithLeafSize(1))
	require.NoError(t, err)

	got, err := idx.Nearest([]float64{21, 21})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Index)
	assert.InDelta(t, 2.0, got.Dist2, 1e-3)
}
