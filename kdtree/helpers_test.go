package kdtree

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kdgo/coord"
)

func randomPoints(rng *rand.Rand, n, dims int) []float64 {
	pts := make([]float64, n*dims)
	for i := range pts {
		pts[i] = rng.Float64()
	}
	return pts
}

func dist2(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// bruteNearest scans the raw input points.
func bruteNearest(points []float64, dims int, q []float64) (int, float64) {
	best, bestD := -1, 0.0
	for i := 0; i*dims < len(points); i++ {
		if d := dist2(q, points[i*dims:(i+1)*dims]); best < 0 || d < bestD {
			best, bestD = i, d
		}
	}
	return best, bestD
}

// bruteRange filters the raw input points.
func bruteRange(points []float64, dims int, q []float64, r2 float64) []int {
	var out []int
	for i := 0; i*dims < len(points); i++ {
		if dist2(q, points[i*dims:(i+1)*dims]) <= r2 {
			out = append(out, i)
		}
	}
	return out
}

// storedBrute scans the tree's stored points in internal units, so quantized
// trees can be compared exactly.
func storedBrute[T coord.Value](t *Tree[T], q []float64, r2 float64) (minD float64, inRange []int) {
	qq := t.tf.QuantizePoint(nil, q)
	ri := t.tf.InternalDist2(r2)
	minD = -1
	for slot := 0; slot < t.n; slot++ {
		d := coord.Dist2To(qq, t.row(slot))
		if minD < 0 || d < minD {
			minD = d
		}
		if d <= ri {
			inRange = append(inRange, int(t.perm[slot]))
		}
	}
	slices.Sort(inRange)
	return t.tf.ExternalDist2(minD), inRange
}

func storedBruteIndex(tb testing.TB, idx Index, q []float64, r2 float64) (float64, []int) {
	tb.Helper()
	switch t := idx.(type) {
	case *Tree[float64]:
		return storedBrute(t, q, r2)
	case *Tree[float32]:
		return storedBrute(t, q, r2)
	case *Tree[uint32]:
		return storedBrute(t, q, r2)
	case *Tree[uint16]:
		return storedBrute(t, q, r2)
	}
	require.FailNow(tb, "unexpected index type")
	return 0, nil
}

func sortedIndices(r *Results) []int {
	out := r.Indices()
	slices.Sort(out)
	return out
}

type variant struct {
	name string
	opts []Option
}

var variants = []variant{
	{"bbox", nil},
	{"bbox-linear", []Option{WithLinearLR(true)}},
	{"bbox-roundrobin", []Option{WithSplitRule(SplitRoundRobin)}},
	{"split-array", []Option{WithBoundingBoxes(false), WithSplitPlanes(SplitDimArray)}},
	{"split-array-linear", []Option{WithBoundingBoxes(false), WithSplitPlanes(SplitDimArray), WithLinearLR(true)}},
	{"bbox+split", []Option{WithSplitPlanes(SplitDimArray)}},
	{"float32", []Option{WithInternalKind(coord.KindFloat32)}},
	{"float32-split", []Option{WithInternalKind(coord.KindFloat32), WithBoundingBoxes(false), WithSplitPlanes(SplitDimArray)}},
	{"u32-bbox", []Option{WithInternalKind(coord.KindUint32)}},
	{"u32-packed", []Option{WithInternalKind(coord.KindUint32), WithBoundingBoxes(false), WithSplitPlanes(SplitDimPacked)}},
	{"u32-bbox+packed-linear", []Option{WithInternalKind(coord.KindUint32), WithSplitPlanes(SplitDimPacked), WithLinearLR(true)}},
	{"u16-packed", []Option{WithInternalKind(coord.KindUint16), WithBoundingBoxes(false), WithSplitPlanes(SplitDimPacked), WithLeafSize(4)}},
	{"u16-array-roundrobin", []Option{WithInternalKind(coord.KindUint16), WithBoundingBoxes(false), WithSplitPlanes(SplitDimArray), WithSplitRule(SplitRoundRobin)}},
}
