package benchmark_test

import (
	"testing"

	"github.com/hupe1980/kdgo"
	"github.com/hupe1980/kdgo/coord"
	"github.com/hupe1980/kdgo/kdtree"
	"github.com/hupe1980/kdgo/testutil"
)

// ============================================================================
// Benchmark Configuration
// ============================================================================

// Standard dimensions used across benchmarks for consistency.
const (
	dimSmall  = 2 // Sky positions, maps
	dimMedium = 3 // Cartesian unit sphere
	dimLarge  = 8 // Feature space
)

// Standard dataset sizes.
const (
	sizeSmall  = 10_000
	sizeMedium = 100_000
	sizeLarge  = 1_000_000
)

// Seed for deterministic benchmarks - enables reproducible comparisons.
const benchSeed = 42

// layouts are the storage layouts compared by most benchmarks.
var layouts = []struct {
	name string
	opts []kdtree.Option
}{
	{"double-bb", nil},
	{"float-bb", []kdtree.Option{kdtree.WithInternalKind(coord.KindFloat32)}},
	{"u32-split", []kdtree.Option{
		kdtree.WithInternalKind(coord.KindUint32),
		kdtree.WithBoundingBoxes(false),
		kdtree.WithSplitPlanes(kdtree.SplitDimPacked),
	}},
	{"u16-bb-linear", []kdtree.Option{
		kdtree.WithInternalKind(coord.KindUint16),
		kdtree.WithLinearLR(true),
	}},
}

// buildTree builds a tree over seeded uniform points.
func buildTree(b *testing.B, n, dims int, opts ...kdtree.Option) (*kdgo.Tree, []float64) {
	b.Helper()
	pts := testutil.NewRNG(benchSeed).UniformPoints(n, dims)
	tree, err := kdgo.Build(pts, n, dims, kdgo.WithTreeOptions(opts...))
	if err != nil {
		b.Fatalf("build: %v", err)
	}
	b.Cleanup(func() { _ = tree.Close() })
	return tree, pts
}

// makeQueries returns count seeded query points.
func makeQueries(count, dims int) [][]float64 {
	raw := testutil.NewRNG(benchSeed+1).UniformPoints(count, dims)
	out := make([][]float64, count)
	for i := range out {
		out[i] = testutil.Row(raw, dims, i)
	}
	return out
}
