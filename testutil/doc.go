// Package testutil provides point generators and exact ground truth for
// kdgo tests and benchmarks.
//
// This package is intended for use in tests and benchmarks only.
//
// # Point Generation
//
//	rng := testutil.NewRNG(seed)
//	pts := rng.UniformPoints(n, dims)           // uniform [0, 1)
//	pts = rng.ClusteredPoints(n, dims, 8, 0.01)  // gaussian blobs
//
// # Exact Search (Ground Truth)
//
//	idx, d2 := testutil.ExactNearest(pts, dims, q)
//	hits := testutil.ExactRange(pts, dims, q, r2)
package testutil
