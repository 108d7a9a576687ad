package testutil

import (
	"math/rand"
	"slices"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// FillUniform fills dst with random values in range [0, 1).
func (r *RNG) FillUniform(dst []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float64()
	}
}

// FillUniformRange fills dst with random values in range [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float64, minVal, maxVal float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	for i := range dst {
		dst[i] = minVal + r.rand.Float64()*span
	}
}

// UniformPoints returns n row-major points with coordinates in [0, 1).
func (r *RNG) UniformPoints(n, dims int) []float64 {
	pts := make([]float64, n*dims)
	r.FillUniform(pts)
	return pts
}

// ClusteredPoints returns n row-major points scattered with gaussian noise
// of the given spread around a number of uniformly placed centres.
func (r *RNG) ClusteredPoints(n, dims, clusters int, spread float64) []float64 {
	centres := r.UniformPoints(clusters, dims)

	r.mu.Lock()
	defer r.mu.Unlock()

	pts := make([]float64, n*dims)
	for i := range n {
		c := centres[(i%clusters)*dims : (i%clusters+1)*dims]
		for j := range dims {
			pts[i*dims+j] = c[j] + r.rand.NormFloat64()*spread
		}
	}
	return pts
}

// GridPoints returns n points snapped to a grid with the given number of
// cells per axis, so many points coincide.
func (r *RNG) GridPoints(n, dims, cells int) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	pts := make([]float64, n*dims)
	for i := range pts {
		pts[i] = float64(r.rand.Intn(cells)) / float64(cells)
	}
	return pts
}

// Row returns point i of a row-major point slice.
func Row(pts []float64, dims, i int) []float64 {
	return pts[i*dims : (i+1)*dims]
}

// Dist2 returns the squared Euclidean distance between a and b.
func Dist2(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

// Hit is a ground-truth result.
type Hit struct {
	Index int
	Dist2 float64
}

// ExactNearest scans every point. Ties go to the lowest index. It returns
// -1 when pts is empty.
func ExactNearest(pts []float64, dims int, q []float64) (int, float64) {
	best, bestD := -1, 0.0
	for i := 0; (i+1)*dims <= len(pts); i++ {
		if d := Dist2(q, Row(pts, dims, i)); best < 0 || d < bestD {
			best, bestD = i, d
		}
	}
	return best, bestD
}

// ExactKNN returns the k closest points ordered by distance then index.
func ExactKNN(pts []float64, dims int, q []float64, k int) []Hit {
	hits := ExactRange(pts, dims, q, -1)
	return hits[:min(k, len(hits))]
}

// ExactRange returns every point within squared distance r2 of q ordered by
// distance then index. A negative r2 returns all points.
func ExactRange(pts []float64, dims int, q []float64, r2 float64) []Hit {
	var hits []Hit
	for i := 0; (i+1)*dims <= len(pts); i++ {
		if d := Dist2(q, Row(pts, dims, i)); r2 < 0 || d <= r2 {
			hits = append(hits, Hit{Index: i, Dist2: d})
		}
	}
	slices.SortFunc(hits, func(a, b Hit) int {
		if a.Dist2 != b.Dist2 {
			if a.Dist2 < b.Dist2 {
				return -1
			}
			return 1
		}
		return a.Index - b.Index
	})
	return hits
}

// Indices returns the indices of hits.
func Indices(hits []Hit) []int {
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.Index
	}
	return out
}
