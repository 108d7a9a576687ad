package kdtree

// Box helpers operate on axis-aligned boxes given as lower and upper corners
// in the same units as the points they are compared with. Bounds may be
// infinite; they are never NaN.

// BoxContains reports whether p lies inside [lo, hi], boundary included.
func BoxContains(lo, hi, p []float64) bool {
	for d, x := range p {
		if x < lo[d] || x > hi[d] {
			return false
		}
	}
	return true
}

// BoxMinDist2 returns the squared distance from p to the box, zero inside.
func BoxMinDist2(lo, hi, p []float64) float64 {
	var sum float64
	for d, x := range p {
		g := gap(x, lo[d], hi[d])
		sum += g * g
	}
	return sum
}

// BoxIntersects reports whether two boxes share at least one point.
func BoxIntersects(alo, ahi, blo, bhi []float64) bool {
	for d := range alo {
		if alo[d] > bhi[d] || blo[d] > ahi[d] {
			return false
		}
	}
	return true
}

// BoxBoxMinDist2 returns the smallest squared distance between any point of
// box a and any point of box b.
func BoxBoxMinDist2(alo, ahi, blo, bhi []float64) float64 {
	var sum float64
	for d := range alo {
		var g float64
		switch {
		case blo[d] > ahi[d]:
			g = blo[d] - ahi[d]
		case alo[d] > bhi[d]:
			g = alo[d] - bhi[d]
		}
		sum += g * g
	}
	return sum
}

// BoxBoxMaxDist2 returns the largest squared distance between a point of box
// a and a point of box b.
func BoxBoxMaxDist2(alo, ahi, blo, bhi []float64) float64 {
	var sum float64
	for d := range alo {
		g := max(ahi[d]-blo[d], bhi[d]-alo[d])
		sum += g * g
	}
	return sum
}
