package kdgo

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes the shape of a tree.
type Stats struct {
	Points int
	Dims   int
	Nodes  int
	Leaves int
	Levels int

	LeafMin    int
	LeafMax    int
	LeafMean   float64
	LeafStdDev float64

	// Min and Max bound the stored points in external units.
	Min, Max []float64
	// Diagonal is the length of the bounding box diagonal.
	Diagonal float64
}

// Stats scans the tree and reports its shape. A closed tree reports zero
// Stats.
func (t *Tree) Stats() Stats {
	idx := t.idx
	if idx.Closed() {
		return Stats{}
	}
	s := Stats{
		Points: idx.Len(),
		Dims:   idx.Dim(),
		Nodes:  idx.NumNodes(),
		Leaves: idx.NumLeaves(),
		Levels: idx.NumLevels(),
	}
	if s.Points == 0 {
		return s
	}

	sizes := make([]float64, s.Leaves)
	for leaf := range sizes {
		start, end := idx.NodeRange(idx.NumInterior() + leaf)
		sizes[leaf] = float64(end - start)
	}
	s.LeafMin = int(floats.Min(sizes))
	s.LeafMax = int(floats.Max(sizes))
	s.LeafMean, s.LeafStdDev = stat.MeanStdDev(sizes, nil)
	if math.IsNaN(s.LeafStdDev) {
		s.LeafStdDev = 0
	}

	s.Min = make([]float64, s.Dims)
	s.Max = make([]float64, s.Dims)
	var p []float64
	for slot := 0; slot < s.Points; slot++ {
		p = idx.Point(slot, p)
		if slot == 0 {
			copy(s.Min, p)
			copy(s.Max, p)
			continue
		}
		for d, x := range p {
			s.Min[d] = math.Min(s.Min[d], x)
			s.Max[d] = math.Max(s.Max[d], x)
		}
	}
	s.Diagonal = floats.Distance(s.Min, s.Max, 2)
	return s
}
