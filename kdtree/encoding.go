package kdtree

import "math/bits"

// dimBits returns the number of low bits needed to store a dimension index.
func dimBits(dims int) int {
	if dims <= 1 {
		return 0
	}
	return bits.Len(uint(dims - 1))
}

// splitPacker packs a split dimension into the low bits of a split value.
type splitPacker struct {
	bits      uint
	dimMask   uint64
	splitMask uint64
}

func newSplitPacker(dims int) splitPacker {
	b := uint(dimBits(dims))
	mask := uint64(1)<<b - 1
	return splitPacker{bits: b, dimMask: mask, splitMask: ^mask}
}

func (p splitPacker) pack(value uint64, dim int) uint64 {
	return value<<p.bits | uint64(dim)&p.dimMask
}

func (p splitPacker) unpack(packed uint64) (value uint64, dim int) {
	return (packed & p.splitMask) >> p.bits, int(packed & p.dimMask)
}

// box returns the lower and upper corners of node's bounding box.
func (t *Tree[T]) box(node int) (lo, hi []T) {
	off := node * 2 * t.dims
	return t.bb[off : off+t.dims], t.bb[off+t.dims : off+2*t.dims]
}

// splitAt returns the split dimension and value of an interior node.
func (t *Tree[T]) splitAt(node int) (int, T) {
	if t.splitDim != nil {
		return int(t.splitDim[node]), t.split[node]
	}
	v, dim := t.packer.unpack(uint64(t.split[node]))
	return dim, T(v)
}

func (t *Tree[T]) setSplit(node, dim int, v T) {
	if t.splitDim != nil {
		t.split[node] = v
		t.splitDim[node] = uint8(dim)
		return
	}
	t.split[node] = T(t.packer.pack(uint64(v), dim))
}

// boxDist2 returns the squared distance from the internal-unit point q to
// node's box; zero when q is inside.
func (t *Tree[T]) boxDist2(node int, q []float64) float64 {
	lo, hi := t.box(node)
	var sum float64
	for d, x := range q {
		if l := float64(lo[d]); x < l {
			sum += (l - x) * (l - x)
		} else if h := float64(hi[d]); x > h {
			sum += (x - h) * (x - h)
		}
	}
	return sum
}

// fitBox sets node's box to the extent of the slots [start, end).
func (t *Tree[T]) fitBox(node, start, end int) {
	lo, hi := t.box(node)
	copy(lo, t.row(start))
	copy(hi, t.row(start))
	for s := start + 1; s < end; s++ {
		for d, v := range t.row(s) {
			if v < lo[d] {
				lo[d] = v
			}
			if v > hi[d] {
				hi[d] = v
			}
		}
	}
}

// unionBox sets node's box to the union of its children's boxes.
func (t *Tree[T]) unionBox(node int) {
	lo, hi := t.box(node)
	llo, lhi := t.box(2*node + 1)
	rlo, rhi := t.box(2*node + 2)
	for d := 0; d < t.dims; d++ {
		lo[d] = min(llo[d], rlo[d])
		hi[d] = max(lhi[d], rhi[d])
	}
}

// gap returns the distance from x to the interval [lo, hi] along one axis.
func gap(x, lo, hi float64) float64 {
	switch {
	case x < lo:
		return lo - x
	case x > hi:
		return x - hi
	default:
		return 0
	}
}
