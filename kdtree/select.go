package kdtree

import "github.com/hupe1980/kdgo/coord"

// rowSelector reorders rows of a row-major point array together with the
// permutation array.
type rowSelector[T coord.Value] struct {
	data []T
	perm []uint32
	dims int
	tmp  []T
}

func (s *rowSelector[T]) at(i, dim int) T {
	return s.data[i*s.dims+dim]
}

func (s *rowSelector[T]) swap(i, j int) {
	if i == j {
		return
	}
	a := s.data[i*s.dims : (i+1)*s.dims]
	b := s.data[j*s.dims : (j+1)*s.dims]
	copy(s.tmp, a)
	copy(a, b)
	copy(b, s.tmp)
	s.perm[i], s.perm[j] = s.perm[j], s.perm[i]
}

// selectNth rearranges rows [lo, hi) so that row k holds the value that
// would be there if the range were sorted along dim, every row before k is
// not greater and every row after k is not smaller.
func (s *rowSelector[T]) selectNth(lo, hi, k, dim int) {
	for hi-lo > 1 {
		pivot := s.medianOfThree(lo, hi-1, dim)
		lt, gt := s.partition3(lo, hi, dim, pivot)
		switch {
		case k < lt:
			hi = lt
		case k >= gt:
			lo = gt
		default:
			return
		}
	}
}

func (s *rowSelector[T]) medianOfThree(lo, hi, dim int) T {
	a, b, c := s.at(lo, dim), s.at(lo+(hi-lo)/2, dim), s.at(hi, dim)
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
	}
	if a > b {
		return a
	}
	return b
}

// partition3 splits [lo, hi) into rows < pivot, == pivot and > pivot and
// returns the bounds [lt, gt) of the equal run.
func (s *rowSelector[T]) partition3(lo, hi, dim int, pivot T) (lt, gt int) {
	lt, i, gt := lo, lo, hi
	for i < gt {
		v := s.at(i, dim)
		switch {
		case v < pivot:
			s.swap(lt, i)
			lt++
			i++
		case v > pivot:
			gt--
			s.swap(i, gt)
		default:
			i++
		}
	}
	return lt, gt
}
