package coord

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrInvalidRange is returned when a quantization range is empty or inverted.
var ErrInvalidRange = errors.New("coord: invalid quantization range")

// Transform is the per-tree affine map between external and internal units.
//
// A Transform is immutable after construction and safe for concurrent use.
type Transform struct {
	min      []float64
	max      []float64
	scale    float64
	invScale float64
	limit    float64 // largest internal value; +Inf for floating trees
}

// Identity returns the transform used by floating-point trees: internal and
// external units coincide.
func Identity(dims int) *Transform {
	t := &Transform{
		min:      make([]float64, dims),
		max:      make([]float64, dims),
		scale:    1,
		invScale: 1,
		limit:    math.Inf(1),
	}
	for i := range t.max {
		t.max[i] = math.Inf(1)
	}
	return t
}

// NewTransform returns a quantizing transform that maps [min[d], max[d]] into
// [0, limit]. Every dimension must satisfy max > min.
func NewTransform(min, max []float64, limit float64) (*Transform, error) {
	if len(min) != len(max) || len(min) == 0 {
		return nil, fmt.Errorf("%w: min has %d dims, max has %d", ErrInvalidRange, len(min), len(max))
	}
	for d := range min {
		if !(max[d] > min[d]) || math.IsInf(max[d]-min[d], 0) || math.IsNaN(max[d]-min[d]) {
			return nil, fmt.Errorf("%w: dim %d: min=%g max=%g", ErrInvalidRange, d, min[d], max[d])
		}
	}
	return newQuantizing(slices.Clone(min), slices.Clone(max), limit), nil
}

// FitTransform derives the quantization range from n row-major points of
// dimension dims. Dimensions with zero extent are allowed as long as the
// point set is not empty; the shared scale is set by the widest dimension.
func FitTransform(points []float64, n, dims int, limit float64) (*Transform, error) {
	if n == 0 || dims == 0 {
		return nil, fmt.Errorf("%w: cannot fit a range to an empty point set", ErrInvalidRange)
	}
	min := make([]float64, dims)
	max := make([]float64, dims)
	copy(min, points[:dims])
	copy(max, points[:dims])
	for i := 1; i < n; i++ {
		row := points[i*dims : (i+1)*dims]
		for d, v := range row {
			if v < min[d] {
				min[d] = v
			}
			if v > max[d] {
				max[d] = v
			}
		}
	}
	for d := range min {
		if math.IsNaN(min[d]) || math.IsNaN(max[d]) || math.IsInf(max[d]-min[d], 0) {
			return nil, fmt.Errorf("%w: dim %d is not finite", ErrInvalidRange, d)
		}
	}
	return newQuantizing(min, max, limit), nil
}

// Restore rebuilds a transform from persisted range metadata.
func Restore(min, max []float64, scale, limit float64) (*Transform, error) {
	if len(min) != len(max) {
		return nil, fmt.Errorf("%w: min has %d dims, max has %d", ErrInvalidRange, len(min), len(max))
	}
	if !(scale > 0) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("%w: scale %g", ErrInvalidRange, scale)
	}
	return &Transform{
		min:      slices.Clone(min),
		max:      slices.Clone(max),
		scale:    scale,
		invScale: 1 / scale,
		limit:    limit,
	}, nil
}

func newQuantizing(min, max []float64, limit float64) *Transform {
	width := 0.0
	for d := range min {
		width = math.Max(width, max[d]-min[d])
	}
	if width == 0 {
		width = 1
	}
	scale := limit / width
	return &Transform{
		min:      min,
		max:      max,
		scale:    scale,
		invScale: 1 / scale,
		limit:    limit,
	}
}

// Dims returns the number of dimensions.
func (t *Transform) Dims() int { return len(t.min) }

// Scale returns the external-to-internal scale factor.
func (t *Transform) Scale() float64 { return t.scale }

// InvScale returns 1/Scale.
func (t *Transform) InvScale() float64 { return t.invScale }

// Limit returns the largest internal coordinate value.
func (t *Transform) Limit() float64 { return t.limit }

// Min returns a copy of the per-dimension lower range bound.
func (t *Transform) Min() []float64 { return slices.Clone(t.min) }

// Max returns a copy of the per-dimension upper range bound.
func (t *Transform) Max() []float64 { return slices.Clone(t.max) }

// IsIdentity reports whether internal and external units coincide.
func (t *Transform) IsIdentity() bool {
	return math.IsInf(t.limit, 1) && t.scale == 1
}

// Quantize maps x on dimension dim to internal units without rounding.
func (t *Transform) Quantize(x float64, dim int) float64 {
	return (x - t.min[dim]) * t.scale
}

// Dequantize maps an internal value on dimension dim back to external units.
func (t *Transform) Dequantize(v float64, dim int) float64 {
	return v*t.invScale + t.min[dim]
}

// QuantizePoint writes the un-rounded internal representation of p to dst.
func (t *Transform) QuantizePoint(dst, p []float64) []float64 {
	dst = dst[:0]
	for d, x := range p {
		dst = append(dst, t.Quantize(x, d))
	}
	return dst
}

// ExternalDist2 converts an internal squared distance to external units.
func (t *Transform) ExternalDist2(d2 float64) float64 {
	return d2 * t.invScale * t.invScale
}

// InternalDist2 converts an external squared distance to internal units.
func (t *Transform) InternalDist2(d2 float64) float64 {
	return d2 * t.scale * t.scale
}

// Step returns the size of one internal quantization step in external units.
func (t *Transform) Step() float64 { return t.invScale }

// ToInternal maps x on dimension dim to the storage type T. Integer kinds are
// rounded to nearest and clamped to [0, Limit].
func ToInternal[T Value](t *Transform, x float64, dim int) T {
	v := t.Quantize(x, dim)
	if !KindOf[T]().IsInteger() {
		return T(v)
	}
	v = math.Round(v)
	if v < 0 {
		v = 0
	} else if v > t.limit {
		v = t.limit
	}
	return T(v)
}

// FromInternal maps a stored value on dimension dim back to external units.
func FromInternal[T Value](t *Transform, v T, dim int) float64 {
	return t.Dequantize(float64(v), dim)
}
