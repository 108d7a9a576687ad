package coord

// Float is the set of floating storage types.
type Float interface {
	float64 | float32
}

// Integer is the set of quantized storage types.
type Integer interface {
	uint32 | uint16
}

// Value is the set of all storage types a tree can be instantiated with.
type Value interface {
	Float | Integer
}

// KindOf returns the Kind matching T.
func KindOf[T Value]() Kind {
	var zero T
	switch any(zero).(type) {
	case float64:
		return KindFloat64
	case float32:
		return KindFloat32
	case uint32:
		return KindUint32
	case uint16:
		return KindUint16
	}
	return KindUnknown
}

// Dist2 returns the squared Euclidean distance between a and b, computed in
// float64 so integer kinds cannot overflow.
func Dist2[T Value](a, b []T) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Dist2To returns the squared distance between an internal-unit query q and p.
func Dist2To[T Value](q []float64, p []T) float64 {
	var sum float64
	for i := range q {
		d := q[i] - float64(p[i])
		sum += d * d
	}
	return sum
}
