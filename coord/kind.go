package coord

import (
	"fmt"
	"math"
	"strings"
)

// Kind identifies a coordinate representation.
type Kind uint8

const (
	// KindUnknown is the zero value and never valid for a tree.
	KindUnknown Kind = iota
	// KindFloat64 stores coordinates as float64.
	KindFloat64
	// KindFloat32 stores coordinates as float32.
	KindFloat32
	// KindUint32 stores quantized coordinates as uint32.
	KindUint32
	// KindUint16 stores quantized coordinates as uint16.
	KindUint16
)

func (k Kind) String() string {
	switch k {
	case KindFloat64:
		return "double"
	case KindFloat32:
		return "float"
	case KindUint32:
		return "u32"
	case KindUint16:
		return "u16"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "double", "float64":
		return KindFloat64, nil
	case "float", "float32":
		return KindFloat32, nil
	case "u32", "uint32":
		return KindUint32, nil
	case "u16", "uint16":
		return KindUint16, nil
	default:
		return KindUnknown, fmt.Errorf("unknown coordinate kind %q", s)
	}
}

// Size returns the storage size of one coordinate in bytes.
func (k Kind) Size() int {
	switch k {
	case KindFloat64:
		return 8
	case KindFloat32, KindUint32:
		return 4
	case KindUint16:
		return 2
	default:
		return 0
	}
}

// Bits returns the storage width in bits.
func (k Kind) Bits() int { return k.Size() * 8 }

// IsInteger reports whether k is a quantized integer kind.
func (k Kind) IsInteger() bool {
	return k == KindUint32 || k == KindUint16
}

// Valid reports whether k names a supported kind.
func (k Kind) Valid() bool {
	return k >= KindFloat64 && k <= KindUint16
}

// MaxValue returns the largest representable internal value for integer
// kinds and +Inf for floating kinds.
func (k Kind) MaxValue() float64 {
	switch k {
	case KindUint32:
		return math.MaxUint32
	case KindUint16:
		return math.MaxUint16
	default:
		return math.Inf(1)
	}
}
