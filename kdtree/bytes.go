package kdtree

import (
	"fmt"
	"unsafe"
)

// asBytes views s as raw bytes in native order without copying.
func asBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
}

// fromBytes copies b into a new slice of count elements. The copy keeps the
// result aligned regardless of where b came from.
func fromBytes[T any](b []byte, count int) []T {
	out := make([]T, count)
	copy(asBytes(out), b)
	return out
}

// endianTag renders 0x01020304 in native byte order.
func endianTag() string {
	x := uint32(0x01020304)
	b := (*[4]byte)(unsafe.Pointer(&x))
	return fmt.Sprintf("%02x:%02x:%02x:%02x", b[0], b[1], b[2], b[3])
}
