// Package coord defines the coordinate representations used by kdgo trees and
// the affine map between caller-space ("external") coordinates and the
// representation stored in tree nodes ("internal").
//
// Four storage kinds are supported:
//
//   - Float64: wide floating point, stored as-is
//   - Float32: narrow floating point, stored as-is
//   - Uint32, Uint16: fixed-point values quantized from a real range
//
// Integer kinds are produced with
//
//	internal = (external - min[dim]) * scale
//
// where scale is shared by all dimensions, so squared distances measured in
// internal units equal scale² times the external squared distance.
package coord
