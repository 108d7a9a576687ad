// Package conv provides checked integer conversions for sizes and counts read
// from container headers, where a corrupt file must not wrap or overflow.
package conv
