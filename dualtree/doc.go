// Package dualtree walks two k-d trees jointly, pruning whole node pairs at
// once. It is used for batched queries where every point of one tree is
// searched against another: all-nearest-neighbour and radius joins.
//
// A walk is driven by a Visitor. Search starts at the pair of roots; for every
// pair the visitor accepts, it either reports a leaf pair or descends into
// the cross product of the children of whichever side is still interior.
//
// Node regions are compared in external units, so the two trees may use
// different internal coordinate kinds.
package dualtree
