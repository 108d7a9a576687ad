// Package chunkstore implements the container that persisted trees live in: a
// set of named binary chunks plus a flat text metadata table.
//
// Each chunk records its item size and row count so readers can validate the
// shape of an array before viewing it. Payloads are opaque bytes; the tree
// layer writes them in native byte order and records that order in metadata.
//
// # Container Layout
//
// All framing integers are little-endian:
//
//	magic    "KDCS"
//	version  u16
//	flags    u16
//	metaLen  u32, then metaLen bytes of "KEY = value\n" lines
//	nchunks  u32, then per chunk:
//	    nameLen u16, name
//	    itemSize u32, rows u64
//	    codec u8, rawLen u64, storedLen u64, crc32 u32 (IEEE, over stored bytes)
//	    payload (storedLen bytes)
//
// Payloads may be compressed with LZ4 or Zstandard. A chunk is stored raw when
// compression does not shrink it by at least 10%.
package chunkstore
