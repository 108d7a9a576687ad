// Package mmap maps tree container files read-only into memory.
//
// A Mapping exposes the file contents as a byte slice without copying. Chunk
// payloads decoded from a container may alias the mapping, so a Mapping must
// outlive every slice taken from it.
//
// Unix systems use mmap(2) and madvise(2). Windows uses
// CreateFileMapping/MapViewOfFile and ignores access hints.
package mmap
