// Package blobstore abstracts where tree containers live.
//
// A container is written once through Create or Put and read back through
// Open. Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local directory, mmap reads, atomic temp-file writes
//   - MemoryStore: in-process map, for tests and ephemeral trees
//   - CachingStore: LRU cache of whole blobs in front of a remote store
//   - s3.Store: Amazon S3 (and s3.DDBCommitStore for DynamoDB-backed commits)
//   - minio.Store: MinIO and other S3-compatible services
//
// A failed write never replaces an existing blob: LocalStore renames the
// finished temp file into place only after it was synced, and object stores
// only publish completed uploads.
package blobstore
