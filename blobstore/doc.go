// Package blobstore provides the storage abstraction for persisted bases.
//
// A BlobStore holds immutable named blobs. Names use forward slashes
// regardless of the backend ("run-1/interval-000000.000000"). Writes are
// whole-blob and atomic: a reader either sees the previous content or the
// new one, never a partial write.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests
//   - LocalStore: local filesystem with mmap reads
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - s3.DDBCommitStore: S3 plus DynamoDB conditional commits of CURRENT
//   - minio.Store: MinIO and other S3-compatible servers
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Blobs that are backed by memory can implement Mappable so that ReadAll
// avoids a copy.
package blobstore
