// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := awss3.NewFromConfig(cfg)
//	store := s3.NewStore(client, "my-bucket", "bases/")
//
//	w, err := persistence.NewWriter(store, "run-1", rank)
//
// # Features
//
//   - Range reads for efficient partial fetches
//   - Multipart uploads for large bases, with CRC32C integrity checks
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//   - DDBCommitStore for atomic CURRENT updates across concurrent writers
package s3
