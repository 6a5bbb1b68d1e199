// Package persistence writes and reads interval bases through a
// blobstore.BlobStore.
//
// Every rank writes its own rows of every interval to
// <base>/interval-<interval>.<rank>. A blob is a 64-byte header followed by
// a block-compressed payload:
//
//	spatial basis U·L   rows×k float64, column-major
//	singular values     k float64
//	temporal basis W    samples×k float64, row-major (optional)
//	sample times        samples float64
//	redundant samples   uint32 length + roaring bitmap
//
// All integers and floats are little-endian. The header carries a CRC32 of
// the uncompressed payload.
//
// Commit records the written intervals in a JSON manifest and points
// <base>/CURRENT at it, so readers never observe a partially written set.
package persistence
