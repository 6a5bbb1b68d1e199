// Package mmap provides read-only memory-mapped file access.
//
// The local blob store maps persisted basis files so that readers can decode
// the payload straight from the page cache without an intermediate copy.
//
//	m, err := mmap.Open("interval-000000.000000", mmap.AccessSequential)
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes() // valid until Close
//
// Unix platforms use mmap(2) with madvise(2) hints; Windows uses
// CreateFileMapping/MapViewOfFile and ignores the hints.
package mmap
