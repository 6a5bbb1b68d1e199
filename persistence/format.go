package persistence

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MagicNumber identifies basis files (bytes "ISVD").
	MagicNumber uint32 = 0x44565349
	// Version is the current file format version.
	Version uint32 = 1
	// HeaderSize is the encoded size of FileHeader.
	HeaderSize = 64
)

const (
	flagTemporal uint8 = 1 << iota
	flagClosed
)

var (
	ErrInvalidMagic       = errors.New("invalid magic number")
	ErrInvalidVersion     = errors.New("unsupported version")
	ErrCorrupt            = errors.New("corrupt basis file")
	ErrInvalidCompression = errors.New("invalid compression")
)

// Compression selects the payload compression of a basis file.
type Compression uint8

const (
	// CompressionNone stores the payload as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd". The empty string means none.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCompression, s)
	}
}

// FileHeader is the 64-byte header at the start of every basis file.
type FileHeader struct {
	Magic       uint32 // 0x44565349 ("ISVD")
	Version     uint32 // File format version
	Compression Compression
	Flags       uint8 // flagTemporal, flagClosed
	Padding1    [2]byte
	Interval    uint32  // Interval index
	Rows        uint64  // Local rows of the spatial basis
	K           uint32  // Basis rank
	Samples     uint32  // Samples recorded in the interval
	StartTime   float64 // Time of the first sample
	PayloadLen  uint64  // Uncompressed payload length
	StoredLen   uint64  // Stored block length following the header
	Checksum    uint32  // CRC32 of the uncompressed payload
	Reserved    [4]byte
}
