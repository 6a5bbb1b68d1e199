package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/isvd"
)

// IntervalData is the persisted state of one interval on one rank.
type IntervalData struct {
	Index     int
	Rank      int
	StartTime float64
	Closed    bool

	// Basis holds the local rows of U·L.
	Basis          *mat.Dense
	SingularValues []float64
	// TemporalBasis is samples×k, or nil when it was not tracked.
	TemporalBasis *mat.Dense
	Times         []float64
	Redundant     *roaring.Bitmap
}

// Snapshot copies the persisted state out of an interval.
func Snapshot(iv *isvd.Interval, rank int) *IntervalData {
	return &IntervalData{
		Index:          iv.Index(),
		Rank:           rank,
		StartTime:      iv.StartTime(),
		Closed:         iv.Closed(),
		Basis:          iv.Basis(),
		SingularValues: iv.SingularValues(),
		TemporalBasis:  iv.TemporalBasis(),
		Times:          iv.Times(),
		Redundant:      iv.RedundantSamples(),
	}
}

// K returns the basis rank.
func (d *IntervalData) K() int { return len(d.SingularValues) }

// Rows returns the local rows of the spatial basis.
func (d *IntervalData) Rows() int {
	if d.Basis == nil {
		return 0
	}
	r, _ := d.Basis.Dims()
	return r
}

// Samples returns the number of samples in the interval.
func (d *IntervalData) Samples() int { return len(d.Times) }

// Model returns the spatial basis in the requested form.
func (d *IntervalData) Model(form isvd.ModelForm) *mat.Dense {
	b := mat.DenseCopyOf(d.Basis)
	if form == isvd.ModelULS {
		b.Apply(func(_, j int, v float64) float64 { return v * d.SingularValues[j] }, b)
	}
	return b
}

func putFloats(dst []byte, xs ...float64) []byte {
	for _, x := range xs {
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(x))
	}
	return dst
}

func encode(d *IntervalData, c Compression) ([]byte, error) {
	rows, k, n := d.Rows(), d.K(), d.Samples()
	if rows == 0 || k == 0 {
		return nil, fmt.Errorf("persistence: empty basis for interval %d", d.Index)
	}
	if _, bc := d.Basis.Dims(); bc != k {
		return nil, fmt.Errorf("persistence: basis has %d columns, want %d", bc, k)
	}

	bm := d.Redundant
	if bm == nil {
		bm = roaring.New()
	}
	redundant, err := bm.ToBytes()
	if err != nil {
		return nil, err
	}

	size := 8 * (rows*k + k + n)
	if d.TemporalBasis != nil {
		size += 8 * n * k
	}
	payload := make([]byte, 0, size+4+len(redundant))

	for j := range k {
		for i := range rows {
			payload = putFloats(payload, d.Basis.At(i, j))
		}
	}
	payload = putFloats(payload, d.SingularValues...)

	var flags uint8
	if d.TemporalBasis != nil {
		flags |= flagTemporal
		if wr, wc := d.TemporalBasis.Dims(); wr != n || wc != k {
			return nil, fmt.Errorf("persistence: temporal basis is %d×%d, want %d×%d", wr, wc, n, k)
		}
		for i := range n {
			payload = putFloats(payload, d.TemporalBasis.RawRowView(i)...)
		}
	}
	if d.Closed {
		flags |= flagClosed
	}

	payload = putFloats(payload, d.Times...)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(len(redundant)))
	payload = append(payload, redundant...)

	block, err := compressBlock(payload, c)
	if err != nil {
		return nil, err
	}

	h := FileHeader{
		Magic:       MagicNumber,
		Version:     Version,
		Compression: c,
		Flags:       flags,
		Interval:    uint32(d.Index),
		Rows:        uint64(rows),
		K:           uint32(k),
		Samples:     uint32(n),
		StartTime:   d.StartTime,
		PayloadLen:  uint64(len(payload)),
		StoredLen:   uint64(len(block)),
		Checksum:    ComputeChecksum(payload),
	}

	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(block))
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	buf.Write(block)
	return buf.Bytes(), nil
}

func readHeader(data []byte) (*FileHeader, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	var h FileHeader
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if h.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidVersion, h.Version)
	}
	return &h, nil
}

// payloadReader consumes little-endian values and remembers the first
// short read.
type payloadReader struct {
	data []byte
	err  error
}

func (r *payloadReader) floats(n int) []float64 {
	if r.err != nil {
		return nil
	}
	if len(r.data) < 8*n {
		r.err = fmt.Errorf("%w: payload truncated", ErrCorrupt)
		return nil
	}
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = math.Float64frombits(binary.LittleEndian.Uint64(r.data[8*i:]))
	}
	r.data = r.data[8*n:]
	return xs
}

func (r *payloadReader) bytes() []byte {
	if r.err != nil {
		return nil
	}
	if len(r.data) < 4 {
		r.err = fmt.Errorf("%w: payload truncated", ErrCorrupt)
		return nil
	}
	n := binary.LittleEndian.Uint32(r.data)
	r.data = r.data[4:]
	if uint64(len(r.data)) < uint64(n) {
		r.err = fmt.Errorf("%w: payload truncated", ErrCorrupt)
		return nil
	}
	b := r.data[:n]
	r.data = r.data[n:]
	return b
}

// decode parses a basis file. rank is taken from the blob name.
func decode(data []byte, rank int) (*IntervalData, error) {
	h, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)-HeaderSize) < h.StoredLen {
		return nil, fmt.Errorf("%w: stored block truncated", ErrCorrupt)
	}

	payload, err := decompressBlock(data[HeaderSize:HeaderSize+h.StoredLen], h.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if uint64(len(payload)) != h.PayloadLen {
		return nil, fmt.Errorf("%w: payload is %d bytes, want %d", ErrCorrupt, len(payload), h.PayloadLen)
	}
	if err := verifyChecksum(payload, h.Checksum); err != nil {
		return nil, err
	}

	rows, k, n := int(h.Rows), int(h.K), int(h.Samples)
	if rows == 0 || k == 0 {
		return nil, fmt.Errorf("%w: empty basis", ErrCorrupt)
	}

	r := &payloadReader{data: payload}
	colMajor := r.floats(rows * k)
	sv := r.floats(k)
	var w []float64
	if h.Flags&flagTemporal != 0 {
		w = r.floats(n * k)
	}
	times := r.floats(n)
	redundant := r.bytes()
	if r.err != nil {
		return nil, r.err
	}

	d := &IntervalData{
		Index:          int(h.Interval),
		Rank:           rank,
		StartTime:      h.StartTime,
		Closed:         h.Flags&flagClosed != 0,
		Basis:          mat.NewDense(rows, k, nil),
		SingularValues: sv,
		Times:          times,
		Redundant:      roaring.New(),
	}
	for j := range k {
		for i := range rows {
			d.Basis.Set(i, j, colMajor[j*rows+i])
		}
	}
	if w != nil && n > 0 {
		d.TemporalBasis = mat.NewDense(n, k, w)
	}
	if err := d.Redundant.UnmarshalBinary(redundant); err != nil {
		return nil, fmt.Errorf("%w: redundant samples: %v", ErrCorrupt, err)
	}
	return d, nil
}
