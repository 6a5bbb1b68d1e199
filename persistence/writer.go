package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/isvd"
	"github.com/hupe1980/isvd/blobstore"
)

// BlobInfo describes an uploaded basis blob.
type BlobInfo struct {
	Name     string
	Interval int
	Size     int64
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCompression sets the payload compression. Default: none.
func WithCompression(c Compression) WriterOption {
	return func(w *Writer) {
		w.compression = c
	}
}

// WithRateLimit caps upload throughput in bytes per second. Zero disables
// the limit.
func WithRateLimit(bytesPerSec int) WriterOption {
	return func(w *Writer) {
		if bytesPerSec > 0 {
			w.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
		} else {
			w.limiter = nil
		}
	}
}

// WithConcurrency sets the number of concurrent uploads in WriteAll.
// Default: 4.
func WithConcurrency(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithRanks sets the number of ranks recorded in the manifest. Default: 1.
func WithRanks(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.ranks = n
		}
	}
}

// WithLogger sets the logger. Default: no logging.
func WithLogger(l *isvd.Logger) WriterOption {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// Writer persists the intervals of one rank.
//
// Each rank owns a Writer. After all ranks have written (for example after
// a collective barrier) a single rank calls Commit.
type Writer struct {
	store       blobstore.BlobStore
	base        string
	rank        int
	ranks       int
	compression Compression
	concurrency int
	limiter     *rate.Limiter
	logger      *isvd.Logger

	mu      sync.Mutex
	written map[int]IntervalInfo
}

// NewWriter creates a writer for the given rank under base.
func NewWriter(store blobstore.BlobStore, base string, rank int, optFns ...WriterOption) (*Writer, error) {
	if store == nil {
		return nil, errors.New("persistence: nil blob store")
	}
	if rank < 0 {
		return nil, fmt.Errorf("persistence: invalid rank %d", rank)
	}

	w := &Writer{
		store:       store,
		base:        base,
		rank:        rank,
		ranks:       1,
		compression: CompressionNone,
		concurrency: 4,
		logger:      isvd.NoopLogger(),
		written:     make(map[int]IntervalInfo),
	}
	for _, fn := range optFns {
		fn(w)
	}

	if w.compression > CompressionZSTD {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCompression, w.compression)
	}
	if rank >= w.ranks {
		return nil, fmt.Errorf("persistence: rank %d out of range for %d ranks", rank, w.ranks)
	}
	return w, nil
}

// WriteInterval uploads the basis of an interval. Open intervals may be
// written repeatedly; each write replaces the previous blob.
func (w *Writer) WriteInterval(ctx context.Context, iv *isvd.Interval) (BlobInfo, error) {
	return w.write(ctx, Snapshot(iv, w.rank))
}

// WriteAll uploads every closed interval not yet written plus the open
// interval.
func (w *Writer) WriteAll(ctx context.Context, inc *isvd.Incremental) ([]BlobInfo, error) {
	var pending []*IntervalData
	for _, iv := range inc.Intervals() {
		if iv.Closed() && w.hasClosed(iv.Index()) {
			continue
		}
		pending = append(pending, Snapshot(iv, w.rank))
	}

	infos := make([]BlobInfo, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, d := range pending {
		g.Go(func() error {
			info, err := w.write(gctx, d)
			if err != nil {
				return err
			}
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

func (w *Writer) hasClosed(index int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	info, ok := w.written[index]
	return ok && info.Closed
}

func (w *Writer) write(ctx context.Context, d *IntervalData) (BlobInfo, error) {
	name := BlobName(w.base, d.Index, w.rank)

	data, err := encode(d, w.compression)
	if err == nil {
		err = w.throttle(ctx, len(data))
	}
	if err == nil {
		err = w.store.Put(ctx, name, data)
	}
	w.logger.WithInterval(d.Index).LogPersist(ctx, name, int64(len(data)), err)
	if err != nil {
		return BlobInfo{}, fmt.Errorf("persist interval %d: %w", d.Index, err)
	}

	blobs := make([]string, w.ranks)
	for r := range blobs {
		blobs[r] = BlobName(w.base, d.Index, r)
	}

	w.mu.Lock()
	w.written[d.Index] = IntervalInfo{
		Index:          d.Index,
		StartTime:      d.StartTime,
		K:              d.K(),
		Samples:        d.Samples(),
		Closed:         d.Closed,
		SingularValues: d.SingularValues,
		Blobs:          blobs,
	}
	w.mu.Unlock()

	return BlobInfo{Name: name, Interval: d.Index, Size: int64(len(data))}, nil
}

// throttle waits for n bytes of upload budget, in bursts the limiter accepts.
func (w *Writer) throttle(ctx context.Context, n int) error {
	if w.limiter == nil {
		return nil
	}
	burst := w.limiter.Burst()
	for n > 0 {
		c := min(n, burst)
		if err := w.limiter.WaitN(ctx, c); err != nil {
			return err
		}
		n -= c
	}
	return nil
}

// Commit writes a manifest of everything written so far, merged with the
// previously committed manifest, and points CURRENT at it.
func (w *Writer) Commit(ctx context.Context) (*Manifest, error) {
	prev, err := ReadManifest(ctx, w.store, w.base)
	if err != nil && !errors.Is(err, ErrNoManifest) {
		return nil, err
	}

	byIndex := make(map[int]IntervalInfo)
	var id uint64
	if prev != nil {
		id = prev.ID
		for _, info := range prev.Intervals {
			byIndex[info.Index] = info
		}
	}

	w.mu.Lock()
	for idx, info := range w.written {
		byIndex[idx] = info
	}
	w.mu.Unlock()

	m := &Manifest{
		FormatVersion: ManifestFormatVersion,
		ID:            id + 1,
		CreatedAt:     time.Now().UTC(),
		Base:          w.base,
		Ranks:         w.ranks,
		Compression:   w.compression.String(),
		Intervals:     make([]IntervalInfo, 0, len(byIndex)),
	}
	for _, info := range byIndex {
		m.Intervals = append(m.Intervals, info)
	}
	sort.Slice(m.Intervals, func(i, j int) bool {
		return m.Intervals[i].Index < m.Intervals[j].Index
	})

	if err := saveManifest(ctx, w.store, m); err != nil {
		return nil, err
	}
	return m, nil
}
