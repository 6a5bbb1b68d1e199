package isvd

import (
	"log/slog"

	"github.com/hupe1980/isvd/collective"
	"github.com/hupe1980/isvd/linalg"
)

// Variant selects how basis rotations are stored.
type Variant uint8

const (
	// Fast appends new directions to the stored U and accumulates every
	// rotation in the small replicated matrix L. Besides the O(dim·k)
	// projection, an update costs O(k³) replicated work.
	Fast Variant = iota + 1

	// Naive applies every rotation to the distributed U directly and keeps
	// L equal to the identity, at O(dim·k²) local work per update.
	Naive
)

func (v Variant) String() string {
	switch v {
	case Fast:
		return "fast"
	case Naive:
		return "naive"
	default:
		return "unknown"
	}
}

// ReorthPolicy controls when the basis is checked for loss of orthogonality.
type ReorthPolicy uint8

const (
	// ReorthAuto checks after every applied update and repairs the basis
	// when the deviation exceeds the orthogonality tolerance. The check is
	// O(k³) for Fast and O(dim·k²) plus one reduction for Naive.
	ReorthAuto ReorthPolicy = iota + 1

	// ReorthManual leaves checking and repair to the caller through
	// CheckOrthogonality and ReOrthogonalize.
	ReorthManual
)

func (p ReorthPolicy) String() string {
	switch p {
	case ReorthAuto:
		return "auto"
	case ReorthManual:
		return "manual"
	default:
		return "unknown"
	}
}

const (
	// DefaultRedundancyTolerance is the default relative residual threshold.
	DefaultRedundancyTolerance = 1e-6

	// DefaultIncrementsPerInterval is the default basis rank cap of an interval.
	DefaultIncrementsPerInterval = 64

	// DefaultOrthogonalityTolerance is the default repair threshold.
	DefaultOrthogonalityTolerance = 1e-10
)

type options struct {
	comm             collective.Communicator
	tolerance        float64
	skipRedundant    bool
	perInterval      int
	variant          Variant
	solver           linalg.SVDSolver
	reorth           ReorthPolicy
	orthTolerance    float64
	temporalBasis    bool
	logger           *Logger
	metricsCollector MetricsCollector
}

func defaultOptions() options {
	return options{
		comm:             collective.Self(),
		tolerance:        DefaultRedundancyTolerance,
		perInterval:      DefaultIncrementsPerInterval,
		variant:          Fast,
		solver:           linalg.GolubKahan{},
		reorth:           ReorthAuto,
		orthTolerance:    DefaultOrthogonalityTolerance,
		temporalBasis:    true,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
}

// Option configures an Incremental.
type Option func(*options)

func applyOptions(optFns []Option) options {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// WithCommunicator sets the collective facility of this rank. Every rank of
// the group must pass a communicator of the same group.
//
// If nil is passed, collective.Self() is used.
func WithCommunicator(c collective.Communicator) Option {
	return func(o *options) {
		if c == nil {
			c = collective.Self()
		}
		o.comm = c
	}
}

// WithRedundancyTolerance sets the relative residual threshold below which a
// sample is considered to lie in the span of the current basis.
func WithRedundancyTolerance(tol float64) Option {
	return func(o *options) {
		o.tolerance = tol
	}
}

// WithSkipRedundant drops redundant samples entirely instead of folding them
// into the singular values.
func WithSkipRedundant(skip bool) Option {
	return func(o *options) {
		o.skipRedundant = skip
	}
}

// WithIncrementsPerInterval caps the basis rank of a time interval. Once an
// interval reaches the cap the next sample starts a new interval.
func WithIncrementsPerInterval(n int) Option {
	return func(o *options) {
		o.perInterval = n
	}
}

// WithVariant selects the update variant.
func WithVariant(v Variant) Option {
	return func(o *options) {
		o.variant = v
	}
}

// WithSVDSolver sets the small dense SVD solver.
//
// If nil is passed, linalg.GolubKahan is used.
func WithSVDSolver(s linalg.SVDSolver) Option {
	return func(o *options) {
		if s == nil {
			s = linalg.GolubKahan{}
		}
		o.solver = s
	}
}

// WithReorthogonalization sets the orthogonality policy.
func WithReorthogonalization(p ReorthPolicy) Option {
	return func(o *options) {
		o.reorth = p
	}
}

// WithOrthogonalityTolerance sets the deviation above which the basis is
// repaired under ReorthAuto.
func WithOrthogonalityTolerance(tol float64) Option {
	return func(o *options) {
		o.orthTolerance = tol
	}
}

// WithTemporalBasis enables or disables tracking of the right singular
// vectors. Interval.Reconstruct needs them.
func WithTemporalBasis(enabled bool) Option {
	return func(o *options) {
		o.temporalBasis = enabled
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := isvd.NewJSONLogger(slog.LevelInfo)
//	inc, _ := isvd.New(dim, isvd.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &isvd.BasicMetricsCollector{}
//	inc, _ := isvd.New(dim, isvd.WithMetricsCollector(metrics))
//	// ... push samples ...
//	stats := metrics.GetStats()
//	fmt.Printf("new: %d, redundant: %d\n", stats.NewCount, stats.RedundantCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}
