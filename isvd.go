package isvd

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/isvd/collective"
	"github.com/hupe1980/isvd/linalg"
)

// Outcome classifies what an increment did to the basis.
type Outcome uint8

const (
	// OutcomeInitial means the sample opened a new time interval.
	OutcomeInitial Outcome = iota + 1

	// OutcomeNew means the sample extended the basis by one vector.
	OutcomeNew

	// OutcomeRedundant means the sample lay in the span of the basis and was
	// folded into the singular values.
	OutcomeRedundant

	// OutcomeSkipped means the sample was redundant and dropped.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInitial:
		return "initial"
	case OutcomeNew:
		return "new"
	case OutcomeRedundant:
		return "redundant"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result describes a successful increment.
type Result struct {
	Outcome Outcome

	// Interval is the index of the interval the sample went to.
	Interval int

	// Rank is the basis rank of that interval after the increment.
	Rank int

	// NormU is the global norm of the sample.
	NormU float64

	// NormJ is the global norm of the residual after projection; zero for
	// OutcomeInitial.
	NormJ float64

	// Reclassified is set when Gram-Schmidt refinement turned a candidate
	// new sample into a redundant one.
	Reclassified bool

	// Reorthogonalized is set when the basis was repaired after the update.
	Reorthogonalized bool

	// Deviation is the orthogonality deviation measured after the update
	// under ReorthAuto.
	Deviation float64
}

// Incremental maintains a low-rank SVD of a stream of distributed snapshots.
//
// Every rank of a collective group owns an Incremental over its local rows
// and all ranks call Increment in lock-step with their part of the same
// sample. Control flow depends only on replicated reduction results, so all
// ranks take the same branches.
//
// An Incremental is not safe for concurrent use.
type Incremental struct {
	dim  int
	opts options

	comm    collective.Communicator
	logger  *Logger
	metrics MetricsCollector

	intervals []*Interval
	lastTime  float64
	normJ     float64
}

// New creates an Incremental for samples with dim local rows on this rank.
// Construction performs no collective operation.
func New(dim int, optFns ...Option) (*Incremental, error) {
	if dim <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dim}
	}

	opts := applyOptions(optFns)
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	return &Incremental{
		dim:      dim,
		opts:     opts,
		comm:     opts.comm,
		logger:   opts.logger.WithRank(opts.comm.Rank()),
		metrics:  opts.metricsCollector,
		lastTime: math.Inf(-1),
	}, nil
}

func validateOptions(o options) error {
	if !(o.tolerance > 0) || math.IsInf(o.tolerance, 0) {
		return fmt.Errorf("%w: redundancy tolerance %g", ErrInvalidTolerance, o.tolerance)
	}
	if !(o.orthTolerance > 0) || math.IsInf(o.orthTolerance, 0) {
		return fmt.Errorf("%w: orthogonality tolerance %g", ErrInvalidTolerance, o.orthTolerance)
	}
	if o.perInterval <= 0 {
		return ErrInvalidCapacity
	}
	if o.variant != Fast && o.variant != Naive {
		return fmt.Errorf("%w: %d", ErrInvalidVariant, o.variant)
	}
	if o.reorth != ReorthAuto && o.reorth != ReorthManual {
		return fmt.Errorf("%w: reorthogonalization policy %d", ErrInvalidVariant, o.reorth)
	}
	return nil
}

// Dim returns the number of local rows.
func (inc *Incremental) Dim() int { return inc.dim }

// Size returns the number of ranks in the group.
func (inc *Incremental) Size() int { return inc.comm.Size() }

// Comm returns the communicator of this rank.
func (inc *Incremental) Comm() collective.Communicator { return inc.comm }

// Tolerance returns the redundancy tolerance.
func (inc *Incremental) Tolerance() float64 { return inc.opts.tolerance }

// Variant returns the configured update variant.
func (inc *Incremental) Variant() Variant { return inc.opts.variant }

// SVDSolver returns the solver used for the small bordered matrices.
func (inc *Incremental) SVDSolver() linalg.SVDSolver { return inc.opts.solver }

// NormJ returns the residual norm computed by the last increment.
func (inc *Incremental) NormJ() float64 { return inc.normJ }

// Rank returns the basis rank of the current interval, 0 before the first
// sample.
func (inc *Incremental) Rank() int {
	if iv := inc.Current(); iv != nil {
		return iv.Rank()
	}
	return 0
}

// NumIntervals returns the number of intervals, including the open one.
func (inc *Incremental) NumIntervals() int { return len(inc.intervals) }

// Interval returns interval i.
func (inc *Incremental) Interval(i int) (*Interval, error) {
	if i < 0 || i >= len(inc.intervals) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrNoInterval, i, len(inc.intervals))
	}
	return inc.intervals[i], nil
}

// Intervals returns all intervals in time order.
func (inc *Incremental) Intervals() []*Interval {
	return append([]*Interval(nil), inc.intervals...)
}

// Current returns the open interval, or nil before the first sample.
func (inc *Incremental) Current() *Interval {
	if len(inc.intervals) == 0 {
		return nil
	}
	return inc.intervals[len(inc.intervals)-1]
}

// IntervalAt returns the last interval whose start time is not after t.
func (inc *Incremental) IntervalAt(t float64) (*Interval, error) {
	for i := len(inc.intervals) - 1; i >= 0; i-- {
		if inc.intervals[i].start <= t {
			return inc.intervals[i], nil
		}
	}
	return nil, fmt.Errorf("%w: at time %g", ErrNoInterval, t)
}

// Basis returns the local rows of U·L of the current interval, or nil
// before the first sample.
func (inc *Incremental) Basis() *mat.Dense {
	if iv := inc.Current(); iv != nil {
		return iv.Basis()
	}
	return nil
}

// SingularValues returns the singular values of the current interval.
func (inc *Incremental) SingularValues() []float64 {
	if iv := inc.Current(); iv != nil {
		return iv.SingularValues()
	}
	return nil
}

// Model returns the spatial basis of the interval covering time t.
func (inc *Incremental) Model(t float64, form ModelForm) (*mat.Dense, error) {
	iv, err := inc.IntervalAt(t)
	if err != nil {
		return nil, err
	}
	return iv.Model(form), nil
}

func (inc *Incremental) newInterval(start float64) *Interval {
	return &Interval{
		index:    len(inc.intervals),
		start:    start,
		capacity: inc.opts.perInterval,
		u:        linalg.NewMatrix(inc.comm, inc.dim, min(inc.opts.perInterval, 16)),
	}
}
