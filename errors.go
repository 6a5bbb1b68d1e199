package isvd

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyVector is returned when a sample is nil or has no entries.
	ErrEmptyVector = errors.New("sample must not be empty")

	// ErrInvalidTime is returned for negative or non-finite sample times.
	ErrInvalidTime = errors.New("time must be finite and non-negative")

	// ErrInvalidTolerance is returned for a non-positive or non-finite tolerance.
	ErrInvalidTolerance = errors.New("tolerance must be positive and finite")

	// ErrInvalidCapacity is returned when the increments per interval are not positive.
	ErrInvalidCapacity = errors.New("increments per interval must be positive")

	// ErrInvalidVariant is returned for an unknown update variant or orthogonality policy.
	ErrInvalidVariant = errors.New("invalid variant")

	// ErrNoInterval is returned when no interval covers the request.
	ErrNoInterval = errors.New("no time interval")

	// ErrSampleOutOfRange is returned for a sample index outside an interval.
	ErrSampleOutOfRange = errors.New("sample index out of range")

	// ErrTemporalBasisDisabled is returned by operations that need the
	// temporal basis when it is not tracked.
	ErrTemporalBasisDisabled = errors.New("temporal basis is disabled")
)

// ErrDimensionMismatch indicates a sample whose local length differs from the
// configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// ErrTimeOrder indicates a sample time earlier than the previous sample.
type ErrTimeOrder struct {
	Previous float64
	Time     float64
}

func (e *ErrTimeOrder) Error() string {
	return fmt.Sprintf("time %g precedes previous sample time %g", e.Time, e.Previous)
}

// NumericalError reports a degenerate sample. The sample was dropped and the
// basis is unchanged.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type NumericalError struct {
	Op     string
	Time   float64
	Reason string
	cause  error
}

func (e *NumericalError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("numerical degeneracy in %s at t=%g: %s: %v", e.Op, e.Time, e.Reason, e.cause)
	}
	return fmt.Sprintf("numerical degeneracy in %s at t=%g: %s", e.Op, e.Time, e.Reason)
}

func (e *NumericalError) Unwrap() error { return e.cause }

func numericalError(op string, t float64, reason string, cause error) *NumericalError {
	return &NumericalError{Op: op, Time: t, Reason: reason, cause: cause}
}
