package collective

import (
	"context"
	"errors"
)

var (
	// ErrInvalidSize is returned when a group is created with a non-positive size.
	ErrInvalidSize = errors.New("collective: size must be positive")
	// ErrInvalidRank is returned for a rank outside [0, size).
	ErrInvalidRank = errors.New("collective: rank out of range")
	// ErrMismatch is returned when ranks enter the same round with different
	// operations, buffer lengths or roots. It indicates divergent control flow.
	ErrMismatch = errors.New("collective: ranks diverged")
	// ErrAborted is returned to every rank once a group has been aborted.
	ErrAborted = errors.New("collective: group aborted")
)

// Communicator is the collective facility of a single worker.
//
// Implementations must be deterministic: AllReduceSum reduces the
// contributions in rank order on one logical root and hands every rank a copy
// of that single result.
type Communicator interface {
	// Rank returns the rank of this worker in [0, Size()).
	Rank() int

	// Size returns the number of workers.
	Size() int

	// AllReduceSum replaces buf with the element-wise sum of buf over all ranks.
	AllReduceSum(ctx context.Context, buf []float64) error

	// Broadcast replaces buf on every rank with the contents of buf on root.
	// The decomposition itself never broadcasts: every replicated quantity
	// comes out of AllReduceSum in rank order. Broadcast serves callers that
	// hold data on one rank only, such as a driver reading a source on rank 0.
	Broadcast(ctx context.Context, root int, buf []float64) error

	// Barrier blocks until all ranks have entered it.
	Barrier(ctx context.Context) error
}

type self struct{}

// Self returns a Communicator for a single worker.
func Self() Communicator {
	return self{}
}

func (self) Rank() int { return 0 }

func (self) Size() int { return 1 }

func (self) AllReduceSum(ctx context.Context, _ []float64) error {
	return ctx.Err()
}

func (self) Broadcast(ctx context.Context, root int, _ []float64) error {
	if root != 0 {
		return ErrInvalidRank
	}
	return ctx.Err()
}

func (self) Barrier(ctx context.Context) error {
	return ctx.Err()
}
