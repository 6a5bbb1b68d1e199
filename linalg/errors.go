package linalg

import "errors"

var (
	// ErrShape is returned when operand dimensions do not agree.
	ErrShape = errors.New("linalg: dimension mismatch")

	// ErrEmpty is returned by operations that need at least one column.
	ErrEmpty = errors.New("linalg: empty matrix")

	// ErrRankDeficient is returned when orthonormalization meets a column that
	// is numerically dependent on the previous ones.
	ErrRankDeficient = errors.New("linalg: rank deficient")

	// ErrNoConvergence is returned when an SVD solver fails to converge.
	ErrNoConvergence = errors.New("linalg: svd did not converge")
)
