package linalg

import (
	"gonum.org/v1/gonum/mat"
)

// SVDResult holds a = U·diag(Values)·Vᵗ with Values sorted in descending
// order and U, V square and orthogonal.
type SVDResult struct {
	U      *mat.Dense
	Values []float64
	V      *mat.Dense
}

// SVDSolver factors small dense matrices.
//
// Implementations must be deterministic: identical input yields identical
// output bits, which keeps replicated state in lock-step across ranks.
type SVDSolver interface {
	Factorize(a mat.Matrix) (*SVDResult, error)
	Name() string
}

// GolubKahan factors with gonum's Golub-Kahan-Reinsch implementation.
type GolubKahan struct{}

var _ SVDSolver = GolubKahan{}

// Name implements SVDSolver.
func (GolubKahan) Name() string { return "golub-kahan" }

// Factorize implements SVDSolver.
func (GolubKahan) Factorize(a mat.Matrix) (*SVDResult, error) {
	r, c := a.Dims()
	if r == 0 || c == 0 {
		return nil, ErrEmpty
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, ErrNoConvergence
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	return &SVDResult{
		U:      &u,
		Values: svd.Values(nil),
		V:      &v,
	}, nil
}
