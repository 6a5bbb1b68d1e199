package linalg

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Identity returns the n×n identity.
func Identity(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := range n {
		d.Set(i, i, 1)
	}
	return d
}

// BlockDiagOne returns [[m, 0], [0, 1]].
func BlockDiagOne(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	d := mat.NewDense(r+1, c+1, nil)
	for i := range r {
		for j := range c {
			d.Set(i, j, m.At(i, j))
		}
	}
	d.Set(r, c, 1)
	return d
}

// OrthonormalizeDense orthonormalizes the columns of m in place with
// modified Gram-Schmidt, applied twice per column.
func OrthonormalizeDense(m *mat.Dense) error {
	r, c := m.Dims()
	if c > r {
		return ErrShape
	}
	cols := make([][]float64, c)
	for j := range c {
		cols[j] = mat.Col(nil, j, m)
	}

	for j := range c {
		ref := floats.Norm(cols[j], 2)
		for range 2 {
			for i := range j {
				floats.AddScaled(cols[j], -floats.Dot(cols[i], cols[j]), cols[i])
			}
		}
		norm := floats.Norm(cols[j], 2)
		if !IsFinite(norm) || norm == 0 || norm <= rankDeficiencyTol*ref {
			return ErrRankDeficient
		}
		floats.Scale(1/norm, cols[j])
	}

	for j := range c {
		m.SetCol(j, cols[j])
	}
	return nil
}

// MaxAbsDeviationFromIdentity returns max |m - I| over all entries of a
// square matrix.
func MaxAbsDeviationFromIdentity(m mat.Matrix) float64 {
	r, c := m.Dims()
	var dev float64
	for i := range r {
		for j := range c {
			v := m.At(i, j)
			if i == j {
				v--
			}
			if a := math.Abs(v); a > dev || math.IsNaN(a) {
				dev = a
			}
		}
	}
	return dev
}

// IsFinite reports whether none of xs is NaN or ±Inf.
func IsFinite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// AllFinite reports whether every entry of m is finite.
func AllFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := range r {
		for j := range c {
			if !IsFinite(m.At(i, j)) {
				return false
			}
		}
	}
	return true
}
