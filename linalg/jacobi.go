package linalg

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Jacobi is a one-sided Jacobi SVD solver for small matrices.
//
// Column pairs of a working copy are rotated until all pairs are orthogonal
// within Tol; the column norms are then the singular values.
type Jacobi struct {
	// Tol is the relative orthogonality threshold for a column pair.
	// Zero means 1e-15.
	Tol float64

	// MaxSweeps bounds the number of full sweeps over all pairs.
	// Zero means 60.
	MaxSweeps int
}

var _ SVDSolver = Jacobi{}

// Name implements SVDSolver.
func (Jacobi) Name() string { return "jacobi" }

// Factorize implements SVDSolver.
func (j Jacobi) Factorize(a mat.Matrix) (*SVDResult, error) {
	r, c := a.Dims()
	if r == 0 || c == 0 {
		return nil, ErrEmpty
	}
	if r < c {
		res, err := j.factorizeTall(a.T())
		if err != nil {
			return nil, err
		}
		res.U, res.V = res.V, res.U
		return res, nil
	}
	return j.factorizeTall(a)
}

func (j Jacobi) factorizeTall(a mat.Matrix) (*SVDResult, error) {
	tol := j.Tol
	if tol <= 0 {
		tol = 1e-15
	}
	maxSweeps := j.MaxSweeps
	if maxSweeps <= 0 {
		maxSweeps = 60
	}

	m, n := a.Dims()
	u := make([][]float64, n)
	v := make([][]float64, n)
	for k := range n {
		u[k] = mat.Col(nil, k, a)
		v[k] = make([]float64, n)
		v[k][k] = 1
	}

	converged := false
	for range maxSweeps {
		if !jacobiSweep(u, v, tol) {
			converged = true
			break
		}
	}
	if !converged {
		return nil, ErrNoConvergence
	}

	sigma := make([]float64, n)
	for k := range n {
		sigma[k] = floats.Norm(u[k], 2)
	}

	order := make([]int, n)
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(x, y int) bool { return sigma[order[x]] > sigma[order[y]] })

	values := make([]float64, n)
	uOut := mat.NewDense(m, m, nil)
	vOut := mat.NewDense(n, n, nil)
	cutoff := sigma[order[0]] * float64(m) * 1e-15

	uCols := make([][]float64, 0, m)
	for k, src := range order {
		values[k] = sigma[src]
		vOut.SetCol(k, v[src])
		if sigma[src] <= cutoff || sigma[src] == 0 {
			continue
		}
		col := append([]float64(nil), u[src]...)
		floats.Scale(1/sigma[src], col)
		uCols = append(uCols, col)
	}
	uCols = completeBasis(uCols, m)
	for k, col := range uCols {
		uOut.SetCol(k, col)
	}

	return &SVDResult{U: uOut, Values: values, V: vOut}, nil
}

// jacobiSweep rotates every column pair once and reports whether any pair
// still needed a rotation.
func jacobiSweep(u, v [][]float64, tol float64) bool {
	changed := false
	n := len(u)
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			alpha := floats.Dot(u[i], u[i])
			beta := floats.Dot(u[j], u[j])
			gamma := floats.Dot(u[i], u[j])

			// A numerically vanished column is replaced when the basis is
			// completed, so it needs no further rotation.
			if alpha <= negligible*beta || beta <= negligible*alpha {
				continue
			}
			if math.Abs(gamma) <= tol*math.Sqrt(alpha*beta) {
				continue
			}

			changed = true
			zeta := (beta - alpha) / (2 * gamma)
			var t float64
			if zeta > 0 {
				t = 1 / (zeta + math.Sqrt(1+zeta*zeta))
			} else {
				t = -1 / (-zeta + math.Sqrt(1+zeta*zeta))
			}
			c := 1 / math.Sqrt(1+t*t)
			s := c * t

			rotate(u[i], u[j], c, s)
			rotate(v[i], v[j], c, s)
		}
	}
	return changed
}

// negligible is the squared norm ratio below which a column counts as zero.
const negligible = 1e-28

func rotate(x, y []float64, c, s float64) {
	for k := range x {
		t1, t2 := x[k], y[k]
		x[k] = c*t1 - s*t2
		y[k] = s*t1 + c*t2
	}
}

// completeBasis extends the orthonormal vectors in cols to a basis of R^m by
// orthogonalizing unit vectors against them.
func completeBasis(cols [][]float64, m int) [][]float64 {
	for e := 0; e < m && len(cols) < m; e++ {
		cand := make([]float64, m)
		cand[e] = 1
		for range 2 {
			for _, q := range cols {
				floats.AddScaled(cand, -floats.Dot(q, cand), q)
			}
		}
		norm := floats.Norm(cand, 2)
		if norm < 1e-8 {
			continue
		}
		floats.Scale(1/norm, cand)
		cols = append(cols, cand)
	}
	return cols
}
