package linalg

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/isvd/collective"
)

// Matrix is the rank-local row block of a distributed tall matrix.
//
// Columns are stored contiguously (column-major) in a single arena that grows
// by appending, so adding a basis vector never copies existing columns unless
// the arena has to be reallocated.
//
// Matrix implements mat.Matrix over its local rows.
type Matrix struct {
	comm collective.Communicator
	rows int
	cols int
	data []float64
}

var _ mat.Matrix = (*Matrix)(nil)

// NewMatrix returns an empty matrix with rows local rows and room for
// capacity columns.
func NewMatrix(comm collective.Communicator, rows, capacity int) *Matrix {
	if capacity < 1 {
		capacity = 1
	}
	return &Matrix{
		comm: comm,
		rows: rows,
		data: make([]float64, 0, rows*capacity),
	}
}

// Comm returns the communicator the matrix reduces over.
func (m *Matrix) Comm() collective.Communicator { return m.comm }

// Rows returns the number of local rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// Dims implements mat.Matrix.
func (m *Matrix) Dims() (r, c int) { return m.rows, m.cols }

// At implements mat.Matrix.
func (m *Matrix) At(i, j int) float64 {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	return m.data[j*m.rows+i]
}

// T implements mat.Matrix.
func (m *Matrix) T() mat.Matrix { return mat.Transpose{Matrix: m} }

// Col returns column j. The slice aliases the matrix storage.
func (m *Matrix) Col(j int) []float64 {
	lo := j * m.rows
	return m.data[lo : lo+m.rows : lo+m.rows]
}

// AppendColumn appends a copy of v as the last column.
func (m *Matrix) AppendColumn(v []float64) error {
	if len(v) != m.rows {
		return ErrShape
	}
	m.data = append(m.data, v...)
	m.cols++
	return nil
}

// Truncate drops every column from index cols on. It is a no-op when the
// matrix has at most cols columns.
func (m *Matrix) Truncate(cols int) {
	if cols < 0 || cols >= m.cols {
		return
	}
	m.cols = cols
	m.data = m.data[:m.rows*cols]
}

// TransMulVec returns Mᵗx. The extra local scalars are appended to the
// reduction buffer and come back summed after the k products, so callers can
// fold additional global sums into the same reduction.
func (m *Matrix) TransMulVec(ctx context.Context, x []float64, extra ...float64) ([]float64, error) {
	return m.transMulPrefix(ctx, m.cols, x, extra...)
}

func (m *Matrix) transMulPrefix(ctx context.Context, ncols int, x []float64, extra ...float64) ([]float64, error) {
	if len(x) != m.rows {
		return nil, ErrShape
	}
	buf := make([]float64, ncols+len(extra))
	for j := range ncols {
		buf[j] = floats.Dot(m.Col(j), x)
	}
	copy(buf[ncols:], extra)
	if err := m.comm.AllReduceSum(ctx, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// MulVecSub computes dst -= M·c on the local rows.
func (m *Matrix) MulVecSub(dst, c []float64) error {
	if len(dst) != m.rows || len(c) != m.cols {
		return ErrShape
	}
	for j, cj := range c {
		if cj != 0 {
			floats.AddScaled(dst, -cj, m.Col(j))
		}
	}
	return nil
}

// MulDense replaces M by M·r. r must have Cols() rows; the result has as many
// columns as r.
func (m *Matrix) MulDense(r mat.Matrix) error {
	rr, rc := r.Dims()
	if rr != m.cols {
		return ErrShape
	}
	if m.rows == 0 || m.cols == 0 || rc == 0 {
		m.cols = rc
		m.data = make([]float64, m.rows*rc)
		return nil
	}

	// The column-major arena is the row-major storage of Mᵗ, so
	// (M·r)ᵗ = rᵗ·Mᵗ lands directly in column-major order.
	mt := mat.NewDense(m.cols, m.rows, m.data[:m.rows*m.cols])
	out := mat.NewDense(rc, m.rows, nil)
	out.Mul(r.T(), mt)

	m.cols = rc
	m.data = out.RawMatrix().Data
	return nil
}

// Gram returns MᵗM. The k(k+1)/2 upper-triangle products travel in a single
// reduction.
func (m *Matrix) Gram(ctx context.Context) (*mat.Dense, error) {
	k := m.cols
	if k == 0 {
		return nil, ErrEmpty
	}
	buf := make([]float64, k*(k+1)/2)
	idx := 0
	for i := range k {
		ci := m.Col(i)
		for j := i; j < k; j++ {
			buf[idx] = floats.Dot(ci, m.Col(j))
			idx++
		}
	}
	if err := m.comm.AllReduceSum(ctx, buf); err != nil {
		return nil, err
	}

	g := mat.NewDense(k, k, nil)
	idx = 0
	for i := range k {
		for j := i; j < k; j++ {
			g.Set(i, j, buf[idx])
			g.Set(j, i, buf[idx])
			idx++
		}
	}
	return g, nil
}

// Orthonormalize replaces the columns of M by an orthonormal basis of their
// span using classical Gram-Schmidt with one reorthogonalization pass per
// column. It returns the upper triangular R with M_old = M_new·R.
//
// On error the matrix is left partially orthonormalized; callers that need
// the old contents should work on a Clone.
func (m *Matrix) Orthonormalize(ctx context.Context) (*mat.Dense, error) {
	k := m.cols
	if k == 0 {
		return nil, ErrEmpty
	}
	r := mat.NewDense(k, k, nil)

	for j := range k {
		col := m.Col(j)

		// First pass carries the squared norm of the original column so the
		// collapse test has a reference without an extra reduction.
		c, err := m.transMulPrefix(ctx, j, col, floats.Dot(col, col))
		if err != nil {
			return nil, err
		}
		ref := math.Sqrt(c[j])
		coef := c[:j]
		m.subPrefix(col, coef)

		if j > 0 {
			c2, err := m.transMulPrefix(ctx, j, col)
			if err != nil {
				return nil, err
			}
			m.subPrefix(col, c2)
			floats.Add(coef, c2)
		}

		buf := []float64{floats.Dot(col, col)}
		if err := m.comm.AllReduceSum(ctx, buf); err != nil {
			return nil, err
		}
		norm := math.Sqrt(buf[0])
		if !IsFinite(norm) || norm == 0 || norm <= rankDeficiencyTol*ref {
			return nil, ErrRankDeficient
		}
		floats.Scale(1/norm, col)

		for i, v := range coef {
			r.Set(i, j, v)
		}
		r.Set(j, j, norm)
	}
	return r, nil
}

const rankDeficiencyTol = 1e-12

func (m *Matrix) subPrefix(dst, c []float64) {
	for i, ci := range c {
		if ci != 0 {
			floats.AddScaled(dst, -ci, m.Col(i))
		}
	}
}

// Clone returns a deep copy sharing the communicator.
func (m *Matrix) Clone() *Matrix {
	data := make([]float64, len(m.data), cap(m.data))
	copy(data, m.data)
	return &Matrix{comm: m.comm, rows: m.rows, cols: m.cols, data: data}
}

// Dense returns a row-major copy of the local block. An empty matrix yields
// the zero mat.Dense.
func (m *Matrix) Dense() *mat.Dense {
	if m.rows == 0 || m.cols == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(m.rows, m.cols, nil)
	for j := range m.cols {
		d.SetCol(j, m.Col(j))
	}
	return d
}
