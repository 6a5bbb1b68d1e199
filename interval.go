package isvd

import (
	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/isvd/linalg"
)

// ModelForm selects the representation returned by Model.
type ModelForm uint8

const (
	// ModelUL is the orthonormal spatial basis U·L.
	ModelUL ModelForm = iota

	// ModelULS is the spatial basis scaled by the singular values, U·L·S.
	ModelULS
)

// Interval is one time interval of the incremental decomposition.
//
// The samples of an interval are approximated by (U·L)·diag(S)·Wᵗ, where U is
// distributed by rows across the ranks and L, S, W are replicated.
//
// All accessors return copies. An Interval must not be queried while an
// Increment call on the owning Incremental is in progress.
type Interval struct {
	index    int
	start    float64
	capacity int
	closed   bool

	u *linalg.Matrix
	l *mat.Dense
	s []float64
	w *mat.Dense

	// gram is UᵗU, replicated; nil until computed.
	gram *mat.Dense

	times     []float64
	redundant *roaring.Bitmap
}

// Index returns the position of the interval, starting at 0.
func (iv *Interval) Index() int { return iv.index }

// StartTime returns the time of the sample that opened the interval.
func (iv *Interval) StartTime() float64 { return iv.start }

// Closed reports whether the interval is closed. Closed intervals never
// change again.
func (iv *Interval) Closed() bool { return iv.closed }

// Full reports whether the basis rank reached the interval capacity. The
// next sample closes a full interval.
func (iv *Interval) Full() bool { return iv.Rank() >= iv.capacity }

// Rank returns the number of basis vectors k.
func (iv *Interval) Rank() int { return len(iv.s) }

// Samples returns the number of samples recorded in the interval.
func (iv *Interval) Samples() int { return len(iv.times) }

// Times returns the sample times in arrival order.
func (iv *Interval) Times() []float64 {
	return append([]float64(nil), iv.times...)
}

// Basis returns the local rows of the effective left singular vectors U·L.
func (iv *Interval) Basis() *mat.Dense {
	b := iv.u.Clone()
	_ = b.MulDense(iv.l) // L is k×k by construction
	return b.Dense()
}

// RawBasis returns a copy of the stored distributed U.
func (iv *Interval) RawBasis() *linalg.Matrix {
	return iv.u.Clone()
}

// Coefficients returns the k×k rotation matrix L.
func (iv *Interval) Coefficients() *mat.Dense {
	return mat.DenseCopyOf(iv.l)
}

// SingularValues returns the singular values in descending order.
func (iv *Interval) SingularValues() []float64 {
	return append([]float64(nil), iv.s...)
}

// SingularValueMatrix returns the singular values as a diagonal matrix.
func (iv *Interval) SingularValueMatrix() *mat.DiagDense {
	return mat.NewDiagDense(len(iv.s), iv.SingularValues())
}

// TemporalBasis returns the samples×k right singular vectors, or nil when
// the temporal basis is not tracked.
func (iv *Interval) TemporalBasis() *mat.Dense {
	if iv.w == nil {
		return nil
	}
	return mat.DenseCopyOf(iv.w)
}

// RedundantSamples returns the sample indices that were folded into the
// singular values without extending the basis.
func (iv *Interval) RedundantSamples() *roaring.Bitmap {
	return iv.redundant.Clone()
}

// Model returns the spatial basis in the requested form.
func (iv *Interval) Model(form ModelForm) *mat.Dense {
	b := iv.Basis()
	if form == ModelULS {
		r, _ := b.Dims()
		for j, sv := range iv.s {
			for i := range r {
				b.Set(i, j, b.At(i, j)*sv)
			}
		}
	}
	return b
}

// Reconstruct returns the local rows of the approximation of sample i,
// (U·L)·diag(S)·W[i,:]ᵗ.
func (iv *Interval) Reconstruct(i int) ([]float64, error) {
	if iv.w == nil {
		return nil, ErrTemporalBasisDisabled
	}
	if i < 0 || i >= iv.Samples() {
		return nil, ErrSampleOutOfRange
	}

	k := iv.Rank()
	c := make([]float64, k)
	for j := range k {
		c[j] = iv.s[j] * iv.w.At(i, j)
	}
	var lc mat.VecDense
	lc.MulVec(iv.l, mat.NewVecDense(k, c))

	out := make([]float64, iv.u.Rows())
	for j := range k {
		floats.AddScaled(out, lc.AtVec(j), iv.u.Col(j))
	}
	return out, nil
}
