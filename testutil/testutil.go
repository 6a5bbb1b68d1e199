package testutil

import (
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/isvd/collective"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillGaussian fills dst with standard normal values.
// Locks only once per call.
func (r *RNG) FillGaussian(dst []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.NormFloat64()
	}
}

// GaussianVector returns a vector of standard normal values.
func (r *RNG) GaussianVector(dim int) []float64 {
	v := make([]float64, dim)
	r.FillGaussian(v)
	return v
}

// UnitVector returns an L2-normalized random vector.
func (r *RNG) UnitVector(dim int) []float64 {
	v := r.GaussianVector(dim)
	norm := floats.Norm(v, 2)
	if norm == 0 {
		norm = 1
	}
	floats.Scale(1/norm, v)
	return v
}

// OrthonormalColumns returns a dim×k matrix with orthonormal columns.
func (r *RNG) OrthonormalColumns(dim, k int) *mat.Dense {
	cols := make([][]float64, 0, k)
	for len(cols) < k {
		v := r.GaussianVector(dim)
		for range 2 {
			for _, q := range cols {
				floats.AddScaled(v, -floats.Dot(q, v), q)
			}
		}
		norm := floats.Norm(v, 2)
		if norm < 1e-8 {
			continue
		}
		floats.Scale(1/norm, v)
		cols = append(cols, v)
	}

	m := mat.NewDense(dim, k, nil)
	for j, c := range cols {
		m.SetCol(j, c)
	}
	return m
}

// LowRankSamples returns num samples of length dim that all lie in the same
// random rank-dimensional subspace. Component i is scaled by 2^-i so the
// singular values are well separated.
func (r *RNG) LowRankSamples(num, dim, rank int) [][]float64 {
	basis := r.OrthonormalColumns(dim, rank)

	out := make([][]float64, num)
	coef := make([]float64, rank)
	for s := range num {
		r.FillGaussian(coef)
		u := make([]float64, dim)
		for j := range rank {
			floats.AddScaled(u, coef[j]*math.Ldexp(1, -j), mat.Col(nil, j, basis))
		}
		out[s] = u
	}
	return out
}

// LocalRows returns the rows of global owned by rank under
// collective.Partition.
func LocalRows(global []float64, size, rank int) []float64 {
	lo, hi := collective.Partition(len(global), size, rank)
	return append([]float64(nil), global[lo:hi]...)
}

// OrthonormalityError returns max |BᵗB - I| for a local basis.
func OrthonormalityError(b mat.Matrix) float64 {
	_, c := b.Dims()
	if c == 0 {
		return 0
	}
	var g mat.Dense
	g.Mul(b.T(), b)
	var dev float64
	for i := range c {
		for j := range c {
			v := g.At(i, j)
			if i == j {
				v--
			}
			dev = math.Max(dev, math.Abs(v))
		}
	}
	return dev
}

// RelativeError returns ‖a - b‖ / ‖b‖.
func RelativeError(a, b []float64) float64 {
	diff := make([]float64, len(a))
	floats.SubTo(diff, a, b)
	nb := floats.Norm(b, 2)
	if nb == 0 {
		return floats.Norm(diff, 2)
	}
	return floats.Norm(diff, 2) / nb
}
