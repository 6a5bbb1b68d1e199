package linalg

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/hupe1980/isvd/collective"
)

// Vector is the rank-local part of a distributed vector.
type Vector struct {
	comm collective.Communicator
	data []float64
}

// NewVector wraps local. The slice is not copied.
func NewVector(comm collective.Communicator, local []float64) *Vector {
	return &Vector{comm: comm, data: local}
}

// Local returns the rank-local entries.
func (v *Vector) Local() []float64 { return v.data }

// Len returns the number of local entries.
func (v *Vector) Len() int { return len(v.data) }

// Dot returns the global dot product with other.
func (v *Vector) Dot(ctx context.Context, other *Vector) (float64, error) {
	if len(v.data) != len(other.data) {
		return 0, ErrShape
	}
	buf := []float64{floats.Dot(v.data, other.data)}
	if err := v.comm.AllReduceSum(ctx, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// Norm returns the global Euclidean norm.
func (v *Vector) Norm(ctx context.Context) (float64, error) {
	buf := []float64{floats.Dot(v.data, v.data)}
	if err := v.comm.AllReduceSum(ctx, buf); err != nil {
		return 0, err
	}
	return math.Sqrt(buf[0]), nil
}

// Scale multiplies every local entry by alpha.
func (v *Vector) Scale(alpha float64) {
	floats.Scale(alpha, v.data)
}

// AddScaled adds alpha*x to the local entries.
func (v *Vector) AddScaled(alpha float64, x []float64) error {
	if len(x) != len(v.data) {
		return ErrShape
	}
	floats.AddScaled(v.data, alpha, x)
	return nil
}
