package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestUnitVector(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UnitVector(32)

	assert.Len(t, v, 32)
	assert.InDelta(t, 1.0, floats.Norm(v, 2), 1e-12)
}

func TestOrthonormalColumns(t *testing.T) {
	rng := NewRNG(4711)

	q := rng.OrthonormalColumns(20, 6)

	r, c := q.Dims()
	assert.Equal(t, 20, r)
	assert.Equal(t, 6, c)
	assert.Less(t, OrthonormalityError(q), 1e-12)
}

func TestLowRankSamples(t *testing.T) {
	rng := NewRNG(4711)

	samples := rng.LowRankSamples(10, 15, 3)
	require.Len(t, samples, 10)

	data := mat.NewDense(15, 10, nil)
	for j, s := range samples {
		data.SetCol(j, s)
	}
	var svd mat.SVD
	require.True(t, svd.Factorize(data, mat.SVDNone))
	values := svd.Values(nil)
	assert.Greater(t, values[2], 1e-6)
	assert.Less(t, values[3], 1e-10*values[0])
}

func TestLocalRows(t *testing.T) {
	global := []float64{1, 2, 3, 4, 5}

	assert.Equal(t, []float64{1, 2}, LocalRows(global, 3, 0))
	assert.Equal(t, []float64{3, 4}, LocalRows(global, 3, 1))
	assert.Equal(t, []float64{5}, LocalRows(global, 3, 2))
}

func TestRelativeError(t *testing.T) {
	assert.InDelta(t, 0.5, RelativeError([]float64{2, 1}, []float64{2, 0}), 1e-12)
	assert.Equal(t, 0.0, RelativeError([]float64{0}, []float64{0}))
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.GaussianVector(10)

	rng.Reset()
	v2 := rng.GaussianVector(10)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(4711), rng.Seed())
}
