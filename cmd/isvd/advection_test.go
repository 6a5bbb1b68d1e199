package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/isvd/collective"
	"github.com/hupe1980/isvd/internal/config"
)

func testSource() config.SourceConfig {
	return config.SourceConfig{Points: 64, Steps: 10, Dt: 0.01, Length: 1, Velocity: 1, Width: 0.05}
}

func TestAdvection_PeakAtCentre(t *testing.T) {
	a := newAdvection(testSource())
	u := a.snapshot(0, 0, 64)
	require.Len(t, u, 64)

	assert.Equal(t, 1.0, u[32])
	for i, v := range u {
		assert.LessOrEqual(t, v, 1.0, "row %d", i)
		assert.Greater(t, v, 0.0, "row %d", i)
	}
	assert.InDelta(t, u[31], u[33], 1e-15)
}

func TestAdvection_PartitionsConcatenate(t *testing.T) {
	a := newAdvection(testSource())
	full := a.snapshot(0.37, 0, 64)

	var joined []float64
	for rank := range 5 {
		lo, hi := collective.Partition(64, 5, rank)
		joined = append(joined, a.snapshot(0.37, lo, hi)...)
	}
	assert.Equal(t, full, joined)
}

func TestAdvection_Periodic(t *testing.T) {
	a := newAdvection(testSource())
	u0 := a.snapshot(0.2, 0, 64)
	u1 := a.snapshot(1.2, 0, 64)
	assert.InDeltaSlice(t, u0, u1, 1e-12)

	// The pulse moves one grid cell in h/c.
	shifted := a.snapshot(1.0/64, 0, 64)
	base := a.snapshot(0, 0, 64)
	for i := range base {
		assert.InDelta(t, base[i], shifted[(i+1)%64], 1e-12)
	}
}

func TestAdvection_Time(t *testing.T) {
	a := newAdvection(testSource())
	assert.Equal(t, 0.0, a.time(0))
	assert.InDelta(t, 0.05, a.time(5), 1e-15)
}
