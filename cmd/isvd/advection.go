package main

import (
	"math"

	"github.com/hupe1980/isvd/internal/config"
)

// advection generates snapshots of a Gaussian pulse transported with
// constant velocity on a periodic 1-D grid:
//
//	u(x, t) = exp(-(d(x - c·t) / w)²)
//
// where d is the periodic distance to the pulse centre.
type advection struct {
	points   int
	length   float64
	velocity float64
	width    float64
	dt       float64
}

func newAdvection(cfg config.SourceConfig) *advection {
	return &advection{
		points:   cfg.Points,
		length:   cfg.Length,
		velocity: cfg.Velocity,
		width:    cfg.Width,
		dt:       cfg.Dt,
	}
}

// time returns the simulation time of a step.
func (a *advection) time(step int) float64 {
	return float64(step) * a.dt
}

// snapshot fills the rows [lo, hi) of the snapshot at time t.
func (a *advection) snapshot(t float64, lo, hi int) []float64 {
	h := a.length / float64(a.points)
	centre := math.Mod(a.length/2+a.velocity*t, a.length)
	if centre < 0 {
		centre += a.length
	}

	u := make([]float64, hi-lo)
	for i := range u {
		d := math.Abs(float64(lo+i)*h - centre)
		d = math.Min(d, a.length-d)
		r := d / a.width
		u[i] = math.Exp(-r * r)
	}
	return u
}
