package isvd

import (
	"context"
	"errors"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/isvd/linalg"
)

// CheckOrthogonality returns max |(U·L)ᵗ(U·L) - I| for the current interval.
// The Gram matrix of U is reduced once; the result is identical on all
// ranks.
func (inc *Incremental) CheckOrthogonality(ctx context.Context) (float64, error) {
	cur := inc.Current()
	if cur == nil {
		return 0, ErrNoInterval
	}
	return deviation(ctx, cur.u, cur.l)
}

// ReOrthogonalize repairs the basis of the current interval. Closed
// intervals are never touched.
func (inc *Incremental) ReOrthogonalize(ctx context.Context) error {
	cur := inc.Current()
	if cur == nil {
		return ErrNoInterval
	}
	dev, err := deviation(ctx, cur.u, cur.l)
	if err != nil {
		return err
	}

	start := time.Now()
	u, l, err := inc.repair(ctx, cur.u, cur.l, inc.lastTime)
	inc.logger.LogReorthogonalize(ctx, cur.index, dev, err)
	if err != nil {
		return err
	}
	inc.metrics.RecordReorthogonalization(dev, time.Since(start))

	cur.u, cur.l, cur.gram = u, l, nil
	return nil
}

func deviation(ctx context.Context, u *linalg.Matrix, l *mat.Dense) (float64, error) {
	g, err := u.Gram(ctx)
	if err != nil {
		return 0, err
	}
	return gramDeviation(g, l), nil
}

// gramDeviation returns max |Lᵗ·G·L - I|.
func gramDeviation(g, l *mat.Dense) float64 {
	var gl, m mat.Dense
	gl.Mul(g, l)
	m.Mul(l.T(), &gl)
	return linalg.MaxAbsDeviationFromIdentity(&m)
}

// autoReorthogonalize checks the staged update and repairs it when the
// deviation exceeds the orthogonality tolerance.
//
// The Fast variant carries UᵗU forward from the projection, so the check
// needs no reduction. The Naive variant rotates U on every update and
// reduces a fresh Gram matrix.
func (inc *Incremental) autoReorthogonalize(ctx context.Context, iv *Interval, st *staged, t float64) (float64, bool, error) {
	if st.gram == nil {
		g, err := st.u.Gram(ctx)
		if err != nil {
			return 0, false, err
		}
		st.gram = g
	}
	dev := gramDeviation(st.gram, st.l)
	if dev <= inc.opts.orthTolerance {
		return dev, false, nil
	}

	start := time.Now()
	u, l, err := inc.repair(ctx, st.u, st.l, t)
	inc.logger.LogReorthogonalize(ctx, iv.index, dev, err)
	if err != nil {
		return dev, false, err
	}
	inc.metrics.RecordReorthogonalization(dev, time.Since(start))

	st.u, st.l, st.gram = u, l, nil
	return dev, true, nil
}

// repair orthonormalizes a copy of u as Q·R. The Fast variant moves R into
// the coefficients and orthonormalizes R·L; the Naive variant keeps L = I.
func (inc *Incremental) repair(ctx context.Context, u *linalg.Matrix, l *mat.Dense, t float64) (*linalg.Matrix, *mat.Dense, error) {
	q := u.Clone()
	r, err := q.Orthonormalize(ctx)
	if err != nil {
		if errors.Is(err, linalg.ErrRankDeficient) {
			return nil, nil, numericalError("reorthogonalize", t, "basis is rank deficient", err)
		}
		return nil, nil, err
	}

	if inc.opts.variant == Naive {
		return q, linalg.Identity(q.Cols()), nil
	}

	var rl mat.Dense
	rl.Mul(r, l)
	if err := linalg.OrthonormalizeDense(&rl); err != nil {
		return nil, nil, numericalError("reorthogonalize", t, "coefficients are rank deficient", err)
	}
	return q, &rl, nil
}
