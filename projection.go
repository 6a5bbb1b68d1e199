package isvd

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/hupe1980/isvd/linalg"
)

// maxRefinements bounds the Gram-Schmidt passes applied to a residual.
const maxRefinements = 2

// projection is the decomposition u = U·p + j of a sample against the
// stored basis of an interval.
type projection struct {
	p            []float64
	j            []float64
	c            []float64 // Uᵗj for the final residual
	normU        float64
	normJ        float64
	redundant    bool
	reclassified bool
}

// computeJPAndNorm projects u onto the basis and classifies the sample.
//
// The coefficients and ‖u‖² travel in one reduction; the residual norm
// travels together with the coefficients of the next refinement pass, so
// every reduction result is replicated and all ranks classify alike.
func (inc *Incremental) computeJPAndNorm(ctx context.Context, iv *Interval, u []float64, t float64) (*projection, error) {
	k := iv.Rank()

	buf, err := iv.u.TransMulVec(ctx, u, floats.Dot(u, u))
	if err != nil {
		return nil, err
	}
	p := buf[:k:k]
	normU := math.Sqrt(buf[k])
	if !linalg.IsFinite(p...) || !linalg.IsFinite(normU) {
		return nil, numericalError("projection", t, "non-finite projection", nil)
	}
	if normU == 0 {
		return nil, numericalError("projection", t, "sample norm is zero", nil)
	}

	j := append([]float64(nil), u...)
	_ = iv.u.MulVecSub(j, p)

	c, normJ, err := inc.residual(ctx, iv, j, t)
	if err != nil {
		return nil, err
	}

	threshold := inc.opts.tolerance * normU
	pr := &projection{p: p, j: j, c: c, normU: normU, normJ: normJ}
	if normJ <= threshold {
		pr.redundant = true
		return pr, nil
	}

	for range maxRefinements {
		_ = iv.u.MulVecSub(j, c)
		floats.Add(p, c)

		prev := normJ
		c, normJ, err = inc.residual(ctx, iv, j, t)
		if err != nil {
			return nil, err
		}
		if normJ >= prev/math.Sqrt2 {
			break
		}
	}
	if !linalg.IsFinite(p...) {
		return nil, numericalError("projection", t, "non-finite refined projection", nil)
	}

	pr.c = c
	pr.normJ = normJ
	if normJ <= threshold {
		pr.redundant = true
		pr.reclassified = true
	}
	return pr, nil
}

// residual returns Uᵗj and ‖j‖ from a single reduction.
func (inc *Incremental) residual(ctx context.Context, iv *Interval, j []float64, t float64) ([]float64, float64, error) {
	k := iv.Rank()
	buf, err := iv.u.TransMulVec(ctx, j, floats.Dot(j, j))
	if err != nil {
		return nil, 0, err
	}
	normJ := math.Sqrt(buf[k])
	if !linalg.IsFinite(normJ) {
		return nil, 0, numericalError("projection", t, "non-finite residual norm", nil)
	}
	return buf[:k:k], normJ, nil
}
