package isvd

import (
	"context"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/isvd/linalg"
)

// Increment adds the local part u of the sample taken at time t.
//
// All ranks must call Increment with the same t. Precondition violations
// return an error before any collective operation and leave the state
// unchanged. A *NumericalError means the sample was dropped and the state
// is unchanged; the stream can continue with the next sample.
func (inc *Incremental) Increment(ctx context.Context, u []float64, t float64) (Result, error) {
	start := time.Now()
	res, err := inc.increment(ctx, u, t)
	inc.metrics.RecordIncrement(res.Outcome, time.Since(start), err)
	inc.logger.LogIncrement(ctx, t, res, err)
	return res, err
}

func (inc *Incremental) increment(ctx context.Context, u []float64, t float64) (Result, error) {
	if err := inc.checkSample(u, t); err != nil {
		return Result{}, err
	}

	cur := inc.Current()
	if cur == nil || cur.Full() {
		return inc.seed(ctx, u, t)
	}

	pr, err := inc.computeJPAndNorm(ctx, cur, u, t)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Interval:     cur.index,
		NormU:        pr.normU,
		NormJ:        pr.normJ,
		Reclassified: pr.reclassified,
	}

	if pr.redundant && inc.opts.skipRedundant {
		inc.normJ = pr.normJ
		inc.lastTime = t
		res.Outcome = OutcomeSkipped
		res.Rank = cur.Rank()
		return res, nil
	}

	st, err := inc.update(cur, pr, t)
	if err != nil {
		return Result{}, err
	}

	if inc.opts.reorth == ReorthAuto {
		dev, repaired, err := inc.autoReorthogonalize(ctx, cur, st, t)
		if err != nil {
			st.rollback(cur)
			return Result{}, err
		}
		res.Deviation = dev
		res.Reorthogonalized = repaired
	}

	st.commit(cur, t, pr.redundant)
	inc.normJ = pr.normJ
	inc.lastTime = t

	res.Rank = cur.Rank()
	if pr.redundant {
		res.Outcome = OutcomeRedundant
	} else {
		res.Outcome = OutcomeNew
	}
	return res, nil
}

func (inc *Incremental) checkSample(u []float64, t float64) error {
	if len(u) == 0 {
		return ErrEmptyVector
	}
	if len(u) != inc.dim {
		return &ErrDimensionMismatch{Expected: inc.dim, Actual: len(u)}
	}
	if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return ErrInvalidTime
	}
	if t < inc.lastTime {
		return &ErrTimeOrder{Previous: inc.lastTime, Time: t}
	}
	return nil
}

// seed closes the current interval, if any, and opens a new one whose basis
// is the normalized sample.
func (inc *Incremental) seed(ctx context.Context, u []float64, t float64) (Result, error) {
	buf := []float64{floats.Dot(u, u)}
	if err := inc.comm.AllReduceSum(ctx, buf); err != nil {
		return Result{}, err
	}
	norm := math.Sqrt(buf[0])
	if !linalg.IsFinite(norm) {
		return Result{}, numericalError("initial svd", t, "sample norm is not finite", nil)
	}
	if norm == 0 {
		return Result{}, numericalError("initial svd", t, "sample norm is zero", nil)
	}

	if cur := inc.Current(); cur != nil {
		cur.closed = true
		inc.logger.LogIntervalClosed(ctx, cur.index, cur.Rank(), cur.Samples(), cur.start)
		inc.metrics.RecordIntervalClosed(cur.Rank())
	}

	iv := inc.newInterval(t)
	col := append([]float64(nil), u...)
	floats.Scale(1/norm, col)
	_ = iv.u.AppendColumn(col) // length checked by checkSample

	iv.l = linalg.Identity(1)
	iv.gram = linalg.Identity(1)
	iv.s = []float64{norm}
	if inc.opts.temporalBasis {
		iv.w = mat.NewDense(1, 1, []float64{1})
	}
	iv.times = []float64{t}
	iv.redundant = roaring.New()

	inc.intervals = append(inc.intervals, iv)
	inc.normJ = 0
	inc.lastTime = t

	return Result{
		Outcome:  OutcomeInitial,
		Interval: iv.index,
		Rank:     1,
		NormU:    norm,
	}, nil
}

// staged holds an update that has been computed but not yet published to
// the interval.
type staged struct {
	u        *linalg.Matrix
	appended bool
	prevCols int
	l        *mat.Dense
	s        []float64
	w        *mat.Dense
	gram     *mat.Dense
}

// rollback undoes in-place changes to the interval's U.
func (st *staged) rollback(iv *Interval) {
	if st.appended {
		iv.u.Truncate(st.prevCols)
	}
}

func (st *staged) commit(iv *Interval, t float64, redundant bool) {
	iv.u = st.u
	iv.l = st.l
	iv.s = st.s
	iv.gram = st.gram
	if st.w != nil {
		iv.w = st.w
	}
	if redundant {
		iv.redundant.Add(uint32(len(iv.times)))
	}
	iv.times = append(iv.times, t)
}

// update factors the bordered matrix and computes the rotated basis. Nothing
// visible through the interval changes until commit; the Fast variant
// appends the new column to U in place, which rollback undoes.
func (inc *Incremental) update(iv *Interval, pr *projection, t float64) (*staged, error) {
	k := iv.Rank()

	// l = Lᵗ·P expresses the projection in the effective basis U·L.
	var lv mat.VecDense
	lv.MulVec(iv.l.T(), mat.NewVecDense(k, pr.p))

	rho := pr.normJ
	if pr.redundant {
		rho = 0
	}
	q := mat.NewDense(k+1, k+1, nil)
	for i := range k {
		q.Set(i, i, iv.s[i])
		q.Set(i, k, lv.AtVec(i))
	}
	q.Set(k, k, rho)

	svd, err := inc.opts.solver.Factorize(q)
	if err != nil {
		return nil, numericalError("svd", t, inc.opts.solver.Name()+" failed", err)
	}
	if !linalg.IsFinite(svd.Values...) || !linalg.AllFinite(svd.U) || !linalg.AllFinite(svd.V) {
		return nil, numericalError("svd", t, "non-finite factors", nil)
	}

	st := &staged{u: iv.u, prevCols: k}

	if pr.redundant {
		a := svd.U.Slice(0, k, 0, k)
		st.s = append([]float64(nil), svd.Values[:k]...)
		switch inc.opts.variant {
		case Fast:
			st.l = mat.NewDense(k, k, nil)
			st.l.Mul(iv.l, a)
			st.gram = iv.gram
		case Naive:
			st.u = iv.u.Clone()
			if err := st.u.MulDense(a); err != nil {
				return nil, err
			}
			st.l = linalg.Identity(k)
		}
		if iv.w != nil {
			st.w = temporalUpdate(iv.w, svd.V.Slice(0, k+1, 0, k))
		}
		return st, nil
	}

	jhat := pr.j
	floats.Scale(1/pr.normJ, jhat)
	st.s = append([]float64(nil), svd.Values...)
	switch inc.opts.variant {
	case Fast:
		if err := iv.u.AppendColumn(jhat); err != nil {
			return nil, err
		}
		st.appended = true
		st.l = mat.NewDense(k+1, k+1, nil)
		st.l.Mul(linalg.BlockDiagOne(iv.l), svd.U)
		if iv.gram != nil {
			st.gram = extendGram(iv.gram, pr.c, pr.normJ)
		}
	case Naive:
		st.u = iv.u.Clone()
		if err := st.u.AppendColumn(jhat); err != nil {
			return nil, err
		}
		if err := st.u.MulDense(svd.U); err != nil {
			return nil, err
		}
		st.l = linalg.Identity(k + 1)
	}
	if iv.w != nil {
		st.w = temporalUpdate(iv.w, svd.V)
	}
	return st, nil
}

// extendGram returns the Gram matrix of [U, j/‖j‖] given UᵗU and Uᵗj.
func extendGram(g *mat.Dense, c []float64, normJ float64) *mat.Dense {
	k := len(c)
	out := mat.NewDense(k+1, k+1, nil)
	out.Slice(0, k, 0, k).(*mat.Dense).Copy(g)
	for i, v := range c {
		out.Set(i, k, v/normJ)
		out.Set(k, i, v/normJ)
	}
	out.Set(k, k, 1)
	return out
}

// temporalUpdate returns [[W, 0], [0, 1]]·b.
func temporalUpdate(w *mat.Dense, b mat.Matrix) *mat.Dense {
	bd := linalg.BlockDiagOne(w)
	r, _ := bd.Dims()
	_, c := b.Dims()
	out := mat.NewDense(r, c, nil)
	out.Mul(bd, b)
	return out
}
