// Package spline implements the ports.CurveFitter contract with a natural
// cubic spline regression solved by penalized least squares.
package spline

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"timecourse/domain/core"
	"timecourse/domain/timeseries"
	"timecourse/ports"
)

// Fitter regresses value on time, group, and their interaction using a
// natural cubic spline basis over time. The group enters through a symmetric
// -1/+1 contrast, so the contrast-level prediction is half the true
// between-group difference.
type Fitter struct {
	maxKnots int
	penalty  float64
}

// NewFitter creates a fitter with default settings.
func NewFitter() *Fitter {
	return &Fitter{
		maxKnots: 8,
		penalty:  1e-6,
	}
}

// SetMaxKnots bounds the number of spline knots (placed at quantiles of the
// distinct observed times).
func (f *Fitter) SetMaxKnots(k int) {
	if k < 3 {
		k = 3
	}
	f.maxKnots = k
}

// SetPenalty configures the ridge penalty applied to all non-intercept
// coefficients for numerical stability.
func (f *Fitter) SetPenalty(lambda float64) {
	if lambda < 0 {
		lambda = 0
	}
	f.penalty = lambda
}

// Fit solves the penalized least-squares problem and evaluates the included
// model terms with standard errors on the unit-spaced time grid.
func (f *Fitter) Fit(ctx context.Context, ds *timeseries.Dataset, spec ports.ModelSpec) (*timeseries.FitCurve, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obs := ds.Observations()
	n := len(obs)
	if n == 0 {
		return nil, core.ErrEmptyDataset
	}

	knots := f.selectKnots(obs)
	if len(knots) < 2 {
		return nil, core.ErrInsufficientData
	}
	basis := newNaturalBasis(knots)

	// Columns: intercept | time basis | group | group x time basis.
	nb := basis.dim()
	p := 1 + nb + 1 + nb
	x := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)

	for i, o := range obs {
		g, err := ds.Contrast(o.Group)
		if err != nil {
			return nil, err
		}
		b := basis.eval(o.Time)
		x.Set(i, 0, 1)
		for j, v := range b {
			x.Set(i, 1+j, v)
			x.Set(i, 1+nb+1+j, g*v)
		}
		x.Set(i, 1+nb, g)
		y.SetVec(i, o.Value)
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)

	a := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := xtx.At(i, j)
			if i == j && i > 0 {
				v += f.penalty
			}
			a.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, core.NewModelFitError("cholesky factorization", nil)
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, core.NewModelFitError("coefficient solve", err)
	}

	var ainv mat.SymDense
	if err := chol.InverseTo(&ainv); err != nil {
		return nil, core.NewModelFitError("information inverse", err)
	}

	// Residual variance with effective degrees of freedom from the
	// smoother trace.
	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	rss := 0.0
	for i := 0; i < n; i++ {
		r := y.AtVec(i) - fitted.AtVec(i)
		rss += r * r
	}
	var smooth mat.Dense
	smooth.Mul(&ainv, &xtx)
	edf := mat.Trace(&smooth)
	den := float64(n) - edf
	if den < 1 {
		den = 1
	}
	sigma2 := rss / den
	if math.IsNaN(sigma2) || math.IsInf(sigma2, 0) {
		return nil, core.NewModelFitError("residual variance", nil)
	}

	// Var(beta) = sigma2 * Ainv XtX Ainv under the penalized solve.
	var cov mat.Dense
	cov.Mul(&smooth, &ainv)

	grid := ds.TimeGrid()
	out := &timeseries.FitCurve{
		Fitted:   make([]float64, len(grid)),
		SE:       make([]float64, len(grid)),
		TimeGrid: grid,
	}

	row := make([]float64, p)
	for gi, tt := range grid {
		for j := range row {
			row[j] = 0
		}
		b := basis.eval(tt)
		if spec.Include.Has(ports.TermTime) {
			row[0] = 1
			copy(row[1:1+nb], b)
		}
		if spec.Include.Has(ports.TermGroup) {
			row[1+nb] = 1
		}
		if spec.Include.Has(ports.TermInteraction) {
			copy(row[1+nb+1:], b)
		}

		var val float64
		for j := 0; j < p; j++ {
			val += row[j] * beta.AtVec(j)
		}

		var q float64
		for i := 0; i < p; i++ {
			if row[i] == 0 {
				continue
			}
			for j := 0; j < p; j++ {
				q += row[i] * cov.At(i, j) * row[j]
			}
		}
		v := sigma2 * q
		if v < 0 {
			v = 0
		}

		out.Fitted[gi] = val
		out.SE[gi] = math.Sqrt(v)
	}
	return out, nil
}

// selectKnots places up to maxKnots knots at quantiles of the distinct
// observed times.
func (f *Fitter) selectKnots(obs []timeseries.Observation) []float64 {
	unique := map[float64]struct{}{}
	for _, o := range obs {
		unique[o.Time] = struct{}{}
	}
	times := make([]float64, 0, len(unique))
	for tt := range unique {
		times = append(times, tt)
	}
	sort.Float64s(times)

	if len(times) <= f.maxKnots {
		return times
	}
	knots := make([]float64, 0, f.maxKnots)
	last := math.Inf(-1)
	for i := 0; i < f.maxKnots; i++ {
		idx := int(math.Round(float64(i) * float64(len(times)-1) / float64(f.maxKnots-1)))
		if times[idx] > last {
			knots = append(knots, times[idx])
			last = times[idx]
		}
	}
	return knots
}

var _ ports.CurveFitter = (*Fitter)(nil)
