package app

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"timecourse/domain/core"
	"timecourse/domain/interval"
	"timecourse/domain/timeseries"
	"timecourse/internal"
	"timecourse/internal/integrate"
	"timecourse/internal/permute"
	"timecourse/ports"
)

// nullEvaluator re-fits the curve under each permuted labeling and
// integrates the doubled null curve over every candidate window. Each
// permutation works on a private relabeled copy, so workers share no
// mutable state; rows are written by permutation index, which keeps the
// result independent of scheduling order.
type nullEvaluator struct {
	fitter   ports.CurveFitter
	workers  int
	model    ports.ModelSpec
	progress ports.Progress
	every    int
	logger   *internal.Logger
}

// evaluate builds the null-distribution matrix. A permutation whose re-fit
// fails to converge keeps its NaN row and is logged; p-values are computed
// over the remaining rows. Cancellation is honored between permutations.
func (e *nullEvaluator) evaluate(ctx context.Context, base *timeseries.Dataset, labelings []permute.Labeling, windows [][2]int) (*interval.NullMatrix, error) {
	matrix := interval.NewNullMatrix(len(labelings), len(windows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	var done int64

	for b := range labelings {
		b := b
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			relabeled, err := base.Relabel(labelings[b])
			if err != nil {
				return err
			}

			fit, err := e.fitter.Fit(gctx, relabeled, e.model)
			if err != nil {
				if core.IsModelFitError(err) {
					// Expected to be rare; the row stays NaN.
					e.logger.Warn("permutation %d: fit failed, recording missing row: %v", b, err)
					return nil
				}
				return err
			}

			doubled := doubledCurve(fit)
			for j, w := range windows {
				area, err := integrate.Window(fit.TimeGrid, doubled, w[0], w[1])
				if err != nil {
					return err
				}
				matrix.Areas[b][j] = area
			}

			n := atomic.AddInt64(&done, 1)
			if e.progress != nil && e.every > 0 && n%int64(e.every) == 0 {
				e.progress.PermutationsCompleted(int(n), len(labelings))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if e.progress != nil {
		e.progress.PermutationsCompleted(len(labelings), len(labelings))
	}
	return matrix, nil
}
