// Package app wires the differential-interval detection pipeline: curve
// fitting, interval extraction, permutation-based null distributions, and
// empirical p-values.
package app

import (
	"context"
	"math"
	"runtime"
	"sort"

	"github.com/montanaflynn/stats"

	"timecourse/domain/core"
	"timecourse/domain/interval"
	"timecourse/domain/timeseries"
	"timecourse/internal"
	"timecourse/internal/config"
	"timecourse/internal/detect"
	apperrors "timecourse/internal/errors"
	"timecourse/internal/integrate"
	"timecourse/internal/permute"
	"timecourse/ports"
)

// Params controls one analysis run.
type Params struct {
	// Permutations is the number of null-model label permutations (B).
	Permutations int
	// Seed fully determines the permutation draws; fixing it reproduces
	// identical p-values regardless of worker scheduling.
	Seed int64
	// Workers bounds the permutation worker pool.
	Workers int
	// Threshold is the minimum band magnitude C for interval detection.
	Threshold float64
	// Confidence is the two-sided band level.
	Confidence float64
	// ProgressEvery reports progress every N permutations; 0 disables.
	ProgressEvery int
	// Model is the regression specification; zero value means the default
	// difference-curve model.
	Model ports.ModelSpec
}

// ParamsFromConfig builds run parameters from the environment configuration.
func ParamsFromConfig(cfg config.AnalysisConfig) Params {
	return Params{
		Permutations:  cfg.Permutations,
		Seed:          cfg.Seed,
		Workers:       cfg.Workers,
		Threshold:     cfg.Threshold,
		Confidence:    cfg.Confidence,
		ProgressEvery: cfg.ProgressEvery,
	}
}

func (p *Params) normalize() {
	if p.Permutations < 1 {
		p.Permutations = 999
	}
	if p.Workers < 1 {
		p.Workers = runtime.NumCPU()
	}
	if p.Confidence <= 0 || p.Confidence >= 1 {
		p.Confidence = 0.95
	}
	if p.Model.Include == 0 {
		p.Model = ports.DefaultModelSpec()
	}
}

// Pipeline sequences the full analysis: fit the real difference curve,
// extract candidate intervals from its confidence band, integrate observed
// areas, and validate each interval against a subject-block permutation
// null distribution.
type Pipeline struct {
	fitter   ports.CurveFitter
	rng      ports.RNG
	progress ports.Progress
	logger   *internal.Logger
}

// NewPipeline creates a pipeline around a curve-fitting engine and a
// deterministic random source.
func NewPipeline(fitter ports.CurveFitter, rng ports.RNG) *Pipeline {
	return &Pipeline{
		fitter: fitter,
		rng:    rng,
		logger: internal.DefaultLogger,
	}
}

// SetProgress installs an observer notified while the null distribution is
// built. Purely observational.
func (p *Pipeline) SetProgress(progress ports.Progress) {
	p.progress = progress
}

// SetLogger replaces the default logger.
func (p *Pipeline) SetLogger(logger *internal.Logger) {
	p.logger = logger
}

// Run executes the pipeline. A run with no surviving candidate intervals
// returns a result with an empty interval table and no null matrix; that is
// a valid terminal outcome, not an error. A real-data fit failure is fatal.
func (p *Pipeline) Run(ctx context.Context, ds *timeseries.Dataset, params Params) (*interval.Result, error) {
	params.normalize()
	runID := core.NewRunID()

	fit, err := p.fitter.Fit(ctx, ds, params.Model)
	if err != nil {
		if core.IsModelFitError(err) {
			return nil, apperrors.ModelFitFailure("real-data fit", err)
		}
		return nil, apperrors.Wrap(err, "fitting real-data curve")
	}

	detector := detect.New(params.Confidence)
	cands := detector.Detect(fit, params.Threshold, detect.Positive)
	cands = append(cands, detector.Detect(fit, params.Threshold, detect.Negative)...)

	// Degenerate windows are filtered again at the aggregate level.
	merged := cands[:0]
	for _, c := range cands {
		if !c.Degenerate() {
			merged = append(merged, c)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Start < merged[j].Start })

	if len(merged) == 0 {
		p.logger.Info("run %s: no candidate intervals detected", runID)
		return &interval.Result{
			RunID:   runID,
			Fit:     fit,
			Dataset: ds,
		}, nil
	}

	windows := make([][2]int, len(merged))
	doubled := doubledCurve(fit)
	for i, c := range merged {
		from, err := gridIndex(fit.TimeGrid, c.Start)
		if err != nil {
			return nil, err
		}
		to, err := gridIndex(fit.TimeGrid, c.End)
		if err != nil {
			return nil, err
		}
		windows[i] = [2]int{from, to}

		area, err := integrate.Window(fit.TimeGrid, doubled, from, to)
		if err != nil {
			return nil, err
		}
		merged[i].Area = area
	}

	p.logger.Info("run %s: %d candidate intervals, evaluating %d permutations",
		runID, len(merged), params.Permutations)

	stream, err := p.rng.SeededStream(ctx, "label-permutation", params.Seed)
	if err != nil {
		return nil, apperrors.Wrap(err, "creating permutation stream")
	}
	labelings := permute.Generate(ds, params.Permutations, stream)

	ev := &nullEvaluator{
		fitter:   p.fitter,
		workers:  params.Workers,
		model:    params.Model,
		progress: p.progress,
		every:    params.ProgressEvery,
		logger:   p.logger,
	}
	matrix, err := ev.evaluate(ctx, ds, labelings, windows)
	if err != nil {
		return nil, err
	}

	summaries := make([]interval.NullSummary, len(merged))
	for j := range merged {
		null := matrix.Column(j)
		merged[j].PValue = empiricalPValue(merged[j].Area, null)
		summaries[j] = summarizeNull(null)
		if len(null) < matrix.Rows() {
			p.logger.Warn("run %s: interval %d has %d of %d permutation fits missing",
				runID, j, matrix.Rows()-len(null), matrix.Rows())
		}
	}

	return &interval.Result{
		RunID:         runID,
		Intervals:     merged,
		Fit:           fit,
		NullAreas:     matrix,
		NullSummaries: summaries,
		Permutations:  params.Permutations,
		Dataset:       ds,
	}, nil
}

// empiricalPValue computes the one-sided empirical p-value over the non-NaN
// null areas. An observed area of exactly zero takes the non-positive
// branch. All permutation fits failing leaves the p-value NaN.
func empiricalPValue(observed float64, null []float64) float64 {
	if len(null) == 0 {
		return math.NaN()
	}
	b := float64(len(null))
	if observed > 0 {
		less := 0
		for _, v := range null {
			if v < observed {
				less++
			}
		}
		return 1 - float64(less)/b
	}
	greater := 0
	for _, v := range null {
		if v > observed {
			greater++
		}
	}
	return float64(greater) / b
}

func summarizeNull(null []float64) interval.NullSummary {
	if len(null) == 0 {
		return interval.NullSummary{}
	}
	mean, _ := stats.Mean(null)
	sd, _ := stats.StandardDeviation(null)
	lo, _ := stats.Min(null)
	hi, _ := stats.Max(null)
	p95, _ := stats.Percentile(null, 95)
	p99, _ := stats.Percentile(null, 99)
	return interval.NullSummary{
		Mean:         mean,
		StdDev:       sd,
		Min:          lo,
		Max:          hi,
		Percentile95: p95,
		Percentile99: p99,
	}
}

func doubledCurve(fit *timeseries.FitCurve) []float64 {
	out := make([]float64, fit.Len())
	for i, v := range fit.Fitted {
		out[i] = 2 * v
	}
	return out
}

func gridIndex(grid []float64, t float64) (int, error) {
	for i, g := range grid {
		if math.Abs(g-t) < 1e-9 {
			return i, nil
		}
	}
	return 0, apperrors.InvalidInput("interval bound does not lie on the time grid")
}
