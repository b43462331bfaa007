package app

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timecourse/adapters/spline"
	"timecourse/domain/core"
	"timecourse/domain/timeseries"
	"timecourse/internal/rng"
	"timecourse/internal/testkit"
	"timecourse/ports"
)

// fitterFunc adapts a function to ports.CurveFitter for orchestrator tests.
type fitterFunc func(ctx context.Context, ds *timeseries.Dataset, spec ports.ModelSpec) (*timeseries.FitCurve, error)

func (f fitterFunc) Fit(ctx context.Context, ds *timeseries.Dataset, spec ports.ModelSpec) (*timeseries.FitCurve, error) {
	return f(ctx, ds, spec)
}

func flatCurve(gridLen int, fitted, se float64) *timeseries.FitCurve {
	c := &timeseries.FitCurve{
		Fitted:   make([]float64, gridLen),
		SE:       make([]float64, gridLen),
		TimeGrid: make([]float64, gridLen),
	}
	for i := 0; i < gridLen; i++ {
		c.Fitted[i] = fitted
		c.SE[i] = se
		c.TimeGrid[i] = float64(i)
	}
	return c
}

func smallDataset(t *testing.T) *timeseries.Dataset {
	t.Helper()
	ds, err := testkit.NullDataset(3, 5, 0.3, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	return ds
}

func TestRun_EndToEndStepEffect(t *testing.T) {
	ds, err := testkit.StepDataset(testkit.StepSpec{
		SubjectsPerGroup: 4,
		TimePoints:       10,
		Effect:           3.0,
		WindowStart:      4,
		WindowEnd:        7,
		Noise:            0.3,
		Baseline:         10,
	}, rand.New(rand.NewSource(17)))
	require.NoError(t, err)

	p := NewPipeline(spline.NewFitter(), rng.New())
	res, err := p.Run(context.Background(), ds, Params{
		Permutations: 200,
		Seed:         42,
		Workers:      4,
	})
	require.NoError(t, err)
	require.True(t, res.HasIntervals())

	// The widest-area interval must cover the true effect window.
	best := res.Intervals[0]
	for _, c := range res.Intervals {
		if c.Area > best.Area {
			best = c
		}
	}
	assert.GreaterOrEqual(t, best.Start, 2.0)
	assert.LessOrEqual(t, best.Start, 5.0)
	assert.GreaterOrEqual(t, best.End, 6.0)
	assert.LessOrEqual(t, best.End, 9.0)
	assert.Greater(t, best.Area, 0.0)
	assert.Less(t, best.PValue, 0.05)

	require.NotNil(t, res.NullAreas)
	assert.Equal(t, 200, res.NullAreas.Rows())
	require.Len(t, res.NullSummaries, len(res.Intervals))
	assert.False(t, res.RunID.String() == "")
}

func TestRun_DeterministicForFixedSeed(t *testing.T) {
	ds, err := testkit.StepDataset(testkit.StepSpec{
		SubjectsPerGroup: 4,
		TimePoints:       10,
		Effect:           3.0,
		WindowStart:      4,
		WindowEnd:        7,
		Noise:            0.3,
		Baseline:         10,
	}, rand.New(rand.NewSource(23)))
	require.NoError(t, err)

	params := Params{Permutations: 60, Seed: 7, Workers: 4}
	p := NewPipeline(spline.NewFitter(), rng.New())

	first, err := p.Run(context.Background(), ds, params)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), ds, params)
	require.NoError(t, err)

	require.Equal(t, len(first.Intervals), len(second.Intervals))
	for i := range first.Intervals {
		assert.Equal(t, first.Intervals[i].PValue, second.Intervals[i].PValue)
		assert.Equal(t, first.Intervals[i].Area, second.Intervals[i].Area)
	}
}

func TestRun_NoSignificantIntervalsIsNotAnError(t *testing.T) {
	// Band straddles zero everywhere, so neither direction selects anything.
	stub := fitterFunc(func(ctx context.Context, ds *timeseries.Dataset, spec ports.ModelSpec) (*timeseries.FitCurve, error) {
		return flatCurve(5, 0, 1), nil
	})

	p := NewPipeline(stub, rng.New())
	res, err := p.Run(context.Background(), smallDataset(t), Params{Permutations: 10, Seed: 1, Workers: 2})
	require.NoError(t, err)

	assert.False(t, res.HasIntervals())
	assert.Nil(t, res.NullAreas)
	assert.NotNil(t, res.Fit)
	assert.Empty(t, res.SignificantAt(0.05))
}

func TestRun_RealFitFailureIsFatal(t *testing.T) {
	stub := fitterFunc(func(ctx context.Context, ds *timeseries.Dataset, spec ports.ModelSpec) (*timeseries.FitCurve, error) {
		return nil, core.NewModelFitError("test", nil)
	})

	p := NewPipeline(stub, rng.New())
	_, err := p.Run(context.Background(), smallDataset(t), Params{Permutations: 10, Seed: 1})
	require.Error(t, err)
}

func TestRun_PermutationFitFailuresRecordedAsMissing(t *testing.T) {
	// The real fit succeeds with an unambiguous positive band; every
	// permutation re-fit fails, leaving all null rows missing.
	var calls int32
	stub := fitterFunc(func(ctx context.Context, ds *timeseries.Dataset, spec ports.ModelSpec) (*timeseries.FitCurve, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return flatCurve(5, 1, 0.01), nil
		}
		return nil, core.NewModelFitError("permutation", nil)
	})

	p := NewPipeline(stub, rng.New())
	res, err := p.Run(context.Background(), smallDataset(t), Params{Permutations: 8, Seed: 1, Workers: 1})
	require.NoError(t, err)
	require.True(t, res.HasIntervals())
	require.NotNil(t, res.NullAreas)
	assert.Equal(t, 8, res.NullAreas.Rows())
	assert.Empty(t, res.NullAreas.Column(0))
	assert.True(t, math.IsNaN(res.Intervals[0].PValue))
}

func TestRun_IdenticalNullCurvesGivePValueOne(t *testing.T) {
	// Every fit returns the same positive curve, so each null area equals
	// the observed area and no null value is strictly below it.
	stub := fitterFunc(func(ctx context.Context, ds *timeseries.Dataset, spec ports.ModelSpec) (*timeseries.FitCurve, error) {
		return flatCurve(5, 1, 0.01), nil
	})

	p := NewPipeline(stub, rng.New())
	res, err := p.Run(context.Background(), smallDataset(t), Params{Permutations: 20, Seed: 1, Workers: 4})
	require.NoError(t, err)
	require.True(t, res.HasIntervals())
	assert.Equal(t, 1.0, res.Intervals[0].PValue)
	assert.InDelta(t, res.Intervals[0].Area, res.NullSummaries[0].Mean, 1e-9)
}

func TestRun_ProgressObserved(t *testing.T) {
	stub := fitterFunc(func(ctx context.Context, ds *timeseries.Dataset, spec ports.ModelSpec) (*timeseries.FitCurve, error) {
		return flatCurve(5, 1, 0.01), nil
	})

	var mu sync.Mutex
	var updates [][2]int
	p := NewPipeline(stub, rng.New())
	p.SetProgress(ports.ProgressFunc(func(done, total int) {
		mu.Lock()
		updates = append(updates, [2]int{done, total})
		mu.Unlock()
	}))

	_, err := p.Run(context.Background(), smallDataset(t), Params{
		Permutations:  10,
		Seed:          1,
		Workers:       2,
		ProgressEvery: 5,
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, updates)
	assert.Equal(t, [2]int{10, 10}, updates[len(updates)-1])
}

func TestRun_CancellationStopsEvaluation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	stub := fitterFunc(func(c context.Context, ds *timeseries.Dataset, spec ports.ModelSpec) (*timeseries.FitCurve, error) {
		if atomic.AddInt32(&calls, 1) == 2 {
			cancel()
		}
		return flatCurve(5, 1, 0.01), nil
	})

	p := NewPipeline(stub, rng.New())
	_, err := p.Run(ctx, smallDataset(t), Params{Permutations: 500, Seed: 1, Workers: 1})
	require.Error(t, err)
	assert.Less(t, atomic.LoadInt32(&calls), int32(500))
}

func TestEmpiricalPValue_Branches(t *testing.T) {
	null := []float64{-2, -1, 0.5, 1, 3}

	// Positive observed: 1 - count(null < obs)/B
	assert.InDelta(t, 1-3.0/5, empiricalPValue(2, null), 1e-12)
	// Non-positive observed: count(null > obs)/B
	assert.InDelta(t, 5.0/5, empiricalPValue(-3, null), 1e-12)
	// Zero observed takes the non-positive branch.
	assert.InDelta(t, 3.0/5, empiricalPValue(0, null), 1e-12)
	// Empty null distribution is undefined.
	assert.True(t, math.IsNaN(empiricalPValue(1, nil)))
}
