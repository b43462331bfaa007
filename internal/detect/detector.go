// Package detect extracts candidate time windows from a fitted difference
// curve and its confidence band.
package detect

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"timecourse/domain/interval"
	"timecourse/domain/timeseries"
)

// Direction selects which side of the band must clear the threshold.
type Direction int

const (
	// Positive flags windows where the lower band bound is non-negative.
	Positive Direction = iota
	// Negative flags windows where the upper band bound is non-positive.
	Negative
)

func (d Direction) String() string {
	if d == Negative {
		return "negative"
	}
	return "positive"
}

// Detector scans fitted curves for maximal windows where the two-sided
// confidence band excludes a threshold.
type Detector struct {
	z float64
}

// New creates a detector for the given two-sided band level, e.g. 0.95.
func New(confidence float64) *Detector {
	norm := distuv.Normal{Mu: 0, Sigma: 1}
	return &Detector{z: norm.Quantile(0.5 + confidence/2)}
}

// Detect returns the maximal contiguous windows where the band around the
// doubled (true between-group) difference curve excludes zero in the given
// direction and clears the magnitude threshold. An empty result is a valid
// outcome, never an error. Zero-width windows are dropped.
func (d *Detector) Detect(fit *timeseries.FitCurve, threshold float64, dir Direction) []interval.Candidate {
	selected := make([]int, 0, fit.Len())
	for i := 0; i < fit.Len(); i++ {
		// Factor 2 converts the single-level contrast into the true
		// between-group difference.
		diff := 2 * fit.Fitted[i]
		margin := d.z * 2 * fit.SE[i]

		switch dir {
		case Positive:
			lower := diff - margin
			if lower >= 0 && math.Abs(lower) >= threshold {
				selected = append(selected, i)
			}
		case Negative:
			upper := diff + margin
			if upper <= 0 && math.Abs(upper) >= threshold {
				selected = append(selected, i)
			}
		}
	}

	var out []interval.Candidate
	for _, run := range consecutiveRuns(selected) {
		c := interval.NewCandidate(fit.TimeGrid[run[0]], fit.TimeGrid[run[1]])
		if c.Degenerate() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// consecutiveRuns splits sorted integer indices into maximal runs that are
// adjacent by exactly 1, returned as [first, last] pairs.
func consecutiveRuns(indices []int) [][2]int {
	var runs [][2]int
	for i := 0; i < len(indices); {
		j := i
		for j+1 < len(indices) && indices[j+1] == indices[j]+1 {
			j++
		}
		runs = append(runs, [2]int{indices[i], indices[j]})
		i = j + 1
	}
	return runs
}
