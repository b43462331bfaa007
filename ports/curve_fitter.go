package ports

import (
	"context"

	"timecourse/domain/timeseries"
)

// TermMask selects which model terms enter a prediction.
type TermMask uint8

const (
	// TermTime is the smooth main effect of time.
	TermTime TermMask = 1 << iota
	// TermGroup is the group main effect under symmetric contrast coding.
	TermGroup
	// TermInteraction is the smooth time-by-group interaction.
	TermInteraction
)

// DifferenceTerms isolates the between-group difference curve: the group
// main effect plus the time-by-group interaction, excluding the shared
// time trend.
const DifferenceTerms = TermGroup | TermInteraction

// Has reports whether the mask includes the given term.
func (m TermMask) Has(t TermMask) bool {
	return m&t != 0
}

// ModelSpec describes the regression to fit. Formula is informational;
// the fitter always regresses value on time, group, and their interaction.
type ModelSpec struct {
	Formula string
	Include TermMask
}

// DefaultModelSpec is the standard difference-curve specification.
func DefaultModelSpec() ModelSpec {
	return ModelSpec{
		Formula: "value ~ time * group",
		Include: DifferenceTerms,
	}
}

// CurveFitter wraps an external nonparametric regression engine. Fit
// regresses value on time, group (coded -1/+1), and their interaction, and
// returns the contrast-level prediction for the included terms, with its
// standard error, on the unit-spaced grid covering the observed time range.
// The between-group difference is twice the returned curve.
//
// A fit that fails to converge returns an error satisfying
// core.IsModelFitError.
type CurveFitter interface {
	Fit(ctx context.Context, ds *timeseries.Dataset, spec ModelSpec) (*timeseries.FitCurve, error)
}
