package timeseries

import (
	"timecourse/domain/core"
)

// Observation is a single measured value for one subject at one time point.
// All observations sharing a SubjectID belong to the same experimental unit
// and carry the same group label.
type Observation struct {
	Value   float64        `json:"value"`
	Group   string         `json:"group"`
	Time    float64        `json:"time"`
	Subject core.SubjectID `json:"subject"`
}

// SubjectBlock summarizes one subject: its true group label and how many
// observations it contributes. Subjects are the unit of permutation.
type SubjectBlock struct {
	Subject core.SubjectID `json:"subject"`
	Group   string         `json:"group"`
	Count   int            `json:"count"`
}

// FitCurve is the output of a curve fit on the unit-spaced time grid.
// Fitted and SE are the contrast-level (single group coefficient) values;
// the between-group difference curve and its band are obtained by doubling.
type FitCurve struct {
	Fitted   []float64 `json:"fitted"`
	SE       []float64 `json:"se"`
	TimeGrid []float64 `json:"time_grid"`
}

// Len returns the number of grid points.
func (f *FitCurve) Len() int {
	return len(f.TimeGrid)
}
