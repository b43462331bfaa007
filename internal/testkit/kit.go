// Package testkit builds synthetic two-group longitudinal datasets with
// known effect structure for tests.
package testkit

import (
	"fmt"
	"math/rand"

	"timecourse/domain/core"
	"timecourse/domain/timeseries"
)

// StepSpec describes a synthetic cohort where the second group's expected
// value is shifted by Effect inside the window [WindowStart, WindowEnd].
type StepSpec struct {
	SubjectsPerGroup int
	TimePoints       int
	Effect           float64
	WindowStart      float64
	WindowEnd        float64
	Noise            float64
	Baseline         float64
}

// StepDataset generates a dataset matching spec. Group labels are "g1"
// (baseline) and "g2" (shifted). The supplied RNG fully determines the data.
func StepDataset(spec StepSpec, rng *rand.Rand) (*timeseries.Dataset, error) {
	var obs []timeseries.Observation
	for g := 0; g < 2; g++ {
		group := "g1"
		if g == 1 {
			group = "g2"
		}
		for s := 0; s < spec.SubjectsPerGroup; s++ {
			subject := core.SubjectID(fmt.Sprintf("%s-s%d", group, s))
			// Per-subject offset gives the repeated-measures correlation.
			subjectOffset := rng.NormFloat64() * spec.Noise
			for tp := 0; tp < spec.TimePoints; tp++ {
				tt := float64(tp)
				v := spec.Baseline + subjectOffset + rng.NormFloat64()*spec.Noise
				if g == 1 && tt >= spec.WindowStart && tt <= spec.WindowEnd {
					v += spec.Effect
				}
				obs = append(obs, timeseries.Observation{
					Value:   v,
					Group:   group,
					Time:    tt,
					Subject: subject,
				})
			}
		}
	}
	return timeseries.NewDataset(obs)
}

// NullDataset generates a dataset where both groups share one distribution.
func NullDataset(subjectsPerGroup, timePoints int, noise float64, rng *rand.Rand) (*timeseries.Dataset, error) {
	return StepDataset(StepSpec{
		SubjectsPerGroup: subjectsPerGroup,
		TimePoints:       timePoints,
		Effect:           0,
		WindowStart:      0,
		WindowEnd:        -1,
		Noise:            noise,
	}, rng)
}
