package timeseries

import (
	"fmt"
	"math"
	"sort"

	"timecourse/domain/core"
)

// Dataset is a long-format two-group longitudinal dataset. It is immutable
// after construction; permuted relabelings are produced on private copies
// via Relabel so the base dataset can be shared across workers.
type Dataset struct {
	obs      []Observation
	groups   [2]string
	subjects []SubjectBlock
	index    map[core.SubjectID]int
}

// NewDataset validates and indexes a long-format observation table.
// It requires a non-empty table, exactly two group levels, and a constant
// group label within each subject.
func NewDataset(obs []Observation) (*Dataset, error) {
	if len(obs) == 0 {
		return nil, core.ErrEmptyDataset
	}

	levels := make(map[string]struct{})
	index := make(map[core.SubjectID]int)
	var subjects []SubjectBlock

	for _, o := range obs {
		levels[o.Group] = struct{}{}
		if i, ok := index[o.Subject]; ok {
			if subjects[i].Group != o.Group {
				return nil, fmt.Errorf("%w: subject %s has labels %q and %q",
					core.ErrGroupConflict, o.Subject, subjects[i].Group, o.Group)
			}
			subjects[i].Count++
			continue
		}
		index[o.Subject] = len(subjects)
		subjects = append(subjects, SubjectBlock{Subject: o.Subject, Group: o.Group, Count: 1})
	}

	if len(levels) != 2 {
		return nil, fmt.Errorf("%w: got %d", core.ErrTwoGroupsRequired, len(levels))
	}

	var names []string
	for g := range levels {
		names = append(names, g)
	}
	sort.Strings(names)

	ds := &Dataset{
		obs:      make([]Observation, len(obs)),
		groups:   [2]string{names[0], names[1]},
		subjects: subjects,
		index:    index,
	}
	copy(ds.obs, obs)
	return ds, nil
}

// Len returns the number of observations.
func (d *Dataset) Len() int {
	return len(d.obs)
}

// Observations returns the observation rows. Callers must not mutate them.
func (d *Dataset) Observations() []Observation {
	return d.obs
}

// Groups returns the two group levels in lexicographic order. The difference
// curve is defined as second-level minus first-level expected value.
func (d *Dataset) Groups() (string, string) {
	return d.groups[0], d.groups[1]
}

// Contrast returns the symmetric contrast code for a group label:
// -1 for the first level, +1 for the second.
func (d *Dataset) Contrast(group string) (float64, error) {
	switch group {
	case d.groups[0]:
		return -1, nil
	case d.groups[1]:
		return 1, nil
	}
	return 0, core.NewInvalidArgumentError("group", fmt.Sprintf("unknown level %q", group))
}

// Subjects returns one block per subject in first-appearance order.
func (d *Dataset) Subjects() []SubjectBlock {
	out := make([]SubjectBlock, len(d.subjects))
	copy(out, d.subjects)
	return out
}

// SubjectCount returns the number of distinct subjects.
func (d *Dataset) SubjectCount() int {
	return len(d.subjects)
}

// TimeBounds returns the minimum and maximum observed time.
func (d *Dataset) TimeBounds() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, o := range d.obs {
		if o.Time < lo {
			lo = o.Time
		}
		if o.Time > hi {
			hi = o.Time
		}
	}
	return lo, hi
}

// TimeGrid returns the unit-spaced grid covering [min(time), max(time)].
func (d *Dataset) TimeGrid() []float64 {
	lo, hi := d.TimeBounds()
	n := int(math.Floor(hi-lo)) + 1
	grid := make([]float64, n)
	for i := range grid {
		grid[i] = lo + float64(i)
	}
	return grid
}

// Relabel returns a private copy of the dataset with every observation's
// group label replaced through the subject-level assignment. The assignment
// is applied via each observation's own subject id, so row order never
// matters. Every subject must be assigned one of the two existing levels.
func (d *Dataset) Relabel(assignment map[core.SubjectID]string) (*Dataset, error) {
	if len(assignment) != len(d.subjects) {
		return nil, core.NewInvalidArgumentError("assignment",
			fmt.Sprintf("covers %d subjects, dataset has %d", len(assignment), len(d.subjects)))
	}

	obs := make([]Observation, len(d.obs))
	copy(obs, d.obs)
	for i := range obs {
		label, ok := assignment[obs[i].Subject]
		if !ok {
			return nil, core.NewInvalidArgumentError("assignment",
				fmt.Sprintf("missing label for subject %s", obs[i].Subject))
		}
		if label != d.groups[0] && label != d.groups[1] {
			return nil, core.NewInvalidArgumentError("assignment",
				fmt.Sprintf("unknown level %q for subject %s", label, obs[i].Subject))
		}
		obs[i].Group = label
	}

	subjects := make([]SubjectBlock, len(d.subjects))
	copy(subjects, d.subjects)
	for i := range subjects {
		subjects[i].Group = assignment[subjects[i].Subject]
	}

	index := make(map[core.SubjectID]int, len(d.index))
	for k, v := range d.index {
		index[k] = v
	}

	return &Dataset{obs: obs, groups: d.groups, subjects: subjects, index: index}, nil
}
