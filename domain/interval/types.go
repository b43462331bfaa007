package interval

import (
	"encoding/json"
	"math"

	"timecourse/domain/core"
	"timecourse/domain/timeseries"
)

// Candidate is a maximal contiguous time window where the confidence band
// of the difference curve excludes a threshold in one direction. Area and
// PValue are NaN until the orchestrator computes them.
type Candidate struct {
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Area   float64 `json:"area"`
	PValue float64 `json:"p_value"`
}

// NewCandidate creates a candidate with uncomputed statistics.
func NewCandidate(start, end float64) Candidate {
	return Candidate{Start: start, End: end, Area: math.NaN(), PValue: math.NaN()}
}

// Degenerate reports whether the window has zero width.
func (c Candidate) Degenerate() bool {
	return c.Start == c.End
}

// NullMatrix holds null-distribution areas: one row per permutation, one
// column per candidate interval. Cells left NaN mark permutations whose
// re-fit failed. Never mutated after the evaluator fills it.
type NullMatrix struct {
	Areas [][]float64 `json:"-"`
}

// MarshalJSON encodes NaN cells (failed permutation fits) as null.
func (m *NullMatrix) MarshalJSON() ([]byte, error) {
	rows := make([][]*float64, len(m.Areas))
	for i, row := range m.Areas {
		rows[i] = make([]*float64, len(row))
		for j := range row {
			if !math.IsNaN(row[j]) {
				v := row[j]
				rows[i][j] = &v
			}
		}
	}
	return json.Marshal(struct {
		Areas [][]*float64 `json:"areas"`
	}{rows})
}

// UnmarshalJSON decodes null cells back to NaN.
func (m *NullMatrix) UnmarshalJSON(data []byte) error {
	var raw struct {
		Areas [][]*float64 `json:"areas"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Areas = make([][]float64, len(raw.Areas))
	for i, row := range raw.Areas {
		m.Areas[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				m.Areas[i][j] = math.NaN()
			} else {
				m.Areas[i][j] = *v
			}
		}
	}
	return nil
}

// NewNullMatrix allocates a permutations x intervals matrix initialized
// to NaN.
func NewNullMatrix(permutations, intervals int) *NullMatrix {
	areas := make([][]float64, permutations)
	for i := range areas {
		row := make([]float64, intervals)
		for j := range row {
			row[j] = math.NaN()
		}
		areas[i] = row
	}
	return &NullMatrix{Areas: areas}
}

// Rows returns the number of permutations.
func (m *NullMatrix) Rows() int {
	return len(m.Areas)
}

// Column returns all non-NaN null areas for one interval.
func (m *NullMatrix) Column(j int) []float64 {
	out := make([]float64, 0, len(m.Areas))
	for _, row := range m.Areas {
		if !math.IsNaN(row[j]) {
			out = append(out, row[j])
		}
	}
	return out
}

// NullSummary describes the shape of one interval's null distribution.
type NullSummary struct {
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Percentile95 float64 `json:"percentile_95"`
	Percentile99 float64 `json:"percentile_99"`
}

// Result is the full output of one analysis run. NullAreas and NullSummaries
// are nil when no candidate intervals survived detection; that is a valid
// terminal outcome, not an error.
type Result struct {
	RunID         core.RunID           `json:"run_id"`
	Intervals     []Candidate          `json:"intervals"`
	Fit           *timeseries.FitCurve `json:"fit"`
	NullAreas     *NullMatrix          `json:"null_areas,omitempty"`
	NullSummaries []NullSummary        `json:"null_summaries,omitempty"`
	Permutations  int                  `json:"permutations"`
	Dataset       *timeseries.Dataset  `json:"-"`
}

// HasIntervals reports whether any candidate interval survived detection.
func (r *Result) HasIntervals() bool {
	return len(r.Intervals) > 0
}

// SignificantAt returns the intervals whose empirical p-value is below alpha.
func (r *Result) SignificantAt(alpha float64) []Candidate {
	var out []Candidate
	for _, c := range r.Intervals {
		if !math.IsNaN(c.PValue) && c.PValue < alpha {
			out = append(out, c)
		}
	}
	return out
}
