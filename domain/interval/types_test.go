package interval

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidate_Degenerate(t *testing.T) {
	assert.True(t, NewCandidate(3, 3).Degenerate())
	assert.False(t, NewCandidate(3, 5).Degenerate())
	assert.True(t, math.IsNaN(NewCandidate(3, 5).Area))
	assert.True(t, math.IsNaN(NewCandidate(3, 5).PValue))
}

func TestNullMatrix_ColumnSkipsMissingRows(t *testing.T) {
	m := NewNullMatrix(3, 2)
	m.Areas[0][0] = 1.5
	m.Areas[2][0] = -0.5

	assert.Equal(t, []float64{1.5, -0.5}, m.Column(0))
	assert.Empty(t, m.Column(1))
	assert.Equal(t, 3, m.Rows())
}

func TestNullMatrix_JSONMapsMissingToNull(t *testing.T) {
	m := NewNullMatrix(2, 1)
	m.Areas[0][0] = 2.25

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"areas":[[2.25],[null]]}`, string(data))

	var back NullMatrix
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 2.25, back.Areas[0][0])
	assert.True(t, math.IsNaN(back.Areas[1][0]))
}

func TestResult_SignificantAt(t *testing.T) {
	r := &Result{Intervals: []Candidate{
		{Start: 0, End: 2, Area: 4, PValue: 0.01},
		{Start: 5, End: 7, Area: 1, PValue: 0.4},
		{Start: 8, End: 9, Area: 1, PValue: math.NaN()},
	}}

	sig := r.SignificantAt(0.05)
	require.Len(t, sig, 1)
	assert.Equal(t, 0.0, sig[0].Start)
}
