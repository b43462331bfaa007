// Package integrate provides signed-area computation for sampled curves.
package integrate

import (
	"timecourse/internal/errors"
)

// Trapezoid computes the signed area under the polyline connecting
// (x[i], y[i]) pairs. It closes the curve back along the x axis and applies
// the shoelace cross-sum to the resulting loop, so x need not be sorted:
// for monotonic x the result equals plain trapezoidal integration, and for
// arbitrary x it is still the well-defined signed loop area. Callers rely on
// this generality for forward/backward sweep area checks, so the loop form
// must not be special-cased away.
//
// Empty input yields 0. Mismatched lengths are a contract violation.
func Trapezoid(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, errors.InvalidInput("x and y must have the same length")
	}
	if len(x) < 2 {
		return 0, nil
	}

	n := len(x)
	px := make([]float64, 0, 2*n)
	py := make([]float64, 0, 2*n)
	px = append(px, x...)
	py = append(py, y...)
	// return path along the baseline, reversed
	for i := n - 1; i >= 0; i-- {
		px = append(px, x[i])
		py = append(py, 0)
	}

	m := len(px)
	var fwd, back float64
	for i := 0; i < m; i++ {
		j := (i + 1) % m
		fwd += px[j] * py[i]
		back += px[i] * py[j]
	}
	return 0.5 * (fwd - back), nil
}

// Window integrates y over the grid slice [from, to] inclusive.
func Window(grid, y []float64, from, to int) (float64, error) {
	if len(grid) != len(y) {
		return 0, errors.InvalidInput("grid and y must have the same length")
	}
	if from < 0 || to >= len(grid) || from > to {
		return 0, errors.InvalidInput("window indices out of range")
	}
	return Trapezoid(grid[from:to+1], y[from:to+1])
}
