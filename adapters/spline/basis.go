package spline

// naturalBasis evaluates the natural cubic spline basis for a fixed
// ascending knot sequence. The basis is linear beyond the boundary knots.
// With K knots it spans K functions; the intercept is excluded here and
// supplied by the design matrix.
type naturalBasis struct {
	knots []float64
}

func newNaturalBasis(knots []float64) *naturalBasis {
	return &naturalBasis{knots: knots}
}

// dim returns the number of basis columns: the identity term plus one
// curvature term per interior knot pair. K < 3 knots degrade to a plain
// linear trend.
func (b *naturalBasis) dim() int {
	if len(b.knots) < 3 {
		return 1
	}
	return len(b.knots) - 1
}

// eval returns the basis values at t: [t, N1(t), ..., N_{K-2}(t)].
func (b *naturalBasis) eval(t float64) []float64 {
	out := make([]float64, b.dim())
	out[0] = t
	k := len(b.knots)
	if k < 3 {
		return out
	}
	dLast := b.d(k-2, t)
	for i := 0; i < k-2; i++ {
		out[1+i] = b.d(i, t) - dLast
	}
	return out
}

// d is the truncated-cubic difference quotient that enforces linearity
// beyond the last knot.
func (b *naturalBasis) d(i int, t float64) float64 {
	k := len(b.knots)
	last := b.knots[k-1]
	return (cubePlus(t-b.knots[i]) - cubePlus(t-last)) / (last - b.knots[i])
}

func cubePlus(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return v * v * v
}
