package histo

import "math"

// Uncertainty is either symmetric or asymmetric. Observed data usually carries
// a symmetric error; fitted background totals and limit bands carry
// asymmetric ones. Arithmetic reads Low/High regardless of the variant.
type Uncertainty struct {
	low, high float64
	asym      bool
}

// Symmetric returns an uncertainty of err in both directions.
func Symmetric(err float64) Uncertainty {
	return Uncertainty{low: err, high: err}
}

// Asymmetric returns an uncertainty with distinct downward and upward errors.
func Asymmetric(low, high float64) Uncertainty {
	return Uncertainty{low: low, high: high, asym: true}
}

// Low is the downward error.
func (u Uncertainty) Low() float64 { return u.low }

// High is the upward error.
func (u Uncertainty) High() float64 { return u.high }

// IsSymmetric reports whether u was built with Symmetric.
func (u Uncertainty) IsSymmetric() bool { return !u.asym }

// Scale multiplies both components by f and keeps the variant.
func (u Uncertainty) Scale(f float64) Uncertainty {
	return Uncertainty{low: u.low * f, high: u.high * f, asym: u.asym}
}

// quadrature adds two uncertainties component-wise in quadrature. The result
// is symmetric only when both inputs are.
func (u Uncertainty) quadrature(o Uncertainty) Uncertainty {
	return Uncertainty{
		low:  math.Hypot(u.low, o.low),
		high: math.Hypot(u.high, o.high),
		asym: u.asym || o.asym,
	}
}

func (u Uncertainty) valid() bool {
	return u.low >= 0 && u.high >= 0 && !math.IsInf(u.low, 0) && !math.IsInf(u.high, 0)
}
