// Package curve holds piecewise-linear sampled curves and the bisection
// solver used to quote where two of them cross.
package curve

import (
	"fmt"
	"math"
	"sort"
)

// Point is a single (x, y) sample.
type Point struct {
	X float64
	Y float64
}

// SampledCurve is a piecewise-linear function over its samples. The zero
// value is not usable; build one with New.
type SampledCurve struct {
	points []Point
}

// New validates the samples and returns an immutable curve. Samples must be
// finite with strictly increasing x.
func New(points []Point) (SampledCurve, error) {
	if len(points) == 0 {
		return SampledCurve{}, fmt.Errorf("%w: no samples", ErrInvalidCurve)
	}
	cp := make([]Point, len(points))
	for i, p := range points {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			return SampledCurve{}, fmt.Errorf("%w: sample %d is not finite", ErrInvalidCurve, i)
		}
		if i > 0 && p.X <= points[i-1].X {
			return SampledCurve{}, fmt.Errorf("%w: x not strictly increasing at sample %d (%g after %g)",
				ErrInvalidCurve, i, p.X, points[i-1].X)
		}
		cp[i] = p
	}
	return SampledCurve{points: cp}, nil
}

// FromXY builds a curve from parallel x and y slices.
func FromXY(xs, ys []float64) (SampledCurve, error) {
	if len(xs) != len(ys) {
		return SampledCurve{}, fmt.Errorf("%w: %d x values but %d y values", ErrInvalidCurve, len(xs), len(ys))
	}
	points := make([]Point, len(xs))
	for i := range xs {
		points[i] = Point{X: xs[i], Y: ys[i]}
	}
	return New(points)
}

// Len returns the number of samples.
func (c SampledCurve) Len() int { return len(c.points) }

// Points returns a copy of the samples.
func (c SampledCurve) Points() []Point {
	out := make([]Point, len(c.points))
	copy(out, c.points)
	return out
}

// Domain returns the first and last sample x.
func (c SampledCurve) Domain() (xmin, xmax float64) {
	if len(c.points) == 0 {
		return math.NaN(), math.NaN()
	}
	return c.points[0].X, c.points[len(c.points)-1].X
}

// Eval evaluates the curve at x. Between samples it interpolates linearly;
// outside the domain it extends the nearest segment.
func (c SampledCurve) Eval(x float64) float64 {
	n := len(c.points)
	switch n {
	case 0:
		return math.NaN()
	case 1:
		return c.points[0].Y
	}

	// first sample with X >= x, clamped to a valid segment
	j := sort.Search(n, func(i int) bool { return c.points[i].X >= x })
	if j < 1 {
		j = 1
	}
	if j > n-1 {
		j = n - 1
	}

	p0, p1 := c.points[j-1], c.points[j]
	if x == p1.X {
		return p1.Y
	}
	t := (x - p0.X) / (p1.X - p0.X)
	return p0.Y + t*(p1.Y-p0.Y)
}

// MinY and MaxY return the extreme sample values.
func (c SampledCurve) MinY() float64 {
	m := math.Inf(1)
	for _, p := range c.points {
		m = math.Min(m, p.Y)
	}
	return m
}

func (c SampledCurve) MaxY() float64 {
	m := math.Inf(-1)
	for _, p := range c.points {
		m = math.Max(m, p.Y)
	}
	return m
}
