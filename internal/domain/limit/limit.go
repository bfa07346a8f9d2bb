// Package limit turns a table of expected/observed upper limits into the
// curves and bands of an exclusion plot, and quotes the mass where the
// limits cross a theory prediction.
package limit

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/hepplot/internal/domain/curve"
)

// Plot range constants of the limit plots.
const (
	minYMax    = 10.0
	yMaxFactor = 3.0
	maxYMin    = 0.001
	yMinFactor = 0.33
)

// Row is one mass point of a limit table.
type Row struct {
	Mass     float64
	Expected float64
	Observed float64
	Low68    float64
	High68   float64
	Low95    float64
	High95   float64
}

// BandPoint is one point of an asymmetric band around the expected limit.
// Low and High are distances from Center, not absolute values.
type BandPoint struct {
	X      float64
	Center float64
	Low    float64
	High   float64
}

// Band is an ordered asymmetric band.
type Band []BandPoint

// Envelope returns the closed outline of the band: the upper edge left to
// right followed by the lower edge right to left.
func (b Band) Envelope() []curve.Point {
	out := make([]curve.Point, 0, 2*len(b))
	for _, p := range b {
		out = append(out, curve.Point{X: p.X, Y: p.Center + p.High})
	}
	for i := len(b) - 1; i >= 0; i-- {
		p := b[i]
		out = append(out, curve.Point{X: p.X, Y: p.Center - p.Low})
	}
	return out
}

// Bands collects everything drawn from a limit table.
type Bands struct {
	Expected curve.SampledCurve
	Observed curve.SampledCurve
	Band68   Band
	Band95   Band
}

// BuildBands converts limit rows, in table order, into curves and bands.
func BuildBands(rows []Row) (Bands, error) {
	if len(rows) == 0 {
		return Bands{}, ErrNoRows
	}
	exp := make([]curve.Point, len(rows))
	obs := make([]curve.Point, len(rows))
	b68 := make(Band, len(rows))
	b95 := make(Band, len(rows))
	for i, r := range rows {
		if r.Low68 < 0 || r.High68 < 0 || r.Low95 < 0 || r.High95 < 0 {
			return Bands{}, fmt.Errorf("%w: mass %g", ErrBadBand, r.Mass)
		}
		exp[i] = curve.Point{X: r.Mass, Y: r.Expected}
		obs[i] = curve.Point{X: r.Mass, Y: r.Observed}
		b68[i] = BandPoint{X: r.Mass, Center: r.Expected, Low: r.Low68, High: r.High68}
		b95[i] = BandPoint{X: r.Mass, Center: r.Expected, Low: r.Low95, High: r.High95}
	}

	expected, err := curve.New(exp)
	if err != nil {
		return Bands{}, fmt.Errorf("expected limit: %w", err)
	}
	observed, err := curve.New(obs)
	if err != nil {
		return Bands{}, fmt.Errorf("observed limit: %w", err)
	}
	return Bands{Expected: expected, Observed: observed, Band68: b68, Band95: b95}, nil
}

// YRange returns the y-axis range of a limit plot: at least [.., 30] on top
// and at most [0.00033, ..] at the bottom, padded around the expected limit.
func YRange(b Bands) (ymin, ymax float64) {
	ymax = math.Max(minYMax, b.Expected.MaxY()) * yMaxFactor
	ymin = math.Min(maxYMin, b.Expected.MinY()) * yMinFactor
	return ymin, ymax
}

// Theory is a theory prediction with optional symmetric errors per point.
type Theory struct {
	Curve curve.SampledCurve
	// Errs is empty or holds one error per curve point.
	Errs []float64
}

// NewTheory pairs a curve with its per-point errors; errs may be nil.
func NewTheory(c curve.SampledCurve, errs []float64) (Theory, error) {
	if len(errs) != 0 && len(errs) != c.Len() {
		return Theory{}, fmt.Errorf("%w: %d errors for %d points", ErrBadTheory, len(errs), c.Len())
	}
	for i, e := range errs {
		if e < 0 {
			return Theory{}, fmt.Errorf("%w: negative error at point %d", ErrBadTheory, i)
		}
	}
	return Theory{Curve: c, Errs: append([]float64(nil), errs...)}, nil
}

// Band returns the theory uncertainty as a symmetric band.
func (t Theory) Band() Band {
	if len(t.Errs) == 0 {
		return nil
	}
	pts := t.Curve.Points()
	out := make(Band, len(pts))
	for i, p := range pts {
		out[i] = BandPoint{X: p.X, Center: p.Y, Low: t.Errs[i], High: t.Errs[i]}
	}
	return out
}

// MassLimit holds the solver results for the expected and observed limits.
type MassLimit struct {
	Expected curve.Result
	Observed curve.Result
}

// Warnings returns the non-nil convergence warnings, labelled.
func (m MassLimit) Warnings() map[string]error {
	out := make(map[string]error)
	if w := m.Expected.Warning(); w != nil {
		out["expected"] = w
	}
	if w := m.Observed.Warning(); w != nil {
		out["observed"] = w
	}
	return out
}

// MassLimits finds where the expected and the observed limit cross the
// theory curve. Solver options are passed through.
func MassLimits(ctx context.Context, b Bands, th Theory, opts ...curve.Option) (MassLimit, error) {
	if th.Curve.Len() == 0 {
		return MassLimit{}, ErrNoTheory
	}
	exp, err := curve.FindIntersection(b.Expected, th.Curve, opts...)
	if err != nil {
		return MassLimit{}, fmt.Errorf("%w: expected: %w", ErrNotCrossed, err)
	}
	if err := ctx.Err(); err != nil {
		return MassLimit{}, err
	}
	obs, err := curve.FindIntersection(b.Observed, th.Curve, opts...)
	if err != nil {
		return MassLimit{}, fmt.Errorf("%w: observed: %w", ErrNotCrossed, err)
	}
	return MassLimit{Expected: exp, Observed: obs}, nil
}
