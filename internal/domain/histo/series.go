// Package histo models binned distributions with uncertainties and derives
// the width-normalised and data/background ratio series drawn on post-fit
// plots.
package histo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Bin is one histogram bin. Content is the integrated count in the bin, not
// a density.
type Bin struct {
	Center    float64
	HalfWidth float64
	Content   float64
	Err       Uncertainty
}

// Width returns the full bin width.
func (b Bin) Width() float64 { return 2 * b.HalfWidth }

// Low and High return the bin edges.
func (b Bin) Low() float64  { return b.Center - b.HalfWidth }
func (b Bin) High() float64 { return b.Center + b.HalfWidth }

// BinSeries is an ordered, non-empty sequence of bins with strictly
// increasing centers. Every method returns new values; a series is never
// modified after construction.
type BinSeries struct {
	bins []Bin
}

// NewBinSeries validates and copies bins.
func NewBinSeries(bins []Bin) (BinSeries, error) {
	if len(bins) == 0 {
		return BinSeries{}, fmt.Errorf("%w: no bins", ErrInvalidSeries)
	}
	cp := make([]Bin, len(bins))
	for i, b := range bins {
		if !(b.HalfWidth > 0) || math.IsInf(b.HalfWidth, 0) {
			return BinSeries{}, fmt.Errorf("%w: bin %d has half-width %g", ErrInvalidSeries, i, b.HalfWidth)
		}
		if math.IsNaN(b.Center) || math.IsInf(b.Center, 0) {
			return BinSeries{}, fmt.Errorf("%w: bin %d center is not finite", ErrInvalidSeries, i)
		}
		if !b.Err.valid() {
			return BinSeries{}, fmt.Errorf("%w: bin %d has negative or non-finite uncertainty", ErrInvalidSeries, i)
		}
		if i > 0 && b.Center <= bins[i-1].Center {
			return BinSeries{}, fmt.Errorf("%w: centers not strictly increasing at bin %d", ErrInvalidSeries, i)
		}
		cp[i] = b
	}
	return BinSeries{bins: cp}, nil
}

// FromEdges builds a series from n+1 ascending edges, n contents and n
// uncertainties. A nil errs means no uncertainties.
func FromEdges(edges, contents []float64, errs []Uncertainty) (BinSeries, error) {
	n := len(contents)
	if errs == nil {
		errs = make([]Uncertainty, n)
	}
	if len(edges) != n+1 || len(errs) != n {
		return BinSeries{}, fmt.Errorf("%w: %d edges, %d contents, %d errors", ErrInvalidSeries, len(edges), n, len(errs))
	}
	bins := make([]Bin, n)
	for i := range contents {
		lo, hi := edges[i], edges[i+1]
		bins[i] = Bin{
			Center:    (lo + hi) / 2,
			HalfWidth: (hi - lo) / 2,
			Content:   contents[i],
			Err:       errs[i],
		}
	}
	return NewBinSeries(bins)
}

// Len returns the number of bins.
func (s BinSeries) Len() int { return len(s.bins) }

// Bin returns bin i.
func (s BinSeries) Bin(i int) Bin { return s.bins[i] }

// Bins returns a copy of the bins.
func (s BinSeries) Bins() []Bin {
	out := make([]Bin, len(s.bins))
	copy(out, s.bins)
	return out
}

// Contents returns the bin contents in order.
func (s BinSeries) Contents() []float64 {
	out := make([]float64, len(s.bins))
	for i, b := range s.bins {
		out[i] = b.Content
	}
	return out
}

// Widths returns the full bin widths in order.
func (s BinSeries) Widths() []float64 {
	out := make([]float64, len(s.bins))
	for i, b := range s.bins {
		out[i] = b.Width()
	}
	return out
}

// Edges returns the n+1 bin edges, taking each lower edge from its own bin
// and the last upper edge from the last bin.
func (s BinSeries) Edges() []float64 {
	if len(s.bins) == 0 {
		return nil
	}
	out := make([]float64, len(s.bins)+1)
	for i, b := range s.bins {
		out[i] = b.Low()
	}
	out[len(s.bins)] = s.bins[len(s.bins)-1].High()
	return out
}

// Integral is the sum of bin contents.
func (s BinSeries) Integral() float64 {
	return floats.Sum(s.Contents())
}

// Max and Min return the extreme bin contents.
func (s BinSeries) Max() float64 {
	if len(s.bins) == 0 {
		return math.NaN()
	}
	return floats.Max(s.Contents())
}

func (s BinSeries) Min() float64 {
	if len(s.bins) == 0 {
		return math.NaN()
	}
	return floats.Min(s.Contents())
}

// Scale multiplies every content and uncertainty by f.
func (s BinSeries) Scale(f float64) BinSeries {
	out := make([]Bin, len(s.bins))
	for i, b := range s.bins {
		b.Content *= f
		b.Err = b.Err.Scale(f)
		out[i] = b
	}
	return BinSeries{bins: out}
}

// Normalize divides each content and uncertainty by its bin width, turning
// counts into densities (events per unit of x).
func (s BinSeries) Normalize() BinSeries {
	out := make([]Bin, len(s.bins))
	for i, b := range s.bins {
		w := b.Width()
		b.Content /= w
		b.Err = b.Err.Scale(1 / w)
		out[i] = b
	}
	return BinSeries{bins: out}
}

// Add sums two series with identical binning; uncertainties add in
// quadrature. It is what stacking backgrounds uses.
func (s BinSeries) Add(o BinSeries) (BinSeries, error) {
	if err := s.SameBinning(o, DefaultBinTolerance); err != nil {
		return BinSeries{}, err
	}
	out := make([]Bin, len(s.bins))
	for i, b := range s.bins {
		b.Content += o.bins[i].Content
		b.Err = b.Err.quadrature(o.bins[i].Err)
		out[i] = b
	}
	return BinSeries{bins: out}, nil
}

// DefaultBinTolerance is the relative tolerance used when comparing bin
// boundaries.
const DefaultBinTolerance = 1e-9

// SameBinning returns a domain error unless o has the same number of bins
// and the same edges as s, within the relative tolerance tol.
func (s BinSeries) SameBinning(o BinSeries, tol float64) error {
	if len(s.bins) != len(o.bins) {
		return &domainError{kind: ErrBinMismatch, msg: fmt.Sprintf("%d bins vs %d bins", len(s.bins), len(o.bins))}
	}
	for i, b := range s.bins {
		ob := o.bins[i]
		if !closeTo(b.Low(), ob.Low(), tol) || !closeTo(b.High(), ob.High(), tol) {
			return &domainError{kind: ErrBinMismatch, msg: fmt.Sprintf("bin %d spans [%g, %g] vs [%g, %g]",
				i, b.Low(), b.High(), ob.Low(), ob.High())}
		}
	}
	return nil
}

func closeTo(a, b, tol float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= tol*scale
}
