// Package postfit assembles a post-fit distribution: data against the
// stacked background processes, the total background uncertainty band, a
// signal overlay and the data/background ratio pad.
package postfit

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/hepplot/internal/domain/histo"
	"gonum.org/v1/gonum/floats"
)

// Plot range constants of the post-fit plots.
const (
	stackHeadroom = 3.0
	yMaxFactor    = 3.0
	YMin          = 0.1
	RatioYMin     = 0.35
	RatioYMax     = 1.65
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrNoSamples   = errors.New("no background samples")
	ErrEmptySignal = errors.New("signal has zero integral")
)

// Sample is one named background process.
type Sample struct {
	Name  string
	Title string
	Shape histo.BinSeries
}

// Input is everything read from a fit-diagnostics table for one channel.
// All series share the same binning and hold integrated bin counts.
type Input struct {
	Data            histo.BinSeries
	TotalBackground histo.BinSeries
	Samples         []Sample

	// Signal is optional; a zero-length series means no overlay.
	Signal histo.BinSeries
	// SignalPrefit, when set, fixes the normalisation of the signal overlay:
	// the post-fit signal shape is scaled to its integral.
	SignalPrefit histo.BinSeries
}

// Layer is one band of the stack: Lower is the cumulative density of the
// samples below it, Upper includes this sample.
type Layer struct {
	Name  string
	Title string
	Lower []float64
	Upper []float64
}

// Distribution is the derived, width-normalised content of a post-fit plot.
type Distribution struct {
	histo.Ratios
	// Stack layers in input order, bottom first.
	Stack  []Layer
	Signal histo.BinSeries
	YMin   float64
	YMax   float64
}

// Build derives the post-fit distribution. Ratios come from the total
// background; stack layers, signal and error band are width-normalised.
func Build(in Input) (Distribution, error) {
	if len(in.Samples) == 0 {
		return Distribution{}, ErrNoSamples
	}
	ratios, err := histo.ComputeRatios(in.Data, in.TotalBackground)
	if err != nil {
		return Distribution{}, err
	}

	ref := in.TotalBackground
	n := ref.Len()
	lower := make([]float64, n)
	stack := make([]Layer, 0, len(in.Samples))
	for _, s := range in.Samples {
		if err := ref.SameBinning(s.Shape, histo.DefaultBinTolerance); err != nil {
			return Distribution{}, fmt.Errorf("sample %q: %w", s.Name, err)
		}
		density := s.Shape.Normalize().Contents()
		upper := make([]float64, n)
		for i := range upper {
			upper[i] = lower[i] + density[i]
		}
		stack = append(stack, Layer{Name: s.Name, Title: s.Title, Lower: lower, Upper: upper})
		lower = upper
	}

	var signal histo.BinSeries
	if in.Signal.Len() > 0 {
		scaled, err := scaleSignal(in.Signal, in.SignalPrefit)
		if err != nil {
			return Distribution{}, err
		}
		if err := ref.SameBinning(scaled, histo.DefaultBinTolerance); err != nil {
			return Distribution{}, fmt.Errorf("signal: %w", err)
		}
		signal = scaled.Normalize()
	}

	stackMax := floats.Max(lower)
	dataMax := ratios.NormalizedObserved.Max()

	return Distribution{
		Ratios: ratios,
		Stack:  stack,
		Signal: signal,
		YMin:   YMin,
		YMax:   math.Max(stackMax*stackHeadroom, dataMax) * yMaxFactor,
	}, nil
}

// scaleSignal normalises the post-fit signal shape to the pre-fit yield.
// Without a pre-fit shape the post-fit signal is drawn as is.
func scaleSignal(post, pre histo.BinSeries) (histo.BinSeries, error) {
	if pre.Len() == 0 {
		return post, nil
	}
	integral := post.Integral()
	if integral == 0 {
		return histo.BinSeries{}, ErrEmptySignal
	}
	return post.Scale(pre.Integral() / integral), nil
}
