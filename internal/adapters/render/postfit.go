package render

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/okian/hepplot/internal/domain/histo"
	"github.com/okian/hepplot/internal/domain/postfit"
)

// Share of the canvas height taken by the main pad; the ratio pad gets the rest.
const mainPadFraction = 0.65

// PostfitPlot is the content of a post-fit distribution plot.
type PostfitPlot struct {
	Dist postfit.Distribution
	// Colors holds one fill colour per stack layer; missing entries come
	// from Palette.
	Colors      []color.Color
	SignalTitle string
	XTitle      string
	YTitle      string
	LogY        bool
}

// Postfit draws the stacked backgrounds, total uncertainty, signal and data
// in a main pad, and data/background with the relative background
// uncertainty in a ratio pad below it.
func Postfit(path string, pp PostfitPlot, st Style) error {
	d := pp.Dist
	if d.NormalizedObserved.Len() == 0 {
		return ErrEmptyPlot
	}
	top, err := postfitMain(pp)
	if err != nil {
		return err
	}
	bot, err := postfitRatio(pp)
	if err != nil {
		return err
	}

	w, h := st.size(15*vg.Centimeter, 15*vg.Centimeter)
	return save(path, w, h, func(dc draw.Canvas) error {
		split := h * (1 - mainPadFraction)
		topPad := draw.Crop(dc, 0, 0, split, 0)
		botPad := draw.Crop(dc, 0, 0, 0, -(h - split))

		// Line the two frames up on the left edge.
		dt := top.DataCanvas(topPad).Min.X
		db := bot.DataCanvas(botPad).Min.X
		if dt > db {
			botPad = draw.Crop(botPad, dt-db, 0, 0, 0)
		} else {
			topPad = draw.Crop(topPad, db-dt, 0, 0, 0)
		}

		drawPad(top, topPad, st)
		bot.Draw(botPad)
		return nil
	})
}

func postfitMain(pp PostfitPlot) (*plot.Plot, error) {
	d := pp.Dist
	band := d.NormalizedBackgroundBand
	edges := band.Edges()
	lo, hi := d.YMin, d.YMax

	p := newPlot("", pp.YTitle)
	p.X.Tick.Label.Color = color.Transparent
	if pp.LogY {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	floor := func(xys plotter.XYs) plotter.XYs {
		if pp.LogY {
			return floorY(xys, lo)
		}
		return xys
	}

	colors := pp.Colors
	if len(colors) < len(d.Stack) {
		pal := Palette(len(d.Stack))
		colors = append(append([]color.Color(nil), colors...), pal[len(colors):]...)
	}
	layers := make([]*plotter.Polygon, len(d.Stack))
	for i, l := range d.Stack {
		poly, err := polygon(floor(stepBand(edges, l.Lower, l.Upper)), colors[i])
		if err != nil {
			return nil, err
		}
		layers[i] = poly
		p.Add(poly)
	}

	lower, upper := bandEdges(band)
	unc, err := polygon(floor(stepBand(edges, lower, upper)), UncertGray)
	if err != nil {
		return nil, err
	}
	p.Add(unc)

	var sig *plotter.Line
	if d.Signal.Len() > 0 {
		sig, err = line(floor(steps(edges, d.Signal.Contents())), Black, true)
		if err != nil {
			return nil, err
		}
		p.Add(sig)
	}

	obs := d.NormalizedObserved
	pts := errorPoints{XYs: make(plotter.XYs, obs.Len()), YErrors: make(plotter.YErrors, obs.Len())}
	for i, b := range obs.Bins() {
		pts.XYs[i] = plotter.XY{X: b.Center, Y: b.Content}
		pts.YErrors[i].Low = b.Err.Low()
		pts.YErrors[i].High = b.Err.High()
	}
	floor(pts.XYs)
	data, glyph, err := markers(pts, Black, false)
	if err != nil {
		return nil, err
	}
	p.Add(data...)

	p.Legend.Add("Data", glyph)
	for i := len(d.Stack) - 1; i >= 0; i-- {
		p.Legend.Add(Text(d.Stack[i].Title), layers[i])
	}
	p.Legend.Add("Tot. uncertainty", unc)
	if sig != nil {
		p.Legend.Add(Text(pp.SignalTitle), sig)
	}

	p.X.Min, p.X.Max = edges[0], edges[len(edges)-1]
	p.Y.Min, p.Y.Max = lo, hi
	return p, nil
}

func postfitRatio(pp PostfitPlot) (*plot.Plot, error) {
	d := pp.Dist
	edges := d.NormalizedBackgroundBand.Edges()

	p := newPlot(pp.XTitle, "data/bkg")

	lower := make([]float64, len(d.RatioBand))
	upper := make([]float64, len(d.RatioBand))
	for i, r := range d.RatioBand {
		lower[i] = r.Value - r.Err
		upper[i] = r.Value + r.Err
	}
	unc, err := polygon(stepBand(edges, lower, upper), UncertGray)
	if err != nil {
		return nil, err
	}
	p.Add(unc)

	n := len(d.Ratio)
	pts := errorPoints{
		XYs:     make(plotter.XYs, n),
		XErrors: make(plotter.XErrors, n),
		YErrors: make(plotter.YErrors, n),
	}
	for i, r := range d.Ratio {
		pts.XYs[i] = plotter.XY{X: r.X, Y: r.Value}
		pts.XErrors[i].Low, pts.XErrors[i].High = r.XHalfWidth, r.XHalfWidth
		pts.YErrors[i].Low, pts.YErrors[i].High = r.Err, r.Err
	}
	ratio, _, err := markers(pts, Black, true)
	if err != nil {
		return nil, err
	}
	p.Add(ratio...)

	p.X.Min, p.X.Max = edges[0], edges[len(edges)-1]
	p.Y.Min, p.Y.Max = postfit.RatioYMin, postfit.RatioYMax
	return p, nil
}

// bandEdges returns content-low and content+high of every bin.
func bandEdges(s histo.BinSeries) (lower, upper []float64) {
	lower = make([]float64, s.Len())
	upper = make([]float64, s.Len())
	for i, b := range s.Bins() {
		lower[i] = b.Content - b.Err.Low()
		upper[i] = b.Content + b.Err.High()
	}
	return lower, upper
}
