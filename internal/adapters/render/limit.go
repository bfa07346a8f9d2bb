package render

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/okian/hepplot/internal/domain/curve"
	"github.com/okian/hepplot/internal/domain/limit"
)

// Series is an extra curve drawn for comparison.
type Series struct {
	Title string
	Color color.Color
	Curve curve.SampledCurve
}

// LimitPlot is the content of an exclusion plot.
type LimitPlot struct {
	Bands limit.Bands
	// Theory is drawn when its curve is not empty, with its band when
	// TheoryErr is set.
	Theory    limit.Theory
	TheoryErr bool
	Compare   []Series

	ExpectedTitle string
	TheoryTitle   string
	XTitle        string
	YTitle        string
	LogY          bool
}

// Limit draws the expected limit with its 68% and 95% bands, the observed
// limit, an optional theory curve and comparison curves, and writes it to path.
func Limit(path string, lp LimitPlot, st Style) error {
	if lp.Bands.Expected.Len() == 0 {
		return ErrEmptyPlot
	}
	ymin, ymax := limit.YRange(lp.Bands)
	xmin, xmax := lp.Bands.Expected.Domain()

	p := newPlot(lp.XTitle, lp.YTitle)
	if lp.LogY {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	xys := func(pts []curve.Point) plotter.XYs {
		out := make(plotter.XYs, len(pts))
		for i, pt := range pts {
			out[i] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		if lp.LogY {
			floorY(out, ymin)
		}
		return out
	}

	b95, err := polygon(xys(lp.Bands.Band95.Envelope()), Orange95)
	if err != nil {
		return err
	}
	b68, err := polygon(xys(lp.Bands.Band68.Envelope()), Green68)
	if err != nil {
		return err
	}
	exp, err := line(xys(lp.Bands.Expected.Points()), Black, true)
	if err != nil {
		return err
	}
	obs, err := line(xys(lp.Bands.Observed.Points()), Black, false)
	if err != nil {
		return err
	}
	p.Add(b95, b68, exp, obs)

	p.Legend.Add("95% CL upper limits")
	p.Legend.Add("Observed", obs)
	for _, s := range lp.Compare {
		l, err := line(xys(s.Curve.Points()), s.Color, true)
		if err != nil {
			return err
		}
		p.Add(l)
		p.Legend.Add(Text(s.Title), l)
	}
	p.Legend.Add(Text(lp.ExpectedTitle), exp)
	p.Legend.Add("68% expected", b68)
	p.Legend.Add("95% expected", b95)

	if lp.Theory.Curve.Len() > 0 {
		th, err := line(xys(lp.Theory.Curve.Points()), Red, false)
		if err != nil {
			return err
		}
		if band := lp.Theory.Band(); lp.TheoryErr && band != nil {
			poly, err := polygon(xys(band.Envelope()), LightRed)
			if err != nil {
				return err
			}
			p.Add(poly)
			p.Legend.Add(Text(lp.TheoryTitle), poly, th)
		} else {
			p.Legend.Add(Text(lp.TheoryTitle), th)
		}
		p.Add(th)
	}

	// Add widens the axes to the data; the frame follows the expected limit.
	p.X.Min, p.X.Max = xmin, xmax
	p.Y.Min, p.Y.Max = ymin, ymax

	w, h := st.size(15*vg.Centimeter, 15*vg.Centimeter)
	return save(path, w, h, func(dc draw.Canvas) error {
		drawPad(p, dc, st)
		return nil
	})
}
