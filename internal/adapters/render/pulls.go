package render

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/okian/hepplot/internal/domain/pulls"
)

// Horizontal range of a pulls plot, just inside ±2.5σ.
const pullRange = 2.49

// PullsPlot is the content of a nuisance-parameter pulls plot.
type PullsPlot struct {
	Layout pulls.Layout
	XTitle string
}

// Pulls draws one row per nuisance parameter over the ±1σ and ±2σ boxes,
// with the background-only and signal+background fits side by side.
func Pulls(path string, pp PullsPlot, st Style) error {
	l := pp.Layout
	n := l.Len()
	if n == 0 {
		return ErrEmptyPlot
	}
	rows := float64(n)

	p := newPlot(pp.XTitle, "")
	box := func(halfWidth float64) plotter.XYs {
		return plotter.XYs{{X: -halfWidth, Y: 0}, {X: halfWidth, Y: 0}, {X: halfWidth, Y: rows}, {X: -halfWidth, Y: rows}}
	}
	b95, err := polygon(box(2), Orange95)
	if err != nil {
		return err
	}
	b68, err := polygon(box(1), Green68)
	if err != nil {
		return err
	}
	p.Add(b95, b68)

	sb, sbGlyph, err := markers(pullPoints(l.Signal), Gray, true)
	if err != nil {
		return err
	}
	p.Add(sb...)
	b, bGlyph, err := markers(pullPoints(l.Background), Black, true)
	if err != nil {
		return err
	}
	p.Add(b...)

	p.Legend.Add("background only fit", bGlyph)
	p.Legend.Add("signal+background fit", sbGlyph)

	ticks := make([]plot.Tick, n)
	for i, label := range l.Labels {
		ticks[i] = plot.Tick{Value: float64(i) + 0.5, Label: Text(label)}
	}
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Min, p.X.Max = -pullRange, pullRange
	p.Y.Min, p.Y.Max = 0, rows

	w, h := st.size(15*vg.Centimeter, 20*vg.Centimeter)
	return save(path, w, h, func(dc draw.Canvas) error {
		drawPad(p, dc, Style{RunParameters: st.RunParameters})
		return nil
	})
}

func pullPoints(ms []pulls.Marker) errorPoints {
	pts := errorPoints{
		XYs:     make(plotter.XYs, len(ms)),
		XErrors: make(plotter.XErrors, len(ms)),
		YErrors: make(plotter.YErrors, len(ms)),
	}
	for i, m := range ms {
		pts.XYs[i] = plotter.XY{X: m.X, Y: m.Y}
		pts.XErrors[i].Low, pts.XErrors[i].High = m.Left, m.Right
	}
	return pts
}
