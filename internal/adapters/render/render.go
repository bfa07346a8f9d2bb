// Package render draws limit, post-fit and pulls plots with gonum/plot.
// The output format follows the file extension.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	xfont "golang.org/x/image/font"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/font/liberation"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrUnsupportedFormat = errors.New("unsupported plot format")
	ErrEmptyPlot         = errors.New("nothing to draw")
)

// Colours shared by the plots.
var (
	Black      = color.RGBA{A: 255}
	Gray       = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	Red        = color.RGBA{R: 220, A: 255}
	LightRed   = color.RGBA{R: 255, G: 150, B: 150, A: 160}
	Green68    = color.RGBA{G: 204, A: 255}
	Orange95   = color.RGBA{R: 255, G: 204, A: 255}
	UncertGray = color.RGBA{R: 90, G: 90, B: 90, A: 110}
)

// Style is the experiment label and canvas size of a plot.
type Style struct {
	Upper         string
	Lower         string
	RunParameters string
	// Align is "left" or "right".
	Align  string
	Width  vg.Length
	Height vg.Length
}

func (s Style) size(w, h vg.Length) (vg.Length, vg.Length) {
	if s.Width > 0 {
		w = s.Width
	}
	if s.Height > 0 {
		h = s.Height
	}
	return w, h
}

// ParseColor parses a #rrggbb colour. Empty or invalid strings give fallback.
func ParseColor(s string, fallback color.Color) color.Color {
	if s == "" {
		return fallback
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return fallback
	}
	return c
}

// Palette returns n distinct, stable fill colours.
func Palette(n int) []color.Color {
	out := make([]color.Color, n)
	for i := range out {
		h := 360 * float64(i) / float64(max(n, 1))
		out[i] = colorful.Hcl(h+20, 0.45, 0.72).Clamped()
	}
	return out
}

var rootLatex = strings.NewReplacer(
	"#sigma", "σ",
	"#mu", "μ",
	"#tau", "τ",
	"#nu", "ν",
	"#gamma", "γ",
	"#ell", "ℓ",
	"#pm", "±",
	"#rightarrow", "→",
	"#bar{t}", "t̄",
	"^{-1}", "⁻¹",
	"^{2}", "²",
)

// Text converts the ROOT LaTeX subset used in plot labels to plain Unicode.
func Text(s string) string {
	s = rootLatex.Replace(s)
	s = strings.NewReplacer("_{", "", "^{", "", "{", "", "}", "").Replace(s)
	return s
}

func newPlot(xTitle, yTitle string) *plot.Plot {
	p := plot.New()
	p.X.Label.Text = Text(xTitle)
	p.Y.Label.Text = Text(yTitle)
	p.Legend.Top = true
	p.Legend.XOffs = -vg.Points(6)
	p.Legend.YOffs = -vg.Points(6)
	return p
}

// format returns the canvas format of path.
func format(path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "pdf", "png", "svg", "eps", "jpg", "jpeg", "tif", "tiff":
		return ext, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
}

// save creates a canvas of the right format, lets fn draw on it and writes
// the result to path.
func save(path string, w, h vg.Length, fn func(dc draw.Canvas) error) error {
	f, err := format(path)
	if err != nil {
		return err
	}
	c, err := draw.NewFormattedCanvas(w, h, f)
	if err != nil {
		return fmt.Errorf("create %s canvas: %w", f, err)
	}
	if err := fn(draw.New(c)); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}
	if _, err := c.WriteTo(out); err != nil {
		_ = out.Close()
		return fmt.Errorf("write plot %s: %w", path, err)
	}
	return out.Close()
}

// labelFonts holds the bold and italic serif faces as variants of normal
// weight and style. The PDF backend registers a face under its name alone
// and cannot select it again by a bold or italic flag.
var labelFonts = sync.OnceValue(func() *font.Cache {
	var coll font.Collection
	for _, f := range liberation.Collection() {
		if f.Font.Variant != "Serif" {
			continue
		}
		var variant font.Variant
		switch {
		case f.Font.Weight == xfont.WeightBold && f.Font.Style == xfont.StyleNormal:
			variant = "SerifBold"
		case f.Font.Weight == xfont.WeightNormal && f.Font.Style == xfont.StyleItalic:
			variant = "SerifItalic"
		default:
			continue
		}
		coll = append(coll, font.Face{
			Font: font.Font{Typeface: "Liberation", Variant: variant},
			Face: f.Face,
		})
	}
	return font.NewCache(coll)
})

// drawPad draws p into pad, leaving room above the frame for the run
// parameters, then places the experiment label inside the frame.
func drawPad(p *plot.Plot, pad draw.Canvas, st Style) draw.Canvas {
	base := p.Title.TextStyle
	run := base
	run.Font.Size = vg.Points(11)
	run.XAlign = text.XRight
	run.YAlign = text.YBottom

	headroom := run.Height(st.RunParameters) + vg.Points(4)
	framed := draw.Crop(pad, 0, 0, 0, -headroom)
	p.Draw(framed)

	da := p.DataCanvas(framed)
	if st.RunParameters != "" {
		pad.FillText(run, vg.Point{X: da.Max.X, Y: da.Max.Y + vg.Points(2)}, Text(st.RunParameters))
	}

	upper := base
	upper.Handler = text.Plain{Fonts: labelFonts()}
	upper.Font = font.Font{Typeface: "Liberation", Variant: "SerifBold", Size: vg.Points(18)}
	upper.YAlign = text.YTop
	lower := base
	lower.Handler = upper.Handler
	lower.Font = font.Font{Typeface: "Liberation", Variant: "SerifItalic", Size: vg.Points(13)}
	lower.YAlign = text.YTop

	dx := 0.04 * (da.Max.X - da.Min.X)
	pt := vg.Point{X: da.Min.X + dx, Y: da.Max.Y - 0.04*(da.Max.Y-da.Min.Y)}
	if st.Align == "right" {
		upper.XAlign, lower.XAlign = text.XRight, text.XRight
		pt.X = da.Max.X - dx
	}
	if st.Upper != "" {
		pad.FillText(upper, pt, Text(st.Upper))
		pt.Y -= 1.1 * upper.Height(st.Upper)
	}
	if st.Lower != "" {
		pad.FillText(lower, pt, Text(st.Lower))
	}
	return da
}

// floorY lifts y values below lo to lo, for log axes.
func floorY(xys plotter.XYs, lo float64) plotter.XYs {
	for i := range xys {
		if xys[i].Y < lo {
			xys[i].Y = lo
		}
	}
	return xys
}

// steps returns the outline of a histogram with the given bin edges.
func steps(edges, heights []float64) plotter.XYs {
	out := make(plotter.XYs, 0, 2*len(heights))
	for i, h := range heights {
		out = append(out, plotter.XY{X: edges[i], Y: h}, plotter.XY{X: edges[i+1], Y: h})
	}
	return out
}

// stepBand returns the closed outline between two histograms.
func stepBand(edges, lower, upper []float64) plotter.XYs {
	top := steps(edges, upper)
	bot := steps(edges, lower)
	out := make(plotter.XYs, 0, len(top)+len(bot))
	out = append(out, top...)
	for i := len(bot) - 1; i >= 0; i-- {
		out = append(out, bot[i])
	}
	return out
}

func polygon(xys plotter.XYs, fill color.Color) (*plotter.Polygon, error) {
	poly, err := plotter.NewPolygon(xys)
	if err != nil {
		return nil, err
	}
	poly.Color = fill
	poly.LineStyle.Width = 0
	return poly, nil
}

func line(xys plotter.XYs, c color.Color, dashed bool) (*plotter.Line, error) {
	l, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	l.LineStyle.Color = c
	l.LineStyle.Width = vg.Points(2)
	if dashed {
		l.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	}
	return l, nil
}

// errorPoints is a point set with asymmetric x and y errors.
type errorPoints struct {
	plotter.XYs
	plotter.XErrors
	plotter.YErrors
}

func (e errorPoints) Len() int { return len(e.XYs) }

func markers(pts errorPoints, c color.Color, withX bool) ([]plot.Plotter, *plotter.Scatter, error) {
	s, err := plotter.NewScatter(pts.XYs)
	if err != nil {
		return nil, nil, err
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Radius = vg.Points(2.5)
	s.GlyphStyle.Shape = draw.CircleGlyph{}

	out := []plot.Plotter{}
	yb, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return nil, nil, err
	}
	yb.LineStyle.Color = c
	yb.CapWidth = 0
	out = append(out, yb)
	if withX {
		xb, err := plotter.NewXErrorBars(pts)
		if err != nil {
			return nil, nil, err
		}
		xb.LineStyle.Color = c
		xb.CapWidth = 0
		out = append(out, xb)
	}
	return append(out, s), s, nil
}
