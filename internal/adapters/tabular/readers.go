package tabular

import (
	"fmt"

	"github.com/okian/hepplot/internal/domain/curve"
	"github.com/okian/hepplot/internal/domain/histo"
	"github.com/okian/hepplot/internal/domain/limit"
	"github.com/okian/hepplot/internal/domain/postfit"
	"github.com/okian/hepplot/internal/domain/pulls"
)

// Column names of the limit and theory tables.
const (
	ColMass     = "mass"
	ColCentral  = "central"
	ColObserved = "observed"
	ColErr      = "err"
	ColLow68    = "low_68"
	ColHigh68   = "high_68"
	ColLow95    = "low_95"
	ColHigh95   = "high_95"
)

// Column names of the post-fit table.
const (
	ColXLow         = "xlow"
	ColXHigh        = "xhigh"
	ColData         = "data"
	ColDataErr      = "data_err"
	ColTotal        = "total_background"
	ColTotalErr     = "total_background_err"
	ColTotalErrLow  = "total_background_err_low"
	ColTotalErrHigh = "total_background_err_high"
	PrefitColSuffix = "_prefit"
)

// ReadCurve reads two columns of a table as a sampled curve.
func ReadCurve(path, xCol, yCol string) (curve.SampledCurve, error) {
	t, err := ReadTable(path)
	if err != nil {
		return curve.SampledCurve{}, err
	}
	return t.curve(xCol, yCol)
}

func (t *Table) curve(xCol, yCol string) (curve.SampledCurve, error) {
	if err := t.Require(xCol, yCol); err != nil {
		return curve.SampledCurve{}, err
	}
	xs, err := t.Column(xCol)
	if err != nil {
		return curve.SampledCurve{}, err
	}
	ys, err := t.Column(yCol)
	if err != nil {
		return curve.SampledCurve{}, err
	}
	c, err := curve.FromXY(xs, ys)
	if err != nil {
		return curve.SampledCurve{}, fmt.Errorf("%s: %w", t.Path, err)
	}
	return c, nil
}

// ReadTheory reads a theory prediction (mass, central[, err]).
func ReadTheory(path string, withErr bool) (limit.Theory, error) {
	t, err := ReadTable(path)
	if err != nil {
		return limit.Theory{}, err
	}
	c, err := t.curve(ColMass, ColCentral)
	if err != nil {
		return limit.Theory{}, err
	}
	var errs []float64
	if withErr {
		if err := t.Require(ColErr); err != nil {
			return limit.Theory{}, err
		}
		if errs, err = t.Column(ColErr); err != nil {
			return limit.Theory{}, err
		}
	}
	return limit.NewTheory(c, errs)
}

// ReadLimits reads an expected/observed limit table.
func ReadLimits(path string) ([]limit.Row, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	cols := []string{ColMass, ColCentral, ColObserved, ColLow68, ColHigh68, ColLow95, ColHigh95}
	if err := t.Require(cols...); err != nil {
		return nil, err
	}
	out := make([]limit.Row, len(t.Rows))
	for i := range t.Rows {
		v, err := t.floats(i, cols)
		if err != nil {
			return nil, err
		}
		out[i] = limit.Row{
			Mass: v[0], Expected: v[1], Observed: v[2],
			Low68: v[3], High68: v[4], Low95: v[5], High95: v[6],
		}
	}
	return out, nil
}

// ReadPulls reads a nuisance-parameter pulls table.
func ReadPulls(path string) ([]pulls.Row, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	cols := []string{"postfit_b", "postfit_b_up", "postfit_b_down", "postfit_s", "postfit_s_up", "postfit_s_down"}
	if err := t.Require(append([]string{"label"}, cols...)...); err != nil {
		return nil, err
	}
	out := make([]pulls.Row, len(t.Rows))
	for i := range t.Rows {
		label, err := t.String(i, "label")
		if err != nil {
			return nil, err
		}
		v, err := t.floats(i, cols)
		if err != nil {
			return nil, err
		}
		out[i] = pulls.Row{
			Label:    label,
			PostfitB: v[0], PostfitBUp: v[1], PostfitBDown: v[2],
			PostfitS: v[3], PostfitSUp: v[4], PostfitSDown: v[5],
		}
	}
	return out, nil
}

// SampleSpec names a background column and its legend title.
type SampleSpec struct {
	Name  string
	Title string
}

// ReadPostfit reads one channel of a post-fit table; in a workbook the
// channel names the sheet. Each sample is a column of bin counts; signal,
// when not empty, names the post-fit signal column and "<signal>_prefit" its
// optional pre-fit normalisation.
func ReadPostfit(path, channel string, samples []SampleSpec, signal string) (postfit.Input, error) {
	t, err := ReadSheet(path, channel)
	if err != nil {
		return postfit.Input{}, err
	}
	if err := t.Require(ColXLow, ColXHigh, ColData, ColDataErr, ColTotal); err != nil {
		return postfit.Input{}, err
	}

	edges, err := t.edges()
	if err != nil {
		return postfit.Input{}, err
	}

	var in postfit.Input
	if in.Data, err = t.series(edges, ColData, t.symmetric(ColDataErr)); err != nil {
		return postfit.Input{}, err
	}

	totalErr := t.symmetric(ColTotalErr)
	if t.Has(ColTotalErrLow) && t.Has(ColTotalErrHigh) {
		totalErr = t.asymmetric(ColTotalErrLow, ColTotalErrHigh)
	}
	if in.TotalBackground, err = t.series(edges, ColTotal, totalErr); err != nil {
		return postfit.Input{}, err
	}

	for _, s := range samples {
		shape, err := t.series(edges, s.Name, nil)
		if err != nil {
			return postfit.Input{}, fmt.Errorf("sample %q: %w", s.Name, err)
		}
		in.Samples = append(in.Samples, postfit.Sample{Name: s.Name, Title: s.Title, Shape: shape})
	}

	if signal != "" {
		if in.Signal, err = t.series(edges, signal, nil); err != nil {
			return postfit.Input{}, fmt.Errorf("signal %q: %w", signal, err)
		}
		if t.Has(signal + PrefitColSuffix) {
			if in.SignalPrefit, err = t.series(edges, signal+PrefitColSuffix, nil); err != nil {
				return postfit.Input{}, err
			}
		}
	}
	return in, nil
}

func (t *Table) floats(i int, cols []string) ([]float64, error) {
	out := make([]float64, len(cols))
	for j, c := range cols {
		v, err := t.Float(i, c)
		if err != nil {
			return nil, err
		}
		out[j] = v
	}
	return out, nil
}

// edges joins the xlow column with the last xhigh. Bins must be contiguous.
func (t *Table) edges() ([]float64, error) {
	lows, err := t.Column(ColXLow)
	if err != nil {
		return nil, err
	}
	highs, err := t.Column(ColXHigh)
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(lows); i++ {
		if lows[i] != highs[i-1] {
			return nil, fmt.Errorf("%w: %s line %d: bin starts at %g but previous ends at %g",
				ErrParse, t.Path, i+2, lows[i], highs[i-1])
		}
	}
	return append(lows, highs[len(highs)-1]), nil
}

type errReader func(i int) (histo.Uncertainty, error)

func (t *Table) symmetric(col string) errReader {
	return func(i int) (histo.Uncertainty, error) {
		if !t.Has(col) {
			return histo.Symmetric(0), nil
		}
		v, err := t.Float(i, col)
		return histo.Symmetric(v), err
	}
}

func (t *Table) asymmetric(lowCol, highCol string) errReader {
	return func(i int) (histo.Uncertainty, error) {
		lo, err := t.Float(i, lowCol)
		if err != nil {
			return histo.Uncertainty{}, err
		}
		hi, err := t.Float(i, highCol)
		return histo.Asymmetric(lo, hi), err
	}
}

func (t *Table) series(edges []float64, col string, errs errReader) (histo.BinSeries, error) {
	if err := t.Require(col); err != nil {
		return histo.BinSeries{}, err
	}
	contents, err := t.Column(col)
	if err != nil {
		return histo.BinSeries{}, err
	}
	us := make([]histo.Uncertainty, len(contents))
	if errs != nil {
		for i := range us {
			if us[i], err = errs(i); err != nil {
				return histo.BinSeries{}, err
			}
		}
	}
	return histo.FromEdges(edges, contents, us)
}
