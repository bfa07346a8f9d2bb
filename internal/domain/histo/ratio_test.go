package histo_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/okian/hepplot/internal/domain/histo"
	. "github.com/smartystreets/goconvey/convey"
)

func series(edges, contents []float64, errs ...histo.Uncertainty) histo.BinSeries {
	if len(errs) == 0 {
		errs = make([]histo.Uncertainty, len(contents))
	}
	s, err := histo.FromEdges(edges, contents, errs)
	if err != nil {
		panic(err)
	}
	return s
}

var approx = cmpopts.EquateApprox(0, 1e-12)

func TestComputeRatios(t *testing.T) {
	Convey("Given two data bins over two background bins of width 2", t, func() {
		edges := []float64{0, 2, 4}
		observed := series(edges, []float64{10, 20}, histo.Symmetric(2), histo.Symmetric(4))
		background := series(edges, []float64{8, 22}, histo.Asymmetric(0.5, 1), histo.Asymmetric(1.5, 2))

		res, err := histo.ComputeRatios(observed, background)
		So(err, ShouldBeNil)

		Convey("Then the ratio is data over background at each bin center", func() {
			want := []histo.RatioPoint{
				{X: 1, Value: 1.25, Err: 2.0 / 10 * 1.25, XHalfWidth: 1},
				{X: 3, Value: 20.0 / 22, Err: 4.0 / 20 * (20.0 / 22), XHalfWidth: 1},
			}
			So(cmp.Diff(want, res.Ratio, approx), ShouldBeEmpty)
		})

		Convey("Then the band sits on 1 with the relative background error", func() {
			want := []histo.RatioPoint{
				{X: 1, Value: 1, Err: 0.125, XHalfWidth: 1},
				{X: 3, Value: 1, Err: 2.0 / 22, XHalfWidth: 1},
			}
			So(cmp.Diff(want, res.RatioBand, approx), ShouldBeEmpty)
		})

		Convey("Then both normalised series are divided by the bin width", func() {
			So(res.NormalizedObserved.Contents(), ShouldResemble, []float64{5, 10})
			So(res.NormalizedObserved.Bin(1).Err.High(), ShouldEqual, 2)
			So(res.NormalizedBackgroundBand.Contents(), ShouldResemble, []float64{4, 11})
			So(res.NormalizedBackgroundBand.Bin(0).Err.Low(), ShouldEqual, 0.25)
			So(res.NormalizedBackgroundBand.Bin(0).Err.High(), ShouldEqual, 0.5)
		})

		Convey("Then the inputs are left untouched", func() {
			So(observed.Contents(), ShouldResemble, []float64{10, 20})
			So(background.Contents(), ShouldResemble, []float64{8, 22})
		})
	})

	Convey("Given identical observed and background contents", t, func() {
		edges := []float64{100, 150, 250, 500, 1000}
		contents := []float64{3, 17.5, 0.25, 1200}
		res, err := histo.ComputeRatios(series(edges, contents), series(edges, contents))

		Convey("Then every ratio is exactly one", func() {
			So(err, ShouldBeNil)
			for _, p := range res.Ratio {
				So(p.Value, ShouldEqual, 1.0)
			}
		})

		Convey("Then normalisation round-trips through the widths", func() {
			widths := res.NormalizedObserved.Widths()
			for i, c := range res.NormalizedObserved.Contents() {
				So(c*widths[i], ShouldAlmostEqual, contents[i], 1e-9)
			}
		})
	})

	Convey("Given an empty data bin", t, func() {
		edges := []float64{0, 1, 2}
		res, err := histo.ComputeRatios(
			series(edges, []float64{0, 4}, histo.Symmetric(1.8), histo.Symmetric(2)),
			series(edges, []float64{2, 4}),
		)

		Convey("Then the ratio error stays finite", func() {
			So(err, ShouldBeNil)
			So(res.Ratio[0].Value, ShouldEqual, 0)
			So(res.Ratio[0].Err, ShouldAlmostEqual, 0.9, 1e-12)
		})
	})

	Convey("Given a background bin with zero content", t, func() {
		edges := []float64{0, 1, 2}
		_, err := histo.ComputeRatios(series(edges, []float64{1, 1}), series(edges, []float64{1, 0}))

		Convey("Then a domain error is returned", func() {
			So(errors.Is(err, histo.ErrDomain), ShouldBeTrue)
			So(errors.Is(err, histo.ErrNonPositiveBackground), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "bin 1")
		})
	})

	Convey("Given series with different binning", t, func() {
		Convey("When the bin counts differ", func() {
			_, err := histo.ComputeRatios(
				series([]float64{0, 1, 2}, []float64{1, 1}),
				series([]float64{0, 1, 2, 3}, []float64{1, 1, 1}),
			)
			So(errors.Is(err, histo.ErrDomain), ShouldBeTrue)
			So(errors.Is(err, histo.ErrBinMismatch), ShouldBeTrue)
		})

		Convey("When an edge moves", func() {
			_, err := histo.ComputeRatios(
				series([]float64{0, 1, 2}, []float64{1, 1}),
				series([]float64{0, 1.5, 2}, []float64{1, 1}),
			)
			So(errors.Is(err, histo.ErrBinMismatch), ShouldBeTrue)
		})
	})
}
