package curve_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/hepplot/internal/domain/curve"
	. "github.com/smartystreets/goconvey/convey"
)

func mustCurve(points ...curve.Point) curve.SampledCurve {
	c, err := curve.New(points)
	if err != nil {
		panic(err)
	}
	return c
}

// dense samples y = f(x) on [lo, hi] with n+1 points.
func sample(lo, hi float64, n int, f func(float64) float64) curve.SampledCurve {
	pts := make([]curve.Point, n+1)
	for i := 0; i <= n; i++ {
		x := lo + (hi-lo)*float64(i)/float64(n)
		pts[i] = curve.Point{X: x, Y: f(x)}
	}
	return mustCurve(pts...)
}

func TestSampledCurve(t *testing.T) {
	Convey("Given a three point curve", t, func() {
		c := mustCurve(
			curve.Point{X: 0, Y: 0},
			curve.Point{X: 1, Y: 2},
			curve.Point{X: 3, Y: 0},
		)

		Convey("Then the domain spans the first and last sample", func() {
			lo, hi := c.Domain()
			So(lo, ShouldEqual, 0)
			So(hi, ShouldEqual, 3)
			So(c.Len(), ShouldEqual, 3)
		})

		Convey("When evaluating on a sample", func() {
			So(c.Eval(0), ShouldEqual, 0)
			So(c.Eval(1), ShouldEqual, 2)
			So(c.Eval(3), ShouldEqual, 0)
		})

		Convey("When evaluating between samples it interpolates linearly", func() {
			So(c.Eval(0.5), ShouldAlmostEqual, 1.0, 1e-12)
			So(c.Eval(2), ShouldAlmostEqual, 1.0, 1e-12)
		})

		Convey("When evaluating outside the domain it extends the edge segments", func() {
			So(c.Eval(-1), ShouldAlmostEqual, -2.0, 1e-12)
			So(c.Eval(4), ShouldAlmostEqual, -1.0, 1e-12)
		})

		Convey("Then Points returns a copy", func() {
			pts := c.Points()
			pts[0].Y = 99
			So(c.Eval(0), ShouldEqual, 0)
		})

		Convey("Then MinY and MaxY report the sample extremes", func() {
			So(c.MinY(), ShouldEqual, 0)
			So(c.MaxY(), ShouldEqual, 2)
		})
	})

	Convey("Given a single point curve", t, func() {
		c := mustCurve(curve.Point{X: 2, Y: 7})

		Convey("Then it evaluates to a constant", func() {
			So(c.Eval(-10), ShouldEqual, 7)
			So(c.Eval(100), ShouldEqual, 7)
		})
	})

	Convey("Given invalid samples", t, func() {
		Convey("When there are none", func() {
			_, err := curve.New(nil)
			So(errors.Is(err, curve.ErrInvalidCurve), ShouldBeTrue)
		})

		Convey("When x is not strictly increasing", func() {
			_, err := curve.New([]curve.Point{{X: 1, Y: 0}, {X: 1, Y: 1}})
			So(errors.Is(err, curve.ErrInvalidCurve), ShouldBeTrue)
		})

		Convey("When a sample is NaN", func() {
			_, err := curve.New([]curve.Point{{X: 0, Y: math.NaN()}})
			So(errors.Is(err, curve.ErrInvalidCurve), ShouldBeTrue)
		})

		Convey("When parallel slices differ in length", func() {
			_, err := curve.FromXY([]float64{1, 2}, []float64{1})
			So(errors.Is(err, curve.ErrInvalidCurve), ShouldBeTrue)
		})
	})
}
