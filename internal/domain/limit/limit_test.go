package limit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/hepplot/internal/domain/curve"
	"github.com/okian/hepplot/internal/domain/limit"
	. "github.com/smartystreets/goconvey/convey"
)

func rows() []limit.Row {
	return []limit.Row{
		{Mass: 1.0, Expected: 2.0, Observed: 2.4, Low68: 0.5, High68: 0.7, Low95: 0.9, High95: 1.4},
		{Mass: 2.0, Expected: 0.8, Observed: 0.6, Low68: 0.2, High68: 0.3, Low95: 0.4, High95: 0.6},
		{Mass: 3.0, Expected: 0.2, Observed: 0.3, Low68: 0.05, High68: 0.08, Low95: 0.1, High95: 0.15},
	}
}

func theory(t *testing.T) limit.Theory {
	c, err := curve.New([]curve.Point{{X: 1, Y: 1.5}, {X: 2, Y: 1.0}, {X: 3, Y: 0.5}})
	if err != nil {
		t.Fatal(err)
	}
	th, err := limit.NewTheory(c, nil)
	if err != nil {
		t.Fatal(err)
	}
	return th
}

func TestBuildBands(t *testing.T) {
	Convey("Given a limit table", t, func() {
		b, err := limit.BuildBands(rows())
		So(err, ShouldBeNil)

		Convey("Then the expected and observed curves follow the rows", func() {
			So(b.Expected.Eval(2), ShouldEqual, 0.8)
			So(b.Observed.Eval(3), ShouldEqual, 0.3)
			So(b.Band68, ShouldHaveLength, 3)
			So(b.Band95[0], ShouldResemble, limit.BandPoint{X: 1, Center: 2, Low: 0.9, High: 1.4})
		})

		Convey("Then the band envelope runs along the top and back along the bottom", func() {
			env := b.Band68.Envelope()
			So(env, ShouldHaveLength, 6)
			So(env[0].X, ShouldEqual, 1)
			So(env[0].Y, ShouldAlmostEqual, 2.7, 1e-12)
			So(env[2].X, ShouldEqual, 3)
			So(env[3].X, ShouldEqual, 3)
			So(env[5], ShouldResemble, curve.Point{X: 1, Y: 1.5})
		})

		Convey("Then the y range pads the expected limit", func() {
			ymin, ymax := limit.YRange(b)
			So(ymax, ShouldEqual, 30)
			So(ymin, ShouldAlmostEqual, 0.001*0.33, 1e-15)
		})
	})

	Convey("Given invalid tables", t, func() {
		_, err := limit.BuildBands(nil)
		So(errors.Is(err, limit.ErrNoRows), ShouldBeTrue)

		bad := rows()
		bad[1].Low95 = -1
		_, err = limit.BuildBands(bad)
		So(errors.Is(err, limit.ErrBadBand), ShouldBeTrue)

		unordered := rows()
		unordered[0].Mass = 5
		_, err = limit.BuildBands(unordered)
		So(errors.Is(err, curve.ErrInvalidCurve), ShouldBeTrue)
	})
}

func TestMassLimits(t *testing.T) {
	Convey("Given limits that fall through a theory curve", t, func() {
		b, err := limit.BuildBands(rows())
		So(err, ShouldBeNil)

		ml, err := limit.MassLimits(context.Background(), b, theory(t))

		Convey("Then both crossings are found", func() {
			So(err, ShouldBeNil)
			// expected: 2 - 1.2(x-1) = 1.5 - 0.5(x-1) on the first segment -> x = 1 + 0.5/0.7
			So(ml.Expected.X, ShouldAlmostEqual, 1+0.5/0.7, 0.01)
			// observed: 2.4 - 1.8(x-1) = 1.5 - 0.5(x-1) -> x = 1 + 0.9/1.3
			So(ml.Observed.X, ShouldAlmostEqual, 1+0.9/1.3, 0.01)
			So(ml.Warnings(), ShouldBeEmpty)
		})
	})

	Convey("Given an iteration cap of one", t, func() {
		b, _ := limit.BuildBands(rows())
		ml, err := limit.MassLimits(context.Background(), b, theory(t), curve.WithMaxIterations(1))

		Convey("Then both results carry a warning", func() {
			So(err, ShouldBeNil)
			So(ml.Warnings(), ShouldContainKey, "expected")
			So(ml.Warnings(), ShouldContainKey, "observed")
		})
	})

	Convey("Given a theory curve far above the limits", t, func() {
		b, _ := limit.BuildBands(rows())
		c, _ := curve.New([]curve.Point{{X: 0, Y: 100}, {X: 5, Y: 100}})
		_, err := limit.MassLimits(context.Background(), b, limit.Theory{Curve: c})

		Convey("Then the missing crossing is reported", func() {
			So(errors.Is(err, limit.ErrNotCrossed), ShouldBeTrue)
			So(errors.Is(err, curve.ErrNoSignChange), ShouldBeTrue)
		})
	})

	Convey("Given theory errors", t, func() {
		c, _ := curve.New([]curve.Point{{X: 1, Y: 1}, {X: 2, Y: 0.5}})

		th, err := limit.NewTheory(c, []float64{0.1, 0.05})
		So(err, ShouldBeNil)
		So(th.Band()[1], ShouldResemble, limit.BandPoint{X: 2, Center: 0.5, Low: 0.05, High: 0.05})

		_, err = limit.NewTheory(c, []float64{0.1})
		So(errors.Is(err, limit.ErrBadTheory), ShouldBeTrue)
	})
}
