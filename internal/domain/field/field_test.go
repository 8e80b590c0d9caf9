package field_test

import (
	"errors"
	"math"
	"testing"

	field "github.com/cosmostat/assembly/internal/domain/field"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSample(t *testing.T) {
	Convey("Given scalar values", t, func() {
		s := field.FromScalars([]float64{1, 2, 3})

		Convey("Then the sample is N x 1", func() {
			So(s.Len(), ShouldEqual, 3)
			So(s.Dim(), ShouldEqual, 1)
			So(s[1][0], ShouldEqual, 2)
		})

		Convey("And an empty sample has zero dimension", func() {
			So(field.Sample{}.Dim(), ShouldEqual, 0)
		})
	})
}

func TestJoin(t *testing.T) {
	Convey("Given two equal-length samples", t, func() {
		x := field.FromScalars([]float64{1, 2, 3})
		y := field.FromScalars([]float64{4, 5, 6})

		Convey("When joined", func() {
			joint, err := field.Join(x, y)

			Convey("Then coordinates are concatenated per point", func() {
				So(err, ShouldBeNil)
				So(joint.Len(), ShouldEqual, 3)
				So(joint.Dim(), ShouldEqual, 2)
				So(joint[0], ShouldResemble, []float64{1, 4})
				So(joint[2], ShouldResemble, []float64{3, 6})
			})
		})

		Convey("When lengths differ", func() {
			_, err := field.Join(x, field.FromScalars([]float64{1}))

			Convey("Then it fails with an input error", func() {
				So(errors.Is(err, field.ErrInvalidInput), ShouldBeTrue)
			})
		})
	})
}

func TestNewTimeSeries(t *testing.T) {
	Convey("Given parallel field and label slices", t, func() {
		fields := [][]float64{{1, 2}, {3, 4}, {5, 6}}
		labels := []float64{10, 5, 0}

		Convey("When they match", func() {
			ts, err := field.NewTimeSeries(fields, labels)

			Convey("Then the series is assembled in order", func() {
				So(err, ShouldBeNil)
				So(ts.Len(), ShouldEqual, 3)
				So(ts.Cells(), ShouldEqual, 2)
				So(ts.Snapshots[1].Label, ShouldEqual, 5)
				So(ts.Snapshots[2].Values, ShouldResemble, []float64{5, 6})
			})
		})

		Convey("When field and label counts differ", func() {
			_, err := field.NewTimeSeries(fields, []float64{10, 5})
			So(errors.Is(err, field.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When fewer than two snapshots are supplied", func() {
			_, err := field.NewTimeSeries([][]float64{{1, 2}}, []float64{0})
			So(errors.Is(err, field.ErrInsufficientData), ShouldBeTrue)
		})

		Convey("When grid sizes disagree", func() {
			_, err := field.NewTimeSeries([][]float64{{1, 2}, {3}}, []float64{1, 0})
			So(errors.Is(err, field.ErrInvalidInput), ShouldBeTrue)
		})
	})
}

func TestMISeries(t *testing.T) {
	Convey("Given a mutual information series", t, func() {
		s := field.MISeries{
			{Index: 0, MI: 2, Dt: 0.5},
			{Index: 1, MI: 3, Dt: 1},
			{Index: 2, MI: 0.5, Dt: 2},
		}

		Convey("Then integration sums mi*dt", func() {
			So(s.Integrate(), ShouldAlmostEqual, 2*0.5+3*1+0.5*2)
		})

		Convey("And splitting the series preserves the total", func() {
			So(s[:1].Integrate()+s[1:].Integrate(), ShouldAlmostEqual, s.Integrate())
		})

		Convey("And an empty series integrates to zero", func() {
			So(field.MISeries{}.Integrate(), ShouldEqual, 0)
		})

		Convey("And finiteness detects NaN and Inf", func() {
			So(s.Finite(), ShouldBeTrue)
			bad := append(field.MISeries{}, s...)
			bad[1].MI = math.NaN()
			So(bad.Finite(), ShouldBeFalse)
			bad[1].MI = 3
			bad[2].Dt = math.Inf(1)
			So(bad.Finite(), ShouldBeFalse)
		})
	})
}
