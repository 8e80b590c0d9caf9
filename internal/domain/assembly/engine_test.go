package assembly_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"os"
	"testing"

	assembly "github.com/cosmostat/assembly/internal/domain/assembly"
	field "github.com/cosmostat/assembly/internal/domain/field"
	"github.com/cosmostat/assembly/pkg/logger"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// correlatedSeries builds a slowly-evolving field so consecutive snapshots
// share information.
func correlatedSeries(seed int64, snapshots, cells int, labels []float64) field.TimeSeries {
	rng := rand.New(rand.NewSource(seed))
	rho := make([]float64, cells)
	for c := range rho {
		rho[c] = rng.NormFloat64()
	}
	fields := make([][]float64, snapshots)
	for j := 0; j < snapshots; j++ {
		next := make([]float64, cells)
		for c := range next {
			next[c] = 0.9*rho[c] + 0.1*rng.NormFloat64()
		}
		rho = next
		fields[j] = next
	}
	ts, err := field.NewTimeSeries(fields, labels)
	if err != nil {
		panic(err)
	}
	return ts
}

func TestComputeBoundary(t *testing.T) {
	Convey("Given a series of exactly two snapshots", t, func() {
		ts := correlatedSeries(1, 2, 300, []float64{0, 1})
		eng := assembly.New(assembly.WithTimeMapper(assembly.IdentityTime()))

		Convey("When computing the index", func() {
			res, err := eng.Compute(context.Background(), ts)
			So(err, ShouldBeNil)

			Convey("Then a single interval carries the whole index", func() {
				So(len(res.Series), ShouldEqual, 1)
				So(res.Series[0].Dt, ShouldEqual, 1)
				So(res.Index, ShouldAlmostEqual, res.Series[0].MI*res.Series[0].Dt)
				So(res.Index, ShouldBeGreaterThan, 0)
			})

			Convey("And the result is unclassified with the budget uncertainty", func() {
				So(res.Status, ShouldEqual, field.StatusUnclassified)
				So(res.Unit, ShouldEqual, "bits")
				b := assembly.DefaultBudget()
				want := math.Sqrt(b.Resolution*b.Resolution + b.Temporal*b.Temporal +
					b.EstimatorK*b.EstimatorK + b.Ensemble*b.Ensemble)
				So(res.Uncertainty, ShouldAlmostEqual, want)
			})
		})
	})
}

func TestComputeOrderInvariance(t *testing.T) {
	Convey("Given the same snapshots in different label orders", t, func() {
		labels := []float64{0, 1, 2, 3, 4}
		ts := correlatedSeries(2, 5, 250, labels)
		eng := assembly.New(assembly.WithTimeMapper(assembly.IdentityTime()))

		canonical, err := eng.Compute(context.Background(), ts)
		So(err, ShouldBeNil)

		Convey("When the series is reversed", func() {
			rev := field.TimeSeries{Snapshots: make([]field.Snapshot, len(ts.Snapshots))}
			for i, s := range ts.Snapshots {
				rev.Snapshots[len(ts.Snapshots)-1-i] = s
			}
			res, err := eng.Compute(context.Background(), rev)
			So(err, ShouldBeNil)

			Convey("Then the result matches the canonical order", func() {
				So(res, ShouldResemble, canonical)
			})
		})

		Convey("When the series is shuffled", func() {
			perm := []int{3, 0, 4, 1, 2}
			shuf := field.TimeSeries{Snapshots: make([]field.Snapshot, len(ts.Snapshots))}
			for i, p := range perm {
				shuf.Snapshots[i] = ts.Snapshots[p]
			}
			res, err := eng.Compute(context.Background(), shuf)
			So(err, ShouldBeNil)

			Convey("Then the result matches the canonical order", func() {
				So(res, ShouldResemble, canonical)
			})
		})
	})
}

func TestComputeRedshiftLabels(t *testing.T) {
	Convey("Given redshift labels under the default time mapping", t, func() {
		// Labels run from high redshift to the present.
		ts := correlatedSeries(3, 4, 250, []float64{12, 6, 2, 0})
		eng := assembly.New()

		Convey("When computing the index", func() {
			res, err := eng.Compute(context.Background(), ts)
			So(err, ShouldBeNil)

			Convey("Then intervals span the mapped time steps", func() {
				So(len(res.Series), ShouldEqual, 3)
				mapTime := assembly.RedshiftAge(assembly.DefaultAgeGyr)
				total := math.Abs(mapTime(12) - mapTime(0))
				var sum float64
				for _, iv := range res.Series {
					sum += iv.Dt
				}
				So(sum, ShouldAlmostEqual, total, 1e-9)
			})
		})
	})
}

func TestComputeRateWarnings(t *testing.T) {
	Convey("Given a series with an abrupt information drop", t, func() {
		rng := rand.New(rand.NewSource(4))
		base := make([]float64, 200)
		noise := make([]float64, 200)
		for c := range base {
			base[c] = rng.NormFloat64()
			noise[c] = rng.NormFloat64()
		}
		// Two identical snapshots followed by unrelated noise.
		fields := [][]float64{base, base, noise}
		ts, err := field.NewTimeSeries(fields, []float64{0, 0.1, 0.2})
		So(err, ShouldBeNil)

		Convey("When the adaptive check is on", func() {
			eng := assembly.New(assembly.WithTimeMapper(assembly.IdentityTime()))
			res, err := eng.Compute(context.Background(), ts)
			So(err, ShouldBeNil)

			Convey("Then the drop raises a non-fatal warning", func() {
				So(len(res.Warnings), ShouldEqual, 1)
				So(res.Warnings[0].Interval, ShouldEqual, 1)
				So(res.Warnings[0].Value, ShouldBeGreaterThan, assembly.DefaultRateThreshold)
			})
		})

		Convey("When the adaptive check is off", func() {
			eng := assembly.New(
				assembly.WithTimeMapper(assembly.IdentityTime()),
				assembly.WithAdaptiveCheck(false),
			)
			res, err := eng.Compute(context.Background(), ts)
			So(err, ShouldBeNil)
			So(res.Warnings, ShouldBeEmpty)
		})
	})
}

func TestComputeInsufficientData(t *testing.T) {
	Convey("Given fewer than two snapshots", t, func() {
		eng := assembly.New()
		ts := field.TimeSeries{Snapshots: []field.Snapshot{{Values: []float64{1, 2, 3}, Label: 0}}}

		Convey("When computing the index", func() {
			_, err := eng.Compute(context.Background(), ts)
			So(errors.Is(err, assembly.ErrInsufficientData), ShouldBeTrue)
		})
	})
}

func TestTimeMappers(t *testing.T) {
	Convey("Given the redshift time mapping", t, func() {
		mapTime := assembly.RedshiftAge(13.8)

		Convey("Then it is zero at the present and monotonic in z", func() {
			So(mapTime(0), ShouldEqual, 0)
			So(mapTime(1), ShouldBeGreaterThan, mapTime(0))
			So(mapTime(20), ShouldBeGreaterThan, mapTime(1))
			So(mapTime(20), ShouldBeLessThan, 13.8)
		})
	})

	Convey("Given the identity mapping", t, func() {
		So(assembly.IdentityTime()(3.5), ShouldEqual, 3.5)
	})
}
