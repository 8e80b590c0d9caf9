package service_test

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"testing"

	app "github.com/cosmostat/assembly/internal/app"
	field "github.com/cosmostat/assembly/internal/domain/field"
	nullmodel "github.com/cosmostat/assembly/internal/domain/nullmodel"
	"github.com/cosmostat/assembly/pkg/logger"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func observedSeries(seed int64) field.TimeSeries {
	ts, err := nullmodel.DefaultParams().Series(
		rand.New(rand.NewSource(seed)),
		nullmodel.Shape{Snapshots: 5, Cells: 150},
	)
	if err != nil {
		panic(err)
	}
	ts.Metadata = map[string]string{"survey": "test"}
	return ts
}

func TestServiceAnalyze(t *testing.T) {
	Convey("Given a started service with a small ensemble", t, func() {
		ctx := context.Background()
		svc := app.New(
			app.WithEnsembleSize(12),
			app.WithWorkerCount(4),
			app.WithSeed(7),
		)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When analyzing an observed series", func() {
			report, err := svc.Analyze(ctx, observedSeries(99))
			So(err, ShouldBeNil)

			Convey("Then the report carries the full pipeline outcome", func() {
				So(report.RunID, ShouldNotBeEmpty)
				So(report.Result.Index, ShouldBeGreaterThanOrEqualTo, 0)
				So(report.Result.Status, ShouldNotEqual, field.StatusUnclassified)
				So(report.Ensemble.N, ShouldBeGreaterThan, 1)
				So(report.Ensemble.Std, ShouldBeGreaterThan, 0)
				So(report.Parameters.Neighbors, ShouldEqual, 4)
				So(report.Parameters.EnsembleSize, ShouldEqual, 12)
				So(report.Parameters.Seed, ShouldEqual, 7)
				So(report.Metadata["survey"], ShouldEqual, "test")
			})

			Convey("And the run is recorded", func() {
				So(svc.RunCount(ctx), ShouldEqual, 1)
				recent, err := svc.Recent(ctx, 5)
				So(err, ShouldBeNil)
				So(len(recent), ShouldEqual, 1)
				So(recent[0].ID, ShouldEqual, report.RunID)
				So(recent[0].Status, ShouldEqual, report.Result.Status)
			})

			Convey("And a second run over the same input is consistent", func() {
				again, err := svc.Analyze(ctx, observedSeries(99))
				So(err, ShouldBeNil)
				So(again.Result.Index, ShouldEqual, report.Result.Index)
				So(again.Significance.ZScore, ShouldEqual, report.Significance.ZScore)
				So(again.RunID, ShouldNotEqual, report.RunID)
				So(svc.RunCount(ctx), ShouldEqual, 2)
			})
		})
	})
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given an unstarted service", t, func() {
		svc := app.New()

		Convey("When analyzing before Start", func() {
			_, err := svc.Analyze(context.Background(), observedSeries(1))
			So(errors.Is(err, app.ErrNotStarted), ShouldBeTrue)
		})
	})

	Convey("Given invalid estimator settings", t, func() {
		Convey("When the norm is unknown", func() {
			svc := app.New(app.WithNorm("manhattan"))
			So(svc.Start(context.Background()), ShouldNotBeNil)
		})

		Convey("When the unit is unknown", func() {
			svc := app.New(app.WithUnit("hartleys"))
			So(svc.Start(context.Background()), ShouldNotBeNil)
		})
	})

	Convey("Given a started service", t, func() {
		svc := app.New(app.WithEnsembleSize(4))
		So(svc.Start(context.Background()), ShouldBeNil)

		Convey("When Start is called again", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
		})
	})
}
