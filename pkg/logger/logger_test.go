package logger_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cosmostat/assembly/pkg/logger"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given a logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(logger.InitWithWriter(&buf), ShouldBeNil)
		ctx := context.Background()
		log := logger.Get()

		Convey("When logging at info level", func() {
			log.Info(ctx, "series loaded",
				logger.String("path", "series.json"),
				logger.Int("snapshots", 25),
			)

			Convey("Then the message and fields appear", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "series loaded")
				So(out, ShouldContainSubstring, "path=series.json")
				So(out, ShouldContainSubstring, "snapshots=25")
			})
		})

		Convey("When logging below the configured level", func() {
			So(logger.SetLevelString("warn"), ShouldBeNil)
			log.Info(ctx, "should be suppressed")
			log.Warn(ctx, "should appear")

			out := buf.String()
			So(out, ShouldNotContainSubstring, "should be suppressed")
			So(out, ShouldContainSubstring, "should appear")

			So(logger.SetLevelString("info"), ShouldBeNil)
		})

		Convey("When logging an error field", func() {
			log.Error(ctx, "analysis failed", logger.Error(errors.New("broken input")))
			So(buf.String(), ShouldContainSubstring, "broken input")
		})

		Convey("When using a named logger", func() {
			logger.Named("entropy").Info(ctx, "estimator ready", logger.Int("k", 4))
			out := buf.String()
			So(out, ShouldContainSubstring, "estimator ready")
			So(out, ShouldContainSubstring, "entropy.k=4")
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level names", t, func() {
		var buf strings.Builder
		So(logger.InitWithWriter(&buf), ShouldBeNil)

		Convey("Then known names parse", func() {
			for _, lvl := range []string{"debug", "info", "warn", "warning", "error", ""} {
				So(logger.SetLevelString(lvl), ShouldBeNil)
			}
		})

		Convey("Then unknown names fail", func() {
			So(logger.SetLevelString("verbose"), ShouldNotBeNil)
		})
	})
}
