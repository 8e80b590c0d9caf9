package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	config "github.com/cosmostat/assembly/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadDefaults(t *testing.T) {
	Convey("Given no overrides", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then the defaults apply", func() {
			So(err, ShouldBeNil)
			So(cfg.Neighbors, ShouldEqual, 4)
			So(cfg.Norm, ShouldEqual, "max")
			So(cfg.Unit, ShouldEqual, "bits")
			So(cfg.EnsembleSize, ShouldEqual, 1000)
			So(cfg.Seed, ShouldEqual, 42)
			So(cfg.AgeGyr, ShouldEqual, 13.8)
			So(cfg.RateThreshold, ShouldEqual, 0.1)
			So(cfg.MaxFailFraction, ShouldEqual, 0.2)
			So(cfg.Null.Alpha, ShouldEqual, 0.9)
			So(cfg.Null.MaxRedshift, ShouldEqual, 20)
			So(cfg.Budget.Ensemble, ShouldEqual, 2.1)
		})
	})
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ASSEMBLY_NEIGHBORS", "6")
	t.Setenv("ASSEMBLY_UNIT", "nats")
	t.Setenv("ASSEMBLY_ENSEMBLE_SIZE", "50")
	t.Setenv("ASSEMBLY_NULL_MODEL__ALPHA", "0.5")
	t.Setenv("ASSEMBLY_BUDGET__TEMPORAL", "1.1")

	Convey("Given environment overrides", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then env values win over defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Neighbors, ShouldEqual, 6)
			So(cfg.Unit, ShouldEqual, "nats")
			So(cfg.EnsembleSize, ShouldEqual, 50)
			So(cfg.Null.Alpha, ShouldEqual, 0.5)
			So(cfg.Budget.Temporal, ShouldEqual, 1.1)

			Convey("And untouched keys keep their defaults", func() {
				So(cfg.Norm, ShouldEqual, "max")
				So(cfg.Seed, ShouldEqual, 42)
			})
		})
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assembly.yaml")
	doc := []byte("neighbors: 8\nnorm: euclidean\nnull_model:\n  noise_sigma: 0.2\n")
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ASSEMBLY_CONFIG", path)
	t.Setenv("ASSEMBLY_NEIGHBORS", "12")

	Convey("Given a config file and an env override", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then the file overrides defaults and env overrides the file", func() {
			So(err, ShouldBeNil)
			So(cfg.Norm, ShouldEqual, "euclidean")
			So(cfg.Null.NoiseSigma, ShouldEqual, 0.2)
			So(cfg.Neighbors, ShouldEqual, 12)
		})
	})

	Convey("Given a missing config file", t, func() {
		t.Setenv("ASSEMBLY_CONFIG", filepath.Join(dir, "absent.yaml"))
		_, err := config.Load(context.Background())
		So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
	})
}

func TestLoadValidation(t *testing.T) {
	Convey("Given invalid settings", t, func() {
		cases := map[string]string{
			"ASSEMBLY_NEIGHBORS":         "0",
			"ASSEMBLY_NORM":              "manhattan",
			"ASSEMBLY_UNIT":              "hartleys",
			"ASSEMBLY_ENSEMBLE_SIZE":     "0",
			"ASSEMBLY_MAX_FAIL_FRACTION": "1.5",
			"ASSEMBLY_NULL_MODEL__ALPHA": "1.0",
			"ASSEMBLY_WORKER_COUNT":      "0",
		}
		for key, val := range cases {
			key, val := key, val
			Convey("When "+key+" is "+val, func() {
				t.Setenv(key, val)
				_, err := config.Load(context.Background())
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		}
	})
}
