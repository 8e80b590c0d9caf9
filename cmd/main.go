package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cosmostat/assembly/internal/adapters/loader"
	app "github.com/cosmostat/assembly/internal/app"
	"github.com/cosmostat/assembly/internal/config"
	"github.com/cosmostat/assembly/internal/domain/assembly"
	"github.com/cosmostat/assembly/internal/domain/field"
	"github.com/cosmostat/assembly/internal/domain/nullmodel"
	"github.com/cosmostat/assembly/pkg/logger"
	"github.com/cosmostat/assembly/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics listener timeout constants.
const (
	readHeaderTimeout = 5 * time.Second
	reportFileMode    = 0o644
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since the logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Optional Prometheus listener for watching a long analysis.
	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, log)
	}

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithNeighbors(cfg.Neighbors),
		app.WithNorm(cfg.Norm),
		app.WithUnit(cfg.Unit),
		app.WithRateThreshold(cfg.RateThreshold),
		app.WithAgeGyr(cfg.AgeGyr),
		app.WithEnsembleSize(cfg.EnsembleSize),
		app.WithSeed(cfg.Seed),
		app.WithMaxFailFraction(cfg.MaxFailFraction),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithNullParams(nullmodel.Params{
			Alpha:           cfg.Null.Alpha,
			StructureAmp:    cfg.Null.StructureAmp,
			StructureCycles: cfg.Null.StructureCycles,
			PhaseStep:       cfg.Null.PhaseStep,
			NoiseSigma:      cfg.Null.NoiseSigma,
			InitMean:        cfg.Null.InitMean,
			InitSigma:       cfg.Null.InitSigma,
			MaxRedshift:     cfg.Null.MaxRedshift,
		}),
		app.WithBudget(assembly.Budget{
			Resolution: cfg.Budget.Resolution,
			Temporal:   cfg.Budget.Temporal,
			EstimatorK: cfg.Budget.EstimatorK,
			Ensemble:   cfg.Budget.Ensemble,
		}),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}

	var ts field.TimeSeries
	if cfg.Input != "" {
		ts, err = loader.Load(ctx, cfg.Input)
	} else {
		ts, err = loader.Synthetic(ctx, cfg.Seed)
	}
	if err != nil {
		log.Error(ctx, "failed to prepare input series", logger.Error(err))
		os.Exit(1)
	}

	report, err := svc.Analyze(ctx, ts)
	if err != nil {
		log.Error(ctx, "analysis failed", logger.Error(err))
		os.Exit(1)
	}

	if err := writeReport(report, cfg.Output); err != nil {
		log.Error(ctx, "failed to write report", logger.Error(err))
		os.Exit(1)
	}

	log.Info(ctx, "report written",
		logger.String("run_id", report.RunID),
		logger.String("status", string(report.Result.Status)),
	)
}

// writeReport serializes the report to the output path, or stdout when no
// path is configured.
func writeReport(report app.Report, path string) error {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')

	if path == "" {
		_, err = os.Stdout.Write(raw)
		return err
	}
	return os.WriteFile(path, raw, reportFileMode)
}

// serveMetrics exposes the Prometheus registry until the context ends.
func serveMetrics(ctx context.Context, addr string, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), readHeaderTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info(ctx, "metrics listener started", logger.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn(ctx, "metrics listener failed", logger.Error(err))
	}
}
