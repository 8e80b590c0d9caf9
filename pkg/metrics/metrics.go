// Package metrics provides Prometheus metrics for the assembly-index pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns all Prometheus metrics for the analyzer.
type Manager struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  prometheus.Registerer

	// Estimator metrics
	miComputations   prometheus.Counter
	miLatency        prometheus.Histogram
	miClamps         prometheus.Counter
	degenerateGeom   prometheus.Counter
	numericAnomalies prometheus.Counter

	// Engine metrics
	rateWarnings     prometheus.Counter
	analysisDuration prometheus.Histogram
	analysesTotal    prometheus.Counter

	// Ensemble metrics
	ensembleDraws     prometheus.Counter
	ensembleDiscarded prometheus.Counter
	ensembleWorkers   prometheus.Gauge
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithRegistry sets a custom Prometheus registerer.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithHistogramBuckets overrides the default latency buckets.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers all metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "assembly",
		subsystem: "analysis",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)

	m.miComputations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "mi_computations_total",
		Help:      "Total number of pairwise mutual information computations",
	})
	m.miLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "mi_latency_milliseconds",
		Help:      "Latency of a single mutual information computation in milliseconds",
		Buckets:   m.buckets,
	})
	m.miClamps = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "mi_clamp_events_total",
		Help:      "Total number of negative MI estimates clamped to zero",
	})
	m.degenerateGeom = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "degenerate_geometry_total",
		Help:      "Total number of zero-distance neighbour pairs recovered via the distance floor",
	})
	m.numericAnomalies = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "numeric_anomalies_total",
		Help:      "Total number of NaN/Inf or out-of-tolerance intermediates detected",
	})
	m.rateWarnings = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_warnings_total",
		Help:      "Total number of adaptive rate-of-change warnings raised by the engine",
	})
	m.analysisDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "duration_seconds",
		Help:      "Wall-clock duration of a full index computation in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})
	m.analysesTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_total",
		Help:      "Total number of completed index computations",
	})
	m.ensembleDraws = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ensemble_draws_total",
		Help:      "Total number of completed null-ensemble draws",
	})
	m.ensembleDiscarded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ensemble_discarded_total",
		Help:      "Total number of null-ensemble draws discarded as failed or non-finite",
	})
	m.ensembleWorkers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ensemble_workers",
		Help:      "Current number of ensemble draw workers",
	})

	return m
}

// Handler exposes the custom registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}

// Package-level helpers against the global manager.

// RecordMIComputation increments the mutual information computation counter.
func RecordMIComputation() {
	globalManager.miComputations.Inc()
}

// RecordMILatency records the latency of one MI computation in milliseconds.
func RecordMILatency(ms float64) {
	globalManager.miLatency.Observe(ms)
}

// RecordMIClamp increments the negative-MI clamp counter.
func RecordMIClamp() {
	globalManager.miClamps.Inc()
}

// RecordDegenerateGeometry increments the zero-distance recovery counter.
func RecordDegenerateGeometry() {
	globalManager.degenerateGeom.Inc()
}

// RecordNumericAnomaly increments the numeric anomaly counter.
func RecordNumericAnomaly() {
	globalManager.numericAnomalies.Inc()
}

// RecordRateWarning increments the adaptive rate warning counter.
func RecordRateWarning() {
	globalManager.rateWarnings.Inc()
}

// RecordAnalysisDuration records the wall-clock duration of a full run in seconds.
func RecordAnalysisDuration(s float64) {
	globalManager.analysisDuration.Observe(s)
}

// RecordAnalysisCompleted increments the completed analysis counter.
func RecordAnalysisCompleted() {
	globalManager.analysesTotal.Inc()
}

// RecordEnsembleDraw increments the completed null draw counter.
func RecordEnsembleDraw() {
	globalManager.ensembleDraws.Inc()
}

// RecordEnsembleDiscarded increments the discarded null draw counter.
func RecordEnsembleDiscarded() {
	globalManager.ensembleDiscarded.Inc()
}

// UpdateEnsembleWorkerCount sets the ensemble worker gauge.
func UpdateEnsembleWorkerCount(n int) {
	globalManager.ensembleWorkers.Set(float64(n))
}
