// Package assembly drives the entropy estimator across an ordered sequence of
// field snapshots and integrates the mutual information series into a single
// assembly index.
package assembly

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cosmostat/assembly/internal/domain/entropy"
	"github.com/cosmostat/assembly/internal/domain/field"
	"github.com/cosmostat/assembly/pkg/logger"
	"github.com/cosmostat/assembly/pkg/metrics"
)

// Default engine configuration constants.
const (
	// DefaultRateThreshold is the adaptive rate-of-change warning threshold,
	// in estimator units per Gyr.
	DefaultRateThreshold = 0.1
)

// Budget names the systematic error sources combined in quadrature when no
// per-run error model is supplied. The defaults are a conservative placeholder
// budget in bits, not a measured quantity.
type Budget struct {
	Resolution float64
	Temporal   float64
	EstimatorK float64
	Ensemble   float64
}

// DefaultBudget returns the placeholder systematic budget.
func DefaultBudget() Budget {
	return Budget{Resolution: 1.2, Temporal: 0.8, EstimatorK: 0.5, Ensemble: 2.1}
}

// quadrature combines the named sources into one uncertainty.
func (b Budget) quadrature() float64 {
	return math.Sqrt(b.Resolution*b.Resolution +
		b.Temporal*b.Temporal +
		b.EstimatorK*b.EstimatorK +
		b.Ensemble*b.Ensemble)
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithEstimator sets the entropy estimator.
func WithEstimator(e *entropy.Estimator) Option {
	return func(g *Engine) {
		if e != nil {
			g.est = e
		}
	}
}

// WithTimeMapper sets the label-to-time transform.
func WithTimeMapper(m TimeMapper) Option {
	return func(g *Engine) {
		if m != nil {
			g.mapTime = m
		}
	}
}

// WithRateThreshold sets the adaptive rate-of-change warning threshold.
func WithRateThreshold(t float64) Option {
	return func(g *Engine) {
		if t > 0 {
			g.rateThreshold = t
		}
	}
}

// WithAdaptiveCheck enables or disables the rate-of-change check.
func WithAdaptiveCheck(enabled bool) Option {
	return func(g *Engine) { g.adaptive = enabled }
}

// WithBudget sets the systematic error budget.
func WithBudget(b Budget) Option {
	return func(g *Engine) { g.budget = b }
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(g *Engine) {
		if l != nil {
			g.log = l
		}
	}
}

// Engine computes the assembly index of a snapshot time series. Stateless
// apart from configuration; safe for concurrent use.
type Engine struct {
	est           *entropy.Estimator
	mapTime       TimeMapper
	adaptive      bool
	rateThreshold float64
	budget        Budget
	log           logger.Logger
}

// New creates an Engine with configuration options.
func New(opts ...Option) *Engine {
	g := &Engine{
		mapTime:       RedshiftAge(DefaultAgeGyr),
		adaptive:      true,
		rateThreshold: DefaultRateThreshold,
		budget:        DefaultBudget(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.est == nil {
		g.est = entropy.New()
	}
	if g.log == nil {
		g.log = logger.Get().Named("assembly")
	}
	return g
}

// Compute canonicalizes the series ordering, estimates mutual information
// over consecutive snapshot pairs, and integrates mi*dt into the index. The
// returned result is unclassified: status needs the null ensemble.
func (g *Engine) Compute(ctx context.Context, ts field.TimeSeries) (field.Result, error) {
	start := time.Now()

	n := ts.Len()
	if n < 2 {
		return field.Result{}, fmt.Errorf("%w: need at least 2 snapshots, got %d", ErrInsufficientData, n)
	}

	// Canonical order: mapped time ascending, stable, ties by input position.
	// Shuffled or reversed input yields the same result as canonical input.
	order := make([]int, n)
	times := make([]float64, n)
	for i := range order {
		order[i] = i
		times[i] = g.mapTime(ts.Snapshots[i].Label)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return times[order[a]] < times[order[b]]
	})

	series := make(field.MISeries, 0, n-1)
	var warnings []field.Warning

	for i := 0; i < n-1; i++ {
		cur, next := order[i], order[i+1]
		x := ts.Snapshots[cur].Sample()
		y := ts.Snapshots[next].Sample()

		mi, err := g.est.MutualInformation(ctx, x, y)
		if err != nil {
			return field.Result{}, fmt.Errorf("interval %d: %w", i, err)
		}
		dt := math.Abs(times[next] - times[cur])
		series = append(series, field.Interval{Index: i, MI: mi, Dt: dt})

		if g.adaptive && i > 0 && dt > 0 {
			rate := math.Abs(mi-series[i-1].MI) / dt
			if rate > g.rateThreshold {
				metrics.RecordRateWarning()
				w := field.Warning{
					Interval: i,
					Message:  "rapid index change over interval",
					Value:    rate,
				}
				warnings = append(warnings, w)
				g.log.Warn(ctx, "rapid index change",
					logger.Int("interval", i),
					logger.Float64("rate", rate),
					logger.Float64("threshold", g.rateThreshold),
				)
			}
		}
	}

	if !series.Finite() {
		metrics.RecordNumericAnomaly()
		return field.Result{}, fmt.Errorf("%w: non-finite value in MI series", entropy.ErrNumericAnomaly)
	}

	res := field.Result{
		Index:       series.Integrate(),
		Uncertainty: g.budget.quadrature(),
		Unit:        g.est.Unit().String(),
		Series:      series,
		Status:      field.StatusUnclassified,
		Warnings:    warnings,
	}

	metrics.RecordAnalysisCompleted()
	metrics.RecordAnalysisDuration(time.Since(start).Seconds())
	return res, nil
}
