// Package nullmodel generates ensembles of synthetic correlated random-field
// series, runs the assembly engine on each, and judges an observed index
// against the resulting baseline distribution.
package nullmodel

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"github.com/cosmostat/assembly/internal/domain/assembly"
	"github.com/cosmostat/assembly/internal/domain/field"
	"github.com/cosmostat/assembly/pkg/logger"
	"github.com/cosmostat/assembly/pkg/metrics"

	"github.com/montanaflynn/stats"
)

// Default generator configuration constants.
const (
	// DefaultMaxFailFraction bounds the fraction of draws that may be
	// discarded before the ensemble is considered invalid.
	DefaultMaxFailFraction = 0.2
)

// Params holds the constants of the autoregressive null-field generator.
// Every value the generator uses appears here exactly once; nothing is
// hard-coded at a call site.
type Params struct {
	// Alpha is the memory coefficient of the field update
	// field <- Alpha*field + (1-Alpha)*structure + noise.
	Alpha float64

	// StructureAmp scales the deterministic oscillatory structure term.
	StructureAmp float64

	// StructureCycles is the number of full sine cycles across the grid.
	StructureCycles float64

	// PhaseStep advances the structure phase per snapshot.
	PhaseStep float64

	// NoiseSigma is the standard deviation of the fresh per-step noise.
	NoiseSigma float64

	// InitMean and InitSigma parameterize the initial Gaussian field.
	InitMean  float64
	InitSigma float64

	// MaxRedshift is the label of the earliest snapshot; labels run linearly
	// from MaxRedshift down to zero.
	MaxRedshift float64
}

// DefaultParams returns the reference generator constants.
func DefaultParams() Params {
	return Params{
		Alpha:           0.9,
		StructureAmp:    0.3,
		StructureCycles: 2,
		PhaseStep:       0.2,
		NoiseSigma:      0.05,
		InitMean:        1.0,
		InitSigma:       0.5,
		MaxRedshift:     20,
	}
}

// Shape is the snapshot count and grid size a synthetic series must match.
type Shape struct {
	Snapshots int
	Cells     int
}

// ShapeOf extracts the shape of a real series, used as the null template.
func ShapeOf(ts field.TimeSeries) Shape {
	return Shape{Snapshots: ts.Len(), Cells: ts.Cells()}
}

// Series synthesizes one correlated random-field series from the given
// source. The caller owns the source; draws with distinct sources are fully
// independent of scheduling.
func (p Params) Series(rng *rand.Rand, shape Shape) (field.TimeSeries, error) {
	if shape.Snapshots < 2 || shape.Cells < 1 {
		return field.TimeSeries{}, fmt.Errorf("%w: shape %dx%d", ErrInsufficientData, shape.Snapshots, shape.Cells)
	}

	rho := make([]float64, shape.Cells)
	for c := range rho {
		rho[c] = p.InitMean + p.InitSigma*rng.NormFloat64()
	}

	fields := make([][]float64, shape.Snapshots)
	labels := make([]float64, shape.Snapshots)
	span := float64(shape.Cells - 1)
	if span == 0 {
		span = 1
	}
	for j := 0; j < shape.Snapshots; j++ {
		next := make([]float64, shape.Cells)
		for c := range next {
			phase := 2 * math.Pi * p.StructureCycles * float64(c) / span
			structure := p.StructureAmp * math.Sin(phase+float64(j)*p.PhaseStep)
			next[c] = p.Alpha*rho[c] + (1-p.Alpha)*structure + p.NoiseSigma*rng.NormFloat64()
		}
		rho = next
		fields[j] = next
		labels[j] = p.MaxRedshift * (1 - float64(j)/float64(shape.Snapshots-1))
	}

	return field.NewTimeSeries(fields, labels)
}

// Ensemble is the baseline distribution of index values from independent
// synthetic draws.
type Ensemble struct {
	Values    []float64 `json:"-"`
	Mean      float64   `json:"mean"`
	Std       float64   `json:"std"`
	N         int       `json:"n"`
	Discarded int       `json:"discarded"`
	Seed      int64     `json:"seed"`
}

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithParams sets the null-field generator constants.
func WithParams(p Params) Option {
	return func(g *Generator) { g.params = p }
}

// WithEngine sets the assembly engine run on each draw.
func WithEngine(e *assembly.Engine) Option {
	return func(g *Generator) {
		if e != nil {
			g.engine = e
		}
	}
}

// WithWorkerCount sets the number of draw workers.
func WithWorkerCount(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithMaxFailFraction sets the tolerated fraction of discarded draws.
func WithMaxFailFraction(f float64) Option {
	return func(g *Generator) {
		if f >= 0 && f < 1 {
			g.maxFailFraction = f
		}
	}
}

// WithLogger sets a custom logger for the generator.
func WithLogger(l logger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

// Generator builds null ensembles.
type Generator struct {
	params          Params
	engine          *assembly.Engine
	workers         int
	maxFailFraction float64
	log             logger.Logger
}

// NewGenerator creates a Generator with configuration options.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		params:          DefaultParams(),
		workers:         runtime.NumCPU(),
		maxFailFraction: DefaultMaxFailFraction,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.engine == nil {
		g.engine = assembly.New(assembly.WithAdaptiveCheck(false))
	}
	if g.log == nil {
		g.log = logger.Get().Named("nullmodel")
	}
	return g
}

// Generate draws n independent synthetic series matching the template shape
// and collects their index values. Draw i derives its own seed as seed+i, so
// the ensemble is bit-identical across runs regardless of worker scheduling.
// Failed or non-finite draws are discarded and counted; exceeding the
// configured fail fraction invalidates the whole ensemble.
func (g *Generator) Generate(ctx context.Context, shape Shape, n int, seed int64) (Ensemble, error) {
	if n < 1 {
		return Ensemble{}, fmt.Errorf("%w: ensemble size %d", ErrInsufficientData, n)
	}

	type draw struct {
		value float64
		ok    bool
	}
	results := make([]draw, n)
	jobs := make(chan int)

	workers := g.workers
	if workers > n {
		workers = n
	}
	metrics.UpdateEnsembleWorkerCount(workers)
	defer metrics.UpdateEnsembleWorkerCount(0)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				v, ok := g.draw(ctx, shape, seed+int64(i))
				results[i] = draw{value: v, ok: ok}
			}
		}()
	}

feed:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Ensemble{}, fmt.Errorf("ensemble generation canceled: %w", err)
	}

	values := make([]float64, 0, n)
	for _, r := range results {
		if r.ok {
			values = append(values, r.value)
		}
	}
	discarded := n - len(values)

	if frac := float64(discarded) / float64(n); frac > g.maxFailFraction {
		return Ensemble{}, fmt.Errorf("%w: %d of %d draws discarded (%.0f%%, tolerance %.0f%%)",
			ErrInvalidEnsemble, discarded, n, 100*frac, 100*g.maxFailFraction)
	}
	if len(values) < 2 {
		return Ensemble{}, fmt.Errorf("%w: only %d usable draws", ErrInsufficientData, len(values))
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return Ensemble{}, fmt.Errorf("%w: %w", ErrInvalidEnsemble, err)
	}
	std, err := stats.StandardDeviation(values)
	if err != nil {
		return Ensemble{}, fmt.Errorf("%w: %w", ErrInvalidEnsemble, err)
	}

	g.log.Info(ctx, "null ensemble generated",
		logger.Int("draws", n),
		logger.Int("discarded", discarded),
		logger.Float64("mean", mean),
		logger.Float64("std", std),
	)

	return Ensemble{
		Values:    values,
		Mean:      mean,
		Std:       std,
		N:         len(values),
		Discarded: discarded,
		Seed:      seed,
	}, nil
}

// draw runs one synthetic series through the engine.
func (g *Generator) draw(ctx context.Context, shape Shape, seed int64) (float64, bool) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic draw seed

	series, err := g.params.Series(rng, shape)
	if err != nil {
		metrics.RecordEnsembleDiscarded()
		g.log.Warn(ctx, "discarding null draw", logger.Error(err))
		return 0, false
	}
	res, err := g.engine.Compute(ctx, series)
	if err != nil {
		metrics.RecordEnsembleDiscarded()
		g.log.Warn(ctx, "discarding null draw", logger.Error(err))
		return 0, false
	}
	if math.IsNaN(res.Index) || math.IsInf(res.Index, 0) {
		metrics.RecordEnsembleDiscarded()
		metrics.RecordNumericAnomaly()
		g.log.Warn(ctx, "discarding non-finite null draw", logger.Float64("index", res.Index))
		return 0, false
	}

	metrics.RecordEnsembleDraw()
	return res.Index, true
}
