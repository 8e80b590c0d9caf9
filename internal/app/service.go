// Package service wires the estimator, the assembly engine, the null-model
// generator, and the run store into one analysis pipeline.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/cosmostat/assembly/internal/adapters/repository"
	"github.com/cosmostat/assembly/internal/domain/assembly"
	"github.com/cosmostat/assembly/internal/domain/entropy"
	"github.com/cosmostat/assembly/internal/domain/field"
	"github.com/cosmostat/assembly/internal/domain/nullmodel"
	"github.com/cosmostat/assembly/internal/domain/spatial"
	"github.com/cosmostat/assembly/pkg/logger"

	"github.com/google/uuid"
)

// Parameters echoes the estimator and ensemble settings a report was
// produced with.
type Parameters struct {
	Neighbors     int     `json:"neighbors"`
	Norm          string  `json:"norm"`
	Unit          string  `json:"unit"`
	RateThreshold float64 `json:"rate_threshold"`
	AgeGyr        float64 `json:"age_gyr"`
	EnsembleSize  int     `json:"ensemble_size"`
	Seed          int64   `json:"seed"`
}

// Report is the full outcome of one analysis run.
type Report struct {
	RunID        string                 `json:"run_id"`
	CreatedAt    time.Time              `json:"created_at"`
	Result       field.Result           `json:"result"`
	Ensemble     nullmodel.Ensemble     `json:"null_ensemble"`
	Significance nullmodel.Significance `json:"significance"`
	Parameters   Parameters             `json:"parameters"`
	Metadata     map[string]string      `json:"metadata,omitempty"`
}

// Service implements the analysis pipeline.
type Service struct {
	mu sync.Mutex

	// Core components
	estimator *entropy.Estimator
	engine    *assembly.Engine
	generator *nullmodel.Generator
	runs      repository.Store

	// Configuration
	neighbors       int
	norm            string
	unit            string
	rateThreshold   float64
	ageGyr          float64
	ensembleSize    int
	seed            int64
	maxFailFraction float64
	workerCount     int
	nullParams      nullmodel.Params
	budget          assembly.Budget

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithNeighbors sets k for the nearest-neighbour estimator.
func WithNeighbors(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.neighbors = k
		}
	}
}

// WithNorm sets the distance norm name.
func WithNorm(norm string) Option {
	return func(s *Service) {
		if norm != "" {
			s.norm = norm
		}
	}
}

// WithUnit sets the information unit name.
func WithUnit(unit string) Option {
	return func(s *Service) {
		if unit != "" {
			s.unit = unit
		}
	}
}

// WithRateThreshold sets the adaptive rate warning threshold.
func WithRateThreshold(t float64) Option {
	return func(s *Service) {
		if t > 0 {
			s.rateThreshold = t
		}
	}
}

// WithAgeGyr sets the present age used by the redshift time mapping.
func WithAgeGyr(age float64) Option {
	return func(s *Service) {
		if age > 0 {
			s.ageGyr = age
		}
	}
}

// WithEnsembleSize sets the number of null draws.
func WithEnsembleSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.ensembleSize = n
		}
	}
}

// WithSeed sets the base seed for the null ensemble.
func WithSeed(seed int64) Option {
	return func(s *Service) { s.seed = seed }
}

// WithMaxFailFraction sets the tolerated fraction of discarded null draws.
func WithMaxFailFraction(f float64) Option {
	return func(s *Service) {
		if f >= 0 && f < 1 {
			s.maxFailFraction = f
		}
	}
}

// WithWorkerCount sets the number of ensemble workers.
func WithWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithNullParams sets the null-field generator constants.
func WithNullParams(p nullmodel.Params) Option {
	return func(s *Service) { s.nullParams = p }
}

// WithBudget sets the systematic error budget.
func WithBudget(b assembly.Budget) Option {
	return func(s *Service) { s.budget = b }
}

// WithStore sets the run store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.runs = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		neighbors:       entropy.DefaultK,
		norm:            spatial.NormMax.String(),
		unit:            entropy.UnitBits.String(),
		rateThreshold:   assembly.DefaultRateThreshold,
		ageGyr:          assembly.DefaultAgeGyr,
		ensembleSize:    1000,
		seed:            42,
		maxFailFraction: nullmodel.DefaultMaxFailFraction,
		workerCount:     runtime.NumCPU(),
		nullParams:      nullmodel.DefaultParams(),
		budget:          assembly.DefaultBudget(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the pipeline components and validates the estimator against
// synthetic data. It must be called before Analyze.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	norm, err := spatial.ParseNorm(s.norm)
	if err != nil {
		return fmt.Errorf("starting service: %w", err)
	}
	unit, err := entropy.ParseUnit(s.unit)
	if err != nil {
		return fmt.Errorf("starting service: %w", err)
	}

	s.estimator = entropy.New(
		entropy.WithK(s.neighbors),
		entropy.WithNorm(norm),
		entropy.WithUnit(unit),
	)
	mapTime := assembly.RedshiftAge(s.ageGyr)
	s.engine = assembly.New(
		assembly.WithEstimator(s.estimator),
		assembly.WithTimeMapper(mapTime),
		assembly.WithRateThreshold(s.rateThreshold),
		assembly.WithBudget(s.budget),
	)

	// The null engine shares the estimator and time mapping but skips the
	// adaptive rate check; warnings about synthetic draws are noise.
	nullEngine := assembly.New(
		assembly.WithEstimator(s.estimator),
		assembly.WithTimeMapper(mapTime),
		assembly.WithAdaptiveCheck(false),
	)
	s.generator = nullmodel.NewGenerator(
		nullmodel.WithParams(s.nullParams),
		nullmodel.WithEngine(nullEngine),
		nullmodel.WithWorkerCount(s.workerCount),
		nullmodel.WithMaxFailFraction(s.maxFailFraction),
	)

	if s.runs == nil {
		s.runs = repository.NewMemStore()
	}

	if err := s.estimator.SelfCheck(ctx, s.seed); err != nil {
		return fmt.Errorf("estimator self-check: %w", err)
	}

	s.started = true
	s.logger.Info(ctx, "analysis service started",
		logger.Int("neighbors", s.neighbors),
		logger.String("norm", s.norm),
		logger.String("unit", s.unit),
		logger.Int("ensemble_size", s.ensembleSize),
		logger.Int("workers", s.workerCount),
	)
	return nil
}

// Analyze runs the full pipeline on an observed series: assembly index,
// null ensemble, significance, and classification. The completed report is
// recorded in the run store.
func (s *Service) Analyze(ctx context.Context, ts field.TimeSeries) (Report, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return Report{}, ErrNotStarted
	}

	result, err := s.engine.Compute(ctx, ts)
	if err != nil {
		return Report{}, fmt.Errorf("computing assembly index: %w", err)
	}

	ensemble, err := s.generator.Generate(ctx, nullmodel.ShapeOf(ts), s.ensembleSize, s.seed)
	if err != nil {
		return Report{}, fmt.Errorf("generating null ensemble: %w", err)
	}

	sig, err := ensemble.Significance(result.Index)
	if err != nil {
		return Report{}, fmt.Errorf("scoring significance: %w", err)
	}
	result.Status = nullmodel.Classify(sig.ZScore)

	report := Report{
		RunID:        uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		Result:       result,
		Ensemble:     ensemble,
		Significance: sig,
		Parameters: Parameters{
			Neighbors:     s.neighbors,
			Norm:          s.norm,
			Unit:          s.unit,
			RateThreshold: s.rateThreshold,
			AgeGyr:        s.ageGyr,
			EnsembleSize:  s.ensembleSize,
			Seed:          s.seed,
		},
		Metadata: ts.Metadata,
	}

	if err := s.runs.Save(ctx, repository.Run{
		ID:          report.RunID,
		CreatedAt:   report.CreatedAt,
		Index:       result.Index,
		Uncertainty: result.Uncertainty,
		Unit:        result.Unit,
		ZScore:      sig.ZScore,
		PValue:      sig.PValue,
		Status:      result.Status,
	}); err != nil {
		s.logger.Warn(ctx, "recording run failed", logger.Error(err))
	}

	s.logger.Info(ctx, "analysis complete",
		logger.String("run_id", report.RunID),
		logger.Float64("index", result.Index),
		logger.Float64("z_score", sig.ZScore),
		logger.String("status", string(result.Status)),
	)
	return report, nil
}

// Recent returns up to n completed runs, newest first.
func (s *Service) Recent(ctx context.Context, n int) ([]repository.Run, error) {
	return s.runs.Recent(ctx, n)
}

// RunCount returns the number of completed runs tracked.
func (s *Service) RunCount(ctx context.Context) int {
	return s.runs.Count(ctx)
}
