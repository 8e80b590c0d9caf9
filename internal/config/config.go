// Package config defines analyzer configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) to build a Config with defaults.
// - Layer optional file and env overrides in Load.
// - External errors are wrapped via this package's sentinel errors.
package config

import (
	"runtime"
)

// NullModel holds the constants of the autoregressive null-field generator.
// These are deliberately explicit configuration: every value the generator
// uses appears here exactly once.
type NullModel struct {
	// Alpha is the memory coefficient of the field update
	// field <- alpha*field + (1-alpha)*structure + noise.
	Alpha float64 `koanf:"alpha"`

	// StructureAmp scales the deterministic oscillatory structure term.
	StructureAmp float64 `koanf:"structure_amp"`

	// StructureCycles is the number of full sine cycles across the grid.
	StructureCycles float64 `koanf:"structure_cycles"`

	// PhaseStep advances the structure phase per snapshot.
	PhaseStep float64 `koanf:"phase_step"`

	// NoiseSigma is the standard deviation of the fresh per-step noise.
	NoiseSigma float64 `koanf:"noise_sigma"`

	// InitMean and InitSigma parameterize the initial Gaussian field.
	InitMean  float64 `koanf:"init_mean"`
	InitSigma float64 `koanf:"init_sigma"`

	// MaxRedshift is the label of the earliest synthetic snapshot; labels run
	// linearly from MaxRedshift down to zero.
	MaxRedshift float64 `koanf:"max_redshift"`
}

// ErrorBudget names the systematic error sources combined in quadrature when
// no per-run error model is supplied. A placeholder budget, not a measurement.
type ErrorBudget struct {
	Resolution float64 `koanf:"resolution"`
	Temporal   float64 `koanf:"temporal"`
	EstimatorK float64 `koanf:"estimator_k"`
	Ensemble   float64 `koanf:"ensemble"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr exposes Prometheus metrics while an analysis runs,
	// e.g. ":9090". Empty disables the listener.
	MetricsAddr string `koanf:"metrics_addr"`

	// Input is the path of a JSON snapshot-series document. Empty selects the
	// seeded synthetic demonstration series.
	Input string `koanf:"input"`

	// Output is the path of the JSON analysis report. Empty writes to stdout.
	Output string `koanf:"output"`

	// Neighbors is the k of the k-NN estimator.
	Neighbors int `koanf:"neighbors"`

	// Norm selects the estimator distance norm: "max" or "euclidean".
	Norm string `koanf:"norm"`

	// Unit selects the entropy unit at the API boundary: "bits" or "nats".
	Unit string `koanf:"unit"`

	// RateThreshold is the adaptive rate-of-change warning threshold in
	// unit/Gyr.
	RateThreshold float64 `koanf:"rate_threshold"`

	// AgeGyr is the T0 of the default redshift-to-time mapping.
	AgeGyr float64 `koanf:"age_gyr"`

	// EnsembleSize sets the number of null-model draws.
	EnsembleSize int `koanf:"ensemble_size"`

	// Seed is the explicit random seed of the null ensemble and the synthetic
	// demonstration series.
	Seed int64 `koanf:"seed"`

	// MaxFailFraction bounds the fraction of ensemble draws that may be
	// discarded before the ensemble itself is considered invalid.
	MaxFailFraction float64 `koanf:"max_fail_fraction"`

	// WorkerCount sets the number of ensemble draw workers.
	WorkerCount int `koanf:"worker_count"`

	// Null holds the null-field generator constants.
	// The key is null_model rather than null: a bare "null:" in YAML parses
	// as the null scalar and the section would be dropped.
	Null NullModel `koanf:"null_model"`

	// Budget holds the systematic error budget in bits.
	Budget ErrorBudget `koanf:"budget"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		MetricsAddr:     "",
		Neighbors:       4,
		Norm:            "max",
		Unit:            "bits",
		RateThreshold:   0.1,
		AgeGyr:          13.8,
		EnsembleSize:    1000,
		Seed:            42,
		MaxFailFraction: 0.2,
		WorkerCount:     runtime.NumCPU(),
		Null: NullModel{
			Alpha:           0.9,
			StructureAmp:    0.3,
			StructureCycles: 2,
			PhaseStep:       0.2,
			NoiseSigma:      0.05,
			InitMean:        1.0,
			InitSigma:       0.5,
			MaxRedshift:     20,
		},
		Budget: ErrorBudget{
			Resolution: 1.2,
			Temporal:   0.8,
			EstimatorK: 0.5,
			Ensemble:   2.1,
		},
	}
}
