package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if ASSEMBLY_CONFIG is set
//  3. env (prefix ASSEMBLY_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("ASSEMBLY_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: ASSEMBLY_NEIGHBORS, ASSEMBLY_ENSEMBLE_SIZE, ...
	// Nested keys use double underscores: ASSEMBLY_NULL_MODEL__ALPHA -> null_model.alpha.
	envProvider := env.Provider("ASSEMBLY_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "ASSEMBLY_"))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Neighbors < 1 {
		return fmt.Errorf("%w: neighbors must be >= 1, got %d", ErrInvalidConfig, c.Neighbors)
	}
	switch c.Norm {
	case "max", "euclidean":
	default:
		return fmt.Errorf("%w: norm must be max or euclidean, got %q", ErrInvalidConfig, c.Norm)
	}
	switch c.Unit {
	case "bits", "nats":
	default:
		return fmt.Errorf("%w: unit must be bits or nats, got %q", ErrInvalidConfig, c.Unit)
	}
	if c.EnsembleSize < 1 {
		return fmt.Errorf("%w: ensemble_size must be >= 1, got %d", ErrInvalidConfig, c.EnsembleSize)
	}
	if c.MaxFailFraction < 0 || c.MaxFailFraction >= 1 {
		return fmt.Errorf("%w: max_fail_fraction must be in [0,1), got %g", ErrInvalidConfig, c.MaxFailFraction)
	}
	if c.Null.Alpha < 0 || c.Null.Alpha >= 1 {
		return fmt.Errorf("%w: null_model.alpha must be in [0,1), got %g", ErrInvalidConfig, c.Null.Alpha)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("%w: worker_count must be >= 1, got %d", ErrInvalidConfig, c.WorkerCount)
	}
	return nil
}
