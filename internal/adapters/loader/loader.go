// Package loader reads observed snapshot series from disk and synthesizes
// demonstration series when no input is given.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/cosmostat/assembly/internal/domain/field"
	"github.com/cosmostat/assembly/internal/domain/nullmodel"
	"github.com/cosmostat/assembly/pkg/logger"
)

// Demonstration series dimensions.
const (
	demoSnapshots = 25
	demoCells     = 2000
)

// document is the on-disk JSON layout of an observed series.
type document struct {
	Snapshots [][]float64       `json:"snapshots"`
	Redshifts []float64         `json:"redshifts"`
	Metadata  map[string]string `json:"metadata"`
}

// Load reads a snapshot series from a JSON file.
func Load(ctx context.Context, path string) (field.TimeSeries, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return field.TimeSeries{}, fmt.Errorf("%w: %w", ErrReadInput, err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return field.TimeSeries{}, fmt.Errorf("%w: %w", ErrParseInput, err)
	}

	ts, err := field.NewTimeSeries(doc.Snapshots, doc.Redshifts)
	if err != nil {
		return field.TimeSeries{}, fmt.Errorf("%w: %w", ErrParseInput, err)
	}
	ts.Metadata = doc.Metadata

	logger.Get().Named("loader").Info(ctx, "loaded snapshot series",
		logger.String("path", path),
		logger.Int("snapshots", ts.Len()),
		logger.Int("cells", ts.Cells()),
	)
	return ts, nil
}

// Synthetic builds a deterministic demonstration series using the null-field
// recipe, so the tool is runnable without any input file.
func Synthetic(ctx context.Context, seed int64) (field.TimeSeries, error) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic demo data

	ts, err := nullmodel.DefaultParams().Series(rng, nullmodel.Shape{
		Snapshots: demoSnapshots,
		Cells:     demoCells,
	})
	if err != nil {
		return field.TimeSeries{}, fmt.Errorf("synthesizing demo series: %w", err)
	}
	ts.Metadata = map[string]string{"source": "synthetic"}

	logger.Get().Named("loader").Info(ctx, "synthesized demo series",
		logger.Int64("seed", seed),
		logger.Int("snapshots", ts.Len()),
		logger.Int("cells", ts.Cells()),
	)
	return ts, nil
}
