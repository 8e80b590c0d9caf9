// Package repository defines the analysis run store interface and errors.
package repository

import (
	"context"
	"time"

	"github.com/cosmostat/assembly/internal/domain/field"
)

// Run is a completed analysis run summary kept for later retrieval.
type Run struct {
	ID          string       `json:"id"`
	CreatedAt   time.Time    `json:"created_at"`
	Index       float64      `json:"index"`
	Uncertainty float64      `json:"uncertainty"`
	Unit        string       `json:"unit"`
	ZScore      float64      `json:"z_score"`
	PValue      float64      `json:"p_value"`
	Status      field.Status `json:"status"`
}

// Store provides read/write access to completed runs.
type Store interface {
	// Save records a completed run. Saving an existing ID overwrites it.
	Save(ctx context.Context, run Run) error

	// Get returns the run with the given ID.
	// Returns ErrNotFound if the ID is unknown.
	Get(ctx context.Context, id string) (Run, error)

	// Recent returns up to n runs ordered newest first.
	Recent(ctx context.Context, n int) ([]Run, error)

	// Count returns the number of runs tracked.
	Count(ctx context.Context) int
}
