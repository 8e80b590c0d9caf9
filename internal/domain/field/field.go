// Package field contains the domain values passed between pipeline layers:
// samples, snapshots, time series, and analysis results.
package field

import (
	"fmt"
	"math"
)

// Sample is an ordered set of N points in R^D. N is fixed within one sample
// set; D must be >= 1 and identical across points.
type Sample [][]float64

// Len returns the number of points.
func (s Sample) Len() int { return len(s) }

// Dim returns the dimensionality of the points, 0 for an empty sample.
func (s Sample) Dim() int {
	if len(s) == 0 {
		return 0
	}
	return len(s[0])
}

// FromScalars wraps a scalar series as an N x 1 sample.
func FromScalars(values []float64) Sample {
	s := make(Sample, len(values))
	for i, v := range values {
		s[i] = []float64{v}
	}
	return s
}

// Join concatenates the coordinates of two equal-length samples into a joint
// sample of dimension Dx+Dy.
func Join(x, y Sample) (Sample, error) {
	if x.Len() != y.Len() {
		return nil, fmt.Errorf("%w: sample lengths differ: %d vs %d", ErrInvalidInput, x.Len(), y.Len())
	}
	joint := make(Sample, x.Len())
	for i := range x {
		p := make([]float64, 0, len(x[i])+len(y[i]))
		p = append(p, x[i]...)
		p = append(p, y[i]...)
		joint[i] = p
	}
	return joint, nil
}

// Snapshot is a scalar field over a fixed-size grid at one time label.
// The grid is kept flattened; the estimator only ever sees the flat view.
type Snapshot struct {
	Values []float64
	Label  float64
}

// Sample reduces the snapshot to an N x 1 sample, one point per grid cell.
func (s Snapshot) Sample() Sample { return FromScalars(s.Values) }

// TimeSeries is an ordered sequence of snapshots with time labels. Callers may
// supply it in any label order; the engine canonicalizes before analysis.
type TimeSeries struct {
	Snapshots []Snapshot
	Metadata  map[string]string
}

// NewTimeSeries pairs parallel field and label slices into a TimeSeries.
func NewTimeSeries(fields [][]float64, labels []float64) (TimeSeries, error) {
	if len(fields) != len(labels) {
		return TimeSeries{}, fmt.Errorf("%w: %d fields vs %d labels", ErrInvalidInput, len(fields), len(labels))
	}
	if len(fields) < 2 {
		return TimeSeries{}, fmt.Errorf("%w: need at least 2 snapshots, got %d", ErrInsufficientData, len(fields))
	}
	cells := len(fields[0])
	snaps := make([]Snapshot, len(fields))
	for i, f := range fields {
		if len(f) != cells {
			return TimeSeries{}, fmt.Errorf("%w: snapshot %d has %d cells, expected %d", ErrInvalidInput, i, len(f), cells)
		}
		snaps[i] = Snapshot{Values: f, Label: labels[i]}
	}
	return TimeSeries{Snapshots: snaps}, nil
}

// Len returns the number of snapshots.
func (ts TimeSeries) Len() int { return len(ts.Snapshots) }

// Cells returns the grid size, 0 for an empty series.
func (ts TimeSeries) Cells() int {
	if len(ts.Snapshots) == 0 {
		return 0
	}
	return len(ts.Snapshots[0].Values)
}

// Interval is one step of the mutual information series.
type Interval struct {
	Index int     `json:"index"`
	MI    float64 `json:"mi"`
	Dt    float64 `json:"dt"`
}

// MISeries is the ordered mutual information series over consecutive snapshot
// pairs. Immutable once produced.
type MISeries []Interval

// Integrate sums mi*dt over the series. MI is treated as piecewise constant
// per interval; this is an accounting identity, not a general quadrature.
func (s MISeries) Integrate() float64 {
	var total float64
	for _, iv := range s {
		total += iv.MI * iv.Dt
	}
	return total
}

// Finite reports whether every value in the series is finite.
func (s MISeries) Finite() bool {
	for _, iv := range s {
		if math.IsNaN(iv.MI) || math.IsInf(iv.MI, 0) || math.IsNaN(iv.Dt) || math.IsInf(iv.Dt, 0) {
			return false
		}
	}
	return true
}

// Status classifies an index against the null ensemble.
type Status string

const (
	// StatusUnclassified marks a result that has not been compared to an
	// ensemble yet.
	StatusUnclassified Status = "unclassified"

	// StatusNoDeviation means the index sits within the null expectation.
	StatusNoDeviation Status = "no_significant_deviation"

	// StatusSuggestive means the index deviates but below detection level.
	StatusSuggestive Status = "suggestive"

	// StatusDetection means the index deviates at detection level.
	StatusDetection Status = "significant_detection"
)

// Warning is a non-fatal, caller-visible event raised during analysis.
type Warning struct {
	Interval int     `json:"interval"`
	Message  string  `json:"message"`
	Value    float64 `json:"value"`
}

// Result is the outcome of one index computation. The engine retains no
// reference to it after returning.
type Result struct {
	Index       float64   `json:"index"`
	Uncertainty float64   `json:"uncertainty"`
	Unit        string    `json:"unit"`
	Series      MISeries  `json:"mi_series"`
	Status      Status    `json:"status"`
	Warnings    []Warning `json:"warnings,omitempty"`
}
