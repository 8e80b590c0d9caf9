package nullmodel

import (
	"fmt"
	"math"

	"github.com/cosmostat/assembly/internal/domain/field"

	"gonum.org/v1/gonum/stat/distuv"
)

// Detection thresholds on the absolute z-score.
const (
	// SuggestiveSigma is the threshold above which a deviation is reported
	// as suggestive.
	SuggestiveSigma = 1.5

	// DetectionSigma is the threshold above which a deviation is reported
	// as a significant detection.
	DetectionSigma = 3.0
)

// Significance expresses how far an observed index sits from the null
// baseline.
type Significance struct {
	ZScore     float64 `json:"z_score"`
	PValue     float64 `json:"p_value"`
	Percentile float64 `json:"percentile"`
}

// Significance compares an observed index against the ensemble. The z-score
// measures distance in units of ensemble spread alone; the observation's own
// uncertainty is reported separately by the caller.
func (e Ensemble) Significance(observed float64) (Significance, error) {
	if e.N < 2 {
		return Significance{}, fmt.Errorf("%w: %d values", ErrInsufficientData, e.N)
	}
	if e.Std == 0 {
		return Significance{}, fmt.Errorf("%w: zero ensemble spread", ErrInvalidEnsemble)
	}

	z := (observed - e.Mean) / e.Std
	p := 2 * (1 - distuv.UnitNormal.CDF(math.Abs(z)))
	return Significance{
		ZScore:     z,
		PValue:     p,
		Percentile: 100 * (1 - p/2),
	}, nil
}

// Classify maps a z-score to a result status using the central thresholds.
func Classify(z float64) field.Status {
	switch abs := math.Abs(z); {
	case abs >= DetectionSigma:
		return field.StatusDetection
	case abs >= SuggestiveSigma:
		return field.StatusSuggestive
	default:
		return field.StatusNoDeviation
	}
}
