// Package entropy implements k-nearest-neighbour differential entropy and
// mutual information estimation in the Kraskov-Stögbauer-Grassberger family.
//
// All internal arithmetic is in nats; values are converted once, at the API
// boundary, to the configured unit. Mutual information uses the max-norm KSG
// variant; the norm option selects the metric and normalization constant of
// the differential entropy estimate.
package entropy

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cosmostat/assembly/internal/domain/field"
	"github.com/cosmostat/assembly/internal/domain/spatial"
	"github.com/cosmostat/assembly/pkg/logger"
	"github.com/cosmostat/assembly/pkg/metrics"

	"gonum.org/v1/gonum/mathext"
)

// Default estimator configuration constants.
const (
	// DefaultK is the default neighbour count.
	DefaultK = 4

	// distanceFloor guards against zero neighbour distances from duplicate
	// points; log(0) would otherwise poison the estimate.
	distanceFloor = 1e-10

	// negativeTolerance, in nats, separates ordinary finite-sample noise from
	// a numeric anomaly when a mutual information estimate comes out negative.
	negativeTolerance = 0.01
)

// Unit selects the entropy unit at the API boundary.
type Unit int

const (
	// UnitBits reports entropy and mutual information in bits.
	UnitBits Unit = iota
	// UnitNats reports them in nats.
	UnitNats
)

// String returns the configuration name of the unit.
func (u Unit) String() string {
	if u == UnitNats {
		return "nats"
	}
	return "bits"
}

// ParseUnit maps a configuration string to a Unit.
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "bits", "":
		return UnitBits, nil
	case "nats":
		return UnitNats, nil
	default:
		return UnitBits, fmt.Errorf("%w: %q", ErrUnknownUnit, s)
	}
}

func (u Unit) fromNats(v float64) float64 {
	if u == UnitBits {
		return v / math.Ln2
	}
	return v
}

// Option applies a configuration option to the Estimator.
type Option func(*Estimator)

// WithK sets the neighbour count.
func WithK(k int) Option {
	return func(e *Estimator) {
		if k > 0 {
			e.k = k
		}
	}
}

// WithNorm sets the distance norm of the differential entropy estimate.
func WithNorm(n spatial.Norm) Option {
	return func(e *Estimator) { e.norm = n }
}

// WithUnit sets the output unit.
func WithUnit(u Unit) Option {
	return func(e *Estimator) { e.unit = u }
}

// WithLogger sets a custom logger for the estimator.
func WithLogger(l logger.Logger) Option {
	return func(e *Estimator) {
		if l != nil {
			e.log = l
		}
	}
}

// Estimator computes differential entropy and pairwise mutual information.
// It is stateless apart from configuration and safe for concurrent use.
type Estimator struct {
	k    int
	norm spatial.Norm
	unit Unit
	log  logger.Logger
}

// New creates an Estimator with configuration options.
func New(opts ...Option) *Estimator {
	e := &Estimator{
		k:    DefaultK,
		norm: spatial.NormMax,
		unit: UnitBits,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get().Named("entropy")
	}
	return e
}

// K returns the configured neighbour count.
func (e *Estimator) K() int { return e.k }

// Unit returns the configured output unit.
func (e *Estimator) Unit() Unit { return e.unit }

// Ceiling returns psi(n) - psi(k), the largest mutual information the
// estimator can report for n samples, in the configured unit. Identical
// inputs saturate at this value: with Y = X the joint neighbour distances
// collapse onto the marginal ones and the estimate pins to the ceiling
// regardless of the data's scale.
func (e *Estimator) Ceiling(n int) float64 {
	return e.unit.fromNats(mathext.Digamma(float64(n)) - mathext.Digamma(float64(e.k)))
}

// DifferentialEntropy estimates the differential entropy of a sample:
//
//	H = psi(N) - psi(k) + log(c_d) + (D/N) * sum_i log(eps_i)
//
// where eps_i is the distance from point i to its k-th nearest neighbour.
// c_d is 1 for the max norm and the volume of the unit D-ball for the
// Euclidean norm; pairing any other way biases the estimate.
func (e *Estimator) DifferentialEntropy(ctx context.Context, s field.Sample) (float64, error) {
	n, d := s.Len(), s.Dim()
	if n <= e.k {
		return 0, fmt.Errorf("%w: need more than k=%d samples, got %d", ErrInvalidInput, e.k, n)
	}
	if d < 1 {
		return 0, fmt.Errorf("%w: zero-dimensional sample", ErrInvalidInput)
	}

	ix, err := spatial.NewIndex(s, e.norm)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	var sumLog float64
	var floored int
	for i := 0; i < n; i++ {
		eps, err := ix.KthNeighborDistance(i, e.k)
		if err != nil {
			return 0, err
		}
		if eps < distanceFloor {
			eps = distanceFloor
			floored++
		}
		sumLog += math.Log(eps)
	}
	if floored > 0 {
		metrics.RecordDegenerateGeometry()
		e.log.Warn(ctx, "degenerate neighbour distances floored",
			logger.Int("count", floored),
			logger.Int("samples", n),
		)
	}

	h := mathext.Digamma(float64(n)) - mathext.Digamma(float64(e.k)) +
		math.Log(e.normConstant(d)) +
		float64(d)/float64(n)*sumLog

	if math.IsNaN(h) || math.IsInf(h, 0) {
		metrics.RecordNumericAnomaly()
		return 0, fmt.Errorf("%w: non-finite entropy estimate for n=%d d=%d", ErrNumericAnomaly, n, d)
	}
	return e.unit.fromNats(h), nil
}

// MutualInformation estimates I(X;Y) with the direct KSG formula:
//
//	MI = psi(k) + psi(N) - mean_i[psi(nx_i+1) + psi(ny_i+1)]
//
// with joint k-th neighbour distances under the max norm and marginal counts
// within that radius. The result is clamped to >= 0; a negative pre-clamp
// value is a finite-sample artifact, logged together with its magnitude since
// it signals too small a k or too few samples.
func (e *Estimator) MutualInformation(ctx context.Context, x, y field.Sample) (float64, error) {
	start := time.Now()
	defer func() {
		metrics.RecordMIComputation()
		metrics.RecordMILatency(float64(time.Since(start).Milliseconds()))
	}()

	n := x.Len()
	if n != y.Len() {
		return 0, fmt.Errorf("%w: sample lengths differ: %d vs %d", ErrInvalidInput, n, y.Len())
	}
	if n <= e.k {
		return 0, fmt.Errorf("%w: need more than k=%d samples, got %d", ErrInvalidInput, e.k, n)
	}

	joint, err := field.Join(x, y)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	jointIx, err := spatial.NewIndex(joint, spatial.NormMax)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	xIx, err := spatial.NewIndex(x, spatial.NormMax)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	yIx, err := spatial.NewIndex(y, spatial.NormMax)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	var sumDigamma float64
	var floored int
	for i := 0; i < n; i++ {
		d, err := jointIx.KthNeighborDistance(i, e.k)
		if err != nil {
			return 0, err
		}
		if d < distanceFloor {
			floored++
		}
		// The floor keeps the radius positive for duplicate points; the
		// marginal counts then use the radius with the floor stripped again,
		// so they see the strict interior of the joint neighbourhood.
		eps := d + distanceFloor

		nx, err := xIx.CountWithin(i, eps-distanceFloor)
		if err != nil {
			return 0, err
		}
		ny, err := yIx.CountWithin(i, eps-distanceFloor)
		if err != nil {
			return 0, err
		}
		sumDigamma += mathext.Digamma(float64(nx)+1) + mathext.Digamma(float64(ny)+1)
	}
	if floored > 0 {
		metrics.RecordDegenerateGeometry()
		e.log.Warn(ctx, "duplicate points in joint space floored",
			logger.Int("count", floored),
			logger.Int("samples", n),
		)
	}

	mi := mathext.Digamma(float64(e.k)) + mathext.Digamma(float64(n)) - sumDigamma/float64(n)

	if math.IsNaN(mi) || math.IsInf(mi, 0) {
		metrics.RecordNumericAnomaly()
		return 0, fmt.Errorf("%w: non-finite MI estimate for n=%d", ErrNumericAnomaly, n)
	}

	if mi < 0 {
		metrics.RecordMIClamp()
		if mi < -negativeTolerance {
			metrics.RecordNumericAnomaly()
			e.log.Warn(ctx, "negative MI beyond tolerance, clamping to zero",
				logger.Float64("pre_clamp_nats", mi),
				logger.Int("samples", n),
				logger.Int("k", e.k),
			)
		} else {
			e.log.Debug(ctx, "negative MI clamped to zero",
				logger.Float64("pre_clamp_nats", mi),
			)
		}
		mi = 0
	}
	return e.unit.fromNats(mi), nil
}

// normConstant returns c_d for the configured norm: 1 for the max norm, the
// unit D-ball volume pi^(D/2)/Gamma(D/2+1) for the Euclidean norm.
func (e *Estimator) normConstant(d int) float64 {
	if e.norm == spatial.NormMax {
		return 1
	}
	return math.Pow(math.Pi, float64(d)/2) / math.Gamma(float64(d)/2+1)
}
