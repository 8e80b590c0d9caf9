// Package spatial answers k-th-nearest-neighbour distance and radius-range
// neighbour count queries over a fixed set of points in R^d.
//
// The index wraps gonum's k-d tree. Distances handed to the tree are the
// squared norm: the tree prunes subtrees by comparing the squared plane offset
// against the best distance seen, and the absolute per-axis offset lower-bounds
// both the Euclidean and the Chebyshev (max-coordinate) norm, so squared-norm
// semantics keep the pruning valid for either.
package spatial

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// Norm selects the distance norm of an index.
type Norm int

const (
	// NormMax is the Chebyshev (max-coordinate) norm.
	NormMax Norm = iota
	// NormEuclidean is the L2 norm.
	NormEuclidean
)

// String returns the configuration name of the norm.
func (n Norm) String() string {
	switch n {
	case NormEuclidean:
		return "euclidean"
	default:
		return "max"
	}
}

// ParseNorm maps a configuration string to a Norm.
func ParseNorm(s string) (Norm, error) {
	switch s {
	case "max", "":
		return NormMax, nil
	case "euclidean":
		return NormEuclidean, nil
	default:
		return NormMax, fmt.Errorf("%w: %q", ErrUnknownNorm, s)
	}
}

// point carries its coordinates and the norm of the owning index so that
// Distance can report the squared norm the tree expects.
type point struct {
	coords []float64
	norm   Norm
}

func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point)
	return p.coords[d] - q.coords[d]
}

func (p point) Dims() int {
	return len(p.coords)
}

// Distance returns the squared norm between p and c.
func (p point) Distance(c kdtree.Comparable) float64 {
	q := c.(point)
	if p.norm == NormMax {
		var worst float64
		for i, v := range p.coords {
			d := v - q.coords[i]
			if d < 0 {
				d = -d
			}
			if d > worst {
				worst = d
			}
		}
		return worst * worst
	}
	var sum float64
	for i, v := range p.coords {
		d := v - q.coords[i]
		sum += d * d
	}
	return sum
}

// pointSet implements kdtree.Interface for a slice of points.
type pointSet []point

func (s pointSet) Index(i int) kdtree.Comparable {
	return s[i]
}

func (s pointSet) Len() int {
	return len(s)
}

func (s pointSet) Slice(start, end int) kdtree.Interface {
	return s[start:end]
}

func (s pointSet) Pivot(d kdtree.Dim) int {
	return plane{pointSet: s, Dim: d}.Pivot()
}

// plane sorts a pointSet along a single dimension for tree construction.
type plane struct {
	kdtree.Dim
	pointSet
}

func (p plane) Less(i, j int) bool {
	return p.pointSet[i].coords[p.Dim] < p.pointSet[j].coords[p.Dim]
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.pointSet = p.pointSet[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.pointSet[i], p.pointSet[j] = p.pointSet[j], p.pointSet[i]
}

// Index answers neighbour queries over a fixed point set.
type Index struct {
	tree *kdtree.Tree
	pts  pointSet
	norm Norm
}

// NewIndex builds an index over the given points. The points are not copied;
// callers must not mutate them while the index is in use.
func NewIndex(points [][]float64, norm Norm) (*Index, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: empty point set", ErrInvalidPoints)
	}
	dim := len(points[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-dimensional points", ErrInvalidPoints)
	}
	pts := make(pointSet, len(points))
	for i, c := range points {
		if len(c) != dim {
			return nil, fmt.Errorf("%w: point %d has dim %d, expected %d", ErrInvalidPoints, i, len(c), dim)
		}
		pts[i] = point{coords: c, norm: norm}
	}
	// New sorts a copy of the set internally; keep the original ordering in
	// pts so queries can address points by their input position.
	tree := kdtree.New(append(pointSet(nil), pts...), false)
	return &Index{tree: tree, pts: pts, norm: norm}, nil
}

// Len returns the number of indexed points.
func (ix *Index) Len() int { return len(ix.pts) }

// KthNeighborDistance returns the distance from point i to its k-th nearest
// neighbour, excluding the point itself.
func (ix *Index) KthNeighborDistance(i, k int) (float64, error) {
	if i < 0 || i >= len(ix.pts) {
		return 0, fmt.Errorf("%w: point index %d out of range", ErrInvalidPoints, i)
	}
	if k < 1 || k >= len(ix.pts) {
		return 0, fmt.Errorf("%w: k=%d with %d points", ErrInvalidPoints, k, len(ix.pts))
	}
	// Query k+1 so the query point itself (distance zero) is accounted for.
	// NearestSet hands the heap back sorted ascending by distance, so the
	// k-th neighbour is the last element.
	keeper := kdtree.NewNKeeper(k + 1)
	ix.tree.NearestSet(keeper, ix.pts[i])
	return math.Sqrt(keeper.Heap[len(keeper.Heap)-1].Dist), nil
}

// CountWithin returns the number of points within distance r of point i,
// inclusive, excluding the point itself.
func (ix *Index) CountWithin(i int, r float64) (int, error) {
	if i < 0 || i >= len(ix.pts) {
		return 0, fmt.Errorf("%w: point index %d out of range", ErrInvalidPoints, i)
	}
	if r < 0 {
		return 0, nil
	}
	keeper := kdtree.NewDistKeeper(r * r)
	ix.tree.NearestSet(keeper, ix.pts[i])
	// NearestSet pops the keeper's sentinel before returning, leaving every
	// point within r, the query point among them.
	n := len(keeper.Heap) - 1
	if n < 0 {
		n = 0
	}
	return n, nil
}
