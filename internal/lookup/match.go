package lookup

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r2"
)

// Match is the result of a nearest-neighbour search. Entry i describes query
// QueryIndices[i]; queries dropped as out of bounds are absent.
type Match struct {
	QueryIndices []int
	TableIndices []int
	Values       []complex128
	// Distances are Euclidean distances to the matched sample.
	Distances []float64
}

// Index is a kd-tree over the sample positions of a Table. It is safe for
// concurrent use once built.
type Index struct {
	table *Table
	tree  *kdtree.Tree
}

// NewIndex builds a search index over t.
func NewIndex(t *Table) (*Index, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	pts := make(samples, len(t.Positions))
	for i, p := range t.Positions {
		pts[i] = sample{pos: p, index: i}
	}
	return &Index{table: t, tree: kdtree.New(pts, false)}, nil
}

// Table returns the indexed table.
func (ix *Index) Table() *Table { return ix.table }

// Match finds the closest sample to every query. limit bounds the initial
// search radius. When removeOutOfBounds is false a query with no sample
// within limit still receives its overall nearest sample; when true such
// queries are dropped from the result. Ties are broken arbitrarily.
func (ix *Index) Match(queries []r2.Vec, limit float64, removeOutOfBounds bool) (Match, error) {
	if !(limit > 0) {
		return Match{}, errors.Errorf("lookup: distance limit must be positive, got %g", limit)
	}
	m := Match{
		QueryIndices: make([]int, 0, len(queries)),
		TableIndices: make([]int, 0, len(queries)),
		Values:       make([]complex128, 0, len(queries)),
		Distances:    make([]float64, 0, len(queries)),
	}
	for qi, q := range queries {
		best, dist2, ok := ix.nearestWithin(q, limit)
		if !ok {
			if removeOutOfBounds {
				continue
			}
			c, d := ix.tree.Nearest(sample{pos: q, index: -1})
			best, dist2 = c.(sample), d
		}
		m.QueryIndices = append(m.QueryIndices, qi)
		m.TableIndices = append(m.TableIndices, best.index)
		m.Values = append(m.Values, ix.table.Values[best.index])
		m.Distances = append(m.Distances, math.Sqrt(dist2))
	}
	return m, nil
}

// nearestWithin returns the closest sample no further than limit from q.
func (ix *Index) nearestWithin(q r2.Vec, limit float64) (sample, float64, bool) {
	keep := kdtree.NewDistKeeper(limit * limit)
	ix.tree.NearestSet(keep, sample{pos: q, index: -1})

	var (
		best  sample
		bestD = math.Inf(1)
		found bool
	)
	for _, c := range keep.Heap {
		s, ok := c.Comparable.(sample)
		if !ok {
			continue
		}
		if c.Dist < bestD {
			best, bestD, found = s, c.Dist, true
		}
	}
	return best, bestD, found
}

// NearestNeighbor matches queries against t. It builds a throwaway index; use
// NewIndex when the same table serves many calls.
func NearestNeighbor(t *Table, queries []r2.Vec, limit float64, removeOutOfBounds bool) (Match, error) {
	ix, err := NewIndex(t)
	if err != nil {
		return Match{}, err
	}
	return ix.Match(queries, limit, removeOutOfBounds)
}

// sample is a table position tagged with its row so matches can be mapped
// back to weights.
type sample struct {
	pos   r2.Vec
	index int
}

func (s sample) coord(d kdtree.Dim) float64 {
	if d == 0 {
		return s.pos.X
	}
	return s.pos.Y
}

func (s sample) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return s.coord(d) - c.(sample).coord(d)
}

func (s sample) Dims() int { return 2 }

// Distance returns the squared Euclidean distance.
func (s sample) Distance(c kdtree.Comparable) float64 {
	d := r2.Sub(s.pos, c.(sample).pos)
	return r2.Dot(d, d)
}

type samples []sample

func (s samples) Index(i int) kdtree.Comparable         { return s[i] }
func (s samples) Len() int                              { return len(s) }
func (s samples) Pivot(d kdtree.Dim) int                { return plane{samples: s, Dim: d}.Pivot() }
func (s samples) Slice(start, end int) kdtree.Interface { return s[start:end] }

// plane sorts samples along one dimension for median partitioning.
type plane struct {
	kdtree.Dim
	samples
}

func (p plane) Less(i, j int) bool { return p.samples[i].coord(p.Dim) < p.samples[j].coord(p.Dim) }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.samples = p.samples[start:end]
	return p
}
func (p plane) Swap(i, j int) { p.samples[i], p.samples[j] = p.samples[j], p.samples[i] }
