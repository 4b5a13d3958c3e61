package vectorstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"venuerag/internal/domain"
)

// Metric selects how vector similarity is measured.
type Metric string

const (
	// MetricL2 ranks by Euclidean distance.
	MetricL2 Metric = "l2"
	// MetricInnerProduct ranks by dot product; callers normalize vectors
	// to get cosine similarity.
	MetricInnerProduct Metric = "ip"
)

// ParseMetric converts a configuration value into a Metric.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "l2", "euclid", "euclidean":
		return MetricL2, nil
	case "ip", "dot", "inner_product", "cosine":
		return MetricInnerProduct, nil
	}
	return "", fmt.Errorf("%w: unknown metric %q", domain.ErrConfiguration, s)
}

// Neighbor is a search hit. Position is the insertion position of the
// vector; smaller Distance means nearer. For MetricInnerProduct the distance
// is the negated dot product.
type Neighbor struct {
	Position int
	Distance float32
}

// Storage persists vectors by insertion position and supports nearest
// neighbor search.
type Storage interface {
	// Init prepares an empty index for vectors of the given dimension.
	Init(ctx context.Context, dimension int, metric Metric) error
	// Add appends vectors; the first one gets position Len().
	Add(ctx context.Context, vectors [][]float32) error
	// Search returns at most k neighbors, nearest first.
	Search(ctx context.Context, vector []float32, k int) ([]Neighbor, error)
	Len() int
	Clear(ctx context.Context) error
}

// Releaser is implemented by stores holding resources outside the process.
// Release is called once no snapshot serves the store any more.
type Releaser interface {
	Release(ctx context.Context) error
}

// Factory creates an empty Storage for a new index build. Stores returned
// by successive calls must not share data.
type Factory func() Storage

// SortNeighbors orders hits nearest first, breaking ties on position.
func SortNeighbors(hits []Neighbor) {
	slices.SortFunc(hits, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
}
