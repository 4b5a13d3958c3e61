package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"venuerag/internal/domain"
	"venuerag/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

// Storage is an exact in-memory flat index using brute-force search.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	metric    vectorstore.Metric
	vectors   [][]float32
}

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Init(_ context.Context, dimension int, metric vectorstore.Metric) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrConfiguration, dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.metric = metric
	s.vectors = nil
	return nil
}

func (s *Storage) Add(_ context.Context, vectors [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return errors.New("memory storage not initialised")
	}
	for _, v := range vectors {
		if len(v) != s.dimension {
			return &domain.DimensionError{Want: s.dimension, Got: len(v)}
		}
	}
	for _, v := range vectors {
		s.vectors = append(s.vectors, append([]float32(nil), v...))
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, k int) ([]vectorstore.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(vector) != s.dimension {
		return nil, &domain.DimensionError{Want: s.dimension, Got: len(vector)}
	}
	if k <= 0 || len(s.vectors) == 0 {
		return nil, nil
	}

	hits := make([]vectorstore.Neighbor, len(s.vectors))
	for i, v := range s.vectors {
		hits[i] = vectorstore.Neighbor{Position: i, Distance: s.distance(v, vector)}
	}
	vectorstore.SortNeighbors(hits)
	return hits[:min(k, len(hits))], nil
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	return nil
}

// distance returns the squared L2 distance or the negated inner product.
func (s *Storage) distance(a, b []float32) float32 {
	var sum float32
	if s.metric == vectorstore.MetricInnerProduct {
		for i := range a {
			sum += a[i] * b[i]
		}
		return -sum
	}
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
