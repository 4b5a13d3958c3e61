package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"venuerag/internal/domain"
	"venuerag/internal/vectorstore"
)

var (
	_ vectorstore.Storage  = (*Storage)(nil)
	_ vectorstore.Releaser = (*Storage)(nil)
)

// Storage is a minimal REST client to Qdrant. Point ids are the insertion
// positions, so search hits map straight back to records.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu        sync.RWMutex
	dimension int
	metric    vectorstore.Metric
	count     int
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// NewGeneration returns a store on a fresh collection named
// "<cfg.Collection>_<random hex>", so an index being built never touches the
// collection a live snapshot searches.
func NewGeneration(cfg Config) *Storage {
	cfg.Collection = cfg.Collection + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return NewStorage(cfg)
}

// Collection returns the name of the backing collection.
func (s *Storage) Collection() string { return s.collection }

// Init drops any existing collection and creates an empty one.
func (s *Storage) Init(ctx context.Context, dimension int, metric vectorstore.Metric) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrConfiguration, dimension)
	}
	distance := "Euclid"
	if metric == vectorstore.MetricInnerProduct {
		distance = "Dot"
	}
	if err := s.dropCollection(ctx); err != nil {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": distance,
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.metric = metric
	s.count = 0
	return nil
}

func (s *Storage) Add(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return errors.New("qdrant storage not initialised")
	}

	points := make([]map[string]any, len(vectors))
	for i, v := range vectors {
		if len(v) != s.dimension {
			return &domain.DimensionError{Want: s.dimension, Got: len(v)}
		}
		points[i] = map[string]any{
			"id":      s.count + i,
			"vector":  v,
			"payload": map[string]any{"position": s.count + i},
		}
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil); err != nil {
		return err
	}
	s.count += len(vectors)
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, k int) ([]vectorstore.Neighbor, error) {
	s.mu.RLock()
	dimension, metric := s.dimension, s.metric
	s.mu.RUnlock()
	if len(vector) != dimension {
		return nil, &domain.DimensionError{Want: dimension, Got: len(vector)}
	}
	if k <= 0 {
		return nil, nil
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": false,
	}
	var resp struct {
		Result []struct {
			ID    uint64  `json:"id"`
			Score float32 `json:"score"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}

	hits := make([]vectorstore.Neighbor, 0, len(resp.Result))
	for _, r := range resp.Result {
		d := r.Score
		if metric == vectorstore.MetricInnerProduct {
			d = -d
		}
		hits = append(hits, vectorstore.Neighbor{Position: int(r.ID), Distance: d})
	}
	vectorstore.SortNeighbors(hits)
	return hits, nil
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *Storage) Clear(ctx context.Context) error {
	if err := s.dropCollection(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count = 0
	return nil
}

// Release drops the collection.
func (s *Storage) Release(ctx context.Context) error { return s.Clear(ctx) }

func (s *Storage) dropCollection(ctx context.Context) error {
	err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return nil
	}
	return err
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

type statusError struct {
	method string
	url    string
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.status)
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode qdrant request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &statusError{method: method, url: url, code: resp.StatusCode, status: resp.Status}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return nil
}
