package service

import (
	"cmp"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuerag/internal/config"
	"venuerag/internal/domain"
	"venuerag/internal/vectorstore/qdrant"
)

// qdrantServer keeps collections in memory and answers searches by brute
// force L2, the way Qdrant's Euclid distance does.
type qdrantServer struct {
	mu          sync.Mutex
	collections map[string]map[int][]float64
	failAdd     atomic.Bool
}

func newQdrantServer(t *testing.T) (*qdrantServer, string) {
	t.Helper()
	q := &qdrantServer{collections: map[string]map[int][]float64{}}
	srv := httptest.NewServer(q)
	t.Cleanup(srv.Close)
	return q, srv.URL
}

func (q *qdrantServer) names() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for name := range q.collections {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func (q *qdrantServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q.mu.Lock()
	defer q.mu.Unlock()

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/collections/"), "/")
	name, rest := parts[0], strings.Join(parts[1:], "/")
	points, exists := q.collections[name]

	switch {
	case rest == "" && r.Method == http.MethodDelete:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(q.collections, name)
	case rest == "" && r.Method == http.MethodPut:
		q.collections[name] = map[int][]float64{}
	case rest == "points" && r.Method == http.MethodPut:
		if !exists || q.failAdd.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var body struct {
			Points []struct {
				ID     int       `json:"id"`
				Vector []float64 `json:"vector"`
			} `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, p := range body.Points {
			points[p.ID] = p.Vector
		}
	case rest == "points/search" && r.Method == http.MethodPost:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			Vector []float64 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		type hit struct {
			ID    int     `json:"id"`
			Score float64 `json:"score"`
		}
		hits := make([]hit, 0, len(points))
		for id, v := range points {
			var d float64
			for i := range v {
				diff := v[i] - body.Vector[i]
				d += diff * diff
			}
			hits = append(hits, hit{ID: id, Score: d})
		}
		slices.SortFunc(hits, func(a, b hit) int {
			return cmp.Or(cmp.Compare(a.Score, b.Score), cmp.Compare(a.ID, b.ID))
		})
		_ = json.NewEncoder(w).Encode(map[string]any{"result": hits[:min(body.Limit, len(hits))]})
		return
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
}

func servedCollection(t *testing.T, svc *Service) string {
	t.Helper()
	store, ok := svc.retriever.Snapshot().Store().(*qdrant.Storage)
	require.True(t, ok)
	return store.Collection()
}

func TestReload_QdrantFailedRebuildKeepsServingPreviousIndex(t *testing.T) {
	q, url := newQdrantServer(t)
	kb := knowledgeBase(t)
	svc := newTestService(t, kb, func(cfg *config.AppConfig) {
		cfg.VectorStore.Type = "qdrant"
		cfg.VectorStore.Qdrant = &config.QdrantConfig{URL: url, Collection: "venues", TimeoutSecs: 5}
	})
	svc.releaseGrace = 0
	ctx := context.Background()
	paris := domain.Filter{Destination: "Paris"}

	_, err := svc.Reload(ctx)
	require.NoError(t, err)
	first := servedCollection(t, svc)
	assert.True(t, strings.HasPrefix(first, "venues_"))
	assert.Equal(t, []string{first}, q.names())

	got, err := svc.Retrieve(ctx, paris, "cheap street food", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))

	oslo := `[{"id": "e", "name": "Opera", "type": "venue", "description": "Marble roof you can walk on."}]`
	require.NoError(t, os.WriteFile(filepath.Join(kb, "Oslo.json"), []byte(oslo), 0o644))
	q.failAdd.Store(true)

	_, err = svc.Reload(ctx)
	require.Error(t, err)
	var pe *domain.ProviderError
	assert.ErrorAs(t, err, &pe)

	assert.Equal(t, first, servedCollection(t, svc))
	assert.Equal(t, []string{first}, q.names(), "the failed build's collection is dropped")
	got, err = svc.Retrieve(ctx, paris, "cheap street food", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))
	records, _ := svc.Stats()
	assert.Equal(t, 4, records)

	q.failAdd.Store(false)
	_, err = svc.Reload(ctx)
	require.NoError(t, err)

	second := servedCollection(t, svc)
	assert.NotEqual(t, first, second)
	assert.Equal(t, []string{second}, q.names(), "the replaced collection is released")
	got, err = svc.Retrieve(ctx, paris, "cheap street food", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))
}

func TestRelease_WaitsForGrace(t *testing.T) {
	q, url := newQdrantServer(t)
	svc := newTestService(t, knowledgeBase(t), func(cfg *config.AppConfig) {
		cfg.VectorStore.Type = "qdrant"
		cfg.VectorStore.Qdrant = &config.QdrantConfig{URL: url, Collection: "venues", TimeoutSecs: 5}
	})
	svc.releaseGrace = 50 * time.Millisecond
	ctx := context.Background()

	_, err := svc.Reload(ctx)
	require.NoError(t, err)
	_, err = svc.Reload(ctx)
	require.NoError(t, err)

	assert.Len(t, q.names(), 2, "the replaced collection outlives the swap")
	current := servedCollection(t, svc)
	require.Eventually(t, func() bool {
		names := q.names()
		return len(names) == 1 && names[0] == current
	}, 2*time.Second, 10*time.Millisecond)
}
