package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"venuerag/internal/domain"
)

const keyEnv = "VENUERAG_TEST_OPENAI_KEY"

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// embeddingsServer answers /v1/embeddings with vectors of dim(call) floats,
// listed in reverse index order.
func embeddingsServer(t *testing.T, dim func(call int) int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := int(calls.Add(1))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embeddingsRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dim(call))
			vec[0] = float32(len(req.Input[i]))
			data = append(data, map[string]any{"object": "embedding", "index": i, "embedding": vec})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(t *testing.T, baseURL string, maxRetries int) *Client {
	t.Helper()
	t.Setenv(keyEnv, "sk-test")
	c, err := NewClient(Config{
		BaseURL:    baseURL + "/v1",
		APIKeyEnv:  keyEnv,
		Model:      "test-embedding",
		Timeout:    5 * time.Second,
		MaxRetries: maxRetries,
	}, zap.NewNop())
	require.NoError(t, err)
	c.backoff = func(int) time.Duration { return 0 }
	return c
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv(keyEnv, "")
	_, err := NewClient(Config{APIKeyEnv: keyEnv}, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestEmbedDocuments_OrdersByIndex(t *testing.T) {
	srv, calls := embeddingsServer(t, func(int) int { return 3 })
	c := newTestClient(t, srv.URL, 0)
	assert.Zero(t, c.Dimension())

	out, err := c.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, v := range out {
		assert.Equal(t, float32(i+1), v[0])
	}
	assert.Equal(t, 3, c.Dimension())
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedQuery(t *testing.T) {
	srv, _ := embeddingsServer(t, func(int) int { return 4 })
	c := newTestClient(t, srv.URL, 0)

	v, err := c.EmbedQuery(context.Background(), "museum")
	require.NoError(t, err)
	assert.Len(t, v, 4)
	assert.Equal(t, float32(6), v[0])
}

func TestEmbedDocuments_DimensionChangeIsRejected(t *testing.T) {
	srv, _ := embeddingsServer(t, func(call int) int { return 2 + call })
	c := newTestClient(t, srv.URL, 0)
	ctx := context.Background()

	_, err := c.EmbedQuery(ctx, "first")
	require.NoError(t, err)

	_, err = c.EmbedQuery(ctx, "second")
	assert.ErrorIs(t, err, domain.ErrConsistency)
}

func failingServer(t *testing.T, status, failures int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if int(calls.Add(1)) <= failures {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"unavailable","type":"server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,0.5]}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestEmbed_RetriesServerErrors(t *testing.T) {
	srv, calls := failingServer(t, http.StatusInternalServerError, 2)
	c := newTestClient(t, srv.URL, 3)

	v, err := c.EmbedQuery(context.Background(), "museum")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, v)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbed_RetriesRateLimits(t *testing.T) {
	srv, calls := failingServer(t, http.StatusTooManyRequests, 1)
	c := newTestClient(t, srv.URL, 1)

	_, err := c.EmbedQuery(context.Background(), "museum")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbed_GivesUpAfterMaxRetries(t *testing.T) {
	srv, calls := failingServer(t, http.StatusBadGateway, 100)
	c := newTestClient(t, srv.URL, 2)

	_, err := c.EmbedQuery(context.Background(), "museum")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbed_DoesNotRetryClientErrors(t *testing.T) {
	srv, calls := failingServer(t, http.StatusBadRequest, 100)
	c := newTestClient(t, srv.URL, 5)

	_, err := c.EmbedQuery(context.Background(), "museum")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, retryDelay(0))
	assert.Equal(t, 400*time.Millisecond, retryDelay(1))
	assert.Equal(t, 5*time.Second, retryDelay(10))
}

func TestEmbed_ThrottledRequestHonoursContext(t *testing.T) {
	srv, calls := embeddingsServer(t, func(int) int { return 2 })
	t.Setenv(keyEnv, "sk-test")
	c, err := NewClient(Config{
		BaseURL:           srv.URL + "/v1",
		APIKeyEnv:         keyEnv,
		RequestsPerSecond: 0.01,
	}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, c.limiter)

	_, err = c.EmbedQuery(context.Background(), "first")
	require.NoError(t, err)

	// The bucket is empty now and refills only after 100s.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.EmbedQuery(ctx, "second")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
