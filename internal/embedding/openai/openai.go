package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"venuerag/internal/domain"
	"venuerag/internal/embedding"
)

var _ embedding.Embedder = (*Client)(nil)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultModel      = "text-embedding-3-small"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 5
)

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Dimensions int // requested output size, 0 for the model default
	Timeout    time.Duration
	MaxRetries int

	// RequestsPerSecond throttles outgoing requests, retries included.
	// Zero disables throttling.
	RequestsPerSecond float64
}

// Client is an OpenAI-compatible embeddings client.
type Client struct {
	api        *goopenai.Client
	model      string
	dimensions int
	maxRetries int
	backoff    func(attempt int) time.Duration
	limiter    *rate.Limiter // nil when unthrottled
	logger     *zap.Logger

	mu        sync.RWMutex
	dimension int
}

// NewClient creates a new embeddings client using the provided configuration.
// The API key is read from the environment variable named by cfg.APIKeyEnv.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %q", domain.ErrConfiguration, cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	apiCfg := goopenai.DefaultConfig(key)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:        goopenai.NewClientWithConfig(apiCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		maxRetries: cfg.MaxRetries,
		backoff:    retryDelay,
		limiter:    limiter,
		logger:     logger,
		dimension:  cfg.Dimensions,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Dimension returns the vector size, known after the first successful call
// unless it was requested explicitly.
func (c *Client) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dimension
}

// EmbedDocuments embeds texts with a single request.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.create(ctx, goopenai.EmbeddingRequest{
		Input:      texts,
		Model:      goopenai.EmbeddingModel(c.model),
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("openai returned unexpected embedding index %d", d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("openai returned an empty embedding at index %d", d.Index)
		}
		if err := c.observe(len(d.Embedding)); err != nil {
			return nil, err
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// EmbedQuery embeds a single text.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// observe fixes the dimension on first use and rejects later deviations.
func (c *Client) observe(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dimension == 0 {
		c.dimension = n
		return nil
	}
	if n != c.dimension {
		return &domain.DimensionError{Want: c.dimension, Got: n}
	}
	return nil
}

func (c *Client) create(ctx context.Context, req goopenai.EmbeddingRequest) (goopenai.EmbeddingResponse, error) {
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return goopenai.EmbeddingResponse{}, fmt.Errorf("openai embeddings: %w", err)
			}
		}
		resp, err := c.api.CreateEmbeddings(ctx, req)
		if err == nil {
			return resp, nil
		}
		if attempt >= c.maxRetries || ctx.Err() != nil || !retryable(err) {
			return goopenai.EmbeddingResponse{}, fmt.Errorf("openai embeddings: %w", err)
		}
		delay := c.backoff(attempt)
		c.logger.Warn("embedding request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return goopenai.EmbeddingResponse{}, fmt.Errorf("openai embeddings: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// retryable reports whether a failed request may succeed when repeated:
// rate limits, server errors and transport failures.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
