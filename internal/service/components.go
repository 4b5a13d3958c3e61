package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"venuerag/internal/chunker"
	"venuerag/internal/config"
	"venuerag/internal/domain"
	"venuerag/internal/embedding"
	"venuerag/internal/embedding/openai"
	"venuerag/internal/embedding/tfidf"
	"venuerag/internal/knowledgebase"
	"venuerag/internal/vectorstore"
	"venuerag/internal/vectorstore/memory"
	"venuerag/internal/vectorstore/qdrant"
)

// FromConfig assembles a Service from the application configuration.
func FromConfig(cfg *config.AppConfig, logger *zap.Logger) (*Service, error) {
	emb, err := NewEmbedder(cfg.Embedder, logger)
	if err != nil {
		return nil, err
	}
	factory, err := NewStoreFactory(cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	metric, err := vectorstore.ParseMetric(cfg.VectorStore.Metric)
	if err != nil {
		return nil, err
	}
	splitter, err := NewSplitter(cfg.Chunker)
	if err != nil {
		return nil, err
	}

	builder := knowledgebase.NewBuilder(emb, factory,
		knowledgebase.WithMetric(metric),
		knowledgebase.WithBatchSize(cfg.Embedder.BatchSize),
		knowledgebase.WithLogger(logger),
	)
	return New(Options{
		KnowledgeBasePath: cfg.KnowledgeBase.Path,
		Builder:           builder,
		Splitter:          splitter,
		DefaultTopK:       cfg.Retrieval.TopK,
		MaxSentences:      cfg.Summarizer.MaxSentences,
		ReleaseGrace:      DefaultReleaseGrace,
		Logger:            logger,
	}), nil
}

// NewEmbedder selects the embedder implementation.
func NewEmbedder(cfg config.EmbedderConfig, logger *zap.Logger) (embedding.Embedder, error) {
	switch cfg.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("%w: openai embedder config missing", domain.ErrConfiguration)
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Dimensions: cfg.OpenAI.Dimensions,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries: cfg.OpenAI.MaxRetries,

			RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", domain.ErrConfiguration, cfg.Type)
	}
}

// NewStoreFactory selects the vector store implementation. Every build gets a
// fresh store; for qdrant that is a new collection per build.
func NewStoreFactory(cfg config.VectorStoreConfig) (vectorstore.Factory, error) {
	switch cfg.Type {
	case "memory", "":
		return func() vectorstore.Storage { return memory.NewStorage() }, nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("%w: qdrant config missing", domain.ErrConfiguration)
		}
		qcfg := qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}
		return func() vectorstore.Storage { return qdrant.NewGeneration(qcfg) }, nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store %q", domain.ErrConfiguration, cfg.Type)
	}
}

// NewSplitter builds the text splitter.
func NewSplitter(cfg config.ChunkerConfig) (*chunker.Splitter, error) {
	opts := []chunker.Option{
		chunker.WithChunkSize(cfg.ChunkSize),
		chunker.WithOverlap(*cfg.ChunkOverlap),
	}
	if cfg.SentenceSeparators != "" {
		opts = append(opts, chunker.WithSentenceSeparators(cfg.SentenceSeparators))
	}
	if cfg.ParagraphSeparator != "" {
		opts = append(opts, chunker.WithParagraphSeparator(cfg.ParagraphSeparator))
	}
	return chunker.New(opts...)
}
