package knowledgebase

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"venuerag/internal/domain"
	"venuerag/internal/embedding"
	"venuerag/internal/vectorstore"
)

const releaseTimeout = 30 * time.Second

// Builder turns records into a Snapshot by embedding their descriptions
// into a fresh similarity index. Every build is a full rebuild.
type Builder struct {
	embedder  embedding.Embedder
	newStore  vectorstore.Factory
	metric    vectorstore.Metric
	batchSize int
	logger    *zap.Logger
}

type BuilderOption func(*Builder)

func WithMetric(m vectorstore.Metric) BuilderOption {
	return func(b *Builder) { b.metric = m }
}

func WithBatchSize(n int) BuilderOption {
	return func(b *Builder) { b.batchSize = n }
}

func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

func NewBuilder(embedder embedding.Embedder, newStore vectorstore.Factory, opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder:  embedder,
		newStore:  newStore,
		metric:    vectorstore.MetricL2,
		batchSize: embedding.DefaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build sorts records by id and indexes their descriptions in that order.
//
// An empty corpus yields a snapshot without an index. If embedding fails
// after the first batch, the records embedded so far are indexed and the
// rest stay in the corpus for attribute filtering only.
func (b *Builder) Build(ctx context.Context, records []domain.Record) (*Snapshot, error) {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, c domain.Record) int { return cmp.Compare(a.ID, c.ID) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID == sorted[i-1].ID {
			return nil, fmt.Errorf("%w: duplicate record id %q", domain.ErrData, sorted[i].ID)
		}
	}

	snap := NewSnapshot(sorted)
	snap.metric = b.metric
	snap.embedder = b.embedder
	if len(sorted) == 0 {
		b.logger.Info("no records to index")
		return snap, nil
	}

	texts := make([]string, len(sorted))
	for i, rec := range sorted {
		texts[i] = embedding.CleanText(rec.Description)
		if texts[i] == "" {
			texts[i] = DefaultDescription
		}
	}

	emb := b.embedder
	if f, ok := emb.(embedding.Fitter); ok {
		fitted, err := f.Fit(texts)
		if err != nil {
			return nil, &domain.ProviderError{Op: "fit " + emb.Name(), Batch: -1, Err: err}
		}
		emb = fitted
	}
	snap.embedder = emb

	b.logger.Info("embedding record descriptions",
		zap.String("embedder", emb.Name()),
		zap.Int("records", len(texts)),
		zap.Int("batch_size", b.batchSize),
	)
	vectors, err := embedding.EmbedInBatches(ctx, emb, texts, b.batchSize)
	if err != nil {
		if len(vectors) == 0 {
			return nil, fmt.Errorf("embed descriptions: %w", err)
		}
		b.logger.Warn("embedding stopped early, indexing partial corpus",
			zap.Int("indexed", len(vectors)),
			zap.Int("records", len(texts)),
			zap.Error(err),
		)
	}

	dim := len(vectors[0])
	if b.metric == vectorstore.MetricInnerProduct {
		for _, v := range vectors {
			embedding.Normalize(v)
		}
	}

	store := b.newStore()
	if err := store.Init(ctx, dim, b.metric); err != nil {
		b.discard(ctx, store)
		return nil, &domain.ProviderError{Op: "init index", Batch: -1, Err: err}
	}
	if err := store.Add(ctx, vectors); err != nil {
		b.discard(ctx, store)
		return nil, &domain.ProviderError{Op: "add vectors", Batch: -1, Err: err}
	}
	if store.Len() != len(vectors) {
		b.discard(ctx, store)
		return nil, fmt.Errorf("%w: index holds %d vectors, expected %d", domain.ErrConsistency, store.Len(), len(vectors))
	}

	snap.ids = make([]string, len(vectors))
	for i := range vectors {
		snap.ids[i] = sorted[i].ID
	}
	snap.store = store
	snap.dimension = dim

	b.logger.Info("index built",
		zap.Int("vectors", len(vectors)),
		zap.Int("dimension", dim),
		zap.String("metric", string(b.metric)),
	)
	return snap, nil
}

// discard releases a store whose build failed. It runs even when ctx is
// cancelled, since the failure may be the cancellation itself.
func (b *Builder) discard(ctx context.Context, store vectorstore.Storage) {
	r, ok := store.(vectorstore.Releaser)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := r.Release(ctx); err != nil {
		b.logger.Warn("failed to release index of failed build", zap.Error(err))
	}
}
