package retrieval

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"go.uber.org/zap"

	"venuerag/internal/domain"
	"venuerag/internal/embedding"
	"venuerag/internal/knowledgebase"
)

// DefaultTopK is the result count used when a caller does not ask for one.
const DefaultTopK = 5

// Retriever answers filter and query requests against the current snapshot.
// Swapping in a new snapshot is atomic; in-flight requests finish against the
// snapshot they started with.
type Retriever struct {
	snapshot atomic.Pointer[knowledgebase.Snapshot]
	logger   *zap.Logger
}

// NewRetriever serves snap, or an empty corpus when snap is nil.
func NewRetriever(snap *knowledgebase.Snapshot, logger *zap.Logger) *Retriever {
	if snap == nil {
		snap = knowledgebase.NewSnapshot(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Retriever{logger: logger}
	r.snapshot.Store(snap)
	return r
}

// Snapshot returns the snapshot currently served.
func (r *Retriever) Snapshot() *knowledgebase.Snapshot { return r.snapshot.Load() }

// Swap replaces the served snapshot and returns the previous one.
func (r *Retriever) Swap(snap *knowledgebase.Snapshot) *knowledgebase.Snapshot {
	if snap == nil {
		snap = knowledgebase.NewSnapshot(nil)
	}
	return r.snapshot.Swap(snap)
}

// Retrieve filters the corpus by f and, when query is not blank and the
// snapshot has an index, ranks the matches by similarity to query. Without a
// query the filtered records are returned in corpus order. At most topK
// records are returned; topK <= 0 means no limit.
func (r *Retriever) Retrieve(ctx context.Context, f domain.Filter, query string, topK int) ([]domain.Record, error) {
	snap := r.snapshot.Load()

	candidates := FilterRecords(snap.Records(), f)
	r.logger.Debug("attribute filter applied",
		zap.Int("corpus", snap.Len()),
		zap.Int("candidates", len(candidates)),
	)

	if embedding.CleanText(query) == "" || !snap.HasIndex() || len(candidates) == 0 {
		return truncate(candidates, topK), nil
	}

	ranked, err := Rank(ctx, snap, query, candidates, topK)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("similarity ranking applied",
		zap.Int("indexed", snap.Indexed()),
		zap.Int("results", len(ranked)),
	)
	return ranked, nil
}

func truncate(records []domain.Record, topK int) []domain.Record {
	if topK > 0 && len(records) > topK {
		return records[:topK]
	}
	return records
}

// MarshalRecords serialises records as a JSON array for downstream consumers.
// A nil slice encodes as an empty array.
func MarshalRecords(records []domain.Record) ([]byte, error) {
	if records == nil {
		records = []domain.Record{}
	}
	return json.MarshalIndent(records, "", "  ")
}
