package retrieval

import (
	"context"

	"venuerag/internal/domain"
	"venuerag/internal/embedding"
	"venuerag/internal/knowledgebase"
	"venuerag/internal/vectorstore"
)

// Rank orders candidates by similarity of their descriptions to query.
//
// The whole index is searched, nearest first, and hits outside the candidate
// set are dropped until topK records are collected (topK <= 0 keeps all).
// Positions the snapshot cannot resolve are skipped. Candidates that are not
// indexed never appear in the result.
func Rank(ctx context.Context, snap *knowledgebase.Snapshot, query string, candidates []domain.Record, topK int) ([]domain.Record, error) {
	query = embedding.CleanText(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if len(candidates) == 0 || !snap.HasIndex() {
		return nil, nil
	}

	vec, err := snap.Embedder().EmbedQuery(ctx, query)
	if err != nil {
		return nil, &domain.ProviderError{Op: "embed query", Batch: -1, Err: err}
	}
	if len(vec) != snap.Dimension() {
		return nil, &domain.DimensionError{Want: snap.Dimension(), Got: len(vec)}
	}
	if snap.Metric() == vectorstore.MetricInnerProduct {
		embedding.Normalize(vec)
	}

	allowed := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		allowed[c.ID] = struct{}{}
	}

	limit := min(snap.Store().Len(), snap.Len())
	hits, err := snap.Store().Search(ctx, vec, limit)
	if err != nil {
		return nil, &domain.ProviderError{Op: "search index", Batch: -1, Err: err}
	}

	out := make([]domain.Record, 0, min(len(candidates), max(topK, 0)))
	for _, h := range hits {
		id, ok := snap.IDAt(h.Position)
		if !ok {
			continue
		}
		if _, ok := allowed[id]; !ok {
			continue
		}
		rec, ok := snap.Record(id)
		if !ok {
			continue
		}
		out = append(out, rec)
		if topK > 0 && len(out) >= topK {
			break
		}
	}
	return out, nil
}
