package embedding

import (
	"context"
	"errors"
	"fmt"

	"venuerag/internal/domain"
)

// DefaultBatchSize is used when a non-positive batch size is requested.
const DefaultBatchSize = 32

// EmbedInBatches embeds texts batchSize at a time, in order.
//
// When the first batch fails nothing is returned. When a later batch fails
// the vectors of all preceding batches are returned along with a
// *domain.ProviderError naming the failed batch, so callers can keep the
// partial result. Dimension mismatches are never recovered.
func EmbedInBatches(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	vectors := make([][]float32, 0, len(texts))
	dim := 0
	for start, batch := 0, 0; start < len(texts); start, batch = start+batchSize, batch+1 {
		end := min(start+batchSize, len(texts))

		out, err := e.EmbedDocuments(ctx, texts[start:end])
		if err == nil && len(out) != end-start {
			err = fmt.Errorf("provider returned %d vectors for %d texts", len(out), end-start)
		}
		if err != nil {
			if errors.Is(err, domain.ErrConsistency) {
				return nil, err
			}
			perr := &domain.ProviderError{Op: "embed documents", Batch: batch, Err: err}
			if batch == 0 {
				return nil, perr
			}
			return vectors, perr
		}

		for i, v := range out {
			if len(v) == 0 {
				return nil, &domain.ProviderError{
					Op:    "embed documents",
					Batch: batch,
					Err:   fmt.Errorf("empty vector for text %d", start+i),
				}
			}
			if dim == 0 {
				dim = len(v)
			}
			if len(v) != dim {
				return nil, &domain.DimensionError{Want: dim, Got: len(v)}
			}
		}
		vectors = append(vectors, out...)
	}
	return vectors, nil
}
