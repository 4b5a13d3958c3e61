package embedding

import "context"

// Embedder converts free text into dense vectors of a fixed dimension.
// Implementations may require a fitting phase over the corpus, see Fitter.
type Embedder interface {
	Name() string
	// Dimension returns the vector size, or 0 before the first vectors were produced.
	Dimension() int
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Fitter is implemented by embedders that learn a vocabulary from the corpus.
// Fit returns a new, fitted Embedder and leaves the receiver untouched.
type Fitter interface {
	Fit(corpus []string) (Embedder, error)
}
