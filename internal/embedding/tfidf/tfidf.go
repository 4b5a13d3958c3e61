package tfidf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"venuerag/internal/domain"
	"venuerag/internal/embedding"
)

var (
	_ embedding.Embedder = (*Embedder)(nil)
	_ embedding.Fitter   = (*Embedder)(nil)
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// Embedder implements a simple TF-IDF vectorizer.
// A zero-vocabulary Embedder must be fitted before use; a fitted one is immutable
// and safe for concurrent use.
type Embedder struct {
	vocabulary map[string]int
	idf        []float64
	stopwords  map[string]struct{}
}

// NewEmbedder creates an unfitted TF-IDF embedder.
func NewEmbedder() *Embedder {
	return &Embedder{stopwords: defaultStopwords()}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Dimension returns the vocabulary size, 0 when unfitted.
func (e *Embedder) Dimension() int { return len(e.idf) }

// Fit builds the vocabulary and IDF values from the corpus and returns a new
// fitted embedder.
func (e *Embedder) Fit(corpus []string) (embedding.Embedder, error) {
	if len(corpus) == 0 {
		return nil, errors.New("empty corpus for TF-IDF fit")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range tokenize(text, e.stopwords) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return nil, errors.New("no tokens found in corpus; ensure tokenizer supports your language")
	}
	sort.Strings(terms)

	fitted := &Embedder{
		vocabulary: make(map[string]int, len(terms)),
		idf:        make([]float64, len(terms)),
		stopwords:  e.stopwords,
	}
	n := float64(len(corpus))
	for i, term := range terms {
		fitted.vocabulary[term] = i
		// smoothed IDF
		fitted.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	return fitted, nil
}

// EmbedDocuments embeds every text with the fitted vocabulary.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(e.idf) == 0 {
		return nil, domain.ErrNotFitted
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("tfidf: %w", err)
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

// EmbedQuery embeds a single query. Unknown words contribute nothing, so a
// query without known words yields the zero vector.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if len(e.idf) == 0 {
		return nil, domain.ErrNotFitted
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("tfidf: %w", err)
	}
	return e.embed(text), nil
}

func (e *Embedder) embed(text string) []float32 {
	tf := make(map[int]int)
	total := 0
	for _, tok := range tokenize(text, e.stopwords) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	vec := make([]float32, len(e.idf))
	if total == 0 {
		return vec
	}
	for idx, count := range tf {
		vec[idx] = float32(float64(count) / float64(total) * e.idf[idx])
	}
	embedding.Normalize(vec)
	return vec
}

func tokenize(text string, stopwords map[string]struct{}) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
