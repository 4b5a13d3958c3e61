package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates an invalid component configuration,
	// e.g. a chunk overlap that is not smaller than the chunk size.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrProvider indicates the embedding provider or the vector store failed.
	ErrProvider = errors.New("provider failure")

	// ErrData indicates a malformed record entry.
	ErrData = errors.New("malformed data")

	// ErrConsistency indicates vectors of different dimensions were mixed.
	ErrConsistency = errors.New("dimension mismatch")

	// ErrNotFitted indicates a corpus-fitted embedder was used before fitting.
	ErrNotFitted = errors.New("embedder not fitted")

	// ErrEmptyQuery is returned by ranking when there is no query text to embed.
	ErrEmptyQuery = errors.New("empty query")
)

// ProviderError wraps a failed embedding or vector store call.
type ProviderError struct {
	Op    string
	Batch int // -1 when the call was not batched
	Err   error
}

func (e *ProviderError) Error() string {
	if e.Batch >= 0 {
		return fmt.Sprintf("%s (batch %d): %v", e.Op, e.Batch, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrProvider) hold for every ProviderError.
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// DataError describes a record entry that could not be parsed.
type DataError struct {
	Source string
	Index  int
	Name   string
	Err    error
}

func (e *DataError) Error() string {
	name := e.Name
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("%s: record %d (%s): %v", e.Source, e.Index, name, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

func (e *DataError) Is(target error) bool { return target == ErrData }

// DimensionError reports a vector whose dimension differs from the index.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: index has %d, vector has %d", e.Want, e.Got)
}

func (e *DimensionError) Is(target error) bool { return target == ErrConsistency }
