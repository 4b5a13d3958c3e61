package knowledgebase

import (
	"time"

	"venuerag/internal/domain"
	"venuerag/internal/embedding"
	"venuerag/internal/vectorstore"
)

// Snapshot is an immutable view of a built knowledge base: the records, the
// similarity index over their descriptions, the position to id map and the
// embedder that produced the vectors. Queries must be embedded with
// Embedder() so they share the index's vector space.
type Snapshot struct {
	records   []domain.Record
	byID      map[string]int
	ids       []string
	store     vectorstore.Storage
	embedder  embedding.Embedder
	metric    vectorstore.Metric
	dimension int
	builtAt   time.Time
}

// NewSnapshot returns a snapshot over records without a similarity index.
func NewSnapshot(records []domain.Record) *Snapshot {
	s := &Snapshot{
		records: records,
		byID:    make(map[string]int, len(records)),
		metric:  vectorstore.MetricL2,
		builtAt: time.Now(),
	}
	for i, rec := range records {
		s.byID[rec.ID] = i
	}
	return s
}

// Records returns the corpus in index order. The slice must not be modified.
func (s *Snapshot) Records() []domain.Record { return s.records }

// Len returns the number of records, indexed or not.
func (s *Snapshot) Len() int { return len(s.records) }

// Record looks a record up by id.
func (s *Snapshot) Record(id string) (domain.Record, bool) {
	i, ok := s.byID[id]
	if !ok {
		return domain.Record{}, false
	}
	return s.records[i], true
}

// HasIndex reports whether at least one record is searchable by similarity.
func (s *Snapshot) HasIndex() bool { return s.store != nil && len(s.ids) > 0 }

// Indexed returns the number of vectors in the index.
func (s *Snapshot) Indexed() int { return len(s.ids) }

// IDAt maps an index position back to a record id.
func (s *Snapshot) IDAt(position int) (string, bool) {
	if position < 0 || position >= len(s.ids) {
		return "", false
	}
	return s.ids[position], true
}

func (s *Snapshot) Store() vectorstore.Storage   { return s.store }
func (s *Snapshot) Embedder() embedding.Embedder { return s.embedder }
func (s *Snapshot) Metric() vectorstore.Metric   { return s.metric }
func (s *Snapshot) Dimension() int               { return s.dimension }
func (s *Snapshot) BuiltAt() time.Time           { return s.builtAt }
