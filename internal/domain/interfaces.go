package domain

// Record is a described, identifiable unit of retrievable content, e.g. a venue.
// Records are immutable once loaded; a reload replaces the whole corpus.
type Record struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Type         string   `json:"type" yaml:"type"`
	Description  string   `json:"description" yaml:"description"`
	Destination  string   `json:"destination" yaml:"destination"`
	GeoLocation  string   `json:"geo_location,omitempty" yaml:"geo_location,omitempty"`
	Address      string   `json:"address,omitempty" yaml:"address,omitempty"`
	OpeningHours string   `json:"opening_hours,omitempty" yaml:"opening_hours,omitempty"`
	Rating       *float64 `json:"rating,omitempty" yaml:"rating,omitempty"`
	Budget       string   `json:"budget,omitempty" yaml:"budget,omitempty"`
	SuitableFor  []string `json:"suitable_for,omitempty" yaml:"suitable_for,omitempty"`
	Tags         []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Filter is the structured predicate narrowing a corpus before ranking.
// Zero-valued fields are not applied.
type Filter struct {
	Destination string   `json:"destination,omitempty" validate:"omitempty,max=256"`
	Budget      string   `json:"budget,omitempty" validate:"omitempty,max=64"`
	Interests   []string `json:"interests,omitempty" validate:"omitempty,max=64,dive,max=128"`
}

// IsZero reports whether no criterion is set.
func (f Filter) IsZero() bool {
	return f.Destination == "" && f.Budget == "" && len(f.Interests) == 0
}

// Document represents a single text loaded for chunking.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a bounded-length text segment of a document, possibly overlapping its neighbour.
type Chunk struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`
	Text       string `json:"text"`
	Index      int    `json:"index"`
}

// Chunker splits documents into chunks suitable for embedding.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}
