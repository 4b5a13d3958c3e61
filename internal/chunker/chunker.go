package chunker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"venuerag/internal/domain"
)

const (
	// DefaultChunkSize is the default character budget per paragraph group.
	DefaultChunkSize = 800

	// DefaultChunkOverlap is the default number of characters carried into the next chunk.
	DefaultChunkOverlap = 20

	// DefaultParagraphSeparator separates paragraphs in the source text.
	DefaultParagraphSeparator = "\n\n"

	// DefaultSentenceSeparators matches CJK and ASCII sentence terminators and line breaks.
	DefaultSentenceSeparators = `[。；！？!?]|\.(?:\s|$)|\n`
)

// Splitter splits text into overlapping, sentence-aware chunks.
// Sizes are counted in runes. A Splitter is immutable and safe for concurrent use.
type Splitter struct {
	chunkSize          int
	overlap            int
	separator          *regexp.Regexp
	paragraphSeparator string
}

type options struct {
	chunkSize          int
	overlap            int
	separators         string
	paragraphSeparator string
}

// Option configures a Splitter.
type Option func(*options)

// WithChunkSize sets the character budget for a paragraph group.
func WithChunkSize(size int) Option {
	return func(o *options) { o.chunkSize = size }
}

// WithOverlap sets how many trailing characters of a unit are prepended to the next one.
func WithOverlap(overlap int) Option {
	return func(o *options) { o.overlap = overlap }
}

// WithSentenceSeparators sets the regular expression matching sentence terminators.
func WithSentenceSeparators(pattern string) Option {
	return func(o *options) { o.separators = pattern }
}

// WithParagraphSeparator sets the literal paragraph separator.
func WithParagraphSeparator(sep string) Option {
	return func(o *options) { o.paragraphSeparator = sep }
}

// New creates a Splitter. It fails with domain.ErrConfiguration when the
// overlap is not strictly smaller than the chunk size.
func New(opts ...Option) (*Splitter, error) {
	o := options{
		chunkSize:          DefaultChunkSize,
		overlap:            DefaultChunkOverlap,
		separators:         DefaultSentenceSeparators,
		paragraphSeparator: DefaultParagraphSeparator,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrConfiguration, o.chunkSize)
	}
	if o.overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrConfiguration, o.overlap)
	}
	if o.overlap >= o.chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap (%d) must be smaller than chunk size (%d)",
			domain.ErrConfiguration, o.overlap, o.chunkSize)
	}
	if o.paragraphSeparator == "" {
		return nil, fmt.Errorf("%w: paragraph separator is empty", domain.ErrConfiguration)
	}
	re, err := regexp.Compile(o.separators)
	if err != nil {
		return nil, fmt.Errorf("%w: sentence separators: %v", domain.ErrConfiguration, err)
	}
	if re.MatchString("") {
		return nil, fmt.Errorf("%w: sentence separators %q match the empty string", domain.ErrConfiguration, o.separators)
	}

	return &Splitter{
		chunkSize:          o.chunkSize,
		overlap:            o.overlap,
		separator:          re,
		paragraphSeparator: o.paragraphSeparator,
	}, nil
}

// Split is a convenience wrapper building a one-off Splitter.
func Split(text string, chunkSize, overlap int, sentenceSeparators, paragraphSeparator string) ([]string, error) {
	s, err := New(
		WithChunkSize(chunkSize),
		WithOverlap(overlap),
		WithSentenceSeparators(sentenceSeparators),
		WithParagraphSeparator(paragraphSeparator),
	)
	if err != nil {
		return nil, err
	}
	return s.Split(text), nil
}

// ChunkSize returns the configured character budget.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the chunks of text in source order. Overlap never crosses
// a paragraph group boundary.
func (s *Splitter) Split(text string) []string {
	var chunks []string
	for _, para := range s.reflow(text) {
		chunks = append(chunks, s.stitch(s.sentences(para))...)
	}
	return chunks
}

// Chunk splits a document and numbers its chunks.
func (s *Splitter) Chunk(document domain.Document) ([]domain.Chunk, error) {
	texts := s.Split(document.Content)
	if len(texts) == 0 {
		return nil, nil
	}
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(i),
			Text:       text,
			Index:      i,
		}
	}
	return chunks, nil
}

// reflow greedily packs consecutive paragraphs into groups whose joined
// length stays within the chunk size. A paragraph that alone exceeds the
// budget becomes its own group.
func (s *Splitter) reflow(text string) []string {
	var (
		groups  []string
		current []string
		length  int
	)
	for _, para := range strings.Split(text, s.paragraphSeparator) {
		para = strings.TrimSpace(para)
		n := utf8.RuneCountInString(para)
		if n == 0 {
			continue
		}
		if len(current) > 0 {
			// +1 for the newline joining it to the group.
			if length+1+n <= s.chunkSize {
				current = append(current, para)
				length += 1 + n
				continue
			}
			groups = append(groups, strings.Join(current, "\n"))
		}
		current = []string{para}
		length = n
	}
	if len(current) > 0 {
		groups = append(groups, strings.Join(current, "\n"))
	}
	return groups
}

// sentences splits a paragraph on the separator pattern. A separator only
// closes the running sentence; its text is dropped.
func (s *Splitter) sentences(paragraph string) []string {
	var (
		units   []string
		current strings.Builder
	)
	flush := func() {
		if u := strings.TrimSpace(current.String()); u != "" {
			units = append(units, u)
		}
		current.Reset()
	}

	last := 0
	for _, loc := range s.separator.FindAllStringIndex(paragraph, -1) {
		if part := strings.TrimSpace(paragraph[last:loc[0]]); part != "" {
			current.WriteString(part)
		}
		flush()
		last = loc[1]
	}
	if part := strings.TrimSpace(paragraph[last:]); part != "" {
		current.WriteString(part)
	}
	flush()
	return units
}

// stitch prefixes every unit after the first with the tail of its predecessor.
func (s *Splitter) stitch(units []string) []string {
	units = s.mergeShort(units)
	if len(units) == 0 {
		return nil
	}
	chunks := make([]string, 0, len(units))
	chunks = append(chunks, units[0])
	for i := 1; i < len(units); i++ {
		chunks = append(chunks, tail(units[i-1], s.overlap)+units[i])
	}
	return chunks
}

// mergeShort folds units shorter than the overlap into the units that
// follow them, so every unit except possibly the last is at least overlap
// runes long.
func (s *Splitter) mergeShort(units []string) []string {
	if s.overlap == 0 {
		return units
	}
	merged := make([]string, 0, len(units))
	var pending string
	for _, u := range units {
		pending += u
		if utf8.RuneCountInString(pending) >= s.overlap {
			merged = append(merged, pending)
			pending = ""
		}
	}
	if pending != "" {
		merged = append(merged, pending)
	}
	return merged
}

func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[len(r)-n:])
}
