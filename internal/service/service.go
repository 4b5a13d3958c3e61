package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"venuerag/internal/chunker"
	"venuerag/internal/domain"
	"venuerag/internal/knowledgebase"
	"venuerag/internal/retrieval"
	"venuerag/internal/summarizer"
	"venuerag/internal/vectorstore"
)

// DefaultReleaseGrace is how long a replaced index stays available to
// searches that started before the swap.
const DefaultReleaseGrace = 5 * time.Second

const releaseTimeout = 30 * time.Second

// Service ties the knowledge base, the retriever and the chunker together
// for the CLI, the TUI and the HTTP API.
type Service struct {
	kbPath       string
	loader       *knowledgebase.Loader
	builder      *knowledgebase.Builder
	retriever    *retrieval.Retriever
	splitter     *chunker.Splitter
	summarizer   *summarizer.FrequencySummarizer
	maxSentences int
	defaultTopK  int
	releaseGrace time.Duration
	logger       *zap.Logger

	reloadMu sync.Mutex
	overview atomic.Pointer[summarizer.Overview]
}

// Options configures a Service.
type Options struct {
	KnowledgeBasePath string
	Builder           *knowledgebase.Builder
	Splitter          *chunker.Splitter
	DefaultTopK       int
	MaxSentences      int
	Logger            *zap.Logger

	// ReleaseGrace delays releasing a replaced index that holds external
	// resources. Zero releases it right after the swap.
	ReleaseGrace time.Duration
}

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	topK := opts.DefaultTopK
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	s := &Service{
		kbPath:       opts.KnowledgeBasePath,
		loader:       knowledgebase.NewLoader(logger),
		builder:      opts.Builder,
		retriever:    retrieval.NewRetriever(nil, logger),
		splitter:     opts.Splitter,
		summarizer:   summarizer.NewFrequencySummarizer(),
		maxSentences: opts.MaxSentences,
		defaultTopK:  topK,
		releaseGrace: opts.ReleaseGrace,
		logger:       logger,
	}
	s.overview.Store(&summarizer.Overview{})
	return s
}

// Reload loads the knowledge base directory, rebuilds the index and swaps
// the new snapshot in. On failure the previous snapshot keeps serving.
func (s *Service) Reload(ctx context.Context) (summarizer.Overview, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	records, err := s.loader.LoadDir(s.kbPath)
	if err != nil {
		return summarizer.Overview{}, err
	}
	return s.load(ctx, records)
}

// Watch reloads the knowledge base whenever its record files change, until
// ctx is done. A failed reload is logged and the previous snapshot stays.
func (s *Service) Watch(ctx context.Context, debounce time.Duration) error {
	return knowledgebase.Watch(ctx, s.kbPath, debounce, func(ctx context.Context) {
		if _, err := s.Reload(ctx); err != nil {
			s.logger.Warn("reload after change failed", zap.Error(err))
		}
	}, s.logger)
}

// LoadRecords builds and serves an index over the given records.
func (s *Service) LoadRecords(ctx context.Context, records []domain.Record) (summarizer.Overview, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	return s.load(ctx, records)
}

func (s *Service) load(ctx context.Context, records []domain.Record) (summarizer.Overview, error) {
	snap, err := s.builder.Build(ctx, records)
	if err != nil {
		return summarizer.Overview{}, fmt.Errorf("build index: %w", err)
	}
	s.release(s.retriever.Swap(snap), snap)

	overview := s.summarizer.Overview(snap.Records(), s.maxSentences)
	s.overview.Store(&overview)
	s.logger.Info("knowledge base ready",
		zap.Int("records", snap.Len()),
		zap.Int("indexed", snap.Indexed()),
	)
	return overview, nil
}

// release frees the index of a snapshot that was swapped out, unless the new
// snapshot still uses it.
func (s *Service) release(old, current *knowledgebase.Snapshot) {
	if old == nil || old.Store() == nil || old.Store() == current.Store() {
		return
	}
	r, ok := old.Store().(vectorstore.Releaser)
	if !ok {
		return
	}
	drop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := r.Release(ctx); err != nil {
			s.logger.Warn("failed to release replaced index", zap.Error(err))
		}
	}
	if s.releaseGrace <= 0 {
		drop()
		return
	}
	time.AfterFunc(s.releaseGrace, drop)
}

// Overview describes the corpus currently served.
func (s *Service) Overview() summarizer.Overview { return *s.overview.Load() }

// Stats reports the corpus size and the number of indexed records.
func (s *Service) Stats() (records, indexed int) {
	snap := s.retriever.Snapshot()
	return snap.Len(), snap.Indexed()
}

// Retrieve filters and ranks records. topK <= 0 uses the configured default.
func (s *Service) Retrieve(ctx context.Context, f domain.Filter, query string, topK int) ([]domain.Record, error) {
	if topK <= 0 {
		topK = s.defaultTopK
	}
	return s.retriever.Retrieve(ctx, f, query, topK)
}

// Split chunks raw text with the configured splitter.
func (s *Service) Split(text string) []string {
	return s.splitter.Split(text)
}

// ChunkFiles chunks text files. Paths may be glob patterns; only .txt and
// .md files are read.
func (s *Service) ChunkFiles(paths []string) ([]domain.Chunk, error) {
	var documents []domain.Document
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			switch strings.ToLower(filepath.Ext(m)) {
			case ".txt", ".md":
			default:
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				return nil, err
			}
			documents = append(documents, domain.Document{ID: hashString(m), Path: m, Content: string(data)})
		}
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("no .txt or .md documents found")
	}

	var all []domain.Chunk
	for _, d := range documents {
		chunks, err := s.splitter.Chunk(d)
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}
	return all, nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
