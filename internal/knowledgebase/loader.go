package knowledgebase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"venuerag/internal/domain"
)

// Defaults for record fields missing from a record file.
const (
	DefaultName        = "Unknown Name"
	DefaultType        = "Unknown Type"
	DefaultDescription = "No description available."
)

// Loader reads record files from a knowledge base directory. Each file holds
// a list of records for one destination, named after the file.
type Loader struct {
	logger *zap.Logger
	newID  func() string
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger, newID: uuid.NewString}
}

// LoadDir is a shorthand for NewLoader(logger).LoadDir(dir).
func LoadDir(dir string, logger *zap.Logger) ([]domain.Record, error) {
	return NewLoader(logger).LoadDir(dir)
}

// LoadDir loads every .json, .yaml and .yml file in dir, in file name order.
// Malformed files and records are skipped with a warning. When two records
// share an id the later one wins.
func (l *Loader) LoadDir(dir string) ([]domain.Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base %s: %w", dir, err)
	}

	var records []domain.Record
	index := make(map[string]int)
	for _, entry := range entries {
		if entry.IsDir() || !isRecordFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		loaded, err := l.LoadFile(path)
		if err != nil {
			l.logger.Warn("skipping record file", zap.String("path", path), zap.Error(err))
			continue
		}
		for _, rec := range loaded {
			if i, dup := index[rec.ID]; dup {
				l.logger.Warn("duplicate record id, keeping the later one",
					zap.String("id", rec.ID),
					zap.String("path", path),
				)
				records[i] = rec
				continue
			}
			index[rec.ID] = len(records)
			records = append(records, rec)
		}
	}

	l.logger.Info("knowledge base loaded", zap.String("dir", dir), zap.Int("records", len(records)))
	return records, nil
}

// LoadFile parses one record file. A file that is not a list of records
// fails as a whole; individual malformed records are skipped.
func (l *Loader) LoadFile(path string) ([]domain.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	destination := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var decoders []func(*domain.Record) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, &domain.DataError{Source: path, Index: -1, Err: err}
		}
		for _, msg := range raw {
			decoders = append(decoders, func(r *domain.Record) error {
				dec := json.NewDecoder(bytes.NewReader(msg))
				return dec.Decode(r)
			})
		}
	default:
		var nodes []yaml.Node
		if err := yaml.Unmarshal(data, &nodes); err != nil {
			return nil, &domain.DataError{Source: path, Index: -1, Err: err}
		}
		for _, node := range nodes {
			decoders = append(decoders, func(r *domain.Record) error { return node.Decode(r) })
		}
	}

	records := make([]domain.Record, 0, len(decoders))
	for i, decode := range decoders {
		var rec domain.Record
		if err := decode(&rec); err != nil {
			l.logger.Warn("skipping malformed record",
				zap.Error(&domain.DataError{Source: path, Index: i, Name: rec.Name, Err: err}),
			)
			continue
		}
		records = append(records, l.normalize(rec, destination))
	}
	return records, nil
}

func (l *Loader) normalize(rec domain.Record, destination string) domain.Record {
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = l.newID()
	}
	if rec.Name == "" {
		rec.Name = DefaultName
	}
	if rec.Type == "" {
		rec.Type = DefaultType
	}
	if rec.Description == "" {
		rec.Description = DefaultDescription
	}
	if rec.Destination == "" {
		rec.Destination = destination
	}
	return rec
}

func isRecordFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return !strings.HasPrefix(name, ".")
	}
	return false
}
