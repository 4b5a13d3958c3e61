package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"venuerag/internal/chunker"
	"venuerag/internal/validation"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url" validate:"required,url"`
	APIKeyEnv   string `yaml:"api_key_env" validate:"required"`
	Model       string `yaml:"model" validate:"required"`
	Dimensions  int    `yaml:"dimensions,omitempty" validate:"gte=0"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gt=0"`
	MaxRetries  int    `yaml:"max_retries" validate:"gte=0,lte=10"`

	// RequestsPerSecond throttles embedding requests; 0 disables it.
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" validate:"gte=0"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type" validate:"oneof=tfidf openai"`
	BatchSize int                   `yaml:"batch_size" validate:"gt=0"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty" validate:"required_if=Type openai"`
}

// ChunkerConfig configures how text is split into overlapping chunks.
type ChunkerConfig struct {
	ChunkSize          int    `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap       *int   `yaml:"chunk_overlap" validate:"required,gte=0,ltfield=ChunkSize"`
	SentenceSeparators string `yaml:"sentence_separators"`
	ParagraphSeparator string `yaml:"paragraph_separator"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type" validate:"oneof=memory qdrant"`
	Metric string        `yaml:"metric" validate:"oneof=l2 ip"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty" validate:"required_if=Type qdrant"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url" validate:"required,url"`
	APIKey      string `yaml:"api_key,omitempty"`
	Collection  string `yaml:"collection" validate:"required"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gt=0"`
}

// KnowledgeBaseConfig points at the directory of record files.
type KnowledgeBaseConfig struct {
	Path  string `yaml:"path" validate:"required"`
	Watch bool   `yaml:"watch,omitempty"`
}

// RetrievalConfig holds request defaults.
type RetrievalConfig struct {
	TopK int `yaml:"top_k" validate:"gt=0,lte=1000"`
}

// SummarizerConfig configures the corpus overview.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences" validate:"gt=0"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" validate:"dive,required"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder      EmbedderConfig      `yaml:"embedder"`
	Chunker       ChunkerConfig       `yaml:"chunker"`
	VectorStore   VectorStoreConfig   `yaml:"vector_store"`
	KnowledgeBase KnowledgeBaseConfig `yaml:"knowledge_base"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Summarizer    SummarizerConfig    `yaml:"summarizer"`
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
}

// Validate checks the configuration after defaults have been applied.
func (c *AppConfig) Validate() error {
	return validation.Struct(c)
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/venuerag/config.yaml.
// If neither exists, it writes defaults to ~/.config/venuerag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "venuerag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI == nil {
		cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
	}
	if o := cfg.Embedder.OpenAI; o != nil {
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = 5
		}
	}

	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = chunker.DefaultChunkSize
	}
	if cfg.Chunker.ChunkOverlap == nil {
		overlap := 0
		if cfg.Chunker.ChunkSize > chunker.DefaultChunkOverlap {
			overlap = chunker.DefaultChunkOverlap
		}
		cfg.Chunker.ChunkOverlap = &overlap
	}
	if cfg.Chunker.SentenceSeparators == "" {
		cfg.Chunker.SentenceSeparators = chunker.DefaultSentenceSeparators
	}
	if cfg.Chunker.ParagraphSeparator == "" {
		cfg.Chunker.ParagraphSeparator = chunker.DefaultParagraphSeparator
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Metric == "" {
		cfg.VectorStore.Metric = "l2"
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant == nil {
		cfg.VectorStore.Qdrant = &QdrantConfig{}
	}
	if q := cfg.VectorStore.Qdrant; q != nil {
		if q.URL == "" {
			q.URL = "http://localhost:6333"
		}
		if q.Collection == "" {
			q.Collection = "venues"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 15
		}
	}

	if cfg.KnowledgeBase.Path == "" {
		cfg.KnowledgeBase.Path = "knowledge_base"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 5
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}
