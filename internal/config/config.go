// Package config loads docindex configuration.
//
// Values are applied in order of increasing precedence:
//  1. Hardcoded defaults (NewConfig)
//  2. User config (~/.config/docindex/config.yaml)
//  3. Project config (.docindex.yaml in the working directory)
//  4. .env and .env.local in the working directory
//  5. Process environment (DOCINDEX_*, RAG_EMB_BATCH)
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete docindex configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// StorageConfig locates the storage root shared by all named indexes.
type StorageConfig struct {
	Root string `yaml:"root" json:"root"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "ollama" or "static".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// Dimensions applies to the static provider; ollama reports its own.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// BatchSize caps texts per provider request.
	BatchSize int    `yaml:"batch_size" json:"batch_size"`
	Timeout   string `yaml:"timeout" json:"timeout"`
	// Fallback switches to the static provider when ollama is unreachable.
	Fallback  bool `yaml:"fallback" json:"fallback"`
	CacheSize int  `yaml:"cache_size" json:"cache_size"`
}

// ChunkingConfig sets the fixed-window chunker parameters.
type ChunkingConfig struct {
	Size    int `yaml:"size" json:"size"`
	Overlap int `yaml:"overlap" json:"overlap"`
}

// IndexConfig controls the index builder and the vector index variant.
type IndexConfig struct {
	// Type is flat, hnsw, or ivf.
	Type            string `yaml:"type" json:"type"`
	BatchSize       int    `yaml:"batch_size" json:"batch_size"`
	CheckpointEvery int    `yaml:"checkpoint_every" json:"checkpoint_every"`
	TrainSample     int    `yaml:"train_sample" json:"train_sample"`

	HNSWM              int `yaml:"hnsw_m" json:"hnsw_m"`
	HNSWEfConstruction int `yaml:"hnsw_ef_construction" json:"hnsw_ef_construction"`
	HNSWEfSearch       int `yaml:"hnsw_ef_search" json:"hnsw_ef_search"`
	IVFNList           int `yaml:"ivf_nlist" json:"ivf_nlist"`
	IVFNProbe          int `yaml:"ivf_nprobe" json:"ivf_nprobe"`

	// SaveDocuments keeps extracted text under documents/ for each index.
	SaveDocuments bool `yaml:"save_documents" json:"save_documents"`
}

// SearchConfig configures hybrid retrieval.
type SearchConfig struct {
	TopK         int     `yaml:"top_k" json:"top_k"`
	DenseWeight  float64 `yaml:"dense_weight" json:"dense_weight"`
	SparseWeight float64 `yaml:"sparse_weight" json:"sparse_weight"`
	// SparseEnabled turns the lexical signal on; dense-only when false.
	SparseEnabled bool `yaml:"sparse_enabled" json:"sparse_enabled"`
	// SparseBackend is okapi, bleve, or sqlite.
	SparseBackend      string `yaml:"sparse_backend" json:"sparse_backend"`
	AllowModelMismatch bool   `yaml:"allow_model_mismatch" json:"allow_model_mismatch"`
	// RetrieverCache is how many opened indexes the engine keeps in memory.
	RetrieverCache int `yaml:"retriever_cache" json:"retriever_cache"`
}

// WatchConfig configures folder watching.
type WatchConfig struct {
	Debounce string `yaml:"debounce" json:"debounce"`
}

// LoggingConfig configures the log level.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			Root: DefaultStorageRoot(),
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "all-minilm",
			OllamaHost: "http://localhost:11434",
			Dimensions: 384,
			BatchSize:  8,
			Timeout:    "60s",
			Fallback:   true,
			CacheSize:  256,
		},
		Chunking: ChunkingConfig{
			Size:    800,
			Overlap: 120,
		},
		Index: IndexConfig{
			Type:               "hnsw",
			BatchSize:          64,
			CheckpointEvery:    2000,
			TrainSample:        50000,
			HNSWM:              32,
			HNSWEfConstruction: 80,
			HNSWEfSearch:       64,
			IVFNList:           1024,
			IVFNProbe:          8,
			SaveDocuments:      true,
		},
		Search: SearchConfig{
			TopK:           12,
			DenseWeight:    0.6,
			SparseWeight:   0.4,
			SparseEnabled:  true,
			SparseBackend:  "okapi",
			RetrieverCache: 4,
		},
		Watch: WatchConfig{
			Debounce: "2s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultStorageRoot returns ~/.docindex/indexes.
func DefaultStorageRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docindex", "indexes")
	}
	return filepath.Join(home, ".docindex", "indexes")
}

// GetUserConfigPath returns the path of the user configuration file.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "docindex", "config.yaml")
}

// ProjectConfigName is the per-directory config file.
const ProjectConfigName = ".docindex.yaml"

// Load loads configuration for the working directory dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides(envLookup(dir))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFile loads defaults, then the YAML file at path, then the environment.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides(envLookup(filepath.Dir(path)))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{ProjectConfigName, ".docindex.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML decodes path over the current values; keys absent from the
// file keep whatever value they already had.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// envLookup resolves a key from the process environment first, then from
// .env.local and .env in dir.
func envLookup(dir string) func(string) (string, bool) {
	dotenv := map[string]string{}
	for _, name := range []string{".env", ".env.local"} {
		values, err := godotenv.Read(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		for k, v := range values {
			dotenv[k] = v
		}
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				*dst = n
			}
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 && f <= 1 {
				*dst = f
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}

	str("DOCINDEX_STORAGE_ROOT", &c.Storage.Root)
	str("DOCINDEX_EMBEDDINGS_PROVIDER", &c.Embeddings.Provider)
	str("DOCINDEX_EMBEDDINGS_MODEL", &c.Embeddings.Model)
	str("DOCINDEX_OLLAMA_HOST", &c.Embeddings.OllamaHost)
	integer("RAG_EMB_BATCH", &c.Embeddings.BatchSize)
	integer("DOCINDEX_EMBEDDINGS_BATCH_SIZE", &c.Embeddings.BatchSize)
	boolean("DOCINDEX_EMBEDDINGS_FALLBACK", &c.Embeddings.Fallback)

	integer("DOCINDEX_CHUNK_SIZE", &c.Chunking.Size)
	if v, ok := lookup("DOCINDEX_CHUNK_OVERLAP"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			c.Chunking.Overlap = n
		}
	}

	str("DOCINDEX_INDEX_TYPE", &c.Index.Type)
	integer("DOCINDEX_CHECKPOINT_EVERY", &c.Index.CheckpointEvery)

	integer("DOCINDEX_TOP_K", &c.Search.TopK)
	float("DOCINDEX_DENSE_WEIGHT", &c.Search.DenseWeight)
	float("DOCINDEX_SPARSE_WEIGHT", &c.Search.SparseWeight)
	boolean("DOCINDEX_SPARSE_ENABLED", &c.Search.SparseEnabled)
	str("DOCINDEX_SPARSE_BACKEND", &c.Search.SparseBackend)

	str("DOCINDEX_LOG_LEVEL", &c.Logging.Level)

	c.Storage.Root = ExpandHome(c.Storage.Root)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Root) == "" {
		return fmt.Errorf("storage.root must not be empty")
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "ollama", "static":
	default:
		return fmt.Errorf("embeddings.provider must be 'ollama' or 'static', got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if _, err := c.EmbeddingTimeout(); err != nil {
		return err
	}

	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 {
		return fmt.Errorf("chunking.overlap must be non-negative, got %d", c.Chunking.Overlap)
	}

	switch strings.ToLower(c.Index.Type) {
	case "flat", "hnsw", "ivf":
	default:
		return fmt.Errorf("index.type must be 'flat', 'hnsw', or 'ivf', got %q", c.Index.Type)
	}
	if c.Index.BatchSize <= 0 || c.Index.CheckpointEvery <= 0 || c.Index.TrainSample <= 0 {
		return fmt.Errorf("index.batch_size, index.checkpoint_every and index.train_sample must be positive")
	}

	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Search.DenseWeight < 0 || c.Search.DenseWeight > 1 {
		return fmt.Errorf("search.dense_weight must be between 0 and 1, got %f", c.Search.DenseWeight)
	}
	if c.Search.SparseWeight < 0 || c.Search.SparseWeight > 1 {
		return fmt.Errorf("search.sparse_weight must be between 0 and 1, got %f", c.Search.SparseWeight)
	}
	if sum := c.Search.DenseWeight + c.Search.SparseWeight; math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("search.dense_weight + search.sparse_weight must equal 1.0, got %.2f", sum)
	}
	switch strings.ToLower(c.Search.SparseBackend) {
	case "okapi", "bleve", "sqlite":
	default:
		return fmt.Errorf("search.sparse_backend must be 'okapi', 'bleve', or 'sqlite', got %q", c.Search.SparseBackend)
	}

	if _, err := c.WatchDebounce(); err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %q", c.Logging.Level)
	}

	return nil
}

// EmbeddingTimeout parses embeddings.timeout.
func (c *Config) EmbeddingTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Embeddings.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("embeddings.timeout must be a positive duration, got %q", c.Embeddings.Timeout)
	}
	return d, nil
}

// WatchDebounce parses watch.debounce.
func (c *Config) WatchDebounce() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("watch.debounce must be a duration, got %q", c.Watch.Debounce)
	}
	return d, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
