package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config at an empty directory.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return t.TempDir()
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 800, cfg.Chunking.Size)
	assert.Equal(t, 120, cfg.Chunking.Overlap)
	assert.Equal(t, "hnsw", cfg.Index.Type)
	assert.Equal(t, 64, cfg.Index.BatchSize)
	assert.Equal(t, 2000, cfg.Index.CheckpointEvery)
	assert.Equal(t, 50000, cfg.Index.TrainSample)
	assert.Equal(t, 12, cfg.Search.TopK)
	assert.InDelta(t, 0.6, cfg.Search.DenseWeight, 1e-9)
	assert.InDelta(t, 0.4, cfg.Search.SparseWeight, 1e-9)
	assert.Equal(t, "okapi", cfg.Search.SparseBackend)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	// Given: a project config setting a few keys
	dir := isolate(t)
	yaml := "chunking:\n  size: 400\nindex:\n  type: flat\nsearch:\n  sparse_enabled: false\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte(yaml), 0o644))

	// When: loading
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: set keys change, the rest keep defaults
	assert.Equal(t, 400, cfg.Chunking.Size)
	assert.Equal(t, 120, cfg.Chunking.Overlap)
	assert.Equal(t, "flat", cfg.Index.Type)
	assert.False(t, cfg.Search.SparseEnabled)
	assert.Equal(t, 12, cfg.Search.TopK)
}

func TestLoad_UserConfigBelowProjectConfig(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	dir := t.TempDir()

	userPath := filepath.Join(xdg, "docindex", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
	require.NoError(t, os.WriteFile(userPath, []byte("search:\n  top_k: 20\nchunking:\n  size: 500\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte("chunking:\n  size: 300\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Search.TopK)
	assert.Equal(t, 300, cfg.Chunking.Size)
}

func TestLoad_EnvAndDotEnv(t *testing.T) {
	// Given: a .env file and a process env var for a different key
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DOCINDEX_INDEX_TYPE=ivf\nRAG_EMB_BATCH=16\nDOCINDEX_TOP_K=3\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("DOCINDEX_TOP_K=5\n"), 0o644))
	t.Setenv("DOCINDEX_SPARSE_BACKEND", "sqlite")

	// When: loading
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: both sources apply, .env.local beats .env
	assert.Equal(t, "ivf", cfg.Index.Type)
	assert.Equal(t, 16, cfg.Embeddings.BatchSize)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, "sqlite", cfg.Search.SparseBackend)
}

func TestLoad_ProcessEnvBeatsDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DOCINDEX_CHUNK_SIZE=100\n"), 0o644))
	t.Setenv("DOCINDEX_CHUNK_SIZE", "200")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Chunking.Size)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte("chunking: [oops"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty root", func(c *Config) { c.Storage.Root = "" }},
		{"bad provider", func(c *Config) { c.Embeddings.Provider = "openai" }},
		{"zero chunk size", func(c *Config) { c.Chunking.Size = 0 }},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }},
		{"bad index type", func(c *Config) { c.Index.Type = "pq" }},
		{"weights do not sum", func(c *Config) { c.Search.DenseWeight = 0.9 }},
		{"bad backend", func(c *Config) { c.Search.SparseBackend = "lucene" }},
		{"bad timeout", func(c *Config) { c.Embeddings.Timeout = "soon" }},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurations(t *testing.T) {
	cfg := NewConfig()

	d, err := cfg.EmbeddingTimeout()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, d)

	w, err := cfg.WatchDebounce()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, w)
}

func TestWriteYAML_RoundTripThroughLoadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := NewConfig()
	cfg.Chunking.Size = 640
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 640, loaded.Chunking.Size)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".docindex", "indexes"), ExpandHome("~/.docindex/indexes"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/srv/indexes", ExpandHome("/srv/indexes"))
	assert.Equal(t, "~other/x", ExpandHome("~other/x"))
}

func TestLoad_ExpandsHomeInStorageRoot(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte("storage:\n  root: ~/kb\n"), 0o644))

	cfg, err := Load(dir)

	require.NoError(t, err)
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "kb"), cfg.Storage.Root)
}
