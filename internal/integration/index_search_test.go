// Package integration exercises the engine end to end: build, reopen,
// search, serve over MCP and watch.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/Aman-CERP/docindex/internal/engine"
	"github.com/Aman-CERP/docindex/internal/mcpserver"
	"github.com/Aman-CERP/docindex/internal/watch"
)

var corpus = map[string]string{
	"battery.txt":    "Lithium battery cells lose capacity with every charge cycle. Keep the battery cool and store it at half charge.",
	"garden.md":      "# Garden notes\n\nCompost piles need nitrogen, carbon and regular turning. Tomatoes like full sun.",
	"orbit.txt":      "A satellite in low orbit circles the planet every ninety minutes. Orbital decay comes from atmospheric drag.",
	"notes/bread.md": "Sourdough bread rises slowly. Feed the starter flour and water the night before baking.",
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Storage.Root = filepath.Join(t.TempDir(), "indexes")
	cfg.Embeddings.Provider = "static"
	cfg.Embeddings.Dimensions = 96
	cfg.Chunking.Size = 200
	cfg.Chunking.Overlap = 40
	cfg.Index.Type = "flat"
	cfg.Index.BatchSize = 4
	cfg.Watch.Debounce = "50ms"
	return cfg
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range corpus {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func newEngine(t *testing.T, cfg *config.Config) *engine.Engine {
	t.Helper()
	e, err := engine.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestIndexAndSearch_AllVariantsAndBackends(t *testing.T) {
	docs := writeCorpus(t)

	for _, variant := range []string{"flat", "hnsw", "ivf"} {
		for _, backend := range []string{"okapi", "bleve", "sqlite"} {
			t.Run(variant+"/"+backend, func(t *testing.T) {
				// Given: an engine using this index type and sparse backend
				cfg := testConfig(t)
				cfg.Index.Type = variant
				cfg.Search.SparseBackend = backend
				e := newEngine(t, cfg)

				// When: indexing the corpus and searching for a rare term
				res, err := e.Index(context.Background(), "kb", []string{docs}, engine.IndexOptions{})
				require.NoError(t, err)
				require.NotNil(t, res.Descriptor)
				results, err := e.Search(context.Background(), "kb", "sourdough starter", 3)

				// Then: every document is indexed and the matching one ranks first
				require.NoError(t, err)
				assert.Equal(t, 4, res.Descriptor.DocumentCount)
				require.NotEmpty(t, results)
				assert.Equal(t, "bread.md", filepath.Base(results[0].Record.File))
				assert.Greater(t, results[0].SparseScore, 0.0)
			})
		}
	}
}

func TestIndex_SurvivesEngineRestart(t *testing.T) {
	// Given: an index built by one engine
	cfg := testConfig(t)
	docs := writeCorpus(t)
	first, err := engine.New(context.Background(), cfg)
	require.NoError(t, err)
	_, err = first.Index(context.Background(), "kb", []string{docs}, engine.IndexOptions{})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// When: a second engine opens the same storage root
	second := newEngine(t, cfg)
	list, err := second.Catalog.List()
	require.NoError(t, err)
	results, err := second.Search(context.Background(), "kb", "satellite orbit", 2)

	// Then: the catalog and the artifacts are read back
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "kb", list[0].Name)
	assert.Equal(t, "static-96", list[0].EmbeddingModel)
	require.NotEmpty(t, results)
	assert.Equal(t, "orbit.txt", filepath.Base(results[0].Record.File))
}

func TestMCPServer_OverBuiltIndex(t *testing.T) {
	e := newEngine(t, testConfig(t))
	_, err := e.Index(context.Background(), "kb", []string{writeCorpus(t)}, engine.IndexOptions{})
	require.NoError(t, err)

	srv, err := mcpserver.New(e)
	require.NoError(t, err)

	out, err := srv.CallTool(context.Background(), "search", map[string]any{
		"index": "kb",
		"query": "compost nitrogen",
		"k":     2,
	})
	require.NoError(t, err)

	so, ok := out.(*mcpserver.SearchOutput)
	require.True(t, ok)
	require.NotEmpty(t, so.Results)
	assert.Equal(t, "garden.md", filepath.Base(so.Results[0].Record.File))
	assert.Positive(t, so.BestScore)
}

func TestWatch_RebuildsAfterDelete(t *testing.T) {
	// Given: a watched folder with an existing index
	cfg := testConfig(t)
	e := newEngine(t, cfg)
	docs := writeCorpus(t)
	_, err := e.Index(context.Background(), "kb", []string{docs}, engine.IndexOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rebuilt := make(chan []watch.FileEvent, 4)
	done := make(chan error, 1)
	go func() {
		done <- e.Watch(ctx, "kb", docs, engine.WatchOptions{
			ForcePolling: true,
			PollInterval: 50 * time.Millisecond,
			OnRebuild: func(events []watch.FileEvent, err error) {
				if err == nil {
					rebuilt <- events
				}
			},
		})
	}()

	// let the poller take its first snapshot
	time.Sleep(300 * time.Millisecond)

	// When: a document is removed
	require.NoError(t, os.Remove(filepath.Join(docs, "orbit.txt")))

	// Then: the index is rebuilt without it
	select {
	case events := <-rebuilt:
		require.NotEmpty(t, events)
		assert.Equal(t, "orbit.txt", events[0].Path)
		assert.Equal(t, watch.OpDelete, events[0].Operation)
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after delete")
	}
	d, err := e.Catalog.Get("kb")
	require.NoError(t, err)
	assert.Equal(t, 3, d.DocumentCount)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
