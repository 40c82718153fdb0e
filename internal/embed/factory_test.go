package embed

import (
	"context"
	"testing"

	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	assert.Equal(t, ProviderStatic, ParseProvider("STATIC"))
	assert.Equal(t, ProviderOllama, ParseProvider("ollama"))
	assert.Equal(t, ProviderOllama, ParseProvider(""))
	assert.ElementsMatch(t, []string{"ollama", "static"}, ValidProviders())
}

func TestNewEmbedder_Static(t *testing.T) {
	cfg := config.NewConfig().Embeddings
	cfg.Provider = "static"
	cfg.Dimensions = 48

	e, err := NewEmbedder(context.Background(), cfg, nil)

	require.NoError(t, err)
	assert.Equal(t, 48, e.Dimensions())
	assert.Equal(t, ProviderStatic, GetInfo(context.Background(), e).Provider)
}

func TestNewEmbedder_OllamaUnreachable_FallsBack(t *testing.T) {
	// Given: ollama pointed at a closed port with fallback enabled
	cfg := config.NewConfig().Embeddings
	cfg.OllamaHost = "http://127.0.0.1:1"
	cfg.Fallback = true

	// When: the embedder is created
	e, err := NewEmbedder(context.Background(), cfg, nil)

	// Then: the static provider is returned
	require.NoError(t, err)
	assert.Equal(t, "static-384", e.ModelName())
}

func TestNewEmbedder_OllamaUnreachable_NoFallback(t *testing.T) {
	cfg := config.NewConfig().Embeddings
	cfg.OllamaHost = "http://127.0.0.1:1"
	cfg.Fallback = false

	_, err := NewEmbedder(context.Background(), cfg, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama unavailable")
}

func TestNewEmbedder_OllamaReachable(t *testing.T) {
	srv, _ := fakeOllama(t, 0)
	cfg := config.NewConfig().Embeddings
	cfg.OllamaHost = srv.URL

	e, err := NewEmbedder(context.Background(), cfg, nil)

	require.NoError(t, err)
	info := GetInfo(context.Background(), NewCachedEmbedder(e, 4))
	assert.Equal(t, ProviderOllama, info.Provider)
	assert.Equal(t, 3, info.Dimensions)
}

func TestNewEmbedder_InvalidTimeout(t *testing.T) {
	cfg := config.NewConfig().Embeddings
	cfg.Timeout = "soon"

	_, err := NewEmbedder(context.Background(), cfg, nil)

	assert.Error(t, err)
}
