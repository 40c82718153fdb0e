package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Aman-CERP/docindex/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOllama serves /api/tags and /api/embed with 3-dimension vectors whose
// first component is the input length.
func fakeOllama(t *testing.T, failFirst int) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var embedCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaTagsResponse{
			Models: []ollamaModelInfo{{Name: "all-minilm:latest"}},
		})
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		n := embedCalls.Add(1)
		if int(n) <= failFirst {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var inputs []string
		switch v := req.Input.(type) {
		case string:
			inputs = []string{v}
		case []any:
			for _, s := range v {
				inputs = append(inputs, s.(string))
			}
		}
		resp := ollamaEmbedResponse{Model: req.Model}
		for _, in := range inputs {
			resp.Embeddings = append(resp.Embeddings, []float64{float64(len(in)), 1, 0})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &embedCalls
}

func fastRetry() errors.RetryConfig {
	return errors.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestNewOllamaEmbedder_ResolvesModelAndDimensions(t *testing.T) {
	// Given: a server with all-minilm:latest installed
	srv, _ := fakeOllama(t, 0)

	// When: an embedder is created for the untagged model name
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Model: "all-minilm", Retry: fastRetry()})

	// Then: the tagged name is used and dimensions are detected
	require.NoError(t, err)
	defer func() { _ = e.Close() }()
	assert.Equal(t, "all-minilm:latest", e.ModelName())
	assert.Equal(t, 3, e.Dimensions())
	assert.True(t, e.Available(context.Background()))
}

func TestNewOllamaEmbedder_MissingModel(t *testing.T) {
	srv, _ := fakeOllama(t, 0)

	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull")
}

func TestOllamaEmbedder_EmbedBatch_SplitsAndPreservesOrder(t *testing.T) {
	// Given: batch size 2 and five texts, one blank
	srv, calls := fakeOllama(t, 0)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host: srv.URL, Model: "all-minilm", BatchSize: 2, Dimensions: 3, Retry: fastRetry(),
	})
	require.NoError(t, err)
	calls.Store(0)

	// When: the texts are embedded
	out, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "  ", "cccc", "ddddd"})

	// Then: results keep input order and the blank text is a zero vector
	require.NoError(t, err)
	require.Len(t, out, 5)
	assert.Equal(t, float32(1), out[0][0])
	assert.Equal(t, float32(2), out[1][0])
	assert.Equal(t, []float32{0, 0, 0}, out[2])
	assert.Equal(t, float32(4), out[3][0])
	assert.Equal(t, float32(5), out[4][0])
	assert.Equal(t, int64(2), calls.Load())
}

func TestOllamaEmbedder_RetriesTransientFailure(t *testing.T) {
	// Given: a server that fails the first embed request
	srv, calls := fakeOllama(t, 1)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host: srv.URL, Model: "all-minilm", Dimensions: 3, Retry: fastRetry(), SkipHealthCheck: true,
	})
	require.NoError(t, err)

	// When: a text is embedded
	vec, err := e.Embed(context.Background(), "hello")

	// Then: the second attempt succeeds
	require.NoError(t, err)
	assert.Equal(t, float32(5), vec[0])
	assert.Equal(t, int64(2), calls.Load())
}

func TestOllamaEmbedder_GivesUpAfterRetries(t *testing.T) {
	srv, calls := fakeOllama(t, 100)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host: srv.URL, Model: "all-minilm", Dimensions: 3, Retry: fastRetry(), SkipHealthCheck: true,
	})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int64(3), calls.Load())
}

func TestOllamaEmbedder_Closed(t *testing.T) {
	srv, _ := fakeOllama(t, 0)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, SkipHealthCheck: true, Dimensions: 3})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = e.Embed(context.Background(), "x")

	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}
