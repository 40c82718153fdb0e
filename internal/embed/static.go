package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// StaticEmbedder generates embeddings using feature hashing.
// Works offline with no model download. Output is deterministic, which makes
// it the provider of choice for tests and the fallback when ollama is down.
type StaticEmbedder struct {
	mu     sync.RWMutex
	dims   int
	closed bool
}

// proseStopWords are dropped before hashing word features.
var proseStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "to": true, "in": true, "on": true, "for": true,
	"is": true, "are": true, "was": true, "be": true, "it": true,
	"this": true, "that": true, "with": true, "as": true, "at": true,
}

// Weights for vector generation
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// NewStaticEmbedder creates a static embedder producing dims-wide vectors.
// A non-positive dims selects DefaultStaticDimensions.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = DefaultStaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed generates embedding for a single text.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	trimmed := strings.TrimSpace(stripPrefix(text))
	if trimmed == "" {
		return make([]float32, e.dims), nil
	}
	return Normalize(e.generateVector(trimmed)), nil
}

// stripPrefix removes the passage/query marker so both sides of a search
// hash into the same feature space.
func stripPrefix(text string) string {
	if s, ok := strings.CutPrefix(text, PassagePrefix); ok {
		return s
	}
	if s, ok := strings.CutPrefix(text, QueryPrefix); ok {
		return s
	}
	return text
}

func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, e.dims)

	words := tokenize(text)
	for _, w := range words {
		if proseStopWords[w] {
			continue
		}
		vector[hashToIndex("w:"+w, e.dims)] += tokenWeight
	}

	// Character n-grams are taken per word so that neighbouring words do not
	// produce spurious grams.
	for _, w := range words {
		for _, g := range extractNgrams(w, ngramSize) {
			vector[hashToIndex("g:"+g, e.dims)] += ngramWeight
		}
	}
	return vector
}

// tokenize lowercases text and splits it on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// extractNgrams extracts n-rune sliding windows. Words shorter than n yield
// the word itself.
func extractNgrams(word string, n int) []string {
	runes := []rune(word)
	if len(runes) <= n {
		return []string{word}
	}
	grams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+n]))
	}
	return grams
}

// hashToIndex uses FNV-64 to map a string to an index.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = emb
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return fmt.Sprintf("static-%d", e.dims)
}

// Available checks if the embedder is ready (always true until closed).
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
