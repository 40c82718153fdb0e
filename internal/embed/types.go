package embed

import (
	"context"
	"time"

	"github.com/chewxy/math32"
)

// Prefixes applied to texts before embedding. Passages and queries are
// embedded asymmetrically, as expected by e5-style models.
const (
	PassagePrefix = "passage: "
	QueryPrefix   = "query: "
)

const (
	// MaxBatchSize is the maximum allowed batch size per provider request.
	MaxBatchSize = 256

	// DefaultBatchSize is the default batch size for provider requests.
	DefaultBatchSize = 8

	// DefaultTimeout bounds a single provider request.
	DefaultTimeout = 60 * time.Second

	// DefaultStaticDimensions is the vector width of the static embedder.
	DefaultStaticDimensions = 384
)

// Embedder generates vector embeddings for text
type Embedder interface {
	// Embed generates embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension
	Dimensions() int

	// ModelName returns the model identifier recorded in index metadata
	ModelName() string

	// Available checks if the embedder is ready
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// Normalize scales v to unit L2 length in place and returns it.
// A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math32.Sqrt(sum)
	for i := range v {
		v[i] *= inv
	}
	return v
}

// NormalizeAll normalizes every vector in vs in place.
func NormalizeAll(vs [][]float32) [][]float32 {
	for _, v := range vs {
		Normalize(v)
	}
	return vs
}

// WithPrefix returns texts with prefix prepended to each element.
func WithPrefix(prefix string, texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = prefix + t
	}
	return out
}
