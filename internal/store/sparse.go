package store

import (
	"context"
	"fmt"
	"strings"
)

// SparseBackend selects the lexical scorer used for hybrid retrieval.
type SparseBackend string

const (
	// SparseOkapi is an exact in-process BM25Okapi scorer.
	SparseOkapi SparseBackend = "okapi"

	// SparseBleve scores with an in-memory bleve index.
	SparseBleve SparseBackend = "bleve"

	// SparseSQLite scores with an in-memory SQLite FTS5 table.
	SparseSQLite SparseBackend = "sqlite"
)

// ParseSparseBackend maps a configured backend name, defaulting to okapi.
func ParseSparseBackend(s string) (SparseBackend, error) {
	switch SparseBackend(strings.ToLower(strings.TrimSpace(s))) {
	case "", SparseOkapi:
		return SparseOkapi, nil
	case SparseBleve:
		return SparseBleve, nil
	case SparseSQLite:
		return SparseSQLite, nil
	default:
		return "", fmt.Errorf("unknown sparse backend %q (want okapi, bleve or sqlite)", s)
	}
}

// SparseScorer scores a query against every document of a fixed corpus.
type SparseScorer interface {
	// Scores returns one score per document in corpus order. Documents
	// sharing no term with the query score 0.
	Scores(ctx context.Context, query string) ([]float64, error)

	// Len returns the corpus size.
	Len() int

	Close() error
}

// NewSparseScorer builds a scorer of the given backend over texts.
func NewSparseScorer(ctx context.Context, backend SparseBackend, texts []string) (SparseScorer, error) {
	switch backend {
	case SparseOkapi, "":
		return NewOkapiScorer(texts, DefaultOkapiParams()), nil
	case SparseBleve:
		return NewBleveScorer(ctx, texts)
	case SparseSQLite:
		return NewSQLiteScorer(ctx, texts)
	default:
		return nil, fmt.Errorf("unknown sparse backend %q", backend)
	}
}

// Tokenize lowercases text and splits it on whitespace. Punctuation stays
// attached to its word.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
