package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docindex/internal/embed"
	"github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/store"
)

// Options configures a Retriever.
type Options struct {
	// Weights for fusion; DefaultWeights() when zero.
	Weights Weights

	// DisableSparse returns dense hits only.
	DisableSparse bool

	// SparseBackend selects the lexical scorer (default: okapi).
	SparseBackend store.SparseBackend

	// AllowModelMismatch opens an index built with a different embedding
	// model instead of failing with errors.ErrModelMismatch.
	AllowModelMismatch bool

	// NProbe overrides the partitions probed by a partitioned index.
	NProbe int

	Logger *slog.Logger
}

// Result is one retrieved chunk with its provenance.
type Result struct {
	Record  store.Record `json:"record"`
	Ordinal int          `json:"ordinal"`

	// Rank is the 1-based position in the result list.
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`

	DenseScore  float64 `json:"dense_score"`
	SparseScore float64 `json:"sparse_score"`
}

// Retriever answers queries against one index. It is read-only once opened
// and safe for concurrent Search calls.
type Retriever struct {
	dir      string
	sidecar  store.Sidecar
	index    store.VectorIndex
	records  []store.Record
	sparse   store.SparseScorer
	embedder embed.Embedder
	weights  Weights
	logger   *slog.Logger
}

// OpenRetriever loads the index in dir and prepares the sparse scorer.
//
// A missing or unreadable artifact fails with errors.ErrIndexNotAvailable;
// a metadata log whose length differs from the vector count fails with
// errors.ErrCorruptIndex.
func OpenRetriever(ctx context.Context, dir string, embedder embed.Embedder, opts Options) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	weights := opts.Weights
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}

	layout := store.Layout{Dir: dir}
	start := time.Now()

	sidecar, err := store.ReadSidecar(layout.SidecarPath())
	if err != nil {
		return nil, notAvailable(dir, err)
	}
	idx, err := store.OpenVectorIndex(layout.IndexPath())
	if err != nil {
		return nil, notAvailable(dir, err)
	}
	records, err := store.ReadMetadata(layout.MetaPath())
	if err != nil {
		return nil, notAvailable(dir, err)
	}

	if len(records) != idx.Count() {
		return nil, errors.New(errors.ErrCodeCorruptIndex,
			fmt.Sprintf("metadata has %d records but the index holds %d vectors", len(records), idx.Count()), nil).
			WithDetail("dir", dir).
			WithSuggestion("Rebuild the index")
	}

	if model := embedder.ModelName(); sidecar.EmbedModel != "" && sidecar.EmbedModel != model {
		if !opts.AllowModelMismatch {
			return nil, errors.New(errors.ErrCodeModelMismatch,
				fmt.Sprintf("index was built with %q but the embedder is %q", sidecar.EmbedModel, model), nil).
				WithDetail("dir", dir).
				WithSuggestion("Rebuild the index or configure the matching embedding model")
		}
		logger.Warn("embedding model mismatch",
			slog.String("dir", dir),
			slog.String("index_model", sidecar.EmbedModel),
			slog.String("embedder_model", model))
	}
	if d := embedder.Dimensions(); d > 0 && d != idx.Dimensions() {
		return nil, errors.New(errors.ErrCodeDimensionMismatch,
			store.ErrDimensionMismatch{Expected: idx.Dimensions(), Got: d}.Error(), nil).
			WithDetail("dir", dir)
	}

	if p, ok := idx.(interface{ SetNProbe(int) }); ok && opts.NProbe > 0 {
		p.SetNProbe(opts.NProbe)
	}

	r := &Retriever{
		dir:      dir,
		sidecar:  *sidecar,
		index:    idx,
		records:  records,
		embedder: embedder,
		weights:  weights,
		logger:   logger,
	}

	if !opts.DisableSparse {
		texts := make([]string, len(records))
		for i, rec := range records {
			texts[i] = rec.Text
		}
		r.sparse, err = store.NewSparseScorer(ctx, opts.SparseBackend, texts)
		if err != nil {
			return nil, errors.New(errors.ErrCodeSearchFailed, "failed to build sparse scorer", err)
		}
	}

	logger.Debug("retriever_opened",
		slog.String("dir", dir),
		slog.String("variant", string(idx.Variant())),
		slog.Int("vectors", idx.Count()),
		slog.Bool("sparse", r.sparse != nil),
		slog.Duration("duration", time.Since(start)))
	return r, nil
}

func notAvailable(dir string, err error) error {
	e := errors.New(errors.ErrCodeIndexNotAvailable, "index is not available", err).
		WithDetail("dir", dir)
	if os.IsNotExist(err) {
		e = e.WithSuggestion("Create the index first or choose another one")
	} else {
		e = e.WithSuggestion("Rebuild the index")
	}
	return e
}

// Search returns up to k results ordered by non-increasing fused score.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	if k <= 0 {
		k = DefaultTopK
	}
	start := time.Now()

	var (
		dense     []store.VectorResult
		sparse    []float64
		sparseErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := r.embedder.Embed(gctx, embed.QueryPrefix+query)
		if err != nil {
			return errors.New(errors.ErrCodeEmbeddingFailed, "failed to embed query", err)
		}
		dense, err = r.index.Search(embed.Normalize(vec), k)
		if err != nil {
			return errors.New(errors.ErrCodeSearchFailed, "vector search failed", err)
		}
		return nil
	})
	if r.sparse != nil {
		g.Go(func() error {
			// a failed lexical pass degrades to dense-only results
			sparse, sparseErr = r.sparse.Scores(gctx, query)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if sparseErr != nil {
		r.logger.Warn("sparse scoring failed, using dense results only",
			slog.String("dir", r.dir),
			slog.String("error", sparseErr.Error()))
		sparse = nil
	}

	fused := FuseWeighted(dense, sparse, k, r.weights)
	results := make([]Result, 0, len(fused))
	for _, f := range fused {
		if f.Ordinal < 0 || f.Ordinal >= len(r.records) {
			continue
		}
		results = append(results, Result{
			Record:      r.records[f.Ordinal],
			Ordinal:     f.Ordinal,
			Rank:        len(results) + 1,
			Score:       f.Score,
			DenseScore:  f.DenseScore,
			SparseScore: f.SparseScore,
		})
	}

	r.logger.Debug("search_complete",
		slog.String("dir", r.dir),
		slog.Int("k", k),
		slog.Int("dense_hits", len(dense)),
		slog.Int("results", len(results)),
		slog.Duration("latency", time.Since(start)))
	return results, nil
}

// Sidecar returns the descriptor the index was opened with.
func (r *Retriever) Sidecar() store.Sidecar { return r.sidecar }

// Len returns the number of indexed chunks.
func (r *Retriever) Len() int { return len(r.records) }

// Dir returns the index directory.
func (r *Retriever) Dir() string { return r.dir }

// Close releases the sparse scorer.
func (r *Retriever) Close() error {
	if r.sparse != nil {
		return r.sparse.Close()
	}
	return nil
}
