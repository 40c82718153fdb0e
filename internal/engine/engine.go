// Package engine wires configuration, the embedding provider, the catalog
// and the retrievers into one explicitly owned context. Callers create an
// Engine, use it, and Close it; nothing here is a process-wide singleton.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/docindex/internal/catalog"
	"github.com/Aman-CERP/docindex/internal/chunk"
	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/Aman-CERP/docindex/internal/embed"
	"github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/index"
	"github.com/Aman-CERP/docindex/internal/loader"
	"github.com/Aman-CERP/docindex/internal/search"
	"github.com/Aman-CERP/docindex/internal/store"
)

// Engine is the shared state behind every CLI command and the MCP server.
type Engine struct {
	Config   *config.Config
	Embedder embed.Embedder
	Catalog  *catalog.Catalog
	Logger   *slog.Logger

	loader        loader.Loader
	queryEmbedder embed.Embedder
	ownsEmbedder  bool

	mu         sync.Mutex
	retrievers *lru.Cache[string, *sharedRetriever]
	closed     bool
}

// sharedRetriever counts the callers holding a cached retriever. A retriever
// dropped from the cache stays open until its last holder releases it.
// Fields are guarded by Engine.mu.
type sharedRetriever struct {
	name    string
	r       *search.Retriever
	refs    int
	evicted bool
}

// Option customizes New.
type Option func(*Engine)

// WithEmbedder uses e instead of the provider selected by the config.
// The caller keeps ownership; Close does not close it.
func WithEmbedder(e embed.Embedder) Option {
	return func(en *Engine) {
		en.Embedder = e
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(en *Engine) {
		en.Logger = l
	}
}

// WithLoader replaces the document loader. Default: loader.NewTextLoader().
func WithLoader(l loader.Loader) Option {
	return func(en *Engine) {
		en.loader = l
	}
}

// New validates cfg and builds an Engine rooted at cfg.Storage.Root.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "invalid configuration", err)
	}

	e := &Engine{Config: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	if e.loader == nil {
		e.loader = loader.NewTextLoader()
	}

	if e.Embedder == nil {
		emb, err := embed.NewEmbedder(ctx, cfg.Embeddings, e.Logger)
		if err != nil {
			return nil, errors.New(errors.ErrCodeEmbeddingFailed, "failed to initialize embedder", err)
		}
		e.Embedder = emb
		e.ownsEmbedder = true
	}

	// Builds embed passages once; only repeated queries benefit from caching.
	e.queryEmbedder = e.Embedder
	if cfg.Embeddings.CacheSize > 0 {
		e.queryEmbedder = embed.NewCachedEmbedder(e.Embedder, cfg.Embeddings.CacheSize)
	}

	builder, err := index.NewBuilder(index.BuilderDependencies{
		Embedder: e.Embedder,
		Loader:   e.loader,
		Logger:   e.Logger,
	})
	if err != nil {
		e.closeEmbedder()
		return nil, err
	}

	cat, err := catalog.Open(cfg.Storage.Root, catalog.Dependencies{Builder: builder, Logger: e.Logger})
	if err != nil {
		e.closeEmbedder()
		return nil, err
	}
	e.Catalog = cat

	size := max(cfg.Search.RetrieverCache, 1)
	cache, err := lru.NewWithEvict(size, func(_ string, sr *sharedRetriever) {
		sr.evicted = true
		if sr.refs == 0 {
			e.closeRetriever(sr)
		}
	})
	if err != nil {
		e.closeEmbedder()
		return nil, fmt.Errorf("failed to create retriever cache: %w", err)
	}
	e.retrievers = cache

	e.Logger.Debug("engine_ready",
		slog.String("root", cat.Root()),
		slog.String("embed_model", e.Embedder.ModelName()),
		slog.Int("dimensions", e.Embedder.Dimensions()))
	return e, nil
}

// IndexOptions override the configured build settings for one build.
// Zero values keep the config.
type IndexOptions struct {
	Variant   string
	ChunkSize int

	// ChunkOverlap keeps the config when nil; 0 is a valid override.
	ChunkOverlap *int

	OnStatus     func(msg string)
	OnProgress   func(pct int)
	ShouldCancel func() bool
}

func (e *Engine) buildOptions(opts IndexOptions) (catalog.BuildOptions, error) {
	ic := e.Config.Index
	variantName := ic.Type
	if opts.Variant != "" {
		variantName = opts.Variant
	}
	variant, err := store.ParseVariant(variantName)
	if err != nil {
		return catalog.BuildOptions{}, errors.ValidationError(err.Error(), err)
	}

	co := chunk.Options{Size: e.Config.Chunking.Size, Overlap: e.Config.Chunking.Overlap}
	if opts.ChunkSize > 0 {
		co.Size = opts.ChunkSize
	}
	if opts.ChunkOverlap != nil {
		co.Overlap = *opts.ChunkOverlap
	}
	if err := co.Validate(); err != nil {
		return catalog.BuildOptions{}, errors.ValidationError("invalid chunk options", err)
	}

	return catalog.BuildOptions{
		Variant: variant,
		Chunk:   co,
		Params: store.IndexParams{
			M:              ic.HNSWM,
			EfConstruction: ic.HNSWEfConstruction,
			EfSearch:       ic.HNSWEfSearch,
			NList:          ic.IVFNList,
			NProbe:         ic.IVFNProbe,
		},
		BatchSize:       ic.BatchSize,
		CheckpointEvery: ic.CheckpointEvery,
		TrainSample:     ic.TrainSample,
		SaveDocuments:   ic.SaveDocuments,
		TopK:            e.Config.Search.TopK,
		OnStatus:        opts.OnStatus,
		OnProgress:      opts.OnProgress,
		ShouldCancel:    opts.ShouldCancel,
	}, nil
}

// collect expands folders and files into the documents to index.
func (e *Engine) collect(ctx context.Context, paths []string) ([]string, error) {
	docs, err := loader.Collect(ctx, paths)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileNotFound, "cannot read source paths", err).
			WithSuggestion("Check that every path exists and is readable")
	}
	if len(docs) == 0 {
		return nil, errors.ValidationError("no supported documents found", nil).
			WithSuggestion(fmt.Sprintf("Supported extensions: %v", loader.DefaultExtensions))
	}
	return docs, nil
}

// Index creates the index name from folders and files in paths.
func (e *Engine) Index(ctx context.Context, name string, paths []string, opts IndexOptions) (*catalog.CreateResult, error) {
	bo, err := e.buildOptions(opts)
	if err != nil {
		return nil, err
	}
	docs, err := e.collect(ctx, paths)
	if err != nil {
		return nil, err
	}
	e.invalidate(name)
	return e.Catalog.Create(ctx, name, docs, bo)
}

// Rebuild recreates name from paths, or from the documents recorded at its
// last build when paths is empty.
func (e *Engine) Rebuild(ctx context.Context, name string, paths []string, opts IndexOptions) (*catalog.CreateResult, error) {
	bo, err := e.buildOptions(opts)
	if err != nil {
		return nil, err
	}
	var docs []string
	if len(paths) > 0 {
		if docs, err = e.collect(ctx, paths); err != nil {
			return nil, err
		}
	}
	e.invalidate(name)
	defer e.invalidate(name)
	return e.Catalog.Rebuild(ctx, name, docs, bo)
}

// Delete removes name. It reports false when nothing existed.
func (e *Engine) Delete(name string) (bool, error) {
	e.invalidate(name)
	return e.Catalog.Delete(name)
}

// DeleteAll removes every index and returns how many were deleted.
func (e *Engine) DeleteAll() (int, error) {
	e.mu.Lock()
	e.retrievers.Purge()
	e.mu.Unlock()
	return e.Catalog.DeleteAll()
}

// Rename moves oldName to newName.
func (e *Engine) Rename(oldName, newName string) error {
	e.invalidate(oldName)
	e.invalidate(newName)
	return e.Catalog.Rename(oldName, newName)
}

// CleanupOrphans deletes every index that fails validation.
func (e *Engine) CleanupOrphans() (int, error) {
	e.mu.Lock()
	e.retrievers.Purge()
	e.mu.Unlock()
	return e.Catalog.CleanupOrphans()
}

// Open returns the retriever for name, reusing a cached one when possible,
// and a release func the caller must call once done with it. Retrievers are
// shared; callers must not Close them.
func (e *Engine) Open(ctx context.Context, name string) (*search.Retriever, func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, nil, errors.New(errors.ErrCodeInternal, "engine is closed", nil)
	}
	if sr, ok := e.retrievers.Get(name); ok {
		return e.acquire(sr)
	}
	if name != catalog.LegacyName {
		if err := catalog.ValidateName(name); err != nil {
			return nil, nil, err
		}
	}

	backend, err := store.ParseSparseBackend(e.Config.Search.SparseBackend)
	if err != nil {
		return nil, nil, errors.ValidationError(err.Error(), err)
	}
	r, err := search.OpenRetriever(ctx, e.Catalog.IndexDir(name), e.queryEmbedder, search.Options{
		Weights: search.Weights{
			Dense:  e.Config.Search.DenseWeight,
			Sparse: e.Config.Search.SparseWeight,
		},
		DisableSparse:      !e.Config.Search.SparseEnabled,
		SparseBackend:      backend,
		AllowModelMismatch: e.Config.Search.AllowModelMismatch,
		NProbe:             e.Config.Index.IVFNProbe,
		Logger:             e.Logger,
	})
	if err != nil {
		return nil, nil, err
	}
	sr := &sharedRetriever{name: name, r: r}
	e.retrievers.Add(name, sr)
	return e.acquire(sr)
}

// acquire must be called with e.mu held.
func (e *Engine) acquire(sr *sharedRetriever) (*search.Retriever, func(), error) {
	sr.refs++
	var once sync.Once
	release := func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			sr.refs--
			if sr.refs == 0 && sr.evicted {
				e.closeRetriever(sr)
			}
		})
	}
	return sr.r, release, nil
}

func (e *Engine) closeRetriever(sr *sharedRetriever) {
	if err := sr.r.Close(); err != nil {
		e.Logger.Warn("failed to close retriever",
			slog.String("index", sr.name),
			slog.String("error", err.Error()))
	}
}

// Search runs a hybrid query against name. k <= 0 uses search.top_k.
func (e *Engine) Search(ctx context.Context, name, query string, k int) ([]search.Result, error) {
	if k <= 0 {
		k = e.Config.Search.TopK
	}
	r, release, err := e.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer release()
	return r.Search(ctx, query, k)
}

func (e *Engine) invalidate(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retrievers.Remove(name)
}

// Close releases cached retrievers and, when the engine created it, the
// embedding provider. Retrievers still held are closed on their release.
// Safe to call multiple times.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.retrievers.Purge()
	return e.closeEmbedder()
}

func (e *Engine) closeEmbedder() error {
	if !e.ownsEmbedder || e.Embedder == nil {
		return nil
	}
	return e.Embedder.Close()
}
