// Package index builds a named index from documents: it streams documents
// through the chunker and embedder into a vector index and metadata log,
// checkpointing as it goes, and finishes with a sidecar descriptor.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/docindex/internal/chunk"
	"github.com/Aman-CERP/docindex/internal/embed"
	"github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/loader"
	"github.com/Aman-CERP/docindex/internal/store"
)

// Defaults for BuildRequest fields left at zero.
const (
	DefaultBatchSize       = 64
	DefaultCheckpointEvery = 2000
	DefaultTrainSample     = 50000
)

// BuilderDependencies contains the injected dependencies for Builder.
type BuilderDependencies struct {
	// Embedder for generating passage embeddings (required).
	Embedder embed.Embedder

	// Loader extracts page texts; TextLoader when nil.
	Loader loader.Loader

	// Logger receives build diagnostics; slog.Default() when nil.
	Logger *slog.Logger
}

// BuildRequest describes one build.
type BuildRequest struct {
	// Dir is the index directory. Existing artifacts in it are replaced.
	Dir string

	// Documents are processed in the given order.
	Documents []string

	Variant store.Variant
	Params  store.IndexParams
	Chunk   chunk.Options

	// BatchSize is the number of chunks per embedding call.
	BatchSize int

	// CheckpointEvery saves the index each time this many more vectors are inserted.
	CheckpointEvery int

	// TrainSample caps the vectors buffered to train a partitioned index.
	TrainSample int

	// SaveDocuments writes documents/document_N.txt with the extracted text.
	SaveDocuments bool

	// TopK is recorded in the sidecar.
	TopK int

	OnStatus     func(msg string)
	OnProgress   func(pct int)
	ShouldCancel func() bool
}

// BuildResult reports what a build produced.
type BuildResult struct {
	FilesProcessed int
	VectorsWritten int
	Cancelled      bool
	Dimensions     int
	EmbedModel     string
	Variant        store.Variant

	// SourcePaths are the absolute paths of documents that loaded.
	SourcePaths []string

	// Skipped lists documents that failed to load.
	Skipped []string

	Duration time.Duration
}

// Builder runs index builds. A Builder holds no per-build state and may be
// reused; builds of the same directory are serialized by a file lock.
type Builder struct {
	embedder embed.Embedder
	loader   loader.Loader
	logger   *slog.Logger
}

// NewBuilder creates a Builder with injected dependencies.
func NewBuilder(deps BuilderDependencies) (*Builder, error) {
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	l := deps.Loader
	if l == nil {
		l = loader.NewTextLoader()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{embedder: deps.Embedder, loader: l, logger: logger}, nil
}

func (r *BuildRequest) applyDefaults() {
	if r.Variant == "" {
		r.Variant = store.VariantGraph
	}
	if r.Chunk.Size <= 0 {
		r.Chunk = chunk.DefaultOptions()
	}
	if r.BatchSize <= 0 {
		r.BatchSize = DefaultBatchSize
	}
	if r.CheckpointEvery <= 0 {
		r.CheckpointEvery = DefaultCheckpointEvery
	}
	if r.TrainSample <= 0 {
		r.TrainSample = DefaultTrainSample
	}
}

// Build creates the index in req.Dir from req.Documents.
//
// A document that fails to load is skipped with a warning. An embedding
// failure aborts the build and leaves the last checkpoint on disk. A build
// that produces no vectors without being cancelled fails with
// errors.ErrNoChunks and leaves no artifacts.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	start := time.Now()
	req.applyDefaults()
	if req.Dir == "" {
		return nil, errors.ValidationError("index directory is required", nil)
	}
	chunker, err := chunk.New(req.Chunk)
	if err != nil {
		return nil, errors.ValidationError(err.Error(), err)
	}

	layout := store.Layout{Dir: req.Dir}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeFilePermission, "cannot create index directory", err).
			WithDetail("dir", req.Dir)
	}

	lock := NewFileLock(layout.LockPath())
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, errors.New(errors.ErrCodeBuildLocked, "another build of this index is running", nil).
			WithDetail("dir", req.Dir)
	}
	defer func() { _ = lock.Unlock() }()

	if err := RemoveArtifacts(layout); err != nil {
		return nil, err
	}

	meta, err := store.CreateMetadata(layout.MetaPath())
	if err != nil {
		return nil, err
	}

	run := &buildRun{
		builder: b,
		req:     req,
		layout:  layout,
		meta:    meta,
		result:  &BuildResult{Variant: req.Variant, EmbedModel: b.embedder.ModelName()},
	}

	runErr := run.processDocuments(ctx, chunker)
	if runErr == nil {
		runErr = run.finish(ctx)
	}
	_ = meta.Close()

	if runErr != nil {
		b.logger.Error("index_build_failed",
			append([]any{slog.String("dir", req.Dir)}, errors.LogAttrs(runErr)...)...)
		return nil, runErr
	}

	res := run.result
	if res.VectorsWritten == 0 {
		if err := RemoveArtifacts(layout); err != nil {
			b.logger.Warn("failed to remove artifacts", slog.String("error", err.Error()))
		}
		if !res.Cancelled {
			return nil, errors.New(errors.ErrCodeNoChunks, "no embeddable text found in the given documents", nil).
				WithSuggestion("Check that the documents contain extractable text")
		}
		res.Duration = time.Since(start)
		return res, nil
	}

	if err := run.idx.Save(layout.IndexPath()); err != nil {
		return nil, errors.New(errors.ErrCodeIndexFailed, "failed to save index", err)
	}
	sidecar := store.Sidecar{
		EmbedModel:   res.EmbedModel,
		IndexType:    req.Variant,
		ChunkSize:    req.Chunk.Size,
		ChunkOverlap: req.Chunk.Overlap,
		Dimensions:   res.Dimensions,
		VectorCount:  res.VectorsWritten,
		TopK:         req.TopK,
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.WriteSidecar(layout.SidecarPath(), sidecar); err != nil {
		return nil, errors.New(errors.ErrCodeIndexFailed, "failed to write sidecar", err)
	}

	res.Duration = time.Since(start)
	b.logger.Info("index_build_complete",
		slog.String("dir", req.Dir),
		slog.Int("files", res.FilesProcessed),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int("vectors", res.VectorsWritten),
		slog.Int("dimensions", res.Dimensions),
		slog.String("variant", string(req.Variant)),
		slog.String("model", res.EmbedModel),
		slog.Bool("cancelled", res.Cancelled),
		slog.Int64("duration_ms", res.Duration.Milliseconds()))
	return res, nil
}

// buildRun holds the mutable state of one Build call.
type buildRun struct {
	builder *Builder
	req     BuildRequest
	layout  store.Layout
	meta    *store.MetadataWriter
	idx     store.VectorIndex
	result  *BuildResult

	pendingTexts   []string
	pendingRecords []store.Record

	// vectors held back until a partitioned index can be trained
	trainVectors [][]float32
	trainRecords []store.Record

	lastCheckpoint int
}

func (r *buildRun) status(msg string) {
	if r.req.OnStatus != nil {
		r.req.OnStatus(msg)
	}
}

func (r *buildRun) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return r.req.ShouldCancel != nil && r.req.ShouldCancel()
}

func (r *buildRun) processDocuments(ctx context.Context, chunker *chunk.Chunker) error {
	total := len(r.req.Documents)
	for i, path := range r.req.Documents {
		if r.cancelled(ctx) {
			r.result.Cancelled = true
			r.status("Cancelled by user.")
			break
		}

		r.status(fmt.Sprintf("Indexing: %s", filepath.Base(path)))
		doc, err := loader.Open(ctx, r.builder.loader, path)
		if err != nil {
			r.builder.logger.Warn("document_skipped",
				slog.String("path", path),
				slog.String("error", err.Error()))
			r.status(fmt.Sprintf("[SKIP] %s: %v", filepath.Base(path), err))
			r.result.Skipped = append(r.result.Skipped, path)
			continue
		}

		if r.req.SaveDocuments {
			if err := r.saveDocument(r.result.FilesProcessed, doc); err != nil {
				r.builder.logger.Warn("failed to save document text",
					slog.String("path", doc.Path),
					slog.String("error", err.Error()))
			}
		}

		for _, c := range chunker.ChunkPages(doc.Pages) {
			r.pendingTexts = append(r.pendingTexts, c.Text)
			r.pendingRecords = append(r.pendingRecords, store.Record{
				Text:   c.Text,
				File:   doc.Path,
				Page:   c.Page,
				DocID:  doc.ID,
				Source: doc.Name,
			})
			// a document is never split by cancellation; the check runs
			// between documents
			if len(r.pendingTexts) >= r.req.BatchSize {
				if err := r.flush(context.WithoutCancel(ctx)); err != nil {
					return err
				}
			}
		}

		r.result.FilesProcessed++
		r.result.SourcePaths = append(r.result.SourcePaths, doc.Path)
		if r.req.OnProgress != nil {
			r.req.OnProgress((i + 1) * 100 / total)
		}
	}
	return nil
}

func (r *buildRun) saveDocument(n int, doc *loader.Document) error {
	if err := os.MkdirAll(r.layout.DocumentsDir(), 0o755); err != nil {
		return err
	}
	return os.WriteFile(r.layout.DocumentPath(n), []byte(doc.Text()), 0o644)
}

// flush embeds the pending chunks and hands them to the index.
func (r *buildRun) flush(ctx context.Context) error {
	if len(r.pendingTexts) == 0 {
		return nil
	}
	texts, records := r.pendingTexts, r.pendingRecords
	r.pendingTexts, r.pendingRecords = nil, nil

	vectors, err := r.builder.embedder.EmbedBatch(ctx, embed.WithPrefix(embed.PassagePrefix, texts))
	if err != nil {
		return errors.New(errors.ErrCodeEmbeddingFailed, "embedding failed", err).
			WithDetail("model", r.builder.embedder.ModelName())
	}
	if len(vectors) != len(texts) {
		return errors.New(errors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("embedder returned %d vectors for %d texts", len(vectors), len(texts)), nil)
	}
	embed.NormalizeAll(vectors)

	if r.idx == nil {
		dim := len(vectors[0])
		idx, err := store.NewVectorIndex(r.req.Variant, dim, r.req.Params)
		if err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "failed to create index", err)
		}
		r.idx = idx
		r.result.Dimensions = dim
	}

	if r.idx.NeedsTraining() {
		r.trainVectors = append(r.trainVectors, vectors...)
		r.trainRecords = append(r.trainRecords, records...)
		if len(r.trainVectors) < r.req.TrainSample {
			return nil
		}
		return r.trainAndDrain()
	}
	return r.insert(vectors, records)
}

// trainAndDrain trains on the buffered vectors (at most TrainSample of them)
// and inserts the whole buffer.
func (r *buildRun) trainAndDrain() error {
	if len(r.trainVectors) == 0 {
		return nil
	}
	sample := r.trainVectors[:min(len(r.trainVectors), r.req.TrainSample)]
	r.status(fmt.Sprintf("Training index on %d vectors…", len(sample)))
	if err := r.idx.Train(sample); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "failed to train index", err)
	}
	vectors, records := r.trainVectors, r.trainRecords
	r.trainVectors, r.trainRecords = nil, nil
	return r.insert(vectors, records)
}

// insert adds vectors then their records, so the log never runs ahead of
// the index, and checkpoints when the interval is crossed.
func (r *buildRun) insert(vectors [][]float32, records []store.Record) error {
	if err := r.idx.Add(vectors); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "failed to add vectors", err)
	}
	if err := r.meta.Append(records...); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "failed to append metadata", err)
	}
	r.result.VectorsWritten += len(vectors)
	r.status(fmt.Sprintf("Embeddings: +%d (total=%d)", len(vectors), r.result.VectorsWritten))

	if r.result.VectorsWritten/r.req.CheckpointEvery > r.lastCheckpoint/r.req.CheckpointEvery {
		if err := r.idx.Save(r.layout.IndexPath()); err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "failed to checkpoint index", err)
		}
		r.lastCheckpoint = r.result.VectorsWritten
		r.builder.logger.Debug("index_checkpoint",
			slog.String("dir", r.req.Dir),
			slog.Int("vectors", r.result.VectorsWritten))
	}
	return nil
}

// finish flushes the tail batch and any untrained buffer.
func (r *buildRun) finish(ctx context.Context) error {
	// the tail is embedded even after cancellation so that completed
	// documents are fully represented
	if err := r.flush(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	if r.idx != nil && r.idx.NeedsTraining() {
		return r.trainAndDrain()
	}
	return nil
}

// RemoveArtifacts deletes the index artifacts and documents/ in layout.Dir.
// Missing files are ignored; the directory itself and the lock file stay.
func RemoveArtifacts(layout store.Layout) error {
	for _, p := range layout.Artifacts() {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.New(errors.ErrCodeFilePermission, "failed to remove artifact", err).
				WithDetail("path", p)
		}
	}
	if err := os.RemoveAll(layout.DocumentsDir()); err != nil {
		return errors.New(errors.ErrCodeFilePermission, "failed to remove documents", err)
	}
	return nil
}
