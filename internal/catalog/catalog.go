// Package catalog manages the named indexes under one storage root: the
// catalog file mapping names to descriptors, creation through the index
// builder, and delete, rename, validation and discovery of indexes on disk.
package catalog

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/renameio"

	"github.com/Aman-CERP/docindex/internal/chunk"
	"github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/index"
	"github.com/Aman-CERP/docindex/internal/store"
)

const (
	// FileName is the catalog file at the storage root.
	FileName = "index_metadata.json"

	// LockName serializes catalog mutations across processes.
	LockName = ".catalog.lock"

	// LegacyName is the synthesized name of an index stored in the root itself.
	LegacyName = "default_index"
)

// Dependencies contains the injected dependencies for Catalog.
type Dependencies struct {
	// Builder creates indexes; required by Create and Rebuild only.
	Builder *index.Builder
	Logger  *slog.Logger
}

// BuildOptions are passed through to the index builder.
type BuildOptions struct {
	Variant         store.Variant
	Chunk           chunk.Options
	Params          store.IndexParams
	BatchSize       int
	CheckpointEvery int
	TrainSample     int
	SaveDocuments   bool
	TopK            int

	OnStatus     func(msg string)
	OnProgress   func(pct int)
	ShouldCancel func() bool
}

// CreateResult reports a Create or Rebuild.
type CreateResult struct {
	// Descriptor is nil when a cancelled build produced no vectors.
	Descriptor *Descriptor
	Build      *index.BuildResult
}

// Catalog is the registry of indexes under one root. Methods are safe for
// concurrent use; mutations also hold a file lock on <root>/.catalog.lock.
type Catalog struct {
	root    string
	builder *index.Builder
	logger  *slog.Logger
	lock    *index.FileLock
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*Descriptor
	loaded  bool
}

// Open prepares the catalog rooted at root, creating the directory if needed.
// The catalog file is read lazily.
func Open(root string, deps Dependencies) (*Catalog, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeFilePermission, "cannot create storage root", err).
			WithDetail("root", abs)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		root:    abs,
		builder: deps.Builder,
		logger:  logger,
		lock:    index.NewFileLock(filepath.Join(abs, LockName)),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Root returns the storage root.
func (c *Catalog) Root() string { return c.root }

// IndexDir returns the directory holding the artifacts of name. For the
// legacy index this is the root itself.
func (c *Catalog) IndexDir(name string) string {
	if c.isLegacy(name) {
		return c.root
	}
	return filepath.Join(c.root, name)
}

func (c *Catalog) isLegacy(name string) bool {
	return name == LegacyName && fileExists(filepath.Join(c.root, store.IndexFileName))
}

func (c *Catalog) namedExists(name string) bool {
	return fileExists(store.Layout{Dir: filepath.Join(c.root, name)}.IndexPath())
}

// Exists reports whether name has an index artifact on disk.
func (c *Catalog) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	return c.namedExists(name) || c.isLegacy(name)
}

// mutate runs fn with the catalog freshly loaded under both locks and saves
// the catalog afterwards when fn reports a change.
func (c *Catalog) mutate(fn func() (bool, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = c.lock.Unlock() }()

	c.reload()
	changed, err := fn()
	if changed {
		if saveErr := c.save(); saveErr != nil && err == nil {
			err = saveErr
		}
	}
	return err
}

// read runs fn with the catalog loaded, without the file lock.
func (c *Catalog) read(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.reload()
	}
	fn()
}

// reload reads the catalog file. A missing or corrupt file yields an empty
// catalog; indexes are rediscovered by List.
func (c *Catalog) reload() {
	c.entries = make(map[string]*Descriptor)
	c.loaded = true

	data, err := os.ReadFile(filepath.Join(c.root, FileName))
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("failed to read catalog", slog.String("error", err.Error()))
		}
		return
	}
	var entries map[string]*Descriptor
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn("catalog file is corrupt, starting empty",
			slog.String("path", filepath.Join(c.root, FileName)),
			slog.String("error", err.Error()))
		return
	}
	for name, d := range entries {
		if d == nil {
			continue
		}
		d.Name = name
		c.entries[name] = d
	}
}

func (c *Catalog) save() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := renameio.WriteFile(filepath.Join(c.root, FileName), append(data, '\n'), 0o644); err != nil {
		return errors.New(errors.ErrCodeFilePermission, "failed to write catalog", err)
	}
	return nil
}

// Create builds a new index called name from documents and registers it.
// It fails with errors.ErrIndexExists when an index artifact for name is
// already on disk.
func (c *Catalog) Create(ctx context.Context, name string, documents []string, opts BuildOptions) (*CreateResult, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if c.builder == nil {
		return nil, fmt.Errorf("catalog has no index builder")
	}
	if c.Exists(name) {
		return nil, errors.New(errors.ErrCodeIndexExists, fmt.Sprintf("index %q already exists", name), nil).
			WithSuggestion("Choose another name, or rebuild or delete the existing index")
	}

	chunkOpts := opts.Chunk
	if chunkOpts.Size <= 0 {
		chunkOpts = chunk.DefaultOptions()
	}

	dir := filepath.Join(c.root, name)
	_, statErr := os.Stat(dir)
	created := os.IsNotExist(statErr)

	c.logger.Info("index_create_start",
		slog.String("name", name),
		slog.Int("documents", len(documents)))

	res, err := c.builder.Build(ctx, index.BuildRequest{
		Dir:             dir,
		Documents:       documents,
		Variant:         opts.Variant,
		Chunk:           chunkOpts,
		Params:          opts.Params,
		BatchSize:       opts.BatchSize,
		CheckpointEvery: opts.CheckpointEvery,
		TrainSample:     opts.TrainSample,
		SaveDocuments:   opts.SaveDocuments,
		TopK:            opts.TopK,
		OnStatus:        opts.OnStatus,
		OnProgress:      opts.OnProgress,
		ShouldCancel:    opts.ShouldCancel,
	})
	if err != nil || res.VectorsWritten == 0 {
		// keep checkpoint files from a failed build; drop a directory that
		// holds nothing
		if created && !c.namedExists(name) {
			_ = os.RemoveAll(dir)
		}
		if err != nil {
			return nil, err
		}
		return &CreateResult{Build: res}, nil
	}

	now := c.now()
	d := &Descriptor{
		Name:           name,
		CreatedAt:      now,
		LastModified:   now,
		DocumentCount:  res.FilesProcessed,
		VectorCount:    res.VectorsWritten,
		EmbeddingModel: res.EmbedModel,
		Dimensions:     res.Dimensions,
		Variant:        res.Variant,
		ChunkSize:      chunkOpts.Size,
		ChunkOverlap:   chunkOpts.Overlap,
		Documents:      append([]string{}, documents...),
		SourcePaths:    append([]string{}, res.SourcePaths...),
		SizeMB:         dirSizeMB(dir),
	}
	err = c.mutate(func() (bool, error) {
		c.entries[name] = d
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("index_created",
		slog.String("name", name),
		slog.Int("documents", d.DocumentCount),
		slog.Int("vectors", d.VectorCount),
		slog.Bool("cancelled", res.Cancelled))
	return &CreateResult{Descriptor: clone(d), Build: res}, nil
}

// Delete removes the artifacts of name and its catalog entry. It returns
// false when there was no index to delete.
func (c *Catalog) Delete(name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	var deleted bool
	err := c.mutate(func() (bool, error) {
		var err error
		deleted, err = c.deleteLocked(name)
		return true, err
	})
	return deleted, err
}

func (c *Catalog) deleteLocked(name string) (bool, error) {
	_, hadEntry := c.entries[name]
	delete(c.entries, name)

	switch {
	case c.isLegacy(name):
		if err := index.RemoveArtifacts(store.Layout{Dir: c.root}); err != nil {
			return false, err
		}
	case dirExists(filepath.Join(c.root, name)):
		if err := os.RemoveAll(filepath.Join(c.root, name)); err != nil {
			return false, errors.New(errors.ErrCodeFilePermission, "failed to delete index", err).
				WithDetail("name", name)
		}
	default:
		if hadEntry {
			c.logger.Info("removed stale catalog entry", slog.String("name", name))
		}
		return false, nil
	}

	c.logger.Info("index_deleted", slog.String("name", name))
	return true, nil
}

// Rebuild deletes name and creates it again. When documents is empty the
// document list recorded at creation is reused.
func (c *Catalog) Rebuild(ctx context.Context, name string, documents []string, opts BuildOptions) (*CreateResult, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		if d, err := c.Get(name); err == nil {
			documents = d.Documents
		}
	}
	if len(documents) == 0 {
		return nil, errors.ValidationError("no documents to rebuild from", nil).
			WithDetail("name", name).
			WithSuggestion("Pass the documents or folders to index")
	}

	c.logger.Info("index_rebuild", slog.String("name", name), slog.Int("documents", len(documents)))
	if _, err := c.Delete(name); err != nil {
		return nil, err
	}
	return c.Create(ctx, name, documents, opts)
}

// Rename moves oldName to newName. A legacy index is copied into the named
// layout and its root files removed afterwards.
func (c *Catalog) Rename(oldName, newName string) error {
	if err := ValidateName(oldName); err != nil {
		return err
	}
	if err := ValidateName(newName); err != nil {
		return err
	}
	return c.mutate(func() (bool, error) {
		if !c.namedExists(oldName) && !c.isLegacy(oldName) {
			return false, notFound(oldName)
		}
		if c.namedExists(newName) || c.isLegacy(newName) || dirExists(filepath.Join(c.root, newName)) {
			return false, errors.New(errors.ErrCodeIndexExists, fmt.Sprintf("index %q already exists", newName), nil)
		}

		d := c.entries[oldName]
		if c.isLegacy(oldName) {
			if err := c.migrateLegacy(newName); err != nil {
				return false, err
			}
		} else if err := os.Rename(filepath.Join(c.root, oldName), filepath.Join(c.root, newName)); err != nil {
			return false, errors.New(errors.ErrCodeFilePermission, "failed to rename index", err).
				WithDetail("from", oldName).
				WithDetail("to", newName)
		}

		delete(c.entries, oldName)
		if d == nil {
			var err error
			if d, err = parseNamed(c.root, newName); err != nil {
				return true, err
			}
		}
		d.Name = newName
		d.IsLegacy = false
		d.LastModified = c.now()
		d.SizeMB = dirSizeMB(filepath.Join(c.root, newName))
		c.entries[newName] = d

		c.logger.Info("index_renamed", slog.String("from", oldName), slog.String("to", newName))
		return true, nil
	})
}

// migrateLegacy copies the root artifacts and documents into <root>/<name>
// and removes the originals once every copy succeeded.
func (c *Catalog) migrateLegacy(name string) error {
	src := store.Layout{Dir: c.root}
	dst := store.Layout{Dir: filepath.Join(c.root, name)}
	if err := os.MkdirAll(dst.Dir, 0o755); err != nil {
		return errors.New(errors.ErrCodeFilePermission, "failed to create index directory", err)
	}

	err := func() error {
		for _, name := range []string{store.IndexFileName, store.MetaFileName, store.SidecarFileName} {
			from := filepath.Join(src.Dir, name)
			if !fileExists(from) {
				continue
			}
			if err := copyFile(from, filepath.Join(dst.Dir, name)); err != nil {
				return err
			}
		}
		if dirExists(src.DocumentsDir()) {
			return copyDir(src.DocumentsDir(), dst.DocumentsDir())
		}
		return nil
	}()
	if err != nil {
		_ = os.RemoveAll(dst.Dir)
		return errors.New(errors.ErrCodeFilePermission, "failed to copy legacy index", err)
	}

	if err := index.RemoveArtifacts(src); err != nil {
		return err
	}
	c.logger.Info("migrated legacy index", slog.String("to", name))
	return nil
}

// Get returns the descriptor of name, synthesizing and registering one when
// the index is on disk but missing from the catalog.
func (c *Catalog) Get(name string) (*Descriptor, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if !c.Exists(name) {
		return nil, notFound(name)
	}

	var d *Descriptor
	c.read(func() { d = clone(c.entries[name]) })
	if d != nil {
		d.SizeMB = c.Size(name)
		return d, nil
	}

	var synth *Descriptor
	err := c.mutate(func() (bool, error) {
		var err error
		synth, err = c.synthesize(name)
		if err != nil {
			return false, err
		}
		c.entries[name] = synth
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(synth), nil
}

func (c *Catalog) synthesize(name string) (*Descriptor, error) {
	if c.isLegacy(name) {
		return parseLegacy(c.root)
	}
	return parseNamed(c.root, name)
}

// List returns every index on disk sorted by LastModified, newest first.
// Indexes missing from the catalog get synthesized descriptors which are
// saved back; entries whose artifacts are gone are dropped.
func (c *Catalog) List() ([]Descriptor, error) {
	var out []Descriptor
	err := c.mutate(func() (bool, error) {
		changed := false
		seen := make(map[string]bool)

		dirs, err := os.ReadDir(c.root)
		if err != nil {
			return false, errors.New(errors.ErrCodeFileNotFound, "cannot read storage root", err)
		}
		for _, e := range dirs {
			if !e.IsDir() || ValidateName(e.Name()) != nil || !c.namedExists(e.Name()) {
				continue
			}
			seen[e.Name()] = true
			if _, ok := c.entries[e.Name()]; !ok {
				d, err := parseNamed(c.root, e.Name())
				if err != nil {
					c.logger.Warn("failed to describe index",
						slog.String("name", e.Name()),
						slog.String("error", err.Error()))
					continue
				}
				c.entries[e.Name()] = d
				changed = true
				c.logger.Info("discovered index", slog.String("name", e.Name()))
			}
		}

		if c.isLegacy(LegacyName) && !seen[LegacyName] {
			seen[LegacyName] = true
			if d, ok := c.entries[LegacyName]; !ok || !d.IsLegacy {
				d, err := parseLegacy(c.root)
				if err != nil {
					c.logger.Warn("failed to describe legacy index", slog.String("error", err.Error()))
				} else {
					c.entries[LegacyName] = d
					changed = true
				}
			}
		}

		for name := range c.entries {
			if !seen[name] {
				delete(c.entries, name)
				changed = true
			}
		}

		for name, d := range c.entries {
			if d.IsLegacy {
				d.SizeMB = filesSizeMB(store.Layout{Dir: c.root}.Artifacts()...)
			} else {
				d.SizeMB = dirSizeMB(filepath.Join(c.root, name))
			}
			out = append(out, *clone(d))
		}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b Descriptor) int {
		if n := b.LastModified.Compare(a.LastModified); n != 0 {
			return n
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}

// Validate reports whether name exists, its descriptor loads, its vector
// index opens, and its metadata log (when present) has one record per vector.
func (c *Catalog) Validate(name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	st := c.Status(name)
	return st.Exists && st.Valid, nil
}

// CleanupOrphans deletes every listed index that fails Validate and returns
// how many were removed.
func (c *Catalog) CleanupOrphans() (int, error) {
	all, err := c.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, d := range all {
		if ok, _ := c.Validate(d.Name); ok {
			continue
		}
		c.logger.Info("removing orphaned index", slog.String("name", d.Name))
		deleted, err := c.Delete(d.Name)
		if err != nil {
			return removed, err
		}
		if deleted {
			removed++
		}
	}
	c.logger.Info("orphan_cleanup_complete", slog.Int("removed", removed))
	return removed, nil
}

// DeleteAll deletes every listed index and returns how many were removed.
func (c *Catalog) DeleteAll() (int, error) {
	all, err := c.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, d := range all {
		deleted, err := c.Delete(d.Name)
		if err != nil {
			return removed, err
		}
		if deleted {
			removed++
		}
	}
	return removed, nil
}

// Size returns the on-disk size of name in MB, rounded to two decimals.
func (c *Catalog) Size(name string) float64 {
	if c.isLegacy(name) {
		return filesSizeMB(store.Layout{Dir: c.root}.Artifacts()...)
	}
	return dirSizeMB(filepath.Join(c.root, name))
}

func notFound(name string) error {
	return errors.New(errors.ErrCodeIndexNotAvailable, fmt.Sprintf("index %q does not exist", name), nil).
		WithSuggestion("Run 'docindex list' to see available indexes")
}

func invalidName(name, reason string) error {
	return errors.New(errors.ErrCodeInvalidIndexName, fmt.Sprintf("invalid index name %q: %s", name, reason), nil)
}

func clone(d *Descriptor) *Descriptor {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Documents = slices.Clone(d.Documents)
	cp.SourcePaths = slices.Clone(d.SourcePaths)
	return &cp
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}
