package catalog

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/docindex/internal/chunk"
	"github.com/Aman-CERP/docindex/internal/store"
)

// Descriptor describes one index. Named and legacy indexes share this type;
// only the parsers that synthesize it know the difference in layout.
type Descriptor struct {
	Name           string        `json:"name"`
	CreatedAt      time.Time     `json:"created_at"`
	LastModified   time.Time     `json:"last_modified"`
	DocumentCount  int           `json:"document_count"`
	VectorCount    int           `json:"vector_count"`
	EmbeddingModel string        `json:"embedding_model"`
	Dimensions     int           `json:"dimensions"`
	Variant        store.Variant `json:"index_type"`
	ChunkSize      int           `json:"chunk_size"`
	ChunkOverlap   int           `json:"chunk_overlap"`
	Documents      []string      `json:"documents"`
	SourcePaths    []string      `json:"source_paths"`
	SizeMB         float64       `json:"size_mb"`
	IsLegacy       bool          `json:"is_legacy"`
}

// UnknownModel is recorded when an index on disk has no sidecar.
const UnknownModel = "unknown"

// parseNamed synthesizes a descriptor for <root>/<name> from what is on disk.
func parseNamed(root, name string) (*Descriptor, error) {
	layout := store.Layout{Dir: filepath.Join(root, name)}
	d, err := inspect(layout)
	if err != nil {
		return nil, err
	}
	d.Name = name
	d.SizeMB = dirSizeMB(layout.Dir)
	return d, nil
}

// parseLegacy synthesizes the descriptor of an index stored directly in root.
func parseLegacy(root string) (*Descriptor, error) {
	layout := store.Layout{Dir: root}
	d, err := inspect(layout)
	if err != nil {
		return nil, err
	}
	d.Name = LegacyName
	d.IsLegacy = true
	d.SizeMB = filesSizeMB(layout.Artifacts()...)
	return d, nil
}

// inspect reads the sidecar when there is one and falls back to the index
// artifact and metadata log for everything else. Only a missing index
// artifact is an error: an unreadable one still gets a descriptor so that
// validation can flag it.
func inspect(layout store.Layout) (*Descriptor, error) {
	info, err := os.Stat(layout.IndexPath())
	if err != nil {
		return nil, err
	}
	d := &Descriptor{
		CreatedAt:      info.ModTime().UTC(),
		LastModified:   info.ModTime().UTC(),
		EmbeddingModel: UnknownModel,
		ChunkSize:      chunk.DefaultSize,
		ChunkOverlap:   chunk.DefaultOverlap,
		Documents:      []string{},
		SourcePaths:    []string{},
	}

	if sc, err := store.ReadSidecar(layout.SidecarPath()); err == nil {
		d.EmbeddingModel = sc.EmbedModel
		d.Variant = sc.IndexType
		d.ChunkSize = sc.ChunkSize
		d.ChunkOverlap = sc.ChunkOverlap
		d.Dimensions = sc.Dimensions
		d.VectorCount = sc.VectorCount
		if !sc.CreatedAt.IsZero() {
			d.CreatedAt = sc.CreatedAt
		}
	} else if idx, err := store.OpenVectorIndex(layout.IndexPath()); err == nil {
		d.Variant = idx.Variant()
		d.Dimensions = idx.Dimensions()
		d.VectorCount = idx.Count()
	}

	if records, err := store.ReadMetadata(layout.MetaPath()); err == nil {
		seen := make(map[string]bool)
		for _, r := range records {
			if r.File != "" && !seen[r.File] {
				seen[r.File] = true
				d.SourcePaths = append(d.SourcePaths, r.File)
			}
		}
		d.DocumentCount = len(d.SourcePaths)
	}
	if d.DocumentCount == 0 {
		if matches, _ := filepath.Glob(filepath.Join(layout.DocumentsDir(), "*.txt")); len(matches) > 0 {
			d.DocumentCount = len(matches)
		}
	}
	return d, nil
}

func toMB(bytes int64) float64 {
	return math.Round(float64(bytes)/(1024*1024)*100) / 100
}

func filesSizeMB(paths ...string) float64 {
	var total int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			total += info.Size()
		}
	}
	return toMB(total)
}

func dirSizeMB(dir string) float64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return toMB(total)
}

// ValidateName rejects names that are empty, contain a path separator, are
// "." or "..", are hidden, or collide with files kept at the storage root.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return invalidName(name, "name is empty")
	case name == "." || name == "..":
		return invalidName(name, "name is a relative path")
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, os.PathSeparator):
		return invalidName(name, "name contains a path separator")
	case strings.HasPrefix(name, "."):
		return invalidName(name, "name starts with a dot")
	case len(name) > 255:
		return invalidName(name, "name is longer than 255 bytes")
	}
	for _, reserved := range reservedNames {
		if name == reserved {
			return invalidName(name, "name is reserved")
		}
	}
	return nil
}

var reservedNames = []string{
	FileName,
	store.IndexFileName,
	store.MetaFileName,
	store.SidecarFileName,
	store.DocumentsDirName,
}
