// Package store holds the on-disk artifacts of a named index: the vector
// index, the append-only metadata log and the sidecar descriptor, plus the
// in-memory sparse scorers built over the metadata at query time.
package store

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Variant selects the structural type of a vector index.
type Variant string

const (
	// VariantExact is a brute-force inner product index.
	VariantExact Variant = "flat"

	// VariantGraph is an HNSW graph.
	VariantGraph Variant = "hnsw"

	// VariantPartitioned is an inverted-file index over k-means partitions.
	VariantPartitioned Variant = "ivf"
)

// ParseVariant maps a configured index type to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "flat", "exact":
		return VariantExact, nil
	case "hnsw", "graph", "":
		return VariantGraph, nil
	case "ivf", "partitioned":
		return VariantPartitioned, nil
	default:
		return "", fmt.Errorf("unknown index type %q (want flat, hnsw or ivf)", s)
	}
}

// Artifact file names inside an index directory.
const (
	IndexFileName    = "index.faiss"
	MetaFileName     = "meta.jsonl"
	SidecarFileName  = "index.json"
	DocumentsDirName = "documents"
	BuildLockName    = ".build.lock"
)

// VectorResult is a single nearest-neighbour hit.
// Score is an inner product of unit vectors: higher is more similar.
type VectorResult struct {
	Ordinal int
	Score   float32
}

// Record is one line of the metadata log. Its position in the log equals the
// ordinal of the vector it describes.
type Record struct {
	Text   string `json:"text"`
	File   string `json:"file"`
	Page   int    `json:"page"`
	DocID  string `json:"doc_id"`
	Source string `json:"source"`
}

// Layout resolves artifact paths for one index directory.
type Layout struct {
	Dir string
}

// IndexPath returns the vector index artifact path.
func (l Layout) IndexPath() string { return filepath.Join(l.Dir, IndexFileName) }

// MetaPath returns the metadata log path.
func (l Layout) MetaPath() string { return filepath.Join(l.Dir, MetaFileName) }

// SidecarPath returns the sidecar descriptor path.
func (l Layout) SidecarPath() string { return filepath.Join(l.Dir, SidecarFileName) }

// DocumentsDir returns the directory holding extracted document text.
func (l Layout) DocumentsDir() string { return filepath.Join(l.Dir, DocumentsDirName) }

// DocumentPath returns the extracted text path for the n-th document (0-based).
func (l Layout) DocumentPath(n int) string {
	return filepath.Join(l.DocumentsDir(), fmt.Sprintf("document_%d.txt", n))
}

// LockPath returns the build lock path.
func (l Layout) LockPath() string { return filepath.Join(l.Dir, BuildLockName) }

// Artifacts lists the files a build produces, excluding documents/.
func (l Layout) Artifacts() []string {
	return []string{l.IndexPath(), l.MetaPath(), l.SidecarPath()}
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (rebuild the index)", e.Expected, e.Got)
}
