package catalog

import (
	"math"
	"time"

	"github.com/Aman-CERP/docindex/internal/store"
)

// Status is a detailed health report of one index.
type Status struct {
	Name           string        `json:"name"`
	Exists         bool          `json:"exists"`
	Valid          bool          `json:"valid"`
	VectorCount    int           `json:"vector_count"`
	Dimensions     int           `json:"dimensions"`
	Variant        store.Variant `json:"index_type,omitempty"`
	Trained        bool          `json:"trained"`
	HasMetadata    bool          `json:"has_metadata"`
	MetadataCount  int           `json:"metadata_count"`
	DocumentCount  int           `json:"document_count"`
	EmbeddingModel string        `json:"embedding_model,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	LastModified   time.Time     `json:"last_modified"`
	SizeMB         float64       `json:"size_mb"`
	Error          string        `json:"error,omitempty"`
}

// Status inspects name on disk. Problems are reported in Status.Error rather
// than returned.
func (c *Catalog) Status(name string) Status {
	st := Status{Name: name}
	if err := ValidateName(name); err != nil {
		st.Error = err.Error()
		return st
	}
	if !c.Exists(name) {
		st.Error = "index does not exist"
		return st
	}
	st.Exists = true

	d, err := c.Get(name)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.DocumentCount = d.DocumentCount
	st.EmbeddingModel = d.EmbeddingModel
	st.CreatedAt = d.CreatedAt
	st.LastModified = d.LastModified
	st.SizeMB = d.SizeMB

	layout := store.Layout{Dir: c.IndexDir(name)}
	idx, err := store.OpenVectorIndex(layout.IndexPath())
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.VectorCount = idx.Count()
	st.Dimensions = idx.Dimensions()
	st.Variant = idx.Variant()
	st.Trained = !idx.NeedsTraining()

	if fileExists(layout.MetaPath()) {
		n, err := store.CountMetadata(layout.MetaPath())
		if err != nil {
			st.Error = err.Error()
			return st
		}
		st.HasMetadata = true
		st.MetadataCount = n
		st.Valid = n == st.VectorCount
		if !st.Valid {
			st.Error = "metadata record count does not match vector count"
		}
		return st
	}
	st.Valid = true
	return st
}

// IndexSummary is one line of a Summary.
type IndexSummary struct {
	Name      string    `json:"name"`
	Vectors   int       `json:"vectors"`
	Documents int       `json:"documents"`
	SizeMB    float64   `json:"size_mb"`
	Created   time.Time `json:"created"`
	Model     string    `json:"model"`
}

// Summary aggregates every listed index.
type Summary struct {
	TotalIndexes   int            `json:"total_indexes"`
	TotalVectors   int            `json:"total_vectors"`
	TotalDocuments int            `json:"total_documents"`
	TotalSizeMB    float64        `json:"total_size_mb"`
	Indexes        []IndexSummary `json:"indexes"`
}

// Summary lists the catalog and totals it.
func (c *Catalog) Summary() (Summary, error) {
	all, err := c.List()
	if err != nil {
		return Summary{}, err
	}
	s := Summary{TotalIndexes: len(all), Indexes: make([]IndexSummary, 0, len(all))}
	for _, d := range all {
		s.TotalVectors += d.VectorCount
		s.TotalDocuments += d.DocumentCount
		s.TotalSizeMB += d.SizeMB
		s.Indexes = append(s.Indexes, IndexSummary{
			Name:      d.Name,
			Vectors:   d.VectorCount,
			Documents: d.DocumentCount,
			SizeMB:    d.SizeMB,
			Created:   d.CreatedAt,
			Model:     d.EmbeddingModel,
		})
	}
	s.TotalSizeMB = math.Round(s.TotalSizeMB*100) / 100
	return s, nil
}
