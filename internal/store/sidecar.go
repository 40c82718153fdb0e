package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/renameio"
)

// Sidecar is the per-index descriptor written next to the artifacts once a
// build completes.
type Sidecar struct {
	EmbedModel   string    `json:"embed_model"`
	IndexType    Variant   `json:"index_type"`
	ChunkSize    int       `json:"chunk_size"`
	ChunkOverlap int       `json:"chunk_overlap"`
	Dimensions   int       `json:"dimensions"`
	VectorCount  int       `json:"vector_count"`
	TopK         int       `json:"top_k,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// WriteSidecar atomically writes s as indented JSON.
func WriteSidecar(path string, s Sidecar) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sidecar: %w", err)
	}
	if err := renameio.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write sidecar: %w", err)
	}
	return nil
}

// ReadSidecar loads the descriptor at path.
func ReadSidecar(path string) (*Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}
