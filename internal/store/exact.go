package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/viterin/vek/vek32"
)

// ExactIndex scores every stored vector against the query.
type ExactIndex struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
}

// NewExactIndex creates an empty exact index.
func NewExactIndex(dim int) *ExactIndex {
	return &ExactIndex{dim: dim}
}

func (x *ExactIndex) Variant() Variant    { return VariantExact }
func (x *ExactIndex) Dimensions() int     { return x.dim }
func (x *ExactIndex) NeedsTraining() bool { return false }

// Train is a no-op.
func (x *ExactIndex) Train([][]float32) error { return nil }

func (x *ExactIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Add appends copies of vectors.
func (x *ExactIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != x.dim {
			return ErrDimensionMismatch{Expected: x.dim, Got: len(v)}
		}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, v := range vectors {
		x.vectors = append(x.vectors, append([]float32(nil), v...))
	}
	return nil
}

// Search computes the inner product against every vector.
func (x *ExactIndex) Search(query []float32, k int) ([]VectorResult, error) {
	if len(query) != x.dim {
		return nil, ErrDimensionMismatch{Expected: x.dim, Got: len(query)}
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	top := newTopK(min(k, len(x.vectors)))
	for i, v := range x.vectors {
		top.offer(i, vek32.Dot(query, v))
	}
	return top.results(), nil
}

// Save writes dim, count, then the raw vectors.
func (x *ExactIndex) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return writeArtifact(path, VariantExact, func(w *bufio.Writer) error {
		if err := binary.Write(w, binary.LittleEndian, [2]uint32{uint32(x.dim), uint32(len(x.vectors))}); err != nil {
			return err
		}
		return writeFloats(w, x.vectors)
	})
}

func readExact(r io.Reader, size int64) (*ExactIndex, error) {
	var hdr [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr[0] == 0 {
		return nil, fmt.Errorf("zero dimensions")
	}
	if _, err := payloadBytes(uint64(hdr[1]), uint64(hdr[0])*4, size-8); err != nil {
		return nil, err
	}
	vectors, err := readFloats(r, int(hdr[1]), int(hdr[0]))
	if err != nil {
		return nil, err
	}
	return &ExactIndex{dim: int(hdr[0]), vectors: vectors}, nil
}

var _ VectorIndex = (*ExactIndex)(nil)
