package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/coder/hnsw"
)

// GraphIndex implements VectorIndex using the coder/hnsw pure Go HNSW graph.
// Nodes are keyed by ordinal.
type GraphIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	dim    int
	params IndexParams
}

// NewGraphIndex creates an empty HNSW index. EfConstruction is recorded in
// the artifact; the graph library sizes its build-time candidate list from M.
func NewGraphIndex(dim int, params IndexParams) *GraphIndex {
	params = params.withDefaults()
	return &GraphIndex{
		graph:  newGraph(params),
		dim:    dim,
		params: params,
	}
}

func newGraph(params IndexParams) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = params.M
	g.EfSearch = params.EfSearch
	g.Ml = 0.25
	return g
}

func (g *GraphIndex) Variant() Variant    { return VariantGraph }
func (g *GraphIndex) Dimensions() int     { return g.dim }
func (g *GraphIndex) NeedsTraining() bool { return false }

// Train is a no-op.
func (g *GraphIndex) Train([][]float32) error { return nil }

// Params returns the graph parameters.
func (g *GraphIndex) Params() IndexParams { return g.params }

func (g *GraphIndex) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.graph.Len()
}

// Add inserts vectors with the next free ordinals.
func (g *GraphIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != g.dim {
			return ErrDimensionMismatch{Expected: g.dim, Got: len(v)}
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	next := uint64(g.graph.Len())
	for i, v := range vectors {
		vec := append([]float32(nil), v...)
		g.graph.Add(hnsw.MakeNode(next+uint64(i), vec))
	}
	return nil
}

// Search finds approximately the k nearest vectors. Score is
// 1 - cosine distance, which for unit vectors equals their inner product.
func (g *GraphIndex) Search(query []float32, k int) ([]VectorResult, error) {
	if len(query) != g.dim {
		return nil, ErrDimensionMismatch{Expected: g.dim, Got: len(query)}
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.graph.Len() == 0 || k <= 0 {
		return []VectorResult{}, nil
	}

	nodes := g.graph.Search(query, k)
	results := make([]VectorResult, 0, len(nodes))
	for _, node := range nodes {
		dist := g.graph.Distance(query, node.Value)
		results = append(results, VectorResult{Ordinal: int(node.Key), Score: 1 - dist})
	}
	slices.SortStableFunc(results, compareHits)
	return results, nil
}

// compareHits orders by descending score, then ascending ordinal.
func compareHits(a, b VectorResult) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	}
	return a.Ordinal - b.Ordinal
}

type graphHeader struct {
	Dim            uint32
	M              uint32
	EfConstruction uint32
	EfSearch       uint32
}

// Save writes the parameters followed by the graph export.
func (g *GraphIndex) Save(path string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return writeArtifact(path, VariantGraph, func(w *bufio.Writer) error {
		hdr := graphHeader{
			Dim:            uint32(g.dim),
			M:              uint32(g.params.M),
			EfConstruction: uint32(g.params.EfConstruction),
			EfSearch:       uint32(g.params.EfSearch),
		}
		if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
			return err
		}
		if err := g.graph.Export(w); err != nil {
			return fmt.Errorf("failed to export graph: %w", err)
		}
		return nil
	})
}

func readGraph(r io.Reader) (*GraphIndex, error) {
	var hdr graphHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr.Dim == 0 {
		return nil, fmt.Errorf("zero dimensions")
	}
	params := IndexParams{
		M:              int(hdr.M),
		EfConstruction: int(hdr.EfConstruction),
		EfSearch:       int(hdr.EfSearch),
	}.withDefaults()

	g := &GraphIndex{graph: newGraph(params), dim: int(hdr.Dim), params: params}

	// coder/hnsw Import requires io.ByteReader
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	if err := g.graph.Import(br); err != nil {
		return nil, fmt.Errorf("failed to import graph: %w", err)
	}
	return g, nil
}

var _ VectorIndex = (*GraphIndex)(nil)
