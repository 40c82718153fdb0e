// Package search answers queries against one built index by fusing dense
// (vector) and sparse (lexical) scores with a weighted sum.
package search

import (
	"cmp"
	"slices"

	"github.com/Aman-CERP/docindex/internal/store"
)

// DefaultTopK is the number of results returned when k is not positive.
const DefaultTopK = 12

// Weights configures the relative importance of dense vs sparse scores.
type Weights struct {
	// Dense is the weight for vector similarity (default: 0.6).
	Dense float64

	// Sparse is the weight for the normalized lexical score (default: 0.4).
	Sparse float64
}

// DefaultWeights returns 0.6 dense / 0.4 sparse.
func DefaultWeights() Weights {
	return Weights{Dense: 0.6, Sparse: 0.4}
}

// Fused is one entry of the combined ranking.
type Fused struct {
	Ordinal int
	Score   float64

	// Original signal scores, zero when the item was absent from that ranking.
	DenseScore  float64
	SparseScore float64
	InDense     bool
	InSparse    bool
}

// NormalizeMinMax rescales scores to [0, 1] over the whole slice. Scores are
// returned unchanged when max and min are equal.
func NormalizeMinMax(scores []float64) []float64 {
	out := slices.Clone(scores)
	if len(out) == 0 {
		return out
	}
	lo, hi := slices.Min(out), slices.Max(out)
	if hi-lo <= 1e-9 {
		return out
	}
	for i, s := range out {
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}

// TopOrdinals returns the ordinals of the k highest scores, best first.
// Equal scores keep the lower ordinal first.
func TopOrdinals(scores []float64, k int) []int {
	ords := make([]int, len(scores))
	for i := range ords {
		ords[i] = i
	}
	slices.SortStableFunc(ords, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})
	if k < len(ords) {
		ords = ords[:k]
	}
	return ords
}

// FuseWeighted combines a dense hit list with full-corpus sparse scores.
//
// Sparse scores are min-max normalized, then every dense hit contributes
// w.Dense*score and every item among the sparse top-k contributes
// w.Sparse*normalized. Items are inserted dense hits first (in dense rank
// order) then sparse-only items, and a stable descending sort on the sum
// keeps that order for ties. The result is truncated to k.
//
// A nil sparse slice means the lexical signal is disabled and the dense
// hits are returned as ranked, scored by their raw similarity.
func FuseWeighted(dense []store.VectorResult, sparse []float64, k int, w Weights) []Fused {
	if k <= 0 {
		k = DefaultTopK
	}

	if sparse == nil {
		out := make([]Fused, 0, min(len(dense), k))
		for _, hit := range dense[:min(len(dense), k)] {
			s := float64(hit.Score)
			out = append(out, Fused{Ordinal: hit.Ordinal, Score: s, DenseScore: s, InDense: true})
		}
		return out
	}

	fused := make([]Fused, 0, len(dense)+k)
	pos := make(map[int]int, len(dense)+k)
	entry := func(ord int) *Fused {
		if i, ok := pos[ord]; ok {
			return &fused[i]
		}
		pos[ord] = len(fused)
		fused = append(fused, Fused{Ordinal: ord})
		return &fused[len(fused)-1]
	}

	for _, hit := range dense {
		f := entry(hit.Ordinal)
		f.DenseScore = float64(hit.Score)
		f.InDense = true
		f.Score += w.Dense * f.DenseScore
	}

	norm := NormalizeMinMax(sparse)
	for _, ord := range TopOrdinals(norm, k) {
		f := entry(ord)
		f.SparseScore = norm[ord]
		f.InSparse = true
		f.Score += w.Sparse * f.SparseScore
	}

	slices.SortStableFunc(fused, func(a, b Fused) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(fused) > k {
		fused = fused[:k]
	}
	return fused
}
