package store

import (
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitVectors returns n deterministic random unit vectors.
func unitVectors(n, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		var sum float32
		for j := range v {
			v[j] = float32(rng.NormFloat64())
			sum += v[j] * v[j]
		}
		inv := 1 / sqrt32(sum)
		for j := range v {
			v[j] *= inv
		}
		out[i] = v
	}
	return out
}

func sqrt32(x float32) float32 {
	z := x
	for i := 0; i < 30; i++ {
		z = (z + x/z) / 2
	}
	return z
}

func allVariants() []Variant {
	return []Variant{VariantExact, VariantGraph, VariantPartitioned}
}

func buildIndex(t *testing.T, v Variant, vectors [][]float32) VectorIndex {
	t.Helper()
	idx, err := NewVectorIndex(v, len(vectors[0]), IndexParams{NList: 4, NProbe: 4})
	require.NoError(t, err)
	if idx.NeedsTraining() {
		require.NoError(t, idx.Train(vectors))
	}
	require.NoError(t, idx.Add(vectors))
	return idx
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		in   string
		want Variant
	}{
		{"flat", VariantExact},
		{"HNSW", VariantGraph},
		{"", VariantGraph},
		{"ivf", VariantPartitioned},
	}
	for _, tt := range tests {
		got, err := ParseVariant(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseVariant("lsh")
	assert.Error(t, err)
}

func TestVectorIndex_FindsStoredVector(t *testing.T) {
	vectors := unitVectors(50, 16, 1)

	for _, variant := range allVariants() {
		t.Run(string(variant), func(t *testing.T) {
			// Given: an index over 50 unit vectors
			idx := buildIndex(t, variant, vectors)
			assert.Equal(t, 50, idx.Count())
			assert.Equal(t, 16, idx.Dimensions())
			assert.Equal(t, variant, idx.Variant())

			// When: searching with a stored vector
			hits, err := idx.Search(vectors[17], 5)

			// Then: that vector ranks first with score ~1
			require.NoError(t, err)
			require.NotEmpty(t, hits)
			assert.Equal(t, 17, hits[0].Ordinal)
			assert.InDelta(t, 1.0, hits[0].Score, 1e-4)
			for i := 1; i < len(hits); i++ {
				assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
			}
		})
	}
}

func TestVectorIndex_SaveAndOpenRoundTrip(t *testing.T) {
	vectors := unitVectors(40, 8, 2)
	query := unitVectors(1, 8, 99)[0]

	for _, variant := range allVariants() {
		t.Run(string(variant), func(t *testing.T) {
			// Given: a saved index
			idx := buildIndex(t, variant, vectors)
			path := filepath.Join(t.TempDir(), IndexFileName)
			require.NoError(t, idx.Save(path))

			// When: it is reopened
			loaded, err := OpenVectorIndex(path)
			require.NoError(t, err)

			// Then: variant, count and exact-match search survive
			assert.Equal(t, variant, loaded.Variant())
			assert.Equal(t, idx.Count(), loaded.Count())
			hits, err := loaded.Search(vectors[3], 1)
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, 3, hits[0].Ordinal)

			if variant != VariantGraph {
				before, err := idx.Search(query, 5)
				require.NoError(t, err)
				after, err := loaded.Search(query, 5)
				require.NoError(t, err)
				assert.Equal(t, before, after)
			}

			v, err := ReadVariant(path)
			require.NoError(t, err)
			assert.Equal(t, variant, v)
		})
	}
}

func TestExactIndex_TopKTiesPreferLowerOrdinal(t *testing.T) {
	// Given: three identical vectors
	idx := NewExactIndex(2)
	require.NoError(t, idx.Add([][]float32{{1, 0}, {0, 1}, {1, 0}, {1, 0}}))

	// When: asking for the best two
	hits, err := idx.Search([]float32{1, 0}, 2)

	// Then: the lowest ordinals win the tie
	require.NoError(t, err)
	assert.Equal(t, []VectorResult{{Ordinal: 0, Score: 1}, {Ordinal: 2, Score: 1}}, hits)
}

func TestExactIndex_KLargerThanCount(t *testing.T) {
	idx := NewExactIndex(2)
	require.NoError(t, idx.Add([][]float32{{1, 0}, {0, 1}}))

	hits, err := idx.Search([]float32{0, 1}, 10)

	require.NoError(t, err)
	assert.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].Ordinal)
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	for _, variant := range allVariants() {
		idx, err := NewVectorIndex(variant, 4, IndexParams{})
		require.NoError(t, err)

		_, err = idx.Search([]float32{1, 0}, 1)
		var dimErr ErrDimensionMismatch
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 4, dimErr.Expected)
		assert.Equal(t, 2, dimErr.Got)
	}
}

func TestPartitionedIndex_AddBeforeTrainFails(t *testing.T) {
	idx := NewPartitionedIndex(4, IndexParams{})

	err := idx.Add(unitVectors(2, 4, 3))

	assert.ErrorIs(t, err, ErrNotTrained)
	assert.True(t, idx.NeedsTraining())
}

func TestPartitionedIndex_TrainingIsDeterministic(t *testing.T) {
	sample := unitVectors(100, 8, 4)
	a := NewPartitionedIndex(8, IndexParams{NList: 1024})
	b := NewPartitionedIndex(8, IndexParams{NList: 1024})

	require.NoError(t, a.Train(sample))
	require.NoError(t, b.Train(sample))

	assert.Equal(t, 10, a.NList())
	assert.Equal(t, a.centroids, b.centroids)
}

func TestNListFor(t *testing.T) {
	assert.Equal(t, 1, NListFor(1024, 0))
	assert.Equal(t, 1, NListFor(1024, 3))
	assert.Equal(t, 7, NListFor(1024, 50))
	assert.Equal(t, 223, NListFor(1024, 50000))
	assert.Equal(t, 16, NListFor(16, 50000))
}

func TestOpenVectorIndex_RejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), IndexFileName)
	require.NoError(t, os.WriteFile(path, []byte("not an index at all"), 0o644))

	_, err := OpenVectorIndex(path)

	assert.Error(t, err)
}

func TestOpenVectorIndex_RejectsCountsLargerThanFile(t *testing.T) {
	tests := []struct {
		name    string
		variant Variant
		offset  int
	}{
		{"exact vector count", VariantExact, 12},
		{"partitioned list count", VariantPartitioned, 12},
		{"partitioned vector count", VariantPartitioned, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a saved index with one header count inflated
			path := filepath.Join(t.TempDir(), IndexFileName)
			require.NoError(t, buildIndex(t, tt.variant, unitVectors(20, 8, 5)).Save(path))
			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			binary.LittleEndian.PutUint32(raw[tt.offset:tt.offset+4], 0xFFFFFFF0)
			require.NoError(t, os.WriteFile(path, raw, 0o644))

			// When: opening it
			_, err = OpenVectorIndex(path)

			// Then: it is rejected as a decode error
			require.Error(t, err)
			assert.Contains(t, err.Error(), "bytes remain")
		})
	}
}

func TestOpenVectorIndex_Missing(t *testing.T) {
	_, err := OpenVectorIndex(filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLayout(t *testing.T) {
	l := Layout{Dir: "/data/idx"}
	assert.Equal(t, "/data/idx/index.faiss", l.IndexPath())
	assert.Equal(t, "/data/idx/meta.jsonl", l.MetaPath())
	assert.Equal(t, "/data/idx/index.json", l.SidecarPath())
	assert.Equal(t, "/data/idx/documents/document_3.txt", l.DocumentPath(3))
	assert.Equal(t, "/data/idx/.build.lock", l.LockPath())
}
