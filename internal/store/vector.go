package store

import (
	"bufio"
	"container/heap"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// VectorIndex is a similarity index over unit vectors. Ordinals are
// assigned sequentially by Add, starting at zero.
type VectorIndex interface {
	Variant() Variant
	Dimensions() int
	Count() int

	// NeedsTraining reports whether Train must run before Add.
	NeedsTraining() bool
	Train(sample [][]float32) error
	Add(vectors [][]float32) error

	// Search returns up to k hits ordered by descending score.
	Search(query []float32, k int) ([]VectorResult, error)

	// Save atomically replaces the artifact at path.
	Save(path string) error
}

// IndexParams tunes the approximate variants.
type IndexParams struct {
	// Graph
	M              int
	EfConstruction int
	EfSearch       int

	// Partitioned
	NList  int
	NProbe int
}

// DefaultIndexParams returns the parameters used when none are configured.
func DefaultIndexParams() IndexParams {
	return IndexParams{
		M:              32,
		EfConstruction: 80,
		EfSearch:       64,
		NList:          1024,
		NProbe:         8,
	}
}

func (p IndexParams) withDefaults() IndexParams {
	d := DefaultIndexParams()
	if p.M <= 0 {
		p.M = d.M
	}
	if p.EfConstruction <= 0 {
		p.EfConstruction = d.EfConstruction
	}
	if p.EfSearch <= 0 {
		p.EfSearch = d.EfSearch
	}
	if p.NList <= 0 {
		p.NList = d.NList
	}
	if p.NProbe <= 0 {
		p.NProbe = d.NProbe
	}
	return p
}

// NewVectorIndex constructs an empty index of the given variant.
func NewVectorIndex(variant Variant, dim int, params IndexParams) (VectorIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimensions %d", dim)
	}
	params = params.withDefaults()
	switch variant {
	case VariantExact:
		return NewExactIndex(dim), nil
	case VariantGraph:
		return NewGraphIndex(dim, params), nil
	case VariantPartitioned:
		return NewPartitionedIndex(dim, params), nil
	default:
		return nil, fmt.Errorf("unknown index variant %q", variant)
	}
}

// Artifact header: 6-byte magic, format version, variant tag.
var artifactMagic = [6]byte{'D', 'O', 'C', 'I', 'D', 'X'}

const artifactVersion byte = 1

const headerSize = 8

var variantTags = map[Variant]byte{
	VariantExact:       1,
	VariantGraph:       2,
	VariantPartitioned: 3,
}

func writeHeader(w io.Writer, v Variant) error {
	hdr := make([]byte, 0, headerSize)
	hdr = append(hdr, artifactMagic[:]...)
	hdr = append(hdr, artifactVersion, variantTags[v])
	_, err := w.Write(hdr)
	return err
}

func readHeader(r io.Reader) (Variant, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return "", fmt.Errorf("read header: %w", err)
	}
	if [6]byte(hdr[:6]) != artifactMagic {
		return "", fmt.Errorf("not a vector index artifact")
	}
	if hdr[6] != artifactVersion {
		return "", fmt.Errorf("unsupported artifact version %d", hdr[6])
	}
	for v, tag := range variantTags {
		if tag == hdr[7] {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown variant tag %d", hdr[7])
}

// OpenVectorIndex reads an artifact written by Save, dispatching on its header.
func OpenVectorIndex(path string) (VectorIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	r := bufio.NewReader(f)
	variant, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	payload := info.Size() - headerSize

	var idx VectorIndex
	switch variant {
	case VariantExact:
		idx, err = readExact(r, payload)
	case VariantGraph:
		idx, err = readGraph(r)
	case VariantPartitioned:
		idx, err = readPartitioned(r, payload)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: decode %s index: %w", path, variant, err)
	}
	return idx, nil
}

// ReadVariant reports the variant recorded in an artifact header.
func ReadVariant(path string) (Variant, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	return readHeader(f)
}

// writeArtifact writes header and payload to a temp file in the target
// directory and renames it over path.
func writeArtifact(path string, v Variant, payload func(w *bufio.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	t, err := renameio.TempFile("", path)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = t.Cleanup() }()

	w := bufio.NewWriter(t)
	if err := writeHeader(w, v); err != nil {
		return err
	}
	if err := payload(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}

// writeFloats and readFloats encode a flat float32 matrix in little endian.
func writeFloats(w io.Writer, vs [][]float32) error {
	for _, v := range vs {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// payloadBytes returns rows*rowBytes when that fits in the size bytes left
// in the file. Header counts are checked with it before any allocation.
func payloadBytes(rows, rowBytes uint64, size int64) (int64, error) {
	hi, need := bits.Mul64(rows, rowBytes)
	if size < 0 || hi != 0 || need > uint64(size) {
		return 0, fmt.Errorf("header declares %d rows of %d bytes but only %d bytes remain", rows, rowBytes, max(size, 0))
	}
	return int64(need), nil
}

func readFloats(r io.Reader, n, dim int) ([][]float32, error) {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// hitHeap is a min-heap on score used to keep the best k hits. Among equal
// scores the higher ordinal is evicted first.
type hitHeap []VectorResult

func (h hitHeap) Len() int { return len(h) }
func (h hitHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Ordinal > h[j].Ordinal
}
func (h hitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)   { *h = append(*h, x.(VectorResult)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topK collects the k best hits offered to it.
type topK struct {
	k int
	h hitHeap
}

func newTopK(k int) *topK {
	return &topK{k: k, h: make(hitHeap, 0, k)}
}

func (t *topK) offer(ordinal int, score float32) {
	if t.k <= 0 {
		return
	}
	r := VectorResult{Ordinal: ordinal, Score: score}
	if len(t.h) < t.k {
		heap.Push(&t.h, r)
		return
	}
	worst := t.h[0]
	if score > worst.Score || (score == worst.Score && ordinal < worst.Ordinal) {
		t.h[0] = r
		heap.Fix(&t.h, 0)
	}
}

// results returns hits by descending score, ties by ascending ordinal.
func (t *topK) results() []VectorResult {
	out := make([]VectorResult, len(t.h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&t.h).(VectorResult)
	}
	return out
}
