package store

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/viterin/vek/vek32"
)

// ErrNotTrained is returned by Add on a partitioned index before Train.
var ErrNotTrained = errors.New("partitioned index is not trained")

// kmeansIterations bounds Lloyd refinement.
const kmeansIterations = 20

// PartitionedIndex is an inverted-file index: vectors are assigned to the
// nearest of nlist k-means centroids, and a search scans only the nprobe
// lists whose centroids are closest to the query.
type PartitionedIndex struct {
	mu        sync.RWMutex
	dim       int
	params    IndexParams
	centroids [][]float32
	lists     [][]int
	vectors   [][]float32
}

// NewPartitionedIndex creates an untrained partitioned index.
func NewPartitionedIndex(dim int, params IndexParams) *PartitionedIndex {
	return &PartitionedIndex{dim: dim, params: params.withDefaults()}
}

// NListFor returns the partition count used for a training sample of n
// vectors: floor(sqrt(n)) capped by the configured nlist, at least 1.
func NListFor(configured, n int) int {
	k := int(math.Floor(math.Sqrt(float64(n))))
	k = max(1, k)
	if configured > 0 {
		k = min(configured, k)
	}
	return k
}

func (p *PartitionedIndex) Variant() Variant    { return VariantPartitioned }
func (p *PartitionedIndex) Dimensions() int     { return p.dim }
func (p *PartitionedIndex) NeedsTraining() bool { return !p.Trained() }

// Trained reports whether centroids exist.
func (p *PartitionedIndex) Trained() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.centroids) > 0
}

// NList returns the number of partitions, zero before training.
func (p *PartitionedIndex) NList() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.centroids)
}

func (p *PartitionedIndex) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.vectors)
}

// SetNProbe changes how many partitions a search scans.
func (p *PartitionedIndex) SetNProbe(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n > 0 {
		p.params.NProbe = n
	}
}

// Train runs spherical k-means on sample. Seeding picks evenly spaced sample
// vectors, so training is deterministic for a given sample.
func (p *PartitionedIndex) Train(sample [][]float32) error {
	if len(sample) == 0 {
		return fmt.Errorf("empty training sample")
	}
	for _, v := range sample {
		if len(v) != p.dim {
			return ErrDimensionMismatch{Expected: p.dim, Got: len(v)}
		}
	}

	k := NListFor(p.params.NList, len(sample))
	centroids := make([][]float32, k)
	for c := range centroids {
		centroids[c] = append([]float32(nil), sample[c*len(sample)/k]...)
	}

	assign := make([]int, len(sample))
	for i := range assign {
		assign[i] = -1
	}
	for iter := 0; iter < kmeansIterations; iter++ {
		changed := 0
		for i, v := range sample {
			c := nearest(centroids, v)
			if c != assign[i] {
				assign[i] = c
				changed++
			}
		}
		if changed == 0 {
			break
		}

		sums := make([][]float32, k)
		counts := make([]int, k)
		for i, v := range sample {
			c := assign[i]
			if sums[c] == nil {
				sums[c] = make([]float32, p.dim)
			}
			vek32.Add_Inplace(sums[c], v)
			counts[c]++
		}
		for c := range centroids {
			// an empty partition keeps its previous centroid
			if counts[c] == 0 {
				continue
			}
			centroids[c] = unit(sums[c])
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.centroids = centroids
	p.lists = make([][]int, k)
	// vectors added before a retrain are reassigned
	for ord, v := range p.vectors {
		c := nearest(centroids, v)
		p.lists[c] = append(p.lists[c], ord)
	}
	return nil
}

// Add assigns each vector to its nearest centroid.
func (p *PartitionedIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != p.dim {
			return ErrDimensionMismatch{Expected: p.dim, Got: len(v)}
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.centroids) == 0 {
		return ErrNotTrained
	}
	for _, v := range vectors {
		ord := len(p.vectors)
		p.vectors = append(p.vectors, append([]float32(nil), v...))
		c := nearest(p.centroids, v)
		p.lists[c] = append(p.lists[c], ord)
	}
	return nil
}

// Search scans the nprobe closest partitions.
func (p *PartitionedIndex) Search(query []float32, k int) ([]VectorResult, error) {
	if len(query) != p.dim {
		return nil, ErrDimensionMismatch{Expected: p.dim, Got: len(query)}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.centroids) == 0 || len(p.vectors) == 0 {
		return []VectorResult{}, nil
	}

	probe := newTopK(min(p.params.NProbe, len(p.centroids)))
	for c, centroid := range p.centroids {
		probe.offer(c, vek32.Dot(query, centroid))
	}

	top := newTopK(min(k, len(p.vectors)))
	for _, hit := range probe.results() {
		for _, ord := range p.lists[hit.Ordinal] {
			top.offer(ord, vek32.Dot(query, p.vectors[ord]))
		}
	}
	return top.results(), nil
}

func nearest(centroids [][]float32, v []float32) int {
	best, bestScore := 0, float32(math.Inf(-1))
	for c, centroid := range centroids {
		if s := vek32.Dot(v, centroid); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

func unit(v []float32) []float32 {
	n := vek32.Norm(v)
	if n == 0 {
		return v
	}
	vek32.DivNumber_Inplace(v, n)
	return v
}

type partitionedHeader struct {
	Dim    uint32
	NList  uint32
	NProbe uint32
	Count  uint32
}

// Save writes the header, centroids, vectors, then each vector's partition.
func (p *PartitionedIndex) Save(path string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return writeArtifact(path, VariantPartitioned, func(w *bufio.Writer) error {
		hdr := partitionedHeader{
			Dim:    uint32(p.dim),
			NList:  uint32(len(p.centroids)),
			NProbe: uint32(p.params.NProbe),
			Count:  uint32(len(p.vectors)),
		}
		if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
			return err
		}
		if err := writeFloats(w, p.centroids); err != nil {
			return err
		}
		if err := writeFloats(w, p.vectors); err != nil {
			return err
		}
		assign := make([]uint32, len(p.vectors))
		for c, list := range p.lists {
			for _, ord := range list {
				assign[ord] = uint32(c)
			}
		}
		return binary.Write(w, binary.LittleEndian, assign)
	})
}

func readPartitioned(r io.Reader, size int64) (*PartitionedIndex, error) {
	var hdr partitionedHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr.Dim == 0 {
		return nil, fmt.Errorf("zero dimensions")
	}
	// centroids, then each vector plus its uint32 partition assignment
	size -= int64(binary.Size(hdr))
	centroidBytes, err := payloadBytes(uint64(hdr.NList), uint64(hdr.Dim)*4, size)
	if err != nil {
		return nil, err
	}
	if _, err := payloadBytes(uint64(hdr.Count), uint64(hdr.Dim)*4+4, size-centroidBytes); err != nil {
		return nil, err
	}
	dim := int(hdr.Dim)
	p := NewPartitionedIndex(dim, IndexParams{NProbe: int(hdr.NProbe)})

	if p.centroids, err = readFloats(r, int(hdr.NList), dim); err != nil {
		return nil, err
	}
	if p.vectors, err = readFloats(r, int(hdr.Count), dim); err != nil {
		return nil, err
	}
	assign := make([]uint32, hdr.Count)
	if err := binary.Read(r, binary.LittleEndian, assign); err != nil {
		return nil, err
	}
	p.lists = make([][]int, hdr.NList)
	for ord, c := range assign {
		if int(c) >= len(p.lists) {
			return nil, fmt.Errorf("vector %d assigned to missing partition %d", ord, c)
		}
		p.lists[c] = append(p.lists[c], ord)
	}
	if len(p.centroids) == 0 && len(p.vectors) > 0 {
		return nil, fmt.Errorf("vectors present without centroids")
	}
	return p, nil
}

var _ VectorIndex = (*PartitionedIndex)(nil)
