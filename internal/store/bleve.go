package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveindex "github.com/blevesearch/bleve_index_api"
)

const (
	// chunkAnalyzerName splits on whitespace and lowercases, matching Tokenize.
	chunkAnalyzerName = "chunk_whitespace"

	bleveField     = "text"
	bleveBatchSize = 1000
)

// bleveChunk is the document structure for Bleve indexing.
type bleveChunk struct {
	Text string `json:"text"`
}

// BleveScorer scores queries with a BM25 bleve index whose document IDs
// are chunk ordinals. BM25 needs a scorch index, so it lives in a scratch
// directory removed by Close.
type BleveScorer struct {
	index bleve.Index
	dir   string
	n     int
}

// NewBleveScorer indexes texts into a scratch scorch index.
func NewBleveScorer(ctx context.Context, texts []string) (*BleveScorer, error) {
	m, err := chunkIndexMapping()
	if err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp("", "docindex-bleve-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve scratch directory: %w", err)
	}
	idx, err := bleve.New(filepath.Join(dir, "index"), m)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	b := &BleveScorer{index: idx, dir: dir, n: len(texts)}

	for start := 0; start < len(texts); start += bleveBatchSize {
		if err := ctx.Err(); err != nil {
			_ = b.Close()
			return nil, err
		}
		batch := idx.NewBatch()
		for i := start; i < min(start+bleveBatchSize, len(texts)); i++ {
			if err := batch.Index(strconv.Itoa(i), bleveChunk{Text: texts[i]}); err != nil {
				_ = b.Close()
				return nil, fmt.Errorf("failed to index chunk %d: %w", i, err)
			}
		}
		if err := idx.Batch(batch); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to execute batch: %w", err)
		}
	}
	return b, nil
}

func chunkIndexMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(chunkAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     whitespace.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	m.DefaultAnalyzer = chunkAnalyzerName
	m.ScoringModel = bleveindex.BM25Scoring
	return m, nil
}

// Len returns the corpus size.
func (b *BleveScorer) Len() int { return b.n }

// Scores runs a disjunctive match query sized to the whole corpus.
func (b *BleveScorer) Scores(ctx context.Context, query string) ([]float64, error) {
	scores := make([]float64, b.n)
	if len(Tokenize(query)) == 0 || b.n == 0 {
		return scores, nil
	}

	q := bleve.NewMatchQuery(query)
	q.SetField(bleveField)
	req := bleve.NewSearchRequestOptions(q, b.n, 0, false)

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	for _, hit := range res.Hits {
		ord, err := strconv.Atoi(hit.ID)
		if err != nil || ord < 0 || ord >= b.n {
			continue
		}
		scores[ord] = hit.Score
	}
	return scores, nil
}

// Close releases the index and removes its scratch directory.
func (b *BleveScorer) Close() error {
	return errors.Join(b.index.Close(), os.RemoveAll(b.dir))
}

var _ SparseScorer = (*BleveScorer)(nil)
