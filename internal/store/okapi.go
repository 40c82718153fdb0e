package store

import (
	"context"
	"math"
)

// OkapiParams are the BM25Okapi constants.
type OkapiParams struct {
	K1 float64
	B  float64
	// Epsilon scales the floor applied to negative idf values, as a
	// fraction of the mean idf.
	Epsilon float64
}

// DefaultOkapiParams returns k1=1.5, b=0.75, epsilon=0.25.
func DefaultOkapiParams() OkapiParams {
	return OkapiParams{K1: 1.5, B: 0.75, Epsilon: 0.25}
}

// OkapiScorer is an exact BM25Okapi implementation over an in-memory corpus.
type OkapiScorer struct {
	params  OkapiParams
	freqs   []map[string]int
	lengths []float64
	avgdl   float64
	idf     map[string]float64
}

// NewOkapiScorer tokenizes texts and precomputes document frequencies and idf.
func NewOkapiScorer(texts []string, params OkapiParams) *OkapiScorer {
	s := &OkapiScorer{
		params:  params,
		freqs:   make([]map[string]int, len(texts)),
		lengths: make([]float64, len(texts)),
		idf:     make(map[string]float64),
	}

	df := make(map[string]int)
	var total float64
	for i, text := range texts {
		tokens := Tokenize(text)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		for t := range tf {
			df[t]++
		}
		s.freqs[i] = tf
		s.lengths[i] = float64(len(tokens))
		total += float64(len(tokens))
	}
	if len(texts) > 0 {
		s.avgdl = total / float64(len(texts))
	}

	// Terms present in more than half the corpus get a negative idf; those
	// are floored at epsilon times the mean idf.
	n := float64(len(texts))
	var idfSum float64
	var negative []string
	for term, freq := range df {
		v := math.Log(n-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		s.idf[term] = v
		idfSum += v
		if v < 0 {
			negative = append(negative, term)
		}
	}
	if len(df) > 0 {
		eps := params.Epsilon * idfSum / float64(len(df))
		for _, term := range negative {
			s.idf[term] = eps
		}
	}
	return s
}

// Len returns the corpus size.
func (s *OkapiScorer) Len() int { return len(s.freqs) }

// Scores computes BM25 for every document. Repeated query terms contribute
// once per occurrence.
func (s *OkapiScorer) Scores(ctx context.Context, query string) ([]float64, error) {
	scores := make([]float64, len(s.freqs))
	if s.avgdl == 0 {
		return scores, nil
	}
	k1, b := s.params.K1, s.params.B
	for _, q := range Tokenize(query) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idf, ok := s.idf[q]
		if !ok {
			continue
		}
		for i, tf := range s.freqs {
			f := float64(tf[q])
			if f == 0 {
				continue
			}
			scores[i] += idf * (f * (k1 + 1)) / (f + k1*(1-b+b*s.lengths[i]/s.avgdl))
		}
	}
	return scores, nil
}

// IDF returns the idf of term after flooring, and whether it occurs in the corpus.
func (s *OkapiScorer) IDF(term string) (float64, bool) {
	v, ok := s.idf[term]
	return v, ok
}

// Close is a no-op.
func (s *OkapiScorer) Close() error { return nil }

var _ SparseScorer = (*OkapiScorer)(nil)
