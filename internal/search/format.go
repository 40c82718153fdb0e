package search

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FormatContext renders results as citation blocks separated by blank lines:
//
//	[1] report.pdf / page 3 • score=0.812
//	chunk text on one line
func FormatContext(results []Result) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		src := r.Record.Source
		if src == "" {
			src = filepath.Base(r.Record.File)
		}
		text := strings.ReplaceAll(r.Record.Text, "\n", " ")
		blocks = append(blocks, fmt.Sprintf("[%d] %s / page %d • score=%.3f\n%s",
			r.Rank, src, r.Record.Page, r.Score, text))
	}
	return strings.Join(blocks, "\n\n")
}

// BestScore returns the highest fused score, or 0 for no results.
func BestScore(results []Result) float64 {
	best := 0.0
	for i, r := range results {
		if i == 0 || r.Score > best {
			best = r.Score
		}
	}
	return best
}
