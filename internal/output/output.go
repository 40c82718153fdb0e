// Package output formats command results for the docindex CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/docindex/internal/search"
)

// Writer prints status lines and search results.
type Writer struct {
	out io.Writer
}

// New creates a Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints msg after icon, or indented when icon is empty.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "  %s\n", msg)
	}
}

// Successf prints a success line.
func (w *Writer) Successf(format string, args ...any) {
	w.Status("✓", fmt.Sprintf(format, args...))
}

// Warningf prints a warning line.
func (w *Writer) Warningf(format string, args ...any) {
	w.Status("⚠", fmt.Sprintf(format, args...))
}

// Infof prints an indented line.
func (w *Writer) Infof(format string, args ...any) {
	w.Status("", fmt.Sprintf(format, args...))
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Results prints ranked passages with their score breakdown. Text is
// truncated to snippet runes; 0 prints it whole.
func (w *Writer) Results(query string, results []search.Result, snippet int) {
	if len(results) == 0 {
		_, _ = fmt.Fprintf(w.out, "No results for %q\n", query)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%d results for %q\n\n", len(results), query)
	for _, r := range results {
		src := r.Record.Source
		if src == "" {
			src = filepath.Base(r.Record.File)
		}
		_, _ = fmt.Fprintf(w.out, "[%d] %s (page %d)  score=%.3f dense=%.3f sparse=%.3f\n",
			r.Rank, src, r.Record.Page, r.Score, r.DenseScore, r.SparseScore)
		_, _ = fmt.Fprintf(w.out, "    %s\n\n", snippetOf(r.Record.Text, snippet))
	}
}

// ResultJSON is the machine-readable form of a search hit.
type ResultJSON struct {
	Rank        int     `json:"rank"`
	Score       float64 `json:"score"`
	DenseScore  float64 `json:"dense_score"`
	SparseScore float64 `json:"sparse_score"`
	Source      string  `json:"source"`
	File        string  `json:"file"`
	Page        int     `json:"page"`
	DocID       string  `json:"doc_id"`
	Text        string  `json:"text"`
}

// ToJSON converts results for JSON output.
func ToJSON(results []search.Result) []ResultJSON {
	out := make([]ResultJSON, 0, len(results))
	for _, r := range results {
		out = append(out, ResultJSON{
			Rank:        r.Rank,
			Score:       r.Score,
			DenseScore:  r.DenseScore,
			SparseScore: r.SparseScore,
			Source:      r.Record.Source,
			File:        r.Record.File,
			Page:        r.Record.Page,
			DocID:       r.Record.DocID,
			Text:        r.Record.Text,
		})
	}
	return out
}

func snippetOf(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if limit <= 0 || len(r) <= limit {
		return text
	}
	return string(r[:limit]) + "..."
}
