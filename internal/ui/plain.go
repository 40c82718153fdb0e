package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// PlainRenderer writes one line per update, for pipes and CI.
type PlainRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	tracker *Tracker
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	out := cfg.Output
	if out == nil {
		out = io.Discard
	}
	return &PlainRenderer{out: out, tracker: NewTracker()}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// Update implements Renderer. Percent-only updates are folded into the next line.
func (r *PlainRenderer) Update(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracker.Apply(ev)
	pct := r.tracker.Snapshot().Percent

	switch {
	case ev.File != "":
		_, _ = fmt.Fprintf(r.out, "[%3d%%] Indexing: %s\n", pct, ev.File)
	case ev.Vectors > 0:
		_, _ = fmt.Fprintf(r.out, "[%3d%%] Vectors: %d\n", pct, ev.Vectors)
	case ev.Message != "":
		_, _ = fmt.Fprintf(r.out, "[%3d%%] %s\n", pct, ev.Message)
	}
}

// Warn implements Renderer.
func (r *PlainRenderer) Warn(w Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracker.AddWarning(w)
	_, _ = fmt.Fprintf(r.out, "WARN: %s: %s\n", w.File, w.Err)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	verb := "Complete"
	if stats.Cancelled {
		verb = "Cancelled"
	}
	_, _ = fmt.Fprintf(r.out, "%s: %s: %d files, %d vectors in %s",
		verb, stats.Index, stats.Files, stats.Vectors, formatDuration(stats.Duration))
	if stats.Skipped > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d skipped)", stats.Skipped)
	}
	_, _ = fmt.Fprintln(r.out)
	if stats.Model != "" {
		_, _ = fmt.Fprintf(r.out, "Index: %s, model %s (%d dims)\n", stats.Variant, stats.Model, stats.Dimensions)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
