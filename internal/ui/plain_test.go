package ui

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_Lines(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(Config{Output: &buf})
	require.NoError(t, r.Start(context.Background()))

	r.Update(Event{Percent: 5})
	r.Update(Event{File: "a.txt"})
	r.Update(Event{Vectors: 16})
	r.Update(Event{Message: "Training index on 16 vectors..."})
	require.NoError(t, r.Stop())

	assert.Equal(t,
		"[  5%] Indexing: a.txt\n"+
			"[  5%] Vectors: 16\n"+
			"[  5%] Training index on 16 vectors...\n",
		buf.String())
}

func TestPlainRenderer_Complete(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(Config{Output: &buf})

	r.Complete(CompletionStats{
		Index:      "kb",
		Files:      3,
		Vectors:    42,
		Skipped:    1,
		Duration:   1500 * time.Millisecond,
		Variant:    "hnsw",
		Model:      "nomic-embed-text",
		Dimensions: 768,
	})

	assert.Equal(t,
		"Complete: kb: 3 files, 42 vectors in 2s (1 skipped)\n"+
			"Index: hnsw, model nomic-embed-text (768 dims)\n",
		buf.String())
}

func TestPlainRenderer_Cancelled(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(Config{Output: &buf})

	r.Complete(CompletionStats{Index: "kb", Cancelled: true, Duration: 10 * time.Millisecond})

	assert.Equal(t, "Cancelled: kb: 0 files, 0 vectors in 10ms\n", buf.String())
}

func TestPlainRenderer_NilOutput(t *testing.T) {
	r := NewPlainRenderer(Config{})
	assert.NotPanics(t, func() {
		r.Update(Event{File: "a.txt"})
		r.Warn(Warning{File: "a.txt", Err: "x"})
	})
}
