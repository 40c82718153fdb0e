package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/docindex/internal/catalog"
	"github.com/Aman-CERP/docindex/internal/store"
)

func TestRenderList(t *testing.T) {
	var buf bytes.Buffer
	r := NewTableRenderer(&buf, true)

	r.RenderList([]catalog.Descriptor{
		{Name: "kb", Variant: store.VariantGraph, DocumentCount: 2, VectorCount: 40, EmbeddingModel: "static-64", SizeMB: 1.5},
		{Name: catalog.LegacyName, Variant: store.VariantExact, IsLegacy: true},
	})

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "kb")
	assert.Contains(t, out, "static-64")
	assert.Contains(t, out, "1.50 MB")
	assert.Contains(t, out, "default_index (legacy)")
}

func TestRenderList_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewTableRenderer(&buf, true).RenderList(nil)
	assert.Equal(t, "No indexes found.\n", buf.String())
}

func TestRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	r := NewTableRenderer(&buf, true)

	r.RenderStatus(catalog.Status{Name: "kb", Exists: true, Valid: false, Error: "metadata count mismatch", VectorCount: 3})

	out := buf.String()
	assert.Contains(t, out, "Index Status: kb")
	assert.Contains(t, out, "✗ invalid (metadata count mismatch)")
	assert.Contains(t, out, "Vectors:    3")
}

func TestRenderStatus_Missing(t *testing.T) {
	var buf bytes.Buffer
	NewTableRenderer(&buf, true).RenderStatus(catalog.Status{Name: "gone"})
	assert.Contains(t, buf.String(), "not found")
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	NewTableRenderer(&buf, true).RenderSummary(catalog.Summary{TotalIndexes: 2, TotalDocuments: 5, TotalVectors: 90, TotalSizeMB: 3.25})

	out := buf.String()
	assert.Contains(t, out, "Indexes:   2")
	assert.Contains(t, out, "Vectors:   90")
	assert.Contains(t, out, "3.25 MB")
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", formatTime(time.Time{}))
	assert.Equal(t, "just now", formatTime(time.Now()))
	assert.Equal(t, "1 minute ago", formatTime(time.Now().Add(-90*time.Second)))
	assert.Equal(t, "3 hours ago", formatTime(time.Now().Add(-3*time.Hour-time.Minute)))
	assert.Equal(t, "2 days ago", formatTime(time.Now().Add(-49*time.Hour)))
}
