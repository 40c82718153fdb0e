package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want Event
	}{
		{"indexing", "Indexing: report.txt", Event{File: "report.txt"}},
		{"embeddings", "Embeddings: +16 (total=48)", Event{Vectors: 48}},
		{"skip", "[SKIP] broken.txt: permission denied", Event{}},
		{"other", "Training index on 512 vectors...", Event{Message: "Training index on 512 vectors..."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStatus(tt.msg))
		})
	}
}

func TestParseSkip(t *testing.T) {
	w, ok := parseSkip("[SKIP] notes/a.md: read failed: EOF")
	assert.True(t, ok)
	assert.Equal(t, Warning{File: "notes/a.md", Err: "read failed: EOF"}, w)

	_, ok = parseSkip("Indexing: a.md")
	assert.False(t, ok)
}

func TestBuildHooks_RoutesSkipsToWarnings(t *testing.T) {
	// Given: a plain renderer wired through the build hooks
	var buf bytes.Buffer
	r := NewPlainRenderer(Config{Output: &buf})
	onStatus, onProgress := BuildHooks(r)

	// When: the builder reports progress and a skipped file
	onProgress(40)
	onStatus("Indexing: a.txt")
	onStatus("[SKIP] b.txt: empty document")

	// Then: the file line carries the percent and the skip becomes a warning
	out := buf.String()
	assert.Contains(t, out, "[ 40%] Indexing: a.txt")
	assert.Contains(t, out, "WARN: b.txt: empty document")
	assert.Len(t, r.tracker.Warnings(), 1)
}

func TestNewRenderer_PlainForNonTTY(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(NewConfig(&buf))
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewTUIRenderer_RejectsNonTTY(t *testing.T) {
	_, err := NewTUIRenderer(Config{Output: &bytes.Buffer{}})
	assert.Error(t, err)
}

func TestNewConfig_Options(t *testing.T) {
	cfg := NewConfig(&bytes.Buffer{}, WithForcePlain(true), WithNoColor(true), WithTitle("kb"))
	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "kb", cfg.Title)
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}

func TestDetectCI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.True(t, DetectCI())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{42 * time.Second, "42s"},
		{2 * time.Minute, "2m"},
		{2*time.Minute + 5*time.Second, "2m 5s"},
		{90 * time.Minute, "1h 30m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d), tt.d.String())
	}
}
