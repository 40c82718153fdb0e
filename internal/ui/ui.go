// Package ui renders index build progress and catalog listings in the
// terminal: a bubbletea TUI for interactive terminals and plain lines for
// pipes and CI.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// Event is one progress update from an index build. Zero fields leave the
// previous value unchanged.
type Event struct {
	Percent int
	File    string
	Vectors int
	Message string
}

// Warning is a non-fatal problem, usually a skipped document.
type Warning struct {
	File string
	Err  string
}

// CompletionStats summarizes a finished build.
type CompletionStats struct {
	Index      string
	Files      int
	Vectors    int
	Skipped    int
	Duration   time.Duration
	Cancelled  bool
	Variant    string
	Model      string
	Dimensions int
}

// Renderer displays build progress.
type Renderer interface {
	Start(ctx context.Context) error
	Update(ev Event)
	Warn(w Warning)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures the renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	Title      string
}

// ConfigOption modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithTitle sets the header shown by the TUI.
func WithTitle(title string) ConfigOption {
	return func(c *Config) {
		c.Title = title
	}
}

// NewConfig creates a Config writing to output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output, NoColor: DetectNoColor()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks the TUI for interactive terminals and plain text for
// everything else.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor checks the NO_COLOR convention.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

// BuildHooks adapts the index builder's status and progress callbacks to r.
func BuildHooks(r Renderer) (onStatus func(msg string), onProgress func(pct int)) {
	onStatus = func(msg string) {
		r.Update(ParseStatus(msg))
		if w, ok := parseSkip(msg); ok {
			r.Warn(w)
		}
	}
	onProgress = func(pct int) {
		r.Update(Event{Percent: pct})
	}
	return onStatus, onProgress
}

// ParseStatus turns a builder status line into an Event.
func ParseStatus(msg string) Event {
	if file, ok := strings.CutPrefix(msg, "Indexing: "); ok {
		return Event{File: file}
	}
	var added, total int
	if n, _ := fmt.Sscanf(msg, "Embeddings: +%d (total=%d)", &added, &total); n == 2 {
		return Event{Vectors: total}
	}
	if _, ok := parseSkip(msg); ok {
		return Event{}
	}
	return Event{Message: msg}
}

func parseSkip(msg string) (Warning, bool) {
	rest, ok := strings.CutPrefix(msg, "[SKIP] ")
	if !ok {
		return Warning{}, false
	}
	file, reason, _ := strings.Cut(rest, ": ")
	return Warning{File: file, Err: reason}, true
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
