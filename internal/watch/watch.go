// Package watch monitors source folders and turns file system churn into
// debounced batches that drive full index rebuilds.
//
// fsnotify is the primary mechanism. When it cannot be initialised (inotify
// limits, unsupported file systems) the watcher falls back to periodic scans.
// Only supported document files outside hidden directories produce events.
package watch

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/docindex/internal/loader"
)

// Operation is the kind of change observed for a path.
type Operation int

const (
	// OpCreate indicates a new file appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing file changed.
	OpModify
	// OpDelete indicates a file was removed.
	OpDelete
	// OpRename indicates a file was moved away; its new name arrives as OpCreate.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one coalesced change.
type FileEvent struct {
	// Path is relative to the watched root.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Filter decides whether a root-relative file path is relevant.
type Filter func(rel string) bool

// Options configures a Watcher.
type Options struct {
	// DebounceWindow is the quiet period before a batch is emitted.
	// Default: 2s
	DebounceWindow time.Duration

	// PollInterval is the scan interval in polling mode.
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the capacity of the batch channel.
	// Default: 16
	EventBufferSize int

	// Filter selects relevant files. Default: DocumentFilter.
	Filter Filter

	// ForcePolling skips fsnotify entirely.
	ForcePolling bool

	Logger *slog.Logger
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  2 * time.Second,
		PollInterval:    5 * time.Second,
		EventBufferSize: 16,
		Filter:          DocumentFilter,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = d.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = d.EventBufferSize
	}
	if o.Filter == nil {
		o.Filter = d.Filter
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// DocumentFilter accepts files the loader can read, outside hidden directories.
func DocumentFilter(rel string) bool {
	return !isHidden(rel) && loader.Supports(rel)
}

// isHidden reports whether any component of rel starts with a dot.
func isHidden(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}
	return false
}
