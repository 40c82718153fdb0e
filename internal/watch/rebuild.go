package watch

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// RebuildFunc rebuilds an index after the given changes.
type RebuildFunc func(ctx context.Context, events []FileEvent) error

// RunRebuilds calls fn once per batch, one call at a time. Batches that queue
// up while a rebuild is running are merged into a single follow-up call.
// A failed rebuild is logged and the loop keeps going.
// Returns nil when batches is closed and ctx.Err() when ctx is cancelled.
func RunRebuilds(ctx context.Context, batches <-chan []FileEvent, fn RebuildFunc, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		var batch []FileEvent
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-batches:
			if !ok {
				return nil
			}
			batch = b
		}

		batch, open := drain(batch, batches)
		if len(batch) > 0 {
			start := time.Now()
			if err := fn(ctx, batch); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("watch_rebuild_failed",
					slog.Int("changes", len(batch)),
					slog.String("error", err.Error()))
			} else {
				logger.Info("watch_rebuild_complete",
					slog.Int("changes", len(batch)),
					slog.Duration("duration", time.Since(start)))
			}
		}
		if !open {
			return nil
		}
	}
}

// drain merges every batch already waiting on the channel into batch.
func drain(batch []FileEvent, batches <-chan []FileEvent) ([]FileEvent, bool) {
	for {
		select {
		case more, ok := <-batches:
			if !ok {
				return Merge(batch), false
			}
			batch = append(batch, more...)
		default:
			return Merge(batch), true
		}
	}
}

// Merge keeps the last event per path, sorted by path.
func Merge(events []FileEvent) []FileEvent {
	if len(events) == 0 {
		return events
	}
	last := make(map[string]FileEvent, len(events))
	for _, ev := range events {
		last[ev.Path] = ev
	}
	out := make([]FileEvent, 0, len(last))
	for _, ev := range last {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
