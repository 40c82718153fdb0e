package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docindex/internal/watch"
)

// WatchOptions configures Engine.Watch.
type WatchOptions struct {
	IndexOptions

	// ForcePolling disables fsnotify.
	ForcePolling bool
	PollInterval time.Duration

	// OnRebuild is called after every rebuild attempt.
	OnRebuild func(events []watch.FileEvent, err error)
}

// Watch keeps name in sync with folder until ctx is cancelled. The index is
// built first when it does not exist yet; afterwards every debounced batch of
// changes triggers a full rebuild from folder.
func (e *Engine) Watch(ctx context.Context, name, folder string, opts WatchOptions) error {
	if !e.Catalog.Exists(name) {
		if _, err := e.Index(ctx, name, []string{folder}, opts.IndexOptions); err != nil {
			return err
		}
	}

	debounce, err := e.Config.WatchDebounce()
	if err != nil {
		return err
	}
	w := watch.New(watch.Options{
		DebounceWindow: debounce,
		ForcePolling:   opts.ForcePolling,
		PollInterval:   opts.PollInterval,
		Logger:         e.Logger,
	})

	rebuild := func(ctx context.Context, events []watch.FileEvent) error {
		_, err := e.Rebuild(ctx, name, []string{folder}, opts.IndexOptions)
		if opts.OnRebuild != nil {
			opts.OnRebuild(events, err)
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer func() { _ = w.Stop() }()
		return w.Start(gctx, folder)
	})
	g.Go(func() error {
		for err := range w.Errors() {
			e.Logger.Warn("watch_error", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		return watch.RunRebuilds(gctx, w.Events(), rebuild, e.Logger)
	})

	err = g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
