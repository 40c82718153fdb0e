package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/catalog"
	"github.com/Aman-CERP/docindex/internal/engine"
	"github.com/Aman-CERP/docindex/internal/ui"
)

// buildFlags are shared by index, rebuild and watch.
type buildFlags struct {
	indexType    string
	chunkSize    int
	chunkOverlap int
	plain        bool
	noColor      bool
}

func (f *buildFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.indexType, "type", "", "Index type: flat, hnsw, ivf (default from config)")
	cmd.Flags().IntVar(&f.chunkSize, "chunk-size", 0, "Chunk size in characters (default from config)")
	cmd.Flags().IntVar(&f.chunkOverlap, "overlap", -1, "Chunk overlap in characters, 0 disables (default from config)")
	cmd.Flags().BoolVar(&f.plain, "plain", false, "Plain progress output (no TUI)")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "Disable colors")
}

func (f *buildFlags) options() engine.IndexOptions {
	opts := engine.IndexOptions{
		Variant:   f.indexType,
		ChunkSize: f.chunkSize,
	}
	if f.chunkOverlap != -1 {
		overlap := f.chunkOverlap
		opts.ChunkOverlap = &overlap
	}
	return opts
}

func newIndexCmd(g *globals) *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "index <name> <path>...",
		Short: "Build a named index from folders and files",
		Long: `Build a new named index from the supported documents found in the given
folders and files. Folders are walked recursively; hidden entries are skipped.

Press Ctrl+C to stop; vectors already embedded are kept.

Examples:
  docindex index manuals ./docs
  docindex index papers ./a.md ./b.txt --type flat --chunk-size 600`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, g, flags, args[0], args[1:], false)
		},
	}
	flags.register(cmd)
	return cmd
}

func newRebuildCmd(g *globals) *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "rebuild <name> [path]...",
		Short: "Rebuild an index from scratch",
		Long: `Delete and rebuild a named index. Without paths the documents recorded at
the last build are used again.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, g, flags, args[0], args[1:], true)
		},
	}
	flags.register(cmd)
	return cmd
}

func runBuild(cmd *cobra.Command, g *globals, flags buildFlags, name string, paths []string, rebuild bool) error {
	// Ctrl+C cancels the context; the builder stops at the next document boundary
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := g.newEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(flags.plain),
		ui.WithNoColor(flags.noColor || ui.DetectNoColor()),
		ui.WithTitle("docindex: "+name),
	))
	if err := renderer.Start(ctx); err != nil {
		return err
	}

	opts := flags.options()
	opts.OnStatus, opts.OnProgress = ui.BuildHooks(renderer)
	opts.ShouldCancel = func() bool { return ctx.Err() != nil }

	start := time.Now()
	var res *catalog.CreateResult
	if rebuild {
		res, err = eng.Rebuild(ctx, name, paths, opts)
	} else {
		res, err = eng.Index(ctx, name, paths, opts)
	}
	if err != nil {
		_ = renderer.Stop()
		return err
	}

	renderer.Complete(completionStats(name, res, time.Since(start)))
	_ = renderer.Stop()

	if res.Descriptor == nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "No vectors were written; index %q was not registered.\n", name)
	}
	return nil
}

func completionStats(name string, res *catalog.CreateResult, elapsed time.Duration) ui.CompletionStats {
	stats := ui.CompletionStats{Index: name, Duration: elapsed}
	if b := res.Build; b != nil {
		stats.Files = b.FilesProcessed
		stats.Vectors = b.VectorsWritten
		stats.Skipped = len(b.Skipped)
		stats.Cancelled = b.Cancelled
		stats.Variant = string(b.Variant)
		stats.Model = b.EmbedModel
		stats.Dimensions = b.Dimensions
		if b.Duration > 0 {
			stats.Duration = b.Duration
		}
	}
	return stats
}

// runWithEngine opens an engine for commands that do not build.
func runWithEngine(cmd *cobra.Command, g *globals, fn func(ctx context.Context, eng *engine.Engine) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	eng, err := g.newEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()
	return fn(ctx, eng)
}
