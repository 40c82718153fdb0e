package cmd

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/engine"
	"github.com/Aman-CERP/docindex/internal/output"
	"github.com/Aman-CERP/docindex/internal/watch"
)

func newWatchCmd(g *globals) *cobra.Command {
	var (
		flags        buildFlags
		forcePolling bool
		pollInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <name> <folder>",
		Short: "Keep an index in sync with a folder",
		Long: `Watch a folder and rebuild the named index whenever supported documents
are created, modified or deleted. Changes are debounced (watch.debounce in
config). The index is built first if it does not exist.

Runs until interrupted with Ctrl+C.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, err := g.newEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			name, folder := args[0], args[1]
			out := output.New(cmd.OutOrStdout())
			abs, _ := filepath.Abs(folder)
			out.Successf("Watching %s for index %q (Ctrl+C to stop)", abs, name)

			return eng.Watch(ctx, name, folder, engine.WatchOptions{
				IndexOptions: flags.options(),
				ForcePolling: forcePolling,
				PollInterval: pollInterval,
				OnRebuild: func(events []watch.FileEvent, err error) {
					if err != nil {
						out.Warningf("Rebuild after %d changes failed: %v", len(events), err)
						return
					}
					out.Successf("Rebuilt %q after %d changes", name, len(events))
					for _, ev := range events {
						out.Infof("%s %s", ev.Operation, ev.Path)
					}
				},
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&forcePolling, "poll", false, "Poll the folder instead of using filesystem events")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "Polling interval (default 5s)")
	return cmd
}
