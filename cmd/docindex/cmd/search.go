package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/engine"
	"github.com/Aman-CERP/docindex/internal/output"
	"github.com/Aman-CERP/docindex/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	k       int
	json    bool
	context bool
	snippet int
}

func newSearchCmd(g *globals) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <name> <query>...",
		Short: "Search a named index",
		Long: `Search a named index with hybrid retrieval: dense similarity over the
embedded chunks fused with a BM25 keyword score.

Examples:
  docindex search manuals "battery replacement"
  docindex search manuals warranty terms -k 5 --json
  docindex search manuals "error codes" --context`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args[1:], " ")
			return runWithEngine(cmd, g, func(ctx context.Context, eng *engine.Engine) error {
				return runSearch(ctx, cmd, eng, args[0], query, opts)
			})
		},
	}

	cmd.Flags().IntVarP(&opts.k, "top-k", "k", 0, "Number of results (default from config)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&opts.context, "context", false, "Output a citation block ready to paste into a prompt")
	cmd.Flags().IntVar(&opts.snippet, "snippet", 240, "Characters of text to show per result (0 = all)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, eng *engine.Engine, name, query string, opts searchOptions) error {
	slog.Info("search_started", slog.String("index", name), slog.String("query", query), slog.Int("k", opts.k))

	results, err := eng.Search(ctx, name, query, opts.k)
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.String("index", name), slog.Int("results", len(results)))

	out := output.New(cmd.OutOrStdout())
	switch {
	case opts.json:
		return out.JSON(output.ToJSON(results))
	case opts.context:
		_, err := cmd.OutOrStdout().Write([]byte(search.FormatContext(results) + "\n"))
		return err
	default:
		out.Results(query, results, opts.snippet)
		return nil
	}
}
