package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/mcpserver"
)

func newServeCmd(g *globals) *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search over MCP",
		Long: `Start an MCP server exposing the search, list_indexes and index_status
tools over stdio. stdout carries JSON-RPC only; logs go to ~/.docindex/logs/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, err := g.newEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			srv, err := mcpserver.New(eng)
			if err != nil {
				return err
			}
			slog.Info("serve_started", slog.String("transport", transport), slog.String("root", eng.Catalog.Root()))
			if err := srv.Serve(ctx, transport); err != nil && ctx.Err() == nil {
				return err
			}
			slog.Info("serve_stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio")
	return cmd
}
