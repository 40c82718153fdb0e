// Package cmd provides the CLI commands for docindex.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/Aman-CERP/docindex/internal/embed"
	"github.com/Aman-CERP/docindex/internal/engine"
	"github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/logging"
	"github.com/Aman-CERP/docindex/pkg/version"
)

// globals holds the persistent flags and the logger they produce.
type globals struct {
	debug      bool
	offline    bool
	root       string
	configPath string

	logger         *slog.Logger
	loggingCleanup func()
}

// NewRootCmd creates the root command for the docindex CLI.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "docindex",
		Short: "Index local documents and search them with hybrid retrieval",
		Long: `docindex splits local documents into overlapping chunks, embeds them,
and stores them in named vector indexes. Searches fuse dense similarity with
a keyword (BM25) score.

Examples:
  docindex index manuals ./docs
  docindex search manuals "battery replacement"
  docindex watch manuals ./docs
  docindex serve`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("docindex version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging to ~/.docindex/logs/")
	cmd.PersistentFlags().BoolVar(&g.offline, "offline", false, "Use static embeddings (no embedding server)")
	cmd.PersistentFlags().StringVar(&g.root, "root", "", "Storage root for indexes (default ~/.docindex/indexes)")
	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Config file (default: user config, then ./.docindex.yaml)")

	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		return g.startLogging(c.Name() == "serve")
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		g.stopLogging()
		return nil
	}

	cmd.AddCommand(newIndexCmd(g))
	cmd.AddCommand(newRebuildCmd(g))
	cmd.AddCommand(newSearchCmd(g))
	cmd.AddCommand(newListCmd(g))
	cmd.AddCommand(newStatusCmd(g))
	cmd.AddCommand(newSummaryCmd(g))
	cmd.AddCommand(newValidateCmd(g))
	cmd.AddCommand(newDeleteCmd(g))
	cmd.AddCommand(newRenameCmd(g))
	cmd.AddCommand(newCleanupCmd(g))
	cmd.AddCommand(newWatchCmd(g))
	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs the process logger. serve keeps stderr clean.
func (g *globals) startLogging(serve bool) error {
	var cfg logging.Config
	switch {
	case serve:
		cfg = logging.ServeConfig()
		if !g.debug {
			cfg.Level = "info"
		}
	case g.debug:
		cfg = logging.DebugConfig()
	default:
		cfg = logging.DefaultConfig()
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	g.logger = logger
	g.loggingCleanup = cleanup
	slog.SetDefault(logger)
	if g.debug {
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}
	return nil
}

func (g *globals) stopLogging() {
	if g.loggingCleanup != nil {
		g.loggingCleanup()
		g.loggingCleanup = nil
	}
}

// loadConfig resolves the configuration and applies the persistent flags.
func (g *globals) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			wd = "."
		}
		cfg, err = config.Load(wd)
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "failed to load configuration", err).
			WithSuggestion("Run 'docindex config show' to inspect the effective configuration")
	}

	if g.root != "" {
		cfg.Storage.Root = g.root
	}
	if g.offline {
		cfg.Embeddings.Provider = string(embed.ProviderStatic)
	}
	return cfg, nil
}

// newEngine opens an engine for one command. The caller closes it.
func (g *globals) newEngine(ctx context.Context) (*engine.Engine, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := g.logger
	if logger == nil {
		logger = slog.Default()
	}
	return engine.New(ctx, cfg, engine.WithLogger(logger))
}

// Execute runs the root command and prints errors in CLI form.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprint(os.Stderr, errors.FormatForCLI(err))
		return err
	}
	return nil
}
