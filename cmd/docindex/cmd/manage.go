package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/engine"
	"github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/output"
	"github.com/Aman-CERP/docindex/internal/ui"
)

func newListCmd(g *globals) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List indexes in the storage root",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithEngine(cmd, g, func(_ context.Context, eng *engine.Engine) error {
				list, err := eng.Catalog.List()
				if err != nil {
					return err
				}
				if jsonOutput {
					return output.New(cmd.OutOrStdout()).JSON(list)
				}
				ui.NewTableRenderer(cmd.OutOrStdout(), ui.DetectNoColor()).RenderList(list)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newStatusCmd(g *globals) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <name>",
		Short: "Show the health of one index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEngine(cmd, g, func(_ context.Context, eng *engine.Engine) error {
				st := eng.Catalog.Status(args[0])
				if jsonOutput {
					return output.New(cmd.OutOrStdout()).JSON(st)
				}
				ui.NewTableRenderer(cmd.OutOrStdout(), ui.DetectNoColor()).RenderStatus(st)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newSummaryCmd(g *globals) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show totals across all indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithEngine(cmd, g, func(_ context.Context, eng *engine.Engine) error {
				s, err := eng.Catalog.Summary()
				if err != nil {
					return err
				}
				if jsonOutput {
					return output.New(cmd.OutOrStdout()).JSON(s)
				}
				ui.NewTableRenderer(cmd.OutOrStdout(), ui.DetectNoColor()).RenderSummary(s)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newValidateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <name>",
		Short: "Check that an index's artifacts are present and consistent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEngine(cmd, g, func(_ context.Context, eng *engine.Engine) error {
				ok, err := eng.Catalog.Validate(args[0])
				if err != nil {
					return err
				}
				out := output.New(cmd.OutOrStdout())
				if !ok {
					st := eng.Catalog.Status(args[0])
					return errors.New(errors.ErrCodeCorruptIndex, fmt.Sprintf("index %q is invalid", args[0]), nil).
						WithDetail("reason", st.Error).
						WithSuggestion(fmt.Sprintf("Run 'docindex rebuild %s'", args[0]))
				}
				out.Successf("Index %q is valid", args[0])
				return nil
			})
		},
	}
}

func newDeleteCmd(g *globals) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "delete <name> | --all",
		Short: "Delete one index or every index",
		Args: func(_ *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.ValidationError("--all takes no index name", nil)
			}
			if !all && len(args) != 1 {
				return errors.ValidationError("delete requires exactly one index name (or --all)", nil)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEngine(cmd, g, func(_ context.Context, eng *engine.Engine) error {
				out := output.New(cmd.OutOrStdout())
				if all {
					n, err := eng.DeleteAll()
					if err != nil {
						return err
					}
					out.Successf("Deleted %d indexes", n)
					return nil
				}

				deleted, err := eng.Delete(args[0])
				if err != nil {
					return err
				}
				if !deleted {
					return errors.New(errors.ErrCodeIndexNotAvailable, fmt.Sprintf("index %q not found", args[0]), nil).
						WithSuggestion("Run 'docindex list' to see available indexes")
				}
				out.Successf("Deleted index %q", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Delete every index in the storage root")
	return cmd
}

func newRenameCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename an index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEngine(cmd, g, func(_ context.Context, eng *engine.Engine) error {
				if err := eng.Rename(args[0], args[1]); err != nil {
					return err
				}
				output.New(cmd.OutOrStdout()).Successf("Renamed %q to %q", args[0], args[1])
				return nil
			})
		},
	}
}

func newCleanupCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete every index that fails validation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithEngine(cmd, g, func(_ context.Context, eng *engine.Engine) error {
				n, err := eng.CleanupOrphans()
				if err != nil {
					return err
				}
				output.New(cmd.OutOrStdout()).Successf("Removed %d invalid indexes", n)
				return nil
			})
		},
	}
}
