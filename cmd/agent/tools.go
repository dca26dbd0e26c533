package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"webmcp-agent/internal/application/port/input"
	"webmcp-agent/internal/di"
	"webmcp-agent/internal/domain/entity"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools the page registers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, _ := cmd.Flags().GetString("format")
			return withContainer(cmd, di.Options{LogName: "tools"}, func(ctx context.Context, c *di.Container) error {
				if format != "" {
					text, err := c.Inspector.Export(ctx, input.ExportFormat(format))
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), text)
					return nil
				}

				snap, err := c.Inspector.Tools(ctx)
				if err != nil {
					return err
				}
				if snap.Empty() {
					fmt.Fprintf(cmd.OutOrStdout(), "No tools registered yet in %s\n", snap.URL)
					return nil
				}
				for _, tool := range snap.Tools {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", tool.Name, tool.Description)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringP("format", "f", "", "export format instead of the listing (json|script)")
	return cmd
}

func newTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template <tool>",
		Short: "Print an example input for a tool, synthesized from its schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, di.Options{LogName: "template"}, func(ctx context.Context, c *di.Container) error {
				text, err := c.Inspector.Template(ctx, entity.ToolName(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}

func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <tool> [json]",
		Short: "Execute a tool with the given JSON input",
		Long: `Execute a tool directly, without a model. The input defaults to {}.
Navigation-bound tools wait for the submitted document and print its result.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputArgs := ""
			if len(args) == 2 {
				inputArgs = strings.TrimSpace(args[1])
			}
			return withContainer(cmd, di.Options{LogName: "exec"}, func(ctx context.Context, c *di.Container) error {
				res, err := c.Inspector.Execute(ctx, entity.ToolName(args[0]), inputArgs)
				if err != nil {
					return err
				}
				if res.IsFailure() {
					return fmt.Errorf("%w: %s", entity.ErrToolExecution, res.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Text())
				return nil
			})
		},
	}
}
