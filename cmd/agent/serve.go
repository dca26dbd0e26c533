package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"webmcp-agent/internal/adapter/httpapi"
	"webmcp-agent/internal/adapter/mcpserver"
	"webmcp-agent/internal/di"
)

var version = "dev"

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the page tools and the agent loop over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			return withContainer(cmd, di.Options{LogName: "serve", ConsoleOut: os.Stderr}, func(ctx context.Context, c *di.Container) error {
				if addr == "" {
					addr = c.Config.HTTP.Addr
				}
				modelName := ""
				if c.Model != nil {
					modelName = c.Model.Name()
				}
				srv := httpapi.NewServer(c.Inspector, c.Loop, c.Traces, c.Page, c.Logger, httpapi.Options{
					Addr:      addr,
					ModelName: modelName,
					LogLevel:  c.Config.Log.Level,
				})
				return srv.ListenAndServe(ctx)
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address (defaults to http.addr from the config)")
	return cmd
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Re-export the page tools as an MCP server on stdio",
		Long: `Serve the tools of the opened page to an MCP client over stdin/stdout.
The tool list follows the page registry; calls go through the same bridge as
exec, so navigation-bound tools return the submitted document's result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := di.Options{LogName: "mcp", ConsoleOut: os.Stderr, WithoutTraces: true}
			return withContainer(cmd, opts, func(ctx context.Context, c *di.Container) error {
				srv := mcpserver.NewServer(c.Bridge, c.Page, c.Logger, "webmcp-agent", version)
				detach, err := srv.Attach(ctx)
				if err != nil {
					return err
				}
				defer detach()

				return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}
