package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"webmcp-agent/internal/di"
	"webmcp-agent/internal/infrastructure/config"
	"webmcp-agent/internal/infrastructure/env"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agent",
		Short: "Drive the tools a web page registers, by hand or through a model",
		Long: `agent opens a page in Chrome, reads the tools it registers through the
testing tool registry and lets you call them directly, chat with a model that
calls them, or re-export them over HTTP and MCP.

Chrome must expose the registry (the default flags enable WebMCPTesting).`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "webmcp.yaml", "config file (missing file means defaults)")
	flags.String("url", "", "page to open")
	flags.Bool("headed", false, "show the browser window")
	flags.String("log-level", "", "override the log level (debug|info|warn|error)")

	root.AddCommand(
		newToolsCmd(),
		newTemplateCmd(),
		newExecCmd(),
		newChatCmd(),
		newServeCmd(),
		newMCPCmd(),
		newTracesCmd(),
	)
	return root
}

// resolveConfig layers the config file, the environment and the flags.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(env.NewEnvService()); err != nil {
		return nil, err
	}

	if headed, _ := cmd.Flags().GetBool("headed"); headed {
		cfg.Browser.Headless = false
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

// withContainer opens the page named by --url and runs fn against it.
func withContainer(cmd *cobra.Command, opts di.Options, fn func(ctx context.Context, c *di.Container) error) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	url, _ := cmd.Flags().GetString("url")
	if url == "" {
		return fmt.Errorf("--url is required")
	}

	ctx := cmd.Context()
	c, err := di.NewContainer(ctx, cfg, url, opts)
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(ctx, c)
}
