package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"webmcp-agent/internal/di"
	"webmcp-agent/internal/domain/entity"
	"webmcp-agent/internal/infrastructure/config"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Talk to a model that calls the page tools",
		Long: `Start a conversation with the configured model. Pass a prompt as argument
for a single run, or run without arguments for a REPL.

REPL commands:
  /reset    start a new conversation
  /trace    print the conversation trace as JSON
  /tools    list the current tools
  /suggest  ask the model for a prompt suggestion
  /quit     leave

An empty line submits the current suggestion.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, di.Options{LogName: "chat"}, func(ctx context.Context, c *di.Container) error {
				if c.Model == nil {
					return fmt.Errorf("%w: set %s or use the ollama provider", entity.ErrNoModel, config.EnvAPIKey)
				}
				if len(args) == 1 {
					_, err := c.Loop.Run(ctx, args[0])
					return err
				}
				return repl(ctx, cmd.OutOrStdout(), c)
			})
		},
	}
}

func repl(ctx context.Context, out io.Writer, c *di.Container) error {
	for {
		line, err := c.Console.ReadLine(ctx, "prompt", c.Loop.Draft().Draft())
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			c.Loop.Reset()
			continue
		case "/trace":
			text, err := c.Loop.Trace().Export()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, text)
			continue
		case "/tools":
			snap, ok := c.Loop.Snapshot()
			if !ok || snap.Empty() {
				fmt.Fprintln(out, "No tools registered yet")
				continue
			}
			for _, tool := range snap.Tools {
				fmt.Fprintf(out, "%s\t%s\n", tool.Name, tool.Description)
			}
			continue
		case "/suggest":
			if _, err := c.Loop.SuggestPrompt(ctx); err != nil {
				fmt.Fprintln(out, "No suggestion:", err)
			}
			continue
		}

		c.Loop.Draft().SetDraft("")
		if _, err := c.Loop.Run(ctx, line); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			// Model failures are already on the console; the operator may resubmit.
			c.Logger.Warn("Prompt run ended with error", "error", err)
		}
	}
}
