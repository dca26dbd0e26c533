package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"webmcp-agent/internal/application/port/input"
	"webmcp-agent/internal/application/port/output"
	"webmcp-agent/internal/domain/entity"
)

// Server re-exports the tools of one page as an MCP server. Every call goes
// through the bridge, so navigation-bound tools resolve the same way they do
// for the agent loop.
type Server struct {
	bridge input.ToolBridge
	page   output.PageContext
	logger output.LoggerPort

	mcpServer *server.MCPServer

	mu      sync.Mutex
	version uint64
	names   []string
}

func NewServer(bridge input.ToolBridge, page output.PageContext, logger output.LoggerPort, name, version string) *Server {
	mcpSrv := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
		server.WithRecovery(),
	)
	return &Server{
		bridge:    bridge,
		page:      page,
		logger:    logger.WithField("component", "mcpserver"),
		mcpServer: mcpSrv,
	}
}

// Attach keeps the registered tools in sync with the page registry until the
// returned function is called. It subscribes before the first listing so no
// change is missed in between.
func (s *Server) Attach(ctx context.Context) (detach func(), err error) {
	unsubscribe := s.bridge.Subscribe(s.page, func(ev entity.RegistryEvent) {
		if ev.Err != nil {
			s.logger.Warn("Page registry error", "error", ev.Err)
			return
		}
		if ev.Snapshot != nil {
			s.Sync(*ev.Snapshot)
		}
	})

	snap, err := s.bridge.ListTools(ctx, s.page)
	if err != nil {
		unsubscribe()
		return nil, fmt.Errorf("list page tools: %w", err)
	}
	s.Sync(snap)
	return unsubscribe, nil
}

// Sync replaces the registered tools with snap. Older snapshots are ignored.
func (s *Server) Sync(snap entity.ToolRegistrySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Version <= s.version {
		return
	}
	s.version = snap.Version

	tools := make([]server.ServerTool, 0, len(snap.Tools))
	names := make([]string, 0, len(snap.Tools))
	for _, tool := range snap.Tools {
		schema, err := tool.ParsedInputSchema()
		if err != nil {
			s.logger.Warn("Tool input schema is invalid, using default", "tool", tool.Name, "error", err)
			schema = json.RawMessage(entity.DefaultInputSchema)
		}
		tools = append(tools, server.ServerTool{
			Tool:    mcp.NewToolWithRawSchema(string(tool.Name), tool.Description, schema),
			Handler: s.handler(tool.Name),
		})
		names = append(names, string(tool.Name))
	}

	s.mcpServer.SetTools(tools...)
	s.names = names
	s.logger.Info("Tools re-exported", "version", snap.Version, "tools", names)
}

// Names lists the currently registered tools.
func (s *Server) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Serve speaks MCP over the given streams until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, in, out)
}

// HandleMessage processes one raw JSON-RPC message.
func (s *Server) HandleMessage(ctx context.Context, raw json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, raw)
}

func (s *Server) handler(name entity.ToolName) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		payload, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("tool %s: encode arguments: %v", name, err)), nil
		}

		res := s.bridge.ExecuteTool(ctx, s.page, name, string(payload))
		if res.IsFailure() {
			return mcp.NewToolResultError(res.Message), nil
		}
		return mcp.NewToolResultText(res.Text()), nil
	}
}
