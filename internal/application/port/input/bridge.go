package input

import (
	"context"

	"webmcp-agent/internal/application/port/output"
	"webmcp-agent/internal/domain/entity"
)

// ToolBridge talks to the tool registry of a page context.
type ToolBridge interface {
	ListTools(ctx context.Context, page output.PageContext) (entity.ToolRegistrySnapshot, error)
	Subscribe(page output.PageContext, fn func(entity.RegistryEvent)) (unsubscribe func())
	// ExecuteTool always returns a terminal result; deferred results are resolved internally.
	ExecuteTool(ctx context.Context, page output.PageContext, name entity.ToolName, inputArgs string) entity.ToolResult
}
