package input

import (
	"context"

	"webmcp-agent/internal/domain/entity"
)

// ToolInspector is the manual invocation surface.
type ToolInspector interface {
	Tools(ctx context.Context) (entity.ToolRegistrySnapshot, error)
	Template(ctx context.Context, name entity.ToolName) (string, error)
	Execute(ctx context.Context, name entity.ToolName, inputArgs string) (entity.ToolResult, error)
	Export(ctx context.Context, format ExportFormat) (string, error)
}

type ExportFormat string

const (
	ExportJSON   ExportFormat = "json"
	ExportScript ExportFormat = "script"
)
