package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"webmcp-agent/internal/application/port/input"
	"webmcp-agent/internal/application/port/output"
	"webmcp-agent/internal/domain/entity"
	"webmcp-agent/internal/domain/schematemplate"
)

var _ input.ToolInspector = (*UseCase)(nil)

// UseCase is manual tool invocation: pick a tool, edit a synthesized argument
// template, run it.
type UseCase struct {
	bridge   input.ToolBridge
	registry output.ToolRegistry
	page     output.PageContext
	logger   output.LoggerPort
	clock    func() time.Time
}

func New(
	bridge input.ToolBridge,
	registry output.ToolRegistry,
	page output.PageContext,
	logger output.LoggerPort,
) *UseCase {
	return &UseCase{
		bridge:   bridge,
		registry: registry,
		page:     page,
		logger:   logger.WithField("component", "executor"),
		clock:    time.Now,
	}
}

// Tools asks the page for its tool set.
func (uc *UseCase) Tools(ctx context.Context) (entity.ToolRegistrySnapshot, error) {
	if uc.page == nil {
		return entity.ToolRegistrySnapshot{}, entity.ErrNoPage
	}
	return uc.bridge.ListTools(ctx, uc.page)
}

// current is the latest known snapshot, listed from the page only when none is known yet.
func (uc *UseCase) current(ctx context.Context) (entity.ToolRegistrySnapshot, error) {
	if uc.page == nil {
		return entity.ToolRegistrySnapshot{}, entity.ErrNoPage
	}
	if snap, ok := uc.registry.Latest(uc.page.ID()); ok {
		return snap, nil
	}
	return uc.Tools(ctx)
}

// Template returns the pretty-printed example arguments for a tool.
func (uc *UseCase) Template(ctx context.Context, name entity.ToolName) (string, error) {
	tool, err := uc.lookup(ctx, name)
	if err != nil {
		return "", err
	}
	schema := tool.InputSchema
	if strings.TrimSpace(schema) == "" {
		schema = "{}"
	}
	return schematemplate.SynthesizeJSON(schema, uc.clock())
}

// Execute runs the tool with inputArgs as typed by the operator. A deferred
// result is waited for inside the bridge.
func (uc *UseCase) Execute(ctx context.Context, name entity.ToolName, inputArgs string) (entity.ToolResult, error) {
	if uc.page == nil {
		return entity.ToolResult{}, entity.ErrNoPage
	}
	if strings.TrimSpace(inputArgs) == "" {
		inputArgs = "{}"
	}

	uc.logger.Info("Executing tool", "name", string(name), "args", inputArgs)
	start := uc.clock()
	result := uc.bridge.ExecuteTool(ctx, uc.page, name, inputArgs)

	if result.IsFailure() {
		uc.logger.Error("Tool execution failed", "name", string(name), "error", result.Message)
	} else {
		uc.logger.Debug("Tool completed", "name", string(name), "elapsed", uc.clock().Sub(start).String())
	}
	return result, nil
}

type exportedTool struct {
	Name        entity.ToolName `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Export renders the current tool set as a JSON array or as script_tools blocks.
func (uc *UseCase) Export(ctx context.Context, format input.ExportFormat) (string, error) {
	snap, err := uc.current(ctx)
	if err != nil {
		return "", err
	}
	return ExportTools(snap.Tools, format)
}

func ExportTools(tools []entity.Tool, format input.ExportFormat) (string, error) {
	exported := make([]exportedTool, 0, len(tools))
	for _, tool := range tools {
		schema, err := tool.ParsedInputSchema()
		if err != nil {
			schema = json.RawMessage(entity.DefaultInputSchema)
		}
		exported = append(exported, exportedTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}

	switch format {
	case input.ExportJSON, "":
		data, err := json.MarshalIndent(exported, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case input.ExportScript:
		blocks := make([]string, 0, len(exported))
		for _, t := range exported {
			var compact bytes.Buffer
			if err := json.Compact(&compact, t.InputSchema); err != nil {
				return "", err
			}
			blocks = append(blocks, fmt.Sprintf("script_tools {\n  name: %q\n  description: %q\n  input_schema: %s\n}",
				t.Name, t.Description, compact.String()))
		}
		return strings.Join(blocks, "\r\n"), nil
	}
	return "", fmt.Errorf("unknown export format %q", format)
}

func (uc *UseCase) lookup(ctx context.Context, name entity.ToolName) (entity.Tool, error) {
	snap, err := uc.current(ctx)
	if err != nil {
		return entity.Tool{}, err
	}
	tool, ok := snap.Lookup(name)
	if !ok {
		return entity.Tool{}, fmt.Errorf("%w: %s", entity.ErrToolNotFound, name)
	}
	return tool, nil
}
