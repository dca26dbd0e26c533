package agentloop

import (
	"webmcp-agent/internal/application/service"
	"webmcp-agent/internal/domain/entity"
	"webmcp-agent/internal/infrastructure/prompts"
)

// buildConfig is called before every send so the model always sees the latest
// known tool set and today's date.
func (uc *UseCase) buildConfig() entity.GenerateConfig {
	instruction, err := prompts.SystemInstruction(uc.opts.SystemPrompt, uc.opts.Clock())
	if err != nil {
		uc.logger.Error("System prompt render failed", "error", err)
		instruction = nil
	}

	decls := []entity.FunctionDeclaration{}
	if snap, ok := uc.Snapshot(); ok {
		decls = service.Declarations(snap, func(name entity.ToolName, err error) {
			uc.logger.Warn("Invalid input schema, using empty object schema", "tool", string(name), "error", err)
		})
	}

	return entity.GenerateConfig{
		SystemInstruction: instruction,
		Tools:             []entity.ToolGroup{{FunctionDeclarations: decls}},
	}
}
