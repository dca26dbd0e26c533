package input

import (
	"context"

	"webmcp-agent/internal/domain/entity"
)

type AgentLoop interface {
	Run(ctx context.Context, prompt string) (*entity.RunResult, error)
	Reset()
	State() entity.LoopState
	Trace() *entity.Trace
	HandleRegistryEvent(ev entity.RegistryEvent)
	Snapshot() (entity.ToolRegistrySnapshot, bool)
	Draft() PromptDraft
	// SuggestPrompt streams a suggestion for the latest tool set into the draft.
	SuggestPrompt(ctx context.Context) (string, error)
}

// PromptDraft is the operator's free-text input, which suggestions stream into.
type PromptDraft interface {
	Draft() string
	SetDraft(text string)
}
