package output

import (
	"context"

	"webmcp-agent/internal/domain/entity"
)

// ModelPort is the conversational model collaborator.
type ModelPort interface {
	// StartChat opens a fresh conversation handle. Handles are never reused.
	StartChat(ctx context.Context) (ChatSession, error)
	// Generate is a stateless one-shot completion.
	Generate(ctx context.Context, contents []string) (string, error)
	Name() string
}

// ChatSession keeps the history of one conversation on the provider side.
type ChatSession interface {
	ID() string
	Send(ctx context.Context, msg entity.ChatMessage, cfg entity.GenerateConfig) (*entity.ModelResponse, error)
}
