package agentloop

import (
	"sync"

	"webmcp-agent/internal/application/port/input"
)

var _ input.PromptDraft = (*PromptBuffer)(nil)

// PromptBuffer is the operator's input field.
type PromptBuffer struct {
	mu   sync.Mutex
	text string
}

func (b *PromptBuffer) Draft() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

func (b *PromptBuffer) SetDraft(text string) {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
}

// replaceIf swaps the text only when it still equals want.
func (b *PromptBuffer) replaceIf(want, text string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.text != want {
		return false
	}
	b.text = text
	return true
}
