package agentloop

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"webmcp-agent/internal/application/port/output"
	"webmcp-agent/internal/domain/entity"
	"webmcp-agent/internal/infrastructure/prompts"
)

// suggester streams example prompts into the draft. Staleness is decided by
// comparing request ids, never by cancelling the model call.
type suggester struct {
	model  output.ModelPort
	draft  *PromptBuffer
	logger output.LoggerPort
	opts   Options

	mu            sync.Mutex
	pendingID     uint64
	lastSuggested string
}

func newSuggester(model output.ModelPort, draft *PromptBuffer, logger output.LoggerPort, opts Options) *suggester {
	return &suggester{
		model:  model,
		draft:  draft,
		logger: logger,
		opts:   opts,
	}
}

// suggest asks the model for one example prompt and streams it into the draft.
// It only runs while the draft still holds the previous suggestion (or nothing).
func (s *suggester) suggest(ctx context.Context, tools []entity.Tool) (string, error) {
	if s.model == nil {
		return "", entity.ErrNoModel
	}
	if len(tools) == 0 {
		return "", entity.ErrNoTools
	}

	s.mu.Lock()
	if s.draft.Draft() != s.lastSuggested {
		s.mu.Unlock()
		return "", entity.ErrSuggestionDropped
	}
	s.pendingID++
	id := s.pendingID
	s.mu.Unlock()

	contents, err := prompts.SuggestionContents(s.opts.SuggestPrompt, s.opts.Clock(), tools)
	if err != nil {
		return "", fmt.Errorf("render suggestion prompt: %w", err)
	}
	text, err := s.model.Generate(ctx, contents)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrModelRequest, err)
	}
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if id != s.pendingID || !s.draft.replaceIf(s.lastSuggested, "") {
		s.mu.Unlock()
		s.logger.Debug("Suggestion superseded before streaming", "request", id)
		return "", entity.ErrSuggestionDropped
	}
	s.lastSuggested = text
	s.mu.Unlock()

	return text, s.stream(ctx, id, text)
}

func (s *suggester) stream(ctx context.Context, id uint64, text string) error {
	var written strings.Builder
	for _, r := range text {
		if s.opts.FrameInterval > 0 {
			select {
			case <-time.After(s.opts.FrameInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		s.mu.Lock()
		current := id == s.pendingID
		s.mu.Unlock()
		if !current {
			s.logger.Debug("Suggestion stream superseded", "request", id)
			return entity.ErrSuggestionDropped
		}

		before := written.String()
		written.WriteRune(r)
		if !s.draft.replaceIf(before, written.String()) {
			s.logger.Debug("Operator typed over suggestion", "request", id)
			return entity.ErrSuggestionDropped
		}
	}
	return nil
}

// supersede invalidates every suggestion in flight.
func (s *suggester) supersede() {
	s.mu.Lock()
	s.pendingID++
	s.mu.Unlock()
}

// promptSubmitted consumes the draft for a prompt run.
func (s *suggester) promptSubmitted() {
	s.mu.Lock()
	s.pendingID++
	s.lastSuggested = ""
	s.mu.Unlock()
	s.draft.SetDraft("")
}

func (s *suggester) reset() {
	s.promptSubmitted()
}
