package agentloop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"webmcp-agent/internal/application/port/input"
	"webmcp-agent/internal/application/port/output"
	"webmcp-agent/internal/domain/entity"
)

var _ input.AgentLoop = (*UseCase)(nil)

const noTextWarning = "model returned no text"

type Options struct {
	SystemPrompt  string
	SuggestPrompt string
	// FrameInterval paces streamed suggestions, one character per frame.
	FrameInterval time.Duration
	// SuggestEnabled turns on prompt suggestions for new tool sets.
	SuggestEnabled bool
	Clock          func() time.Time
}

// UseCase owns the conversation: chat handle, trace, latest snapshot and
// loop state. Nothing else mutates them.
type UseCase struct {
	bridge  input.ToolBridge
	page    output.PageContext
	model   output.ModelPort
	console output.ConsolePort
	traces  output.TraceStore
	logger  output.LoggerPort
	opts    Options

	draft     *PromptBuffer
	suggester *suggester
	bg        sync.WaitGroup

	mu       sync.Mutex
	state    entity.LoopState
	epoch    uint64
	chat     output.ChatSession
	trace    *entity.Trace
	snapshot *entity.ToolRegistrySnapshot
}

// New builds the controller. model and traces may be nil: without a model
// prompting is disabled, without a store traces are not archived.
func New(
	bridge input.ToolBridge,
	page output.PageContext,
	model output.ModelPort,
	console output.ConsolePort,
	traces output.TraceStore,
	logger output.LoggerPort,
	opts Options,
) *UseCase {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	uc := &UseCase{
		bridge:  bridge,
		page:    page,
		model:   model,
		console: console,
		traces:  traces,
		logger:  logger.WithField("component", "agentloop"),
		opts:    opts,
		draft:   &PromptBuffer{},
		state:   entity.StateIdle,
	}
	uc.trace = entity.NewTrace(uuid.NewString(), opts.Clock())
	uc.suggester = newSuggester(model, uc.draft, uc.logger, opts)
	return uc
}

func (uc *UseCase) Draft() input.PromptDraft { return uc.draft }

func (uc *UseCase) State() entity.LoopState {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.state
}

func (uc *UseCase) Trace() *entity.Trace {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.trace
}

func (uc *UseCase) Snapshot() (entity.ToolRegistrySnapshot, bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.snapshot == nil {
		return entity.ToolRegistrySnapshot{}, false
	}
	return *uc.snapshot, true
}

// HandleRegistryEvent records a newer snapshot and, when the tool set changed,
// asks for a fresh prompt suggestion. Stale snapshots are dropped silently.
func (uc *UseCase) HandleRegistryEvent(ev entity.RegistryEvent) {
	if ev.Err != nil {
		uc.console.Line(output.LineStatus, ev.Err.Error())
		return
	}
	if ev.Snapshot == nil {
		return
	}

	uc.mu.Lock()
	prev := uc.snapshot
	if prev != nil && ev.Snapshot.Version <= prev.Version {
		uc.mu.Unlock()
		return
	}
	snap := *ev.Snapshot
	uc.snapshot = &snap
	uc.mu.Unlock()

	if snap.Empty() {
		uc.console.Line(output.LineStatus, fmt.Sprintf("No tools registered yet in %s", snap.URL))
	}

	if prev == nil || !prev.Equal(snap) {
		uc.logger.Debug("Tool set changed", "version", snap.Version, "tools", snap.Names())
		uc.suggestAsync(snap.Tools)
	}
}

// Run drives one operator prompt through the loop until the model answers
// without tool calls.
func (uc *UseCase) Run(ctx context.Context, prompt string) (*entity.RunResult, error) {
	if uc.model == nil {
		return nil, entity.ErrNoModel
	}
	if uc.page == nil {
		return nil, entity.ErrNoPage
	}

	uc.mu.Lock()
	if uc.state.Busy() {
		uc.mu.Unlock()
		return nil, entity.ErrLoopBusy
	}
	uc.state = entity.StateAwaitingModel
	epoch := uc.epoch
	chat := uc.chat
	trace := uc.trace
	uc.mu.Unlock()

	uc.suggester.promptSubmitted()

	if chat == nil {
		var err error
		chat, err = uc.model.StartChat(ctx)
		if err != nil {
			trace.AppendError(err, uc.opts.Clock())
			uc.console.Line(output.LineWarning, fmt.Sprintf("⚠️ Error: %q", err.Error()))
			uc.logger.Error("Chat start failed", "error", err)
			uc.settle(epoch, entity.StateErrored)
			uc.archive(ctx, trace)
			return nil, fmt.Errorf("%w: %v", entity.ErrModelRequest, err)
		}
		if !uc.adoptChat(epoch, chat) {
			return nil, entity.ErrConversationReset
		}
	}

	uc.console.Line(output.LineUser, fmt.Sprintf("User prompt: %q", prompt))
	log := uc.logger.WithField("conversation", trace.ConversationID())
	result := &entity.RunResult{ConversationID: trace.ConversationID()}

	msg := entity.ChatMessage{Text: prompt}
	for {
		cfg := uc.buildConfig()
		trace.AppendUserPrompt(entity.SendParams{Message: msg, Config: cfg}, uc.opts.Clock())

		resp, err := chat.Send(ctx, msg, cfg)
		if uc.stale(epoch) {
			log.Info("Discarding model response for a reset conversation")
			return nil, entity.ErrConversationReset
		}
		result.Turns++
		if err != nil {
			trace.AppendError(err, uc.opts.Clock())
			uc.console.Line(output.LineWarning, fmt.Sprintf("⚠️ Error: %q", err.Error()))
			log.Error("Model request failed", "turn", result.Turns, "error", err)
			uc.settle(epoch, entity.StateErrored)
			uc.archive(ctx, trace)
			result.State = entity.StateErrored
			return result, fmt.Errorf("%w: %v", entity.ErrModelRequest, err)
		}
		trace.AppendResponse(*resp, uc.opts.Clock())

		if len(resp.FunctionCalls) == 0 {
			text := strings.TrimSpace(resp.Text)
			if text == "" {
				result.Warning = noTextWarning
				uc.console.Line(output.LineWarning, fmt.Sprintf("⚠️ AI response has no text: %s", finishReason(resp)))
			} else {
				result.FinalText = text
				uc.console.Line(output.LineModel, "AI result: "+text)
			}
			uc.settle(epoch, entity.StateDone)
			uc.archive(ctx, trace)
			result.State = entity.StateDone
			return result, nil
		}

		uc.setState(epoch, entity.StateExecutingTools)
		responses, err := uc.executeCalls(ctx, epoch, resp.FunctionCalls)
		if err != nil {
			return nil, err
		}
		result.ToolCalls += len(responses)

		msg = entity.ChatMessage{ToolResponses: responses}
		uc.setState(epoch, entity.StateAwaitingModel)
	}
}

// executeCalls runs the batch strictly in order. A failing call becomes an
// {error} response and does not stop the rest.
func (uc *UseCase) executeCalls(ctx context.Context, epoch uint64, calls []entity.FunctionCall) ([]entity.FunctionResponse, error) {
	responses := make([]entity.FunctionResponse, 0, len(calls))
	for _, call := range calls {
		args := call.ArgsJSON()
		uc.console.Line(output.LineTool, fmt.Sprintf("AI calling tool %q with %s", call.Name, args))

		res := uc.executeCall(ctx, call, args)
		if uc.stale(epoch) {
			return nil, entity.ErrConversationReset
		}

		if res.IsFailure() {
			uc.console.Line(output.LineWarning, fmt.Sprintf("⚠️ Error executing tool %q: %s", call.Name, res.Message))
		} else {
			uc.console.Line(output.LineResult, fmt.Sprintf("Tool %q result: %s", call.Name, res.Text()))
		}

		responses = append(responses, entity.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: res.Response(),
		})
	}
	return responses, nil
}

func (uc *UseCase) executeCall(ctx context.Context, call entity.FunctionCall, args string) entity.ToolResult {
	name := entity.ToolName(call.Name)
	if snap, ok := uc.Snapshot(); ok {
		if _, found := snap.Lookup(name); !found {
			// The page may have withdrawn the tool after the model saw it; the page decides.
			uc.logger.Warn("Model called a tool missing from the latest snapshot", "tool", call.Name, "version", snap.Version)
		}
	}
	return uc.bridge.ExecuteTool(ctx, uc.page, name, args)
}

// Reset drops the conversation from any state. A model call still in flight
// finishes, but its response is discarded.
func (uc *UseCase) Reset() {
	uc.mu.Lock()
	uc.epoch++
	uc.chat = nil
	uc.trace = entity.NewTrace(uuid.NewString(), uc.opts.Clock())
	uc.state = entity.StateIdle
	var tools []entity.Tool
	if uc.snapshot != nil {
		tools = uc.snapshot.Tools
	}
	uc.mu.Unlock()

	uc.suggester.reset()
	uc.console.Clear()
	uc.logger.Info("Conversation reset")
	uc.suggestAsync(tools)
}

// SuggestPrompt requests a suggestion for the current tool set and waits for
// it to finish streaming.
func (uc *UseCase) SuggestPrompt(ctx context.Context) (string, error) {
	snap, ok := uc.Snapshot()
	if !ok {
		return "", entity.ErrNoTools
	}
	return uc.suggester.suggest(ctx, snap.Tools)
}

// Wait blocks until background suggestions have finished.
func (uc *UseCase) Wait() {
	uc.bg.Wait()
}

// Close supersedes any streaming suggestion and waits for background work.
func (uc *UseCase) Close() {
	uc.suggester.supersede()
	uc.bg.Wait()
}

func (uc *UseCase) suggestAsync(tools []entity.Tool) {
	if !uc.opts.SuggestEnabled || len(tools) == 0 {
		return
	}
	uc.bg.Add(1)
	go func() {
		defer uc.bg.Done()
		if _, err := uc.suggester.suggest(context.Background(), tools); err != nil && !errors.Is(err, entity.ErrSuggestionDropped) {
			uc.logger.Warn("Prompt suggestion failed", "error", err)
		}
	}()
}

func (uc *UseCase) adoptChat(epoch uint64, chat output.ChatSession) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.epoch != epoch {
		return false
	}
	uc.chat = chat
	uc.logger.Debug("Chat started", "chat", chat.ID())
	return true
}

func (uc *UseCase) stale(epoch uint64) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.epoch != epoch
}

func (uc *UseCase) setState(epoch uint64, state entity.LoopState) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.epoch == epoch {
		uc.state = state
	}
}

func (uc *UseCase) settle(epoch uint64, state entity.LoopState) {
	uc.setState(epoch, state)
	uc.logger.Info("Loop settled", "state", state)
}

func (uc *UseCase) archive(ctx context.Context, trace *entity.Trace) {
	if uc.traces == nil {
		return
	}
	payload, err := trace.Export()
	if err != nil {
		uc.logger.Warn("Trace export failed", "error", err)
		return
	}
	rec := entity.TraceRecord{
		ConversationID: trace.ConversationID(),
		PageURL:        uc.page.URL(),
		StartedAt:      trace.StartedAt(),
		UpdatedAt:      uc.opts.Clock(),
		EntryCount:     trace.Len(),
		Payload:        payload,
	}
	if err := uc.traces.Save(ctx, rec); err != nil {
		uc.logger.Warn("Trace archive failed", "conversation", rec.ConversationID, "error", err)
	}
}

func finishReason(resp *entity.ModelResponse) string {
	if resp.FinishReason == "" {
		return "no finish reason"
	}
	return resp.FinishReason
}
