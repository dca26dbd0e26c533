package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"webmcp-agent/internal/application/port/input"
	"webmcp-agent/internal/application/port/output"
	"webmcp-agent/internal/domain/entity"
)

var _ input.ToolBridge = (*UseCase)(nil)

const unexpectedEmptyResult = "unexpected empty result"

type UseCase struct {
	registry        output.ToolRegistry
	logger          output.LoggerPort
	deferredTimeout time.Duration

	mu       sync.Mutex
	pages    map[string]*pageState
	inFlight map[invocationKey]string
}

type invocationKey struct {
	page string
	tool entity.ToolName
}

// pageState serializes bridge messages for one page and fans out its pushes.
type pageState struct {
	send sync.Mutex

	subs     map[int]func(entity.RegistryEvent)
	nextSub  int
	unhook   func()
	reported bool
}

// New builds a bridge. A zero deferredTimeout waits for navigation indefinitely.
func New(registry output.ToolRegistry, logger output.LoggerPort, deferredTimeout time.Duration) *UseCase {
	return &UseCase{
		registry:        registry,
		logger:          logger.WithField("component", "bridge"),
		deferredTimeout: deferredTimeout,
		pages:           make(map[string]*pageState),
		inFlight:        make(map[invocationKey]string),
	}
}

func (uc *UseCase) state(page output.PageContext) *pageState {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	ps, ok := uc.pages[page.ID()]
	if !ok {
		ps = &pageState{subs: make(map[int]func(entity.RegistryEvent))}
		uc.pages[page.ID()] = ps
	}
	return ps
}

func (uc *UseCase) ListTools(ctx context.Context, page output.PageContext) (entity.ToolRegistrySnapshot, error) {
	reply, err := uc.send(ctx, page, entity.BridgeRequest{Action: entity.ActionListTools})
	if err == nil && reply.Err != nil {
		err = replyError(reply.Err)
	}
	if err != nil {
		err = fmt.Errorf("list tools: %w", err)
		uc.broadcastError(page, err)
		return entity.ToolRegistrySnapshot{}, err
	}

	url := reply.URL
	if url == "" {
		url = page.URL()
	}
	snap := uc.registry.Publish(page.ID(), url, reply.Tools)
	uc.logger.Debug("Tools listed", "page", page.ID(), "version", snap.Version, "count", len(snap.Tools))
	return snap, nil
}

// Subscribe registers fn for registry changes on page. The page push hook is
// installed with the first subscriber and removed with the last.
func (uc *UseCase) Subscribe(page output.PageContext, fn func(entity.RegistryEvent)) func() {
	ps := uc.state(page)

	uc.mu.Lock()
	id := ps.nextSub
	ps.nextSub++
	ps.subs[id] = fn
	install := ps.unhook == nil
	if install {
		ps.unhook = func() {}
	}
	uc.mu.Unlock()

	if install {
		unhook := page.OnToolsChanged(func(tc entity.ToolsChanged) {
			uc.onToolsChanged(page, tc)
		})
		uc.mu.Lock()
		ps.unhook = unhook
		uc.mu.Unlock()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			uc.mu.Lock()
			delete(ps.subs, id)
			var unhook func()
			if len(ps.subs) == 0 {
				unhook, ps.unhook = ps.unhook, nil
			}
			uc.mu.Unlock()
			if unhook != nil {
				unhook()
			}
		})
	}
}

func (uc *UseCase) onToolsChanged(page output.PageContext, tc entity.ToolsChanged) {
	if tc.Message != "" {
		uc.broadcastError(page, errors.New(tc.Message))
		return
	}
	url := tc.URL
	if url == "" {
		url = page.URL()
	}
	snap := uc.registry.Publish(page.ID(), url, tc.Tools)
	uc.logger.Debug("Tools changed", "page", page.ID(), "version", snap.Version, "count", len(snap.Tools))
	uc.broadcast(page, entity.RegistryEvent{Snapshot: &snap})
}

// ExecuteTool dispatches one invocation. Tool-level problems come back as
// Failure results, never as errors.
func (uc *UseCase) ExecuteTool(ctx context.Context, page output.PageContext, name entity.ToolName, inputArgs string) entity.ToolResult {
	inv := entity.ToolInvocation{
		RequestID: uuid.NewString(),
		PageID:    page.ID(),
		ToolName:  name,
		InputArgs: inputArgs,
	}
	if !uc.acquire(inv) {
		return entity.Failuref("%s: %v", name, entity.ErrInvocationInFlight)
	}
	defer uc.release(inv)

	log := uc.logger.WithFields(map[string]any{"request": inv.RequestID, "tool": string(name)})

	binding, err := page.NavigationBinding(ctx, name)
	if err != nil {
		log.Warn("Navigation binding lookup failed", "error", err)
		binding = entity.NavigationBinding{Tool: name}
	}

	// The load wait is armed before dispatch so a fast navigation cannot be missed.
	var waiter output.LoadWaiter
	if binding.Bound {
		waiter, err = page.ArmTargetLoad(ctx, binding.Target)
		if err != nil {
			log.Warn("Could not arm load listener", "target", binding.Target, "error", err)
			binding.Bound = false
		} else {
			defer waiter.Release()
		}
	}

	log.Debug("Dispatching tool", "binding", binding.String())
	reply, err := uc.send(ctx, page, entity.BridgeRequest{
		Action:    entity.ActionExecuteTool,
		Name:      name,
		InputArgs: inputArgs,
	})

	result := uc.classify(page, binding, reply, err)
	if !result.IsDeferred() {
		return result
	}

	log.Info("Tool result deferred until navigation completes", "target", binding.Target)
	return uc.resolve(ctx, page, binding, waiter)
}

func (uc *UseCase) classify(page output.PageContext, binding entity.NavigationBinding, reply entity.BridgeReply, err error) entity.ToolResult {
	switch {
	case err != nil && errors.Is(err, output.ErrDocumentReplaced) && binding.Bound:
		return entity.Deferred()
	case err != nil:
		return uc.fail(page, err)
	case reply.Err != nil:
		if reply.Err.Code == entity.CodeCapabilityUnavailable {
			uc.broadcastError(page, replyError(reply.Err))
		}
		return entity.Failure(reply.Err.Message)
	case !reply.IsNull():
		return entity.Success(reply.Value)
	case binding.Bound:
		return entity.Deferred()
	}
	return entity.Failure(unexpectedEmptyResult)
}

func (uc *UseCase) resolve(ctx context.Context, page output.PageContext, binding entity.NavigationBinding, waiter output.LoadWaiter) entity.ToolResult {
	waitCtx := ctx
	if uc.deferredTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, uc.deferredTimeout)
		defer cancel()
	}

	if err := waiter.Wait(waitCtx); err != nil {
		err = fmt.Errorf("%w: %s: %v", entity.ErrDeferredResolution, binding.Tool, err)
		uc.logger.Error("Deferred result never arrived", "tool", string(binding.Tool), "error", err)
		return entity.Failure(err.Error())
	}

	reply, err := uc.send(ctx, page, entity.BridgeRequest{
		Action: entity.ActionGetPendingResult,
		Target: binding.Target,
	})
	switch {
	case err != nil:
		return uc.fail(page, fmt.Errorf("%w: %v", entity.ErrDeferredResolution, err))
	case reply.Err != nil:
		return entity.Failure(reply.Err.Message)
	}
	return entity.Success(reply.Value)
}

func (uc *UseCase) send(ctx context.Context, page output.PageContext, req entity.BridgeRequest) (entity.BridgeReply, error) {
	ps := uc.state(page)
	ps.send.Lock()
	defer ps.send.Unlock()
	return page.Request(ctx, req)
}

func (uc *UseCase) fail(page output.PageContext, err error) entity.ToolResult {
	uc.logger.Error("Page request failed", "page", page.ID(), "error", err)
	uc.broadcastError(page, err)
	return entity.Failure(err.Error())
}

func (uc *UseCase) acquire(inv entity.ToolInvocation) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	key := invocationKey{page: inv.PageID, tool: inv.ToolName}
	if _, busy := uc.inFlight[key]; busy {
		return false
	}
	uc.inFlight[key] = inv.RequestID
	return true
}

func (uc *UseCase) release(inv entity.ToolInvocation) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	delete(uc.inFlight, invocationKey{page: inv.PageID, tool: inv.ToolName})
}

// broadcastError reports err to subscribers. Capability errors are reported once per page.
func (uc *UseCase) broadcastError(page output.PageContext, err error) {
	if errors.Is(err, entity.ErrCapabilityUnavailable) {
		ps := uc.state(page)
		uc.mu.Lock()
		seen := ps.reported
		ps.reported = true
		uc.mu.Unlock()
		if seen {
			return
		}
	}
	uc.broadcast(page, entity.RegistryEvent{Err: err})
}

func (uc *UseCase) broadcast(page output.PageContext, ev entity.RegistryEvent) {
	ps := uc.state(page)
	uc.mu.Lock()
	fns := make([]func(entity.RegistryEvent), 0, len(ps.subs))
	for _, fn := range ps.subs {
		fns = append(fns, fn)
	}
	uc.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func replyError(e *entity.BridgeError) error {
	if e.Code == entity.CodeCapabilityUnavailable {
		return fmt.Errorf("%w: %s", entity.ErrCapabilityUnavailable, e.Message)
	}
	return e
}
