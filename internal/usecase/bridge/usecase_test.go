package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webmcp-agent/internal/application/port/output"
	"webmcp-agent/internal/application/service"
	"webmcp-agent/internal/domain/entity"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any)                          {}
func (nopLogger) Info(string, ...any)                           {}
func (nopLogger) Warn(string, ...any)                           {}
func (nopLogger) Error(string, ...any)                          {}
func (l nopLogger) WithField(string, any) output.LoggerPort     { return l }
func (l nopLogger) WithFields(map[string]any) output.LoggerPort { return l }
func (nopLogger) Close() error                                  { return nil }

type fakeWaiter struct {
	fired    chan struct{}
	released int
}

func (w *fakeWaiter) Wait(ctx context.Context) error {
	select {
	case <-w.fired:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *fakeWaiter) Release() { w.released++ }

type fakePage struct {
	mu       sync.Mutex
	bindings map[entity.ToolName]entity.NavigationBinding
	replies  map[entity.BridgeAction][]fakeReply
	requests []entity.BridgeRequest
	waiters  []*fakeWaiter
	armed    []string
	pushFn   func(entity.ToolsChanged)

	// onExecute runs after an EXECUTE_TOOL reply is chosen, standing in for navigation.
	onExecute func(p *fakePage)
}

type fakeReply struct {
	reply entity.BridgeReply
	err   error
}

func newFakePage() *fakePage {
	return &fakePage{
		bindings: make(map[entity.ToolName]entity.NavigationBinding),
		replies:  make(map[entity.BridgeAction][]fakeReply),
	}
}

func (p *fakePage) ID() string  { return "tab-1" }
func (p *fakePage) URL() string { return "https://shop.test/" }

func (p *fakePage) queue(action entity.BridgeAction, reply entity.BridgeReply, err error) {
	p.replies[action] = append(p.replies[action], fakeReply{reply: reply, err: err})
}

func (p *fakePage) Request(_ context.Context, req entity.BridgeRequest) (entity.BridgeReply, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	queued := p.replies[req.Action]
	var next fakeReply
	if len(queued) > 0 {
		next = queued[0]
		p.replies[req.Action] = queued[1:]
	}
	hook := p.onExecute
	p.mu.Unlock()

	if req.Action == entity.ActionExecuteTool && hook != nil {
		hook(p)
	}
	return next.reply, next.err
}

func (p *fakePage) NavigationBinding(_ context.Context, tool entity.ToolName) (entity.NavigationBinding, error) {
	if b, ok := p.bindings[tool]; ok {
		return b, nil
	}
	return entity.NavigationBinding{Tool: tool}, nil
}

func (p *fakePage) ArmTargetLoad(_ context.Context, target string) (output.LoadWaiter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := &fakeWaiter{fired: make(chan struct{})}
	p.waiters = append(p.waiters, w)
	p.armed = append(p.armed, target)
	return w, nil
}

func (p *fakePage) OnToolsChanged(fn func(entity.ToolsChanged)) func() {
	p.pushFn = fn
	return func() { p.pushFn = nil }
}

func (p *fakePage) fireLoad() {
	for _, w := range p.waiters {
		close(w.fired)
	}
}

func (p *fakePage) count(action entity.BridgeAction) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, r := range p.requests {
		if r.Action == action {
			n++
		}
	}
	return n
}

func newBridge(timeout time.Duration) *UseCase {
	return New(service.NewToolRegistry(), nopLogger{}, timeout)
}

func TestExecuteTool_DirectValue(t *testing.T) {
	page := newFakePage()
	page.queue(entity.ActionExecuteTool, entity.BridgeReply{Value: json.RawMessage(`"3 results"`)}, nil)

	res := newBridge(0).ExecuteTool(context.Background(), page, "search", `{"q":"shoes"}`)

	require.True(t, res.IsSuccess())
	assert.Equal(t, "3 results", res.Text())
	require.Len(t, page.requests, 1)
	assert.Equal(t, entity.ToolName("search"), page.requests[0].Name)
	assert.Equal(t, `{"q":"shoes"}`, page.requests[0].InputArgs)
	assert.Empty(t, page.armed, "unbound tools never arm a load listener")
}

func TestExecuteTool_IndependentCalls(t *testing.T) {
	page := newFakePage()
	page.queue(entity.ActionExecuteTool, entity.BridgeReply{Value: json.RawMessage(`{"n":1}`)}, nil)
	page.queue(entity.ActionExecuteTool, entity.BridgeReply{Value: json.RawMessage(`{"n":1}`)}, nil)
	b := newBridge(0)

	first := b.ExecuteTool(context.Background(), page, "count", `{}`)
	second := b.ExecuteTool(context.Background(), page, "count", `{}`)

	assert.True(t, first.IsSuccess())
	assert.True(t, second.IsSuccess())
	assert.Equal(t, 2, page.count(entity.ActionExecuteTool))
}

func TestExecuteTool_NullFromUnboundToolFails(t *testing.T) {
	page := newFakePage()
	page.queue(entity.ActionExecuteTool, entity.BridgeReply{Value: json.RawMessage(`null`)}, nil)

	res := newBridge(0).ExecuteTool(context.Background(), page, "search", `{}`)

	require.True(t, res.IsFailure())
	assert.Equal(t, "unexpected empty result", res.Message)
	assert.Zero(t, page.count(entity.ActionGetPendingResult))
}

func TestExecuteTool_DeferredResolvesAfterLoad(t *testing.T) {
	page := newFakePage()
	page.bindings["book"] = entity.NavigationBinding{Tool: "book", Bound: true, Target: "results"}
	page.queue(entity.ActionExecuteTool, entity.BridgeReply{}, nil)
	page.queue(entity.ActionGetPendingResult, entity.BridgeReply{Value: json.RawMessage(`"booked"`)}, nil)
	page.onExecute = func(p *fakePage) {
		require.Len(t, p.waiters, 1, "listener must be armed before dispatch")
		go p.fireLoad()
	}

	res := newBridge(0).ExecuteTool(context.Background(), page, "book", `{"room":2}`)

	require.True(t, res.IsSuccess())
	assert.Equal(t, "booked", res.Text())
	assert.Equal(t, []string{"results"}, page.armed)
	assert.Equal(t, 1, page.count(entity.ActionGetPendingResult))
	assert.Equal(t, "results", page.requests[1].Target)
	assert.Equal(t, 1, page.waiters[0].released)
}

func TestExecuteTool_DocumentReplacedIsDeferredForMainDocument(t *testing.T) {
	page := newFakePage()
	page.bindings["submit"] = entity.NavigationBinding{Tool: "submit", Bound: true}
	page.queue(entity.ActionExecuteTool, entity.BridgeReply{}, output.ErrDocumentReplaced)
	page.queue(entity.ActionGetPendingResult, entity.BridgeReply{Value: json.RawMessage(`{"ok":true}`)}, nil)
	page.onExecute = func(p *fakePage) { go p.fireLoad() }

	res := newBridge(0).ExecuteTool(context.Background(), page, "submit", `{}`)

	require.True(t, res.IsSuccess())
	assert.JSONEq(t, `{"ok":true}`, string(res.Value))
	assert.Equal(t, []string{""}, page.armed)
	assert.Equal(t, 1, page.count(entity.ActionGetPendingResult))
}

func TestExecuteTool_DeferredTimeout(t *testing.T) {
	page := newFakePage()
	page.bindings["book"] = entity.NavigationBinding{Tool: "book", Bound: true, Target: "results"}
	page.queue(entity.ActionExecuteTool, entity.BridgeReply{}, nil)

	res := newBridge(20*time.Millisecond).ExecuteTool(context.Background(), page, "book", `{}`)

	require.True(t, res.IsFailure())
	assert.Contains(t, res.Message, entity.ErrDeferredResolution.Error())
	assert.Zero(t, page.count(entity.ActionGetPendingResult))
	assert.Equal(t, 1, page.waiters[0].released)
}

func TestExecuteTool_PageErrorBecomesFailureAndIsBroadcast(t *testing.T) {
	page := newFakePage()
	page.queue(entity.ActionExecuteTool, entity.BridgeReply{}, errors.New("capability API missing"))
	b := newBridge(0)

	var events []entity.RegistryEvent
	unsubscribe := b.Subscribe(page, func(ev entity.RegistryEvent) { events = append(events, ev) })
	defer unsubscribe()

	res := b.ExecuteTool(context.Background(), page, "search", `{}`)

	require.True(t, res.IsFailure())
	assert.Equal(t, "capability API missing", res.Message)
	require.Len(t, events, 1)
	assert.EqualError(t, events[0].Err, "capability API missing")
}

func TestExecuteTool_ToolErrorReply(t *testing.T) {
	page := newFakePage()
	page.queue(entity.ActionExecuteTool, entity.BridgeReply{Err: &entity.BridgeError{Message: "Tool not found: nope"}}, nil)

	res := newBridge(0).ExecuteTool(context.Background(), page, "nope", `{}`)

	require.True(t, res.IsFailure())
	assert.Equal(t, "Tool not found: nope", res.Message)
}

func TestExecuteTool_RejectsConcurrentInvocationOfSameTool(t *testing.T) {
	page := newFakePage()
	page.bindings["book"] = entity.NavigationBinding{Tool: "book", Bound: true, Target: "results"}
	page.queue(entity.ActionExecuteTool, entity.BridgeReply{}, nil)
	page.queue(entity.ActionGetPendingResult, entity.BridgeReply{Value: json.RawMessage(`1`)}, nil)
	b := newBridge(0)

	dispatched := make(chan struct{})
	page.onExecute = func(*fakePage) { close(dispatched) }

	done := make(chan entity.ToolResult)
	go func() { done <- b.ExecuteTool(context.Background(), page, "book", `{}`) }()
	<-dispatched

	second := b.ExecuteTool(context.Background(), page, "book", `{}`)
	require.True(t, second.IsFailure())
	assert.Contains(t, second.Message, entity.ErrInvocationInFlight.Error())

	page.fireLoad()
	first := <-done
	assert.True(t, first.IsSuccess())
}

func TestListTools_PublishesVersionedSnapshots(t *testing.T) {
	page := newFakePage()
	tools := []entity.Tool{{Name: "search", Description: "Search the shop"}}
	page.queue(entity.ActionListTools, entity.BridgeReply{Tools: tools, URL: "https://shop.test/a"}, nil)
	page.queue(entity.ActionListTools, entity.BridgeReply{Tools: tools}, nil)
	b := newBridge(0)

	first, err := b.ListTools(context.Background(), page)
	require.NoError(t, err)
	second, err := b.ListTools(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, "https://shop.test/a", first.URL)
	assert.Equal(t, "https://shop.test/", second.URL)
	assert.Greater(t, second.Version, first.Version)
	assert.True(t, first.Equal(second))
}

func TestListTools_CapabilityUnavailableReportedOnce(t *testing.T) {
	page := newFakePage()
	unavailable := entity.BridgeReply{Err: &entity.BridgeError{
		Code:    entity.CodeCapabilityUnavailable,
		Message: "navigator.modelContextTesting is not available",
	}}
	page.queue(entity.ActionListTools, unavailable, nil)
	page.queue(entity.ActionListTools, unavailable, nil)
	b := newBridge(0)

	var events []entity.RegistryEvent
	b.Subscribe(page, func(ev entity.RegistryEvent) { events = append(events, ev) })

	_, err := b.ListTools(context.Background(), page)
	require.ErrorIs(t, err, entity.ErrCapabilityUnavailable)
	_, err = b.ListTools(context.Background(), page)
	require.ErrorIs(t, err, entity.ErrCapabilityUnavailable)

	assert.Len(t, events, 1)
}

func TestSubscribe_PushesSnapshotsUntilLastUnsubscribe(t *testing.T) {
	page := newFakePage()
	b := newBridge(0)

	var got []uint64
	unsubA := b.Subscribe(page, func(ev entity.RegistryEvent) {
		if ev.Snapshot != nil {
			got = append(got, ev.Snapshot.Version)
		}
	})
	unsubB := b.Subscribe(page, func(entity.RegistryEvent) {})
	require.NotNil(t, page.pushFn)

	page.pushFn(entity.ToolsChanged{Tools: []entity.Tool{{Name: "a"}}})
	page.pushFn(entity.ToolsChanged{Tools: []entity.Tool{{Name: "a"}, {Name: "b"}}})
	assert.Equal(t, []uint64{1, 2}, got)

	unsubA()
	assert.NotNil(t, page.pushFn)
	unsubB()
	assert.Nil(t, page.pushFn)
}
