package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"webmcp-agent/internal/application/port/output"
	"webmcp-agent/internal/domain/entity"
	"webmcp-agent/internal/infrastructure/logger"
)

var now = time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)

type call struct {
	name entity.ToolName
	args string
}

type fakeBridge struct {
	snap  entity.ToolRegistrySnapshot
	err   error
	subs  []func(entity.RegistryEvent)
	calls []call
	// onList runs while a listing is in progress.
	onList func()
}

func (f *fakeBridge) ListTools(context.Context, output.PageContext) (entity.ToolRegistrySnapshot, error) {
	if f.onList != nil {
		f.onList()
	}
	return f.snap, f.err
}

func (f *fakeBridge) Subscribe(_ output.PageContext, fn func(entity.RegistryEvent)) func() {
	f.subs = append(f.subs, fn)
	return func() { f.subs = nil }
}

func (f *fakeBridge) ExecuteTool(_ context.Context, _ output.PageContext, name entity.ToolName, args string) entity.ToolResult {
	f.calls = append(f.calls, call{name: name, args: args})
	if name == "broken" {
		return entity.Failure("page raised an error")
	}
	return entity.SuccessText("Hello, Ada")
}

func snapshot(version uint64, tools ...entity.Tool) entity.ToolRegistrySnapshot {
	return entity.NewSnapshot("p1", "https://example.test", version, tools, now)
}

func newTestServer(bridge *fakeBridge) *Server {
	return NewServer(bridge, nil, logger.NewNop(), "webmcp-agent", "test")
}

func rpc(t *testing.T, s *Server, message string) gjson.Result {
	t.Helper()
	resp := s.HandleMessage(context.Background(), json.RawMessage(message))
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	return gjson.ParseBytes(data)
}

func initialize(t *testing.T, s *Server) {
	rpc(t, s, `{"jsonrpc":"2.0","id":0,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`)
}

func TestAttach_RegistersPageTools(t *testing.T) {
	bridge := &fakeBridge{snap: snapshot(1,
		entity.Tool{Name: "greet", Description: "Say hello", InputSchema: `{"type":"object","properties":{"name":{"type":"string"}}}`},
		entity.Tool{Name: "noSchema", Description: "No schema"},
	)}
	s := newTestServer(bridge)

	detach, err := s.Attach(context.Background())
	require.NoError(t, err)
	defer detach()

	assert.Equal(t, []string{"greet", "noSchema"}, s.Names())

	initialize(t, s)
	res := rpc(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	tools := res.Get("result.tools")
	require.Equal(t, int64(2), tools.Get("#").Int())

	byName := map[string]gjson.Result{}
	for _, tool := range tools.Array() {
		byName[tool.Get("name").String()] = tool
	}
	assert.Equal(t, "string", byName["greet"].Get("inputSchema.properties.name.type").String())
	assert.Equal(t, "object", byName["noSchema"].Get("inputSchema.type").String())
}

func TestAttach_ListError(t *testing.T) {
	bridge := &fakeBridge{err: entity.ErrCapabilityUnavailable}
	s := newTestServer(bridge)

	_, err := s.Attach(context.Background())
	assert.True(t, errors.Is(err, entity.ErrCapabilityUnavailable))
	assert.Empty(t, bridge.subs)
}

func TestAttach_ChangeDuringFirstListingIsKept(t *testing.T) {
	bridge := &fakeBridge{snap: snapshot(1, entity.Tool{Name: "greet"})}
	bridge.onList = func() {
		require.Len(t, bridge.subs, 1)
		next := snapshot(2, entity.Tool{Name: "farewell"})
		bridge.subs[0](entity.RegistryEvent{Snapshot: &next})
	}
	s := newTestServer(bridge)

	detach, err := s.Attach(context.Background())
	require.NoError(t, err)
	defer detach()

	assert.Equal(t, []string{"farewell"}, s.Names())
}

func TestRegistryChangesReplaceTools(t *testing.T) {
	bridge := &fakeBridge{snap: snapshot(1, entity.Tool{Name: "greet"})}
	s := newTestServer(bridge)
	_, err := s.Attach(context.Background())
	require.NoError(t, err)
	require.Len(t, bridge.subs, 1)

	next := snapshot(2, entity.Tool{Name: "farewell"})
	bridge.subs[0](entity.RegistryEvent{Snapshot: &next})
	assert.Equal(t, []string{"farewell"}, s.Names())

	stale := snapshot(1, entity.Tool{Name: "greet"})
	bridge.subs[0](entity.RegistryEvent{Snapshot: &stale})
	assert.Equal(t, []string{"farewell"}, s.Names())

	bridge.subs[0](entity.RegistryEvent{Err: entity.ErrCapabilityUnavailable})
	assert.Equal(t, []string{"farewell"}, s.Names())
}

func TestToolCallGoesThroughBridge(t *testing.T) {
	bridge := &fakeBridge{}
	s := newTestServer(bridge)
	s.Sync(snapshot(1, entity.Tool{Name: "greet"}, entity.Tool{Name: "broken"}))
	initialize(t, s)

	res := rpc(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"greet","arguments":{"name":"Ada"}}}`)
	assert.Equal(t, "Hello, Ada", res.Get("result.content.0.text").String())
	assert.False(t, res.Get("result.isError").Bool())

	require.Len(t, bridge.calls, 1)
	assert.Equal(t, entity.ToolName("greet"), bridge.calls[0].name)
	assert.JSONEq(t, `{"name":"Ada"}`, bridge.calls[0].args)

	res = rpc(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"broken"}}`)
	assert.True(t, res.Get("result.isError").Bool())
	assert.Equal(t, "page raised an error", res.Get("result.content.0.text").String())
	assert.Equal(t, "{}", bridge.calls[1].args)
}
