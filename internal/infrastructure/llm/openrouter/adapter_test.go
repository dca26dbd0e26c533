package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webmcp-agent/internal/domain/entity"
)

type fakeProvider struct {
	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
	replies  []string
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	var reply string
	if len(f.replies) > 0 {
		reply, f.replies = f.replies[0], f.replies[1:]
	}
	f.mu.Unlock()

	if reply == "" {
		http.Error(w, `{"error":{"message":"no reply scripted"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, reply)
}

func completion(message string, finish string) string {
	return fmt.Sprintf(`{"id":"gen-1","object":"chat.completion","model":"test","choices":[{"index":0,"message":%s,"finish_reason":%q}]}`, message, finish)
}

func newTestAdapter(t *testing.T, replies ...string) (*OpenRouterAdapter, *fakeProvider) {
	t.Helper()
	provider := &fakeProvider{replies: replies}
	srv := httptest.NewServer(provider)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig("test-key", "test-model")
	cfg.BaseURL = srv.URL
	return NewOpenRouterAdapter(cfg), provider
}

var searchConfig = entity.GenerateConfig{
	SystemInstruction: []string{"You are an assistant.", "Today is Saturday."},
	Tools: []entity.ToolGroup{{FunctionDeclarations: []entity.FunctionDeclaration{{
		Name:                 "searchFlights",
		Description:          "Search flights",
		ParametersJSONSchema: json.RawMessage(`{"type":"object","properties":{"to":{"type":"string"}}}`),
	}}}},
}

func TestChatSession_ToolCallRoundTrip(t *testing.T) {
	adapter, provider := newTestAdapter(t,
		completion(`{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"searchFlights","arguments":"{\"to\":\"LIS\"}"}}]}`, "tool_calls"),
		completion(`{"role":"assistant","content":"Found 3 flights."}`, "stop"),
	)
	ctx := context.Background()

	chat, err := adapter.StartChat(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, chat.ID())

	first, err := chat.Send(ctx, entity.ChatMessage{Text: "Flights to Lisbon"}, searchConfig)
	require.NoError(t, err)
	require.Len(t, first.FunctionCalls, 1)
	assert.Equal(t, "call_1", first.FunctionCalls[0].ID)
	assert.Equal(t, "searchFlights", first.FunctionCalls[0].Name)
	assert.JSONEq(t, `{"to":"LIS"}`, first.FunctionCalls[0].ArgsJSON())
	assert.Equal(t, "tool_calls", first.FinishReason)
	assert.NotEmpty(t, first.Raw)

	second, err := chat.Send(ctx, entity.ChatMessage{ToolResponses: []entity.FunctionResponse{{
		ID:       "call_1",
		Name:     "searchFlights",
		Response: map[string]any{"result": "3 flights"},
	}}}, searchConfig)
	require.NoError(t, err)
	assert.Equal(t, "Found 3 flights.", second.Text)
	assert.Empty(t, second.FunctionCalls)

	require.Len(t, provider.requests, 2)

	req := provider.requests[0]
	assert.Equal(t, "test-model", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "You are an assistant.\nToday is Saturday.", req.Messages[0].Content)
	assert.Equal(t, "Flights to Lisbon", req.Messages[1].Content)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "searchFlights", req.Tools[0].Function.Name)

	followUp := provider.requests[1]
	require.Len(t, followUp.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleAssistant, followUp.Messages[2].Role)
	require.Len(t, followUp.Messages[2].ToolCalls, 1)
	tool := followUp.Messages[3]
	assert.Equal(t, openai.ChatMessageRoleTool, tool.Role)
	assert.Equal(t, "call_1", tool.ToolCallID)
	assert.JSONEq(t, `{"result":"3 flights"}`, tool.Content)
}

func TestChatSession_FailedSendLeavesHistoryUntouched(t *testing.T) {
	adapter, provider := newTestAdapter(t, "", completion(`{"role":"assistant","content":"ok"}`, "stop"))
	ctx := context.Background()
	chat, err := adapter.StartChat(ctx)
	require.NoError(t, err)

	_, err = chat.Send(ctx, entity.ChatMessage{Text: "first"}, entity.GenerateConfig{})
	require.Error(t, err)

	resp, err := chat.Send(ctx, entity.ChatMessage{Text: "second"}, entity.GenerateConfig{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)

	require.Len(t, provider.requests, 2)
	require.Len(t, provider.requests[1].Messages, 1)
	assert.Equal(t, "second", provider.requests[1].Messages[0].Content)
	assert.Empty(t, provider.requests[1].Tools)
}

func TestChatSession_MissingCallIDIsAssigned(t *testing.T) {
	adapter, _ := newTestAdapter(t,
		completion(`{"role":"assistant","tool_calls":[{"type":"function","function":{"name":"a","arguments":""}}]}`, "tool_calls"),
	)
	chat, err := adapter.StartChat(context.Background())
	require.NoError(t, err)

	resp, err := chat.Send(context.Background(), entity.ChatMessage{Text: "go"}, searchConfig)
	require.NoError(t, err)
	require.Len(t, resp.FunctionCalls, 1)
	assert.NotEmpty(t, resp.FunctionCalls[0].ID)
	assert.Equal(t, "{}", resp.FunctionCalls[0].ArgsJSON())
}

func TestGenerate(t *testing.T) {
	adapter, provider := newTestAdapter(t, completion(`{"role":"assistant","content":"Find flights to Lisbon"}`, "stop"))

	text, err := adapter.Generate(context.Background(), []string{"line one", "line two"})
	require.NoError(t, err)
	assert.Equal(t, "Find flights to Lisbon", text)

	require.Len(t, provider.requests, 1)
	require.Len(t, provider.requests[0].Messages, 1)
	assert.Equal(t, "line one\nline two", provider.requests[0].Messages[0].Content)
	assert.Empty(t, provider.requests[0].Tools)
}

func TestArgsJSON(t *testing.T) {
	assert.Nil(t, argsJSON("  "))
	assert.JSONEq(t, `{"a":1}`, string(argsJSON(`{"a":1}`)))
	assert.JSONEq(t, `"{broken"`, string(argsJSON(`{broken`)))
}

func TestName(t *testing.T) {
	adapter := NewOpenRouterAdapter(DefaultConfig("k", "gemini-2.5-flash"))
	assert.Equal(t, "openrouter:gemini-2.5-flash", adapter.Name())
}
