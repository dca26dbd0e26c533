package langchain

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"webmcp-agent/internal/domain/entity"
)

type call struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
}

type scriptedModel struct {
	calls   []call
	replies []*llms.ContentResponse
	err     error
}

func (m *scriptedModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	m.calls = append(m.calls, call{messages: messages, opts: opts})
	if m.err != nil {
		return nil, m.err
	}
	resp := m.replies[0]
	m.replies = m.replies[1:]
	return resp, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func textReply(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text, StopReason: "stop"}}}
}

var config = entity.GenerateConfig{
	SystemInstruction: []string{"Be helpful."},
	Tools: []entity.ToolGroup{{FunctionDeclarations: []entity.FunctionDeclaration{{
		Name:                 "greet",
		Description:          "Say hello",
		ParametersJSONSchema: json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}}}`),
	}}}},
}

func TestChatSession_ToolCallThenText(t *testing.T) {
	model := &scriptedModel{replies: []*llms.ContentResponse{
		{Choices: []*llms.ContentChoice{{
			StopReason: "tool_calls",
			ToolCalls: []llms.ToolCall{{
				ID:           "call_1",
				FunctionCall: &llms.FunctionCall{Name: "greet", Arguments: `{"name":"Ada"}`},
			}},
		}}},
		textReply("Said hello to Ada."),
	}}
	adapter := NewFromModel(model, "openai:test", nil)
	ctx := context.Background()

	chat, err := adapter.StartChat(ctx)
	require.NoError(t, err)

	first, err := chat.Send(ctx, entity.ChatMessage{Text: "Greet Ada"}, config)
	require.NoError(t, err)
	require.Len(t, first.FunctionCalls, 1)
	assert.Equal(t, "greet", first.FunctionCalls[0].Name)
	assert.JSONEq(t, `{"name":"Ada"}`, first.FunctionCalls[0].ArgsJSON())

	second, err := chat.Send(ctx, entity.ChatMessage{ToolResponses: []entity.FunctionResponse{{
		ID: "call_1", Name: "greet", Response: map[string]any{"result": "Hello, Ada"},
	}}}, config)
	require.NoError(t, err)
	assert.Equal(t, "Said hello to Ada.", second.Text)
	assert.Equal(t, "stop", second.FinishReason)

	require.Len(t, model.calls, 2)
	firstCall := model.calls[0]
	require.Len(t, firstCall.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, firstCall.messages[0].Role)
	require.Len(t, firstCall.opts.Tools, 1)
	assert.Equal(t, "greet", firstCall.opts.Tools[0].Function.Name)

	followUp := model.calls[1].messages
	require.Len(t, followUp, 4)
	assert.Equal(t, llms.ChatMessageTypeAI, followUp[2].Role)
	assert.Equal(t, llms.ChatMessageTypeTool, followUp[3].Role)
	resp, ok := followUp[3].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "call_1", resp.ToolCallID)
	assert.JSONEq(t, `{"result":"Hello, Ada"}`, resp.Content)
}

func TestChatSession_ErrorKeepsHistory(t *testing.T) {
	model := &scriptedModel{err: errors.New("connection refused")}
	adapter := NewFromModel(model, "ollama:llama3", nil)
	chat, err := adapter.StartChat(context.Background())
	require.NoError(t, err)

	_, err = chat.Send(context.Background(), entity.ChatMessage{Text: "hi"}, entity.GenerateConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, chat.(*chatSession).history)
	assert.Empty(t, model.calls[0].opts.Tools)
}

func TestGenerate(t *testing.T) {
	model := &scriptedModel{replies: []*llms.ContentResponse{textReply("Book a room")}}
	adapter := NewFromModel(model, "ollama:llama3", nil)

	text, err := adapter.Generate(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "Book a room", text)
	assert.Equal(t, "langchain:ollama:llama3", adapter.Name())
}

func TestNewAdapter_UnknownBackend(t *testing.T) {
	_, err := NewAdapter(Config{Backend: "bedrock", Model: "x"})
	assert.Error(t, err)
}

func TestNewAdapter_OpenAI(t *testing.T) {
	adapter, err := NewAdapter(Config{Backend: BackendOpenAI, Model: "gpt-4o-mini", APIKey: "k", BaseURL: "http://127.0.0.1:1/v1"})
	require.NoError(t, err)
	assert.Equal(t, "langchain:openai:gpt-4o-mini", adapter.Name())
}

func TestConvertDeclarations_FallsBackOnBadSchema(t *testing.T) {
	tools := convertDeclarations([]entity.FunctionDeclaration{{Name: "x", ParametersJSONSchema: json.RawMessage(`nope`)}})
	require.Len(t, tools, 1)
	assert.Equal(t, map[string]any{"type": "object", "properties": map[string]any{}}, tools[0].Function.Parameters)
}
