package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"webmcp-agent/internal/application/port/output"
	"webmcp-agent/internal/domain/entity"
)

var _ output.ModelPort = (*OpenRouterAdapter)(nil)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

type OpenRouterAdapter struct {
	client *openai.Client
	model  string
	logger output.LoggerPort
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  output.LoggerPort
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: DefaultBaseURL,
	}
}

type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil {
		bodyBytes, _ = io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}

	t.logger.Debug("HTTP Request",
		"method", req.Method,
		"url", req.URL.String(),
		"bytes", len(bodyBytes),
	)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Warn("HTTP Request failed", "url", req.URL.String(), "error", err)
		return nil, err
	}

	t.logger.Debug("HTTP Response",
		"status", resp.Status,
		"statusCode", resp.StatusCode,
	)
	return resp, nil
}

func NewOpenRouterAdapter(cfg Config) *OpenRouterAdapter {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	logger := cfg.Logger
	if logger != nil {
		logger = logger.WithField("component", "openrouter")
		config.HTTPClient = &http.Client{
			Transport: &loggingTransport{
				base:   http.DefaultTransport,
				logger: logger,
			},
		}
	}

	return &OpenRouterAdapter{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		logger: logger,
	}
}

func (a *OpenRouterAdapter) Name() string {
	return "openrouter:" + a.model
}

// StartChat opens a conversation whose history lives in the returned session.
func (a *OpenRouterAdapter) StartChat(context.Context) (output.ChatSession, error) {
	return &chatSession{id: uuid.NewString(), adapter: a}, nil
}

// Generate sends contents as a single user message without history or tools.
func (a *OpenRouterAdapter) Generate(ctx context.Context, contents []string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: strings.Join(contents, "\n"),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

type chatSession struct {
	id      string
	adapter *OpenRouterAdapter

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
}

func (s *chatSession) ID() string {
	return s.id
}

// Send appends msg to the history and requests the next model turn. The
// history only grows when the provider answered.
func (s *chatSession) Send(ctx context.Context, msg entity.ChatMessage, cfg entity.GenerateConfig) (*entity.ModelResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outgoing := convertMessage(msg)

	messages := make([]openai.ChatCompletionMessage, 0, len(s.history)+len(outgoing)+1)
	if len(cfg.SystemInstruction) > 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: strings.Join(cfg.SystemInstruction, "\n"),
		})
	}
	messages = append(messages, s.history...)
	messages = append(messages, outgoing...)

	req := openai.ChatCompletionRequest{
		Model:    s.adapter.model,
		Messages: messages,
		Tools:    convertDeclarations(cfg.Declarations()),
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}

	if s.adapter.logger != nil {
		s.adapter.logger.Debug("Creating chat completion",
			"chat", s.id,
			"model", s.adapter.model,
			"messagesCount", len(messages),
			"toolsCount", len(req.Tools))
	}

	resp, err := s.adapter.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	reply := choice.Message
	for i := range reply.ToolCalls {
		if reply.ToolCalls[i].ID == "" {
			reply.ToolCalls[i].ID = "call_" + uuid.NewString()
		}
		reply.ToolCalls[i].Type = openai.ToolTypeFunction
	}

	s.history = append(s.history, outgoing...)
	s.history = append(s.history, reply)

	out := convertResponse(reply, string(choice.FinishReason))
	if raw, err := json.Marshal(resp); err == nil {
		out.Raw = raw
	}
	return out, nil
}

func convertMessage(msg entity.ChatMessage) []openai.ChatCompletionMessage {
	if len(msg.ToolResponses) == 0 {
		return []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: msg.Text,
		}}
	}

	result := make([]openai.ChatCompletionMessage, 0, len(msg.ToolResponses))
	for _, r := range msg.ToolResponses {
		content, err := json.Marshal(r.Response)
		if err != nil {
			content = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
		}
		result = append(result, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Name:       r.Name,
			ToolCallID: r.ID,
			Content:    string(content),
		})
	}
	return result
}

func convertDeclarations(decls []entity.FunctionDeclaration) []openai.Tool {
	result := make([]openai.Tool, 0, len(decls))
	for _, d := range decls {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.ParametersJSONSchema,
			},
		})
	}
	return result
}

func convertResponse(msg openai.ChatCompletionMessage, finishReason string) *entity.ModelResponse {
	result := &entity.ModelResponse{
		Text:         msg.Content,
		FinishReason: finishReason,
	}

	for _, tc := range msg.ToolCalls {
		result.FunctionCalls = append(result.FunctionCalls, entity.FunctionCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: argsJSON(tc.Function.Arguments),
		})
	}
	return result
}

// argsJSON keeps well-formed argument objects as-is. Anything else is passed
// on as a JSON string so the page reports the problem.
func argsJSON(arguments string) json.RawMessage {
	arguments = strings.TrimSpace(arguments)
	if arguments == "" {
		return nil
	}
	if json.Valid([]byte(arguments)) {
		return json.RawMessage(arguments)
	}
	raw, _ := json.Marshal(arguments)
	return raw
}
