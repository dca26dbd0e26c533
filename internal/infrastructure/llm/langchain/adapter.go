package langchain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"webmcp-agent/internal/application/port/output"
	"webmcp-agent/internal/domain/entity"
)

var _ output.ModelPort = (*Adapter)(nil)

const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
)

type Config struct {
	Backend string
	Model   string
	BaseURL string
	APIKey  string
	Logger  output.LoggerPort
}

// Adapter runs conversations over any langchaingo model.
type Adapter struct {
	llm    llms.Model
	name   string
	logger output.LoggerPort
}

// NewAdapter builds the backend named in cfg.
func NewAdapter(cfg Config) (*Adapter, error) {
	var (
		llm llms.Model
		err error
	)
	switch cfg.Backend {
	case BackendOpenAI:
		opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithToken(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	case BackendOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unknown langchain backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", cfg.Backend, err)
	}
	return NewFromModel(llm, cfg.Backend+":"+cfg.Model, cfg.Logger), nil
}

func NewFromModel(llm llms.Model, name string, logger output.LoggerPort) *Adapter {
	if logger != nil {
		logger = logger.WithField("component", "langchain")
	}
	return &Adapter{llm: llm, name: name, logger: logger}
}

func (a *Adapter) Name() string {
	return "langchain:" + a.name
}

func (a *Adapter) StartChat(context.Context) (output.ChatSession, error) {
	return &chatSession{id: uuid.NewString(), adapter: a}, nil
}

func (a *Adapter) Generate(ctx context.Context, contents []string) (string, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, a.llm, strings.Join(contents, "\n"))
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return text, nil
}

type chatSession struct {
	id      string
	adapter *Adapter

	mu      sync.Mutex
	history []llms.MessageContent
}

func (s *chatSession) ID() string {
	return s.id
}

func (s *chatSession) Send(ctx context.Context, msg entity.ChatMessage, cfg entity.GenerateConfig) (*entity.ModelResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outgoing := convertMessage(msg)

	messages := make([]llms.MessageContent, 0, len(s.history)+len(outgoing)+1)
	if len(cfg.SystemInstruction) > 0 {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, strings.Join(cfg.SystemInstruction, "\n")))
	}
	messages = append(messages, s.history...)
	messages = append(messages, outgoing...)

	var opts []llms.CallOption
	if tools := convertDeclarations(cfg.Declarations()); len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}

	if s.adapter.logger != nil {
		s.adapter.logger.Debug("Generating content", "chat", s.id, "messagesCount", len(messages))
	}

	resp, err := s.adapter.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	out := &entity.ModelResponse{Text: choice.Content, FinishReason: choice.StopReason}

	reply := llms.MessageContent{Role: llms.ChatMessageTypeAI}
	if choice.Content != "" {
		reply.Parts = append(reply.Parts, llms.TextContent{Text: choice.Content})
	}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		if tc.ID == "" {
			tc.ID = "call_" + uuid.NewString()
		}
		tc.Type = "function"
		reply.Parts = append(reply.Parts, tc)
		out.FunctionCalls = append(out.FunctionCalls, entity.FunctionCall{
			ID:   tc.ID,
			Name: tc.FunctionCall.Name,
			Args: argsJSON(tc.FunctionCall.Arguments),
		})
	}

	s.history = append(s.history, outgoing...)
	s.history = append(s.history, reply)

	if raw, err := json.Marshal(choice); err == nil {
		out.Raw = raw
	}
	return out, nil
}

func convertMessage(msg entity.ChatMessage) []llms.MessageContent {
	if len(msg.ToolResponses) == 0 {
		return []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, msg.Text)}
	}

	result := make([]llms.MessageContent, 0, len(msg.ToolResponses))
	for _, r := range msg.ToolResponses {
		content, err := json.Marshal(r.Response)
		if err != nil {
			content = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
		}
		result = append(result, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{llms.ToolCallResponse{
				ToolCallID: r.ID,
				Name:       r.Name,
				Content:    string(content),
			}},
		})
	}
	return result
}

func convertDeclarations(decls []entity.FunctionDeclaration) []llms.Tool {
	result := make([]llms.Tool, 0, len(decls))
	for _, d := range decls {
		var params map[string]any
		if err := json.Unmarshal(d.ParametersJSONSchema, &params); err != nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result = append(result, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		})
	}
	return result
}

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
