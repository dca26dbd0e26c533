package entity

import "encoding/json"

type TurnKind string

const (
	TurnUserMessage       TurnKind = "user_message"
	TurnToolCallBatch     TurnKind = "tool_call_batch"
	TurnToolResponseBatch TurnKind = "tool_response_batch"
	TurnModelText         TurnKind = "model_text"
)

// FunctionCall is one tool call requested by the model.
type FunctionCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// ArgsJSON returns the call arguments serialized as a JSON object string.
func (c FunctionCall) ArgsJSON() string {
	if len(c.Args) == 0 {
		return "{}"
	}
	return string(c.Args)
}

// FunctionResponse answers one FunctionCall with either a result or an error.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ChatMessage is what the controller sends in one model turn: either the
// operator's text or a batch of tool responses.
type ChatMessage struct {
	Text          string             `json:"text,omitempty"`
	ToolResponses []FunctionResponse `json:"toolResponses,omitempty"`
}

func (m ChatMessage) Kind() TurnKind {
	if len(m.ToolResponses) > 0 {
		return TurnToolResponseBatch
	}
	return TurnUserMessage
}

// GenerateConfig is rebuilt before every model turn.
type GenerateConfig struct {
	SystemInstruction []string    `json:"systemInstruction"`
	Tools             []ToolGroup `json:"tools"`
}

// Declarations flattens every tool group.
func (c GenerateConfig) Declarations() []FunctionDeclaration {
	var out []FunctionDeclaration
	for _, g := range c.Tools {
		out = append(out, g.FunctionDeclarations...)
	}
	return out
}

// ModelResponse is one model reply. Raw keeps the provider payload for the trace.
type ModelResponse struct {
	Text          string          `json:"text"`
	FunctionCalls []FunctionCall  `json:"functionCalls,omitempty"`
	FinishReason  string          `json:"finishReason,omitempty"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

func (r ModelResponse) Kind() TurnKind {
	if len(r.FunctionCalls) > 0 {
		return TurnToolCallBatch
	}
	return TurnModelText
}

// SendParams is the outbound payload of one model turn.
type SendParams struct {
	Message ChatMessage    `json:"message"`
	Config  GenerateConfig `json:"config"`
}
