package entity

import (
	"encoding/json"
	"fmt"
)

type ResultKind string

const (
	ResultSuccess  ResultKind = "success"
	ResultDeferred ResultKind = "deferred"
	ResultFailure  ResultKind = "failure"
)

// ToolResult is the outcome of one tool invocation. A Deferred result is not
// terminal: the bridge resolves it to Success or Failure once the replacement
// document has loaded.
type ToolResult struct {
	Kind    ResultKind      `json:"kind"`
	Value   json.RawMessage `json:"value,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Success wraps a raw JSON value returned by the page. A nil value is a legitimate null.
func Success(value json.RawMessage) ToolResult {
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	return ToolResult{Kind: ResultSuccess, Value: value}
}

// SuccessText wraps a plain string value.
func SuccessText(text string) ToolResult {
	raw, _ := json.Marshal(text)
	return ToolResult{Kind: ResultSuccess, Value: raw}
}

func Deferred() ToolResult {
	return ToolResult{Kind: ResultDeferred}
}

func Failure(message string) ToolResult {
	return ToolResult{Kind: ResultFailure, Message: message}
}

func Failuref(format string, args ...any) ToolResult {
	return Failure(fmt.Sprintf(format, args...))
}

func (r ToolResult) IsSuccess() bool  { return r.Kind == ResultSuccess }
func (r ToolResult) IsDeferred() bool { return r.Kind == ResultDeferred }
func (r ToolResult) IsFailure() bool  { return r.Kind == ResultFailure }

// Text renders the value the way an operator reads it: JSON strings are
// unquoted, anything else is shown as raw JSON.
func (r ToolResult) Text() string {
	switch r.Kind {
	case ResultFailure:
		return r.Message
	case ResultDeferred:
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Value, &s); err == nil {
		return s
	}
	return string(r.Value)
}

// Response builds the payload fed back to the model: {result: …} or {error: …}.
func (r ToolResult) Response() map[string]any {
	if r.IsFailure() {
		return map[string]any{"error": r.Message}
	}
	var v any
	if err := json.Unmarshal(r.Value, &v); err != nil {
		return map[string]any{"result": string(r.Value)}
	}
	return map[string]any{"result": v}
}
