package entity

import "errors"

// ErrCapabilityUnavailable means the page exposes no tool registry. Fatal for that page.
var ErrCapabilityUnavailable = errors.New("page does not expose a tool registry")

// ErrDeferredResolution means a navigation-bound result never arrived.
var ErrDeferredResolution = errors.New("deferred result was not resolved")

var (
	ErrToolNotFound       = errors.New("tool not found")
	ErrToolExecution      = errors.New("tool execution failed")
	ErrModelRequest       = errors.New("model request failed")
	ErrInvocationInFlight = errors.New("tool invocation already in flight")
	ErrConversationReset  = errors.New("conversation was reset")
	ErrLoopBusy           = errors.New("a prompt is already running")
	ErrNoModel            = errors.New("no model configured")
	ErrNoTools            = errors.New("no tools registered yet")
	ErrNoPage             = errors.New("no page open")
	ErrTraceNotFound      = errors.New("trace not found")
	ErrSuggestionDropped  = errors.New("suggestion dropped")
)
