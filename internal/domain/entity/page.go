package entity

import (
	"encoding/json"
	"fmt"
)

// BridgeAction tags a request sent from the controller side to a page context.
type BridgeAction string

const (
	ActionListTools        BridgeAction = "LIST_TOOLS"
	ActionExecuteTool      BridgeAction = "EXECUTE_TOOL"
	ActionGetPendingResult BridgeAction = "GET_PENDING_RESULT"
)

// EventToolsChanged tags registry pushes coming from the page.
const EventToolsChanged = "TOOLS_CHANGED"

type BridgeRequest struct {
	Action    BridgeAction `json:"action"`
	Name      ToolName     `json:"name,omitempty"`
	InputArgs string       `json:"inputArgs,omitempty"`
	// Target names the frame whose document holds a pending result.
	// Empty means the page's main document.
	Target string `json:"target,omitempty"`
}

// BridgeError is the {message} error object a page replies with.
type BridgeError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

const CodeCapabilityUnavailable = "capability_unavailable"

func (e *BridgeError) Error() string {
	return e.Message
}

// BridgeReply is a direct value, the deferred sentinel (a null Value) or an error.
type BridgeReply struct {
	Value json.RawMessage `json:"value,omitempty"`
	Tools []Tool          `json:"tools,omitempty"`
	URL   string          `json:"url,omitempty"`
	Err   *BridgeError    `json:"error,omitempty"`
}

// IsNull reports the "no result yet" sentinel.
func (r BridgeReply) IsNull() bool {
	return r.Err == nil && (len(r.Value) == 0 || string(r.Value) == "null")
}

// ToolsChanged is the TOOLS_CHANGED push payload.
type ToolsChanged struct {
	Tools []Tool `json:"tools"`
	URL   string `json:"url"`
	// Message is set instead of Tools when the page could not list its tools.
	Message string `json:"message,omitempty"`
}

// NavigationBinding records whether a tool submits into a navigable target.
type NavigationBinding struct {
	Tool   ToolName
	Bound  bool
	Target string
}

// MainDocument reports a binding to the page's own document rather than a named frame.
func (b NavigationBinding) MainDocument() bool {
	return b.Bound && b.Target == ""
}

func (b NavigationBinding) String() string {
	switch {
	case !b.Bound:
		return fmt.Sprintf("%s: unbound", b.Tool)
	case b.MainDocument():
		return fmt.Sprintf("%s: main document", b.Tool)
	}
	return fmt.Sprintf("%s: frame %q", b.Tool, b.Target)
}
