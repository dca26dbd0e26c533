package output

import (
	"context"
	"errors"

	"webmcp-agent/internal/domain/entity"
)

// ErrDocumentReplaced is returned by a PageContext when the document evaluating
// a request was torn down by a navigation before it could reply.
var ErrDocumentReplaced = errors.New("document replaced by navigation")

// PageContext is one isolated execution context (a browser tab) speaking the
// bridge protocol. Implementations deliver requests; they do not interpret them.
type PageContext interface {
	ID() string
	URL() string

	// Request sends one LIST_TOOLS, EXECUTE_TOOL or GET_PENDING_RESULT message.
	Request(ctx context.Context, req entity.BridgeRequest) (entity.BridgeReply, error)

	// NavigationBinding reports whether the named tool submits into a navigable target.
	NavigationBinding(ctx context.Context, tool entity.ToolName) (entity.NavigationBinding, error)

	// ArmTargetLoad arms a one-shot "finished loading" wait on target ("" is the
	// main document). It must be armed before the action that triggers navigation.
	ArmTargetLoad(ctx context.Context, target string) (LoadWaiter, error)

	// OnToolsChanged registers a push handler for TOOLS_CHANGED messages.
	OnToolsChanged(fn func(entity.ToolsChanged)) (unsubscribe func())
}

// LoadWaiter fires at most once. Release must always be called.
type LoadWaiter interface {
	Wait(ctx context.Context) error
	Release()
}

// BrowserPort opens and tracks page contexts.
type BrowserPort interface {
	Open(ctx context.Context, url string) (PageContext, error)
	Close()
}
