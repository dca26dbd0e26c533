package rod

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"webmcp-agent/internal/application/port/output"
	"webmcp-agent/internal/domain/entity"
	"webmcp-agent/internal/infrastructure/browser/htmlscan"
)

var _ output.PageContext = (*PageAdapter)(nil)

// CDP messages seen when the document evaluating a call is torn down.
var replacedMarkers = []string{
	"Execution context was destroyed",
	"Cannot find context with specified id",
	"Inspected target navigated or closed",
}

// PageAdapter carries bridge messages to one tab through the in-page script.
type PageAdapter struct {
	page    *rod.Page
	timeout time.Duration
	logger  output.LoggerPort

	mu       sync.Mutex
	handlers map[int]func(entity.ToolsChanged)
	nextID   int

	cleanup []func() error
}

func newPageAdapter(page *rod.Page, timeout time.Duration, logger output.LoggerPort) *PageAdapter {
	return &PageAdapter{
		page:     page,
		timeout:  timeout,
		logger:   logger.WithField("page", string(page.TargetID)),
		handlers: make(map[int]func(entity.ToolsChanged)),
	}
}

// install exposes the push binding and registers the bridge script for every
// future document of the tab.
func (p *PageAdapter) install() error {
	stop, err := p.page.Expose(notifyBinding, p.onNotify)
	if err != nil {
		return fmt.Errorf("expose %s: %w", notifyBinding, err)
	}
	p.cleanup = append(p.cleanup, stop)

	remove, err := p.page.EvalOnNewDocument(bridgeScript)
	if err != nil {
		return fmt.Errorf("install bridge script: %w", err)
	}
	p.cleanup = append(p.cleanup, remove)
	return nil
}

func (p *PageAdapter) navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx).Timeout(p.timeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	return nil
}

func (p *PageAdapter) ID() string {
	return string(p.page.TargetID)
}

func (p *PageAdapter) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *PageAdapter) Request(ctx context.Context, req entity.BridgeRequest) (entity.BridgeReply, error) {
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           requestJS,
		JSArgs:       []interface{}{req},
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		if isDocumentReplaced(err) {
			return entity.BridgeReply{}, fmt.Errorf("%w: %v", output.ErrDocumentReplaced, err)
		}
		return entity.BridgeReply{}, fmt.Errorf("%s: %w", req.Action, err)
	}

	var reply entity.BridgeReply
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), &reply); err != nil {
		return entity.BridgeReply{}, fmt.Errorf("decode %s reply: %w", req.Action, err)
	}
	return reply, nil
}

func (p *PageAdapter) NavigationBinding(ctx context.Context, tool entity.ToolName) (entity.NavigationBinding, error) {
	html, err := p.page.Context(ctx).Timeout(p.timeout).HTML()
	if err != nil {
		return entity.NavigationBinding{Tool: tool}, fmt.Errorf("read document: %w", err)
	}
	return htmlscan.FindBinding(html, tool)
}

// ArmTargetLoad subscribes to frame events right away so a load that finishes
// before Wait is called is still seen.
func (p *PageAdapter) ArmTargetLoad(ctx context.Context, target string) (output.LoadWaiter, error) {
	waitCtx, cancel := context.WithCancel(context.Background())
	page := p.page.Context(waitCtx)

	w := &loadWaiter{cancel: cancel, done: make(chan struct{})}

	if target == "" {
		w.wait = page.EachEvent(func(*proto.PageLoadEventFired) bool {
			w.fired = true
			return true
		})
		return w, nil
	}

	var frameID proto.PageFrameID
	w.wait = page.EachEvent(
		func(e *proto.PageFrameNavigated) bool {
			if e.Frame != nil && e.Frame.Name == target {
				frameID = e.Frame.ID
			}
			return false
		},
		func(e *proto.PageFrameStoppedLoading) bool {
			if frameID != "" && e.FrameID == frameID {
				w.fired = true
				return true
			}
			return false
		},
	)
	return w, nil
}

func (p *PageAdapter) OnToolsChanged(fn func(entity.ToolsChanged)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.handlers, id)
		p.mu.Unlock()
	}
}

type notification struct {
	Type     string        `json:"type"`
	Tools    []entity.Tool `json:"tools"`
	URL      string        `json:"url"`
	Message  string        `json:"message"`
	ToolName string        `json:"toolName"`
}

func (p *PageAdapter) onNotify(payload gson.JSON) (interface{}, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload.JSON("", "")), &n); err != nil {
		p.logger.Warn("Undecodable page notification", "error", err)
		return nil, nil
	}

	switch n.Type {
	case entity.EventToolsChanged:
		p.mu.Lock()
		handlers := make([]func(entity.ToolsChanged), 0, len(p.handlers))
		for _, h := range p.handlers {
			handlers = append(handlers, h)
		}
		p.mu.Unlock()

		tc := entity.ToolsChanged{Tools: n.Tools, URL: n.URL, Message: n.Message}
		for _, h := range handlers {
			h(tc)
		}
	case "toolactivated":
		p.logger.Debug("Tool started execution", "tool", n.ToolName)
	case "toolcancel":
		p.logger.Debug("Tool execution is cancelled", "tool", n.ToolName)
	default:
		p.logger.Debug("Unknown page notification", "type", n.Type)
	}
	return nil, nil
}

func (p *PageAdapter) close() {
	for _, fn := range p.cleanup {
		_ = fn()
	}
	_ = p.page.Close()
}

func isDocumentReplaced(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := err.Error()
	for _, m := range replacedMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
