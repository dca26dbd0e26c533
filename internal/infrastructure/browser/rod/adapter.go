package rod

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"webmcp-agent/internal/application/port/output"
)

var _ output.BrowserPort = (*BrowserAdapter)(nil)

const defaultTimeout = 30 * time.Second

type BrowserAdapter struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration
	logger   output.LoggerPort

	mu     sync.Mutex
	pages  []*PageAdapter
	closed bool
}

type BrowserConfig struct {
	Headless  bool
	NoSandbox bool
	// ControlURL attaches to a running Chrome instead of launching one.
	ControlURL string
	Timeout    time.Duration
	// Flags are extra Chrome switches as "name" or "name=value".
	Flags []string
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless: true,
		Timeout:  defaultTimeout,
		Flags:    []string{"enable-features=WebMCPTesting"},
	}
}

func NewBrowserAdapter(ctx context.Context, cfg BrowserConfig, logger output.LoggerPort) (*BrowserAdapter, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	controlURL := cfg.ControlURL
	var l *launcher.Launcher
	if controlURL == "" {
		l = launcher.New().
			Context(ctx).
			Headless(cfg.Headless).
			NoSandbox(cfg.NoSandbox).
			Delete("use-mock-keychain")
		for _, f := range cfg.Flags {
			name, value, _ := strings.Cut(f, "=")
			if value == "" {
				l = l.Set(flags.Flag(name))
			} else {
				l = l.Set(flags.Flag(name), value)
			}
		}

		url, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &BrowserAdapter{
		browser:  browser,
		launcher: l,
		timeout:  cfg.Timeout,
		logger:   logger.WithField("component", "browser"),
	}, nil
}

// Open creates a tab, installs the page bridge and navigates to url.
func (b *BrowserAdapter) Open(ctx context.Context, url string) (output.PageContext, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("browser is closed")
	}
	b.mu.Unlock()

	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	page = page.Context(context.Background())

	pa := newPageAdapter(page, b.timeout, b.logger)
	if err := pa.install(); err != nil {
		_ = page.Close()
		return nil, err
	}

	if err := pa.navigate(ctx, url); err != nil {
		pa.close()
		return nil, err
	}

	b.mu.Lock()
	b.pages = append(b.pages, pa)
	b.mu.Unlock()

	b.logger.Info("Page opened", "page", pa.ID(), "url", url)
	return pa, nil
}

func (b *BrowserAdapter) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	pages := b.pages
	b.pages = nil
	b.mu.Unlock()

	for _, p := range pages {
		p.close()
	}
	if b.browser != nil {
		_ = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}
