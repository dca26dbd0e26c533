package di

import (
	"context"
	"fmt"
	"io"
	"os"

	"webmcp-agent/internal/application/port/output"
	"webmcp-agent/internal/application/service"
	"webmcp-agent/internal/domain/entity"
	"webmcp-agent/internal/infrastructure/browser/rod"
	"webmcp-agent/internal/infrastructure/config"
	"webmcp-agent/internal/infrastructure/llm/langchain"
	"webmcp-agent/internal/infrastructure/llm/openrouter"
	"webmcp-agent/internal/infrastructure/logger"
	"webmcp-agent/internal/infrastructure/prompts"
	"webmcp-agent/internal/infrastructure/storage/sqlite"
	"webmcp-agent/internal/infrastructure/userinteraction"
	"webmcp-agent/internal/usecase/agentloop"
	"webmcp-agent/internal/usecase/bridge"
	"webmcp-agent/internal/usecase/executor"
)

type Container struct {
	Config    *config.Config
	Logger    output.LoggerPort
	Console   *userinteraction.Console
	Browser   output.BrowserPort
	Page      output.PageContext
	Model     output.ModelPort
	Registry  output.ToolRegistry
	Bridge    *bridge.UseCase
	Loop      *agentloop.UseCase
	Inspector *executor.UseCase
	Traces    output.TraceStore

	unsubscribe func()
}

type Options struct {
	// LogName tags the log file of this run.
	LogName string
	// ConsoleOut receives the operator log. Defaults to stdout.
	ConsoleOut io.Writer
	// WithoutTraces skips opening the trace archive.
	WithoutTraces bool
}

// NewContainer opens url in a fresh browser tab and wires everything around it.
func NewContainer(ctx context.Context, cfg *config.Config, url string, opts Options) (*Container, error) {
	if opts.LogName == "" {
		opts.LogName = "agent"
	}
	if opts.ConsoleOut == nil {
		opts.ConsoleOut = os.Stdout
	}

	log, err := logger.NewLoggerAdapter(logger.Options{
		Name:  opts.LogName,
		Dir:   cfg.Log.Dir,
		Level: cfg.Log.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	c := &Container{
		Config:  cfg,
		Logger:  log,
		Console: userinteraction.NewConsoleWith(os.Stdin, opts.ConsoleOut, false),
	}

	if !opts.WithoutTraces && cfg.Storage.TraceDB != "" {
		traces, err := sqlite.NewTraceStore(cfg.Storage.TraceDB)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open trace archive: %w", err)
		}
		c.Traces = traces
	}

	browser, err := rod.NewBrowserAdapter(ctx, rod.BrowserConfig{
		Headless:   cfg.Browser.Headless,
		NoSandbox:  cfg.Browser.NoSandbox,
		ControlURL: cfg.Browser.ControlURL,
		Timeout:    cfg.Browser.Timeout,
		Flags:      cfg.Browser.Flags,
	}, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create browser: %w", err)
	}
	c.Browser = browser

	page, err := browser.Open(ctx, url)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open %s: %w", url, err)
	}
	c.Page = page

	if cfg.PromptingEnabled() {
		model, err := NewModel(cfg.Model, log)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Model = model
	} else {
		log.Warn("No API key configured, prompting is disabled")
	}

	c.Registry = service.NewToolRegistry()
	c.Bridge = bridge.New(c.Registry, log, cfg.Bridge.DeferredTimeout)
	c.Inspector = executor.New(c.Bridge, c.Registry, page, log)
	c.Loop = agentloop.New(c.Bridge, page, c.Model, c.Console, c.Traces, log, agentloop.Options{
		SystemPrompt:   prompts.SystemPrompt,
		SuggestPrompt:  prompts.SuggestPrompt,
		FrameInterval:  cfg.Suggest.FrameInterval,
		SuggestEnabled: cfg.Suggest.Enabled && c.Model != nil,
	})

	c.unsubscribe = c.Bridge.Subscribe(page, c.Loop.HandleRegistryEvent)
	if snap, err := c.Bridge.ListTools(ctx, page); err == nil {
		c.Loop.HandleRegistryEvent(entity.RegistryEvent{Snapshot: &snap})
	}

	return c, nil
}

// NewModel builds the configured model collaborator.
func NewModel(cfg config.ModelConfig, log output.LoggerPort) (output.ModelPort, error) {
	switch cfg.Provider {
	case config.ProviderOpenRouter:
		orCfg := openrouter.DefaultConfig(cfg.APIKey, cfg.Name)
		if cfg.BaseURL != "" {
			orCfg.BaseURL = cfg.BaseURL
		}
		orCfg.Logger = log
		return openrouter.NewOpenRouterAdapter(orCfg), nil
	case config.ProviderLangchainOpenAI, config.ProviderLangchainOllama:
		backend := langchain.BackendOpenAI
		if cfg.Provider == config.ProviderLangchainOllama {
			backend = langchain.BackendOllama
		}
		model, err := langchain.NewAdapter(langchain.Config{
			Backend: backend,
			Model:   cfg.Name,
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Logger:  log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create model: %w", err)
		}
		return model, nil
	}
	return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
}

func (c *Container) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	if c.Loop != nil {
		c.Loop.Close()
	}
	if c.Registry != nil && c.Page != nil {
		c.Registry.Forget(c.Page.ID())
	}
	if c.Browser != nil {
		c.Browser.Close()
	}
	if c.Traces != nil {
		if err := c.Traces.Close(); err != nil {
			c.Logger.Warn("Failed to close trace archive", "error", err)
		}
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}
