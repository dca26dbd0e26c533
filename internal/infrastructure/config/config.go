package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenRouter      = "openrouter"
	ProviderLangchainOpenAI = "langchain-openai"
	ProviderLangchainOllama = "langchain-ollama"

	DefaultModel = "gemini-2.5-flash"
)

type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Model   ModelConfig   `yaml:"model"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Suggest SuggestConfig `yaml:"suggest"`
	Storage StorageConfig `yaml:"storage"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
}

type BrowserConfig struct {
	Headless   bool          `yaml:"headless"`
	NoSandbox  bool          `yaml:"no_sandbox"`
	ControlURL string        `yaml:"control_url"`
	Timeout    time.Duration `yaml:"timeout"`
	// Flags are extra Chrome switches, e.g. the one enabling the testing tool registry.
	Flags []string `yaml:"flags"`
}

type ModelConfig struct {
	Provider string `yaml:"provider"`
	Name     string `yaml:"name"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
}

type BridgeConfig struct {
	// DeferredTimeout bounds the wait for a navigation-bound result. Zero waits forever.
	DeferredTimeout time.Duration `yaml:"deferred_timeout"`
}

type SuggestConfig struct {
	Enabled       bool          `yaml:"enabled"`
	FrameInterval time.Duration `yaml:"frame_interval"`
}

type StorageConfig struct {
	TraceDB string `yaml:"trace_db"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless: true,
			Timeout:  30 * time.Second,
			Flags:    []string{"enable-features=WebMCPTesting"},
		},
		Model: ModelConfig{
			Provider: ProviderOpenRouter,
			Name:     DefaultModel,
		},
		Suggest: SuggestConfig{
			Enabled:       true,
			FrameInterval: 16 * time.Millisecond,
		},
		Storage: StorageConfig{TraceDB: "traces.db"},
		HTTP:    HTTPConfig{Addr: "127.0.0.1:8787"},
		Log:     LogConfig{Level: "info", Dir: "log"},
	}
}

// Load reads path over DefaultConfig. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.Model.Provider {
	case ProviderOpenRouter, ProviderLangchainOpenAI, ProviderLangchainOllama:
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Bridge.DeferredTimeout < 0 {
		return errors.New("bridge.deferred_timeout must not be negative")
	}
	if c.Suggest.FrameInterval < 0 {
		return errors.New("suggest.frame_interval must not be negative")
	}
	return nil
}

// PromptingEnabled mirrors the disabled prompt buttons of a tool without an API key.
// Ollama runs locally and needs none.
func (c *Config) PromptingEnabled() bool {
	return c.Model.APIKey != "" || c.Model.Provider == ProviderLangchainOllama
}
