//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

// Package config loads and validates the hearth runtime configuration from
// a YAML file. Values of the form ${VAR} are expanded from the environment
// before parsing, so secrets such as API keys stay out of the file itself.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hearthd/hearth/log"
	"github.com/hearthd/hearth/model"
)

// Defaults applied by Load and Default when the file leaves a field unset.
const (
	DefaultLogLevel       = log.LevelInfo
	DefaultProvider       = "local"
	DefaultLLMTimeout     = 120 * time.Second
	DefaultInterpreter    = "python3"
	DefaultConnectTimeout = 30 * time.Second
	DefaultMaxMessages    = 100
	DefaultMaxIterations  = 5
)

// Config is the full runtime configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	LLM       LLMConfig       `yaml:"llm"`
	MCP       MCPConfig       `yaml:"mcp"`
	Session   SessionConfig   `yaml:"session"`
	Runner    RunnerConfig    `yaml:"runner"`
	Debug     DebugConfig     `yaml:"debug"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LogConfig controls the built-in logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error, fatal.
	Level string `yaml:"level"`
}

// LLMConfig describes the chat-completions backend.
type LLMConfig struct {
	// Provider is "local" or "cloud".
	Provider string `yaml:"provider"`

	// BaseURL is the backend base URL, e.g. "http://127.0.0.1:8080/v1".
	BaseURL string `yaml:"base_url"`

	// Model is the model identifier sent on every request.
	Model string `yaml:"model"`

	// APIKey is the Bearer token for cloud backends. Usually written as
	// ${SOME_API_KEY} and expanded from the environment.
	APIKey string `yaml:"api_key"`

	// Timeout is the end-to-end budget for one completion call.
	Timeout time.Duration `yaml:"timeout"`

	// DisableStreaming pins every completion non-streaming.
	DisableStreaming bool `yaml:"disable_streaming"`

	// Inference carries default sampling parameters.
	Inference InferenceConfig `yaml:"inference"`
}

// InferenceConfig mirrors the backend sampling parameters. Unset fields are
// omitted from requests so the backend's own defaults apply.
type InferenceConfig struct {
	Temperature       *float64 `yaml:"temperature"`
	TopP              *float64 `yaml:"top_p"`
	TopK              *int     `yaml:"top_k"`
	MinP              *float64 `yaml:"min_p"`
	RepetitionPenalty *float64 `yaml:"repetition_penalty"`
	MaxTokens         *int     `yaml:"max_tokens"`
	Stop              []string `yaml:"stop"`
}

// Model converts the section into the request wire type.
func (c InferenceConfig) Model() model.InferenceConfig {
	return model.InferenceConfig{
		Temperature:       c.Temperature,
		TopP:              c.TopP,
		TopK:              c.TopK,
		MinP:              c.MinP,
		RepetitionPenalty: c.RepetitionPenalty,
		MaxTokens:         c.MaxTokens,
		Stop:              c.Stop,
	}
}

// MCPConfig describes the tool server child process. An empty ScriptPath
// disables tools entirely.
type MCPConfig struct {
	// ScriptPath is the tool server script to spawn.
	ScriptPath string `yaml:"script_path"`

	// Interpreter runs the script.
	Interpreter string `yaml:"interpreter"`

	// Env is added to the child's environment.
	Env map[string]string `yaml:"env"`

	// ConnectTimeout bounds spawn plus protocol handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// SessionConfig bounds the conversation history.
type SessionConfig struct {
	// MaxMessages caps the history length.
	MaxMessages int `yaml:"max_messages"`

	// SystemPrompt, when set, is pinned at index 0 of the history.
	SystemPrompt string `yaml:"system_prompt"`
}

// RunnerConfig bounds the reason/act loop.
type RunnerConfig struct {
	// MaxIterations caps LLM calls per user turn.
	MaxIterations int `yaml:"max_iterations"`

	// StreamAllIterations streams every LLM call instead of only the first.
	StreamAllIterations bool `yaml:"stream_all_iterations"`
}

// DebugConfig enables the optional debug surfaces.
type DebugConfig struct {
	// EventLogDir, when set, enables the NDJSON event file sink there.
	EventLogDir string `yaml:"event_log_dir"`

	// HTTPAddr, when set, serves the debug HTTP surface (health, SSE event
	// tap, message injection), e.g. "127.0.0.1:7112".
	HTTPAddr string `yaml:"http_addr"`

	// AllowedOrigins is the CORS allow-list for browser frontends talking
	// to the debug surface. Empty allows any origin; the surface is meant
	// to stay on loopback.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TelemetryConfig controls OTLP export. Disabled leaves the noop providers
// in place.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP collector, host:port. Empty falls back to the
	// OTEL_EXPORTER_OTLP_* environment variables.
	Endpoint string `yaml:"endpoint"`

	// Protocol is "grpc" or "http".
	Protocol string `yaml:"protocol"`
}

// Default returns a configuration with every default applied, suitable for
// running without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads, expands and parses the YAML file at path and validates the
// result. All failures are user-visible: a broken config is the user's to
// fix, not an operational fault.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.NewUserVisibleErrorf("read config file: %v", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, model.NewUserVisibleErrorf("config file %s: %v", path, err)
	}
	return cfg, nil
}

// Parse decodes raw YAML bytes into a validated Config. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = DefaultProvider
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = DefaultLLMTimeout
	}
	if cfg.MCP.Interpreter == "" {
		cfg.MCP.Interpreter = DefaultInterpreter
	}
	if cfg.MCP.ConnectTimeout == 0 {
		cfg.MCP.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.Session.MaxMessages == 0 {
		cfg.Session.MaxMessages = DefaultMaxMessages
	}
	if cfg.Runner.MaxIterations == 0 {
		cfg.Runner.MaxIterations = DefaultMaxIterations
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
}

// Validate checks cross-field constraints. Errors are user-visible.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case log.LevelDebug, log.LevelInfo, log.LevelWarn, log.LevelError, log.LevelFatal:
	default:
		return model.NewUserVisibleErrorf("invalid log level %q", c.Log.Level)
	}

	switch c.LLM.Provider {
	case "local", "cloud":
	default:
		return model.NewUserVisibleErrorf("invalid llm provider %q, expected local or cloud", c.LLM.Provider)
	}
	if c.LLM.BaseURL == "" {
		return model.NewUserVisibleError("llm base_url is required")
	}
	if c.LLM.Provider == "cloud" && c.LLM.APIKey == "" {
		return model.NewUserVisibleError("llm api_key is required for the cloud provider")
	}
	if c.LLM.Timeout < 0 {
		return model.NewUserVisibleError("llm timeout must not be negative")
	}

	if c.MCP.ConnectTimeout < 0 {
		return model.NewUserVisibleError("mcp connect_timeout must not be negative")
	}
	if c.Session.MaxMessages < 0 {
		return model.NewUserVisibleError("session max_messages must not be negative")
	}
	if c.Runner.MaxIterations < 0 {
		return model.NewUserVisibleError("runner max_iterations must not be negative")
	}

	switch c.Telemetry.Protocol {
	case "grpc", "http":
	default:
		return model.NewUserVisibleErrorf("invalid telemetry protocol %q, expected grpc or http", c.Telemetry.Protocol)
	}
	return nil
}
