// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config handles aicli configuration.
//
// Values are resolved in layers: built-in defaults, the TOML config file,
// .env files, environment variables, and finally command-line flags
// (applied by the caller).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultBaseURL points at a local OpenAI-compatible server.
	DefaultBaseURL = "http://localhost:7867"

	// DefaultModel is the model requested when none is configured.
	DefaultModel = "Qwen3"

	// DefaultExecTimeout bounds each exec_cmd invocation.
	DefaultExecTimeout = 30 * time.Second

	// DefaultHistoryLimit is the number of input lines kept in the history file.
	DefaultHistoryLimit = 1000

	// DefaultAuditMaxEntries is how many audit rows survive the startup prune.
	DefaultAuditMaxEntries = 10000
)

// ErrMissingAPIKey is returned by Validate when a remote endpoint has no key.
var ErrMissingAPIKey = errors.New("API key not configured (set --api_key, AI_CLI_API_KEY or OPENAI_API_KEY)")

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the resolved aicli configuration.
type Config struct {
	Endpoint EndpointConfig `toml:"endpoint" json:"endpoint"`
	Agent    AgentConfig    `toml:"agent" json:"agent"`
	Tools    ToolsConfig    `toml:"tools" json:"tools"`
	UI       UIConfig       `toml:"ui" json:"ui"`
	Audit    AuditConfig    `toml:"audit" json:"audit"`
	Log      LogConfig      `toml:"log" json:"log"`
}

// EndpointConfig describes the chat-completions server.
type EndpointConfig struct {
	BaseURL string `toml:"base_url" json:"base_url"`
	Model   string `toml:"model" json:"model"`
	APIKey  string `toml:"api_key" json:"api_key"`

	// ConnectTimeout bounds dialing and response headers. Streaming bodies are
	// bounded by the turn's context instead.
	ConnectTimeout Duration `toml:"connect_timeout" json:"connect_timeout"`
}

// AgentConfig controls the tool-calling loop.
type AgentConfig struct {
	// MaxToolRounds caps tool rounds per user turn. 0 means unbounded.
	MaxToolRounds int `toml:"max_tool_rounds" json:"max_tool_rounds"`

	// RequestsPerSecond paces follow-up requests inside a turn. 0 disables pacing.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`

	SystemPrompt string `toml:"system_prompt" json:"system_prompt,omitempty"`
}

// ToolsConfig controls the local tools.
type ToolsConfig struct {
	ExecTimeout Duration `toml:"exec_timeout" json:"exec_timeout"`
	Disabled    []string `toml:"disabled" json:"disabled,omitempty"`
}

// UIConfig controls terminal output.
type UIConfig struct {
	RenderMarkdown bool   `toml:"render_markdown" json:"render_markdown"`
	ShowStats      bool   `toml:"show_stats" json:"show_stats"`
	HistoryFile    string `toml:"history_file" json:"history_file"`
	HistoryLimit   int    `toml:"history_limit" json:"history_limit"`
}

// AuditConfig controls the tool execution audit store.
type AuditConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Path    string `toml:"path" json:"path"`

	// MaxEntries is the number of rows kept when the store is opened
	MaxEntries int `toml:"max_entries" json:"max_entries"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level      string `toml:"level" json:"level"`
	File       string `toml:"file" json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
}

// Duration is a time.Duration written as a string ("30s") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// =============================================================================
// DEFAULTS AND PATHS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	dir, _ := ConfigDir()
	return &Config{
		Endpoint: EndpointConfig{
			BaseURL:        DefaultBaseURL,
			Model:          DefaultModel,
			ConnectTimeout: Duration{30 * time.Second},
		},
		Tools: ToolsConfig{
			ExecTimeout: Duration{DefaultExecTimeout},
		},
		UI: UIConfig{
			ShowStats:    true,
			HistoryFile:  filepath.Join(dir, "history"),
			HistoryLimit: DefaultHistoryLimit,
		},
		Audit: AuditConfig{
			Enabled:    true,
			Path:       filepath.Join(dir, "audit.db"),
			MaxEntries: DefaultAuditMaxEntries,
		},
		Log: LogConfig{
			Level:      "info",
			File:       filepath.Join(dir, "logs", "aicli.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// ConfigDir returns the aicli configuration directory (~/.aicli).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".aicli"), nil
}

// ConfigPath returns the default TOML config path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir creates the config directory if needed.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// =============================================================================
// LOADING
// =============================================================================

// Load resolves defaults, the TOML file at path (the default path when
// empty), .env files and environment variables. A missing config file is not
// an error. Validation is left to the caller so flags can be applied first.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := ConfigPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, err
			}
		} else if explicit {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if _, err := LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	return cfg, nil
}

// LoadTOML decodes the TOML file at path on top of cfg.
func LoadTOML(cfg *Config, path string) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnvOverrides applies environment variables. AI_CLI_* names win over
// their OPENAI_* counterparts.
//
//   - AI_CLI_BASE_URL, OPENAI_BASE_URL: endpoint.base_url
//   - AI_CLI_MODEL, OPENAI_MODEL: endpoint.model
//   - AI_CLI_API_KEY, OPENAI_API_KEY: endpoint.api_key
//   - AI_CLI_LOG_LEVEL: log.level
//   - AI_CLI_MAX_TOOL_ROUNDS: agent.max_tool_rounds
func (c *Config) ApplyEnvOverrides() {
	if v := firstEnv("AI_CLI_BASE_URL", "OPENAI_BASE_URL"); v != "" {
		c.Endpoint.BaseURL = v
	}
	if v := firstEnv("AI_CLI_MODEL", "OPENAI_MODEL"); v != "" {
		c.Endpoint.Model = v
	}
	if v := firstEnv("AI_CLI_API_KEY", "OPENAI_API_KEY"); v != "" {
		c.Endpoint.APIKey = v
	}
	if v := os.Getenv("AI_CLI_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("AI_CLI_MAX_TOOL_ROUNDS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			c.Agent.MaxToolRounds = n
		}
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// SetDefaults fills zero values that have a sensible default.
func (c *Config) SetDefaults() {
	def := Default()
	if c.Endpoint.BaseURL == "" {
		c.Endpoint.BaseURL = def.Endpoint.BaseURL
	}
	if c.Endpoint.Model == "" {
		c.Endpoint.Model = def.Endpoint.Model
	}
	if c.Endpoint.ConnectTimeout.Duration <= 0 {
		c.Endpoint.ConnectTimeout = def.Endpoint.ConnectTimeout
	}
	if c.Tools.ExecTimeout.Duration <= 0 {
		c.Tools.ExecTimeout = def.Tools.ExecTimeout
	}
	if c.UI.HistoryFile == "" {
		c.UI.HistoryFile = def.UI.HistoryFile
	}
	if c.UI.HistoryLimit <= 0 {
		c.UI.HistoryLimit = def.UI.HistoryLimit
	}
	if c.Audit.Path == "" {
		c.Audit.Path = def.Audit.Path
	}
	if c.Audit.MaxEntries <= 0 {
		c.Audit.MaxEntries = def.Audit.MaxEntries
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.File == "" {
		c.Log.File = def.Log.File
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = def.Log.MaxSizeMB
	}
	if c.Log.MaxBackups < 0 {
		c.Log.MaxBackups = 0
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual errors to errors.Is.
func (e ValidateErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, err := range e {
		errs[i] = err
	}
	return errs
}

// Validate checks the resolved configuration. An API key is required unless
// the endpoint is on a loopback address.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.Endpoint.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "endpoint.base_url",
			Message: fmt.Sprintf("invalid URL %q, must be http(s)://host[:port][/path]", c.Endpoint.BaseURL),
		})
	} else if c.Endpoint.APIKey == "" && !IsLoopbackHost(u.Hostname()) {
		errs = append(errs, ValidationError{
			Field:   "endpoint.api_key",
			Message: ErrMissingAPIKey.Error(),
			Err:     ErrMissingAPIKey,
		})
	}

	if strings.TrimSpace(c.Endpoint.Model) == "" {
		errs = append(errs, ValidationError{Field: "endpoint.model", Message: "model must not be empty"})
	}
	if c.Agent.MaxToolRounds < 0 {
		errs = append(errs, ValidationError{Field: "agent.max_tool_rounds", Message: "must be >= 0"})
	}
	if c.Agent.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{Field: "agent.requests_per_second", Message: "must be >= 0"})
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// IsLoopbackHost reports whether host names the local machine.
func IsLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// =============================================================================
// UTILITY METHODS
// =============================================================================

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Tools.Disabled != nil {
		clone.Tools.Disabled = append([]string(nil), c.Tools.Disabled...)
	}
	return &clone
}

// String returns the configuration as JSON with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Endpoint.APIKey != "" {
		safe.Endpoint.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
