/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package config

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PivotLLM/Foreman/global"
)

// Config provides access to application configuration
type Config struct {
	configPath string      // resolved path to config file
	data       *configData // parsed configuration
	firstRun   bool        // true if config was just created
	disabled   map[string]bool
	embeddedFS embed.FS // embedded default config
}

// configData holds the parsed configuration (internal)
type configData struct {
	Version       int      `json:"version"`
	BaseDir       string   `json:"base_dir,omitempty"`
	Logging       Logging  `json:"logging"`
	Search        Search   `json:"search,omitempty"`
	Scrape        Scrape   `json:"scrape,omitempty"`
	Agent         Agent    `json:"agent,omitempty"`
	Tasks         Tasks    `json:"tasks,omitempty"`
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// Logging represents logging configuration
type Logging struct {
	File  string `json:"file"`
	Level string `json:"level"`
}

// Search represents web search configuration
type Search struct {
	APIKey string `json:"api_key,omitempty"`
}

// Scrape represents web scraping configuration
type Scrape struct {
	APIKey string `json:"api_key,omitempty"`
}

// Agent represents coding agent configuration
type Agent struct {
	AiderPath      string `json:"aider_path,omitempty"`
	Model          string `json:"model,omitempty"`
	APIKey         string `json:"api_key,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// Tasks represents background task configuration
type Tasks struct {
	JournalFile          string `json:"journal_file,omitempty"`
	ShutdownGraceSeconds int    `json:"shutdown_grace_seconds,omitempty"`
}

// Option is a functional option for configuring Config
type Option func(*Config)

// New creates a new Config instance with optional configuration
func New(opts ...Option) *Config {
	c := &Config{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithConfigPath sets an explicit config file path
func WithConfigPath(path string) Option {
	return func(c *Config) {
		c.configPath = path
	}
}

// WithEmbeddedFS sets the embedded filesystem holding the default config
func WithEmbeddedFS(efs embed.FS) Option {
	return func(c *Config) {
		c.embeddedFS = efs
	}
}

// Load loads and validates configuration from file
// If the base directory or config file doesn't exist, it creates them from embedded defaults
func (c *Config) Load() error {
	configPath, err := c.resolveConfigPath()
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	c.configPath = configPath

	baseDir := global.ExpandTilde(global.DefaultBaseDir)
	if !global.DirExists(baseDir) {
		if err := os.MkdirAll(baseDir, 0755); err != nil {
			return fmt.Errorf("failed to create base directory %s: %w", baseDir, err)
		}
	}

	if !global.FileExists(configPath) {
		c.firstRun = true
		if err := c.setupDefaultConfig(configPath); err != nil {
			return fmt.Errorf("failed to create default config at %s: %w", configPath, err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// First pass: detect unknown fields using strict parsing
	var cfg configData
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "unknown field") {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: config file %s: %v\n", configPath, err)
			// Re-parse without strict mode to still load the config
			if err := json.Unmarshal(data, &cfg); err != nil {
				return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		} else {
			return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	c.data = &cfg

	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c.resolveBaseDir()
	c.normalizePaths()

	c.disabled = make(map[string]bool)
	for _, name := range cfg.DisabledTools {
		c.disabled[strings.TrimSpace(name)] = true
	}

	return nil
}

// setupDefaultConfig creates a default config file from the embedded config-example.json
func (c *Config) setupDefaultConfig(configPath string) error {
	content, err := c.embeddedFS.ReadFile("docs/config-example.json")
	if err != nil {
		return fmt.Errorf("failed to read embedded config-example.json: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}

	return nil
}

// resolveConfigPath determines the config file path using precedence rules
func (c *Config) resolveConfigPath() (string, error) {
	// 1. Explicit path (from WithConfigPath option)
	if c.configPath != "" {
		return resolveToAbsolute(c.configPath)
	}

	// 2. Environment variable
	if envPath := os.Getenv(global.ConfigEnvVar); envPath != "" {
		return resolveToAbsolute(envPath)
	}

	// 3. Default: base_dir/config.json
	baseDir := global.ExpandTilde(global.DefaultBaseDir)
	return filepath.Join(baseDir, global.DefaultConfigFileName), nil
}

// resolveBaseDir resolves and validates the base_dir from config
func (c *Config) resolveBaseDir() {
	if c.data.BaseDir == "" {
		c.data.BaseDir = global.ExpandTilde(global.DefaultBaseDir)
		return
	}

	resolved := global.ExpandTilde(c.data.BaseDir)
	if !filepath.IsAbs(resolved) {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: base_dir '%s' is not absolute, using default '%s'\n",
			c.data.BaseDir, global.DefaultBaseDir)
		resolved = global.ExpandTilde(global.DefaultBaseDir)
	}
	c.data.BaseDir = resolved
}

// resolveToAbsolute converts a path to absolute, expanding ~/ if needed
func resolveToAbsolute(path string) (string, error) {
	expanded := global.ExpandTilde(path)
	if filepath.IsAbs(expanded) {
		return expanded, nil
	}
	return filepath.Abs(expanded)
}

// resolvePath resolves a path relative to base_dir
func (c *Config) resolvePath(path string) string {
	if path == "" {
		return ""
	}
	expanded := global.ExpandTilde(path)
	if filepath.IsAbs(expanded) {
		return expanded
	}
	return filepath.Join(c.data.BaseDir, expanded)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.data.Version != 1 {
		if c.data.Version < 1 {
			return fmt.Errorf("config version %d is too old (expected 1)", c.data.Version)
		}
		return fmt.Errorf("config version %d is newer than supported (expected 1)", c.data.Version)
	}

	if c.data.Agent.TimeoutSeconds < 0 {
		return fmt.Errorf("agent timeout_seconds cannot be negative")
	}
	if c.data.Tasks.ShutdownGraceSeconds < 0 {
		return fmt.Errorf("tasks shutdown_grace_seconds cannot be negative")
	}

	return nil
}

// normalizePaths resolves file paths to absolute paths
func (c *Config) normalizePaths() {
	if c.data.Logging.File == "" {
		c.data.Logging.File = global.DefaultLogFileName
	}
	c.data.Logging.File = c.resolvePath(c.data.Logging.File)

	if c.data.Tasks.JournalFile == "" {
		c.data.Tasks.JournalFile = global.DefaultJournalName
	}
	c.data.Tasks.JournalFile = c.resolvePath(c.data.Tasks.JournalFile)
}

// resolveAPIKey returns the key, resolving an env: prefix against the
// environment. Returns empty if the variable is unset.
func resolveAPIKey(key string) string {
	if !strings.HasPrefix(key, global.EnvKeyPrefix) {
		return key
	}
	return os.Getenv(strings.TrimPrefix(key, global.EnvKeyPrefix))
}

// Getter methods

// Version returns the config version
func (c *Config) Version() int {
	return c.data.Version
}

// BaseDir returns the resolved base directory (always absolute)
func (c *Config) BaseDir() string {
	return c.data.BaseDir
}

// ConfigPath returns the path to the loaded config file
func (c *Config) ConfigPath() string {
	return c.configPath
}

// IsFirstRun returns true if this is the first run (config was just created)
func (c *Config) IsFirstRun() bool {
	return c.firstRun
}

// LogFile returns the resolved log file path (always absolute)
func (c *Config) LogFile() string {
	return c.data.Logging.File
}

// LogLevel returns the configured log level
func (c *Config) LogLevel() string {
	return c.data.Logging.Level
}

// SearchAPIKey returns the resolved Brave search API key (empty if unset)
func (c *Config) SearchAPIKey() string {
	return resolveAPIKey(c.data.Search.APIKey)
}

// ScrapeAPIKey returns the resolved ScrapingBee API key (empty if unset)
func (c *Config) ScrapeAPIKey() string {
	return resolveAPIKey(c.data.Scrape.APIKey)
}

// AgentAiderPath returns the configured aider executable path (empty for default)
func (c *Config) AgentAiderPath() string {
	return global.ExpandTilde(c.data.Agent.AiderPath)
}

// AgentModel returns the configured agent model (empty for aider's default)
func (c *Config) AgentModel() string {
	return c.data.Agent.Model
}

// AgentAPIKey returns the resolved Anthropic API key for the agent (empty if unset)
func (c *Config) AgentAPIKey() string {
	return resolveAPIKey(c.data.Agent.APIKey)
}

// AgentTimeout returns the agent session timeout with the default applied
func (c *Config) AgentTimeout() time.Duration {
	if c.data.Agent.TimeoutSeconds > 0 {
		return time.Duration(c.data.Agent.TimeoutSeconds) * time.Second
	}
	return global.DefaultAgentTimeoutSeconds * time.Second
}

// JournalFile returns the resolved task journal path (always absolute)
func (c *Config) JournalFile() string {
	return c.data.Tasks.JournalFile
}

// ShutdownGrace returns the shutdown grace period with the default applied
func (c *Config) ShutdownGrace() time.Duration {
	if c.data.Tasks.ShutdownGraceSeconds > 0 {
		return time.Duration(c.data.Tasks.ShutdownGraceSeconds) * time.Second
	}
	return global.DefaultShutdownGraceSeconds * time.Second
}

// ToolEnabled returns true unless the named tool is in disabled_tools
func (c *Config) ToolEnabled(name string) bool {
	return !c.disabled[name]
}

// DisabledTools returns the configured disabled tool names
func (c *Config) DisabledTools() []string {
	return c.data.DisabledTools
}
