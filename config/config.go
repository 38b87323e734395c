// Package config handles configuration loading and saving.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/linanwx/surfbot/logger"
)

const (
	configDirName  = ".surfbot"
	configFileName = "config.yaml"

	// EnvConfigDir overrides the config directory location.
	EnvConfigDir = "SURFBOT_CONFIG_DIR"
)

var configDirOverride string

// SetConfigDir overrides the config directory for the current process.
// Empty value clears the override.
func SetConfigDir(dir string) {
	configDirOverride = strings.TrimSpace(dir)
}

// Config is the root configuration structure.
type Config struct {
	Session   SessionConfig   `json:"session" yaml:"session"`
	Providers ProvidersConfig `json:"providers" yaml:"providers"`
	UI        UIConfig        `json:"ui,omitempty" yaml:"ui,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// SessionConfig contains session runtime defaults.
type SessionConfig struct {
	Transport string `json:"transport" yaml:"transport"`                   // anthropic, sse
	Model     string `json:"model" yaml:"model"`                           // provider model name
	MaxTokens int    `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"` // defaults to 8192
}

// ProvidersConfig contains transport API configurations.
type ProvidersConfig struct {
	Anthropic *ProviderConfig `json:"anthropic,omitempty" yaml:"anthropic,omitempty"`
	SSE       *ProviderConfig `json:"sse,omitempty" yaml:"sse,omitempty"`
}

// ProviderConfig contains API credentials for a transport.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" yaml:"apiKey"`
	APIBase string `json:"apiBase,omitempty" yaml:"apiBase,omitempty"` // optional custom base URL
}

// UIConfig contains terminal rendering preferences.
type UIConfig struct {
	Markdown  *bool  `json:"markdown,omitempty" yaml:"markdown,omitempty"`   // render finalized prose as markdown (default true)
	SpinnerMs int    `json:"spinnerMs,omitempty" yaml:"spinnerMs,omitempty"` // loader frame interval, defaults to 120
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`           // header name line
	Tagline   string `json:"tagline,omitempty" yaml:"tagline,omitempty"`     // header tagline
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Level   string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Stdout  bool   `json:"stdout,omitempty" yaml:"stdout,omitempty"` // log to stdout (outside sessions)
	File    string `json:"file,omitempty" yaml:"file,omitempty"`     // log file path
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	if dir := strings.TrimSpace(os.Getenv(EnvConfigDir)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// ConfigPath returns the config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the config file and applies defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes the config to the config file.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// APIKey returns the API key for the configured transport, falling back
// to the conventional environment variable.
func (c *Config) APIKey() (string, error) {
	var key, envVar string
	switch c.Session.Transport {
	case "anthropic":
		if c.Providers.Anthropic != nil {
			key = c.Providers.Anthropic.APIKey
		}
		envVar = "ANTHROPIC_API_KEY"
	case "sse":
		if c.Providers.SSE != nil {
			key = c.Providers.SSE.APIKey
		}
		envVar = "OPENAI_API_KEY"
	default:
		return "", fmt.Errorf("config: unknown transport %q", c.Session.Transport)
	}

	if key == "" {
		key = os.Getenv(envVar)
	}
	if key == "" {
		return "", fmt.Errorf("config: no API key for %s (set providers.%s.apiKey or %s)",
			c.Session.Transport, c.Session.Transport, envVar)
	}
	return key, nil
}

// APIBase returns the custom base URL for the configured transport, if any.
func (c *Config) APIBase() string {
	switch c.Session.Transport {
	case "anthropic":
		if c.Providers.Anthropic != nil {
			return c.Providers.Anthropic.APIBase
		}
	case "sse":
		if c.Providers.SSE != nil {
			return c.Providers.SSE.APIBase
		}
	}
	return ""
}

// SpinnerInterval returns the loader frame interval.
func (c *Config) SpinnerInterval() time.Duration {
	ms := c.UI.SpinnerMs
	if ms <= 0 {
		ms = defaultSpinnerMs
	}
	return time.Duration(ms) * time.Millisecond
}

// MarkdownEnabled reports whether finalized prose should render as markdown.
func (c *Config) MarkdownEnabled() bool {
	if c.UI.Markdown == nil {
		return true
	}
	return *c.UI.Markdown
}

// BuildLoggerConfig converts the logging section into logger settings.
func (c *Config) BuildLoggerConfig() logger.Config {
	enabled := true
	if c.Logging.Enabled != nil {
		enabled = *c.Logging.Enabled
	}
	return logger.Config{
		Enabled: enabled,
		Level:   c.Logging.Level,
		Stdout:  c.Logging.Stdout,
		File:    c.Logging.File,
	}
}
