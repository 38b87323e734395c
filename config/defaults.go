package config

const (
	defaultTransport = "anthropic"
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 8192
	defaultSpinnerMs = 120
	defaultName      = "surfbot"
	defaultTagline   = "a terminal surface for streaming assistants"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			Transport: defaultTransport,
			Model:     defaultModel,
			MaxTokens: defaultMaxTokens,
		},
		Providers: ProvidersConfig{
			Anthropic: &ProviderConfig{APIKey: ""},
		},
		UI: UIConfig{
			SpinnerMs: defaultSpinnerMs,
			Name:      defaultName,
			Tagline:   defaultTagline,
		},
		Logging: defaultLoggingConfig(),
	}
}

func defaultLoggingConfig() LoggingConfig {
	enabled := true
	return LoggingConfig{
		Enabled: &enabled,
		Level:   "info",
		Stdout:  false,
		File:    "logs/surfbot.log",
	}
}

func (c *Config) applyDefaults() {
	if c.Session.Transport == "" {
		c.Session.Transport = defaultTransport
	}
	if c.Session.Model == "" {
		c.Session.Model = defaultModel
	}
	if c.Session.MaxTokens <= 0 {
		c.Session.MaxTokens = defaultMaxTokens
	}
	if c.UI.SpinnerMs <= 0 {
		c.UI.SpinnerMs = defaultSpinnerMs
	}
	if c.UI.Name == "" {
		c.UI.Name = defaultName
	}
	if c.UI.Tagline == "" {
		c.UI.Tagline = defaultTagline
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.File == "" {
		c.Logging.File = "logs/surfbot.log"
	}
}
