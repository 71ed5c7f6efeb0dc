package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

const (
	EnvInterpreterEnabled    = "HODIE_INTERPRETER_ENABLED"
	EnvInterpreterBaseURL    = "HODIE_INTERPRETER_BASE_URL"
	EnvInterpreterModel      = "HODIE_INTERPRETER_MODEL"
	EnvInterpreterAPIKey     = "HODIE_INTERPRETER_API_KEY"
	EnvInterpreterTimeout    = "HODIE_INTERPRETER_TIMEOUT"
	EnvInterpreterMaxRetries = "HODIE_INTERPRETER_MAX_RETRIES"
	EnvInterpreterRate       = "HODIE_INTERPRETER_RATE_PER_SECOND"
	EnvInterpreterBurst      = "HODIE_INTERPRETER_BURST"
)

// InterpreterConfig configures the optional remote mapping collaborator,
// an OpenAI-compatible chat completions endpoint.
type InterpreterConfig struct {
	Enabled       bool    `toml:"enabled"`
	BaseURL       string  `toml:"base_url"`
	Model         string  `toml:"model"`
	APIKey        string  `toml:"api_key"`
	Timeout       string  `toml:"timeout"`
	MaxRetries    int     `toml:"max_retries"`
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
}

// TimeoutDuration returns the per-attempt HTTP timeout.
func (c *InterpreterConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *InterpreterConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. Enabled always applies.
func (c *InterpreterConfig) Merge(overlay *InterpreterConfig) {
	c.Enabled = overlay.Enabled
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.MaxRetries != 0 {
		c.MaxRetries = overlay.MaxRetries
	}
	if overlay.RatePerSecond != 0 {
		c.RatePerSecond = overlay.RatePerSecond
	}
	if overlay.Burst != 0 {
		c.Burst = overlay.Burst
	}
}

func (c *InterpreterConfig) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434/v1"
	}
	if c.Model == "" {
		c.Model = "llama3.1:8b"
	}
	if c.Timeout == "" {
		c.Timeout = "8s"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 1
	}
	if c.RatePerSecond == 0 {
		c.RatePerSecond = 2
	}
	if c.Burst == 0 {
		c.Burst = 4
	}
}

func (c *InterpreterConfig) loadEnv() {
	if v := os.Getenv(EnvInterpreterEnabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Enabled = b
		}
	}
	if v := os.Getenv(EnvInterpreterBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvInterpreterModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvInterpreterAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvInterpreterTimeout); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv(EnvInterpreterMaxRetries); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv(EnvInterpreterRate); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RatePerSecond = f
		}
	}
	if v := os.Getenv(EnvInterpreterBurst); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Burst = n
		}
	}
}

func (c *InterpreterConfig) validate() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if c.RatePerSecond <= 0 || c.Burst < 1 {
		return fmt.Errorf("rate_per_second and burst must be positive")
	}
	if !c.Enabled {
		return nil
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url: %q", c.BaseURL)
	}
	if c.Model == "" {
		return fmt.Errorf("model required when interpreter is enabled")
	}
	return nil
}
