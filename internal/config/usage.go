package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	EnvUsageSink    = "HODIE_USAGE_SINK"
	EnvUsageBrokers = "HODIE_USAGE_BROKERS"
	EnvUsageTopic   = "HODIE_USAGE_TOPIC"
	EnvUsageBuffer  = "HODIE_USAGE_BUFFER"
)

// Usage event sinks.
const (
	UsageSinkLog   = "log"
	UsageSinkKafka = "kafka"
)

// UsageConfig selects where upload usage events are delivered.
type UsageConfig struct {
	Sink    string   `toml:"sink"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
	Buffer  int      `toml:"buffer"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *UsageConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *UsageConfig) Merge(overlay *UsageConfig) {
	if overlay.Sink != "" {
		c.Sink = overlay.Sink
	}
	if overlay.Brokers != nil {
		c.Brokers = overlay.Brokers
	}
	if overlay.Topic != "" {
		c.Topic = overlay.Topic
	}
	if overlay.Buffer != 0 {
		c.Buffer = overlay.Buffer
	}
}

func (c *UsageConfig) loadDefaults() {
	if c.Sink == "" {
		c.Sink = UsageSinkLog
	}
	if c.Topic == "" {
		c.Topic = "upload-usage"
	}
	if c.Buffer == 0 {
		c.Buffer = 256
	}
}

func (c *UsageConfig) loadEnv() {
	if v := os.Getenv(EnvUsageSink); v != "" {
		c.Sink = v
	}
	if v := os.Getenv(EnvUsageBrokers); v != "" {
		c.Brokers = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.Brokers = append(c.Brokers, b)
			}
		}
	}
	if v := os.Getenv(EnvUsageTopic); v != "" {
		c.Topic = v
	}
	if v := os.Getenv(EnvUsageBuffer); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Buffer = n
		}
	}
}

func (c *UsageConfig) validate() error {
	switch c.Sink {
	case UsageSinkLog:
	case UsageSinkKafka:
		if len(c.Brokers) == 0 {
			return fmt.Errorf("brokers required for kafka sink")
		}
		if c.Topic == "" {
			return fmt.Errorf("topic required for kafka sink")
		}
	default:
		return fmt.Errorf("unsupported usage sink: %q", c.Sink)
	}
	if c.Buffer < 1 {
		return fmt.Errorf("buffer must be positive")
	}
	return nil
}
