package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvIngestDailyLimit       = "HODIE_INGEST_DAILY_LIMIT"
	EnvIngestTimezone         = "HODIE_INGEST_TIMEZONE"
	EnvIngestInterpretTimeout = "HODIE_INGEST_INTERPRET_TIMEOUT"
	EnvIngestPreviewRows      = "HODIE_INGEST_PREVIEW_ROWS"
	EnvIngestMaxRows          = "HODIE_INGEST_MAX_ROWS"
	EnvIngestReportCommand    = "HODIE_INGEST_REPORT_TEXT_COMMAND"
)

// IngestConfig holds the pipeline's admission, parsing, and mapping limits.
type IngestConfig struct {
	DailyLimit        int    `toml:"daily_limit"`
	Timezone          string `toml:"timezone"`
	InterpretTimeout  string `toml:"interpret_timeout"`
	PreviewRows       int    `toml:"preview_rows"`
	MaxRows           int    `toml:"max_rows"`
	ReportTextCommand string `toml:"report_text_command"`
}

// Location returns the quota day boundary location. Finalize guarantees it loads.
func (c *IngestConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// InterpretTimeoutDuration returns InterpretTimeout as a time.Duration.
func (c *IngestConfig) InterpretTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.InterpretTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *IngestConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *IngestConfig) Merge(overlay *IngestConfig) {
	if overlay.DailyLimit != 0 {
		c.DailyLimit = overlay.DailyLimit
	}
	if overlay.Timezone != "" {
		c.Timezone = overlay.Timezone
	}
	if overlay.InterpretTimeout != "" {
		c.InterpretTimeout = overlay.InterpretTimeout
	}
	if overlay.PreviewRows != 0 {
		c.PreviewRows = overlay.PreviewRows
	}
	if overlay.MaxRows != 0 {
		c.MaxRows = overlay.MaxRows
	}
	if overlay.ReportTextCommand != "" {
		c.ReportTextCommand = overlay.ReportTextCommand
	}
}

func (c *IngestConfig) loadDefaults() {
	if c.DailyLimit == 0 {
		c.DailyLimit = 3
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.InterpretTimeout == "" {
		c.InterpretTimeout = "10s"
	}
	if c.PreviewRows == 0 {
		c.PreviewRows = 20
	}
	if c.MaxRows == 0 {
		c.MaxRows = 50000
	}
}

func (c *IngestConfig) loadEnv() {
	if v := os.Getenv(EnvIngestDailyLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DailyLimit = n
		}
	}
	if v := os.Getenv(EnvIngestTimezone); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv(EnvIngestInterpretTimeout); v != "" {
		c.InterpretTimeout = v
	}
	if v := os.Getenv(EnvIngestPreviewRows); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PreviewRows = n
		}
	}
	if v := os.Getenv(EnvIngestMaxRows); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRows = n
		}
	}
	if v := os.Getenv(EnvIngestReportCommand); v != "" {
		c.ReportTextCommand = v
	}
}

func (c *IngestConfig) validate() error {
	if c.DailyLimit < 1 {
		return fmt.Errorf("daily_limit must be at least 1")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}
	d, err := time.ParseDuration(c.InterpretTimeout)
	if err != nil {
		return fmt.Errorf("invalid interpret_timeout: %w", err)
	}
	if d < time.Second || d > time.Minute {
		return fmt.Errorf("interpret_timeout must be between 1s and 1m, got %s", d)
	}
	if c.PreviewRows < 1 {
		return fmt.Errorf("preview_rows must be positive")
	}
	if c.MaxRows < 1 {
		return fmt.Errorf("max_rows must be positive")
	}
	return nil
}
