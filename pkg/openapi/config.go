package openapi

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Config controls the published document: its info block, the path it is
// served at within the API module, and an optional public server URL.
type Config struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
	Path        string `toml:"path"`
	ServerURL   string `toml:"server_url"`
}

// ConfigEnv names the environment variables that override each field.
type ConfigEnv struct {
	Title       string
	Description string
	Path        string
	ServerURL   string
}

func (c *Config) Finalize(env *ConfigEnv) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

func (c *Config) Merge(overlay *Config) {
	for dst, src := range c.fields(overlay) {
		if *src != "" {
			*dst = *src
		}
	}
}

func (c *Config) fields(o *Config) map[*string]*string {
	return map[*string]*string{
		&c.Title:       &o.Title,
		&c.Description: &o.Description,
		&c.Path:        &o.Path,
		&c.ServerURL:   &o.ServerURL,
	}
}

func (c *Config) loadDefaults() {
	if c.Title == "" {
		c.Title = "Hodie Ingest API"
	}
	if c.Description == "" {
		c.Description = "Health-file ingestion: quota admission, deduplication, parsing, and schema mapping."
	}
	if c.Path == "" {
		c.Path = "/openapi.json"
	}
}

func (c *Config) loadEnv(env *ConfigEnv) {
	for key, dst := range map[string]*string{
		env.Title:       &c.Title,
		env.Description: &c.Description,
		env.Path:        &c.Path,
		env.ServerURL:   &c.ServerURL,
	} {
		if key == "" {
			continue
		}
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("path must start with /: %q", c.Path)
	}
	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("server_url must be an absolute URL: %q", c.ServerURL)
		}
	}
	return nil
}
