package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/hodie-labs/ingest/pkg/database"
	"github.com/hodie-labs/ingest/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvHodieEnv             = "HODIE_ENV"
	EnvHodieShutdownTimeout = "HODIE_SHUTDOWN_TIMEOUT"
	EnvHodieVersion         = "HODIE_VERSION"
)

var databaseEnv = &database.Env{
	Driver:          "HODIE_DB_DRIVER",
	Path:            "HODIE_DB_PATH",
	AutoMigrate:     "HODIE_DB_AUTO_MIGRATE",
	Host:            "HODIE_DB_HOST",
	Port:            "HODIE_DB_PORT",
	Name:            "HODIE_DB_NAME",
	User:            "HODIE_DB_USER",
	Password:        "HODIE_DB_PASSWORD",
	SSLMode:         "HODIE_DB_SSL_MODE",
	MaxOpenConns:    "HODIE_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "HODIE_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "HODIE_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "HODIE_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Provider:         "HODIE_STORAGE_PROVIDER",
	ContainerName:    "HODIE_STORAGE_CONTAINER_NAME",
	ConnectionString: "HODIE_STORAGE_CONNECTION_STRING",
	AccountURL:       "HODIE_STORAGE_ACCOUNT_URL",
	MaxRetries:       "HODIE_STORAGE_MAX_RETRIES",
	Root:             "HODIE_STORAGE_ROOT",
}

// Config is the root configuration for the ingestion service and CLI.
type Config struct {
	Server          ServerConfig      `toml:"server"`
	Database        database.Config   `toml:"database"`
	Storage         storage.Config    `toml:"storage"`
	API             APIConfig         `toml:"api"`
	Ingest          IngestConfig      `toml:"ingest"`
	Interpreter     InterpreterConfig `toml:"interpreter"`
	Usage           UsageConfig       `toml:"usage"`
	Metrics         MetricsConfig     `toml:"metrics"`
	ShutdownTimeout string            `toml:"shutdown_timeout"`
	Version         string            `toml:"version"`
}

// Env returns the HODIE_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvHodieEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	return LoadFile(BaseConfigFile)
}

// LoadFile is Load with an explicit base config path.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		loaded, err := load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if overlay := overlayPath(path); overlay != "" {
		loaded, err := load(overlay)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
		cfg.Merge(loaded)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Local returns a finalized single-process configuration backed by a
// SQLite file at dbPath and blobs under root, with migrations applied on
// start. Environment variables still override it.
func Local(dbPath, root string) (*Config, error) {
	cfg := &Config{
		Database: database.Config{
			Driver:      database.DriverSQLite,
			Path:        dbPath,
			AutoMigrate: true,
		},
		Storage: storage.Config{
			Provider: storage.ProviderLocal,
			Root:     root,
		},
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Ingest.Merge(&overlay.Ingest)
	c.Interpreter.Merge(&overlay.Interpreter)
	c.Usage.Merge(&overlay.Usage)
	c.Metrics.Merge(&overlay.Metrics)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Ingest.Finalize(); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if err := c.Interpreter.Finalize(); err != nil {
		return fmt.Errorf("interpreter: %w", err)
	}
	if err := c.Usage.Finalize(); err != nil {
		return fmt.Errorf("usage: %w", err)
	}
	if err := c.Metrics.Finalize(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvHodieShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvHodieVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath(base string) string {
	if env := os.Getenv(EnvHodieEnv); env != "" {
		path := filepath.Join(filepath.Dir(base), fmt.Sprintf(OverlayConfigPattern, env))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
