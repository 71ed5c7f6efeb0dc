package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/hodie-labs/ingest/internal/api"
	"github.com/hodie-labs/ingest/internal/config"
	"github.com/hodie-labs/ingest/internal/infrastructure"
	"github.com/hodie-labs/ingest/pkg/database"
	"github.com/hodie-labs/ingest/pkg/storage"
)

const (
	defaultDBPath      = "ingest.db"
	defaultStorageRoot = "data/blobs"
)

type commandContext struct {
	configPath  string
	dbPath      string
	storageRoot string
	verbose     bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

// ensureConfig loads the config file when one is named and otherwise falls
// back to the local SQLite preset. --db and --storage-root override either.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(c.configPath)
		if path == "" {
			c.config, c.configErr = config.Local(
				valueOr(c.dbPath, defaultDBPath),
				valueOr(c.storageRoot, defaultStorageRoot),
			)
			return
		}

		cfg, err := config.LoadFile(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.dbPath != "" {
			cfg.Database.Driver = database.DriverSQLite
			cfg.Database.Path = c.dbPath
			cfg.Database.AutoMigrate = true
		}
		if c.storageRoot != "" {
			cfg.Storage.Provider = storage.ProviderLocal
			cfg.Storage.Root = c.storageRoot
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// withDomain starts the infrastructure, hands fn the assembled domain
// systems, and shuts everything down once fn returns.
func (c *commandContext) withDomain(ctx context.Context, stderr io.Writer, fn func(*api.Domain) error) (err error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	infra, err := infrastructure.NewWithLogger(cfg, c.logger(stderr))
	if err != nil {
		return err
	}
	if err := infra.Start(); err != nil {
		return err
	}

	defer func() {
		if shutdownErr := infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration()); err == nil {
			err = shutdownErr
		}
	}()

	if err := infra.Lifecycle.WaitForStartup(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(api.NewDomain(api.NewRuntime(cfg, infra)))
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
