// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, storage, metrics, usage
// delivery) that domain systems require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hodie-labs/ingest/internal/config"
	"github.com/hodie-labs/ingest/internal/migrations"
	"github.com/hodie-labs/ingest/internal/usage"
	"github.com/hodie-labs/ingest/pkg/database"
	"github.com/hodie-labs/ingest/pkg/lifecycle"
	"github.com/hodie-labs/ingest/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// It provides a single point of initialization for lifecycle coordination,
// logging, database access, blob storage, metrics, and usage delivery.
type Infrastructure struct {
	Lifecycle   *lifecycle.Coordinator
	Logger      *slog.Logger
	Database    database.System
	Storage     storage.System
	Metrics     *prometheus.Registry
	Usage       *usage.Dispatcher
	autoMigrate bool
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	return NewWithLogger(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

// NewWithLogger is New with a caller-supplied logger.
func NewWithLogger(cfg *config.Config, logger *slog.Logger) (*Infrastructure, error) {
	lc := lifecycle.New()

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	emitter, err := newEmitter(&cfg.Usage, logger)
	if err != nil {
		return nil, fmt.Errorf("usage init failed: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.Connection(), cfg.Database.Driver),
	)

	return &Infrastructure{
		Lifecycle:   lc,
		Logger:      logger,
		Database:    db,
		Storage:     store,
		Metrics:     reg,
		Usage:       usage.NewDispatcher(emitter, cfg.Usage.Buffer, logger),
		autoMigrate: cfg.Database.AutoMigrate,
	}, nil
}

func newEmitter(cfg *config.UsageConfig, logger *slog.Logger) (usage.Emitter, error) {
	switch cfg.Sink {
	case config.UsageSinkLog, "":
		return usage.NewLogEmitter(logger), nil
	case config.UsageSinkKafka:
		return usage.NewKafkaEmitter(cfg.Brokers, cfg.Topic, logger), nil
	default:
		return nil, fmt.Errorf("unsupported usage sink: %q", cfg.Sink)
	}
}

// Start registers all infrastructure systems with the lifecycle coordinator.
// Pending migrations are applied first when auto-migrate is enabled.
func (i *Infrastructure) Start() error {
	if i.autoMigrate {
		if err := migrations.Up(i.Database.Connection(), i.Database.Driver()); err != nil {
			return fmt.Errorf("auto-migrate failed: %w", err)
		}
		i.Logger.Info("migrations applied", "driver", i.Database.Driver())
	}
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	i.Usage.Start(i.Lifecycle)
	return nil
}
