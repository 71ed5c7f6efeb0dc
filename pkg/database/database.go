// Package database opens the PostgreSQL or SQLite pool the stores share and
// ties its health check and close to the lifecycle coordinator.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/hodie-labs/ingest/pkg/lifecycle"
)

// System owns the connection pool.
type System interface {
	Connection() *sql.DB
	Driver() string
	// Start pings the database as a startup hook and closes the pool on shutdown.
	Start(lc *lifecycle.Coordinator) error
	// Close releases the pool for callers that run without a coordinator.
	Close() error
}

type database struct {
	conn        *sql.DB
	driver      string
	logger      *slog.Logger
	connTimeout time.Duration
}

// New opens the pool and applies its limits. No connection is made until
// the first query or Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	db, err := sql.Open(sqlDriver(cfg.Driver), cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	configurePool(db, cfg)

	return &database{
		conn:        db,
		driver:      cfg.Driver,
		logger:      logger.With("system", "database", "driver", cfg.Driver, "target", cfg.Target()),
		connTimeout: cfg.ConnTimeoutDuration(),
	}, nil
}

func sqlDriver(driver string) string {
	if driver == DriverSQLite {
		return "sqlite"
	}
	return "pgx"
}

func configurePool(db *sql.DB, cfg *Config) {
	// SQLite allows a single writer; one connection keeps conditional
	// writes from failing with SQLITE_BUSY.
	if cfg.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		return
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())
}

func (d *database) Connection() *sql.DB { return d.conn }

func (d *database) Driver() string { return d.driver }

func (d *database) Close() error { return d.conn.Close() }

func (d *database) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup("database", d.ping)

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := d.conn.Close(); err != nil {
			d.logger.Error("database close failed", "error", err)
			return
		}
		d.logger.Info("database connection closed")
	})

	return nil
}

func (d *database) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.connTimeout)
	defer cancel()

	start := time.Now()
	if err := d.conn.PingContext(ctx); err != nil {
		d.logger.Error("database ping failed", "error", err)
		return fmt.Errorf("ping: %w", err)
	}

	d.logger.Info("database connection established", "latency", time.Since(start))
	return nil
}
