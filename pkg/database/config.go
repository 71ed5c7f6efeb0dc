package database

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds connection parameters for PostgreSQL or an embedded SQLite file.
type Config struct {
	Driver          string `toml:"driver"`
	Path            string `toml:"path"`
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Name            string `toml:"name"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	SSLMode         string `toml:"ssl_mode"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
	ConnTimeout     string `toml:"conn_timeout"`
	AutoMigrate     bool   `toml:"auto_migrate"`
}

// Env names the environment variables that override each field. Empty
// names are skipped.
type Env struct {
	Driver          string
	Path            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    string
	MaxIdleConns    string
	ConnMaxLifetime string
	ConnTimeout     string
	AutoMigrate     string
}

func (c *Config) ConnMaxLifetimeDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxLifetime)
	return d
}

func (c *Config) ConnTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnTimeout)
	return d
}

// Dsn returns the connection string handed to database/sql.
func (c *Config) Dsn() string {
	if c.Driver == DriverSQLite {
		return "file:" + c.Path +
			"?_pragma=busy_timeout(5000)" +
			"&_pragma=journal_mode(WAL)" +
			"&_pragma=foreign_keys(1)"
	}
	return c.postgresURL("postgres", true)
}

// MigrationURL returns the connection string in the URL form golang-migrate expects.
func (c *Config) MigrationURL() string {
	if c.Driver == DriverSQLite {
		return "sqlite://" + c.Path
	}
	return c.postgresURL("postgres", true)
}

// Target identifies the database for logs without exposing credentials.
func (c *Config) Target() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return c.postgresURL("postgres", false)
}

func (c *Config) postgresURL(scheme string, withPassword bool) string {
	u := url.URL{
		Scheme:   scheme,
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	if withPassword {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	return u.String()
}

// Finalize applies defaults, then environment overrides, then validates.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites fields that overlay sets. AutoMigrate can only be
// switched on by an overlay.
func (c *Config) Merge(overlay *Config) {
	for dst, src := range c.strings(overlay) {
		if *src != "" {
			*dst = *src
		}
	}
	for dst, src := range c.ints(overlay) {
		if *src != 0 {
			*dst = *src
		}
	}
	if overlay.AutoMigrate {
		c.AutoMigrate = true
	}
}

func (c *Config) strings(o *Config) map[*string]*string {
	return map[*string]*string{
		&c.Driver:          &o.Driver,
		&c.Path:            &o.Path,
		&c.Host:            &o.Host,
		&c.Name:            &o.Name,
		&c.User:            &o.User,
		&c.Password:        &o.Password,
		&c.SSLMode:         &o.SSLMode,
		&c.ConnMaxLifetime: &o.ConnMaxLifetime,
		&c.ConnTimeout:     &o.ConnTimeout,
	}
}

func (c *Config) ints(o *Config) map[*int]*int {
	return map[*int]*int{
		&c.Port:         &o.Port,
		&c.MaxOpenConns: &o.MaxOpenConns,
		&c.MaxIdleConns: &o.MaxIdleConns,
	}
}

func (c *Config) loadDefaults() {
	defaults := Config{
		Driver:          DriverPostgres,
		Host:            "localhost",
		Port:            5432,
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: "15m",
		ConnTimeout:     "5s",
	}
	for dst, src := range c.strings(&defaults) {
		if *dst == "" {
			*dst = *src
		}
	}
	for dst, src := range c.ints(&defaults) {
		if *dst == 0 {
			*dst = *src
		}
	}
}

func (c *Config) loadEnv(env *Env) {
	for dst, key := range map[*string]string{
		&c.Driver:          env.Driver,
		&c.Path:            env.Path,
		&c.Host:            env.Host,
		&c.Name:            env.Name,
		&c.User:            env.User,
		&c.Password:        env.Password,
		&c.SSLMode:         env.SSLMode,
		&c.ConnMaxLifetime: env.ConnMaxLifetime,
		&c.ConnTimeout:     env.ConnTimeout,
	} {
		if v := lookup(key); v != "" {
			*dst = v
		}
	}
	for dst, key := range map[*int]string{
		&c.Port:         env.Port,
		&c.MaxOpenConns: env.MaxOpenConns,
		&c.MaxIdleConns: env.MaxIdleConns,
	} {
		if n, err := strconv.Atoi(lookup(key)); err == nil {
			*dst = n
		}
	}
	if b, err := strconv.ParseBool(lookup(env.AutoMigrate)); err == nil {
		c.AutoMigrate = b
	}
}

func lookup(key string) string {
	if key == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(key))
}

func (c *Config) validate() error {
	var errs []error
	switch c.Driver {
	case DriverPostgres:
		if c.Name == "" {
			errs = append(errs, errors.New("name required"))
		}
		if c.User == "" {
			errs = append(errs, errors.New("user required"))
		}
	case DriverSQLite:
		if c.Path == "" {
			errs = append(errs, errors.New("path required for sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported driver: %q", c.Driver))
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		errs = append(errs, fmt.Errorf("max_idle_conns %d exceeds max_open_conns %d", c.MaxIdleConns, c.MaxOpenConns))
	}
	if _, err := time.ParseDuration(c.ConnMaxLifetime); err != nil {
		errs = append(errs, fmt.Errorf("invalid conn_max_lifetime: %w", err))
	}
	if _, err := time.ParseDuration(c.ConnTimeout); err != nil {
		errs = append(errs, fmt.Errorf("invalid conn_timeout: %w", err))
	}
	return errors.Join(errs...)
}
