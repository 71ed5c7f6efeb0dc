package config

import (
	"fmt"
	"os"

	"github.com/hodie-labs/ingest/pkg/formatting"
	"github.com/hodie-labs/ingest/pkg/middleware"
	"github.com/hodie-labs/ingest/pkg/openapi"
	"github.com/hodie-labs/ingest/pkg/pagination"
)

const (
	EnvAPIBasePath      = "HODIE_API_BASE_PATH"
	EnvAPIMaxUploadSize = "HODIE_API_MAX_UPLOAD_SIZE"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "HODIE_CORS_ENABLED",
	Origins:          "HODIE_CORS_ORIGINS",
	AllowedMethods:   "HODIE_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "HODIE_CORS_ALLOWED_HEADERS",
	ExposedHeaders:   "HODIE_CORS_EXPOSED_HEADERS",
	AllowCredentials: "HODIE_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "HODIE_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "HODIE_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "HODIE_PAGINATION_MAX_PAGE_SIZE",
}

var openapiEnv = &openapi.ConfigEnv{
	Title:       "HODIE_OPENAPI_TITLE",
	Description: "HODIE_OPENAPI_DESCRIPTION",
	Path:        "HODIE_OPENAPI_PATH",
	ServerURL:   "HODIE_OPENAPI_SERVER_URL",
}

const defaultMaxUploadBytes = 25 * 1024 * 1024

// APIConfig holds API routing, upload limits, CORS, pagination, and OpenAPI settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
	OpenAPI       openapi.Config        `toml:"openapi"`
}

// MaxUploadSizeBytes returns MaxUploadSize in bytes.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil || size <= 0 {
		return defaultMaxUploadBytes
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openapiEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "25MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv(EnvAPIBasePath); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv(EnvAPIMaxUploadSize); v != "" {
		c.MaxUploadSize = v
	}
}

func (c *APIConfig) validate() error {
	if _, err := formatting.ParseBytes(c.MaxUploadSize); err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	}
	return nil
}
