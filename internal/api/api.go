// Package api wires the ingestion domain systems into the HTTP module
// mounted under the configured base path.
package api

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hodie-labs/ingest/internal/config"
	"github.com/hodie-labs/ingest/internal/infrastructure"
	"github.com/hodie-labs/ingest/pkg/middleware"
	"github.com/hodie-labs/ingest/pkg/module"
	"github.com/hodie-labs/ingest/pkg/openapi"
	"github.com/hodie-labs/ingest/pkg/pagination"
	"github.com/hodie-labs/ingest/pkg/routes"
)

// Runtime is the shared infrastructure seen through the API module: a
// module-scoped logger plus the settings the domain systems read.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination  pagination.Config
	Ingest      config.IngestConfig
	Interpreter config.InterpreterConfig
	MaxUpload   int64
}

func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	scoped := *infra
	scoped.Logger = infra.Logger.With("module", "api")

	return &Runtime{
		Infrastructure: &scoped,
		Pagination:     cfg.API.Pagination,
		Ingest:         cfg.Ingest,
		Interpreter:    cfg.Interpreter,
		MaxUpload:      cfg.API.MaxUploadSizeBytes(),
	}
}

// NewModule builds the domain, registers its routes, and serves the
// generated OpenAPI document at the configured path.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)
	groups := domain.groups(runtime)

	mux := http.NewServeMux()
	routes.Register(mux, groups...)

	doc, err := describe(cfg, groups)
	if err != nil {
		return nil, fmt.Errorf("openapi: %w", err)
	}
	mux.HandleFunc("GET "+cfg.API.OpenAPI.Path, openapi.ServeSpec(doc))

	m := module.New(cfg.API.BasePath, mux)
	for _, mw := range []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.Logger(runtime.Logger),
		middleware.Recover(runtime.Logger),
		middleware.Instrument(instrumentation(cfg, runtime), "api"),
		middleware.CORS(&cfg.API.CORS),
	} {
		m.Use(mw)
	}

	return m, nil
}

func (d *Domain) groups(runtime *Runtime) []routes.Group {
	return []routes.Group{
		d.Ingest.Handler(runtime.MaxUpload).Routes(),
		d.Uploads.Handler().Routes(),
		d.Records.Handler().Routes(),
		newContentHandler(d.Uploads, runtime.Storage, runtime.Logger).routes(),
		d.Quota.Handler().Routes(),
		d.Prompts.Handler().Routes(),
	}
}

func describe(cfg *config.Config, groups []routes.Group) ([]byte, error) {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	server := cfg.API.OpenAPI.ServerURL
	if server == "" {
		server = cfg.API.BasePath
	}
	spec.AddServer(server)
	routes.Describe(spec, "", groups...)
	return openapi.MarshalJSON(spec)
}

func instrumentation(cfg *config.Config, runtime *Runtime) prometheus.Registerer {
	if !cfg.Metrics.On() || runtime.Metrics == nil {
		return nil
	}
	return runtime.Metrics
}
