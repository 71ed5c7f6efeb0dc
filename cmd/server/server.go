package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hodie-labs/ingest/internal/api"
	"github.com/hodie-labs/ingest/internal/config"
	"github.com/hodie-labs/ingest/internal/infrastructure"
	"github.com/hodie-labs/ingest/pkg/handlers"
	"github.com/hodie-labs/ingest/pkg/module"
)

type Server struct {
	infra *infrastructure.Infrastructure
	http  *httpServer
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}

	router := newRouter(infra, cfg)
	router.Mount(apiModule)

	attrs := []any{
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"modules", router.Prefixes(),
		"daily_limit", cfg.Ingest.DailyLimit,
	}
	if cfg.Metrics.On() && cfg.Metrics.Path != "" {
		attrs = append(attrs, "metrics", cfg.Metrics.Path)
	}
	infra.Logger.Info("server initialized", attrs...)

	return &Server{
		infra: infra,
		http:  newHTTPServer(&cfg.Server, router, infra.Logger),
	}, nil
}

// newRouter serves the probes and the scrape endpoint outside any module,
// so they bypass module middleware.
func newRouter(infra *infrastructure.Infrastructure, cfg *config.Config) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !infra.Lifecycle.Ready() {
			handlers.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		handlers.RespondJSON(w, http.StatusOK, map[string]string{
			"status":  "ready",
			"version": cfg.Version,
		})
	})

	if cfg.Metrics.On() && cfg.Metrics.Path != "" {
		router.Handle("GET "+cfg.Metrics.Path, promhttp.HandlerFor(infra.Metrics, promhttp.HandlerOpts{
			Registry: infra.Metrics,
		}))
	}

	return router
}

func (s *Server) Start() error {
	s.infra.Logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}

	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		s.infra.Lifecycle.Shutdown(s.http.shutdownTimeout)
		return err
	}

	go func() {
		if err := s.infra.Lifecycle.WaitForStartup(); err != nil {
			s.infra.Logger.Error("startup failed, readiness withheld", "error", err)
			return
		}
		s.infra.Logger.Info("all subsystems ready", "addr", s.http.Addr().String())
	}()

	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown")
	return s.infra.Lifecycle.Shutdown(timeout)
}
