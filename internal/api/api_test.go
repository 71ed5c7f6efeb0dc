package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/hodie-labs/ingest/internal/api"
	"github.com/hodie-labs/ingest/internal/config"
	"github.com/hodie-labs/ingest/internal/infrastructure"
	"github.com/hodie-labs/ingest/pkg/database"
	"github.com/hodie-labs/ingest/pkg/storage"
)

const labCSV = "test,value,unit\nglucose,95,mg/dL\nldl,110,mg/dL\n"

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		Database: database.Config{
			Driver:      database.DriverSQLite,
			Path:        filepath.Join(dir, "ingest.db"),
			AutoMigrate: true,
		},
		Storage: storage.Config{
			Provider: storage.ProviderLocal,
			Root:     filepath.Join(dir, "blobs"),
		},
		Usage: config.UsageConfig{
			Sink:   config.UsageSinkLog,
			Buffer: 4,
		},
		Version: "0.1.0",
	}
	cfg.API.OpenAPI.Title = "Health Ingest API"

	if err := cfg.Database.Finalize(nil); err != nil {
		t.Fatalf("finalize database config: %v", err)
	}
	if err := cfg.API.Finalize(); err != nil {
		t.Fatalf("finalize api config: %v", err)
	}
	if err := cfg.Ingest.Finalize(); err != nil {
		t.Fatalf("finalize ingest config: %v", err)
	}
	return cfg
}

func startInfra(t *testing.T, cfg *config.Config) *infrastructure.Infrastructure {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	infra, err := infrastructure.NewWithLogger(cfg, logger)
	if err != nil {
		t.Fatalf("infrastructure.New() error = %v", err)
	}
	if err := infra.Start(); err != nil {
		t.Fatalf("infrastructure.Start() error = %v", err)
	}
	if err := infra.Lifecycle.WaitForStartup(); err != nil {
		t.Fatalf("WaitForStartup() error = %v", err)
	}

	t.Cleanup(func() {
		if err := infra.Lifecycle.Shutdown(5 * time.Second); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	})
	return infra
}

func TestNewModule(t *testing.T) {
	cfg := validConfig(t)
	infra := startInfra(t, cfg)

	m, err := api.NewModule(cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}
	if m == nil {
		t.Fatal("NewModule() returned nil")
	}
	if m.Prefix() != "/api" {
		t.Errorf("Prefix() = %q, want /api", m.Prefix())
	}
}

func TestNewRuntime(t *testing.T) {
	cfg := validConfig(t)
	infra := startInfra(t, cfg)

	runtime := api.NewRuntime(cfg, infra)

	if runtime.Infrastructure == nil {
		t.Fatal("Infrastructure is nil")
	}
	if runtime.Logger == infra.Logger {
		t.Error("runtime logger should be module-scoped")
	}
	if runtime.Pagination.DefaultPageSize != cfg.API.Pagination.DefaultPageSize {
		t.Errorf("Pagination.DefaultPageSize = %d, want %d",
			runtime.Pagination.DefaultPageSize, cfg.API.Pagination.DefaultPageSize)
	}
	if runtime.Ingest.DailyLimit != 3 {
		t.Errorf("Ingest.DailyLimit = %d, want 3", runtime.Ingest.DailyLimit)
	}
}

func TestNewDomain(t *testing.T) {
	cfg := validConfig(t)
	infra := startInfra(t, cfg)

	domain := api.NewDomain(api.NewRuntime(cfg, infra))

	if domain.Uploads == nil {
		t.Error("Uploads is nil")
	}
	if domain.Records == nil {
		t.Error("Records is nil")
	}
	if domain.Prompts == nil {
		t.Error("Prompts is nil")
	}
	if domain.Quota == nil {
		t.Error("Quota is nil")
	}
	if domain.Dedup == nil {
		t.Error("Dedup is nil")
	}
	if domain.Interpreter == nil {
		t.Error("Interpreter is nil")
	}
	if domain.Ingest == nil {
		t.Error("Ingest is nil")
	}
	if domain.Metrics == nil {
		t.Error("Metrics is nil")
	}
}

func uploadRequest(t *testing.T, tenant, fileName, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("category", "lab"); err != nil {
		t.Fatal(err)
	}
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-Tenant-ID", tenant)
	return req
}

func TestModuleUploadFlow(t *testing.T) {
	cfg := validConfig(t)
	infra := startInfra(t, cfg)

	m, err := api.NewModule(cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	rec := httptest.NewRecorder()
	m.Serve(rec, uploadRequest(t, "T1", "labs.csv", labCSV))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first upload status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var accepted struct {
		UploadID    string `json:"upload_id"`
		RecordCount int    `json:"record_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("decode accepted: %v", err)
	}
	if accepted.RecordCount != 2 {
		t.Errorf("record_count = %d, want 2", accepted.RecordCount)
	}

	rec = httptest.NewRecorder()
	m.Serve(rec, uploadRequest(t, "T1", "labs-again.csv", labCSV))
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate upload status = %d, want 409", rec.Code)
	}

	rec = httptest.NewRecorder()
	m.Serve(rec, httptest.NewRequest(http.MethodGet, "/api/quota/T1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("quota status = %d, want 200", rec.Code)
	}
	var status struct {
		Count     int `json:"count"`
		Remaining int `json:"remaining"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode quota: %v", err)
	}
	if status.Count != 1 || status.Remaining != 2 {
		t.Errorf("quota = %+v, want count 1 remaining 2", status)
	}

	rec = httptest.NewRecorder()
	m.Serve(rec, httptest.NewRequest(http.MethodGet, "/api/uploads/"+accepted.UploadID+"/content", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("content status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != labCSV {
		t.Errorf("content = %q, want original bytes", rec.Body.String())
	}
}

func TestModuleServesOpenAPI(t *testing.T) {
	cfg := validConfig(t)
	infra := startInfra(t, cfg)

	m, err := api.NewModule(cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	rec := httptest.NewRecorder()
	m.Serve(rec, httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode spec: %v", err)
	}
	if doc.Info.Title != "Health Ingest API" {
		t.Errorf("title = %q", doc.Info.Title)
	}
	if _, ok := doc.Paths["/uploads"]; !ok {
		t.Error("paths missing /uploads")
	}
}

func TestModuleInstrumentsRequests(t *testing.T) {
	cfg := validConfig(t)
	infra := startInfra(t, cfg)

	m, err := api.NewModule(cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	m.Serve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/quota/T1", nil))

	families, err := infra.Metrics.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "api_http_requests_total" {
			return
		}
	}
	t.Error("api_http_requests_total not registered")
}
