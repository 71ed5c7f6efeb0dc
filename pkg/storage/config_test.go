package storage_test

import (
	"strings"
	"testing"

	"github.com/hodie-labs/ingest/pkg/storage"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := storage.Config{ConnectionString: "test-connection"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Provider != storage.ProviderAzure {
		t.Errorf("provider: got %s, want azure", cfg.Provider)
	}
	if cfg.ContainerName != "uploads" {
		t.Errorf("container_name: got %s, want uploads", cfg.ContainerName)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("max_retries: got %d, want 3", cfg.MaxRetries)
	}
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_PROVIDER", "local")
	t.Setenv("TEST_CONTAINER", "raw")
	t.Setenv("TEST_ROOT", "/tmp/blobs")
	t.Setenv("TEST_RETRIES", "5")

	env := &storage.Env{
		Provider:      "TEST_PROVIDER",
		ContainerName: "TEST_CONTAINER",
		Root:          "TEST_ROOT",
		MaxRetries:    "TEST_RETRIES",
	}

	cfg := storage.Config{}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Provider != storage.ProviderLocal {
		t.Errorf("provider: got %s, want local", cfg.Provider)
	}
	if cfg.ContainerName != "raw" {
		t.Errorf("container_name: got %s, want raw", cfg.ContainerName)
	}
	if cfg.Root != "/tmp/blobs" {
		t.Errorf("root: got %s, want /tmp/blobs", cfg.Root)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("max_retries: got %d, want 5", cfg.MaxRetries)
	}
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr string
	}{
		{
			name:    "azure without credentials",
			cfg:     storage.Config{ContainerName: "raw"},
			wantErr: "connection_string or account_url required",
		},
		{
			name:    "azure with account url",
			cfg:     storage.Config{AccountURL: "https://acct.blob.core.windows.net/"},
			wantErr: "",
		},
		{
			name:    "local needs no credentials",
			cfg:     storage.Config{Provider: storage.ProviderLocal},
			wantErr: "",
		},
		{
			name:    "unknown provider",
			cfg:     storage.Config{Provider: "s3"},
			wantErr: "unsupported storage provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := storage.Config{
		Provider:         storage.ProviderAzure,
		ContainerName:    "uploads",
		ConnectionString: "base-conn",
	}

	overlay := storage.Config{ConnectionString: "overlay-conn", Root: "/srv/blobs"}
	base.Merge(&overlay)

	if base.ContainerName != "uploads" {
		t.Errorf("container_name should remain uploads, got %s", base.ContainerName)
	}
	if base.ConnectionString != "overlay-conn" {
		t.Errorf("connection_string: got %s, want overlay-conn", base.ConnectionString)
	}
	if base.Root != "/srv/blobs" {
		t.Errorf("root: got %s, want /srv/blobs", base.Root)
	}
}
