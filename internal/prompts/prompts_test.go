package prompts_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/hodie-labs/ingest/internal/prompts"
)

func ptr[T any](v T) *T { return &v }

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", prompts.ErrNotFound, http.StatusNotFound},
		{"duplicate", prompts.ErrDuplicate, http.StatusConflict},
		{"invalid category", prompts.ErrInvalidCategory, http.StatusBadRequest},
		{"invalid prompt", prompts.ErrInvalidPrompt, http.StatusBadRequest},
		{"invalid id", prompts.ErrInvalidID, http.StatusBadRequest},
		{"instructions too long", prompts.ErrInstructionsTooLong, http.StatusRequestEntityTooLarge},
		{"unknown error", errors.New("something else"), http.StatusInternalServerError},
		{"wrapped not found", fmt.Errorf("find failed: %w", prompts.ErrNotFound), http.StatusNotFound},
		{"wrapped duplicate", fmt.Errorf("insert failed: %w", prompts.ErrDuplicate), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := prompts.MapHTTPStatus(tt.err)
			if got != tt.want {
				t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestCategoryUnmarshalJSON(t *testing.T) {
	t.Run("valid category", func(t *testing.T) {
		var c prompts.Category
		if err := json.Unmarshal([]byte(`"genetic"`), &c); err != nil {
			t.Fatalf("Unmarshal error: %v", err)
		}
		if c != "genetic" {
			t.Errorf("category = %q, want genetic", c)
		}
	})

	t.Run("alias is not canonical", func(t *testing.T) {
		var c prompts.Category
		err := json.Unmarshal([]byte(`"bloodwork"`), &c)
		if !errors.Is(err, prompts.ErrInvalidCategory) {
			t.Errorf("Unmarshal(bloodwork) error = %v, want ErrInvalidCategory", err)
		}
	})

	t.Run("non-string returns error", func(t *testing.T) {
		var c prompts.Category
		if err := json.Unmarshal([]byte(`42`), &c); err == nil {
			t.Error("Unmarshal(42) should return error")
		}
	})
}

func TestParseCategory(t *testing.T) {
	for _, name := range prompts.Categories() {
		if _, err := prompts.ParseCategory(string(name)); err != nil {
			t.Errorf("ParseCategory(%q) error = %v", name, err)
		}
	}

	if _, err := prompts.ParseCategory(""); !errors.Is(err, prompts.ErrInvalidCategory) {
		t.Errorf("ParseCategory('') error = %v, want ErrInvalidCategory", err)
	}
}

func TestDefaultInstructions(t *testing.T) {
	lab := prompts.DefaultInstructions("lab")
	if !strings.Contains(lab, "laboratory results") {
		t.Errorf("lab instructions missing category guidance: %q", lab)
	}

	unknown := prompts.DefaultInstructions("astrology")
	if unknown != prompts.DefaultInstructions("general") {
		t.Error("unknown category should use the general instructions")
	}
}

func TestSpecListsCollections(t *testing.T) {
	spec := prompts.Spec()
	for _, c := range []string{"lab_results", "genetic_markers", "unclassified_metrics"} {
		if !strings.Contains(spec, c) {
			t.Errorf("spec missing collection %q", c)
		}
	}
}

func TestFiltersFromQuery(t *testing.T) {
	f := prompts.FiltersFromQuery(url.Values{"active": {"nope"}, "name": {"x"}})
	if f.Active != nil {
		t.Errorf("active = %v, want nil for unparseable value", *f.Active)
	}
	if f.Name == nil || *f.Name != "x" {
		t.Errorf("name = %v, want x", f.Name)
	}
	if f.Category != nil {
		t.Errorf("category = %v, want nil", f.Category)
	}
}
