package quota

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hodie-labs/ingest/pkg/handlers"
	"github.com/hodie-labs/ingest/pkg/openapi"
	"github.com/hodie-labs/ingest/pkg/routes"
)

// Handler serves read-only quota reports.
type Handler struct {
	ledger Ledger
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a quota handler.
func NewHandler(ledger Ledger, logger *slog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		logger: logger.With("handler", "quota"),
		now:    time.Now,
	}
}

// Routes returns the quota route group.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/quota",
		Tags:   []string{"Quota"},
		Schemas: map[string]*openapi.Schema{
			"QuotaWindow": {
				Type: "object",
				Properties: map[string]*openapi.Schema{
					"tenant_id": {Type: "string"},
					"day":       {Type: "string", Format: "date"},
					"count":     {Type: "integer"},
					"limit":     {Type: "integer"},
					"remaining": {Type: "integer"},
					"resets_at": {Type: "string", Format: "date-time"},
				},
			},
		},
		Routes: []routes.Route{
			{
				Method:  "GET",
				Pattern: "/{tenant}",
				Handler: h.Usage,
				OpenAPI: &openapi.Operation{
					Summary:    "Remaining uploads for a tenant today",
					Parameters: []*openapi.Parameter{openapi.PathParamString("tenant", "Tenant identifier")},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Quota window", "QuotaWindow"),
						400: openapi.ResponseRef("BadRequest"),
					},
				},
			},
		},
	}
}

// Usage reports the tenant's current window.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	window, err := h.ledger.Usage(r.Context(), r.PathValue("tenant"), h.now())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, window)
}
