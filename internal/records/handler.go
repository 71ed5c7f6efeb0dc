package records

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hodie-labs/ingest/pkg/handlers"
	"github.com/hodie-labs/ingest/pkg/openapi"
	"github.com/hodie-labs/ingest/pkg/pagination"
	"github.com/hodie-labs/ingest/pkg/routes"
)

var errInvalidID = errors.New("invalid upload id")

// Handler serves the categorized records of an upload.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "records"),
		pagination: pagination,
	}
}

// Routes returns the route group for record endpoints. Records are
// nested under their upload.
func (h *Handler) Routes() routes.Group {
	idParam := openapi.PathParam("id", "Upload ID")

	return routes.Group{
		Prefix: "/uploads",
		Tags:   []string{"Records"},
		Schemas: map[string]*openapi.Schema{
			"HealthRecord": {
				Type: "object",
				Properties: map[string]*openapi.Schema{
					"id":         {Type: "string", Format: "uuid"},
					"upload_id":  {Type: "string", Format: "uuid"},
					"tenant_id":  {Type: "string"},
					"collection": {Type: "string"},
					"category":   {Type: "string"},
					"row_index":  {Type: "integer"},
					"fields":     {Type: "object"},
					"confidence": {Type: "integer"},
					"created_at": {Type: "string", Format: "date-time"},
				},
			},
		},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/records", Handler: h.List, OpenAPI: &openapi.Operation{
				Summary: "List records produced by an upload",
				Parameters: []*openapi.Parameter{
					idParam,
					openapi.QueryParam("collection", "string", "Target collection filter", false),
					openapi.QueryParam("min_confidence", "integer", "Minimum record confidence, 0 to 100", false),
					openapi.QueryParam("page", "integer", "Page number", false),
					openapi.QueryParam("page_size", "integer", "Results per page", false),
				},
				Responses: map[int]*openapi.Response{
					200: {Description: "Page of records"},
					400: openapi.ResponseRef("BadRequest"),
				},
			}},
			{Method: "GET", Pattern: "/{id}/collections", Handler: h.Collections, OpenAPI: &openapi.Operation{
				Summary:    "Count an upload's records per collection",
				Parameters: []*openapi.Parameter{idParam},
				Responses: map[int]*openapi.Response{
					200: {Description: "Record counts keyed by collection"},
					400: openapi.ResponseRef("BadRequest"),
				},
			}},
		},
	}
}

// List returns a page of the upload's records.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidID)
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.ListByUpload(r.Context(), id, page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Collections returns record counts per target collection.
func (h *Handler) Collections(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidID)
		return
	}

	counts, err := h.sys.Collections(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, counts)
}
