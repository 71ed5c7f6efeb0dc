package uploads

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hodie-labs/ingest/internal/parsers"
	"github.com/hodie-labs/ingest/pkg/handlers"
	"github.com/hodie-labs/ingest/pkg/openapi"
	"github.com/hodie-labs/ingest/pkg/pagination"
	"github.com/hodie-labs/ingest/pkg/routes"
)

var errInvalidID = errors.New("invalid upload id")

// Handler provides HTTP endpoints for reading and removing uploads.
// Submitting uploads is served by the ingest handler.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "uploads"),
		pagination: pagination,
	}
}

// Schemas describes the upload resource for the OpenAPI document.
var Schemas = map[string]*openapi.Schema{
	"Upload": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":             {Type: "string", Format: "uuid"},
			"tenant_id":      {Type: "string"},
			"file_name":      {Type: "string"},
			"content_digest": {Type: "string"},
			"byte_size":      {Type: "integer"},
			"content_type":   {Type: "string"},
			"format":         {Type: "string"},
			"category":       {Type: "string"},
			"storage_key":    {Type: "string"},
			"status":         {Type: "string", Enum: []string{string(StatusProcessing), string(StatusCompleted), string(StatusFailed)}},
			"record_count":   {Type: "integer"},
			"confidence":     {Type: "integer"},
			"diagnostics":    {Type: "array", Items: &openapi.Schema{Type: "object"}},
			"mappings":       {Type: "array", Items: &openapi.Schema{Type: "object"}},
			"error_message":  {Type: "string"},
			"received_at":    {Type: "string", Format: "date-time"},
			"updated_at":     {Type: "string", Format: "date-time"},
		},
	},
}

// Routes returns the route group definition for upload endpoints.
func (h *Handler) Routes() routes.Group {
	idParam := []*openapi.Parameter{openapi.PathParam("id", "Upload ID")}

	return routes.Group{
		Prefix:  "/uploads",
		Tags:    []string{"Uploads"},
		Schemas: Schemas,
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: &openapi.Operation{
				Summary: "List uploads",
				Parameters: []*openapi.Parameter{
					openapi.QueryParam("page", "integer", "Page number", false),
					openapi.QueryParam("page_size", "integer", "Results per page", false),
					openapi.QueryParam("tenant_id", "string", "Tenant filter", false),
					openapi.QueryEnum("status", "Status filter",
						string(StatusProcessing), string(StatusCompleted), string(StatusFailed)),
					openapi.QueryEnum("category", "Category filter", parsers.Categories()...),
					openapi.QueryParam("file_name", "string", "File name contains", false),
					openapi.QueryParam("received_after", "string", "RFC 3339 lower bound, inclusive", false),
					openapi.QueryParam("received_before", "string", "RFC 3339 upper bound, exclusive", false),
				},
				Responses: map[int]*openapi.Response{
					200: {Description: "Page of uploads"},
				},
			}},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: &openapi.Operation{
				Summary:    "Find an upload",
				Parameters: idParam,
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Upload", "Upload"),
					400: openapi.ResponseRef("BadRequest"),
					404: openapi.ResponseRef("NotFound"),
				},
			}},
			{Method: "POST", Pattern: "/search", Handler: h.Search, OpenAPI: &openapi.Operation{
				Summary:     "Search uploads",
				RequestBody: openapi.RequestBodyJSON("PageRequest", true),
				Responses: map[int]*openapi.Response{
					200: {Description: "Page of uploads"},
					400: openapi.ResponseRef("BadRequest"),
				},
			}},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete, OpenAPI: &openapi.Operation{
				Summary:    "Delete an upload, its records, and its blob",
				Parameters: idParam,
				Responses: map[int]*openapi.Response{
					204: {Description: "Deleted"},
					404: openapi.ResponseRef("NotFound"),
				},
			}},
		},
	}
}

// List returns a paginated list of uploads with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single upload by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidID)
		return
	}

	u, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, u)
}

// Search accepts a JSON body with pagination and filter criteria and returns matching uploads.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Delete removes an upload by its UUID path parameter.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidID)
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
