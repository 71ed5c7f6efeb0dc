package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/hodie-labs/ingest/internal/uploads"
	"github.com/hodie-labs/ingest/pkg/handlers"
	"github.com/hodie-labs/ingest/pkg/openapi"
	"github.com/hodie-labs/ingest/pkg/routes"
	"github.com/hodie-labs/ingest/pkg/storage"
)

var errInvalidUploadID = errors.New("invalid upload id")

// contentHandler streams an upload's raw file from blob storage.
type contentHandler struct {
	uploads uploads.System
	store   storage.System
	logger  *slog.Logger
}

func newContentHandler(
	ups uploads.System,
	store storage.System,
	logger *slog.Logger,
) *contentHandler {
	return &contentHandler{
		uploads: ups,
		store:   store,
		logger:  logger.With("handler", "content"),
	}
}

func (h *contentHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/uploads",
		Tags:   []string{"Uploads"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/content", Handler: h.download, OpenAPI: &openapi.Operation{
				Summary:    "Download the raw uploaded file",
				Parameters: []*openapi.Parameter{openapi.PathParam("id", "Upload ID")},
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseBinary("Raw file bytes"),
					400: openapi.ResponseRef("BadRequest"),
					404: openapi.ResponseRef("NotFound"),
					503: openapi.ResponseRef("ServiceUnavailable"),
				},
			}},
		},
	}
}

func (h *contentHandler) download(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidUploadID)
		return
	}

	u, err := h.uploads.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, uploads.MapHTTPStatus(err), err)
		return
	}

	body, err := h.store.Download(r.Context(), u.StorageKey)
	if err != nil {
		status := storage.MapHTTPStatus(err)
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "30")
		}
		handlers.RespondError(w, h.logger, status, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", u.ContentType)
	if u.ByteSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(u.ByteSize, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", u.FileName))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, body)
}
