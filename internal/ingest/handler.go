package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hodie-labs/ingest/pkg/formatting"
	"github.com/hodie-labs/ingest/pkg/handlers"
	"github.com/hodie-labs/ingest/pkg/openapi"
	"github.com/hodie-labs/ingest/pkg/routes"
	"github.com/hodie-labs/ingest/pkg/storage"
)

// TenantHeader carries the tenant identifier on submissions.
const TenantHeader = "X-Tenant-ID"

var (
	errFileTooLarge = errors.New("file exceeds maximum upload size")
	errMissingFile  = errors.New("multipart field \"file\" required")
)

// Submitter runs one upload submission.
type Submitter interface {
	Submit(ctx context.Context, cmd Command) (*Accepted, error)
}

// Handler serves upload submissions.
type Handler struct {
	sub           Submitter
	logger        *slog.Logger
	maxUploadSize int64
}

// NewHandler creates a submission handler.
func NewHandler(sub Submitter, logger *slog.Logger, maxUploadSize int64) *Handler {
	return &Handler{
		sub:           sub,
		logger:        logger.With("handler", "ingest"),
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the submission route. It shares the /uploads prefix with
// the read endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/uploads",
		Tags:   []string{"Uploads"},
		Schemas: map[string]*openapi.Schema{
			"Accepted": {
				Type: "object",
				Properties: map[string]*openapi.Schema{
					"upload_id":      {Type: "string", Format: "uuid"},
					"tenant_id":      {Type: "string"},
					"file_name":      {Type: "string"},
					"category":       {Type: "string"},
					"format":         {Type: "string"},
					"content_digest": {Type: "string"},
					"byte_size":      {Type: "integer"},
					"record_count":   {Type: "integer"},
					"confidence":     {Type: "integer"},
					"mappings":       {Type: "array", Items: &openapi.Schema{Type: "object"}},
					"diagnostics":    {Type: "array", Items: &openapi.Schema{Type: "object"}},
					"quota":          {Type: "object"},
					"received_at":    {Type: "string", Format: "date-time"},
				},
			},
		},
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Submit, OpenAPI: &openapi.Operation{
				Summary:     "Submit a health data file",
				Description: "Admits the upload against the tenant's daily limit, rejects content the tenant already uploaded, then parses, maps, and stores it.",
				Parameters: []*openapi.Parameter{
					openapi.HeaderParam(TenantHeader, "Tenant identifier; overrides the tenant_id form field", false),
				},
				RequestBody: openapi.RequestBodyMultipart(map[string]*openapi.Schema{
					"file":      {Type: "string", Format: "binary"},
					"category":  {Type: "string", Description: "Declared category; unknown values are treated as general"},
					"tenant_id": {Type: "string"},
				}, "file"),
				Responses: map[int]*openapi.Response{
					201: openapi.ResponseJSON("Upload accepted", "Accepted"),
					400: openapi.ResponseRef("BadRequest"),
					409: openapi.ResponseRef("Conflict"),
					413: {Description: "File too large"},
					415: openapi.ResponseRef("UnsupportedMediaType"),
					422: openapi.ResponseRef("UnprocessableEntity"),
					429: openapi.ResponseRef("TooManyRequests"),
					503: openapi.ResponseRef("ServiceUnavailable"),
				},
			}},
		},
	}
}

// Submit reads a multipart upload and runs it through the pipeline.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1<<20)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, h.tooLarge())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errMissingFile)
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, h.tooLarge())
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	tenant := strings.TrimSpace(r.Header.Get(TenantHeader))
	if tenant == "" {
		tenant = r.FormValue("tenant_id")
	}

	acc, err := h.sub.Submit(r.Context(), Command{
		TenantID:    tenant,
		FileName:    header.Filename,
		Category:    r.FormValue("category"),
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		status := MapHTTPStatus(err)
		switch status {
		case http.StatusInternalServerError:
			handlers.RespondError(w, h.logger, status, ErrPersistence)
			return
		case http.StatusServiceUnavailable:
			w.Header().Set("Retry-After", unavailableRetryAfter)
			handlers.RespondError(w, h.logger, status, storage.ErrUnavailable)
			return
		}
		var quotaErr *QuotaExceededError
		if errors.As(err, &quotaErr) {
			w.Header().Set("Retry-After", retryAfter(quotaErr.ResetsAt))
		}
		handlers.RespondRejection(w, h.logger, status, err, Details(err))
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, acc)
}

func (h *Handler) tooLarge() error {
	return fmt.Errorf("%w of %s", errFileTooLarge, formatting.FormatBytes(h.maxUploadSize, 0))
}

// unavailableRetryAfter is the back-off, in seconds, suggested when
// blob storage is throttling.
const unavailableRetryAfter = "30"

// retryAfter renders the whole seconds until reset, never less than one.
func retryAfter(reset time.Time) string {
	secs := int64(time.Until(reset).Seconds() + 0.999)
	return strconv.FormatInt(max(secs, 1), 10)
}
