package ingest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hodie-labs/ingest/internal/ingest"
	"github.com/hodie-labs/ingest/internal/parsers"
	"github.com/hodie-labs/ingest/pkg/storage"
)

type fakeSubmitter struct {
	got ingest.Command
	acc *ingest.Accepted
	err error
}

func (f *fakeSubmitter) Submit(_ context.Context, cmd ingest.Command) (*ingest.Accepted, error) {
	f.got = cmd
	return f.acc, f.err
}

func multipartRequest(t *testing.T, fields map[string]string, fileName, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		part, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/uploads", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(h *ingest.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func newHandler(sub ingest.Submitter) *ingest.Handler {
	return ingest.NewHandler(sub, slog.New(slog.NewTextHandler(io.Discard, nil)), 1<<20)
}

func TestHandlerAccepted(t *testing.T) {
	id := uuid.New()
	sub := &fakeSubmitter{acc: &ingest.Accepted{UploadID: id, RecordCount: 3, Format: parsers.FormatTabular}}

	req := multipartRequest(t, map[string]string{"category": "lab", "tenant_id": "form-tenant"}, "labs.csv", labCSV)
	req.Header.Set(ingest.TenantHeader, "header-tenant")

	rec, body := serve(newHandler(sub), req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, id.String(), body["upload_id"])
	assert.Equal(t, "tabular", body["format"])

	assert.Equal(t, "header-tenant", sub.got.TenantID, "header wins over form field")
	assert.Equal(t, "labs.csv", sub.got.FileName)
	assert.Equal(t, "lab", sub.got.Category)
	assert.Equal(t, labCSV, string(sub.got.Data))
}

func TestHandlerTenantFromForm(t *testing.T) {
	sub := &fakeSubmitter{acc: &ingest.Accepted{}}
	req := multipartRequest(t, map[string]string{"tenant_id": "form-tenant"}, "labs.csv", labCSV)

	rec, _ := serve(newHandler(sub), req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "form-tenant", sub.got.TenantID)
}

func TestHandlerMissingFile(t *testing.T) {
	sub := &fakeSubmitter{}
	req := multipartRequest(t, map[string]string{"tenant_id": "T1"}, "", "")

	rec, _ := serve(newHandler(sub), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRejections(t *testing.T) {
	original := uuid.New()
	tests := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, body map[string]any)
	}{
		{
			name:   "quota",
			err:    &ingest.QuotaExceededError{Count: 3, Limit: 3, Remaining: 0, ResetsAt: at},
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, body map[string]any) {
				assert.EqualValues(t, 0, body["remaining"])
				assert.EqualValues(t, 3, body["limit"])
			},
		},
		{
			name:   "duplicate",
			err:    &ingest.DuplicateContentError{OriginalUploadID: original, OriginalReceivedAt: at},
			status: http.StatusConflict,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, original.String(), body["original_upload_id"])
				assert.Equal(t, at.Format(time.RFC3339), body["original_received_at"])
			},
		},
		{
			name:   "unsupported",
			err:    &ingest.UnsupportedFormatError{FileName: "scan.exe", Extension: ".exe", Err: parsers.ErrUnsupportedFormat},
			status: http.StatusUnsupportedMediaType,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, ".exe", body["extension"])
			},
		},
		{
			name: "parse failed",
			err: &ingest.ParseFailedError{Diagnostics: []parsers.Diagnostic{
				{Severity: parsers.SeverityError, Message: "no data rows"},
			}},
			status: http.StatusUnprocessableEntity,
			check: func(t *testing.T, body map[string]any) {
				assert.Len(t, body["diagnostics"], 1)
			},
		},
		{
			name:   "persistence",
			err:    &ingest.PersistenceError{Stage: ingest.StagePersisting, Err: errors.New("disk full")},
			status: http.StatusInternalServerError,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, ingest.ErrPersistence.Error(), body["error"], "internal detail is not exposed")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{err: tt.err}
			req := multipartRequest(t, map[string]string{"tenant_id": "T1"}, "labs.csv", labCSV)

			rec, body := serve(newHandler(sub), req)
			require.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, body["error"])
			tt.check(t, body)
		})
	}
}

func TestDetailsNil(t *testing.T) {
	assert.Nil(t, ingest.Details(errors.New("other")))
	assert.Equal(t, http.StatusBadRequest, ingest.MapHTTPStatus(ingest.ErrInvalidCommand))
}

func TestHandlerQuotaRetryAfter(t *testing.T) {
	sub := &fakeSubmitter{err: &ingest.QuotaExceededError{
		TenantID: "T1", Count: 3, Limit: 3,
		ResetsAt: time.Now().Add(90 * time.Minute),
	}}
	h := ingest.NewHandler(sub, slog.New(slog.NewTextHandler(io.Discard, nil)), 1<<20)

	rec := httptest.NewRecorder()
	h.Submit(rec, multipartRequest(t, map[string]string{"tenant_id": "T1"}, "labs.csv", "a,b\n1,2\n"))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	secs, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 5400, secs, 5)
}

func TestHandlerRetryAfterPastReset(t *testing.T) {
	sub := &fakeSubmitter{err: &ingest.QuotaExceededError{
		TenantID: "T1", Count: 3, Limit: 3,
		ResetsAt: time.Now().Add(-time.Minute),
	}}
	h := ingest.NewHandler(sub, slog.New(slog.NewTextHandler(io.Discard, nil)), 1<<20)

	rec := httptest.NewRecorder()
	h.Submit(rec, multipartRequest(t, map[string]string{"tenant_id": "T1"}, "labs.csv", "a,b\n1,2\n"))

	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestHandlerFileTooLarge(t *testing.T) {
	sub := &fakeSubmitter{}
	h := ingest.NewHandler(sub, slog.New(slog.NewTextHandler(io.Discard, nil)), 2048)

	big := strings.Repeat("glucose,95,mg/dL\n", 300)
	rec, body := serve(h, multipartRequest(t, map[string]string{"tenant_id": "T1"}, "labs.csv", big))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "file exceeds maximum upload size of 2 KB", body["error"])
	assert.Empty(t, sub.got.TenantID, "oversized uploads must not reach the pipeline")
}

func TestHandlerStorageUnavailable(t *testing.T) {
	sub := &fakeSubmitter{err: &ingest.PersistenceError{
		Stage: "storing content",
		Err:   fmt.Errorf("upload blob k: %w", storage.ErrUnavailable),
	}}
	h := ingest.NewHandler(sub, slog.New(slog.NewTextHandler(io.Discard, nil)), 1<<20)

	rec, body := serve(h, multipartRequest(t, map[string]string{"tenant_id": "T1"}, "labs.csv", "a,b\n1,2\n"))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, storage.ErrUnavailable.Error(), body["error"])
}
