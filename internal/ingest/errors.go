package ingest

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hodie-labs/ingest/internal/parsers"
	"github.com/hodie-labs/ingest/pkg/storage"
)

// Sentinels for the rejection kinds a submission can end in. Each typed
// error below unwraps to one of them.
var (
	ErrInvalidCommand    = errors.New("invalid upload")
	ErrQuotaExceeded     = errors.New("daily upload limit reached")
	ErrDuplicateContent  = errors.New("content already uploaded")
	ErrUnsupportedFormat = parsers.ErrUnsupportedFormat
	ErrParseFailed       = errors.New("no rows could be parsed")
	ErrPersistence       = errors.New("ingestion failed")
)

// QuotaExceededError reports a rejected admission.
type QuotaExceededError struct {
	TenantID  string
	Count     int
	Limit     int
	Remaining int
	ResetsAt  time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily upload limit reached: %d of %d used", e.Count, e.Limit)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// DuplicateContentError identifies the upload that already holds the content.
type DuplicateContentError struct {
	OriginalUploadID   uuid.UUID
	OriginalReceivedAt time.Time
}

func (e *DuplicateContentError) Error() string {
	return fmt.Sprintf("content already uploaded as %s at %s",
		e.OriginalUploadID, e.OriginalReceivedAt.Format(time.RFC3339))
}

func (e *DuplicateContentError) Unwrap() error { return ErrDuplicateContent }

// UnsupportedFormatError reports a file no parser handles. The upload is
// recorded as failed under UploadID.
type UnsupportedFormatError struct {
	UploadID  uuid.UUID
	FileName  string
	Extension string
	Err       error
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file %q: %v", e.FileName, e.Err)
}

func (e *UnsupportedFormatError) Unwrap() error { return ErrUnsupportedFormat }

// ParseFailedError reports a file that produced no rows. The upload is
// recorded as failed under UploadID.
type ParseFailedError struct {
	UploadID    uuid.UUID
	Format      parsers.Format
	Diagnostics []parsers.Diagnostic
}

func (e *ParseFailedError) Error() string {
	return fmt.Sprintf("no rows could be parsed from %s content (%d diagnostics)", e.Format, len(e.Diagnostics))
}

func (e *ParseFailedError) Unwrap() error { return ErrParseFailed }

// PersistenceError reports a failure after admission. Any quota, duplicate
// reservation, and blob the submission held have been released.
type PersistenceError struct {
	Stage string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ingestion failed while %s: %v", e.Stage, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// MapHTTPStatus maps submission errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrDuplicateContent):
		return http.StatusConflict
	case errors.Is(err, ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrParseFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Details returns the structured fields a caller needs to explain a
// rejection. It returns nil for errors without details.
func Details(err error) map[string]any {
	var (
		quota       *QuotaExceededError
		duplicate   *DuplicateContentError
		unsupported *UnsupportedFormatError
		parse       *ParseFailedError
	)

	switch {
	case errors.As(err, &quota):
		return map[string]any{
			"count":     quota.Count,
			"limit":     quota.Limit,
			"remaining": quota.Remaining,
			"resets_at": quota.ResetsAt,
		}
	case errors.As(err, &duplicate):
		return map[string]any{
			"original_upload_id":   duplicate.OriginalUploadID,
			"original_received_at": duplicate.OriginalReceivedAt,
		}
	case errors.As(err, &unsupported):
		return map[string]any{
			"upload_id": unsupported.UploadID,
			"file_name": unsupported.FileName,
			"extension": unsupported.Extension,
		}
	case errors.As(err, &parse):
		return map[string]any{
			"upload_id":   parse.UploadID,
			"format":      parse.Format,
			"diagnostics": parse.Diagnostics,
		}
	}
	return nil
}
