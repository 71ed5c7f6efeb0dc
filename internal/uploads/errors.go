package uploads

import (
	"errors"
	"net/http"
)

// Domain errors for upload operations.
var (
	ErrNotFound      = errors.New("upload not found")
	ErrDuplicate     = errors.New("upload already exists")
	ErrNotProcessing = errors.New("upload is no longer processing")
)

// MapHTTPStatus maps upload domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrNotProcessing) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
