package dedup

import (
	"errors"
	"net/http"
)

// Domain errors for content reservations.
var (
	ErrNotFound      = errors.New("content reservation not found")
	ErrInvalidTenant = errors.New("tenant id required")
	ErrInvalidDigest = errors.New("content digest required")
	ErrContended     = errors.New("reservation changed during lookup")
)

// MapHTTPStatus maps dedup errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTenant), errors.Is(err, ErrInvalidDigest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
