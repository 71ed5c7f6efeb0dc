package quota

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidTenant indicates an empty tenant identifier.
	ErrInvalidTenant = errors.New("tenant id required")
	// ErrNotAdmitted indicates Release was called for a rejected admission.
	ErrNotAdmitted = errors.New("admission was not granted")
)

// MapHTTPStatus maps quota errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrInvalidTenant) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
