package prompts

import (
	"errors"
	"fmt"
	"net/http"
)

// MaxInstructionsLength bounds an override so a prompt cannot crowd the
// file excerpt out of the remote interpreter's context.
const MaxInstructionsLength = 16 << 10

var (
	ErrNotFound            = errors.New("prompt not found")
	ErrDuplicate           = errors.New("prompt name already exists")
	ErrInvalidID           = errors.New("invalid prompt id")
	ErrInvalidCategory     = errors.New("unknown category")
	ErrInvalidPrompt       = errors.New("name and instructions are required")
	ErrInstructionsTooLong = fmt.Errorf("instructions exceed %d bytes", MaxInstructionsLength)
)

var statusByError = []struct {
	err    error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrDuplicate, http.StatusConflict},
	{ErrInvalidID, http.StatusBadRequest},
	{ErrInvalidCategory, http.StatusBadRequest},
	{ErrInvalidPrompt, http.StatusBadRequest},
	{ErrInstructionsTooLong, http.StatusRequestEntityTooLarge},
}

// MapHTTPStatus returns the status for the first prompt error err wraps.
func MapHTTPStatus(err error) int {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}
