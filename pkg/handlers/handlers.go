// Package handlers provides shared JSON response helpers for HTTP handlers.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// RespondJSON writes data as a JSON body with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError logs err and writes it as {"error": "..."} with the given status code.
func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	logger.Error("handler error", "error", err, "status", status)
	RespondJSON(w, status, map[string]string{"error": err.Error()})
}

// RespondRejection writes a structured rejection body. The error message is stored
// under "error" and details are merged alongside it. Rejections are expected outcomes
// and are logged at info level.
func RespondRejection(w http.ResponseWriter, logger *slog.Logger, status int, err error, details map[string]any) {
	logger.Info("request rejected", "error", err, "status", status)

	body := make(map[string]any, len(details)+1)
	for k, v := range details {
		body[k] = v
	}
	body["error"] = err.Error()

	RespondJSON(w, status, body)
}
