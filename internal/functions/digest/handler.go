// internal/functions/digest/handler.go
package digest

import (
	"encoding/json"
	"io"
	"net/http"

	commonhttp "congregation-functions/internal/common/http"
	"congregation-functions/internal/common/logger"
)

// Handler is the HTTP surface of the board-digest function. It is invoked
// by a scheduler for the chain head and by the service itself for
// continuation pages.
type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if commonhttp.HandlePreflight(w, r) {
		return
	}
	commonhttp.SetCORSHeaders(w)

	if r.Method != http.MethodPost {
		h.writeJSON(w, http.StatusMethodNotAllowed, &Output{Success: false, Error: "only POST is supported"})
		return
	}

	// The body is optional; a bare POST starts a fresh run.
	var input Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && err != io.EOF {
		h.writeJSON(w, http.StatusBadRequest, &Output{Success: false, Error: "request body is not valid JSON"})
		return
	}

	// Unhandled batch failures still answer 200; the caller is a scheduler
	// that inspects the body, not the status.
	h.writeJSON(w, http.StatusOK, h.service.Run(r.Context(), input))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body *Output) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response encoding failed", map[string]interface{}{"error": err.Error()})
	}
}
