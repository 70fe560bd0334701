package handler

import (
	"net/http"
	"time"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	clobHost string
}

// NewHealthHandler creates a HealthHandler reporting the upstream CLOB host.
func NewHealthHandler(clobHost string) *HealthHandler {
	return &HealthHandler{clobHost: clobHost}
}

// Health reports process liveness and the configured upstream.
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"polymarket": h.clobHost,
	})
}
