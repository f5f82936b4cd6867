package handler

import (
	"net/http"
)

// StatusHandler serves the process run mode and configured regions.
type StatusHandler struct {
	Mode    string
	Regions []string
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, regions []string) *StatusHandler {
	return &StatusHandler{Mode: mode, Regions: regions}
}

// GetStatus responds with the current mode and regions.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":    h.Mode,
		"regions": h.Regions,
	})
}
