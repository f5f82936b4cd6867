package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// PipelineHandler serves the update trigger endpoint.
type PipelineHandler struct {
	logger    *slog.Logger
	triggerCh chan<- struct{} // when non-nil, sending triggers one update cycle
}

// NewPipelineHandler creates a PipelineHandler with the given logger.
func NewPipelineHandler(logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{logger: logger}
}

// WithTriggerChannel sets the channel to send on when a trigger is requested.
// The orchestrator loop must receive from this channel to run one cycle.
func (h *PipelineHandler) WithTriggerChannel(ch chan<- struct{}) *PipelineHandler {
	h.triggerCh = ch
	return h
}

// TriggerUpdate enqueues one update cycle over every configured region.
// POST /api/update/trigger
func (h *PipelineHandler) TriggerUpdate(w http.ResponseWriter, r *http.Request) {
	if h.triggerCh == nil {
		writeError(w, http.StatusServiceUnavailable, "updates are not running in this process")
		return
	}
	h.logger.InfoContext(r.Context(), "handler: update trigger requested")
	queued := true
	select {
	case h.triggerCh <- struct{}{}:
	default:
		// already triggered and not yet consumed
		queued = false
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"queued":       queued,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
