package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// CycleHandler serves the update audit log.
type CycleHandler struct {
	cycles domain.CycleStore
	logger *slog.Logger
}

// NewCycleHandler creates a CycleHandler.
func NewCycleHandler(cycles domain.CycleStore, logger *slog.Logger) *CycleHandler {
	return &CycleHandler{cycles: cycles, logger: logHandler(logger, "cycles")}
}

type cycleJSON struct {
	CycleID        string `json:"cycle_id"`
	File           string `json:"file"`
	RecordsAdded   int    `json:"records_added"`
	EntriesAdded   int    `json:"entries_added"`
	RecordsRemoved int    `json:"records_removed"`
	EntriesRemoved int    `json:"entries_removed"`
	Entries        int    `json:"entries"`
	StartedAt      string `json:"started_at"`
	FinishedAt     string `json:"finished_at"`
	Error          string `json:"error,omitempty"`
}

// ListCycles returns audit rows newest first, optionally for one file.
// GET /api/cycles?file=dynamic-us_auctions_1.gz&limit=50&offset=0
func (h *CycleHandler) ListCycles(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")
	if file != "" {
		if _, err := domain.ParseDBFileName(file); err != nil {
			writeError(w, http.StatusBadRequest, "invalid file name")
			return
		}
	}
	opts := parseListOpts(r)

	entries, err := h.cycles.List(r.Context(), file, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list cycles failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list cycles")
		return
	}

	out := make([]cycleJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, cycleJSON{
			CycleID:        e.CycleID,
			File:           e.File,
			RecordsAdded:   e.RecordsAdded,
			EntriesAdded:   e.EntriesAdded,
			RecordsRemoved: e.RecordsRemoved,
			EntriesRemoved: e.EntriesRemoved,
			Entries:        e.Entries,
			StartedAt:      e.StartedAt.UTC().Format(time.RFC3339),
			FinishedAt:     e.FinishedAt.UTC().Format(time.RFC3339),
			Error:          e.Err,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cycles": out,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}
