package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// ValueHandler serves published readouts from the value cache.
type ValueHandler struct {
	values domain.ValueCache
	logger *slog.Logger
}

// NewValueHandler creates a ValueHandler.
func NewValueHandler(values domain.ValueCache, logger *slog.Logger) *ValueHandler {
	return &ValueHandler{values: values, logger: logHandler(logger, "values")}
}

// GetValue returns the readout published for one key of one file.
// GET /api/values/{file}/{item}
func (h *ValueHandler) GetValue(w http.ResponseWriter, r *http.Request) {
	file := pathParam(r, "file")
	if _, err := domain.ParseDBFileName(file); err != nil {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	item := pathParam(r, "item")
	if item == "" {
		writeError(w, http.StatusBadRequest, "missing item string")
		return
	}

	v, err := h.values.Get(r.Context(), file, item)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "value not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get value failed",
			slog.String("file", file),
			slog.String("item", item),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get value")
		return
	}
	writeJSON(w, http.StatusOK, v)
}
