package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/auctiondb/internal/domain"
	"github.com/alanyoungcy/auctiondb/internal/market"
)

// ItemHandler answers numeric item id lookups against a store file.
type ItemHandler struct {
	files  StoreReader
	tuning market.Tuning
	now    func() time.Time
	logger *slog.Logger
}

// NewItemHandler creates an ItemHandler.
func NewItemHandler(files StoreReader, tuning market.Tuning, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{
		files:  files,
		tuning: tuning,
		now:    time.Now,
		logger: logHandler(logger, "items"),
	}
}

type recordJSON struct {
	Timestamp   int32  `json:"timestamp"`
	MarketValue *int64 `json:"market_value"`
	NumAuctions int32  `json:"num_auctions"`
	MinBuyout   *int64 `json:"min_buyout"`
}

type seriesJSON struct {
	ItemString string            `json:"item_string"`
	Values     domain.ItemValues `json:"values"`
	Records    []recordJSON      `json:"records,omitempty"`
}

// GetItem returns every series whose key has the given numeric id, items
// before pets, with their readouts. Records are included unless
// records=false.
// GET /api/items/{id}?file=dynamic-us_auctions_1.gz
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(pathParam(r, "id"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "item id must be an integer")
		return
	}
	file, ok := parseFile(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "file must name an auctions or commodities store")
		return
	}
	withRecords := r.URL.Query().Get("records") != "false"

	store, err := h.files.LoadStore(r.Context(), file)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: load store failed",
			slog.String("file", file.String()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load store")
		return
	}

	found := store.Query(int32(id))
	if found.Len() == 0 {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	begin, end := h.window(r, file.Namespace)
	series := make([]seriesJSON, 0, found.Len())
	found.Range(func(key domain.ItemString, rs market.Records) bool {
		s := seriesJSON{
			ItemString: key.String(),
			Values:     market.Readout(key, rs, begin, end, h.tuning),
		}
		if withRecords {
			s.Records = make([]recordJSON, 0, len(rs))
			for _, rec := range rs {
				s.Records = append(s.Records, recordJSON{
					Timestamp:   rec.Timestamp,
					MarketValue: rec.MarketValue,
					NumAuctions: rec.NumAuctions,
					MinBuyout:   rec.MinBuyout,
				})
			}
		}
		series = append(series, s)
		return true
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"file":   file.String(),
		"id":     id,
		"begin":  begin,
		"end":    end,
		"series": series,
	})
}

// window returns the bounds readouts are taken at: the last update cycle of
// the namespace, or now when no meta exists.
func (h *ItemHandler) window(r *http.Request, ns domain.Namespace) (begin, end int64) {
	now := h.now().Unix()
	meta, found, err := h.files.LoadMeta(r.Context(), h.files.MetaFile(ns))
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: load meta failed",
			slog.String("namespace", ns.String()),
			slog.String("error", err.Error()),
		)
		return now, now
	}
	if !found {
		return now, now
	}
	begin, end = meta.UpdateTS()
	if begin == 0 || end == 0 {
		return now, now
	}
	return begin, end
}
