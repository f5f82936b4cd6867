package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/auctiondb/internal/domain"
	"github.com/alanyoungcy/auctiondb/internal/market"
)

// StoreReader is the read side of the store files. *dbfile.Helper
// satisfies it.
type StoreReader interface {
	List(ctx context.Context, ns domain.Namespace) ([]domain.DBFileName, error)
	LoadStore(ctx context.Context, name domain.DBFileName) (*market.Store, error)
	LoadMeta(ctx context.Context, name domain.DBFileName) (*domain.Meta, bool, error)
	MetaFile(ns domain.Namespace) domain.DBFileName
}

// FileHandler lists store files and serves namespace metadata.
type FileHandler struct {
	files  StoreReader
	logger *slog.Logger
}

// NewFileHandler creates a FileHandler.
func NewFileHandler(files StoreReader, logger *slog.Logger) *FileHandler {
	return &FileHandler{files: files, logger: logHandler(logger, "files")}
}

type fileJSON struct {
	Name       string `json:"name"`
	Namespace  string `json:"namespace"`
	Type       string `json:"type"`
	CRID       int32  `json:"connected_realm_id,omitempty"`
	Faction    string `json:"faction,omitempty"`
	Compressed bool   `json:"compressed"`
}

// ListFiles returns the store and meta files, optionally for one namespace.
// GET /api/files?namespace=dynamic-us
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	var ns domain.Namespace
	if v := r.URL.Query().Get("namespace"); v != "" {
		parsed, err := domain.ParseNamespace(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid namespace")
			return
		}
		ns = parsed
	}

	names, err := h.files.List(r.Context(), ns)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list files failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}

	out := make([]fileJSON, 0, len(names))
	for _, n := range names {
		out = append(out, fileJSON{
			Name:       n.String(),
			Namespace:  n.Namespace.String(),
			Type:       string(n.Type),
			CRID:       n.CRID,
			Faction:    string(n.Faction),
			Compressed: n.IsCompressed(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": out, "total": len(out)})
}

type realmGroupJSON struct {
	CRID     int32    `json:"connected_realm_id"`
	Names    []string `json:"names"`
	Hardcore bool     `json:"hardcore"`
	Mixed    bool     `json:"mixed"`
}

// GetMeta returns the last update window and connected realms of a
// namespace.
// GET /api/namespaces/{namespace}
func (h *FileHandler) GetMeta(w http.ResponseWriter, r *http.Request) {
	ns, err := domain.ParseNamespace(pathParam(r, "namespace"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid namespace")
		return
	}

	meta, found, err := h.files.LoadMeta(r.Context(), h.files.MetaFile(ns))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: load meta failed",
			slog.String("namespace", ns.String()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load meta")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "namespace not found")
		return
	}

	groups := make([]realmGroupJSON, 0, len(meta.ConnectedRealms))
	for _, g := range meta.RealmGroups() {
		groups = append(groups, realmGroupJSON{CRID: g.CRID, Names: g.Names, Hardcore: g.Hardcore, Mixed: g.Mixed})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"namespace":    ns.String(),
		"update":       meta.Update,
		"realm_groups": groups,
		"system":       meta.System,
	})
}
