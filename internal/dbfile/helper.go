// Package dbfile names, loads and saves store and meta files on top of a
// domain.FileStore.
package dbfile

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/alanyoungcy/auctiondb/internal/domain"
	"github.com/alanyoungcy/auctiondb/internal/itemdb"
	"github.com/alanyoungcy/auctiondb/internal/market"
)

// Helper reads and writes store and meta files. Store files are gzip
// compressed when compress is set.
type Helper struct {
	files    domain.FileStore
	compress bool
	logger   *slog.Logger
}

// NewHelper creates a Helper over files.
func NewHelper(files domain.FileStore, compress bool, logger *slog.Logger) *Helper {
	return &Helper{
		files:    files,
		compress: compress,
		logger:   logger.With(slog.String("component", "dbfile")),
	}
}

// Files returns the underlying file store.
func (h *Helper) Files() domain.FileStore { return h.files }

func (h *Helper) storeExt() domain.DBExt {
	if h.compress {
		return domain.DBExtGZ
	}
	return domain.DBExtBin
}

// AuctionsFile names the auctions store of a connected realm.
func (h *Helper) AuctionsFile(ns domain.Namespace, crid int32, faction domain.Faction) domain.DBFileName {
	return domain.DBFileName{Namespace: ns, Type: domain.DBTypeAuctions, CRID: crid, Faction: faction, Ext: h.storeExt()}
}

// CommoditiesFile names the region commodities store.
func (h *Helper) CommoditiesFile(ns domain.Namespace) domain.DBFileName {
	return domain.DBFileName{Namespace: ns, Type: domain.DBTypeCommodities, Ext: h.storeExt()}
}

// MetaFile names the meta file of a namespace.
func (h *Helper) MetaFile(ns domain.Namespace) domain.DBFileName {
	return domain.DBFileName{Namespace: ns, Type: domain.DBTypeMeta, Ext: domain.DBExtJSON}
}

// LoadStore reads a store file. A missing file yields an empty store.
func (h *Helper) LoadStore(ctx context.Context, name domain.DBFileName) (*market.Store, error) {
	data, err := h.files.Read(ctx, name.String())
	if errors.Is(err, domain.ErrNotFound) {
		h.logger.Info("store file not found, starting empty", slog.String("file", name.String()))
		return market.NewStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("dbfile: load %s: %w", name, err)
	}
	if name.IsCompressed() {
		if data, err = gunzip(data); err != nil {
			return nil, fmt.Errorf("dbfile: load %s: %w", name, err)
		}
	}
	s, err := itemdb.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("dbfile: load %s: %w", name, err)
	}
	h.logger.Debug("store loaded", slog.String("file", name.String()), slog.Int("entries", s.Len()))
	return s, nil
}

// SaveStore writes s to a store file.
func (h *Helper) SaveStore(ctx context.Context, name domain.DBFileName, s *market.Store) error {
	data := itemdb.Encode(s)
	if name.IsCompressed() {
		var err error
		if data, err = gzipBytes(data); err != nil {
			return fmt.Errorf("dbfile: save %s: %w", name, err)
		}
	}
	if err := h.files.Write(ctx, name.String(), data); err != nil {
		return fmt.Errorf("dbfile: save %s: %w", name, err)
	}
	h.logger.Debug("store saved", slog.String("file", name.String()), slog.Int("bytes", len(data)))
	return nil
}

// LoadMeta reads a meta file. A missing file yields an empty Meta and
// found == false.
func (h *Helper) LoadMeta(ctx context.Context, name domain.DBFileName) (meta *domain.Meta, found bool, err error) {
	data, err := h.files.Read(ctx, name.String())
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewMeta(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("dbfile: load meta %s: %w", name, err)
	}
	meta = domain.NewMeta()
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, false, fmt.Errorf("dbfile: decode meta %s: %w", name, err)
	}
	if meta.ConnectedRealms == nil {
		meta.ConnectedRealms = map[int32][]domain.MetaRealm{}
	}
	return meta, true, nil
}

// SaveMeta writes meta as indented JSON.
func (h *Helper) SaveMeta(ctx context.Context, name domain.DBFileName, meta *domain.Meta) error {
	data, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return fmt.Errorf("dbfile: encode meta %s: %w", name, err)
	}
	if err := h.files.Write(ctx, name.String(), data); err != nil {
		return fmt.Errorf("dbfile: save meta %s: %w", name, err)
	}
	return nil
}

// List returns every parseable file name whose namespace matches ns.
// A zero ns lists all of them.
func (h *Helper) List(ctx context.Context, ns domain.Namespace) ([]domain.DBFileName, error) {
	prefix := ""
	if ns != (domain.Namespace{}) {
		prefix = ns.String() + "_"
	}
	infos, err := h.files.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("dbfile: list: %w", err)
	}
	out := make([]domain.DBFileName, 0, len(infos))
	for _, fi := range infos {
		if !strings.HasPrefix(fi.Name, prefix) {
			continue
		}
		name, err := domain.ParseDBFileName(fi.Name)
		if err != nil {
			continue
		}
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
