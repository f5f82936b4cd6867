package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/auctiondb/internal/domain"
	"github.com/alanyoungcy/auctiondb/internal/exporter"
	"github.com/alanyoungcy/auctiondb/internal/market"
)

// ExportRegion rewrites the export of region from the saved store files,
// without contacting the listings source. Readouts are taken at the window
// of the last update cycle recorded in the meta file.
func (u *Updater) ExportRegion(ctx context.Context, region domain.Region) (RegionResult, error) {
	if u.deps.Exporter == nil || u.deps.Exports == nil {
		return RegionResult{}, fmt.Errorf("pipeline: export %s: no exporter configured", region)
	}
	c := &cycle{
		ns:     domain.Namespace{Category: domain.CategoryDynamic, GameVersion: u.cfg.GameVersion, Region: region},
		region: market.NewStore(),
	}
	logger := u.logger.With(slog.String("namespace", c.ns.String()))

	meta, found, err := u.deps.Files.LoadMeta(ctx, u.deps.Files.MetaFile(c.ns))
	if err != nil {
		return c.result, err
	}
	if !found {
		return c.result, fmt.Errorf("pipeline: export %s: %w", c.ns, domain.ErrNotFound)
	}
	begin, end := meta.UpdateTS()
	c.begin = begin
	c.result.StartTS, c.result.EndTS = begin, end

	for _, crid := range meta.ConnectedRealmIDs() {
		cr := domain.ConnectedRealm{ID: crid}
		for _, r := range meta.ConnectedRealms[crid] {
			cr.Realms = append(cr.Realms, domain.Realm{ID: r.ID, Name: r.Name, Slug: r.Slug, IsHardcore: r.IsHardcore})
		}
		for _, faction := range u.factions() {
			file := u.deps.Files.AuctionsFile(c.ns, crid, faction)
			store, err := u.deps.Files.LoadStore(ctx, file)
			if err != nil {
				logger.Error("store unreadable", slog.String("file", file.String()), slog.String("error", err.Error()))
				c.result.Failed++
				continue
			}
			if store.Len() == 0 {
				continue
			}
			c.result.Files++
			c.region.Extend(store, false)

			realm, err := exporter.RealmString(crid, realmNames(cr, faction))
			if err != nil {
				logger.Error("realm skipped from export", slog.Int("crid", int(crid)), slog.String("error", err.Error()))
				continue
			}
			for _, exp := range exporter.RealmExports {
				if err := u.deps.Exporter.Write(&c.export, store, exp, realm, begin, end); err != nil {
					logger.Error("realm export failed", slog.String("file", file.String()), slog.String("error", err.Error()))
				}
			}
		}
	}

	if c.ns.GameVersion == domain.GameVersionRetail {
		file := u.deps.Files.CommoditiesFile(c.ns)
		store, err := u.deps.Files.LoadStore(ctx, file)
		switch {
		case err != nil:
			logger.Error("store unreadable", slog.String("file", file.String()), slog.String("error", err.Error()))
			c.result.Failed++
		case store.Len() > 0:
			c.result.Files++
			c.region.Extend(store, false)
			if err := u.deps.Exporter.Write(&c.export, store, exporter.CommodityExport, exporter.RegionString(region), begin, end); err != nil {
				logger.Error("commodity export failed", slog.String("error", err.Error()))
			}
		}
	}

	if c.region.Len() > 0 {
		c.region.Sort()
		for _, exp := range exporter.RegionExports {
			if err := u.deps.Exporter.Write(&c.export, c.region, exp, exporter.RegionString(region), begin, end); err != nil {
				logger.Error("region export failed", slog.String("error", err.Error()))
			}
		}
	}
	if err := u.flushExport(ctx, c); err != nil {
		return c.result, err
	}
	logger.Info("export rebuilt", slog.Int("files", c.result.Files), slog.Int("failed", c.result.Failed))
	return c.result, nil
}
