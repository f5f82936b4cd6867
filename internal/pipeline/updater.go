package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/auctiondb/internal/dbfile"
	"github.com/alanyoungcy/auctiondb/internal/domain"
	"github.com/alanyoungcy/auctiondb/internal/exporter"
	"github.com/alanyoungcy/auctiondb/internal/market"
)

// UpdaterConfig tunes an update cycle.
type UpdaterConfig struct {
	GameVersion domain.GameVersion
	// Factions are walked per connected realm on classic versions.
	Factions []domain.Faction
	// RecordsExpiresIn is the retention horizon in seconds.
	RecordsExpiresIn int64
	// Compaction averages each retained day down to one record.
	Compaction bool
	LockTTL    time.Duration
	// SnapshotInterval and MaxSnapshots bound the host load samples written
	// to the meta file.
	SnapshotInterval time.Duration
	MaxSnapshots     int
}

// UpdaterDeps are the collaborators of an Updater. Forker, Cycles, Values,
// Events, Exporter and Exports are optional.
type UpdaterDeps struct {
	Source     ListingsSource
	Files      *dbfile.Helper
	Forker     *dbfile.Forker
	Aggregator *market.Aggregator
	Locks      domain.LockManager
	Cycles     domain.CycleStore
	Values     domain.ValueCache
	Events     domain.EventPublisher
	Exporter   *exporter.TSM
	Exports    domain.FileStore
	Tuning     market.Tuning
}

// Updater runs one update cycle per region: pull every snapshot, fold it
// into its store file, expire and compact, save, then write the meta file.
type Updater struct {
	cfg    UpdaterConfig
	deps   UpdaterDeps
	logger *slog.Logger
	now    func() time.Time

	specs  func(context.Context) map[string]any
	sample func(context.Context) (SysSnapshot, error)
}

// NewUpdater creates an Updater.
func NewUpdater(cfg UpdaterConfig, deps UpdaterDeps, logger *slog.Logger) *Updater {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = 10 * time.Second
	}
	if cfg.MaxSnapshots <= 0 {
		cfg.MaxSnapshots = 360
	}
	return &Updater{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(slog.String("component", "updater")),
		now:    time.Now,
		specs:  hostSpecs,
		sample: sampleHost,
	}
}

// RegionResult summarises one region cycle.
type RegionResult struct {
	CycleID string
	StartTS int64
	EndTS   int64
	Files   int
	Failed  int
}

// cycle carries the state shared by every file of one region cycle.
type cycle struct {
	id        string
	ns        domain.Namespace
	begin     int64
	prevMeta  *domain.Meta
	metaFound bool
	// metaForked is set when the meta file was copied from the remote store.
	metaForked bool
	region     *market.Store
	export     bytes.Buffer
	result     RegionResult
}

// UpdateRegion runs a full cycle for region. Failures of a single connected
// realm are logged and skipped; only failures that leave the region without
// any data return an error.
func (u *Updater) UpdateRegion(ctx context.Context, region domain.Region) (RegionResult, error) {
	c := &cycle{
		id:     uuid.New().String(),
		ns:     domain.Namespace{Category: domain.CategoryDynamic, GameVersion: u.cfg.GameVersion, Region: region},
		begin:  u.now().Unix(),
		region: market.NewStore(),
	}
	c.result.CycleID = c.id
	c.result.StartTS = c.begin
	logger := u.logger.With(slog.String("namespace", c.ns.String()), slog.String("cycle_id", c.id))
	logger.Info("update cycle starting")

	monitor := newSysMonitor(u.sample, u.cfg.SnapshotInterval, u.cfg.MaxSnapshots, logger)
	monitor.start(ctx)
	defer monitor.stop()

	metaFile := u.deps.Files.MetaFile(c.ns)
	c.metaForked = u.fork(ctx, metaFile)
	prev, found, err := u.deps.Files.LoadMeta(ctx, metaFile)
	if err != nil {
		logger.Warn("previous meta unreadable, compaction restarts", slog.String("error", err.Error()))
		prev, found = domain.NewMeta(), false
	}
	c.prevMeta, c.metaFound = prev, found

	crids, err := u.deps.Source.ConnectedRealmIDs(ctx, c.ns)
	if err != nil {
		return c.result, fmt.Errorf("pipeline: list connected realms %s: %w", c.ns, err)
	}

	meta := domain.NewMeta()
	for _, crid := range crids {
		if err := ctx.Err(); err != nil {
			return c.result, err
		}
		cr, err := u.deps.Source.ConnectedRealm(ctx, c.ns, crid)
		if err != nil {
			logger.Error("connected realm request failed", slog.Int("crid", int(crid)), slog.String("error", err.Error()))
			c.result.Failed++
			continue
		}
		if err := meta.AddConnectedRealm(crid, cr); err != nil {
			logger.Error("connected realm rejected", slog.Int("crid", int(crid)), slog.String("error", err.Error()))
			c.result.Failed++
			continue
		}
		for _, faction := range u.factions() {
			u.updateRealm(ctx, logger, c, cr, faction)
		}
	}

	if c.ns.GameVersion == domain.GameVersionRetail {
		u.updateCommodities(ctx, logger, c)
	}

	if u.deps.Exporter != nil && c.region.Len() > 0 {
		c.region.Sort()
		end := u.now().Unix()
		for _, exp := range exporter.RegionExports {
			if err := u.deps.Exporter.Write(&c.export, c.region, exp, exporter.RegionString(region), c.begin, end); err != nil {
				logger.Error("region export failed", slog.String("error", err.Error()))
			}
		}
	}
	if err := u.flushExport(ctx, c); err != nil {
		logger.Error("export write failed", slog.String("error", err.Error()))
	}

	for _, g := range meta.RealmGroups() {
		if g.Mixed {
			logger.Warn("connected realm mixes hardcore and normal realms", slog.Int("crid", int(g.CRID)))
		}
	}
	c.result.EndTS = u.now().Unix()
	meta.SetUpdateTS(c.begin, c.result.EndTS)
	meta.SetSystem(map[string]any{
		"specs":     u.specs(ctx),
		"snapshots": monitor.stop(),
	})
	if err := u.deps.Files.SaveMeta(ctx, metaFile, meta); err != nil {
		return c.result, err
	}

	logger.Info("update cycle finished",
		slog.Int("files", c.result.Files),
		slog.Int("failed", c.result.Failed),
		slog.Int64("duration_s", c.result.EndTS-c.begin),
	)
	if c.result.Files == 0 && c.result.Failed > 0 {
		return c.result, fmt.Errorf("pipeline: %s: every store update failed", c.ns)
	}
	return c.result, nil
}

func (u *Updater) factions() []domain.Faction {
	if !u.cfg.GameVersion.IsClassic() {
		return []domain.Faction{domain.FactionNone}
	}
	if len(u.cfg.Factions) == 0 {
		return []domain.Faction{domain.FactionAlliance, domain.FactionHorde}
	}
	return u.cfg.Factions
}

func (u *Updater) updateRealm(ctx context.Context, logger *slog.Logger, c *cycle, cr domain.ConnectedRealm, faction domain.Faction) {
	resp, err := u.deps.Source.Auctions(ctx, c.ns, cr.ID, faction)
	if err != nil {
		logger.Error("auctions request failed",
			slog.Int("crid", int(cr.ID)), slog.String("faction", string(faction)), slog.String("error", err.Error()))
		c.result.Failed++
		return
	}
	inc := u.deps.Aggregator.FromResponse(resp, c.ns.GameVersion)
	file := u.deps.Files.AuctionsFile(c.ns, cr.ID, faction)
	store, err := u.updateFile(ctx, c, file, inc)
	if err != nil {
		logger.Error("store update failed", slog.String("file", file.String()), slog.String("error", err.Error()))
		c.result.Failed++
		return
	}
	c.result.Files++
	c.region.Extend(store, false)

	if u.deps.Exporter == nil {
		return
	}
	realm, err := exporter.RealmString(cr.ID, realmNames(cr, faction))
	if err != nil {
		logger.Error("realm skipped from export", slog.Int("crid", int(cr.ID)), slog.String("error", err.Error()))
		return
	}
	end := u.now().Unix()
	for _, exp := range exporter.RealmExports {
		if err := u.deps.Exporter.Write(&c.export, store, exp, realm, c.begin, end); err != nil {
			logger.Error("realm export failed", slog.String("file", file.String()), slog.String("error", err.Error()))
		}
	}
}

func (u *Updater) updateCommodities(ctx context.Context, logger *slog.Logger, c *cycle) {
	resp, err := u.deps.Source.Commodities(ctx, c.ns)
	if err != nil {
		logger.Error("commodities request failed", slog.String("error", err.Error()))
		c.result.Failed++
		return
	}
	inc := u.deps.Aggregator.FromResponse(resp, c.ns.GameVersion)
	file := u.deps.Files.CommoditiesFile(c.ns)
	store, err := u.updateFile(ctx, c, file, inc)
	if err != nil {
		logger.Error("store update failed", slog.String("file", file.String()), slog.String("error", err.Error()))
		c.result.Failed++
		return
	}
	c.result.Files++
	c.region.Extend(store, false)

	if u.deps.Exporter != nil {
		end := u.now().Unix()
		if err := u.deps.Exporter.Write(&c.export, store, exporter.CommodityExport, exporter.RegionString(c.ns.Region), c.begin, end); err != nil {
			logger.Error("commodity export failed", slog.String("error", err.Error()))
		}
	}
}

// realmNames lists the realm names of cr. Classic auction houses are per
// faction, so the faction is appended to every name.
func realmNames(cr domain.ConnectedRealm, faction domain.Faction) []string {
	names := make([]string, 0, len(cr.Realms))
	for _, r := range cr.Realms {
		if faction != domain.FactionNone {
			names = append(names, r.Name+"-"+faction.FullName())
			continue
		}
		names = append(names, r.Name)
	}
	return names
}

// fileStats tallies one store update.
type fileStats struct {
	recordsAdded   int
	entriesAdded   int
	recordsRemoved int
	entriesRemoved int
}

// updateFile folds inc into the store file under the file's lock and saves
// it. The returned store is the saved one.
func (u *Updater) updateFile(ctx context.Context, c *cycle, file domain.DBFileName, inc market.Increment) (*market.Store, error) {
	started := u.now()
	unlock, err := u.deps.Locks.Acquire(ctx, file.String(), u.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	dataForked := u.fork(ctx, file)
	cb := u.compactedBefore(c, dataForked)

	store, err := u.deps.Files.LoadStore(ctx, file)
	if err != nil {
		u.audit(ctx, c, file, fileStats{}, 0, started, err)
		return nil, err
	}

	var st fileStats
	if ts := inc.Timestamp(); ts > 0 && ts <= store.Latest() {
		u.logger.Info("snapshot already ingested, skipping",
			slog.String("file", file.String()), slog.Int("timestamp", int(ts)))
	} else {
		st.recordsAdded, st.entriesAdded = store.UpdateIncrement(inc)
	}
	st.recordsRemoved = store.RemoveExpired(c.begin - u.cfg.RecordsExpiresIn)
	if u.cfg.Compaction {
		st.recordsRemoved += store.Compress(c.begin, u.cfg.RecordsExpiresIn, cb)
	}
	st.entriesRemoved = store.RemoveEmptyEntries()

	if err := u.deps.Files.SaveStore(ctx, file, store); err != nil {
		u.audit(ctx, c, file, st, store.Len(), started, err)
		return nil, err
	}
	u.logger.Debug("store updated",
		slog.String("file", file.String()),
		slog.Int("records_added", st.recordsAdded),
		slog.Int("entries_added", st.entriesAdded),
		slog.Int("records_removed", st.recordsRemoved),
		slog.Int("entries_removed", st.entriesRemoved),
		slog.Int64("compacted_before", cb),
	)

	u.audit(ctx, c, file, st, store.Len(), started, nil)
	u.publish(ctx, c, file, st, store)
	return store, nil
}

// compactedBefore is the day boundary up to which the store was already
// compacted. It is only trusted when the meta file and the store file come
// from the same place, so both describe the same past cycle.
func (u *Updater) compactedBefore(c *cycle, dataForked bool) int64 {
	if !c.metaFound || c.metaForked != dataForked {
		return 0
	}
	start, _ := c.prevMeta.UpdateTS()
	if start <= 0 {
		return 0
	}
	return start - start%market.DaySeconds
}

func (u *Updater) fork(ctx context.Context, file domain.DBFileName) bool {
	if u.deps.Forker == nil {
		return false
	}
	forked, err := u.deps.Forker.Ensure(ctx, file)
	if err != nil {
		u.logger.Warn("fork check failed", slog.String("file", file.String()), slog.String("error", err.Error()))
		return false
	}
	return forked
}

func (u *Updater) audit(ctx context.Context, c *cycle, file domain.DBFileName, st fileStats, entries int, started time.Time, cause error) {
	if u.deps.Cycles == nil {
		return
	}
	entry := domain.CycleEntry{
		CycleID:        c.id,
		File:           file.String(),
		RecordsAdded:   st.recordsAdded,
		EntriesAdded:   st.entriesAdded,
		RecordsRemoved: st.recordsRemoved,
		EntriesRemoved: st.entriesRemoved,
		Entries:        entries,
		StartedAt:      started,
		FinishedAt:     u.now(),
	}
	if cause != nil {
		entry.Err = cause.Error()
	}
	if err := u.deps.Cycles.Log(ctx, entry); err != nil {
		u.logger.Warn("cycle audit failed", slog.String("file", file.String()), slog.String("error", err.Error()))
	}
}

func (u *Updater) publish(ctx context.Context, c *cycle, file domain.DBFileName, st fileStats, store *market.Store) {
	end := u.now()
	if u.deps.Values != nil {
		values := market.Readouts(store, c.begin, end.Unix(), u.deps.Tuning)
		if err := u.deps.Values.Publish(ctx, file.String(), values); err != nil {
			u.logger.Warn("value publish failed", slog.String("file", file.String()), slog.String("error", err.Error()))
		}
	}
	if u.deps.Events != nil {
		ev := domain.CycleEvent{
			CycleID:        c.id,
			File:           file.String(),
			RecordsAdded:   st.recordsAdded,
			RecordsRemoved: st.recordsRemoved,
			Entries:        store.Len(),
			FinishedAt:     end.Unix(),
		}
		if err := u.deps.Events.PublishCycle(ctx, ev); err != nil {
			u.logger.Warn("cycle event publish failed", slog.String("file", file.String()), slog.String("error", err.Error()))
		}
	}
}

func (u *Updater) flushExport(ctx context.Context, c *cycle) error {
	if u.deps.Exporter == nil || u.deps.Exports == nil || c.export.Len() == 0 {
		return nil
	}
	name := ExportFileName(c.ns)
	if err := u.deps.Exports.Write(ctx, name, c.export.Bytes()); err != nil {
		return fmt.Errorf("pipeline: write export %s: %w", name, err)
	}
	u.logger.Info("export written", slog.String("file", name), slog.Int("bytes", c.export.Len()))
	return nil
}

// ExportFileName names the LoadData export of a namespace.
func ExportFileName(ns domain.Namespace) string {
	return ns.String() + "_AuctionDB.lua"
}
