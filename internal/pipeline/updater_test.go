package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	localblob "github.com/alanyoungcy/auctiondb/internal/blob/local"
	"github.com/alanyoungcy/auctiondb/internal/bonus"
	"github.com/alanyoungcy/auctiondb/internal/dbfile"
	"github.com/alanyoungcy/auctiondb/internal/domain"
	"github.com/alanyoungcy/auctiondb/internal/exporter"
	"github.com/alanyoungcy/auctiondb/internal/market"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func i64(v int64) *int64 { return &v }

type fakeSource struct {
	realms      map[int32]domain.ConnectedRealm
	auctions    map[int32][]domain.Auction
	commodities []domain.Commodity
	failRealm   map[int32]bool
	ts          int32
}

func (f *fakeSource) ConnectedRealmIDs(context.Context, domain.Namespace) ([]int32, error) {
	ids := make([]int32, 0, len(f.realms))
	for id := range f.realms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeSource) ConnectedRealm(_ context.Context, _ domain.Namespace, crid int32) (domain.ConnectedRealm, error) {
	return f.realms[crid], nil
}

func (f *fakeSource) Auctions(_ context.Context, _ domain.Namespace, crid int32, _ domain.Faction) (*domain.AuctionsResponse, error) {
	if f.failRealm[crid] {
		return nil, errors.New("upstream unavailable")
	}
	return &domain.AuctionsResponse{Auctions: f.auctions[crid], Timestamp: f.ts}, nil
}

func (f *fakeSource) Commodities(context.Context, domain.Namespace) (*domain.CommoditiesResponse, error) {
	return &domain.CommoditiesResponse{Auctions: f.commodities, Timestamp: f.ts}, nil
}

type fakeCycles struct {
	mu      sync.Mutex
	entries []domain.CycleEntry
}

func (f *fakeCycles) Log(_ context.Context, e domain.CycleEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeCycles) List(context.Context, string, domain.ListOpts) ([]domain.CycleEntry, error) {
	return f.entries, nil
}

type fakeValues struct {
	published map[string][]domain.ItemValues
}

func (f *fakeValues) Publish(_ context.Context, file string, values []domain.ItemValues) error {
	if f.published == nil {
		f.published = map[string][]domain.ItemValues{}
	}
	f.published[file] = values
	return nil
}

func (f *fakeValues) Get(context.Context, string, string) (domain.ItemValues, error) {
	return domain.ItemValues{}, domain.ErrNotFound
}

type fakeEvents struct{ events []domain.CycleEvent }

func (f *fakeEvents) PublishCycle(_ context.Context, ev domain.CycleEvent) error {
	f.events = append(f.events, ev)
	return nil
}

const cycleTS = 1_700_000_000

func testSource() *fakeSource {
	return &fakeSource{
		realms: map[int32]domain.ConnectedRealm{
			3: {ID: 3, Realms: []domain.Realm{{ID: 30, Name: "Stormrage", Slug: "stormrage"}}},
			5: {ID: 5, Realms: []domain.Realm{{ID: 50, Name: "Area 52", Slug: "area-52"}}},
		},
		auctions: map[int32][]domain.Auction{
			3: {
				{ID: 1, Item: domain.AuctionItem{ID: 100}, Buyout: i64(1000), Quantity: 1},
				{ID: 2, Item: domain.AuctionItem{ID: 101}, Bid: i64(500), Quantity: 1},
			},
		},
		commodities: []domain.Commodity{{ID: 9, Item: domain.CommodityItem{ID: 2589}, Quantity: 20, UnitPrice: 1200}},
		failRealm:   map[int32]bool{5: true},
		ts:          cycleTS,
	}
}

type harness struct {
	updater *Updater
	local   *localblob.Store
	exports *localblob.Store
	files   *dbfile.Helper
	cycles  *fakeCycles
	values  *fakeValues
	events  *fakeEvents
}

func newHarness(t *testing.T, src ListingsSource, remote domain.FileStore) *harness {
	t.Helper()
	local, err := localblob.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	exports, err := localblob.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	files := dbfile.NewHelper(local, true, discardLogger())
	var forker *dbfile.Forker
	if remote != nil {
		forker = dbfile.NewForker(local, remote, discardLogger())
	}
	keyer := market.NewKeyer(bonus.NewTable(nil), discardLogger())
	agg := market.NewAggregator(keyer, market.NewEstimator(market.DefaultTuning()), discardLogger())
	h := &harness{
		local:   local,
		exports: exports,
		files:   files,
		cycles:  &fakeCycles{},
		values:  &fakeValues{},
		events:  &fakeEvents{},
	}
	h.updater = NewUpdater(UpdaterConfig{
		GameVersion:      domain.GameVersionRetail,
		RecordsExpiresIn: 60 * market.DaySeconds,
		Compaction:       true,
	}, UpdaterDeps{
		Source:     src,
		Files:      files,
		Forker:     forker,
		Aggregator: agg,
		Locks:      NewLocalLocks(),
		Cycles:     h.cycles,
		Values:     h.values,
		Events:     h.events,
		Exporter:   exporter.NewTSM(market.DefaultTuning(), discardLogger()),
		Exports:    exports,
		Tuning:     market.DefaultTuning(),
	}, discardLogger())
	h.updater.now = func() time.Time { return time.Unix(cycleTS, 0) }
	h.updater.specs = func(context.Context) map[string]any {
		return map[string]any{"platform": "test", "cpu_count": 4, "memory_total": uint64(1 << 30)}
	}
	h.updater.sample = func(context.Context) (SysSnapshot, error) {
		return SysSnapshot{CPU: 12.5, Mem: 40}, nil
	}
	return h
}

var usNS = domain.Namespace{Category: domain.CategoryDynamic, Region: domain.RegionUS}

func TestUpdateRegion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testSource(), nil)

	res, err := h.updater.UpdateRegion(ctx, domain.RegionUS)
	if err != nil {
		t.Fatal(err)
	}
	if res.Files != 2 || res.Failed != 1 {
		t.Errorf("result = %+v, want 2 files and 1 failure", res)
	}

	store, err := h.files.LoadStore(ctx, h.files.AuctionsFile(usNS, 3, domain.FactionNone))
	if err != nil {
		t.Fatal(err)
	}
	rs, ok := store.Get(domain.ItemKey(100))
	if !ok || len(rs) != 1 || rs[0].Value() != 1000 || rs[0].Timestamp != cycleTS {
		t.Errorf("item 100 = %+v", rs)
	}
	rs, ok = store.Get(domain.ItemKey(101))
	if !ok || rs[0].Value() != 500 || rs[0].Buyout() != 0 {
		t.Errorf("bid-only item 101 = %+v", rs)
	}

	commodities, err := h.files.LoadStore(ctx, h.files.CommoditiesFile(usNS))
	if err != nil {
		t.Fatal(err)
	}
	if rs, ok := commodities.Get(domain.ItemKey(2589)); !ok || rs[0].Value() != 1200 || rs[0].NumAuctions != 20 {
		t.Errorf("commodity = %+v", rs)
	}

	meta, found, err := h.files.LoadMeta(ctx, h.files.MetaFile(usNS))
	if err != nil || !found {
		t.Fatalf("meta found=%v err=%v", found, err)
	}
	if start, _ := meta.UpdateTS(); start != cycleTS {
		t.Errorf("meta start = %d", start)
	}
	if ids := meta.ConnectedRealmIDs(); len(ids) != 2 {
		t.Errorf("meta realms = %v", ids)
	}

	if len(h.cycles.entries) != 2 {
		t.Errorf("audit entries = %d, want 2", len(h.cycles.entries))
	}
	if len(h.events.events) != 2 {
		t.Errorf("events = %d, want 2", len(h.events.events))
	}
	vals := h.values.published["dynamic-us_commodities.gz"]
	if len(vals) != 1 || vals[0].Recent != 1200 || vals[0].MinBuyout != 1200 {
		t.Errorf("published values = %+v", vals)
	}

	data, err := h.exports.Read(ctx, ExportFileName(usNS))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`LoadData("AUCTIONDB_REALM_DATA","3,Stormrage"`,
		`LoadData("AUCTIONDB_REALM_HISTORICAL","3,Stormrage"`,
		`LoadData("AUCTIONDB_REALM_SCAN_STAT","3,Stormrage"`,
		`LoadData("AUCTIONDB_REGION_COMMODITY","US"`,
		`LoadData("AUCTIONDB_REGION_STAT","US"`,
		`LoadData("AUCTIONDB_REGION_HISTORICAL","US"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %s", want)
		}
	}
	if strings.Contains(out, "Area 52") {
		t.Error("failed realm was exported")
	}
	if n := strings.Count(out, "\n"); n != 6 {
		t.Errorf("export lines = %d, want 6", n)
	}
}

func TestUpdateRegionAccumulates(t *testing.T) {
	ctx := context.Background()
	src := testSource()
	h := newHarness(t, src, nil)

	for i := 0; i < 3; i++ {
		ts := int64(cycleTS + i*600)
		src.ts = int32(ts)
		h.updater.now = func() time.Time { return time.Unix(ts, 0) }
		if _, err := h.updater.UpdateRegion(ctx, domain.RegionUS); err != nil {
			t.Fatal(err)
		}
	}
	store, err := h.files.LoadStore(ctx, h.files.AuctionsFile(usNS, 3, domain.FactionNone))
	if err != nil {
		t.Fatal(err)
	}
	if rs, _ := store.Get(domain.ItemKey(100)); len(rs) != 3 {
		t.Errorf("records = %d, want 3", len(rs))
	}
}

func TestUpdateRegionSkipsIngestedSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testSource(), nil)

	for i := 0; i < 2; i++ {
		ts := int64(cycleTS + i*600)
		h.updater.now = func() time.Time { return time.Unix(ts, 0) }
		res, err := h.updater.UpdateRegion(ctx, domain.RegionUS)
		if err != nil {
			t.Fatal(err)
		}
		if res.Files != 2 {
			t.Errorf("cycle %d: files = %d, want 2", i, res.Files)
		}
	}
	store, err := h.files.LoadStore(ctx, h.files.AuctionsFile(usNS, 3, domain.FactionNone))
	if err != nil {
		t.Fatal(err)
	}
	if rs, _ := store.Get(domain.ItemKey(100)); len(rs) != 1 {
		t.Errorf("records = %d, want 1 for a repeated snapshot", len(rs))
	}
	data, err := h.exports.Read(ctx, ExportFileName(usNS))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"3,Stormrage"`) {
		t.Error("realm missing from the export of the repeated cycle")
	}
}

func TestUpdateRegionMetaSystem(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testSource(), nil)
	if _, err := h.updater.UpdateRegion(ctx, domain.RegionUS); err != nil {
		t.Fatal(err)
	}
	meta, _, err := h.files.LoadMeta(ctx, h.files.MetaFile(usNS))
	if err != nil {
		t.Fatal(err)
	}
	specs, ok := meta.System["specs"].(map[string]any)
	if !ok || specs["platform"] != "test" {
		t.Fatalf("specs = %#v", meta.System["specs"])
	}
	snaps, ok := meta.System["snapshots"].([]any)
	if !ok || len(snaps) == 0 {
		t.Fatalf("snapshots = %#v", meta.System["snapshots"])
	}
	first, ok := snaps[0].(map[string]any)
	if !ok || first["cpu"] != 12.5 || first["mem"] != 40.0 {
		t.Errorf("first snapshot = %#v", snaps[0])
	}
}

func TestSysMonitorKeepsNewest(t *testing.T) {
	var mu sync.Mutex
	var n float64
	sample := func(context.Context) (SysSnapshot, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return SysSnapshot{CPU: n}, nil
	}
	m := newSysMonitor(sample, time.Millisecond, 3, discardLogger())
	m.start(context.Background())
	time.Sleep(30 * time.Millisecond)
	got := m.stop()
	if len(got) == 0 || len(got) > 3 {
		t.Fatalf("snapshots = %d, want 1 to 3", len(got))
	}
	mu.Lock()
	last := n
	mu.Unlock()
	if got[len(got)-1].CPU != last {
		t.Errorf("newest = %v, want %v", got[len(got)-1].CPU, last)
	}
	for i := 1; i < len(got); i++ {
		if got[i].CPU != got[i-1].CPU+1 {
			t.Errorf("snapshots out of order: %+v", got)
		}
	}
	if again := m.stop(); len(again) != len(got) {
		t.Errorf("second stop = %d snapshots, want %d", len(again), len(got))
	}
}

func TestSysMonitorSampleErrors(t *testing.T) {
	m := newSysMonitor(func(context.Context) (SysSnapshot, error) {
		return SysSnapshot{}, errors.New("no procfs")
	}, time.Millisecond, 3, discardLogger())
	m.start(context.Background())
	if got := m.stop(); len(got) != 0 {
		t.Errorf("snapshots = %+v, want none", got)
	}
}

func TestUpdateRegionExpires(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testSource(), nil)
	name := h.files.AuctionsFile(usNS, 3, domain.FactionNone)

	old := market.NewStore()
	old.Add(domain.ItemKey(777), domain.MarketValueRecord{
		Timestamp:   cycleTS - 61*market.DaySeconds,
		MarketValue: i64(5),
		NumAuctions: 1,
	})
	if err := h.files.SaveStore(ctx, name, old); err != nil {
		t.Fatal(err)
	}

	if _, err := h.updater.UpdateRegion(ctx, domain.RegionUS); err != nil {
		t.Fatal(err)
	}
	store, err := h.files.LoadStore(ctx, name)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Get(domain.ItemKey(777)); ok {
		t.Error("expired entry kept")
	}
	var found bool
	for _, e := range h.cycles.entries {
		if e.File == name.String() {
			found = true
			if e.RecordsRemoved != 1 || e.EntriesRemoved != 1 || e.EntriesAdded != 2 {
				t.Errorf("audit = %+v", e)
			}
		}
	}
	if !found {
		t.Error("no audit entry for the realm store")
	}
}

func TestUpdateRegionLockHeld(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, testSource(), nil)
	locks := NewLocalLocks()
	h.updater.deps.Locks = locks

	unlock, err := locks.Acquire(ctx, "dynamic-us_commodities.gz", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	res, err := h.updater.UpdateRegion(ctx, domain.RegionUS)
	if err != nil {
		t.Fatal(err)
	}
	if res.Files != 1 || res.Failed != 2 {
		t.Errorf("result = %+v, want 1 file and 2 failures", res)
	}
	if ok, _ := h.local.Exists(ctx, "dynamic-us_commodities.gz"); ok {
		t.Error("locked store was written")
	}
}

func TestUpdateRegionForks(t *testing.T) {
	ctx := context.Background()
	remote, err := localblob.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	published := dbfile.NewHelper(remote, true, discardLogger())
	seed := market.NewStore()
	seed.Add(domain.ItemKey(2589), domain.MarketValueRecord{Timestamp: cycleTS - 3600, MarketValue: i64(1100), NumAuctions: 4})
	if err := published.SaveStore(ctx, published.CommoditiesFile(usNS), seed); err != nil {
		t.Fatal(err)
	}

	h := newHarness(t, testSource(), remote)
	if _, err := h.updater.UpdateRegion(ctx, domain.RegionUS); err != nil {
		t.Fatal(err)
	}
	store, err := h.files.LoadStore(ctx, h.files.CommoditiesFile(usNS))
	if err != nil {
		t.Fatal(err)
	}
	if rs, _ := store.Get(domain.ItemKey(2589)); len(rs) != 2 {
		t.Errorf("records = %+v, want the forked record plus the new one", rs)
	}
}

func TestCompactedBefore(t *testing.T) {
	u := &Updater{}
	prev := domain.NewMeta()
	prev.SetUpdateTS(10*market.DaySeconds+500, 10*market.DaySeconds+900)
	tests := []struct {
		name       string
		found      bool
		metaForked bool
		dataForked bool
		want       int64
	}{
		{"no meta", false, false, false, 0},
		{"both local", true, false, false, 10 * market.DaySeconds},
		{"both forked", true, true, true, 10 * market.DaySeconds},
		{"meta forked only", true, true, false, 0},
		{"data forked only", true, false, true, 0},
	}
	for _, tt := range tests {
		c := &cycle{prevMeta: prev, metaFound: tt.found, metaForked: tt.metaForked}
		if got := u.compactedBefore(c, tt.dataForked); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestRealmNames(t *testing.T) {
	cr := domain.ConnectedRealm{ID: 4, Realms: []domain.Realm{{Name: "Faerlina"}, {Name: "Whitemane"}}}
	got := realmNames(cr, domain.FactionHorde)
	if len(got) != 2 || got[0] != "Faerlina-Horde" || got[1] != "Whitemane-Horde" {
		t.Errorf("got %v", got)
	}
	if got := realmNames(cr, domain.FactionNone); got[0] != "Faerlina" {
		t.Errorf("got %v", got)
	}
}
