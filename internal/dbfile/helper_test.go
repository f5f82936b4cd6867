package dbfile

import (
	"context"
	"io"
	"log/slog"
	"testing"

	localblob "github.com/alanyoungcy/auctiondb/internal/blob/local"
	"github.com/alanyoungcy/auctiondb/internal/domain"
	"github.com/alanyoungcy/auctiondb/internal/market"
)

var usNS = domain.Namespace{Category: domain.CategoryDynamic, Region: domain.RegionUS}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLocal(t *testing.T) *localblob.Store {
	t.Helper()
	s, err := localblob.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func sampleStore() *market.Store {
	s := market.NewStore()
	s.Add(domain.ItemKey(1), domain.MarketValueRecord{Timestamp: 100, MarketValue: domain.Int64(10), NumAuctions: 2, MinBuyout: domain.Int64(9)})
	s.Add(domain.ItemKey(1), domain.MarketValueRecord{Timestamp: 200, MarketValue: domain.Int64(12), NumAuctions: 3, MinBuyout: domain.Int64(11)})
	s.Add(domain.PetKey(7), domain.MarketValueRecord{Timestamp: 200, MarketValue: domain.Int64(500), NumAuctions: 1, MinBuyout: domain.Int64(450)})
	return s
}

func TestFileNames(t *testing.T) {
	gz := NewHelper(newLocal(t), true, discardLogger())
	bin := NewHelper(newLocal(t), false, discardLogger())

	tests := []struct {
		got  domain.DBFileName
		want string
	}{
		{gz.AuctionsFile(usNS, 3, domain.FactionNone), "dynamic-us_auctions_3.gz"},
		{bin.AuctionsFile(usNS, 3, domain.FactionNone), "dynamic-us_auctions_3.bin"},
		{gz.CommoditiesFile(usNS), "dynamic-us_commodities.gz"},
		{gz.MetaFile(usNS), "dynamic-us_meta.json"},
	}
	for _, tt := range tests {
		if tt.got.String() != tt.want {
			t.Errorf("got %s, want %s", tt.got, tt.want)
		}
		if err := tt.got.Validate(); err != nil {
			t.Errorf("%s: %v", tt.want, err)
		}
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for _, compress := range []bool{true, false} {
		h := NewHelper(newLocal(t), compress, discardLogger())
		ctx := context.Background()
		name := h.AuctionsFile(usNS, 3, domain.FactionNone)

		if err := h.SaveStore(ctx, name, sampleStore()); err != nil {
			t.Fatalf("compress=%v: save: %v", compress, err)
		}
		got, err := h.LoadStore(ctx, name)
		if err != nil {
			t.Fatalf("compress=%v: load: %v", compress, err)
		}
		if got.Len() != 2 {
			t.Fatalf("compress=%v: entries = %d, want 2", compress, got.Len())
		}
		rs, ok := got.Get(domain.ItemKey(1))
		if !ok || len(rs) != 2 || rs[1].Value() != 12 || rs[1].Buyout() != 11 {
			t.Errorf("compress=%v: item 1 = %+v", compress, rs)
		}
	}
}

func TestLoadStoreMissing(t *testing.T) {
	h := NewHelper(newLocal(t), true, discardLogger())
	s, err := h.LoadStore(context.Background(), h.CommoditiesFile(usNS))
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 0 {
		t.Errorf("entries = %d, want 0", s.Len())
	}
}

func TestLoadStoreCorrupt(t *testing.T) {
	local := newLocal(t)
	h := NewHelper(local, true, discardLogger())
	name := h.CommoditiesFile(usNS)
	if err := local.Write(context.Background(), name.String(), []byte("not gzip")); err != nil {
		t.Fatal(err)
	}
	if _, err := h.LoadStore(context.Background(), name); err == nil {
		t.Fatal("expected an error")
	}
}

func TestMetaRoundTrip(t *testing.T) {
	h := NewHelper(newLocal(t), true, discardLogger())
	ctx := context.Background()
	name := h.MetaFile(usNS)

	meta, found, err := h.LoadMeta(ctx, name)
	if err != nil || found {
		t.Fatalf("missing meta: found=%v err=%v", found, err)
	}
	meta.SetUpdateTS(1000, 1300)
	err = meta.AddConnectedRealm(3, domain.ConnectedRealm{ID: 3, Realms: []domain.Realm{{ID: 30, Name: "Stormrage", Slug: "stormrage"}}})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.SaveMeta(ctx, name, meta); err != nil {
		t.Fatal(err)
	}

	got, found, err := h.LoadMeta(ctx, name)
	if err != nil || !found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if start, end := got.UpdateTS(); start != 1000 || end != 1300 || got.Update.Duration != 300 {
		t.Errorf("update = %+v", got.Update)
	}
	if names := got.ConnectedRealmNames(); len(names) != 1 || names[0] != "Stormrage" {
		t.Errorf("names = %v", names)
	}
}

func TestList(t *testing.T) {
	local := newLocal(t)
	h := NewHelper(local, true, discardLogger())
	ctx := context.Background()
	eu := domain.Namespace{Category: domain.CategoryDynamic, Region: domain.RegionEU}
	for _, n := range []string{
		"dynamic-us_auctions_3.gz",
		"dynamic-us_commodities.gz",
		"dynamic-us_meta.json",
		"dynamic-eu_commodities.gz",
		"dynamic-us_bogus.txt",
	} {
		if err := local.Write(ctx, n, []byte{}); err != nil {
			t.Fatal(err)
		}
	}

	us, err := h.List(ctx, usNS)
	if err != nil {
		t.Fatal(err)
	}
	if len(us) != 3 {
		t.Errorf("us files = %v, want 3", us)
	}
	all, err := h.List(ctx, domain.Namespace{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("all files = %v, want 4", all)
	}
	euFiles, err := h.List(ctx, eu)
	if err != nil {
		t.Fatal(err)
	}
	if len(euFiles) != 1 || euFiles[0].Type != domain.DBTypeCommodities {
		t.Errorf("eu files = %v", euFiles)
	}
}
