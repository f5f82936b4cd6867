package blizzard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

var usNS = domain.Namespace{Category: domain.CategoryDynamic, Region: domain.RegionUS}

func newTestClient(t *testing.T, mux *http.ServeMux) (*Client, *int32) {
	t.Helper()
	var tokens int32
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "id" || secret != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		atomic.AddInt32(&tokens, 1)
		fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer","expires_in":86399}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/token",
		ClientID:     "id",
		ClientSecret: "secret",
		RPS:          1000,
		Burst:        10,
		Timeout:      5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c, &tokens
}

func requireAuth(t *testing.T, r *http.Request) {
	t.Helper()
	if got := r.Header.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("authorization = %q", got)
	}
}

func TestConnectedRealmIDs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/data/wow/connected-realm/index", func(w http.ResponseWriter, r *http.Request) {
		requireAuth(t, r)
		if ns := r.URL.Query().Get("namespace"); ns != "dynamic-us" {
			t.Errorf("namespace = %q", ns)
		}
		fmt.Fprint(w, `{"connected_realms":[
			{"href":"https://us.api.blizzard.com/data/wow/connected-realm/11?namespace=dynamic-us"},
			{"href":"https://us.api.blizzard.com/data/wow/connected-realm/3?namespace=dynamic-us"},
			{"href":"bogus"}]}`)
	})
	c, tokens := newTestClient(t, mux)

	for i := 0; i < 2; i++ {
		ids, err := c.ConnectedRealmIDs(context.Background(), usNS)
		if err != nil {
			t.Fatal(err)
		}
		if len(ids) != 2 || ids[0] != 3 || ids[1] != 11 {
			t.Errorf("ids = %v", ids)
		}
	}
	if n := atomic.LoadInt32(tokens); n != 1 {
		t.Errorf("token requests = %d, want 1", n)
	}
}

func TestConnectedRealm(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/data/wow/connected-realm/3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":3,"realms":[
			{"id":30,"name":"Stormrage","slug":"stormrage","category":"United States","type":{"type":"NORMAL"}},
			{"id":31,"name":"Doomhowl","slug":"doomhowl","category":"Hardcore","type":{"type":"HARDCORE"}}]}`)
	})
	c, _ := newTestClient(t, mux)

	cr, err := c.ConnectedRealm(context.Background(), usNS, 3)
	if err != nil {
		t.Fatal(err)
	}
	if cr.ID != 3 || len(cr.Realms) != 2 {
		t.Fatalf("cr = %+v", cr)
	}
	if cr.Realms[0].IsHardcore || !cr.Realms[1].IsHardcore {
		t.Errorf("hardcore flags = %v %v", cr.Realms[0].IsHardcore, cr.Realms[1].IsHardcore)
	}
}

func TestAuctions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/data/wow/connected-realm/3/auctions", func(w http.ResponseWriter, r *http.Request) {
		requireAuth(t, r)
		fmt.Fprint(w, `{"auctions":[
			{"id":1,"item":{"id":19019,"bonus_lists":[6654,1691],"modifiers":[{"type":9,"value":60}]},"buyout":1500000,"quantity":1,"time_left":"LONG"},
			{"id":2,"item":{"id":82800,"pet_breed_id":5,"pet_level":1,"pet_quality_id":3,"pet_species_id":1155},"bid":990000,"quantity":1,"time_left":"SHORT"}]}`)
	})
	c, _ := newTestClient(t, mux)

	resp, err := c.Auctions(context.Background(), usNS, 3, domain.FactionNone)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Timestamp != 1700000000 {
		t.Errorf("timestamp = %d", resp.Timestamp)
	}
	if len(resp.Auctions) != 2 {
		t.Fatalf("auctions = %d", len(resp.Auctions))
	}
	a := resp.Auctions[0]
	if a.Item.ID != 19019 || len(a.Item.BonusLists) != 2 || a.Item.Modifiers[0].Value != 60 || a.Price() != 1500000 {
		t.Errorf("auction 0 = %+v", a)
	}
	p := resp.Auctions[1]
	if !p.Item.IsPet() || *p.Item.PetSpeciesID != 1155 || p.Price() != 990000 {
		t.Errorf("auction 1 = %+v", p)
	}
}

func TestAuctionsClassicFaction(t *testing.T) {
	var hit string
	mux := http.NewServeMux()
	mux.HandleFunc("/data/wow/connected-realm/4/auctions/6", func(w http.ResponseWriter, r *http.Request) {
		hit = r.URL.Query().Get("namespace")
		fmt.Fprint(w, `{"auctions":[]}`)
	})
	c, _ := newTestClient(t, mux)
	ns := domain.Namespace{Category: domain.CategoryDynamic, GameVersion: domain.GameVersionClassic, Region: domain.RegionEU}

	if _, err := c.Auctions(context.Background(), ns, 4, domain.FactionHorde); err != nil {
		t.Fatal(err)
	}
	if hit != "dynamic-classic1x-eu" {
		t.Errorf("namespace = %q", hit)
	}
	if _, err := c.Auctions(context.Background(), ns, 4, domain.FactionNone); err == nil {
		t.Error("expected an error without a faction")
	}
}

func TestCommodities(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/data/wow/auctions/commodities", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"auctions":[{"id":7,"item":{"id":2589},"quantity":20,"unit_price":1200,"time_left":"VERY_LONG"}]}`)
	})
	c, _ := newTestClient(t, mux)

	resp, err := c.Commodities(context.Background(), usNS)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Auctions) != 1 || resp.Auctions[0].UnitPrice != 1200 || resp.Auctions[0].Quantity != 20 {
		t.Errorf("commodities = %+v", resp.Auctions)
	}
}

func TestNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.NewServeMux())
	if _, err := c.ConnectedRealm(context.Background(), usNS, 99); err == nil {
		t.Fatal("expected an error for a 404")
	}
}

func TestBaseURLRegion(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://{region}.api.blizzard.com/"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if got := c.baseURL(domain.RegionEU); got != "https://eu.api.blizzard.com" {
		t.Errorf("got %q", got)
	}
}

type memCache struct {
	now     func() time.Time
	entries map[string]memEntry
}

type memEntry struct {
	data    []byte
	expires time.Time
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := m.entries[key]
	if !ok || !m.now().Before(e.expires) {
		return nil, domain.ErrNotFound
	}
	return e.data, nil
}

func (m *memCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	m.entries[key] = memEntry{data: data, expires: m.now().Add(ttl)}
	return nil
}

func TestResponseCache(t *testing.T) {
	var auctionHits, indexHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/data/wow/connected-realm/3/auctions", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&auctionHits, 1)
		fmt.Fprint(w, `{"auctions":[{"id":1,"item":{"id":19019},"buyout":100,"quantity":1}]}`)
	})
	mux.HandleFunc("/data/wow/connected-realm/index", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&indexHits, 1)
		fmt.Fprint(w, `{"connected_realms":[{"href":"https://us.api.blizzard.com/data/wow/connected-realm/3"}]}`)
	})
	c, _ := newTestClient(t, mux)
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }
	c.WithCache(&memCache{now: func() time.Time { return now }, entries: map[string]memEntry{}}, 7*24*time.Hour, time.Hour)
	ctx := context.Background()

	tests := []struct {
		name     string
		advance  time.Duration
		wantHits int32
		wantTS   int32
	}{
		{"first fetch", 0, 1, 1700000000},
		{"within ttl", 30 * time.Minute, 1, 1700000000},
		{"after ttl", 31 * time.Minute, 2, 1700003660},
	}
	for _, tt := range tests {
		now = now.Add(tt.advance)
		resp, err := c.Auctions(ctx, usNS, 3, domain.FactionNone)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got := atomic.LoadInt32(&auctionHits); got != tt.wantHits {
			t.Errorf("%s: server hits = %d, want %d", tt.name, got, tt.wantHits)
		}
		if resp.Timestamp != tt.wantTS {
			t.Errorf("%s: timestamp = %d, want %d", tt.name, resp.Timestamp, tt.wantTS)
		}
		if len(resp.Auctions) != 1 || resp.Auctions[0].Item.ID != 19019 {
			t.Errorf("%s: auctions = %+v", tt.name, resp.Auctions)
		}
	}

	for i := 0; i < 3; i++ {
		if _, err := c.ConnectedRealmIDs(ctx, usNS); err != nil {
			t.Fatal(err)
		}
		now = now.Add(24 * time.Hour)
	}
	if got := atomic.LoadInt32(&indexHits); got != 1 {
		t.Errorf("index hits = %d, want 1 within a week", got)
	}
}

func TestResponseCacheKeyedByNamespace(t *testing.T) {
	if cacheKey(usNS, "/a") == cacheKey(usNS, "/b") {
		t.Error("paths share a key")
	}
	eu := domain.Namespace{Category: domain.CategoryDynamic, Region: domain.RegionEU}
	if cacheKey(usNS, "/a") == cacheKey(eu, "/a") {
		t.Error("regions share a key")
	}
}
