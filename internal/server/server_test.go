package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	localblob "github.com/alanyoungcy/auctiondb/internal/blob/local"
	"github.com/alanyoungcy/auctiondb/internal/dbfile"
	"github.com/alanyoungcy/auctiondb/internal/domain"
	"github.com/alanyoungcy/auctiondb/internal/market"
	"github.com/alanyoungcy/auctiondb/internal/server/handler"
)

var usNS = domain.Namespace{Category: domain.CategoryDynamic, Region: domain.RegionUS}

type fakeValues struct {
	values map[string]domain.ItemValues
}

func (f *fakeValues) Publish(_ context.Context, file string, values []domain.ItemValues) error {
	for _, v := range values {
		f.values[file+"|"+v.ItemString] = v
	}
	return nil
}

func (f *fakeValues) Get(_ context.Context, file, item string) (domain.ItemValues, error) {
	v, ok := f.values[file+"|"+item]
	if !ok {
		return domain.ItemValues{}, domain.ErrNotFound
	}
	return v, nil
}

type fakeCycles struct {
	entries []domain.CycleEntry
	file    string
}

func (f *fakeCycles) Log(_ context.Context, e domain.CycleEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeCycles) List(_ context.Context, file string, _ domain.ListOpts) ([]domain.CycleEntry, error) {
	f.file = file
	return f.entries, nil
}

type testEnv struct {
	mux     *http.ServeMux
	cycles  *fakeCycles
	trigger chan struct{}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	local, err := localblob.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	files := dbfile.NewHelper(local, true, logger)
	ctx := context.Background()

	store := market.NewStore()
	store.Add(domain.ItemKey(1), domain.MarketValueRecord{Timestamp: 1000, MarketValue: domain.Int64(10), NumAuctions: 2, MinBuyout: domain.Int64(9)})
	store.Add(domain.ItemKey(1), domain.MarketValueRecord{Timestamp: 2000, MarketValue: domain.Int64(12), NumAuctions: 3, MinBuyout: domain.Int64(11)})
	store.Add(domain.PetKey(7), domain.MarketValueRecord{Timestamp: 2000, MarketValue: domain.Int64(500), NumAuctions: 1, MinBuyout: domain.Int64(450)})
	if err := files.SaveStore(ctx, files.AuctionsFile(usNS, 1, domain.FactionNone), store); err != nil {
		t.Fatal(err)
	}
	meta := domain.NewMeta()
	meta.SetUpdateTS(2000, 2010)
	if err := meta.AddConnectedRealm(1, domain.ConnectedRealm{ID: 1, Realms: []domain.Realm{{Name: "Stormrage", ID: 60, Slug: "stormrage"}}}); err != nil {
		t.Fatal(err)
	}
	if err := files.SaveMeta(ctx, files.MetaFile(usNS), meta); err != nil {
		t.Fatal(err)
	}

	values := &fakeValues{values: map[string]domain.ItemValues{}}
	_ = values.Publish(ctx, "dynamic-us_auctions_1.gz", []domain.ItemValues{{ItemString: "1", MarketValue: 12}})
	cycles := &fakeCycles{entries: []domain.CycleEntry{{
		CycleID:      "c1",
		File:         "dynamic-us_auctions_1.gz",
		RecordsAdded: 2,
		StartedAt:    time.Unix(2000, 0),
		FinishedAt:   time.Unix(2010, 0),
	}}}
	trigger := make(chan struct{}, 1)

	mux := NewMux(Handlers{
		Health:   handler.NewHealthHandler(logger),
		Status:   handler.NewStatusHandler("serve", []string{"us"}),
		Files:    handler.NewFileHandler(files, logger),
		Items:    handler.NewItemHandler(files, market.DefaultTuning(), logger),
		Values:   handler.NewValueHandler(values, logger),
		Cycles:   handler.NewCycleHandler(cycles, logger),
		Pipeline: handler.NewPipelineHandler(logger).WithTriggerChannel(trigger),
	}, nil)
	return &testEnv{mux: mux, cycles: cycles, trigger: trigger}
}

func (e *testEnv) do(t *testing.T, method, target string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var body map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s %s: decode body %q: %v", method, target, rec.Body.String(), err)
		}
	}
	return rec.Code, body
}

func TestRoutes(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"health", "GET", "/api/health", http.StatusOK},
		{"status", "GET", "/api/status", http.StatusOK},
		{"files", "GET", "/api/files", http.StatusOK},
		{"files bad namespace", "GET", "/api/files?namespace=nope", http.StatusBadRequest},
		{"meta", "GET", "/api/namespaces/dynamic-us", http.StatusOK},
		{"meta missing", "GET", "/api/namespaces/dynamic-eu", http.StatusNotFound},
		{"item", "GET", "/api/items/1?file=dynamic-us_auctions_1.gz", http.StatusOK},
		{"item missing", "GET", "/api/items/99?file=dynamic-us_auctions_1.gz", http.StatusNotFound},
		{"item bad id", "GET", "/api/items/abc?file=dynamic-us_auctions_1.gz", http.StatusBadRequest},
		{"item no file", "GET", "/api/items/1", http.StatusBadRequest},
		{"item meta file", "GET", "/api/items/1?file=dynamic-us_meta.json", http.StatusBadRequest},
		{"value", "GET", "/api/values/dynamic-us_auctions_1.gz/1", http.StatusOK},
		{"value missing", "GET", "/api/values/dynamic-us_auctions_1.gz/2", http.StatusNotFound},
		{"value bad file", "GET", "/api/values/nope/1", http.StatusBadRequest},
		{"cycles", "GET", "/api/cycles?file=dynamic-us_auctions_1.gz", http.StatusOK},
		{"cycles bad file", "GET", "/api/cycles?file=nope", http.StatusBadRequest},
		{"trigger", "POST", "/api/update/trigger", http.StatusAccepted},
		{"trigger wrong method", "GET", "/api/update/trigger", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, body := env.do(t, tt.method, tt.target); code != tt.want {
				t.Errorf("status = %d, want %d (body %v)", code, tt.want, body)
			}
		})
	}
}

func TestFilesListing(t *testing.T) {
	env := newTestEnv(t)
	_, body := env.do(t, "GET", "/api/files?namespace=dynamic-us")
	if got := body["total"]; got != float64(2) {
		t.Fatalf("total = %v, want 2", got)
	}
}

func TestItemLookup(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, "GET", "/api/items/1?file=dynamic-us_auctions_1.gz")
	series := body["series"].([]any)
	if len(series) != 1 {
		t.Fatalf("series = %d, want 1", len(series))
	}
	s := series[0].(map[string]any)
	if s["item_string"] != "1" {
		t.Errorf("item_string = %v", s["item_string"])
	}
	if n := len(s["records"].([]any)); n != 2 {
		t.Errorf("records = %d, want 2", n)
	}
	values := s["values"].(map[string]any)
	// Readouts are taken at the last cycle, so only the 2000 record is recent.
	if values["recent"] != float64(12) || values["min_buyout"] != float64(11) || values["num_auctions"] != float64(3) {
		t.Errorf("values = %v", values)
	}
	if body["begin"] != float64(2000) || body["end"] != float64(2010) {
		t.Errorf("window = %v..%v", body["begin"], body["end"])
	}

	_, body = env.do(t, "GET", "/api/items/7?file=dynamic-us_auctions_1.gz&records=false")
	s = body["series"].([]any)[0].(map[string]any)
	if s["item_string"] != domain.PetKey(7).String() {
		t.Errorf("item_string = %v", s["item_string"])
	}
	if _, ok := s["records"]; ok {
		t.Error("records present with records=false")
	}
}

func TestCyclesFilter(t *testing.T) {
	env := newTestEnv(t)
	_, body := env.do(t, "GET", "/api/cycles?file=dynamic-us_auctions_1.gz&limit=10")
	if env.cycles.file != "dynamic-us_auctions_1.gz" {
		t.Errorf("file filter = %q", env.cycles.file)
	}
	if n := len(body["cycles"].([]any)); n != 1 {
		t.Errorf("cycles = %d, want 1", n)
	}
	if body["limit"] != float64(10) {
		t.Errorf("limit = %v", body["limit"])
	}
}

func TestTriggerQueuesOnce(t *testing.T) {
	env := newTestEnv(t)
	_, first := env.do(t, "POST", "/api/update/trigger")
	_, second := env.do(t, "POST", "/api/update/trigger")
	if first["queued"] != true || second["queued"] != false {
		t.Errorf("queued = %v, %v", first["queued"], second["queued"])
	}
	select {
	case <-env.trigger:
	default:
		t.Fatal("trigger not delivered")
	}
}

func TestOptionalRoutes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	local, err := localblob.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	files := dbfile.NewHelper(local, false, logger)
	mux := NewMux(Handlers{
		Health: handler.NewHealthHandler(logger),
		Files:  handler.NewFileHandler(files, logger),
		Items:  handler.NewItemHandler(files, market.DefaultTuning(), logger),
	}, nil)

	for _, target := range []string{"/api/values/dynamic-us_auctions_1.gz/1", "/api/cycles"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", target, rec.Code)
		}
	}
}

func TestHealthChecks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	health := handler.NewHealthHandler(logger).
		WithCheck("postgres", func(context.Context) error { return nil }).
		WithCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	health.HealthCheck(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "degraded" || body.Checks["postgres"] != "ok" || body.Checks["redis"] != "connection refused" {
		t.Errorf("body = %+v", body)
	}
}
