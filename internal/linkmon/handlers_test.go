package linkmon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HerbHall/linkpulse/pkg/models"
)

func TestStatusAPI_Status(t *testing.T) {
	f := newFixture(t, DefaultConfig(), []models.Endpoint{epA, epB})
	f.prober.set(epB.Host, true)
	f.monitor.Scan(context.Background())

	mux := http.NewServeMux()
	NewStatusAPI(f.monitor).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var got map[string]map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["Unit_A"]["Provider_1"] {
		t.Error("Unit_A/Provider_1 reported online, want offline")
	}
	if !got["Unit_B"]["Provider_1"] {
		t.Error("Unit_B/Provider_1 reported offline, want online")
	}
}

func TestStatusAPI_StatusBeforeFirstScan(t *testing.T) {
	f := newFixture(t, DefaultConfig(), []models.Endpoint{epA})
	mux := http.NewServeMux()
	NewStatusAPI(f.monitor).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if body := rec.Body.String(); body != "{}\n" {
		t.Errorf("body = %q, want an empty object", body)
	}
}

func TestStatusAPI_Offline(t *testing.T) {
	f := newFixture(t, DefaultConfig(), []models.Endpoint{epA})
	f.ledger.ledger = NewLedger()
	f.ledger.ledger.Put("Unit_A", "Provider_1", Outage{Since: time.Date(2025, 3, 10, 9, 15, 0, 0, time.Local)})
	f.monitor.LoadLedger(context.Background())

	mux := http.NewServeMux()
	NewStatusAPI(f.monitor).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/offline", nil))

	want := `{"Unit_A":{"Provider_1":{"desde":"2025-03-10 09:15"}}}` + "\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestModule_LinkRoutes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AlertDelay = 0
	f := newFixture(t, cfg, []models.Endpoint{epA, epB})
	f.prober.set(epB.Host, true)
	f.monitor.Scan(context.Background())

	m := &Module{monitor: f.monitor}
	mux := http.NewServeMux()
	for _, r := range m.Routes() {
		mux.HandleFunc(r.Method+" /api/v1/linkmon"+r.Path, r.Handler)
	}

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{name: "list links", path: "/api/v1/linkmon/links", wantStatus: http.StatusOK},
		{name: "one link", path: "/api/v1/linkmon/links/Unit_A/Provider_1", wantStatus: http.StatusOK},
		{name: "unknown link", path: "/api/v1/linkmon/links/Unit_Z/Provider_1", wantStatus: http.StatusNotFound},
		{name: "outages", path: "/api/v1/linkmon/outages", wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.wantStatus)
			}
		})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/linkmon/outages", nil))
	var outages []outageResponse
	if err := json.NewDecoder(rec.Body).Decode(&outages); err != nil {
		t.Fatalf("decode outages: %v", err)
	}
	if len(outages) != 1 || outages[0].Unit != "Unit_A" {
		t.Errorf("outages = %+v, want Unit_A only", outages)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/linkmon/links/Unit_A/Provider_1", nil))
	var link LinkStatus
	if err := json.NewDecoder(rec.Body).Decode(&link); err != nil {
		t.Fatalf("decode link: %v", err)
	}
	if link.State != models.LinkStateConfirmedOffline || link.Host != epA.Host {
		t.Errorf("link = %+v, want confirmed offline on %s", link, epA.Host)
	}
}

func TestModule_RoutesBeforeInit(t *testing.T) {
	m := New(nil, nil)
	for _, r := range m.Routes() {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(r.Method, "/x", nil)
		r.Handler(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s before Init = %d, want 503", r.Method, r.Path, rec.Code)
		}
	}
}
