package linkmon

import (
	"encoding/json"
	"net/http"

	"github.com/HerbHall/linkpulse/pkg/models"
	"github.com/HerbHall/linkpulse/pkg/plugin"
)

// StatusSource is the read side of the monitor used by the HTTP API.
type StatusSource interface {
	Snapshot() *models.StatusSnapshot
	Ledger() Ledger
	Links() []LinkStatus
}

// Compile-time interface guard.
var _ StatusSource = (*Monitor)(nil)

// StatusAPI serves the front end's two read-only endpoints.
type StatusAPI struct {
	source StatusSource
}

// NewStatusAPI creates the status API over source.
func NewStatusAPI(source StatusSource) *StatusAPI {
	return &StatusAPI{source: source}
}

// RegisterRoutes mounts GET /api/status and GET /api/offline.
func (a *StatusAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", a.handleStatus)
	mux.HandleFunc("GET /api/offline", a.handleOffline)
}

// handleStatus returns unit -> provider -> online from the latest scan.
func (a *StatusAPI) handleStatus(w http.ResponseWriter, _ *http.Request) {
	links := map[string]map[string]bool{}
	if snap := a.source.Snapshot(); snap != nil && snap.Links != nil {
		links = snap.Links
	}
	linkmonWriteJSON(w, http.StatusOK, links)
}

// handleOffline returns the outage ledger: unit -> provider -> {"desde": ...}.
func (a *StatusAPI) handleOffline(w http.ResponseWriter, _ *http.Request) {
	linkmonWriteJSON(w, http.StatusOK, a.source.Ledger())
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/links", Handler: m.handleListLinks},
		{Method: "GET", Path: "/links/{unit}/{provider}", Handler: m.handleGetLink},
		{Method: "GET", Path: "/outages", Handler: m.handleListOutages},
	}
}

// handleListLinks returns the runtime state of every link.
func (m *Module) handleListLinks(w http.ResponseWriter, _ *http.Request) {
	if m.monitor == nil {
		linkmonWriteError(w, http.StatusServiceUnavailable, "monitor not initialized")
		return
	}
	linkmonWriteJSON(w, http.StatusOK, m.monitor.Links())
}

// handleGetLink returns one link's runtime state.
func (m *Module) handleGetLink(w http.ResponseWriter, r *http.Request) {
	if m.monitor == nil {
		linkmonWriteError(w, http.StatusServiceUnavailable, "monitor not initialized")
		return
	}
	unit, provider := r.PathValue("unit"), r.PathValue("provider")
	for _, l := range m.monitor.Links() {
		if l.Unit == unit && l.Provider == provider {
			linkmonWriteJSON(w, http.StatusOK, l)
			return
		}
	}
	linkmonWriteError(w, http.StatusNotFound, "link not found")
}

// outageResponse is one open outage in list form.
type outageResponse struct {
	Unit     string `json:"unit"`
	Provider string `json:"provider"`
	Since    string `json:"since"`
}

// handleListOutages returns open outages sorted by unit and provider.
func (m *Module) handleListOutages(w http.ResponseWriter, _ *http.Request) {
	if m.monitor == nil {
		linkmonWriteError(w, http.StatusServiceUnavailable, "monitor not initialized")
		return
	}
	entries := m.monitor.Ledger().Entries()
	out := make([]outageResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, outageResponse{Unit: e.Unit, Provider: e.Provider, Since: e.SinceText()})
	}
	linkmonWriteJSON(w, http.StatusOK, out)
}

func linkmonWriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func linkmonWriteError(w http.ResponseWriter, status int, msg string) {
	linkmonWriteJSON(w, status, map[string]any{"error": msg, "status": status})
}
