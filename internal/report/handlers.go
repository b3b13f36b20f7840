package report

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/HerbHall/linkpulse/pkg/plugin"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/preview", Handler: m.handlePreview},
		{Method: "POST", Path: "/send", Handler: m.handleSend},
	}
}

type previewResponse struct {
	Text       string     `json:"text"`
	NextReport *time.Time `json:"next_report,omitempty"`
}

// handlePreview returns the text the next report would carry.
func (m *Module) handlePreview(w http.ResponseWriter, _ *http.Request) {
	if m.reporter == nil {
		reportWriteError(w, http.StatusServiceUnavailable, "report module not initialized")
		return
	}
	resp := previewResponse{Text: Summary(m.ledger().Ledger())}
	if next := m.reporter.Next(); !next.IsZero() && m.cfg.Enabled {
		resp.NextReport = &next
	}
	reportWriteJSON(w, http.StatusOK, resp)
}

// handleSend delivers a report now, outside the schedule.
func (m *Module) handleSend(w http.ResponseWriter, r *http.Request) {
	if m.reporter == nil {
		reportWriteError(w, http.StatusServiceUnavailable, "report module not initialized")
		return
	}
	text := Summary(m.ledger().Ledger())
	if err := m.notifier.Notify(r.Context(), text); err != nil {
		m.logger.Warn("manual report failed", zap.Error(err))
		reportWriteError(w, http.StatusBadGateway, "send report: "+err.Error())
		return
	}
	reportWriteJSON(w, http.StatusOK, map[string]string{"text": text})
}

func reportWriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func reportWriteError(w http.ResponseWriter, status int, msg string) {
	reportWriteJSON(w, status, map[string]any{"error": msg, "status": status})
}
