package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HerbHall/linkpulse/internal/config"
	"github.com/HerbHall/linkpulse/pkg/plugin"
	"github.com/HerbHall/linkpulse/pkg/plugin/plugintest"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func TestContract(t *testing.T) {
	plugintest.TestPluginContract(t, func() plugin.Plugin { return New() })
}

func initGateway(t *testing.T, settings map[string]any) *Module {
	t.Helper()
	v := viper.New()
	for k, val := range settings {
		v.Set(k, val)
	}
	m := New()
	if err := m.Init(context.Background(), plugin.Dependencies{Config: config.New(v), Logger: zap.NewNop()}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return m
}

func TestModule_InitDefaults(t *testing.T) {
	m := initGateway(t, nil)
	if m.cfg.Enabled {
		t.Error("supervision enabled by default")
	}
	if m.cfg.HealthURL != "http://localhost:3000" {
		t.Errorf("HealthURL = %q", m.cfg.HealthURL)
	}
	if len(m.cfg.Command) != 2 || m.cfg.Command[0] != "node" {
		t.Errorf("Command = %v, want [node server.js]", m.cfg.Command)
	}
}

func TestModule_DisabledStartsNothing(t *testing.T) {
	m := initGateway(t, map[string]any{
		"health_url": deadURL(t),
		"command":    []string{"/nonexistent/gateway"},
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if m.supervisor.Running() {
		t.Error("disabled supervisor started a process")
	}
	if got := m.Health(context.Background()).Status; got != "healthy" {
		t.Errorf("Health = %q, want healthy when disabled", got)
	}
}

func TestModule_StartFailureIsNotFatal(t *testing.T) {
	m := initGateway(t, map[string]any{
		"enabled":       true,
		"health_url":    deadURL(t),
		"check_timeout": "200ms",
		"command":       []string{"/nonexistent/gateway"},
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil", err)
	}
	defer m.Stop(context.Background())

	if got := m.Health(context.Background()).Status; got != "degraded" {
		t.Errorf("Health = %q, want degraded", got)
	}
}

func TestModule_StatusRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	m := initGateway(t, map[string]any{"enabled": true, "health_url": srv.URL})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop(context.Background())

	rec := httptest.NewRecorder()
	m.Routes()[0].Handler(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var got statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Enabled || !got.Reachable || got.Managed {
		t.Errorf("status = %+v, want enabled, reachable and unmanaged", got)
	}
}
