// Package gateway supervises the local process that relays notifications
// to the messaging service.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/HerbHall/linkpulse/pkg/plugin"
	"github.com/HerbHall/linkpulse/pkg/roles"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Module implements the gateway supervision plugin.
type Module struct {
	logger     *zap.Logger
	cfg        Config
	supervisor *Supervisor

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new gateway plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "gateway",
		Version:     "0.1.0",
		Description: "Starts and watches the local notification gateway",
		Roles:       []string{roles.RoleNotification},
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal gateway config: %w", err)
		}
	}
	m.cfg = m.cfg.withDefaults()
	m.supervisor = NewSupervisor(m.cfg, m.logger)

	m.logger.Info("gateway module initialized",
		zap.Bool("enabled", m.cfg.Enabled),
		zap.String("health_url", m.cfg.HealthURL),
		zap.Duration("check_interval", m.cfg.CheckInterval),
	)
	return nil
}

// Start makes sure the gateway is up before monitoring begins. A gateway
// that cannot be started is logged; notifications then fail and are
// dropped like any other delivery error.
func (m *Module) Start(ctx context.Context) error {
	if !m.cfg.Enabled || m.supervisor == nil {
		if m.logger != nil {
			m.logger.Info("gateway module started (supervision disabled)")
		}
		return nil
	}

	m.ensure(ctx)

	if m.cfg.CheckInterval <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(m.cfg.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				m.ensure(loopCtx)
			}
		}
	}(m.done)
	return nil
}

func (m *Module) ensure(ctx context.Context) {
	started, err := m.supervisor.EnsureRunning(ctx)
	switch {
	case err != nil:
		m.logger.Warn("failed to start gateway", zap.Error(err))
	case started:
		m.logger.Info("gateway was down, started it")
	default:
		m.logger.Debug("gateway reachable")
	}
}

func (m *Module) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if m.supervisor != nil {
		m.supervisor.Stop(ctx)
	}
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	if m.supervisor == nil {
		return plugin.HealthStatus{Status: "unhealthy", Message: "not initialized"}
	}
	if !m.cfg.Enabled {
		return plugin.HealthStatus{Status: "healthy", Message: "supervision disabled"}
	}
	details := map[string]string{"health_url": m.cfg.HealthURL}
	if pid := m.supervisor.PID(); pid != 0 {
		details["pid"] = strconv.Itoa(pid)
	}
	if !m.supervisor.Healthy(ctx) {
		return plugin.HealthStatus{Status: "degraded", Message: "gateway not answering", Details: details}
	}
	return plugin.HealthStatus{Status: "healthy", Details: details}
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/status", Handler: m.handleStatus},
	}
}

type statusResponse struct {
	Enabled   bool   `json:"enabled"`
	Reachable bool   `json:"reachable"`
	Managed   bool   `json:"managed"`
	PID       int    `json:"pid,omitempty"`
	HealthURL string `json:"health_url"`
}

func (m *Module) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if m.supervisor == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "gateway module not initialized", "status": http.StatusServiceUnavailable})
		return
	}
	pid := m.supervisor.PID()
	_ = json.NewEncoder(w).Encode(statusResponse{
		Enabled:   m.cfg.Enabled,
		Reachable: m.supervisor.Healthy(r.Context()),
		Managed:   pid != 0,
		PID:       pid,
		HealthURL: m.cfg.HealthURL,
	})
}
