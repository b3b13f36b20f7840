package linkmon

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/HerbHall/linkpulse/internal/notify"
	"github.com/HerbHall/linkpulse/pkg/models"
	"github.com/HerbHall/linkpulse/pkg/plugin"
	"github.com/HerbHall/linkpulse/pkg/roles"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
)

// Module wires the monitor and its scheduler into the plugin lifecycle.
type Module struct {
	endpoints []models.Endpoint
	notifier  notify.Notifier
	extra     []Option

	cfg       Config
	logger    *zap.Logger
	monitor   *Monitor
	ledger    LedgerStore
	scheduler *Scheduler
}

// New creates the linkmon plugin for endpoints, announcing outages through
// notifier. Options are applied after the ones derived from config, so
// callers can replace the prober, clock or ledger store.
func New(endpoints []models.Endpoint, notifier notify.Notifier, opts ...Option) *Module {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Module{
		endpoints: endpoints,
		notifier:  notifier,
		extra:     opts,
	}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "linkmon",
		Version:     "0.1.0",
		Description: "Link availability monitoring with debounced outage alerts",
		Required:    true,
		Roles:       []string{roles.RoleMonitoring},
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	if m.logger == nil {
		m.logger = zap.NewNop()
	}

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal linkmon config: %w", err)
		}
	}
	m.cfg = m.cfg.withDefaults()

	ledger, err := m.openLedger(ctx, deps.Store)
	if err != nil {
		return err
	}
	m.ledger = ledger

	var alarm Alarm = NopAlarm{}
	if m.cfg.Alarm {
		alarm = NewTerminalBell(nil)
	}

	opts := []Option{
		WithLogger(m.logger),
		WithNotifier(m.notifier),
		WithAlarm(alarm),
		WithLedgerStore(m.ledger),
	}
	if deps.Bus != nil {
		opts = append(opts, WithBus(deps.Bus))
	}
	opts = append(opts, m.extra...)

	m.monitor = NewMonitor(m.cfg, m.endpoints, opts...)
	m.monitor.LoadLedger(ctx)

	m.scheduler = NewScheduler(ScanFunc(func(ctx context.Context) error {
		m.monitor.Scan(ctx)
		return nil
	}), m.cfg.PingInterval, m.logger)

	m.logger.Info("linkmon module initialized",
		zap.Int("links", len(m.endpoints)),
		zap.Duration("ping_interval", m.cfg.PingInterval),
		zap.Duration("alert_delay", m.cfg.AlertDelay),
		zap.String("ledger_driver", m.cfg.LedgerDriver),
	)
	return nil
}

// openLedger picks the ledger backend named by the config.
func (m *Module) openLedger(ctx context.Context, store plugin.Store) (LedgerStore, error) {
	switch m.cfg.LedgerDriver {
	case LedgerDriverFile:
		return NewFileLedgerStore(m.cfg.LedgerPath), nil
	case LedgerDriverSQLite:
		if store == nil {
			return nil, errors.New("ledger_driver sqlite requires a database")
		}
		return NewSQLiteLedgerStore(ctx, store)
	default:
		return nil, fmt.Errorf("unknown ledger_driver %q", m.cfg.LedgerDriver)
	}
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if len(m.endpoints) == 0 {
		return errors.New("no links configured")
	}
	if m.cfg.LossThreshold > 100 {
		return fmt.Errorf("loss_threshold %v exceeds 100", m.cfg.LossThreshold)
	}
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	m.scheduler.Start(ctx)
	m.logger.Info("linkmon module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.scheduler != nil {
		m.scheduler.Stop()
	}
	if m.logger != nil {
		m.logger.Info("linkmon module stopped")
	}
	return nil
}

// Monitor returns the monitor built during Init, or nil before Init.
func (m *Module) Monitor() *Monitor {
	return m.monitor
}

// pinger is implemented by ledger stores backed by a database.
type pinger interface {
	Ping(ctx context.Context) error
}

// Ready reports whether the ledger backend is reachable.
func (m *Module) Ready(ctx context.Context) error {
	if m.monitor == nil {
		return errors.New("linkmon not initialized")
	}
	if p, ok := m.ledger.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("ledger store: %w", err)
		}
	}
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if m.monitor == nil || m.scheduler == nil || !m.scheduler.Running() {
		return plugin.HealthStatus{Status: "unhealthy", Message: "scheduler not running"}
	}

	snap := m.monitor.Snapshot()
	details := map[string]string{
		"links":        strconv.Itoa(len(m.endpoints)),
		"open_outages": strconv.Itoa(m.monitor.Ledger().Len()),
	}
	if snap.ScannedAt.IsZero() {
		return plugin.HealthStatus{Status: "degraded", Message: "first scan pending", Details: details}
	}
	details["last_scan"] = snap.ScannedAt.Format(time.RFC3339)

	// A scan older than three intervals means the loop is stuck.
	if time.Since(snap.ScannedAt) > 3*m.cfg.PingInterval+m.scanBudget() {
		return plugin.HealthStatus{Status: "degraded", Message: "scans are overdue", Details: details}
	}
	return plugin.HealthStatus{Status: "healthy", Details: details}
}

// scanBudget is the longest a single link check can take.
func (m *Module) scanBudget() time.Duration {
	return time.Duration(m.cfg.Attempts) * (m.cfg.PingTimeout + m.cfg.AttemptInterval)
}
