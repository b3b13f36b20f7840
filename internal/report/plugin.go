package report

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/HerbHall/linkpulse/internal/linkmon"
	"github.com/HerbHall/linkpulse/internal/notify"
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

// monitorProvider is implemented by monitoring-role plugins that own a ledger.
type monitorProvider interface {
	Monitor() *linkmon.Monitor
}

// Module is the scheduled report plugin.
type Module struct {
	notifier notify.Notifier
	source   LedgerSource
	clock    linkmon.Clock

	cfg      Config
	logger   *zap.Logger
	reporter *Reporter

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures the report module.
type Option func(*Module)

// WithLedgerSource sets the ledger to report on. Without it the module
// reads the linkmon plugin's monitor during Init.
func WithLedgerSource(s LedgerSource) Option { return func(m *Module) { m.source = s } }

// WithClock sets the time source used for scheduling.
func WithClock(c linkmon.Clock) Option { return func(m *Module) { m.clock = c } }

// New creates the report plugin sending through notifier.
func New(notifier notify.Notifier, opts ...Option) *Module {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	m := &Module{notifier: notifier, clock: linkmon.SystemClock{}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "report",
		Version:      "0.1.0",
		Description:  "Scheduled outage reports and the startup announcement",
		Dependencies: []string{"linkmon"},
		Roles:        []string{roles.RoleNotification},
		APIVersion:   plugin.APIVersionCurrent,
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
			return fmt.Errorf("unmarshal report config: %w", err)
		}
	}
	if m.cfg.PollInterval <= 0 {
		m.cfg.PollInterval = DefaultConfig().PollInterval
	}

	slots, err := parseSlots(m.cfg.Times)
	if err != nil {
		return err
	}

	if m.source == nil {
		m.source = m.resolveSource(deps.Plugins)
	}

	m.reporter = NewReporter(m.ledger(), m.notifier, m.clock, slots, m.cfg.WeekdaysOnly, m.cfg.PollInterval, m.logger)

	m.logger.Info("report module initialized",
		zap.Bool("enabled", m.cfg.Enabled),
		zap.Strings("times", m.cfg.Times),
		zap.Bool("weekdays_only", m.cfg.WeekdaysOnly),
	)
	return nil
}

// resolveSource returns the monitor of the first monitoring plugin that
// has one.
func (m *Module) resolveSource(resolver plugin.PluginResolver) LedgerSource {
	if resolver == nil {
		return nil
	}
	for _, p := range resolver.ResolveByRole(roles.RoleMonitoring) {
		if mp, ok := p.(monitorProvider); ok && mp.Monitor() != nil {
			return mp.Monitor()
		}
	}
	return nil
}

// ledger returns the source, or an empty ledger when there is none.
func (m *Module) ledger() LedgerSource {
	if m.source == nil {
		return emptySource{}
	}
	return m.source
}

type emptySource struct{}

func (emptySource) Ledger() linkmon.Ledger { return linkmon.NewLedger() }

func (m *Module) Start(ctx context.Context) error {
	if m.reporter == nil {
		return nil
	}

	if m.cfg.StartupMessage {
		text := StartupMessage(m.ledger().Ledger())
		if err := m.notifier.Notify(ctx, text); err != nil {
			m.logger.Warn("startup message failed",
				zap.String("notifier", m.notifier.Type()),
				zap.Error(err),
			)
		}
	}

	if !m.cfg.Enabled {
		m.logger.Info("report module started (scheduled reports disabled)")
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
		ticker := time.NewTicker(m.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				m.reporter.Check(loopCtx)
			}
		}
	}(m.done)

	m.logger.Info("report module started", zap.Time("next_report", m.reporter.Next()))
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if m.reporter == nil {
		return plugin.HealthStatus{Status: "unhealthy", Message: "not initialized"}
	}
	details := map[string]string{"times": strings.Join(m.cfg.Times, ",")}
	if m.source == nil {
		return plugin.HealthStatus{Status: "degraded", Message: "no ledger source", Details: details}
	}
	if next := m.reporter.Next(); !next.IsZero() && m.cfg.Enabled {
		details["next_report"] = next.Format(time.RFC3339)
	}
	return plugin.HealthStatus{Status: "healthy", Details: details}
}
