// Package linkmon is the link-availability monitor. It samples each
// configured link on a fixed cadence, debounces failures into confirmed
// outages, keeps the durable outage ledger, and notifies once per change.
package linkmon

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HerbHall/linkpulse/internal/notify"
	"github.com/HerbHall/linkpulse/pkg/models"
	"github.com/HerbHall/linkpulse/pkg/plugin"
	"go.uber.org/zap"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// linkState is the in-memory runtime state of one link. offlineSince is
// zero while the link is online.
type linkState struct {
	online       bool
	offlineSince time.Time
	lastLoss     float64
	lastChecked  time.Time
}

// LinkStatus is a point-in-time view of one link's runtime state.
type LinkStatus struct {
	models.Endpoint
	State        models.LinkState `json:"state"`
	LossPercent  float64          `json:"loss_percent"`
	OfflineSince time.Time        `json:"offline_since,omitzero"`
	LastChecked  time.Time        `json:"last_checked,omitzero"`
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithProber sets the reachability prober.
func WithProber(p Prober) Option { return func(m *Monitor) { m.prober = p } }

// WithNotifier sets the notification channel. Delivery errors are logged
// and dropped.
func WithNotifier(n notify.Notifier) Option { return func(m *Monitor) { m.notifier = n } }

// WithAlarm sets the audible alarm.
func WithAlarm(a Alarm) Option { return func(m *Monitor) { m.alarm = a } }

// WithLedgerStore sets where the outage ledger is persisted.
func WithLedgerStore(s LedgerStore) Option { return func(m *Monitor) { m.store = s } }

// WithClock sets the time source.
func WithClock(c Clock) Option { return func(m *Monitor) { m.clock = c } }

// WithBus sets the bus that receives transition and snapshot events.
func WithBus(b plugin.EventBus) Option { return func(m *Monitor) { m.bus = b } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(m *Monitor) { m.logger = l } }

// Monitor owns the runtime state of every link and the outage ledger.
type Monitor struct {
	cfg       Config
	endpoints []models.Endpoint

	prober   Prober
	notifier notify.Notifier
	alarm    Alarm
	store    LedgerStore
	clock    Clock
	bus      plugin.EventBus
	logger   *zap.Logger

	mu     sync.Mutex // guards states and ledger
	states map[string]*linkState
	ledger Ledger

	saveMu   sync.Mutex // serializes ledger saves
	snapshot atomic.Pointer[models.StatusSnapshot]
}

// NewMonitor creates a monitor for endpoints. Without options it uses an
// ICMP prober, no notifications, no alarm, no persistence, and the wall clock.
func NewMonitor(cfg Config, endpoints []models.Endpoint, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:       cfg.withDefaults(),
		endpoints: append([]models.Endpoint(nil), endpoints...),
		notifier:  notify.Nop{},
		alarm:     NopAlarm{},
		clock:     SystemClock{},
		logger:    zap.NewNop(),
		states:    make(map[string]*linkState, len(endpoints)),
		ledger:    NewLedger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.prober == nil {
		m.prober = NewICMPProber(m.cfg.PingTimeout, m.cfg.Privileged, m.logger)
	}
	m.snapshot.Store(&models.StatusSnapshot{Links: map[string]map[string]bool{}})
	return m
}

// Config returns the effective configuration.
func (m *Monitor) Config() Config {
	return m.cfg
}

// Endpoints returns a copy of the monitored links.
func (m *Monitor) Endpoints() []models.Endpoint {
	return append([]models.Endpoint(nil), m.endpoints...)
}

// LoadLedger replaces the in-memory ledger with the persisted one. A read
// failure is logged and leaves an empty ledger; monitoring carries on.
func (m *Monitor) LoadLedger(ctx context.Context) {
	if m.store == nil {
		return
	}
	l, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("failed to load outage ledger, starting empty", zap.Error(err))
	}
	if l == nil {
		l = NewLedger()
	}

	m.mu.Lock()
	m.ledger = l
	m.mu.Unlock()

	openOutages.Set(float64(l.Len()))
	m.logger.Info("outage ledger loaded", zap.Int("open_outages", l.Len()))
}

// Ledger returns a copy of the current outage ledger.
func (m *Monitor) Ledger() Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Clone()
}

// Snapshot returns the most recently published status snapshot. The
// returned value must not be modified.
func (m *Monitor) Snapshot() *models.StatusSnapshot {
	return m.snapshot.Load()
}

// Links returns the runtime state of every configured link in
// configuration order.
func (m *Monitor) Links() []LinkStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]LinkStatus, 0, len(m.endpoints))
	for _, ep := range m.endpoints {
		ls := LinkStatus{Endpoint: ep, State: models.LinkStateOnline}
		if st, ok := m.states[ep.Key()]; ok {
			ls.LossPercent = st.lastLoss
			ls.LastChecked = st.lastChecked
			ls.OfflineSince = st.offlineSince
			if !st.online {
				ls.State = models.LinkStateProvisionallyOffline
			}
		}
		if m.ledger.Has(ep.Unit, ep.Provider) {
			ls.State = models.LinkStateConfirmedOffline
		}
		out = append(out, ls)
	}
	return out
}

// transition is the set of side effects one evaluation decided on.
// Effects run after the state lock is released.
type transition struct {
	steps   []step
	since   time.Time
	alarm   bool
	message string
	persist bool
}

// step is one state change announced on the bus.
type step struct {
	topic string
	state models.LinkState
}

// Evaluate feeds one loss sample for ep into its state machine and
// reports whether the link is reachable now (loss below the threshold).
//
// Going offline is debounced: the first failing batch only marks the
// link provisionally offline. Once it has failed continuously for
// AlertDelay an outage is written to the ledger and announced. Recovery
// is immediate. Ledger presence gates every notification, so repeated
// samples in the same state never notify twice.
func (m *Monitor) Evaluate(ctx context.Context, ep models.Endpoint, loss float64) bool {
	now := m.clock.Now()
	reachable := loss < m.cfg.LossThreshold

	m.mu.Lock()
	st, ok := m.states[ep.Key()]
	if !ok {
		st = &linkState{online: true}
		m.states[ep.Key()] = st
	}
	st.lastLoss = loss
	st.lastChecked = now

	var tr *transition
	switch {
	case reachable && st.online:
		st.offlineSince = time.Time{}
		// An outage carried over from a previous run ends here.
		if o, ok := m.ledger.Get(ep.Unit, ep.Provider); ok {
			m.ledger.Remove(ep.Unit, ep.Provider)
			tr = &transition{
				steps:   []step{{TopicLinkRecovered, models.LinkStateOnline}},
				since:   o.Since,
				message: RecoveredMessage(ep),
				persist: true,
			}
		}

	case !reachable && st.online:
		st.online = false
		st.offlineSince = now
		tr = &transition{
			steps: []step{{TopicLinkDown, models.LinkStateProvisionallyOffline}},
			since: now,
			alarm: true,
		}
		// With no debounce window the outage is confirmed right away.
		m.confirm(ep, st, now, tr)

	case !reachable && !st.online:
		tr = &transition{since: st.offlineSince}
		if !m.confirm(ep, st, now, tr) {
			tr = nil
		}

	default: // reachable && !st.online
		st.online = true
		tr = &transition{
			steps: []step{{TopicLinkRecovered, models.LinkStateOnline}},
			since: st.offlineSince,
		}
		st.offlineSince = time.Time{}
		if o, ok := m.ledger.Get(ep.Unit, ep.Provider); ok {
			m.ledger.Remove(ep.Unit, ep.Provider)
			tr.since = o.Since
			tr.message = RecoveredMessage(ep)
			tr.persist = true
		}
	}
	outages := m.ledger.Len()
	m.mu.Unlock()

	linkLoss.WithLabelValues(ep.Unit, ep.Provider).Set(loss)
	if reachable {
		linkUp.WithLabelValues(ep.Unit, ep.Provider).Set(1)
	} else {
		linkUp.WithLabelValues(ep.Unit, ep.Provider).Set(0)
	}

	if tr != nil {
		m.apply(ctx, ep, loss, now, outages, tr)
	}
	return reachable
}

// confirm records the outage once the link has been failing for at least
// AlertDelay and no entry exists yet. It reports whether it did.
// Must be called with m.mu held.
func (m *Monitor) confirm(ep models.Endpoint, st *linkState, now time.Time, tr *transition) bool {
	if now.Sub(st.offlineSince) < m.cfg.AlertDelay || m.ledger.Has(ep.Unit, ep.Provider) {
		return false
	}
	m.ledger.Put(ep.Unit, ep.Provider, Outage{Since: st.offlineSince})
	tr.steps = append(tr.steps, step{TopicLinkConfirmed, models.LinkStateConfirmedOffline})
	tr.message = OfflineMessage(ep)
	tr.persist = true
	return true
}

// apply runs a transition's side effects. None of them can fail the caller.
func (m *Monitor) apply(ctx context.Context, ep models.Endpoint, loss float64, now time.Time, outages int, tr *transition) {
	log := m.logger.With(
		zap.String("unit", ep.Unit),
		zap.String("provider", ep.Provider),
		zap.String("host", ep.Host),
		zap.Float64("loss_percent", loss),
	)
	for _, st := range tr.steps {
		switch st.state {
		case models.LinkStateProvisionallyOffline:
			log.Warn("link stopped answering")
		case models.LinkStateConfirmedOffline:
			log.Error("link outage confirmed", zap.Time("since", tr.since))
		case models.LinkStateOnline:
			log.Info("link recovered", zap.Time("offline_since", tr.since))
		}
		linkTransitions.WithLabelValues(ep.Unit, ep.Provider, string(st.state)).Inc()
	}
	openOutages.Set(float64(outages))

	if tr.alarm {
		m.alarm.Sound()
	}
	if tr.persist {
		m.persist(ctx)
	}
	if tr.message != "" {
		m.send(ctx, tr.message)
	}

	if m.bus == nil {
		return
	}
	for _, st := range tr.steps {
		m.bus.PublishAsync(ctx, plugin.Event{
			Topic:  st.topic,
			Source: "linkmon",
			Payload: models.LinkEvent{
				Unit:        ep.Unit,
				Provider:    ep.Provider,
				Host:        ep.Host,
				State:       st.state,
				LossPercent: loss,
				Since:       tr.since,
				At:          now,
			},
		})
	}
}

// persist saves the newest ledger. Saves are serialized and each one
// copies the ledger after taking the save lock, so the last write to
// land always reflects the latest in-memory state.
func (m *Monitor) persist(ctx context.Context) {
	if m.store == nil {
		return
	}
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	l := m.Ledger()
	if err := m.store.Save(ctx, l); err != nil {
		persistFailures.Inc()
		m.logger.Warn("failed to save outage ledger", zap.Error(err))
	}
}

// send delivers a message and swallows delivery errors.
func (m *Monitor) send(ctx context.Context, text string) {
	if err := m.notifier.Notify(ctx, text); err != nil {
		notifyFailures.Inc()
		m.logger.Warn("notification failed",
			zap.String("notifier", m.notifier.Type()),
			zap.Error(err),
		)
	}
}

// Scan samples every link once, using at most MaxWorkers concurrent
// jobs, and publishes the resulting snapshot. It waits for every job.
// A job that panics reports its link offline without touching the others.
// When ctx is cancelled mid-scan, links without a fresh sample keep their
// previous snapshot value and their state machines are left untouched.
func (m *Monitor) Scan(ctx context.Context) *models.StatusSnapshot {
	start := time.Now()
	prev := m.snapshot.Load()
	results := make([]bool, len(m.endpoints))
	sem := make(chan struct{}, m.cfg.MaxWorkers)
	var wg sync.WaitGroup

	for i, ep := range m.endpoints {
		results[i] = carryOver(prev, ep)

		select {
		case <-ctx.Done():
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, ep models.Endpoint) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if rec := recover(); rec != nil {
					m.logger.Error("link check panicked",
						zap.String("unit", ep.Unit),
						zap.String("provider", ep.Provider),
						zap.Any("panic", rec),
					)
					results[i] = false
				}
			}()

			loss := EstimateLoss(ctx, m.prober, ep.Host, m.cfg.Attempts, m.cfg.AttemptInterval)
			if ctx.Err() != nil {
				return
			}
			results[i] = m.Evaluate(ctx, ep, loss)
		}(i, ep)
	}
	wg.Wait()

	snap := &models.StatusSnapshot{
		Links:     make(map[string]map[string]bool),
		ScannedAt: m.clock.Now(),
	}
	for i, ep := range m.endpoints {
		bucket, ok := snap.Links[ep.Unit]
		if !ok {
			bucket = make(map[string]bool)
			snap.Links[ep.Unit] = bucket
		}
		bucket[ep.Provider] = results[i]
	}
	m.snapshot.Store(snap)
	scanDuration.Observe(time.Since(start).Seconds())

	if m.bus != nil {
		m.bus.PublishAsync(context.WithoutCancel(ctx), plugin.Event{
			Topic:   TopicSnapshotPublished,
			Source:  "linkmon",
			Payload: snap,
		})
	}
	return snap
}

// carryOver is the value a link keeps when it is not sampled this tick.
// Links never sampled are assumed online.
func carryOver(prev *models.StatusSnapshot, ep models.Endpoint) bool {
	if online, ok := prev.Online(ep.Unit, ep.Provider); ok {
		return online
	}
	return true
}

// OfflineMessage is the text announcing a confirmed outage.
func OfflineMessage(ep models.Endpoint) string {
	return fmt.Sprintf("⛔ *%s* (%s) is offline.", ep.Unit, ep.Provider)
}

// RecoveredMessage is the text announcing that a confirmed outage ended.
func RecoveredMessage(ep models.Endpoint) string {
	return fmt.Sprintf("✅ *%s* (%s) is back.", ep.Unit, ep.Provider)
}
