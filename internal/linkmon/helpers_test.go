package linkmon

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HerbHall/linkpulse/internal/testutil"
	"github.com/HerbHall/linkpulse/pkg/models"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)

// memLedgerStore keeps saved ledgers in memory.
type memLedgerStore struct {
	mu      sync.Mutex
	ledger  Ledger
	saves   int
	saveErr error
	loadErr error
}

func (s *memLedgerStore) Load(context.Context) (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return NewLedger(), s.loadErr
	}
	if s.ledger == nil {
		return NewLedger(), nil
	}
	return s.ledger.Clone(), nil
}

func (s *memLedgerStore) Save(_ context.Context, l Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.ledger = l.Clone()
	return nil
}

func (s *memLedgerStore) snapshot() (Ledger, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Clone(), s.saves
}

// countingAlarm counts Sound calls.
type countingAlarm struct{ n atomic.Int32 }

func (a *countingAlarm) Sound() { a.n.Add(1) }

// hostProber answers per host from a mutable table; unknown hosts fail.
type hostProber struct {
	mu    sync.Mutex
	up    map[string]bool
	calls atomic.Int32
}

func newHostProber() *hostProber { return &hostProber{up: map[string]bool{}} }

func (p *hostProber) set(host string, up bool) {
	p.mu.Lock()
	p.up[host] = up
	p.mu.Unlock()
}

func (p *hostProber) Probe(_ context.Context, host string) bool {
	p.calls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.up[host]
}

type fixture struct {
	monitor  *Monitor
	clock    *testutil.Clock
	notifier *testutil.Notifier
	ledger   *memLedgerStore
	alarm    *countingAlarm
	bus      *testutil.MockBus
	prober   *hostProber
}

func newFixture(t *testing.T, cfg Config, endpoints []models.Endpoint) *fixture {
	t.Helper()
	f := &fixture{
		clock:    testutil.NewClock(t0),
		notifier: &testutil.Notifier{},
		ledger:   &memLedgerStore{},
		alarm:    &countingAlarm{},
		bus:      testutil.NewMockBus(),
		prober:   newHostProber(),
	}
	cfg.AttemptInterval = 0
	f.monitor = NewMonitor(cfg, endpoints,
		WithClock(f.clock),
		WithNotifier(f.notifier),
		WithLedgerStore(f.ledger),
		WithAlarm(f.alarm),
		WithBus(f.bus),
		WithProber(f.prober),
	)
	return f
}

var errDisk = errors.New("disk full")
