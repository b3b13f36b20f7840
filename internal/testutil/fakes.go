package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/linkpulse/internal/store"
	"github.com/HerbHall/linkpulse/pkg/plugin"
)

// NewStore opens an in-memory SQLite store closed at test cleanup.
func NewStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New(:memory:): %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Notifier records every message it is asked to deliver. Err, when set,
// is returned from each Notify call after recording.
type Notifier struct {
	mu       sync.Mutex
	messages []string
	Err      error
}

func (n *Notifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return n.Err
}

func (n *Notifier) Type() string { return "recording" }

// Messages returns a copy of the recorded messages.
func (n *Notifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// MockBus is a synchronous plugin.EventBus that records every event.
type MockBus struct {
	mu       sync.Mutex
	events   []plugin.Event
	handlers map[string][]plugin.EventHandler
}

// Compile-time interface guard.
var _ plugin.EventBus = (*MockBus)(nil)

// NewMockBus creates an empty recording bus.
func NewMockBus() *MockBus {
	return &MockBus{handlers: make(map[string][]plugin.EventHandler)}
}

func (b *MockBus) Publish(ctx context.Context, event plugin.Event) error {
	b.mu.Lock()
	b.events = append(b.events, event)
	handlers := append([]plugin.EventHandler(nil), b.handlers[event.Topic]...)
	handlers = append(handlers, b.handlers["*"]...)
	b.mu.Unlock()

	for _, h := range handlers {
		h(ctx, event)
	}
	return nil
}

// PublishAsync delivers synchronously so tests can assert right after.
func (b *MockBus) PublishAsync(ctx context.Context, event plugin.Event) {
	_ = b.Publish(ctx, event)
}

func (b *MockBus) Subscribe(topic string, handler plugin.EventHandler) func() {
	b.mu.Lock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	b.mu.Unlock()
	return func() {}
}

func (b *MockBus) SubscribeAll(handler plugin.EventHandler) func() {
	return b.Subscribe("*", handler)
}

// Events returns the recorded events, optionally filtered by topic.
func (b *MockBus) Events(topic string) []plugin.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []plugin.Event
	for _, e := range b.events {
		if topic == "" || e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}
