package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/linkpulse/internal/config"
	"github.com/HerbHall/linkpulse/internal/linkmon"
	"github.com/HerbHall/linkpulse/pkg/models"
	"github.com/HerbHall/linkpulse/pkg/plugin"
	"github.com/HerbHall/linkpulse/pkg/plugin/plugintest"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// doneToken is a completed paho token.
type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type message struct {
	topic    string
	retained bool
	payload  string
}

// fakeClient records publishes.
type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	err          error
	messages     []message
	disconnected bool
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message{topic: topic, retained: retained, payload: string(payload.([]byte))})
	return doneToken{err: c.err}
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func (c *fakeClient) byTopic() map[string]message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]message, len(c.messages))
	for _, msg := range c.messages {
		out[msg.topic] = msg
	}
	return out
}

func connectedModule(cfg Config, endpoints ...models.Endpoint) (*Module, *fakeClient) {
	c := &fakeClient{connected: true}
	return &Module{logger: zap.NewNop(), cfg: cfg, endpoints: endpoints, client: c}, c
}

var epA = models.Endpoint{Unit: "Unit_A", Provider: "Provider_1", Host: "192.0.2.1"}

func TestContract(t *testing.T) {
	plugintest.TestPluginContract(t, func() plugin.Plugin { return New(nil) })
}

func TestInfo_ReturnsCorrectMetadata(t *testing.T) {
	info := New(nil).Info()

	if info.Name != "mqtt" {
		t.Errorf("Name = %q, want mqtt", info.Name)
	}
	if len(info.Dependencies) != 1 || info.Dependencies[0] != "linkmon" {
		t.Errorf("Dependencies = %v, want [linkmon]", info.Dependencies)
	}
	if info.APIVersion != plugin.APIVersionCurrent {
		t.Errorf("APIVersion = %d, want %d", info.APIVersion, plugin.APIVersionCurrent)
	}
}

func TestSubscriptions_ReturnsLinkTopics(t *testing.T) {
	subs := New(nil).Subscriptions()

	topics := make(map[string]bool)
	for _, s := range subs {
		topics[s.Topic] = true
	}
	for _, topic := range []string{
		linkmon.TopicLinkDown,
		linkmon.TopicLinkConfirmed,
		linkmon.TopicLinkRecovered,
		linkmon.TopicSnapshotPublished,
	} {
		if !topics[topic] {
			t.Errorf("missing subscription for topic %q", topic)
		}
	}
}

func TestMqttTopicFromEvent_MapsCorrectly(t *testing.T) {
	m := &Module{cfg: Config{TopicPrefix: "linkpulse"}}

	tests := []struct {
		eventTopic string
		want       string
	}{
		{linkmon.TopicLinkDown, "linkpulse/events/down"},
		{linkmon.TopicLinkConfirmed, "linkpulse/events/confirmed"},
		{linkmon.TopicLinkRecovered, "linkpulse/events/recovered"},
		{"unknown.topic", "linkpulse/events/unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.eventTopic, func(t *testing.T) {
			if got := m.mqttTopicFromEvent(tt.eventTopic); got != tt.want {
				t.Errorf("mqttTopicFromEvent(%q) = %q, want %q", tt.eventTopic, got, tt.want)
			}
		})
	}
}

func TestPublishTransition_EventAndRetainedState(t *testing.T) {
	m, c := connectedModule(DefaultConfig())

	at := time.Date(2025, 3, 10, 9, 15, 0, 0, time.UTC)
	m.publishTransition(context.Background(), plugin.Event{
		Topic: linkmon.TopicLinkConfirmed,
		Payload: models.LinkEvent{
			Unit: "Unit_A", Provider: "Provider_1", Host: "192.0.2.1",
			State: models.LinkStateConfirmedOffline, LossPercent: 100, Since: at, At: at,
		},
	})

	got := c.byTopic()
	ev, ok := got["linkpulse/events/confirmed"]
	if !ok {
		t.Fatalf("no event message, got %v", got)
	}
	if ev.retained {
		t.Error("event message retained, want transient")
	}
	var decoded models.LinkEvent
	if err := json.Unmarshal([]byte(ev.payload), &decoded); err != nil {
		t.Fatalf("decode event payload: %v", err)
	}
	if decoded.Unit != "Unit_A" || decoded.State != models.LinkStateConfirmedOffline {
		t.Errorf("event payload = %+v", decoded)
	}

	state := got["linkpulse/links/Unit_A/Provider_1/state"]
	if !state.retained || state.payload != "confirmed_offline" {
		t.Errorf("state message = %+v, want retained confirmed_offline", state)
	}
}

func TestPublishTransition_PointerPayload(t *testing.T) {
	m, c := connectedModule(DefaultConfig())
	m.publishTransition(context.Background(), plugin.Event{
		Topic:   linkmon.TopicLinkRecovered,
		Payload: &models.LinkEvent{Unit: "Unit_B", Provider: "Provider_2", State: models.LinkStateOnline},
	})
	if got := c.byTopic()["linkpulse/links/Unit_B/Provider_2/state"].payload; got != "online" {
		t.Errorf("state payload = %q, want online", got)
	}
}

func TestPublishTransition_IgnoresForeignPayload(t *testing.T) {
	m, c := connectedModule(DefaultConfig())
	m.publishTransition(context.Background(), plugin.Event{Topic: linkmon.TopicLinkDown, Payload: 42})
	if n := len(c.byTopic()); n != 0 {
		t.Errorf("published %d messages for a foreign payload, want 0", n)
	}
}

func TestPublishSnapshot_RetainedOnline(t *testing.T) {
	m, c := connectedModule(DefaultConfig())
	m.publishSnapshot(context.Background(), plugin.Event{
		Topic: linkmon.TopicSnapshotPublished,
		Payload: &models.StatusSnapshot{Links: map[string]map[string]bool{
			"Unit_A":   {"Provider_1": true, "Provider_2": false},
			"Site/One": {"ISP#1": true},
		}},
	})

	got := c.byTopic()
	tests := map[string]string{
		"linkpulse/links/Unit_A/Provider_1/online": "ON",
		"linkpulse/links/Unit_A/Provider_2/online": "OFF",
		"linkpulse/links/Site_One/ISP_1/online":    "ON",
	}
	for topic, want := range tests {
		msg, ok := got[topic]
		if !ok {
			t.Errorf("no message on %s", topic)
			continue
		}
		if msg.payload != want || !msg.retained {
			t.Errorf("%s = %+v, want retained %s", topic, msg, want)
		}
	}
}

func TestPublish_NoOpWhenClientNil(t *testing.T) {
	m := &Module{logger: zap.NewNop(), cfg: DefaultConfig()}
	m.publishTransition(context.Background(), plugin.Event{
		Topic:   linkmon.TopicLinkDown,
		Payload: models.LinkEvent{Unit: "Unit_A", Provider: "Provider_1"},
	})
}

func TestPublish_NoOpWhenDisconnected(t *testing.T) {
	m, c := connectedModule(DefaultConfig())
	c.connected = false
	m.publish("linkpulse/x", false, []byte("x"))
	if len(c.messages) != 0 {
		t.Errorf("published while disconnected")
	}
}

func TestPublish_LogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	m, c := connectedModule(DefaultConfig())
	m.logger = zap.New(core)
	c.err = errors.New("broker gone")

	m.publish("linkpulse/x", false, []byte("x"))

	if logs.FilterMessage("mqtt publish failed").Len() != 1 {
		t.Errorf("expected one publish failure warning, got %v", logs.All())
	}
}

func TestAnnounce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HADiscovery = true
	m, c := connectedModule(cfg, epA, models.Endpoint{Unit: "Unit_B", Provider: "Provider_1", Host: "192.0.2.2"})

	m.announce()

	got := c.byTopic()
	if len(got) != 4 {
		t.Fatalf("published %d discovery configs, want 4", len(got))
	}
	msg, ok := got["homeassistant/binary_sensor/linkpulse_unit_a_provider_1/online/config"]
	if !ok || !msg.retained {
		t.Errorf("online discovery config = %+v, want retained", msg)
	}
}

func TestAnnounce_DisabledByDefault(t *testing.T) {
	m, c := connectedModule(DefaultConfig(), epA)
	m.announce()
	if len(c.messages) != 0 {
		t.Errorf("published %d messages with discovery disabled, want 0", len(c.messages))
	}
}

func TestInit_ReadsConfig(t *testing.T) {
	m := New(nil)
	v := viper.New()
	v.Set("broker_url", "tcp://broker:1883")
	v.Set("topic_prefix", "site/net")
	v.Set("qos", 0)
	v.Set("ha_discovery", true)
	if err := m.Init(context.Background(), plugin.Dependencies{Logger: zap.NewNop(), Config: config.New(v)}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if m.cfg.BrokerURL != "tcp://broker:1883" || m.cfg.TopicPrefix != "site/net" {
		t.Errorf("cfg = %+v", m.cfg)
	}
	if m.cfg.QoS != 0 || !m.cfg.HADiscovery {
		t.Errorf("qos/discovery = %d/%v, want 0/true", m.cfg.QoS, m.cfg.HADiscovery)
	}
	if m.cfg.ClientID != "linkpulse" {
		t.Errorf("ClientID = %q, want default linkpulse", m.cfg.ClientID)
	}
}

func TestStart_NoOpWithEmptyBrokerURL(t *testing.T) {
	m := New(nil)
	if err := m.Init(context.Background(), plugin.Dependencies{Logger: zap.NewNop()}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil", err)
	}
	if m.client != nil {
		t.Error("client should be nil when no broker URL is configured")
	}
}

func TestStop_Disconnects(t *testing.T) {
	m, c := connectedModule(DefaultConfig())
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !c.disconnected {
		t.Error("Stop did not disconnect the client")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name      string
		broker    string
		client    client
		wantState string
	}{
		{name: "no broker", wantState: "healthy"},
		{name: "not connected", broker: "tcp://localhost:1883", wantState: "degraded"},
		{name: "disconnected client", broker: "tcp://localhost:1883", client: &fakeClient{}, wantState: "degraded"},
		{name: "connected", broker: "tcp://localhost:1883", client: &fakeClient{connected: true}, wantState: "healthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Module{logger: zap.NewNop(), cfg: Config{BrokerURL: tt.broker}, client: tt.client}
			if got := m.Health(context.Background()).Status; got != tt.wantState {
				t.Errorf("Health().Status = %q, want %q", got, tt.wantState)
			}
		})
	}
}
