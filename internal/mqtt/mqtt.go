package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/HerbHall/linkpulse/internal/linkmon"
	"github.com/HerbHall/linkpulse/pkg/models"
	"github.com/HerbHall/linkpulse/pkg/plugin"
	"github.com/HerbHall/linkpulse/pkg/roles"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
)

// client is the part of the paho client the module uses.
type client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Module implements the MQTT publisher plugin. It relays link transitions
// from the event bus to a broker and keeps one retained online/state pair
// per link so late subscribers see the current picture.
type Module struct {
	logger    *zap.Logger
	cfg       Config
	endpoints []models.Endpoint
	mu        sync.RWMutex
	client    client
}

// New creates the MQTT publisher for the given links.
func New(endpoints []models.Endpoint) *Module {
	return &Module{endpoints: endpoints}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "mqtt",
		Version:      "0.1.0",
		Description:  "Publishes link transitions and link state to an MQTT broker",
		Dependencies: []string{"linkmon"},
		Roles:        []string{roles.RoleNotification, roles.RoleIntegration},
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
			return fmt.Errorf("unmarshal mqtt config: %w", err)
		}
	}
	if m.cfg.TopicPrefix == "" {
		m.cfg.TopicPrefix = DefaultConfig().TopicPrefix
	}
	if m.cfg.HADiscoveryPrefix == "" {
		m.cfg.HADiscoveryPrefix = DefaultConfig().HADiscoveryPrefix
	}
	if m.cfg.Timeout <= 0 {
		m.cfg.Timeout = DefaultConfig().Timeout
	}

	if m.cfg.BrokerURL == "" {
		m.logger.Info("MQTT broker URL not configured; link events will not be published")
	}

	m.logger.Info("mqtt module initialized",
		zap.String("broker_url", m.cfg.BrokerURL),
		zap.String("client_id", m.cfg.ClientID),
		zap.String("topic_prefix", m.cfg.TopicPrefix),
		zap.Uint8("qos", m.cfg.QoS),
		zap.Bool("ha_discovery", m.cfg.HADiscovery),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	if m.cfg.BrokerURL == "" {
		m.logger.Info("mqtt module started (no-op: no broker configured)")
		return nil
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(m.cfg.BrokerURL).
		SetClientID(m.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(m.cfg.Timeout).
		SetOnConnectHandler(func(pahomqtt.Client) { m.announce() })

	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password) //nolint:gosec // G101: config field
	}

	c := pahomqtt.NewClient(opts)
	m.mu.Lock()
	m.client = c
	m.mu.Unlock()

	token := c.Connect()
	switch {
	case !token.WaitTimeout(m.cfg.Timeout):
		m.logger.Warn("mqtt connection timed out; will reconnect in background")
	case token.Error() != nil:
		m.logger.Warn("mqtt connection failed; will reconnect in background",
			zap.Error(token.Error()),
		)
	default:
		m.logger.Info("mqtt connected to broker",
			zap.String("broker_url", m.cfg.BrokerURL),
		)
	}
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
		m.logger.Info("mqtt disconnected")
	}
	return nil
}

// Subscriptions implements plugin.EventSubscriber.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: linkmon.TopicLinkDown, Handler: m.publishTransition},
		{Topic: linkmon.TopicLinkConfirmed, Handler: m.publishTransition},
		{Topic: linkmon.TopicLinkRecovered, Handler: m.publishTransition},
		{Topic: linkmon.TopicSnapshotPublished, Handler: m.publishSnapshot},
	}
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if m.cfg.BrokerURL == "" {
		return plugin.HealthStatus{
			Status:  "healthy",
			Message: "no broker configured (no-op mode)",
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil || !m.client.IsConnected() {
		return plugin.HealthStatus{
			Status:  "degraded",
			Message: "not connected to MQTT broker",
		}
	}
	return plugin.HealthStatus{
		Status:  "healthy",
		Message: "connected to " + m.cfg.BrokerURL,
	}
}

// mqttTopicFromEvent maps an event bus topic to the MQTT event topic.
func (m *Module) mqttTopicFromEvent(eventTopic string) string {
	switch eventTopic {
	case linkmon.TopicLinkDown:
		return m.cfg.TopicPrefix + "/events/down"
	case linkmon.TopicLinkConfirmed:
		return m.cfg.TopicPrefix + "/events/confirmed"
	case linkmon.TopicLinkRecovered:
		return m.cfg.TopicPrefix + "/events/recovered"
	default:
		return m.cfg.TopicPrefix + "/events/unknown"
	}
}

// publishTransition sends the event JSON and updates the link's retained
// state topic.
func (m *Module) publishTransition(_ context.Context, event plugin.Event) {
	ev, ok := extractLinkEvent(event.Payload)
	if !ok {
		m.logger.Debug("ignoring event without link payload", zap.String("topic", event.Topic))
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		m.logger.Warn("failed to marshal MQTT payload",
			zap.String("topic", event.Topic),
			zap.Error(err),
		)
		return
	}

	m.publish(m.mqttTopicFromEvent(event.Topic), false, payload)
	m.publish(LinkTopic(m.cfg.TopicPrefix, ev.Unit, ev.Provider)+"/state", true, []byte(ev.State))
}

// publishSnapshot refreshes every link's retained online topic.
func (m *Module) publishSnapshot(_ context.Context, event plugin.Event) {
	snap, ok := event.Payload.(*models.StatusSnapshot)
	if !ok || snap == nil {
		return
	}
	for unit, providers := range snap.Links {
		for provider, online := range providers {
			value := "OFF"
			if online {
				value = "ON"
			}
			m.publish(LinkTopic(m.cfg.TopicPrefix, unit, provider)+"/online", true, []byte(value))
		}
	}
}

// announce publishes HA discovery configs for every link. It runs on each
// (re)connect so a restarted broker learns the entities again.
func (m *Module) announce() {
	if !m.cfg.HADiscovery {
		return
	}
	for _, ep := range m.endpoints {
		for _, dc := range BuildLinkDiscoveryConfigs(ep, m.cfg.TopicPrefix, m.cfg.HADiscoveryPrefix) {
			m.publish(dc.Topic, true, dc.Payload)
		}
	}
	m.logger.Debug("ha discovery published", zap.Int("links", len(m.endpoints)))
}

// publish sends one message and logs failures. It is a no-op while
// disconnected.
func (m *Module) publish(topic string, retained bool, payload []byte) {
	m.mu.RLock()
	c := m.client
	m.mu.RUnlock()
	if c == nil || !c.IsConnected() {
		return
	}

	token := c.Publish(topic, m.cfg.QoS, retained, payload)
	if !token.WaitTimeout(m.cfg.Timeout) {
		m.logger.Warn("mqtt publish timed out", zap.String("mqtt_topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		m.logger.Warn("mqtt publish failed",
			zap.String("mqtt_topic", topic),
			zap.Error(err),
		)
		return
	}
	m.logger.Debug("mqtt message published",
		zap.String("mqtt_topic", topic),
		zap.Bool("retained", retained),
	)
}

// extractLinkEvent accepts a models.LinkEvent by value or pointer, or any
// payload that round-trips into one.
func extractLinkEvent(payload any) (models.LinkEvent, bool) {
	switch v := payload.(type) {
	case models.LinkEvent:
		return v, true
	case *models.LinkEvent:
		if v == nil {
			return models.LinkEvent{}, false
		}
		return *v, true
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return models.LinkEvent{}, false
		}
		var ev models.LinkEvent
		if err := json.Unmarshal(data, &ev); err != nil || ev.Unit == "" {
			return models.LinkEvent{}, false
		}
		return ev, true
	}
}
