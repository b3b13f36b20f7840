package mqtt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/HerbHall/linkpulse/pkg/models"
)

// nonAlphanumeric matches any character that is not alphanumeric or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// DiscoveryConfig holds a single HA MQTT discovery payload.
type DiscoveryConfig struct {
	Topic   string // Full MQTT topic (homeassistant/...)
	Payload []byte // JSON-encoded config (empty = remove)
}

// HADevice is the "device" block in HA discovery payloads. Each unit is
// one HA device; its provider links are entities on it.
type HADevice struct {
	Identifiers []string `json:"identifiers"`
	Name        string   `json:"name"`
	Model       string   `json:"model,omitempty"`
	ViaDevice   string   `json:"via_device,omitempty"`
}

// BinarySensorConfig is the HA discovery payload for binary_sensor.
type BinarySensorConfig struct {
	Name        string   `json:"name"`
	ObjectID    string   `json:"object_id"`
	UniqueID    string   `json:"unique_id"`
	StateTopic  string   `json:"state_topic"`
	DeviceClass string   `json:"device_class,omitempty"`
	PayloadOn   string   `json:"payload_on"`
	PayloadOff  string   `json:"payload_off"`
	Device      HADevice `json:"device"`
	Icon        string   `json:"icon,omitempty"`
}

// SensorConfig is the HA discovery payload for sensor.
type SensorConfig struct {
	Name       string   `json:"name"`
	ObjectID   string   `json:"object_id"`
	UniqueID   string   `json:"unique_id"`
	StateTopic string   `json:"state_topic"`
	Icon       string   `json:"icon,omitempty"`
	Device     HADevice `json:"device"`
}

// SafeObjectID sanitizes a string for use as an HA object_id.
// Replaces any non-alphanumeric character (except underscore) with underscore,
// lowercases, and trims leading/trailing underscores.
func SafeObjectID(s string) string {
	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}

// TopicSegment makes a unit or provider name safe for use as one MQTT
// topic level: wildcards and separators become underscores.
func TopicSegment(s string) string {
	s = strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}

// LinkTopic is the topic root for one link: <prefix>/links/<unit>/<provider>.
func LinkTopic(prefix string, unit, provider string) string {
	return prefix + "/links/" + TopicSegment(unit) + "/" + TopicSegment(provider)
}

// BuildLinkDiscoveryConfigs creates HA discovery payloads for a link: a
// connectivity binary_sensor fed by the retained online topic and a
// sensor carrying the debounced link state.
func BuildLinkDiscoveryConfigs(ep models.Endpoint, topicPrefix, haPrefix string) []DiscoveryConfig {
	safeID := SafeObjectID(ep.Unit + "_" + ep.Provider)
	root := LinkTopic(topicPrefix, ep.Unit, ep.Provider)
	device := HADevice{
		Identifiers: []string{"linkpulse_" + SafeObjectID(ep.Unit)},
		Name:        ep.Unit,
		Model:       "Monitored site",
		ViaDevice:   "linkpulse",
	}

	configs := make([]DiscoveryConfig, 0, 2)

	online := BinarySensorConfig{
		Name:        ep.Provider,
		ObjectID:    "linkpulse_" + safeID + "_online",
		UniqueID:    "linkpulse_" + safeID + "_online",
		StateTopic:  root + "/online",
		DeviceClass: "connectivity",
		PayloadOn:   "ON",
		PayloadOff:  "OFF",
		Device:      device,
		Icon:        "mdi:lan-connect",
	}
	if payload, err := json.Marshal(online); err == nil {
		configs = append(configs, DiscoveryConfig{
			Topic:   fmt.Sprintf("%s/binary_sensor/linkpulse_%s/online/config", haPrefix, safeID),
			Payload: payload,
		})
	}

	state := SensorConfig{
		Name:       ep.Provider + " state",
		ObjectID:   "linkpulse_" + safeID + "_state",
		UniqueID:   "linkpulse_" + safeID + "_state",
		StateTopic: root + "/state",
		Icon:       "mdi:lan-pending",
		Device:     device,
	}
	if payload, err := json.Marshal(state); err == nil {
		configs = append(configs, DiscoveryConfig{
			Topic:   fmt.Sprintf("%s/sensor/linkpulse_%s/state/config", haPrefix, safeID),
			Payload: payload,
		})
	}

	return configs
}

