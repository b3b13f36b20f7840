package mqtt

import "time"

// Config holds MQTT publisher configuration, read from "plugins.mqtt".
type Config struct {
	BrokerURL   string        `mapstructure:"broker_url"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"` //nolint:gosec // G101: config field name, not a credential
	ClientID    string        `mapstructure:"client_id"`
	TopicPrefix string        `mapstructure:"topic_prefix"`
	QoS         byte          `mapstructure:"qos"`
	Timeout     time.Duration `mapstructure:"timeout"`

	// Home Assistant MQTT auto-discovery settings.
	HADiscovery       bool   `mapstructure:"ha_discovery"`        // Announce one connectivity sensor per link
	HADiscoveryPrefix string `mapstructure:"ha_discovery_prefix"` // HA discovery topic prefix (default: "homeassistant")
}

// DefaultConfig returns the publisher defaults. An empty broker URL keeps
// the module in no-op mode.
func DefaultConfig() Config {
	return Config{
		ClientID:          "linkpulse",
		TopicPrefix:       "linkpulse",
		QoS:               1,
		Timeout:           10 * time.Second,
		HADiscoveryPrefix: "homeassistant",
	}
}
