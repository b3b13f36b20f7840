package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/HerbHall/linkpulse/pkg/models"
	"github.com/spf13/viper"
)

const envPrefix = "LP"

// ErrNoEndpoints is returned when the configuration defines no links to monitor.
var ErrNoEndpoints = errors.New("configuration must define at least one link")

// defaultLinks mirrors the sample table shipped with the project: public
// resolvers standing in for real provider uplinks.
var defaultLinks = []map[string]any{
	{"unit": "Unit_A", "provider": "Provider_1", "host": "8.8.8.8"},
	{"unit": "Unit_A", "provider": "Provider_2", "host": "1.1.1.1"},
	{"unit": "Unit_B", "provider": "Provider_1", "host": "8.8.4.4"},
	{"unit": "Unit_C", "provider": "Provider_Alt", "host": "208.67.222.222"},
}

// Load reads configuration from file and environment variables.
// A missing config file is not an error; defaults apply.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("linkpulse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/linkpulse")
	}

	// Environment variable support: LP_SERVER_PORT=8080
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.read_only", false)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "./data/linkpulse.db")

	v.SetDefault("notify.gateway_url", "http://localhost:3000/enviar")
	v.SetDefault("notify.group_id", "")
	v.SetDefault("notify.timeout", "8s")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.webhook_secret", "")

	v.SetDefault("plugins.linkmon.ping_interval", "30s")
	v.SetDefault("plugins.linkmon.ping_timeout", "2s")
	v.SetDefault("plugins.linkmon.alert_delay", "15m")
	v.SetDefault("plugins.linkmon.attempts", 3)
	v.SetDefault("plugins.linkmon.attempt_interval", "500ms")
	v.SetDefault("plugins.linkmon.loss_threshold", 30.0)
	v.SetDefault("plugins.linkmon.max_workers", 10)
	v.SetDefault("plugins.linkmon.privileged", runtime.GOOS == "windows")
	v.SetDefault("plugins.linkmon.alarm", true)
	v.SetDefault("plugins.linkmon.ledger_driver", "file")
	v.SetDefault("plugins.linkmon.ledger_path", "status_links.json")

	v.SetDefault("plugins.report.enabled", true)
	v.SetDefault("plugins.report.times", []string{"07:00", "15:00"})
	v.SetDefault("plugins.report.weekdays_only", true)
	v.SetDefault("plugins.report.poll_interval", "1m")
	v.SetDefault("plugins.report.startup_message", true)

	v.SetDefault("plugins.gateway.enabled", false)
	v.SetDefault("plugins.gateway.health_url", "http://localhost:3000")
	v.SetDefault("plugins.gateway.command", []string{"node", "server.js"})
	v.SetDefault("plugins.gateway.dir", ".")
	v.SetDefault("plugins.gateway.check_timeout", "2s")
	v.SetDefault("plugins.gateway.check_interval", "0s")
	v.SetDefault("plugins.gateway.stop_timeout", "5s")

	v.SetDefault("plugins.mqtt.broker_url", "")
	v.SetDefault("plugins.mqtt.client_id", "linkpulse")
	v.SetDefault("plugins.mqtt.topic_prefix", "linkpulse")
	v.SetDefault("plugins.mqtt.qos", 1)
	v.SetDefault("plugins.mqtt.timeout", "10s")
	v.SetDefault("plugins.mqtt.ha_discovery", false)
	v.SetDefault("plugins.mqtt.ha_discovery_prefix", "homeassistant")

	v.SetDefault("links", defaultLinks)
}

// Endpoints decodes and validates the "links" list. Each entry needs a
// unit, provider and host, and each unit/provider pair may appear once.
// The table is a list rather than a nested map because Viper lower-cases
// map keys, which would rewrite unit and provider names.
func Endpoints(v *viper.Viper) ([]models.Endpoint, error) {
	var endpoints []models.Endpoint
	if err := v.UnmarshalKey("links", &endpoints); err != nil {
		return nil, fmt.Errorf("parse links: %w", err)
	}
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	seen := make(map[string]bool, len(endpoints))
	for i, e := range endpoints {
		e.Unit = strings.TrimSpace(e.Unit)
		e.Provider = strings.TrimSpace(e.Provider)
		e.Host = strings.TrimSpace(e.Host)
		switch {
		case e.Unit == "":
			return nil, fmt.Errorf("link %d is missing unit", i)
		case e.Provider == "":
			return nil, fmt.Errorf("link %d (%s) is missing provider", i, e.Unit)
		case e.Host == "":
			return nil, fmt.Errorf("link %s is missing host", e.Key())
		}
		if seen[e.Key()] {
			return nil, fmt.Errorf("link %s is defined more than once", e.Key())
		}
		seen[e.Key()] = true
		endpoints[i] = e
	}
	return endpoints, nil
}
