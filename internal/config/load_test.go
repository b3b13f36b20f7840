package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "linkpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	assert.Equal(t, 5000, v.GetInt("server.port"))
	assert.Equal(t, 30*time.Second, v.GetDuration("plugins.linkmon.ping_interval"))
	assert.Equal(t, 2*time.Second, v.GetDuration("plugins.linkmon.ping_timeout"))
	assert.Equal(t, 15*time.Minute, v.GetDuration("plugins.linkmon.alert_delay"))
	assert.Equal(t, 10, v.GetInt("plugins.linkmon.max_workers"))
	assert.Equal(t, []string{"07:00", "15:00"}, v.GetStringSlice("plugins.report.times"))
	assert.Equal(t, 8*time.Second, v.GetDuration("notify.timeout"))
	assert.Equal(t, 5*time.Second, v.GetDuration("plugins.gateway.stop_timeout"))
	assert.Equal(t, "homeassistant", v.GetString("plugins.mqtt.ha_discovery_prefix"))
	assert.Equal(t, 40, v.GetInt("server.rate_limit_burst"))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LP_SERVER_PORT", "6001")
	t.Setenv("LP_PLUGINS_LINKMON_ALERT_DELAY", "2m")

	v, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, 6001, v.GetInt("server.port"))
	assert.Equal(t, 2*time.Minute, v.GetDuration("plugins.linkmon.alert_delay"))
	assert.Equal(t, "debug", v.GetString("logging.level"))

	sub := New(v).Sub("plugins.linkmon")
	assert.Equal(t, 2*time.Minute, sub.GetDuration("alert_delay"))

	var section struct {
		AlertDelay time.Duration `mapstructure:"alert_delay"`
	}
	require.NoError(t, sub.Unmarshal(&section))
	assert.Equal(t, 2*time.Minute, section.AlertDelay)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
plugins:
  linkmon:
    alert_delay: 5m
links:
  - unit: Headquarters
    provider: FiberCo
    host: 10.0.0.1
`)

	v, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, v.GetInt("server.port"))
	assert.Equal(t, 5*time.Minute, v.GetDuration("plugins.linkmon.alert_delay"))
	assert.Equal(t, 30*time.Second, v.GetDuration("plugins.linkmon.ping_interval"))

	endpoints, err := Endpoints(v)
	require.NoError(t, err)
	require.Len(t, endpoints, 1)
	assert.Equal(t, "Headquarters", endpoints[0].Unit, "unit name case must be preserved")
	assert.Equal(t, "FiberCo", endpoints[0].Provider)
	assert.Equal(t, "10.0.0.1", endpoints[0].Host)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEndpoints_DefaultTable(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	endpoints, err := Endpoints(v)
	require.NoError(t, err)
	assert.Len(t, endpoints, 4)
	assert.Equal(t, "Unit_A-Provider_1", endpoints[0].Key())
}

func TestEndpoints_Validation(t *testing.T) {
	tests := []struct {
		name  string
		links []map[string]any
	}{
		{name: "empty", links: []map[string]any{}},
		{name: "missing unit", links: []map[string]any{{"provider": "p", "host": "h"}}},
		{name: "missing provider", links: []map[string]any{{"unit": "u", "host": "h"}}},
		{name: "missing host", links: []map[string]any{{"unit": "u", "provider": "p"}}},
		{name: "duplicate", links: []map[string]any{
			{"unit": "u", "provider": "p", "host": "h1"},
			{"unit": "u", "provider": "p", "host": "h2"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set("links", tt.links)
			_, err := Endpoints(v)
			assert.Error(t, err)
		})
	}
}

func TestEndpoints_EmptyIsSentinel(t *testing.T) {
	v := viper.New()
	_, err := Endpoints(v)
	if !errors.Is(err, ErrNoEndpoints) {
		t.Errorf("Endpoints() error = %v, want ErrNoEndpoints", err)
	}
}

func TestViperConfig_Sub(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := New(v)

	sub := cfg.Sub("plugins.linkmon")
	assert.Equal(t, 3, sub.GetInt("attempts"))
	assert.InDelta(t, 30.0, sub.GetFloat64("loss_threshold"), 0.0001)

	missing := cfg.Sub("plugins.nope")
	assert.False(t, missing.IsSet("anything"))
}

func TestLoad_SampleConfig(t *testing.T) {
	v, err := Load(filepath.Join("..", "..", "configs", "linkpulse.yaml"))
	require.NoError(t, err)

	endpoints, err := Endpoints(v)
	require.NoError(t, err)
	assert.Len(t, endpoints, 4)
	assert.Equal(t, "file", v.GetString("plugins.linkmon.ledger_driver"))
	assert.Equal(t, []string{"node", "server.js"}, v.GetStringSlice("plugins.gateway.command"))
}
