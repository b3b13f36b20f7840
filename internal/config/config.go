// Package config provides a Viper-backed implementation of the plugin.Config interface.
package config

import (
	"strings"
	"time"

	"github.com/HerbHall/linkpulse/pkg/plugin"
	"github.com/spf13/viper"
)

// Compile-time interface guard.
var _ plugin.Config = (*ViperConfig)(nil)

// ViperConfig wraps a Viper instance to implement plugin.Config.
// Each plugin receives the section under "plugins.<name>".
type ViperConfig struct {
	v   *viper.Viper
	env string // environment variable prefix for this section
}

// New creates a Config backed by the given Viper instance.
// Returns the concrete type; callers assign to plugin.Config where needed.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v, env: envPrefix}
}

func (c *ViperConfig) Unmarshal(target any) error {
	return c.v.Unmarshal(target)
}

func (c *ViperConfig) Get(key string) any {
	return c.v.Get(key)
}

func (c *ViperConfig) GetString(key string) string {
	return c.v.GetString(key)
}

func (c *ViperConfig) GetInt(key string) int {
	return c.v.GetInt(key)
}

func (c *ViperConfig) GetBool(key string) bool {
	return c.v.GetBool(key)
}

func (c *ViperConfig) GetDuration(key string) time.Duration {
	return c.v.GetDuration(key)
}

func (c *ViperConfig) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

func (c *ViperConfig) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

func (c *ViperConfig) IsSet(key string) bool {
	return c.v.IsSet(key)
}

// Sub returns the section under key. Viper does not carry environment
// bindings into sub-trees, so they are rebound with the section's prefix:
// LP_PLUGINS_LINKMON_ALERT_DELAY reaches Sub("plugins.linkmon") as
// "alert_delay".
func (c *ViperConfig) Sub(key string) plugin.Config {
	sub := c.v.Sub(key)
	if sub == nil {
		return New(nil)
	}
	env := c.env + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	sub.SetEnvPrefix(env)
	sub.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	sub.AutomaticEnv()
	return &ViperConfig{v: sub, env: env}
}

// Viper returns the underlying Viper instance for direct access
// (e.g., by the composition root for top-level keys like server.port).
func (c *ViperConfig) Viper() *viper.Viper {
	return c.v
}
