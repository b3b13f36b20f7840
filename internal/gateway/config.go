package gateway

import "time"

// Config describes the notification gateway process, read from
// "plugins.gateway".
type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	HealthURL     string        `mapstructure:"health_url"`
	Command       []string      `mapstructure:"command"`
	Dir           string        `mapstructure:"dir"`
	Env           []string      `mapstructure:"env"`
	CheckTimeout  time.Duration `mapstructure:"check_timeout"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	StopTimeout   time.Duration `mapstructure:"stop_timeout"`
}

// DefaultConfig matches a Node gateway listening on port 3000 in the
// working directory. Supervision is off until enabled.
func DefaultConfig() Config {
	return Config{
		HealthURL:    "http://localhost:3000",
		Command:      []string{"node", "server.js"},
		Dir:          ".",
		CheckTimeout: 2 * time.Second,
		StopTimeout:  5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HealthURL == "" {
		c.HealthURL = d.HealthURL
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = d.CheckTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = d.StopTimeout
	}
	if c.CheckInterval < 0 {
		c.CheckInterval = 0
	}
	return c
}
