package server

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds the HTTP server settings under the "server" key.
type Config struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	ReadOnly       bool     `mapstructure:"read_only"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           5000,
		RateLimitRPS:   20,
		RateLimitBurst: 40,
	}
}

// ConfigFromViper decodes the "server" section over DefaultConfig.
func ConfigFromViper(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if err := v.UnmarshalKey("server", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse server config: %w", err)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("server port %d out of range", cfg.Port)
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = DefaultConfig().RateLimitRPS
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = DefaultConfig().RateLimitBurst
	}
	return cfg, nil
}

// Addr returns the listen address as host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
