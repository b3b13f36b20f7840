package linkmon

import "time"

// Config holds the monitor's tuning knobs, read from "plugins.linkmon".
type Config struct {
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
	AlertDelay      time.Duration `mapstructure:"alert_delay"`
	Attempts        int           `mapstructure:"attempts"`
	AttemptInterval time.Duration `mapstructure:"attempt_interval"`
	LossThreshold   float64       `mapstructure:"loss_threshold"`
	MaxWorkers      int           `mapstructure:"max_workers"`
	Privileged      bool          `mapstructure:"privileged"`
	Alarm           bool          `mapstructure:"alarm"`
	LedgerDriver    string        `mapstructure:"ledger_driver"`
	LedgerPath      string        `mapstructure:"ledger_path"`
}

// Ledger drivers.
const (
	LedgerDriverFile   = "file"
	LedgerDriverSQLite = "sqlite"
)

// DefaultConfig returns the stock monitoring cadence: a scan every 30s,
// three probes per link, and a 15 minute debounce before alerting.
func DefaultConfig() Config {
	return Config{
		PingInterval:    30 * time.Second,
		PingTimeout:     2 * time.Second,
		AlertDelay:      15 * time.Minute,
		Attempts:        3,
		AttemptInterval: 500 * time.Millisecond,
		LossThreshold:   30,
		MaxWorkers:      10,
		Alarm:           true,
		LedgerDriver:    LedgerDriverFile,
		LedgerPath:      "status_links.json",
	}
}

// withDefaults fills zero values from DefaultConfig. AlertDelay zero is a
// valid setting (confirm immediately) and is left alone.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = d.PingTimeout
	}
	if c.AlertDelay < 0 {
		c.AlertDelay = 0
	}
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
	if c.AttemptInterval < 0 {
		c.AttemptInterval = 0
	}
	if c.LossThreshold <= 0 {
		c.LossThreshold = d.LossThreshold
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = d.MaxWorkers
	}
	if c.LedgerDriver == "" {
		c.LedgerDriver = d.LedgerDriver
	}
	if c.LedgerPath == "" {
		c.LedgerPath = d.LedgerPath
	}
	return c
}
