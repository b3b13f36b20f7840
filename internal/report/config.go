package report

import (
	"fmt"
	"time"
)

// Config controls scheduled reports, read from "plugins.report".
type Config struct {
	Enabled        bool          `mapstructure:"enabled"`
	Times          []string      `mapstructure:"times"`
	WeekdaysOnly   bool          `mapstructure:"weekdays_only"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	StartupMessage bool          `mapstructure:"startup_message"`
}

// DefaultConfig sends a report at 07:00 and 15:00 on weekdays.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		Times:          []string{"07:00", "15:00"},
		WeekdaysOnly:   true,
		PollInterval:   time.Minute,
		StartupMessage: true,
	}
}

// slot is a time of day, in minutes after midnight.
type slot struct {
	label  string
	minute int
}

// at returns the slot's instant on the calendar day of day, in day's location.
func (s slot) at(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, s.minute/60, s.minute%60, 0, 0, day.Location())
}

// parseSlots validates "HH:MM" report times.
func parseSlots(times []string) ([]slot, error) {
	slots := make([]slot, 0, len(times))
	seen := make(map[int]bool, len(times))
	for _, t := range times {
		parsed, err := time.Parse("15:04", t)
		if err != nil {
			return nil, fmt.Errorf("report time %q: want HH:MM", t)
		}
		minute := parsed.Hour()*60 + parsed.Minute()
		if seen[minute] {
			continue
		}
		seen[minute] = true
		slots = append(slots, slot{label: parsed.Format("15:04"), minute: minute})
	}
	return slots, nil
}
