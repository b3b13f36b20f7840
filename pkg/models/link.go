package models

import "time"

// Endpoint is a monitored link: one provider's uplink at one unit.
type Endpoint struct {
	Unit     string `json:"unit" mapstructure:"unit" example:"Unit_A"`
	Provider string `json:"provider" mapstructure:"provider" example:"Provider_1"`
	Host     string `json:"host" mapstructure:"host" example:"8.8.8.8"`
}

// Key returns the "<unit>-<provider>" identifier used for runtime state.
func (e Endpoint) Key() string {
	return e.Unit + "-" + e.Provider
}

// LinkState is the debounced state of a link.
type LinkState string

const (
	LinkStateOnline               LinkState = "online"
	LinkStateProvisionallyOffline LinkState = "provisionally_offline"
	LinkStateConfirmedOffline     LinkState = "confirmed_offline"
)

// LinkEvent is the payload published on every link state transition.
type LinkEvent struct {
	Unit        string    `json:"unit"`
	Provider    string    `json:"provider"`
	Host        string    `json:"host"`
	State       LinkState `json:"state"`
	LossPercent float64   `json:"loss_percent"`
	Since       time.Time `json:"since,omitzero"`
	At          time.Time `json:"at"`
}

// Online reports whether the event leaves the link considered reachable.
func (e LinkEvent) Online() bool {
	return e.State == LinkStateOnline
}

// StatusSnapshot is the online/offline view of every link after one scan.
// Links maps unit -> provider -> online. Snapshots are replaced, never
// mutated, once published.
type StatusSnapshot struct {
	Links     map[string]map[string]bool `json:"links"`
	ScannedAt time.Time                  `json:"scanned_at"`
}

// Online reports the recorded state of unit/provider and whether the
// snapshot knows the link at all.
func (s *StatusSnapshot) Online(unit, provider string) (online, ok bool) {
	if s == nil {
		return false, false
	}
	online, ok = s.Links[unit][provider]
	return online, ok
}
