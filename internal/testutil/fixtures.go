// Package testutil holds fixtures and fakes shared by linkpulse tests.
package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/linkpulse/pkg/models"
)

// NewEndpoint returns an Endpoint with a unique provider name, suitable for
// test fixtures. Override individual fields with options.
func NewEndpoint(opts ...func(*models.Endpoint)) models.Endpoint {
	e := models.Endpoint{
		Unit:     "Unit_Test",
		Provider: "Provider_" + uuid.NewString()[:8],
		Host:     "192.0.2.1",
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// WithUnit sets the endpoint's unit.
func WithUnit(unit string) func(*models.Endpoint) {
	return func(e *models.Endpoint) { e.Unit = unit }
}

// WithProvider sets the endpoint's provider.
func WithProvider(provider string) func(*models.Endpoint) {
	return func(e *models.Endpoint) { e.Provider = provider }
}

// WithHost sets the probed host.
func WithHost(host string) func(*models.Endpoint) {
	return func(e *models.Endpoint) { e.Host = host }
}

// Endpoints returns n endpoints spread over units of two providers each,
// with distinct TEST-NET hosts.
func Endpoints(n int) []models.Endpoint {
	out := make([]models.Endpoint, n)
	for i := range out {
		out[i] = models.Endpoint{
			Unit:     fmt.Sprintf("Unit_%c", 'A'+i/2),
			Provider: fmt.Sprintf("Provider_%d", i%2+1),
			Host:     fmt.Sprintf("192.0.2.%d", i+1),
		}
	}
	return out
}

// NewLinkEvent returns a transition event for e in the given state.
func NewLinkEvent(e models.Endpoint, state models.LinkState, at time.Time) models.LinkEvent {
	ev := models.LinkEvent{
		Unit:     e.Unit,
		Provider: e.Provider,
		Host:     e.Host,
		State:    state,
		At:       at,
	}
	if state != models.LinkStateOnline {
		ev.LossPercent = 100
		ev.Since = at
	}
	return ev
}
