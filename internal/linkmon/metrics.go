package linkmon

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	linkUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linkpulse_link_up",
			Help: "Whether the link answered its last probe batch (1) or not (0).",
		},
		[]string{"unit", "provider"},
	)
	linkLoss = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linkpulse_link_loss_percent",
			Help: "Probe loss of the link's last sample batch.",
		},
		[]string{"unit", "provider"},
	)
	linkTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpulse_link_transitions_total",
			Help: "Link state transitions by resulting state.",
		},
		[]string{"unit", "provider", "state"},
	)
	openOutages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "linkpulse_open_outages",
			Help: "Confirmed outages currently recorded in the ledger.",
		},
	)
	scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linkpulse_scan_duration_seconds",
			Help:    "Wall-clock duration of a full scan of every link.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)
	notifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linkpulse_notify_failures_total",
			Help: "Notifications that could not be delivered.",
		},
	)
	persistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linkpulse_ledger_save_failures_total",
			Help: "Ledger saves that failed.",
		},
	)
)

func init() {
	prometheus.MustRegister(linkUp, linkLoss, linkTransitions, openOutages, scanDuration, notifyFailures, persistFailures)
}
