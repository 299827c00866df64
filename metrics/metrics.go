// Package metrics exposes Prometheus collectors for the puzzle server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the server's Prometheus collectors.
//
// Tracked signals:
//   - Swap throughput and rejections, labelled by outcome
//   - Event-bus publishes per channel kind and per-subscriber drops
//   - Active session and participant counts for capacity planning
type Metrics struct {
	// SwapsTotal counts swap attempts. Labels: outcome (applied|rejected)
	SwapsTotal *prometheus.CounterVec

	// EventsPublished counts events handed to the broadcaster.
	// Labels: kind (swap|solved|cursor|join|leave)
	EventsPublished *prometheus.CounterVec

	// DeliveriesDropped counts per-subscriber deliveries dropped because a
	// subscriber's buffer was full or its connection was gone.
	DeliveriesDropped prometheus.Counter

	// ActiveSessions is the current number of live puzzle sessions.
	ActiveSessions prometheus.Gauge

	// ActiveSubscribers is the current number of event-bus connections.
	ActiveSubscribers prometheus.Gauge

	// SessionsSolved counts puzzles completed since start.
	SessionsSolved prometheus.Counter
}

// New registers the collectors with the given registerer and returns them.
// Pass prometheus.DefaultRegisterer in production; tests use a private
// registry to avoid duplicate-registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SwapsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "puzzleparty_swaps_total",
			Help: "Swap attempts by outcome.",
		}, []string{"outcome"}),

		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "puzzleparty_events_published_total",
			Help: "Events handed to the broadcaster by kind.",
		}, []string{"kind"}),

		DeliveriesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "puzzleparty_deliveries_dropped_total",
			Help: "Per-subscriber event deliveries dropped.",
		}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "puzzleparty_active_sessions",
			Help: "Live puzzle sessions.",
		}),

		ActiveSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "puzzleparty_active_subscribers",
			Help: "Open event-bus connections.",
		}),

		SessionsSolved: factory.NewCounter(prometheus.CounterOpts{
			Name: "puzzleparty_sessions_solved_total",
			Help: "Puzzles completed since process start.",
		}),
	}
}
