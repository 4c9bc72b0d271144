// Package metrics exposes the ambient observability surface SPEC_FULL.md
// adds: room/hand counters and an action-latency histogram, scraped over
// /metrics. No Non-goal in spec.md excludes metrics (only anti-cheat/RNG
// auditing and replication are named), so this is carried the same way
// logging and config are.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

var (
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pokerroom",
		Name:      "rooms_active",
		Help:      "Number of rooms currently registered in the Room Registry.",
	})

	HandsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pokerroom",
		Name:      "hands_started_total",
		Help:      "Total number of hands started across all rooms.",
	})

	ActionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pokerroom",
		Name:      "action_latency_seconds",
		Help:      "Time from an action event entering the room queue to its handler completing.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})

	WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pokerroom",
		Name:      "websocket_connections",
		Help:      "Number of live WebSocket connections across all rooms.",
	})

	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pokerroom",
		Name:      "persist_failures_total",
		Help:      "Count of failed room snapshot persistence attempts across all rooms.",
	})
)

// Handler returns the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
