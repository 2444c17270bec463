// Package metrics defines the Prometheus collectors exposed by both the
// Controller and Router agent processes at /metrics, grounded on the
// teacher's promhttp.Handler() wiring in internal/cli/relay.go.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Controller-side collectors.
var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sdnctl",
		Subsystem: "controller",
		Name:      "active_sessions",
		Help:      "Number of Router agents currently holding an open control session.",
	})

	RoutesRecomputed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sdnctl",
		Subsystem: "controller",
		Name:      "routes_recomputed_total",
		Help:      "Number of times the full shortest-path route set has been recomputed.",
	})

	TopologyMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sdnctl",
		Subsystem: "controller",
		Name:      "topology_mutations_total",
		Help:      "Count of topology mutations by kind (router_added, link_removed, ...).",
	}, []string{"kind"})
)

// Router-agent-side collectors.
var (
	NeighborStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sdnctl",
		Subsystem: "router",
		Name:      "neighbor_state_transitions_total",
		Help:      "Count of OSPF-like neighbor state transitions by target state.",
	}, []string{"state"})

	HelloTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sdnctl",
		Subsystem: "router",
		Name:      "hello_ticks_total",
		Help:      "Number of HELLO timer ticks processed.",
	})

	DeadIntervalExpirations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sdnctl",
		Subsystem: "router",
		Name:      "dead_interval_expirations_total",
		Help:      "Number of neighbors dropped to Down by dead-interval expiry.",
	})

	FIBEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sdnctl",
		Subsystem: "router",
		Name:      "fib_entries",
		Help:      "Current number of installed forwarding table entries.",
	})
)
