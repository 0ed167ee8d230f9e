package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the realtime subsystem. Registered on the
// default registry and exposed by the app on /metrics.
var (
	metricConnectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "social",
		Subsystem: "realtime",
		Name:      "connections_open",
		Help:      "Number of websocket sessions currently open.",
	})

	metricOnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "social",
		Subsystem: "realtime",
		Name:      "online_users",
		Help:      "Number of users with at least one open session.",
	})

	metricEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social",
		Subsystem: "realtime",
		Name:      "events_total",
		Help:      "Inbound client events by kind.",
	}, []string{"kind"})

	metricEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social",
		Subsystem: "realtime",
		Name:      "events_dropped_total",
		Help:      "Inbound events dropped by reason (malformed, unauthorized, persistence).",
	}, []string{"reason"})

	metricDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "social",
		Subsystem: "realtime",
		Name:      "deliveries_total",
		Help:      "Outbound payloads enqueued to client sessions.",
	})

	metricDeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "social",
		Subsystem: "realtime",
		Name:      "delivery_failures_total",
		Help:      "Outbound payloads dropped (dead session or full queue).",
	})
)

const (
	dropReasonMalformed    = "malformed"
	dropReasonUnauthorized = "unauthorized"
	dropReasonPersistence  = "persistence"
)
