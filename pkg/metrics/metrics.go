// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SnapshotsApplied counts snapshots accepted into the recent window,
	// labeled by the transport that delivered them.
	SnapshotsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "threatview",
		Name:      "snapshots_applied_total",
		Help:      "Snapshots applied to the recent activity window.",
	}, []string{"transport"})

	// MessagesDropped counts malformed push payloads that were discarded.
	MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "threatview",
		Name:      "messages_dropped_total",
		Help:      "Malformed push messages dropped without being applied.",
	})

	// PollFailures counts fallback poll requests that errored.
	PollFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "threatview",
		Name:      "poll_failures_total",
		Help:      "Fallback poll requests that failed.",
	})

	// StaleSnapshotsDiscarded counts snapshots discarded because their
	// originating channel had been superseded.
	StaleSnapshotsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "threatview",
		Name:      "stale_snapshots_discarded_total",
		Help:      "Late snapshots from a superseded transport channel.",
	})

	// AlertsFired counts edge-detected high severity alerts.
	AlertsFired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "threatview",
		Name:      "alerts_fired_total",
		Help:      "High severity alerts raised.",
	})

	// ConnectionState is the current transport state: 0 connecting,
	// 1 live, 2 fallback.
	ConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "threatview",
		Name:      "connection_state",
		Help:      "Transport state (0=connecting, 1=live, 2=fallback).",
	})
)
