// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

// Package metrics provides Prometheus instrumentation for the hub:
// connection and room population, message throughput, dispatch latency,
// handler faults and heartbeat evictions. All collectors are registered
// via promauto on the default registry and exposed at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection Metrics
	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beacon_connections",
			Help: "Current number of live client connections",
		},
	)

	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_connections_total",
			Help: "Total number of connections admitted since start",
		},
	)

	ConnectionsReplaced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_connections_replaced_total",
			Help: "Total number of connections force-closed by a newer connect for the same user",
		},
	)

	HeartbeatEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_heartbeat_evictions_total",
			Help: "Total number of connections evicted by the heartbeat monitor",
		},
	)

	// Room Metrics
	Rooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beacon_rooms",
			Help: "Current number of rooms with at least one member",
		},
	)

	RoomJoins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_room_joins_total",
			Help: "Total number of room joins",
		},
	)

	RoomLeaves = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_room_leaves_total",
			Help: "Total number of room leaves",
		},
	)

	// Message Metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_messages_sent_total",
			Help: "Total number of envelopes written to client transports",
		},
	)

	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_messages_received_total",
			Help: "Total number of inbound envelopes by event category",
		},
		[]string{"category"},
	)

	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_messages_dropped_total",
			Help: "Total number of envelopes dropped before delivery",
		},
		[]string{"reason"}, // "send_buffer_full", "no_connection", "encode_failed"
	)

	MalformedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_malformed_frames_total",
			Help: "Total number of inbound frames that failed envelope decoding",
		},
	)

	// Dispatch Metrics
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beacon_dispatch_duration_seconds",
			Help:    "Time spent running registered handlers for one envelope",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"type"},
	)

	HandlerFaults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_handler_faults_total",
			Help: "Total number of handler panics recovered by the dispatcher",
		},
		[]string{"type"},
	)

	// Broadcast Queue Metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beacon_broadcast_queue_depth",
			Help: "Current number of queued broadcast items awaiting the consumer",
		},
	)

	QueueItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_broadcast_queue_items_total",
			Help: "Total number of items enqueued on the broadcast queue",
		},
		[]string{"target"}, // "user", "room", "all"
	)
)

// RecordDispatch records the handler-run duration for one envelope.
func RecordDispatch(eventType string, duration time.Duration) {
	DispatchDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// RecordDrop records an envelope dropped before delivery.
func RecordDrop(reason string) {
	MessagesDropped.WithLabelValues(reason).Inc()
}
