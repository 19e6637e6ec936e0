// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package hub

import "sync/atomic"

// counters accumulates message-level totals shared by the registries and
// the Hub facade. Prometheus mirrors these; the struct exists so
// GetStats can answer without scraping.
type counters struct {
	sent      atomic.Uint64
	received  atomic.Uint64
	dropped   atomic.Uint64
	evictions atomic.Uint64
}

// Stats is the observability snapshot returned to the host application.
type Stats struct {
	Connections        int    `json:"connections"`
	Rooms              int    `json:"rooms"`
	MessagesSent       uint64 `json:"messages_sent"`
	MessagesReceived   uint64 `json:"messages_received"`
	MessagesDropped    uint64 `json:"messages_dropped"`
	HeartbeatEvictions uint64 `json:"heartbeat_evictions"`
	QueueDepth         int64  `json:"queue_depth"`
	UptimeSeconds      int64  `json:"uptime_seconds"`
}
