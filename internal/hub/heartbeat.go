// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package hub

import (
	"context"
	"time"

	"github.com/beacon-hub/beacon/internal/logging"
	"github.com/beacon-hub/beacon/internal/metrics"
)

// HeartbeatMonitor periodically sweeps all connections and evicts any
// whose last heartbeat is older than the TTL. It runs independently of
// message traffic: a connection that sends nothing for the TTL window is
// evicted even if its transport never signalled closure.
//
// Implements suture.Service.
type HeartbeatMonitor struct {
	conns    *ConnectionRegistry
	counters *counters
	interval time.Duration
	ttl      time.Duration
}

// NewHeartbeatMonitor creates a monitor sweeping every interval with the
// given liveness TTL.
func NewHeartbeatMonitor(conns *ConnectionRegistry, c *counters, interval, ttl time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		conns:    conns,
		counters: c,
		interval: interval,
		ttl:      ttl,
	}
}

// Serve runs the sweep loop until the context is canceled. Designed for
// suture supervision; returning ctx.Err() tells the supervisor the stop
// was intentional.
func (m *HeartbeatMonitor) Serve(ctx context.Context) error {
	logging.Info().
		Dur("interval", m.interval).
		Dur("ttl", m.ttl).
		Msg("heartbeat monitor started")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "heartbeat-monitor").Msg("heartbeat monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep evicts every expired connection and retries closing stale
// transports left over from failed force-closes.
func (m *HeartbeatMonitor) sweep() {
	expired, stale := m.conns.expired(m.ttl)

	for _, userID := range expired {
		logging.Info().
			Str("user_id", userID).
			Dur("ttl", m.ttl).
			Msg("evicting connection, heartbeat timeout")
		m.conns.Disconnect(userID, "heartbeat timeout")
		m.counters.evictions.Add(1)
		metrics.HeartbeatEvictions.Inc()
	}

	for _, conn := range stale {
		if err := conn.transport.Close(CloseGoingAway, "stale connection cleanup"); err != nil {
			logging.Debug().Err(err).Str("user_id", conn.UserID()).Msg("stale transport close failed again")
		}
		m.conns.dropStale(conn)
	}

	if len(expired) > 0 {
		logging.Info().
			Int("evicted", len(expired)).
			Int("remaining", m.conns.Count()).
			Msg("heartbeat sweep completed")
	}
}

func (m *HeartbeatMonitor) String() string { return "heartbeat-monitor" }
