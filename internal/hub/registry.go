// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package hub

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/beacon-hub/beacon/internal/event"
	"github.com/beacon-hub/beacon/internal/logging"
	"github.com/beacon-hub/beacon/internal/metrics"
)

// WebSocket close codes used by the registry. Kept as plain ints so the
// hub core stays transport-agnostic.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
)

// UserPresence describes one online user for introspection queries.
type UserPresence struct {
	UserID        string    `json:"user_id"`
	DisplayName   string    `json:"display_name"`
	ConnectedAt   time.Time `json:"connected_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Rooms         []string  `json:"rooms,omitempty"`
}

// ConnectionRegistry owns the set of live connections keyed by user id.
// Invariant: at most one live connection per user id at any instant.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	// stale holds connections whose force-close failed; the heartbeat
	// monitor retries closing them on its next sweep.
	stale map[*Connection]struct{}

	rooms    *RoomRegistry
	counters *counters
}

// NewConnectionRegistry creates an empty registry. Call bindRooms before
// first use so disconnects can run their room-leave side effects.
func NewConnectionRegistry(c *counters) *ConnectionRegistry {
	return &ConnectionRegistry{
		conns:    make(map[string]*Connection),
		stale:    make(map[*Connection]struct{}),
		counters: c,
	}
}

func (r *ConnectionRegistry) bindRooms(rooms *RoomRegistry) {
	r.rooms = rooms
}

// Connect admits a new connection for userID. If the user already has a
// live connection it is disconnected first: graceful close, then registry
// removal. A DuplicateRegistrationError is returned only when that
// force-close itself fails; the new connection is admitted regardless and
// the stale one is left for the heartbeat monitor.
//
// On success a CONNECT event is fanned out to every other connection and
// a welcome notification is sent to the newcomer.
func (r *ConnectionRegistry) Connect(t Transport, userID, displayName string, metadata map[string]string) (*Connection, error) {
	conn := newConnection(t, userID, displayName, metadata)

	// Swap under one lock so two racing Connects for the same user can
	// never both see an empty slot: each takes ownership of exactly the
	// connection it displaced.
	r.mu.Lock()
	old := r.conns[userID]
	r.conns[userID] = conn
	total := len(r.conns)
	r.mu.Unlock()

	var dupErr error
	if old != nil {
		metrics.ConnectionsReplaced.Inc()
		logging.Info().
			Str("user_id", userID).
			Str("remote_addr", old.RemoteAddr()).
			Msg("replacing existing connection for user")

		r.removeFromRooms(old)
		if err := old.transport.Close(CloseGoingAway, "replaced by newer connection"); err != nil {
			old.markStale()
			r.mu.Lock()
			r.stale[old] = struct{}{}
			r.mu.Unlock()
			dupErr = &DuplicateRegistrationError{UserID: userID, Err: err}
		}
		metrics.Connections.Dec()
	}

	metrics.Connections.Inc()
	metrics.ConnectionsTotal.Inc()
	logging.Info().
		Str("user_id", userID).
		Str("display_name", displayName).
		Int("total_connections", total).
		Msg("connection registered")

	connectEnv := event.NewBuilder(event.TypeConnect).
		Payload(&event.ConnectPayload{UserID: userID, Username: displayName}).
		User(userID).
		MustBuild()
	r.BroadcastAll(connectEnv, userID)

	welcome := event.NewBuilder(event.TypeSystemNotification).
		Payload(&event.NotificationPayload{
			Title:   "welcome",
			Message: fmt.Sprintf("connected as %s, %d users online", displayName, total),
			Kind:    "system_status",
		}).
		User(userID).
		MustBuild()
	r.SendToUser(userID, welcome)

	return conn, dupErr
}

// Disconnect removes the user's connection, leaves every room it joined,
// closes the transport and notifies all other connections. Disconnecting
// an absent user is a no-op, not an error.
func (r *ConnectionRegistry) Disconnect(userID, reason string) {
	r.mu.Lock()
	conn, ok := r.conns[userID]
	if ok {
		delete(r.conns, userID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	metrics.Connections.Dec()
	r.removeFromRooms(conn)

	if err := conn.transport.Close(CloseNormal, reason); err != nil {
		logging.Debug().Err(err).Str("user_id", userID).Msg("transport close failed during disconnect")
	}

	logging.Info().
		Str("user_id", userID).
		Str("reason", reason).
		Int("total_connections", r.Count()).
		Msg("connection removed")

	env := event.NewBuilder(event.TypeDisconnect).
		Payload(&event.DisconnectPayload{UserID: userID, Username: conn.DisplayName(), Reason: reason}).
		User(userID).
		MustBuild()
	r.BroadcastAll(env, userID)
}

// removeFromRooms runs the room-leave side effects for every room the
// connection is a member of.
func (r *ConnectionRegistry) removeFromRooms(conn *Connection) {
	if r.rooms == nil {
		return
	}
	for _, roomID := range conn.Rooms() {
		r.rooms.Leave(conn.UserID(), roomID)
	}
}

// SendToUser delivers one envelope to the user's connection. It returns
// false if the user is absent or the transport write fails; a failed
// write disconnects the user. This is the sole point where send failure
// causes eviction.
func (r *ConnectionRegistry) SendToUser(userID string, env *event.Envelope) bool {
	r.mu.RLock()
	conn, ok := r.conns[userID]
	r.mu.RUnlock()
	if !ok {
		r.counters.dropped.Add(1)
		metrics.RecordDrop("no_connection")
		return false
	}

	if err := conn.transport.WriteEnvelope(env); err != nil {
		logging.Warn().
			Err(err).
			Str("user_id", userID).
			Str("type", string(env.Type)).
			Msg("transport write failed, evicting connection")
		r.counters.dropped.Add(1)
		metrics.RecordDrop("send_buffer_full")
		r.Disconnect(userID, "send failure")
		return false
	}

	r.counters.sent.Add(1)
	metrics.MessagesSent.Inc()
	return true
}

// BroadcastAll delivers the envelope to every connection except
// excludeUser, in user-id order. Returns the number of successful
// deliveries.
func (r *ConnectionRegistry) BroadcastAll(env *event.Envelope, excludeUser string) int {
	delivered := 0
	for _, userID := range r.userIDs() {
		if userID == excludeUser {
			continue
		}
		if r.SendToUser(userID, env) {
			delivered++
		}
	}
	return delivered
}

// UpdateHeartbeat refreshes the user's last-heartbeat time. No-op if the
// user is absent.
func (r *ConnectionRegistry) UpdateHeartbeat(userID string) {
	r.mu.RLock()
	conn, ok := r.conns[userID]
	r.mu.RUnlock()
	if ok {
		conn.touchHeartbeat()
	}
}

// IsAlive reports whether the user has a connection that heartbeated
// within ttl.
func (r *ConnectionRegistry) IsAlive(userID string, ttl time.Duration) bool {
	r.mu.RLock()
	conn, ok := r.conns[userID]
	r.mu.RUnlock()
	return ok && conn.alive(ttl)
}

// IsConnected reports whether the user has a live connection.
func (r *ConnectionRegistry) IsConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// Get returns the user's connection, if any.
func (r *ConnectionRegistry) Get(userID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// Count returns the number of live connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// userIDs returns a sorted snapshot of connected user ids. Sorting keeps
// fan-out order deterministic.
func (r *ConnectionRegistry) userIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// OnlineUsers returns presence info for every live connection, sorted by
// user id.
func (r *ConnectionRegistry) OnlineUsers() []UserPresence {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	sort.Slice(conns, func(i, j int) bool { return conns[i].userID < conns[j].userID })

	users := make([]UserPresence, 0, len(conns))
	for _, c := range conns {
		users = append(users, UserPresence{
			UserID:        c.UserID(),
			DisplayName:   c.DisplayName(),
			ConnectedAt:   c.ConnectedAt(),
			LastHeartbeat: c.LastHeartbeat(),
			Rooms:         c.Rooms(),
		})
	}
	return users
}

// expired returns user ids whose connections failed the liveness check,
// plus any stale connections awaiting a close retry.
func (r *ConnectionRegistry) expired(ttl time.Duration) ([]string, []*Connection) {
	r.mu.RLock()
	var ids []string
	for id, conn := range r.conns {
		if !conn.alive(ttl) {
			ids = append(ids, id)
		}
	}
	staleConns := make([]*Connection, 0, len(r.stale))
	for conn := range r.stale {
		staleConns = append(staleConns, conn)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids, staleConns
}

// dropStale forgets a stale connection after the monitor dealt with it.
func (r *ConnectionRegistry) dropStale(conn *Connection) {
	r.mu.Lock()
	delete(r.stale, conn)
	r.mu.Unlock()
}

// CloseAll force-closes every live connection. Used during shutdown;
// close failures are logged, never raised.
func (r *ConnectionRegistry) CloseAll(reason string) {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[string]*Connection)
	r.mu.Unlock()

	sort.Slice(conns, func(i, j int) bool { return conns[i].userID < conns[j].userID })
	for _, c := range conns {
		if err := c.transport.Close(CloseGoingAway, reason); err != nil {
			logging.Debug().Err(err).Str("user_id", c.UserID()).Msg("transport close failed during shutdown")
		}
		metrics.Connections.Dec()
	}
	logging.Info().Int("connections_closed", len(conns)).Msg("closed all connections")
}
