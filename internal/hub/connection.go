// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package hub

import (
	"sort"
	"sync"
	"time"

	"github.com/beacon-hub/beacon/internal/event"
)

// Transport is the write side of one client connection. The Connection
// that holds it is its exclusive owner; no other entity writes to it.
//
// WriteEnvelope must be safe for concurrent use and must not block
// indefinitely: implementations either apply a write timeout or fail fast
// when the client cannot keep up.
type Transport interface {
	WriteEnvelope(env *event.Envelope) error
	Close(code int, reason string) error
	RemoteAddr() string
}

// Connection is one live client session. It is created on a successful
// handshake and destroyed on transport close, explicit disconnect, or
// heartbeat-timeout eviction.
type Connection struct {
	userID      string
	displayName string
	transport   Transport
	connectedAt time.Time
	metadata    map[string]string

	mu            sync.RWMutex
	lastHeartbeat time.Time
	rooms         map[string]struct{}
	stale         bool
}

func newConnection(t Transport, userID, displayName string, metadata map[string]string) *Connection {
	now := time.Now().UTC()
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return &Connection{
		userID:        userID,
		displayName:   displayName,
		transport:     t,
		connectedAt:   now,
		metadata:      md,
		lastHeartbeat: now,
		rooms:         make(map[string]struct{}),
	}
}

// UserID returns the user identity this connection belongs to.
func (c *Connection) UserID() string { return c.userID }

// DisplayName returns the name supplied at connect time.
func (c *Connection) DisplayName() string { return c.displayName }

// ConnectedAt returns when the handshake completed.
func (c *Connection) ConnectedAt() time.Time { return c.connectedAt }

// RemoteAddr returns the transport's remote address.
func (c *Connection) RemoteAddr() string { return c.transport.RemoteAddr() }

// Metadata returns a copy of the opaque key/value bag supplied at connect
// time.
func (c *Connection) Metadata() map[string]string {
	md := make(map[string]string, len(c.metadata))
	for k, v := range c.metadata {
		md[k] = v
	}
	return md
}

// LastHeartbeat returns the time of the most recent inbound heartbeat or
// message.
func (c *Connection) LastHeartbeat() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastHeartbeat
}

// Rooms returns the ids of the rooms this connection has joined, sorted.
func (c *Connection) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	sort.Strings(rooms)
	return rooms
}

func (c *Connection) touchHeartbeat() {
	c.mu.Lock()
	c.lastHeartbeat = time.Now().UTC()
	c.mu.Unlock()
}

// alive reports whether the connection heartbeated within ttl.
func (c *Connection) alive(ttl time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stale {
		return false
	}
	return time.Since(c.lastHeartbeat) < ttl
}

// markStale flags a connection whose force-close failed so the heartbeat
// monitor evicts it on its next sweep regardless of TTL.
func (c *Connection) markStale() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

func (c *Connection) addRoom(roomID string) {
	c.mu.Lock()
	c.rooms[roomID] = struct{}{}
	c.mu.Unlock()
}

func (c *Connection) removeRoom(roomID string) {
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
}
