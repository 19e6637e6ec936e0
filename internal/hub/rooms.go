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
	"github.com/beacon-hub/beacon/internal/logging"
	"github.com/beacon-hub/beacon/internal/metrics"
)

// room is a named fan-out group. Only the RoomRegistry mutates members.
type room struct {
	id          string
	displayName string
	createdAt   time.Time
	metadata    map[string]string
	members     map[string]struct{}
}

// RoomInfo is the read-only view of a room handed to introspection
// callers.
type RoomInfo struct {
	RoomID      string            `json:"room_id"`
	DisplayName string            `json:"display_name"`
	Members     []string          `json:"members"`
	CreatedAt   time.Time         `json:"created_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// RoomRegistry owns room existence and membership. Invariant: a room
// with zero members does not persist; it is created lazily on first join
// and deleted by the leave that empties it.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*room
	conns *ConnectionRegistry
}

// NewRoomRegistry creates an empty registry backed by conns for
// membership validity checks and delivery.
func NewRoomRegistry(conns *ConnectionRegistry) *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]*room),
		conns: conns,
	}
}

// Join adds the user to the room, creating the room on first join, and
// broadcasts a join notification to the other members. It returns false
// if the user has no live connection.
func (r *RoomRegistry) Join(userID, roomID, displayName string) bool {
	conn, ok := r.conns.Get(userID)
	if !ok {
		logging.Debug().Str("user_id", userID).Str("room_id", roomID).Msg("join rejected, user not connected")
		return false
	}
	if displayName == "" {
		displayName = conn.DisplayName()
	}

	r.mu.Lock()
	rm, exists := r.rooms[roomID]
	if !exists {
		rm = &room{
			id:        roomID,
			createdAt: time.Now().UTC(),
			metadata:  make(map[string]string),
			members:   make(map[string]struct{}),
		}
		r.rooms[roomID] = rm
		metrics.Rooms.Inc()
	}
	rm.members[userID] = struct{}{}
	memberCount := len(rm.members)
	r.mu.Unlock()

	conn.addRoom(roomID)
	metrics.RoomJoins.Inc()
	logging.Info().
		Str("user_id", userID).
		Str("room_id", roomID).
		Int("members", memberCount).
		Bool("created", !exists).
		Msg("user joined room")

	env := event.NewBuilder(event.TypeUserJoinRoom).
		Payload(&event.RoomMembershipPayload{
			UserID:      userID,
			Username:    displayName,
			RoomID:      roomID,
			MemberCount: memberCount,
		}).
		User(userID).
		Room(roomID).
		MustBuild()
	r.BroadcastToRoom(roomID, env, userID)

	return true
}

// Leave removes the user's membership and broadcasts a leave notification
// to the remaining members. The leave that empties a room deletes it.
// Idempotent: leaving a room the user is not in returns false without
// side effects.
func (r *RoomRegistry) Leave(userID, roomID string) bool {
	r.mu.Lock()
	rm, exists := r.rooms[roomID]
	if !exists {
		r.mu.Unlock()
		return false
	}
	if _, member := rm.members[userID]; !member {
		r.mu.Unlock()
		return false
	}
	delete(rm.members, userID)
	memberCount := len(rm.members)
	if memberCount == 0 {
		delete(r.rooms, roomID)
		metrics.Rooms.Dec()
	}
	r.mu.Unlock()

	if conn, ok := r.conns.Get(userID); ok {
		conn.removeRoom(roomID)
	}
	metrics.RoomLeaves.Inc()
	logging.Info().
		Str("user_id", userID).
		Str("room_id", roomID).
		Int("members", memberCount).
		Bool("deleted", memberCount == 0).
		Msg("user left room")

	if memberCount > 0 {
		displayName := userID
		if conn, ok := r.conns.Get(userID); ok {
			displayName = conn.DisplayName()
		}
		env := event.NewBuilder(event.TypeUserLeaveRoom).
			Payload(&event.RoomMembershipPayload{
				UserID:      userID,
				Username:    displayName,
				RoomID:      roomID,
				MemberCount: memberCount,
			}).
			User(userID).
			Room(roomID).
			MustBuild()
		r.BroadcastToRoom(roomID, env, userID)
	}

	return true
}

// BroadcastToRoom delivers the envelope to every member except
// excludeUser and returns the number of successful deliveries. An unknown
// room delivers to nobody and returns 0 without error.
func (r *RoomRegistry) BroadcastToRoom(roomID string, env *event.Envelope, excludeUser string) int {
	members := r.Members(roomID)
	delivered := 0
	for _, userID := range members {
		if userID == excludeUser {
			continue
		}
		if r.conns.SendToUser(userID, env) {
			delivered++
		}
	}
	return delivered
}

// Members returns a sorted snapshot of the room's member user ids.
func (r *RoomRegistry) Members(roomID string) []string {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.RUnlock()
		return nil
	}
	members := make([]string, 0, len(rm.members))
	for id := range rm.members {
		members = append(members, id)
	}
	r.mu.RUnlock()
	sort.Strings(members)
	return members
}

// GetRoomInfo returns the room's read-only view, or false if the room
// does not exist.
func (r *RoomRegistry) GetRoomInfo(roomID string) (RoomInfo, bool) {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.RUnlock()
		return RoomInfo{}, false
	}
	info := RoomInfo{
		RoomID:      rm.id,
		DisplayName: rm.displayName,
		CreatedAt:   rm.createdAt,
		Metadata:    make(map[string]string, len(rm.metadata)),
		Members:     make([]string, 0, len(rm.members)),
	}
	for k, v := range rm.metadata {
		info.Metadata[k] = v
	}
	for id := range rm.members {
		info.Members = append(info.Members, id)
	}
	r.mu.RUnlock()
	sort.Strings(info.Members)
	return info, true
}

// Count returns the number of rooms with at least one member.
func (r *RoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// RoomIDs returns a sorted snapshot of existing room ids.
func (r *RoomRegistry) RoomIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
