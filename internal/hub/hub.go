// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package hub

import (
	"strings"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/beacon-hub/beacon/internal/config"
	"github.com/beacon-hub/beacon/internal/event"
	"github.com/beacon-hub/beacon/internal/logging"
)

// Hub is the explicit composition root for the event-distribution core:
// connection registry, room registry, heartbeat monitor and broadcast
// queue. The host application constructs exactly one Hub and passes it
// where needed; there is no package-level instance.
type Hub struct {
	cfg      config.HubConfig
	conns    *ConnectionRegistry
	rooms    *RoomRegistry
	monitor  *HeartbeatMonitor
	queue    *BroadcastQueue
	counters counters
	started  time.Time
}

// New wires the hub's components together. The returned Hub is usable
// immediately for synchronous operations; run Services under a
// supervisor to activate heartbeat eviction and queued delivery.
func New(cfg config.HubConfig) (*Hub, error) {
	h := &Hub{
		cfg:     cfg,
		started: time.Now().UTC(),
	}

	h.conns = NewConnectionRegistry(&h.counters)
	h.rooms = NewRoomRegistry(h.conns)
	h.conns.bindRooms(h.rooms)

	h.monitor = NewHeartbeatMonitor(h.conns, &h.counters, cfg.HeartbeatInterval, cfg.HeartbeatTTL)

	queue, err := NewBroadcastQueue(h.conns, h.rooms, cfg.QueueBuffer)
	if err != nil {
		return nil, err
	}
	h.queue = queue

	return h, nil
}

// Config returns the hub's tuning parameters.
func (h *Hub) Config() config.HubConfig { return h.cfg }

// Connections returns the connection registry.
func (h *Hub) Connections() *ConnectionRegistry { return h.conns }

// Rooms returns the room registry.
func (h *Hub) Rooms() *RoomRegistry { return h.rooms }

// Queue returns the broadcast queue for asynchronous fan-out.
func (h *Hub) Queue() *BroadcastQueue { return h.queue }

// Counters exposes the shared message counters to collaborating
// packages in-process.
func (h *Hub) Counters() *MessageCounters { return (*MessageCounters)(&h.counters) }

// Services returns the hub's background services in start order, ready
// to be added to a suture supervisor.
func (h *Hub) Services() []suture.Service {
	return []suture.Service{h.queue, h.monitor}
}

// BroadcastTaskUpdate notifies a project room of a task change. The
// event type selects the task lifecycle transition; updatedBy is
// excluded from the fan-out. Returns false for a non-task event type.
func (h *Hub) BroadcastTaskUpdate(t event.Type, task *event.TaskPayload, updatedBy string) bool {
	if t.Category() != event.CategoryTask {
		logging.Warn().Str("type", string(t)).Msg("broadcast task update refused non-task type")
		return false
	}

	// The project id is the room id; clients join the project's room to
	// receive its task stream.
	builder := event.NewBuilder(t).Payload(task).User(updatedBy)
	roomID := task.ProjectID
	if roomID != "" {
		builder = builder.Room(roomID)
	}
	env, err := builder.Build()
	if err != nil {
		logging.Error().Err(err).Str("type", string(t)).Msg("broadcast task update build failed")
		return false
	}

	if roomID != "" {
		if err := h.queue.Enqueue(env, TargetRoom, roomID, updatedBy); err != nil {
			logging.Error().Err(err).Str("room_id", roomID).Msg("task update enqueue failed")
			return false
		}
	} else {
		if err := h.queue.Enqueue(env, TargetAll, "", updatedBy); err != nil {
			logging.Error().Err(err).Msg("task update enqueue failed")
			return false
		}
	}

	// Any task change carrying an assignee additionally pings that user
	// directly, unless they made the change themselves.
	if task.AssigneeID != "" && task.AssigneeID != updatedBy {
		h.SendNotificationToUser(task.AssigneeID, strings.ReplaceAll(string(t), "_", " "), task.Title, "task_update")
	}
	return true
}

// BroadcastUserStatus announces a presence change to every connection
// except the user themselves, or only to roomID's members when it is
// non-empty. An empty username falls back to the connection's display
// name.
func (h *Hub) BroadcastUserStatus(userID, username, status, roomID string) bool {
	t := event.TypeUserOnline
	if status == "offline" {
		t = event.TypeUserOffline
	}

	if username == "" {
		username = userID
		if conn, ok := h.conns.Get(userID); ok {
			username = conn.DisplayName()
		}
	}

	builder := event.NewBuilder(t).
		Payload(&event.PresencePayload{UserID: userID, Username: username, Status: status, RoomID: roomID}).
		User(userID)
	if roomID != "" {
		builder = builder.Room(roomID)
	}
	env := builder.MustBuild()

	var err error
	if roomID != "" {
		err = h.queue.Enqueue(env, TargetRoom, roomID, userID)
	} else {
		err = h.queue.Enqueue(env, TargetAll, "", userID)
	}
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("user status enqueue failed")
		return false
	}
	return true
}

// SendNotificationToUser delivers a system notification to one user.
// Returns false if the user is not connected.
func (h *Hub) SendNotificationToUser(userID, title, message, kind string) bool {
	if !h.conns.IsConnected(userID) {
		return false
	}
	env := event.NewBuilder(event.TypeSystemNotification).
		Payload(&event.NotificationPayload{Title: title, Message: message, Kind: kind}).
		User(userID).
		Priority(event.PriorityHigh).
		MustBuild()

	if err := h.queue.Enqueue(env, TargetUser, userID, ""); err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("notification enqueue failed")
		return false
	}
	return true
}

// SendNotificationToRoom delivers a room-scoped notification to every
// member. Returns false if the room does not exist.
func (h *Hub) SendNotificationToRoom(roomID, title, message, kind string) bool {
	if _, ok := h.rooms.GetRoomInfo(roomID); !ok {
		return false
	}
	env := event.NewBuilder(event.TypeRoomNotification).
		Payload(&event.RoomNotificationPayload{RoomID: roomID, Title: title, Message: message, Kind: kind}).
		Room(roomID).
		MustBuild()

	if err := h.queue.Enqueue(env, TargetRoom, roomID, ""); err != nil {
		logging.Error().Err(err).Str("room_id", roomID).Msg("room notification enqueue failed")
		return false
	}
	return true
}

// DisconnectUser force-disconnects one user, for host-initiated kicks.
func (h *Hub) DisconnectUser(userID, reason string) error {
	if !h.conns.IsConnected(userID) {
		return ErrNotConnected
	}
	h.conns.Disconnect(userID, reason)
	return nil
}

// GetOnlineUsers returns presence for all connected users, or only the
// members of roomID when it is non-empty.
func (h *Hub) GetOnlineUsers(roomID string) []UserPresence {
	if roomID == "" {
		return h.conns.OnlineUsers()
	}
	members := h.rooms.Members(roomID)
	users := make([]UserPresence, 0, len(members))
	for _, userID := range members {
		conn, ok := h.conns.Get(userID)
		if !ok {
			continue
		}
		users = append(users, UserPresence{
			UserID:        conn.UserID(),
			DisplayName:   conn.DisplayName(),
			ConnectedAt:   conn.ConnectedAt(),
			LastHeartbeat: conn.LastHeartbeat(),
			Rooms:         conn.Rooms(),
		})
	}
	return users
}

// GetRoomInfo returns the room's membership view.
func (h *Hub) GetRoomInfo(roomID string) (RoomInfo, bool) {
	return h.rooms.GetRoomInfo(roomID)
}

// GetStats returns a point-in-time observability snapshot.
func (h *Hub) GetStats() Stats {
	return Stats{
		Connections:        h.conns.Count(),
		Rooms:              h.rooms.Count(),
		MessagesSent:       h.counters.sent.Load(),
		MessagesReceived:   h.counters.received.Load(),
		MessagesDropped:    h.counters.dropped.Load(),
		HeartbeatEvictions: h.counters.evictions.Load(),
		QueueDepth:         h.queue.Depth(),
		UptimeSeconds:      int64(time.Since(h.started).Seconds()),
	}
}

// Shutdown closes the broadcast queue and force-closes every
// connection. Call after the supervisor has stopped the background
// services.
func (h *Hub) Shutdown() {
	if err := h.queue.Close(); err != nil {
		logging.Debug().Err(err).Msg("broadcast queue close failed")
	}
	h.conns.CloseAll("server shutting down")
	logging.Info().Msg("hub shut down")
}

// MessageCounters gives collaborating packages typed access to the
// shared message totals without exposing the registry internals.
type MessageCounters counters

// RecordReceived counts one accepted inbound envelope.
func (c *MessageCounters) RecordReceived() { (*counters)(c).received.Add(1) }
