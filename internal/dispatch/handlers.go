// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package dispatch

import (
	"github.com/beacon-hub/beacon/internal/config"
	"github.com/beacon-hub/beacon/internal/event"
	"github.com/beacon-hub/beacon/internal/hub"
	"github.com/beacon-hub/beacon/internal/logging"
)

// DefaultHandlers implements the standard collaboration semantics on top
// of the hub: task fan-out, presence, typing expiry, room membership and
// per-document collaboration sessions.
type DefaultHandlers struct {
	hub      *hub.Hub
	typing   *TypingTracker
	sessions *SessionTracker
}

// RegisterDefaults installs the default handler set on d and returns it
// so the transport layer can run connection-teardown cleanup.
func RegisterDefaults(d *Dispatcher, h *hub.Hub, cfg config.HubConfig) *DefaultHandlers {
	dh := &DefaultHandlers{
		hub:      h,
		typing:   NewTypingTracker(cfg.TypingStopDelay, cfg.TypingIdleWindow),
		sessions: NewSessionTracker(),
	}

	for _, t := range []event.Type{
		event.TypeTaskCreated,
		event.TypeTaskUpdated,
		event.TypeTaskDeleted,
		event.TypeTaskStatusChanged,
		event.TypeTaskAssigned,
	} {
		d.Register(t, dh.handleTask)
	}

	d.Register(event.TypeUserOnline, dh.handlePresence)
	d.Register(event.TypeUserOffline, dh.handlePresence)
	d.Register(event.TypeUserTyping, dh.handleTyping)
	d.Register(event.TypeUserJoinRoom, dh.handleJoinRoom)
	d.Register(event.TypeUserLeaveRoom, dh.handleLeaveRoom)

	d.Register(event.TypeCollabStart, dh.handleCollabStart)
	d.Register(event.TypeCollabEnd, dh.handleCollabEnd)
	d.Register(event.TypeDocumentEdit, dh.handleDocumentEdit)
	d.Register(event.TypeCursorPosition, dh.handleCursor)

	d.Register(event.TypeRoomNotification, dh.handleRoomNotification)
	d.Register(event.TypeDataSync, dh.handleSync)
	d.Register(event.TypeCacheInvalidate, dh.handleSync)

	return dh
}

// ConnectionClosed clears the per-connection collaboration state after a
// disconnect: pending typing indicators get their stop broadcast and
// abandoned sessions are left.
func (dh *DefaultHandlers) ConnectionClosed(userID string) {
	for _, roomID := range dh.typing.StoppedAll(userID) {
		dh.broadcastTypingStopped(userID, userID, roomID)
	}
	for _, documentID := range dh.sessions.LeaveAll(userID) {
		dh.hub.Rooms().Leave(userID, documentID)
	}
}

func (dh *DefaultHandlers) handleTask(sender *hub.Connection, env *event.Envelope) {
	task, ok := env.Data.(*event.TaskPayload)
	if !ok {
		return
	}
	if task.UpdatedBy == "" {
		task = &event.TaskPayload{
			TaskID:     task.TaskID,
			ProjectID:  task.ProjectID,
			Title:      task.Title,
			Status:     task.Status,
			AssigneeID: task.AssigneeID,
			UpdatedBy:  sender.UserID(),
		}
	}
	dh.hub.BroadcastTaskUpdate(env.Type, task, sender.UserID())
}

func (dh *DefaultHandlers) handlePresence(sender *hub.Connection, env *event.Envelope) {
	status := "online"
	if env.Type == event.TypeUserOffline {
		status = "offline"
	}
	username := sender.DisplayName()
	roomID := ""
	if p, ok := env.Data.(*event.PresencePayload); ok {
		if p.Status != "" {
			status = p.Status
		}
		if p.Username != "" {
			username = p.Username
		}
		roomID = p.RoomID
	}
	dh.hub.BroadcastUserStatus(sender.UserID(), username, status, roomID)
}

func (dh *DefaultHandlers) handleTyping(sender *hub.Connection, env *event.Envelope) {
	p, ok := env.Data.(*event.TypingPayload)
	if !ok {
		return
	}
	userID := sender.UserID()
	roomID := p.RoomID

	if p.IsTyping {
		dh.broadcastTyping(userID, sender.DisplayName(), roomID, true)
		displayName := sender.DisplayName()
		dh.typing.Started(userID, roomID, func() {
			dh.broadcastTypingStopped(userID, displayName, roomID)
		})
		return
	}

	// Explicit stop; suppress the broadcast if the auto-stop already fired.
	if dh.typing.Stopped(userID, roomID) {
		dh.broadcastTyping(userID, sender.DisplayName(), roomID, false)
	}
}

func (dh *DefaultHandlers) broadcastTyping(userID, displayName, roomID string, isTyping bool) {
	env := event.NewBuilder(event.TypeUserTyping).
		Payload(&event.TypingPayload{UserID: userID, Username: displayName, RoomID: roomID, IsTyping: isTyping}).
		User(userID).
		Room(roomID).
		Priority(event.PriorityLow).
		MustBuild()
	dh.hub.Rooms().BroadcastToRoom(roomID, env, userID)
}

func (dh *DefaultHandlers) broadcastTypingStopped(userID, displayName, roomID string) {
	dh.broadcastTyping(userID, displayName, roomID, false)
}

func (dh *DefaultHandlers) handleJoinRoom(sender *hub.Connection, env *event.Envelope) {
	p, ok := env.Data.(*event.RoomMembershipPayload)
	if !ok {
		return
	}
	dh.hub.Rooms().Join(sender.UserID(), p.RoomID, sender.DisplayName())
}

func (dh *DefaultHandlers) handleLeaveRoom(sender *hub.Connection, env *event.Envelope) {
	p, ok := env.Data.(*event.RoomMembershipPayload)
	if !ok {
		return
	}
	dh.hub.Rooms().Leave(sender.UserID(), p.RoomID)
}

func (dh *DefaultHandlers) handleCollabStart(sender *hub.Connection, env *event.Envelope) {
	p, ok := env.Data.(*event.CollabPayload)
	if !ok {
		return
	}
	userID := sender.UserID()
	roomID := p.DocumentID

	participants := dh.sessions.Join(p.DocumentID, userID)
	dh.hub.Rooms().Join(userID, roomID, sender.DisplayName())

	out := event.NewBuilder(event.TypeCollabStart).
		Payload(&event.CollabPayload{DocumentID: p.DocumentID, UserID: userID, Participants: participants}).
		User(userID).
		Room(roomID).
		MustBuild()
	dh.hub.Rooms().BroadcastToRoom(roomID, out, userID)

	logging.Debug().
		Str("user_id", userID).
		Str("document_id", p.DocumentID).
		Int("participants", len(participants)).
		Msg("collaboration session joined")
}

func (dh *DefaultHandlers) handleCollabEnd(sender *hub.Connection, env *event.Envelope) {
	p, ok := env.Data.(*event.CollabPayload)
	if !ok {
		return
	}
	userID := sender.UserID()
	roomID := p.DocumentID

	remaining, wasMember := dh.sessions.Leave(p.DocumentID, userID)
	if !wasMember {
		return
	}

	out := event.NewBuilder(event.TypeCollabEnd).
		Payload(&event.CollabPayload{DocumentID: p.DocumentID, UserID: userID, Participants: remaining}).
		User(userID).
		Room(roomID).
		MustBuild()
	dh.hub.Rooms().BroadcastToRoom(roomID, out, userID)
	dh.hub.Rooms().Leave(userID, roomID)
}

func (dh *DefaultHandlers) handleDocumentEdit(sender *hub.Connection, env *event.Envelope) {
	p, ok := env.Data.(*event.EditPayload)
	if !ok {
		return
	}
	userID := sender.UserID()
	roomID := p.DocumentID
	version := dh.sessions.NextVersion(p.DocumentID)

	out := event.NewBuilder(event.TypeDocumentEdit).
		Payload(&event.EditPayload{
			DocumentID: p.DocumentID,
			UserID:     userID,
			Operation:  p.Operation,
			Content:    p.Content,
			Position:   p.Position,
			Version:    version,
		}).
		User(userID).
		Room(roomID).
		Priority(event.PriorityHigh).
		MustBuild()
	dh.hub.Rooms().BroadcastToRoom(roomID, out, userID)
}

func (dh *DefaultHandlers) handleCursor(sender *hub.Connection, env *event.Envelope) {
	p, ok := env.Data.(*event.CursorPayload)
	if !ok {
		return
	}
	userID := sender.UserID()
	roomID := p.DocumentID

	out := event.NewBuilder(event.TypeCursorPosition).
		Payload(&event.CursorPayload{DocumentID: p.DocumentID, UserID: userID, Line: p.Line, Column: p.Column}).
		User(userID).
		Room(roomID).
		Priority(event.PriorityLow).
		MustBuild()
	dh.hub.Rooms().BroadcastToRoom(roomID, out, userID)
}

func (dh *DefaultHandlers) handleRoomNotification(sender *hub.Connection, env *event.Envelope) {
	p, ok := env.Data.(*event.RoomNotificationPayload)
	if !ok {
		return
	}
	dh.hub.SendNotificationToRoom(p.RoomID, p.Title, p.Message, p.Kind)
}

// handleSync relays data-sync and cache-invalidate events: scoped to the
// envelope's room when set, otherwise to every other connection.
func (dh *DefaultHandlers) handleSync(sender *hub.Connection, env *event.Envelope) {
	out := event.NewBuilder(env.Type).
		Payload(env.Data).
		User(sender.UserID()).
		Room(env.RoomID).
		Priority(env.Priority).
		MustBuild()

	var err error
	if env.RoomID != "" {
		err = dh.hub.Queue().Enqueue(out, hub.TargetRoom, env.RoomID, sender.UserID())
	} else {
		err = dh.hub.Queue().Enqueue(out, hub.TargetAll, "", sender.UserID())
	}
	if err != nil {
		logging.Error().Err(err).Str("type", string(env.Type)).Msg("sync relay enqueue failed")
	}
}
