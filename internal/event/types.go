// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package event

// Type identifies the kind of event an envelope carries.
// The set is closed; Decode rejects anything else.
type Type string

// Connection lifecycle events.
const (
	TypeConnect    Type = "connect"
	TypeDisconnect Type = "disconnect"
	TypeHeartbeat  Type = "heartbeat"
)

// Task lifecycle events.
const (
	TypeTaskCreated       Type = "task_created"
	TypeTaskUpdated       Type = "task_updated"
	TypeTaskDeleted       Type = "task_deleted"
	TypeTaskStatusChanged Type = "task_status_changed"
	TypeTaskAssigned      Type = "task_assigned"
)

// Presence events.
const (
	TypeUserOnline    Type = "user_online"
	TypeUserOffline   Type = "user_offline"
	TypeUserTyping    Type = "user_typing"
	TypeUserJoinRoom  Type = "user_join_room"
	TypeUserLeaveRoom Type = "user_leave_room"
)

// Collaboration events.
const (
	TypeCollabStart    Type = "collab_start"
	TypeCollabEnd      Type = "collab_end"
	TypeDocumentEdit   Type = "document_edit"
	TypeCursorPosition Type = "cursor_position"
)

// Notification events.
const (
	TypeSystemNotification Type = "system_notification"
	TypeRoomNotification   Type = "room_notification"
)

// Sync events.
const (
	TypeDataSync        Type = "data_sync"
	TypeCacheInvalidate Type = "cache_invalidate"
)

// Error events.
const (
	TypeError     Type = "error"
	TypeAuthError Type = "auth_error"
)

// Category groups event types for metrics and routing decisions.
type Category string

const (
	CategoryConnection    Category = "connection"
	CategoryTask          Category = "task"
	CategoryPresence      Category = "presence"
	CategoryCollaboration Category = "collaboration"
	CategoryNotification  Category = "notification"
	CategorySync          Category = "sync"
	CategoryError         Category = "error"
)

// Types lists every member of the closed event type set.
// Order matches the category grouping above.
var Types = []Type{
	TypeConnect, TypeDisconnect, TypeHeartbeat,
	TypeTaskCreated, TypeTaskUpdated, TypeTaskDeleted, TypeTaskStatusChanged, TypeTaskAssigned,
	TypeUserOnline, TypeUserOffline, TypeUserTyping, TypeUserJoinRoom, TypeUserLeaveRoom,
	TypeCollabStart, TypeCollabEnd, TypeDocumentEdit, TypeCursorPosition,
	TypeSystemNotification, TypeRoomNotification,
	TypeDataSync, TypeCacheInvalidate,
	TypeError, TypeAuthError,
}

// Valid reports whether t is a member of the closed set.
func (t Type) Valid() bool {
	_, ok := payloadFactories[t]
	return ok
}

// Category returns the category t belongs to.
func (t Type) Category() Category {
	switch t {
	case TypeConnect, TypeDisconnect, TypeHeartbeat:
		return CategoryConnection
	case TypeTaskCreated, TypeTaskUpdated, TypeTaskDeleted, TypeTaskStatusChanged, TypeTaskAssigned:
		return CategoryTask
	case TypeUserOnline, TypeUserOffline, TypeUserTyping, TypeUserJoinRoom, TypeUserLeaveRoom:
		return CategoryPresence
	case TypeCollabStart, TypeCollabEnd, TypeDocumentEdit, TypeCursorPosition:
		return CategoryCollaboration
	case TypeSystemNotification, TypeRoomNotification:
		return CategoryNotification
	case TypeDataSync, TypeCacheInvalidate:
		return CategorySync
	case TypeError, TypeAuthError:
		return CategoryError
	default:
		return ""
	}
}

// Priority orders envelopes for consumers that care about urgency.
// Delivery itself is FIFO; priority is advisory metadata for clients.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the four wire priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}
