// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package event

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// Payload is the marker interface implemented by every event payload
// struct. The concrete type of an envelope's Data field is determined by
// its event type; decodePayload enforces the mapping.
type Payload interface {
	isPayload()
}

// validate checks required payload fields on inbound frames.
var validate = validator.New()

// ConnectPayload announces a newly registered connection.
type ConnectPayload struct {
	UserID   string `json:"user_id" validate:"required"`
	Username string `json:"username"`
}

// DisconnectPayload announces a removed connection.
type DisconnectPayload struct {
	UserID   string `json:"user_id" validate:"required"`
	Username string `json:"username"`
	Reason   string `json:"reason,omitempty"`
}

// HeartbeatPayload carries liveness pings and their acks.
type HeartbeatPayload struct {
	ClientTime string `json:"client_time,omitempty"`
	ServerTime string `json:"server_time,omitempty"`
}

// TaskPayload is shared by the whole task event family.
type TaskPayload struct {
	TaskID     string `json:"task_id" validate:"required"`
	ProjectID  string `json:"project_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Status     string `json:"status,omitempty"`
	AssigneeID string `json:"assignee_id,omitempty"`
	UpdatedBy  string `json:"updated_by,omitempty"`
}

// PresencePayload reports a user's availability state.
type PresencePayload struct {
	UserID   string `json:"user_id" validate:"required"`
	Username string `json:"username"`
	Status   string `json:"status,omitempty"`
	RoomID   string `json:"room_id,omitempty"`
}

// TypingPayload signals typing activity in a room.
type TypingPayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	RoomID   string `json:"room_id" validate:"required"`
	IsTyping bool   `json:"is_typing"`
}

// RoomMembershipPayload announces a join or leave.
type RoomMembershipPayload struct {
	UserID      string `json:"user_id" validate:"required"`
	Username    string `json:"username"`
	RoomID      string `json:"room_id" validate:"required"`
	MemberCount int    `json:"member_count,omitempty"`
}

// CollabPayload starts or ends a collaboration session on a document.
type CollabPayload struct {
	DocumentID   string   `json:"document_id" validate:"required"`
	UserID       string   `json:"user_id"`
	Participants []string `json:"participants,omitempty"`
}

// EditPayload carries one collaborative edit operation.
type EditPayload struct {
	DocumentID string `json:"document_id" validate:"required"`
	UserID     string `json:"user_id"`
	Operation  string `json:"operation,omitempty"`
	Content    string `json:"content,omitempty"`
	Position   int    `json:"position,omitempty"`
	Version    uint64 `json:"version,omitempty"`
}

// CursorPayload relays a cursor move within a document.
type CursorPayload struct {
	DocumentID string `json:"document_id" validate:"required"`
	UserID     string `json:"user_id"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
}

// NotificationPayload is a targeted or broadcast system notification.
type NotificationPayload struct {
	Title   string `json:"title" validate:"required"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// RoomNotificationPayload is a notification scoped to one room.
type RoomNotificationPayload struct {
	RoomID  string `json:"room_id" validate:"required"`
	Title   string `json:"title" validate:"required"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// DataSyncPayload asks clients to refetch an entity.
type DataSyncPayload struct {
	Entity   string `json:"entity" validate:"required"`
	EntityID string `json:"entity_id,omitempty"`
	Action   string `json:"action,omitempty"`
}

// CacheInvalidatePayload asks clients to drop cached keys.
type CacheInvalidatePayload struct {
	Keys  []string `json:"keys,omitempty"`
	Scope string   `json:"scope,omitempty"`
}

// ErrorPayload reports a protocol or authentication error to a client.
type ErrorPayload struct {
	Code    string `json:"code" validate:"required"`
	Message string `json:"message,omitempty"`
}

func (*ConnectPayload) isPayload()          {}
func (*DisconnectPayload) isPayload()       {}
func (*HeartbeatPayload) isPayload()        {}
func (*TaskPayload) isPayload()             {}
func (*PresencePayload) isPayload()         {}
func (*TypingPayload) isPayload()           {}
func (*RoomMembershipPayload) isPayload()   {}
func (*CollabPayload) isPayload()           {}
func (*EditPayload) isPayload()             {}
func (*CursorPayload) isPayload()           {}
func (*NotificationPayload) isPayload()     {}
func (*RoomNotificationPayload) isPayload() {}
func (*DataSyncPayload) isPayload()         {}
func (*CacheInvalidatePayload) isPayload()  {}
func (*ErrorPayload) isPayload()            {}

// payloadFactories maps each event type to a constructor for its payload
// struct. Membership in this map defines the closed type set.
var payloadFactories = map[Type]func() Payload{
	TypeConnect:            func() Payload { return &ConnectPayload{} },
	TypeDisconnect:         func() Payload { return &DisconnectPayload{} },
	TypeHeartbeat:          func() Payload { return &HeartbeatPayload{} },
	TypeTaskCreated:        func() Payload { return &TaskPayload{} },
	TypeTaskUpdated:        func() Payload { return &TaskPayload{} },
	TypeTaskDeleted:        func() Payload { return &TaskPayload{} },
	TypeTaskStatusChanged:  func() Payload { return &TaskPayload{} },
	TypeTaskAssigned:       func() Payload { return &TaskPayload{} },
	TypeUserOnline:         func() Payload { return &PresencePayload{} },
	TypeUserOffline:        func() Payload { return &PresencePayload{} },
	TypeUserTyping:         func() Payload { return &TypingPayload{} },
	TypeUserJoinRoom:       func() Payload { return &RoomMembershipPayload{} },
	TypeUserLeaveRoom:      func() Payload { return &RoomMembershipPayload{} },
	TypeCollabStart:        func() Payload { return &CollabPayload{} },
	TypeCollabEnd:          func() Payload { return &CollabPayload{} },
	TypeDocumentEdit:       func() Payload { return &EditPayload{} },
	TypeCursorPosition:     func() Payload { return &CursorPayload{} },
	TypeSystemNotification: func() Payload { return &NotificationPayload{} },
	TypeRoomNotification:   func() Payload { return &RoomNotificationPayload{} },
	TypeDataSync:           func() Payload { return &DataSyncPayload{} },
	TypeCacheInvalidate:    func() Payload { return &CacheInvalidatePayload{} },
	TypeError:              func() Payload { return &ErrorPayload{} },
	TypeAuthError:          func() Payload { return &ErrorPayload{} },
}

// decodePayload parses raw JSON into the payload struct registered for t
// and validates its required fields.
func decodePayload(t Type, raw json.RawMessage) (Payload, error) {
	factory, ok := payloadFactories[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	p := factory()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformedPayload, t, err)
		}
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformedPayload, t, err)
	}
	return p, nil
}

// matchesType reports whether p is the payload struct registered for t.
// Builders use this to refuse mismatched type/payload pairs.
func matchesType(t Type, p Payload) bool {
	factory, ok := payloadFactories[t]
	if !ok || p == nil {
		return false
	}
	return fmt.Sprintf("%T", factory()) == fmt.Sprintf("%T", p)
}
