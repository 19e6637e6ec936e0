// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package event

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Envelope is the typed message wrapper exchanged between the hub and
// connected clients. Treat an envelope as immutable once built: routing
// code fans the same envelope out to many recipients.
type Envelope struct {
	Type        Type
	Data        Payload
	Timestamp   time.Time
	MessageID   string
	UserID      string
	RoomID      string
	Priority    Priority
	RequiresAck bool
}

// envelopeWire mirrors the exact JSON field layout. Absent user and room
// ids serialize as null, matching the protocol.
type envelopeWire struct {
	Type        Type            `json:"type"`
	Data        json.RawMessage `json:"data"`
	Timestamp   time.Time       `json:"timestamp"`
	MessageID   string          `json:"message_id"`
	UserID      *string         `json:"user_id"`
	RoomID      *string         `json:"room_id"`
	Priority    Priority        `json:"priority"`
	RequiresAck bool            `json:"requires_ack"`
}

// Encode serializes the envelope to its wire form.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", e.Type, err)
	}

	wire := envelopeWire{
		Type:        e.Type,
		Data:        data,
		Timestamp:   e.Timestamp,
		MessageID:   e.MessageID,
		Priority:    e.Priority,
		RequiresAck: e.RequiresAck,
	}
	if e.UserID != "" {
		wire.UserID = &e.UserID
	}
	if e.RoomID != "" {
		wire.RoomID = &e.RoomID
	}

	return json.Marshal(wire)
}

// Decode parses a wire frame into an envelope, rejecting unknown event
// types and payloads that fail shape validation.
func Decode(b []byte) (*Envelope, error) {
	var wire envelopeWire
	if err := json.Unmarshal(b, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	payload, err := decodePayload(wire.Type, wire.Data)
	if err != nil {
		return nil, err
	}

	priority := wire.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: priority %q", ErrMalformedEnvelope, wire.Priority)
	}

	env := &Envelope{
		Type:        wire.Type,
		Data:        payload,
		Timestamp:   wire.Timestamp,
		MessageID:   wire.MessageID,
		Priority:    priority,
		RequiresAck: wire.RequiresAck,
	}
	if wire.UserID != nil {
		env.UserID = *wire.UserID
	}
	if wire.RoomID != nil {
		env.RoomID = *wire.RoomID
	}
	return env, nil
}

// Builder constructs envelopes. One builder produces one envelope; the
// zero-value fields default to a fresh UUID message id, the current UTC
// time and normal priority.
type Builder struct {
	env Envelope
}

// NewBuilder starts an envelope of the given type.
func NewBuilder(t Type) *Builder {
	return &Builder{env: Envelope{
		Type:      t,
		Timestamp: time.Now().UTC(),
		MessageID: uuid.NewString(),
		Priority:  PriorityNormal,
	}}
}

// Payload sets the typed payload. It must match the event type.
func (b *Builder) Payload(p Payload) *Builder {
	b.env.Data = p
	return b
}

// User sets the sender or target user id.
func (b *Builder) User(userID string) *Builder {
	b.env.UserID = userID
	return b
}

// Room sets the fan-out target room id.
func (b *Builder) Room(roomID string) *Builder {
	b.env.RoomID = roomID
	return b
}

// Priority overrides the default normal priority.
func (b *Builder) Priority(p Priority) *Builder {
	b.env.Priority = p
	return b
}

// RequireAck marks the envelope as requiring a client acknowledgment.
func (b *Builder) RequireAck() *Builder {
	b.env.RequiresAck = true
	return b
}

// Build finalizes the envelope. It fails if the event type is outside the
// closed set or the payload struct does not belong to it.
func (b *Builder) Build() (*Envelope, error) {
	if !b.env.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, b.env.Type)
	}
	if !matchesType(b.env.Type, b.env.Data) {
		return nil, fmt.Errorf("%w: %T for %s", ErrPayloadMismatch, b.env.Data, b.env.Type)
	}
	env := b.env
	return &env, nil
}

// MustBuild is Build for envelopes assembled entirely from trusted
// in-process values. It panics on builder misuse, which is a programming
// error, never a runtime condition.
func (b *Builder) MustBuild() *Envelope {
	env, err := b.Build()
	if err != nil {
		panic(err)
	}
	return env
}
