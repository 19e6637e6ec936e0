// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package event

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestType_Valid(t *testing.T) {
	for _, typ := range Types {
		if !typ.Valid() {
			t.Errorf("expected %q to be valid", typ)
		}
	}

	for _, typ := range []Type{"", "task_exploded", "CONNECT"} {
		if typ.Valid() {
			t.Errorf("expected %q to be invalid", typ)
		}
	}
}

func TestType_Category(t *testing.T) {
	cases := []struct {
		typ  Type
		want Category
	}{
		{TypeConnect, CategoryConnection},
		{TypeHeartbeat, CategoryConnection},
		{TypeTaskAssigned, CategoryTask},
		{TypeUserTyping, CategoryPresence},
		{TypeDocumentEdit, CategoryCollaboration},
		{TypeRoomNotification, CategoryNotification},
		{TypeCacheInvalidate, CategorySync},
		{TypeAuthError, CategoryError},
	}
	for _, c := range cases {
		if got := c.typ.Category(); got != c.want {
			t.Errorf("%s: expected category %s, got %s", c.typ, c.want, got)
		}
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	env := NewBuilder(TypeTaskUpdated).
		Payload(&TaskPayload{TaskID: "t-1", ProjectID: "p-9", Title: "ship it", Status: "doing", UpdatedBy: "alice"}).
		User("alice").
		Room("project_p-9").
		Priority(PriorityHigh).
		RequireAck().
		MustBuild()

	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if got.Type != env.Type {
		t.Errorf("type changed: %s != %s", got.Type, env.Type)
	}
	if got.MessageID != env.MessageID {
		t.Errorf("message id changed: %s != %s", got.MessageID, env.MessageID)
	}
	if got.UserID != "alice" || got.RoomID != "project_p-9" {
		t.Errorf("addressing changed: user=%q room=%q", got.UserID, got.RoomID)
	}
	if got.Priority != PriorityHigh || !got.RequiresAck {
		t.Errorf("priority/ack changed: %s %v", got.Priority, got.RequiresAck)
	}
	if !got.Timestamp.Equal(env.Timestamp) {
		t.Errorf("timestamp changed: %s != %s", got.Timestamp, env.Timestamp)
	}

	task, ok := got.Data.(*TaskPayload)
	if !ok {
		t.Fatalf("expected *TaskPayload, got %T", got.Data)
	}
	if *task != *env.Data.(*TaskPayload) {
		t.Errorf("payload changed: %+v", task)
	}
}

func TestEnvelope_NullAddressingOnWire(t *testing.T) {
	env := NewBuilder(TypeSystemNotification).
		Payload(&NotificationPayload{Title: "maintenance"}).
		MustBuild()

	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	wire := string(data)
	if !strings.Contains(wire, `"user_id":null`) {
		t.Errorf("expected null user_id on wire, got %s", wire)
	}
	if !strings.Contains(wire, `"room_id":null`) {
		t.Errorf("expected null room_id on wire, got %s", wire)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.UserID != "" || got.RoomID != "" {
		t.Errorf("null addressing should decode to empty strings, got %q %q", got.UserID, got.RoomID)
	}
}

func TestDecode_Errors(t *testing.T) {
	cases := []struct {
		name string
		data string
		want error
	}{
		{"not json", `{{{`, ErrMalformedEnvelope},
		{"unknown type", `{"type":"task_exploded","data":{}}`, ErrUnknownType},
		{"missing required field", `{"type":"task_created","data":{"title":"no id"}}`, ErrMalformedPayload},
		{"wrong payload shape", `{"type":"task_created","data":"not an object"}`, ErrMalformedPayload},
		{"bad priority", `{"type":"heartbeat","data":{},"priority":"extreme"}`, ErrMalformedEnvelope},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Decode([]byte(c.data))
			if !errors.Is(err, c.want) {
				t.Errorf("expected %v, got %v", c.want, err)
			}
		})
	}
}

func TestDecode_DefaultsPriority(t *testing.T) {
	got, err := Decode([]byte(`{"type":"heartbeat","data":{}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Priority != PriorityNormal {
		t.Errorf("expected normal priority default, got %s", got.Priority)
	}
}

func TestBuilder_Defaults(t *testing.T) {
	before := time.Now().UTC()
	env := NewBuilder(TypeHeartbeat).Payload(&HeartbeatPayload{}).MustBuild()

	if env.MessageID == "" {
		t.Error("expected generated message id")
	}
	if env.Priority != PriorityNormal {
		t.Errorf("expected normal priority, got %s", env.Priority)
	}
	if env.Timestamp.Before(before) {
		t.Errorf("timestamp %s before builder creation %s", env.Timestamp, before)
	}
}

func TestBuilder_RejectsMismatchedPayload(t *testing.T) {
	_, err := NewBuilder(TypeTaskCreated).Payload(&HeartbeatPayload{}).Build()
	if !errors.Is(err, ErrPayloadMismatch) {
		t.Errorf("expected ErrPayloadMismatch, got %v", err)
	}

	_, err = NewBuilder(Type("bogus")).Payload(&HeartbeatPayload{}).Build()
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}

	_, err = NewBuilder(TypeTaskCreated).Build()
	if !errors.Is(err, ErrPayloadMismatch) {
		t.Errorf("expected ErrPayloadMismatch for nil payload, got %v", err)
	}
}

func TestEveryTypeHasPayloadFactory(t *testing.T) {
	for _, typ := range Types {
		factory, ok := payloadFactories[typ]
		if !ok {
			t.Errorf("type %s has no payload factory", typ)
			continue
		}
		if factory() == nil {
			t.Errorf("type %s factory returned nil", typ)
		}
	}
	if len(payloadFactories) != len(Types) {
		t.Errorf("factory map has %d entries, Types has %d", len(payloadFactories), len(Types))
	}
}
