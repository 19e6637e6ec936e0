// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

// Package event defines the typed message envelope exchanged between the
// hub and connected clients.
//
// The event type set is closed: every wire message carries one of the
// Type constants, and its data field decodes into the payload struct
// registered for that type. Unknown types and malformed payloads are
// rejected at decode time, so downstream handlers never see a frame they
// cannot interpret.
//
// Envelopes are immutable once built. Use Builder to construct one:
//
//	env, err := event.NewBuilder(event.TypeTaskUpdated).
//	    Payload(&event.TaskPayload{TaskID: "t1", ProjectID: "proj1"}).
//	    Room("proj1").
//	    Priority(event.PriorityHigh).
//	    Build()
//
// The wire format is a JSON object with the fields type, data, timestamp,
// message_id, user_id, room_id, priority and requires_ack. Absent user and
// room ids are encoded as null.
package event
