// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

// Package dispatch routes inbound client envelopes to registered
// handlers. The Dispatcher owns the type-to-handler table, refreshes the
// sender's heartbeat on every accepted frame, short-circuits heartbeat
// pings with an immediate ack, and isolates handler panics so one faulty
// handler cannot take down the read loop.
//
// The default handler set implements the collaboration semantics: task
// events fan out to project rooms, document edits relay to co-editors
// with a session version bump, typing indicators auto-expire, and collab
// start/end manage per-document rooms.
package dispatch
