// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

// Package hub owns the live state of the event-distribution core: the set
// of client connections keyed by user id, the room membership sets, the
// heartbeat monitor that evicts silent connections, and the broadcast
// queue that decouples host-application producers from delivery.
//
// # Structure
//
// The Hub is an explicit facade constructed once at process start; there
// is no package-level singleton. It wires together:
//
//   - ConnectionRegistry: at most one live connection per user id. A new
//     connect for an already-connected user force-closes the prior
//     connection before the new one is admitted.
//   - RoomRegistry: rooms are created lazily on first join and deleted by
//     the leave that empties them; a room with zero members never
//     persists.
//   - HeartbeatMonitor: a supervised sweep that disconnects any
//     connection whose last heartbeat is older than the TTL.
//   - BroadcastQueue: a FIFO queue on Watermill's in-process gochannel
//     Pub/Sub, drained by a single supervised consumer.
//
// # Concurrency
//
// Registry state is guarded by RWMutexes; every mutation is atomic with
// respect to concurrent readers. Public operations never hold a registry
// lock while invoking transports or other components, so eviction
// triggered from inside a room broadcast cannot deadlock.
//
// Delivery failure is handled in exactly one place: SendToUser. A failed
// transport write disconnects that user; other recipients of the same
// broadcast are unaffected.
package hub
