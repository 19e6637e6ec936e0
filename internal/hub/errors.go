// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package hub

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when an operation names a user with no
	// live connection.
	ErrNotConnected = errors.New("user is not connected")

	// ErrRoomNotFound is returned when an operation names a room that
	// does not exist.
	ErrRoomNotFound = errors.New("room not found")

	// ErrQueueClosed is returned when enqueueing on a stopped broadcast
	// queue.
	ErrQueueClosed = errors.New("broadcast queue is closed")
)

// DuplicateRegistrationError reports that a user's prior connection could
// not be force-closed during a reconnect. The new connection is still
// admitted; the stale one is marked for eviction by the heartbeat
// monitor.
type DuplicateRegistrationError struct {
	UserID string
	Err    error
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("duplicate registration for user %q: failed to close prior connection: %v", e.UserID, e.Err)
}

func (e *DuplicateRegistrationError) Unwrap() error {
	return e.Err
}
