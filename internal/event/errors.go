// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package event

import "errors"

var (
	// ErrUnknownType is returned when a frame names an event type outside
	// the closed set.
	ErrUnknownType = errors.New("unknown event type")

	// ErrMalformedPayload is returned when a frame's data field does not
	// parse or validate against the payload shape for its type.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrMalformedEnvelope is returned when a frame is not a valid
	// envelope object at all.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrPayloadMismatch is returned by Builder when the supplied payload
	// struct is not the one registered for the event type.
	ErrPayloadMismatch = errors.New("payload does not match event type")
)
