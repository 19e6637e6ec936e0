// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package dispatch

import (
	"sync"
	"time"
)

type typingKey struct {
	userID string
	roomID string
}

type typingState struct {
	generation uint64
	lastSeen   time.Time
	timer      *time.Timer
}

// TypingTracker expires typing indicators. Each typing event bumps a
// per-(user, room) generation counter and re-arms a stop timer; the
// timer's stop callback fires only if no newer typing event arrived,
// which makes a rapid typing burst produce exactly one stop broadcast.
type TypingTracker struct {
	stopDelay  time.Duration
	idleWindow time.Duration

	mu     sync.Mutex
	states map[typingKey]*typingState
}

// NewTypingTracker creates a tracker. stopDelay is how long after the
// last typing event the automatic stop fires; idleWindow is the age past
// which abandoned state is pruned.
func NewTypingTracker(stopDelay, idleWindow time.Duration) *TypingTracker {
	return &TypingTracker{
		stopDelay:  stopDelay,
		idleWindow: idleWindow,
		states:     make(map[typingKey]*typingState),
	}
}

// Started records a typing event and arms the auto-stop. onStop runs
// once when the user goes quiet for the stop delay, unless Stopped is
// called first.
func (t *TypingTracker) Started(userID, roomID string, onStop func()) {
	key := typingKey{userID: userID, roomID: roomID}

	t.mu.Lock()
	t.pruneLocked()

	st, ok := t.states[key]
	if !ok {
		st = &typingState{}
		t.states[key] = st
	}
	st.generation++
	st.lastSeen = time.Now()
	gen := st.generation

	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(t.stopDelay, func() {
		if t.expire(key, gen) {
			onStop()
		}
	})
	t.mu.Unlock()
}

// Stopped clears the user's typing state for the room, cancelling any
// pending auto-stop. Returns false if the user was not marked typing,
// which callers use to suppress duplicate stop broadcasts.
func (t *TypingTracker) Stopped(userID, roomID string) bool {
	key := typingKey{userID: userID, roomID: roomID}

	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[key]
	if !ok {
		return false
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	delete(t.states, key)
	return true
}

// StoppedAll clears every room the user was typing in and returns the
// affected room ids. Used when a connection goes away mid-typing.
func (t *TypingTracker) StoppedAll(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var rooms []string
	for key, st := range t.states {
		if key.userID != userID {
			continue
		}
		if st.timer != nil {
			st.timer.Stop()
		}
		delete(t.states, key)
		rooms = append(rooms, key.roomID)
	}
	return rooms
}

// expire removes the state if its generation is still gen. A newer
// typing event bumps the generation and voids the pending timer's claim.
func (t *TypingTracker) expire(key typingKey, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[key]
	if !ok || st.generation != gen {
		return false
	}
	delete(t.states, key)
	return true
}

// pruneLocked drops states idle past the window. Their timers already
// fired or were stopped; this only catches callbacks that lost the
// generation race and left nothing behind to clean up.
func (t *TypingTracker) pruneLocked() {
	cutoff := time.Now().Add(-t.idleWindow)
	for key, st := range t.states {
		if st.lastSeen.Before(cutoff) {
			if st.timer != nil {
				st.timer.Stop()
			}
			delete(t.states, key)
		}
	}
}
