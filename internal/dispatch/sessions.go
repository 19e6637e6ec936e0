// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package dispatch

import (
	"sort"
	"sync"
)

type session struct {
	participants map[string]struct{}
	version      uint64
}

// SessionTracker tracks active collaboration sessions per document. A
// session exists while at least one participant is in it; the document's
// edit version increases monotonically across the session's lifetime.
type SessionTracker struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessionTracker creates an empty tracker.
func NewSessionTracker() *SessionTracker {
	return &SessionTracker{sessions: make(map[string]*session)}
}

// Join adds the user to the document's session, creating it on first
// join, and returns the participant list including the newcomer.
func (s *SessionTracker) Join(documentID, userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[documentID]
	if !ok {
		sess = &session{participants: make(map[string]struct{})}
		s.sessions[documentID] = sess
	}
	sess.participants[userID] = struct{}{}
	return participantsLocked(sess)
}

// Leave removes the user from the document's session. The session is
// deleted when its last participant leaves. Returns the remaining
// participants and whether the user was actually in the session.
func (s *SessionTracker) Leave(documentID, userID string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[documentID]
	if !ok {
		return nil, false
	}
	if _, member := sess.participants[userID]; !member {
		return participantsLocked(sess), false
	}
	delete(sess.participants, userID)
	if len(sess.participants) == 0 {
		delete(s.sessions, documentID)
		return nil, true
	}
	return participantsLocked(sess), true
}

// LeaveAll removes the user from every session and returns the affected
// document ids. Used when a connection goes away mid-session.
func (s *SessionTracker) LeaveAll(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var docs []string
	for documentID, sess := range s.sessions {
		if _, member := sess.participants[userID]; !member {
			continue
		}
		delete(sess.participants, userID)
		if len(sess.participants) == 0 {
			delete(s.sessions, documentID)
		}
		docs = append(docs, documentID)
	}
	sort.Strings(docs)
	return docs
}

// NextVersion bumps and returns the document's edit version. Edits on a
// document without an active session still get monotonic versions; the
// session is created implicitly.
func (s *SessionTracker) NextVersion(documentID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[documentID]
	if !ok {
		sess = &session{participants: make(map[string]struct{})}
		s.sessions[documentID] = sess
	}
	sess.version++
	return sess.version
}

// Participants returns the sorted participant list, or nil if no session
// exists for the document.
func (s *SessionTracker) Participants(documentID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[documentID]
	if !ok {
		return nil
	}
	return participantsLocked(sess)
}

func participantsLocked(sess *session) []string {
	out := make([]string, 0, len(sess.participants))
	for id := range sess.participants {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
