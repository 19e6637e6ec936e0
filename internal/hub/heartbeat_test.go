// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package hub

import (
	"context"
	"testing"
	"time"
)

func backdate(t *testing.T, h *Hub, userID string, age time.Duration) {
	t.Helper()
	conn, ok := h.Connections().Get(userID)
	if !ok {
		t.Fatalf("user %s not connected", userID)
	}
	conn.mu.Lock()
	conn.lastHeartbeat = time.Now().Add(-age)
	conn.mu.Unlock()
}

func TestSweep_EvictsExpiredOnly(t *testing.T) {
	h := testHub(t)
	stale := connect(t, h, "stale")
	connect(t, h, "fresh")
	backdate(t, h, "stale", 3*time.Minute)

	h.monitor.sweep()

	if h.Connections().IsConnected("stale") {
		t.Error("expired connection should be evicted")
	}
	if !h.Connections().IsConnected("fresh") {
		t.Error("fresh connection must survive the sweep")
	}
	if closed, code := stale.isClosed(); !closed || code != CloseNormal {
		t.Errorf("evicted transport should be closed normally, got closed=%v code=%d", closed, code)
	}
	if h.GetStats().HeartbeatEvictions != 1 {
		t.Errorf("expected 1 eviction counted, got %d", h.GetStats().HeartbeatEvictions)
	}
}

func TestSweep_EvictionLeavesRooms(t *testing.T) {
	h := testHub(t)
	connect(t, h, "stale")
	survivor := connect(t, h, "fresh")
	h.Rooms().Join("stale", "project_1", "")
	h.Rooms().Join("fresh", "project_1", "")
	backdate(t, h, "stale", 3*time.Minute)

	h.monitor.sweep()

	members := h.Rooms().Members("project_1")
	if len(members) != 1 || members[0] != "fresh" {
		t.Errorf("expected only fresh left in room, got %v", members)
	}
	// The survivor hears both the room leave and the disconnect.
	if survivor.received("user_leave_room") != 1 {
		t.Error("survivor should see the evicted user's room leave")
	}
	if survivor.received("disconnect") != 1 {
		t.Error("survivor should see the evicted user's disconnect")
	}
}

func TestSweep_RetriesStaleCloses(t *testing.T) {
	h := testHub(t)
	first := &fakeTransport{failClose: true}
	if _, err := h.Connections().Connect(first, "alice", "alice", nil); err != nil {
		t.Fatalf("first connect failed: %v", err)
	}
	// Replacement fails to close the old transport; it lands in the
	// stale set.
	if _, err := h.Connections().Connect(&fakeTransport{}, "alice", "alice", nil); err == nil {
		t.Fatal("expected duplicate registration error")
	}

	// The retry succeeds once the transport stops failing.
	first.mu.Lock()
	first.failClose = false
	first.mu.Unlock()
	h.monitor.sweep()

	if closed, code := first.isClosed(); !closed || code != CloseGoingAway {
		t.Errorf("stale transport should be closed on sweep, got closed=%v code=%d", closed, code)
	}

	h.Connections().mu.RLock()
	staleLeft := len(h.Connections().stale)
	h.Connections().mu.RUnlock()
	if staleLeft != 0 {
		t.Errorf("stale set should be empty after sweep, got %d", staleLeft)
	}
}

func TestMonitor_ServeStopsOnCancel(t *testing.T) {
	h := testHub(t)
	m := NewHeartbeatMonitor(h.conns, &h.counters, 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancel")
	}
}
