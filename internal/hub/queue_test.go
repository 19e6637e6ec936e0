// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/beacon-hub/beacon/internal/event"
)

func startQueue(t *testing.T, h *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.queue.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("queue consumer did not stop")
		}
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func notification(title string) *event.Envelope {
	return event.NewBuilder(event.TypeSystemNotification).
		Payload(&event.NotificationPayload{Title: title}).
		MustBuild()
}

func TestQueue_DeliversToUser(t *testing.T) {
	h := testHub(t)
	startQueue(t, h)
	alice := connect(t, h, "alice")
	bob := connect(t, h, "bob")

	if err := h.queue.Enqueue(notification("hi alice"), TargetUser, "alice", ""); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	waitFor(t, "alice delivery", func() bool { return alice.received(event.TypeSystemNotification) == 2 }) // welcome + queued
	if bob.received(event.TypeSystemNotification) != 1 {                                              // welcome only
		t.Error("user-targeted item must not reach other users")
	}
}

func TestQueue_DeliversToRoomWithExclusion(t *testing.T) {
	h := testHub(t)
	startQueue(t, h)
	alice := connect(t, h, "alice")
	bob := connect(t, h, "bob")
	h.Rooms().Join("alice", "project_1", "")
	h.Rooms().Join("bob", "project_1", "")

	env := event.NewBuilder(event.TypeRoomNotification).
		Payload(&event.RoomNotificationPayload{RoomID: "project_1", Title: "update"}).
		Room("project_1").
		MustBuild()
	if err := h.queue.Enqueue(env, TargetRoom, "project_1", "alice"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	waitFor(t, "bob delivery", func() bool { return bob.received(event.TypeRoomNotification) == 1 })
	if alice.received(event.TypeRoomNotification) != 0 {
		t.Error("excluded user must not receive the room item")
	}
}

func TestQueue_FIFOOrder(t *testing.T) {
	h := testHub(t)
	alice := connect(t, h, "alice")

	// Enqueue before the consumer starts; nothing may be lost.
	for _, title := range []string{"first", "second", "third"} {
		if err := h.queue.Enqueue(notification(title), TargetUser, "alice", ""); err != nil {
			t.Fatalf("Enqueue(%s) failed: %v", title, err)
		}
	}
	startQueue(t, h)

	waitFor(t, "all deliveries", func() bool { return alice.received(event.TypeSystemNotification) == 4 }) // welcome + 3

	alice.mu.Lock()
	var titles []string
	for _, env := range alice.writes {
		if p, ok := env.Data.(*event.NotificationPayload); ok && p.Kind == "" {
			titles = append(titles, p.Title)
		}
	}
	alice.mu.Unlock()

	want := []string{"first", "second", "third"}
	if len(titles) != len(want) {
		t.Fatalf("expected %d queued notifications, got %v", len(want), titles)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s (FIFO violated)", i, want[i], titles[i])
		}
	}
}

func TestQueue_DepthTracksBacklog(t *testing.T) {
	h := testHub(t)
	connect(t, h, "alice")

	for i := 0; i < 3; i++ {
		if err := h.queue.Enqueue(notification("queued"), TargetUser, "alice", ""); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	if got := h.queue.Depth(); got != 3 {
		t.Errorf("expected depth 3 before consumer starts, got %d", got)
	}

	startQueue(t, h)
	waitFor(t, "drain", func() bool { return h.queue.Depth() == 0 })
}

func TestQueue_EnqueueAfterCloseFails(t *testing.T) {
	h := testHub(t)
	if err := h.queue.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	err := h.queue.Enqueue(notification("too late"), TargetAll, "", "")
	if !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
}
