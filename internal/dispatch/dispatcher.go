// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package dispatch

import (
	"sync"
	"time"

	"github.com/beacon-hub/beacon/internal/event"
	"github.com/beacon-hub/beacon/internal/hub"
	"github.com/beacon-hub/beacon/internal/logging"
	"github.com/beacon-hub/beacon/internal/metrics"
)

// HandlerFunc processes one inbound envelope from sender. Handlers run
// sequentially on the sender's read loop; long work belongs behind the
// broadcast queue, not in a handler.
type HandlerFunc func(sender *hub.Connection, env *event.Envelope)

// Dispatcher routes inbound envelopes by event type.
type Dispatcher struct {
	hub *hub.Hub

	mu       sync.RWMutex
	handlers map[event.Type][]HandlerFunc
}

// New creates a dispatcher with an empty handler table. Use
// RegisterDefaults to install the standard collaboration handlers.
func New(h *hub.Hub) *Dispatcher {
	return &Dispatcher{
		hub:      h,
		handlers: make(map[event.Type][]HandlerFunc),
	}
}

// Register appends a handler for the given event type. Handlers run in
// registration order.
func (d *Dispatcher) Register(t event.Type, fn HandlerFunc) {
	d.mu.Lock()
	d.handlers[t] = append(d.handlers[t], fn)
	d.mu.Unlock()
}

// Dispatch processes one decoded inbound envelope. Any accepted frame
// counts as liveness, so the sender's heartbeat is refreshed before
// routing. Heartbeat pings are acked directly and never reach handlers.
func (d *Dispatcher) Dispatch(sender *hub.Connection, env *event.Envelope) {
	d.hub.Connections().UpdateHeartbeat(sender.UserID())
	d.hub.Counters().RecordReceived()
	metrics.MessagesReceived.WithLabelValues(string(env.Type.Category())).Inc()

	if env.Type == event.TypeHeartbeat {
		d.ackHeartbeat(sender, env)
		return
	}

	d.mu.RLock()
	handlers := d.handlers[env.Type]
	d.mu.RUnlock()

	if len(handlers) == 0 {
		logging.Debug().
			Str("type", string(env.Type)).
			Str("user_id", sender.UserID()).
			Msg("no handler registered for event type")
		return
	}

	start := time.Now()
	for _, fn := range handlers {
		d.run(fn, sender, env)
	}
	metrics.RecordDispatch(string(env.Type), time.Since(start))
}

// run invokes one handler with panic isolation. A panicking handler is
// logged and counted; the remaining handlers still run.
func (d *Dispatcher) run(fn HandlerFunc, sender *hub.Connection, env *event.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerFaults.WithLabelValues(string(env.Type)).Inc()
			logging.Error().
				Interface("panic", r).
				Str("type", string(env.Type)).
				Str("user_id", sender.UserID()).
				Str("message_id", env.MessageID).
				Msg("handler panicked")
		}
	}()
	fn(sender, env)
}

// ackHeartbeat answers a client ping with the server time, echoing the
// client's timestamp so it can measure round-trip latency.
func (d *Dispatcher) ackHeartbeat(sender *hub.Connection, env *event.Envelope) {
	ping, _ := env.Data.(*event.HeartbeatPayload)
	clientTime := ""
	if ping != nil {
		clientTime = ping.ClientTime
	}

	ack := event.NewBuilder(event.TypeHeartbeat).
		Payload(&event.HeartbeatPayload{
			ClientTime: clientTime,
			ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
		}).
		User(sender.UserID()).
		MustBuild()
	d.hub.Connections().SendToUser(sender.UserID(), ack)
}
