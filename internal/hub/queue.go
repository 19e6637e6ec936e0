// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/beacon-hub/beacon/internal/event"
	"github.com/beacon-hub/beacon/internal/logging"
	"github.com/beacon-hub/beacon/internal/metrics"
)

// TargetKind selects the fan-out scope of a queued broadcast.
type TargetKind string

const (
	TargetUser TargetKind = "user"
	TargetRoom TargetKind = "room"
	TargetAll  TargetKind = "all"
)

const broadcastTopic = "beacon.broadcast"

// Metadata keys on queued messages.
const (
	metaTargetKind  = "target_kind"
	metaTargetID    = "target_id"
	metaExcludeUser = "exclude_user"
)

// BroadcastQueue decouples event producers from delivery. Producers
// enqueue and return immediately; a single consumer goroutine drains the
// queue in FIFO order and routes each envelope to the registries.
//
// Backed by an in-process watermill Pub/Sub. The subscription is opened
// at construction so items enqueued before Serve starts are buffered,
// not lost. Implements suture.Service.
type BroadcastQueue struct {
	pubsub *gochannel.GoChannel
	items  <-chan *message.Message

	conns *ConnectionRegistry
	rooms *RoomRegistry

	depth     atomic.Int64
	closeOnce sync.Once
}

// NewBroadcastQueue creates the queue with the given buffer size. It
// subscribes immediately; call Serve to start draining.
func NewBroadcastQueue(conns *ConnectionRegistry, rooms *RoomRegistry, buffer int) (*BroadcastQueue, error) {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(buffer)},
		newWatermillLogger(),
	)

	items, err := pubsub.Subscribe(context.Background(), broadcastTopic)
	if err != nil {
		return nil, fmt.Errorf("subscribe broadcast topic: %w", err)
	}

	return &BroadcastQueue{
		pubsub: pubsub,
		items:  items,
		conns:  conns,
		rooms:  rooms,
	}, nil
}

// Enqueue schedules one envelope for asynchronous delivery. targetID is
// the user id for TargetUser, the room id for TargetRoom, and ignored
// for TargetAll. excludeUser is skipped during room and all fan-outs.
func (q *BroadcastQueue) Enqueue(env *event.Envelope, kind TargetKind, targetID, excludeUser string) error {
	data, err := env.Encode()
	if err != nil {
		metrics.RecordDrop("encode_failed")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(metaTargetKind, string(kind))
	msg.Metadata.Set(metaTargetID, targetID)
	msg.Metadata.Set(metaExcludeUser, excludeUser)

	if err := q.pubsub.Publish(broadcastTopic, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrQueueClosed, err)
	}

	q.depth.Add(1)
	metrics.QueueDepth.Inc()
	metrics.QueueItems.WithLabelValues(string(kind)).Inc()
	return nil
}

// Serve drains the queue until the context is canceled or the queue is
// closed. Designed for suture supervision.
func (q *BroadcastQueue) Serve(ctx context.Context) error {
	logging.Info().Str("topic", broadcastTopic).Msg("broadcast queue consumer started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "broadcast-queue").Msg("broadcast queue consumer stopped")
			return ctx.Err()
		case msg, ok := <-q.items:
			if !ok {
				logging.Info().Msg("broadcast queue closed, consumer exiting")
				return nil
			}
			q.deliver(msg)
			msg.Ack()
		}
	}
}

// deliver routes one queued item to the registries by its target
// metadata. Malformed items are dropped with a log line; they cannot
// occur from Enqueue, only from a bug.
func (q *BroadcastQueue) deliver(msg *message.Message) {
	q.depth.Add(-1)
	metrics.QueueDepth.Dec()

	env, err := event.Decode(msg.Payload)
	if err != nil {
		logging.Error().Err(err).Str("message_uuid", msg.UUID).Msg("dropping undecodable queued broadcast")
		return
	}

	kind := TargetKind(msg.Metadata.Get(metaTargetKind))
	targetID := msg.Metadata.Get(metaTargetID)
	excludeUser := msg.Metadata.Get(metaExcludeUser)

	switch kind {
	case TargetUser:
		q.conns.SendToUser(targetID, env)
	case TargetRoom:
		q.rooms.BroadcastToRoom(targetID, env, excludeUser)
	case TargetAll:
		q.conns.BroadcastAll(env, excludeUser)
	default:
		logging.Error().
			Str("target_kind", string(kind)).
			Str("message_uuid", msg.UUID).
			Msg("dropping queued broadcast with unknown target kind")
	}
}

// Depth returns the number of queued items not yet delivered.
func (q *BroadcastQueue) Depth() int64 { return q.depth.Load() }

// Close shuts the underlying Pub/Sub down. Enqueue fails afterwards and
// the consumer exits once the buffered items are drained.
func (q *BroadcastQueue) Close() error {
	var err error
	q.closeOnce.Do(func() {
		err = q.pubsub.Close()
	})
	return err
}

func (q *BroadcastQueue) String() string { return "broadcast-queue" }
