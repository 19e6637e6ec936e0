// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package server

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/beacon-hub/beacon/internal/event"
	"github.com/beacon-hub/beacon/internal/hub"
	"github.com/beacon-hub/beacon/internal/logging"
	"github.com/beacon-hub/beacon/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// errSendBufferFull trips the registry's eviction path when a client
// stops draining its outbound channel.
var errSendBufferFull = errors.New("send buffer full")

// client bridges one websocket connection and the hub. It implements
// hub.Transport: the registry writes envelopes through it, the write
// pump serializes them onto the wire, and the read pump feeds inbound
// frames to the dispatcher.
type client struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, sendBuffer int) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// WriteEnvelope queues the envelope for the write pump. It fails fast
// when the buffer is full instead of blocking the broadcaster; the
// registry treats that as a dead client.
func (c *client) WriteEnvelope(env *event.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errors.New("connection closed")
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close sends a close frame with the given code and tears the
// connection down. Safe to call more than once.
func (c *client) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(code, reason)
		deadline := time.Now().Add(writeWait)
		if werr := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); werr != nil {
			err = werr
		}
		if cerr := c.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

func (c *client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// writePump serializes queued envelopes onto the wire and keeps the
// connection alive with periodic pings. One pump per connection; it is
// the only goroutine that writes data frames.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Debug().Err(err).Msg("failed to set write deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound frames until the connection dies. Pongs and
// any decodable frame refresh liveness; frames beyond the rate limit are
// dropped with an error reply; undecodable frames get an error reply but
// do not close the connection.
func (s *Server) readPump(c *client, conn *hub.Connection) {
	userID := conn.UserID()
	defer func() {
		s.hub.Connections().Disconnect(userID, "connection closed")
		s.defaults.ConnectionClosed(userID)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(s.cfg.Hub.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		s.hub.Connections().UpdateHeartbeat(userID)
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	limiter := rate.NewLimiter(rate.Limit(s.cfg.Hub.InboundRate), s.cfg.Hub.InboundBurst)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Debug().Err(err).Str("user_id", userID).Msg("unexpected websocket close")
			}
			return
		}

		if !limiter.Allow() {
			s.sendError(c, userID, "rate_limited", "too many messages, slow down")
			continue
		}

		env, err := event.Decode(data)
		if err != nil {
			metrics.MalformedFrames.Inc()
			logging.Debug().
				Err(err).
				Str("user_id", userID).
				Msg("rejecting malformed frame")
			s.sendError(c, userID, "malformed_frame", err.Error())
			continue
		}

		s.dispatcher.Dispatch(conn, env)
	}
}

// sendError replies with an error envelope on a best-effort basis.
func (s *Server) sendError(c *client, userID, code, message string) {
	env := event.NewBuilder(event.TypeError).
		Payload(&event.ErrorPayload{Code: code, Message: message}).
		User(userID).
		MustBuild()
	if err := c.WriteEnvelope(env); err != nil {
		logging.Debug().Err(err).Str("user_id", userID).Msg("error reply write failed")
	}
}
