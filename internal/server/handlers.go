// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/beacon-hub/beacon/internal/event"
	"github.com/beacon-hub/beacon/internal/hub"
	"github.com/beacon-hub/beacon/internal/logging"
)

// metaQueryPrefix marks handshake query params carried into connection
// metadata, e.g. ?meta.client=web becomes {"client": "web"}.
const metaQueryPrefix = "meta."

// handleWebSocket upgrades the connection, authenticates the handshake
// and hands the socket to the hub. Authentication failures close the
// socket with a policy-violation code after an auth_error envelope so
// browser clients can distinguish rejection from network failure.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	hs := parseHandshake(r)
	identity, err := s.auth.Authenticate(hs)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Str("user_id", hs.UserID).
			Msg("handshake authentication failed")
		rejectSocket(conn, err.Error())
		return
	}

	c := newClient(conn, s.cfg.Hub.SendBuffer)
	go c.writePump()

	registered, err := s.hub.Connections().Connect(c, identity.UserID, identity.DisplayName, hs.Metadata)
	if err != nil {
		// The previous connection's close failed; the new one is live and
		// the monitor cleans the stale one up.
		logging.Warn().Err(err).Str("user_id", identity.UserID).Msg("duplicate registration")
	}

	s.readPump(c, registered)
}

// parseHandshake extracts connection parameters from the request query.
func parseHandshake(r *http.Request) Handshake {
	q := r.URL.Query()
	hs := Handshake{
		UserID:      q.Get("user_id"),
		DisplayName: q.Get("username"),
		Token:       q.Get("token"),
		Metadata:    make(map[string]string),
	}
	if hs.Token == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			hs.Token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	for key, values := range q {
		if strings.HasPrefix(key, metaQueryPrefix) && len(values) > 0 {
			hs.Metadata[strings.TrimPrefix(key, metaQueryPrefix)] = values[0]
		}
	}
	return hs
}

// rejectSocket sends an auth_error envelope and closes the raw socket.
// The connection never reaches the registry.
func rejectSocket(conn *websocket.Conn, reason string) {
	env := event.NewBuilder(event.TypeAuthError).
		Payload(&event.ErrorPayload{Code: "auth_failed", Message: reason}).
		MustBuild()
	if data, err := env.Encode(); err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
	msg := websocket.FormatCloseMessage(hub.ClosePolicyViolation, "authentication failed")
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	_ = conn.Close()
}

// handleStats returns the hub's observability snapshot.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.GetStats())
}

// handleOnlineUsers lists connected users, optionally scoped to one room
// via ?room=.
func (s *Server) handleOnlineUsers(w http.ResponseWriter, r *http.Request) {
	users := s.hub.GetOnlineUsers(r.URL.Query().Get("room"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// handleRoomInfo returns one room's membership view.
func (s *Server) handleRoomInfo(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	info, ok := s.hub.GetRoomInfo(roomID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": hub.ErrRoomNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleHealthz is the liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"connections": s.hub.Connections().Count(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug().Err(err).Msg("response encode failed")
	}
}
