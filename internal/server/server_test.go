// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/beacon-hub/beacon/internal/config"
	"github.com/beacon-hub/beacon/internal/event"
	"github.com/beacon-hub/beacon/internal/hub"
)

func testServerConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Hub: config.HubConfig{
			HeartbeatInterval: 30 * time.Second,
			HeartbeatTTL:      120 * time.Second,
			QueueBuffer:       64,
			SendBuffer:        64,
			TypingStopDelay:   5 * time.Second,
			TypingIdleWindow:  10 * time.Second,
			MaxMessageSize:    512 * 1024,
			InboundRate:       50,
			InboundBurst:      100,
		},
		Security: config.SecurityConfig{AuthMode: "none"},
		Logging:  config.LoggingConfig{Level: "info", Format: "console"},
	}
}

type testEnv struct {
	hub *hub.Hub
	srv *Server
	ts  *httptest.Server
}

func startTestServer(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	h, err := hub.New(cfg.Hub)
	if err != nil {
		t.Fatalf("hub.New failed: %v", err)
	}
	s, err := New(cfg, h)
	if err != nil {
		t.Fatalf("server.New failed: %v", err)
	}
	ts := httptest.NewServer(s.router())
	t.Cleanup(func() {
		ts.Close()
		h.Shutdown()
	})
	return &testEnv{hub: h, srv: s, ts: ts}
}

func (e *testEnv) wsURL(query string) string {
	return "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws?" + query
}

func dial(t *testing.T, e *testEnv, query string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.wsURL(query), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) *event.Envelope {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	env, err := event.Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v (frame: %s)", err, data)
	}
	return env
}

func TestWebSocket_ConnectAndWelcome(t *testing.T) {
	e := startTestServer(t, testServerConfig())
	conn := dial(t, e, "user_id=alice&username=Alice")

	welcome := readEnvelope(t, conn)
	if welcome.Type != event.TypeSystemNotification {
		t.Fatalf("expected welcome notification, got %s", welcome.Type)
	}
	p := welcome.Data.(*event.NotificationPayload)
	if !strings.Contains(p.Message, "Alice") {
		t.Errorf("welcome should name the user, got %q", p.Message)
	}

	waitForCount(t, e.hub, 1)
}

func TestWebSocket_ConnectAnnouncedToOthers(t *testing.T) {
	e := startTestServer(t, testServerConfig())
	alice := dial(t, e, "user_id=alice")
	readEnvelope(t, alice) // welcome

	waitForCount(t, e.hub, 1)
	_ = dial(t, e, "user_id=bob")

	announce := readEnvelope(t, alice)
	if announce.Type != event.TypeConnect {
		t.Fatalf("expected connect announcement, got %s", announce.Type)
	}
	if announce.Data.(*event.ConnectPayload).UserID != "bob" {
		t.Errorf("announcement should name bob, got %+v", announce.Data)
	}
}

func TestWebSocket_HeartbeatAck(t *testing.T) {
	e := startTestServer(t, testServerConfig())
	conn := dial(t, e, "user_id=alice")
	readEnvelope(t, conn) // welcome

	ping := event.NewBuilder(event.TypeHeartbeat).
		Payload(&event.HeartbeatPayload{ClientTime: "2026-09-01T10:00:00Z"}).
		MustBuild()
	data, err := ping.Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	ack := readEnvelope(t, conn)
	if ack.Type != event.TypeHeartbeat {
		t.Fatalf("expected heartbeat ack, got %s", ack.Type)
	}
	p := ack.Data.(*event.HeartbeatPayload)
	if p.ServerTime == "" || p.ClientTime != "2026-09-01T10:00:00Z" {
		t.Errorf("unexpected ack payload: %+v", p)
	}
}

func TestWebSocket_MalformedFrameGetsErrorReply(t *testing.T) {
	e := startTestServer(t, testServerConfig())
	conn := dial(t, e, "user_id=alice")
	readEnvelope(t, conn) // welcome

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"no_such_event","data":{}}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	reply := readEnvelope(t, conn)
	if reply.Type != event.TypeError {
		t.Fatalf("expected error envelope, got %s", reply.Type)
	}
	if reply.Data.(*event.ErrorPayload).Code != "malformed_frame" {
		t.Errorf("unexpected error code: %+v", reply.Data)
	}

	// The connection survives a malformed frame.
	if !e.hub.Connections().IsConnected("alice") {
		t.Error("malformed frame must not disconnect the client")
	}
}

func TestWebSocket_MissingUserIDRejected(t *testing.T) {
	e := startTestServer(t, testServerConfig())
	conn := dial(t, e, "username=Anonymous")

	reject := readEnvelope(t, conn)
	if reject.Type != event.TypeAuthError {
		t.Fatalf("expected auth_error, got %s", reject.Type)
	}

	// The close frame carries a policy-violation code.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !websocket.IsCloseError(err, hub.ClosePolicyViolation) {
		t.Errorf("expected close code %d, got %v (%T)", hub.ClosePolicyViolation, err, closeErr)
	}
	if e.hub.Connections().Count() != 0 {
		t.Error("rejected handshake must not register a connection")
	}
}

func TestWebSocket_JWTMode(t *testing.T) {
	cfg := testServerConfig()
	cfg.Security = config.SecurityConfig{AuthMode: "jwt", JWTSecret: testSecret}
	e := startTestServer(t, cfg)

	t.Run("valid token admits", func(t *testing.T) {
		token := signToken(t, testSecret, map[string]interface{}{
			"sub": "alice",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		conn := dial(t, e, "token="+token)
		welcome := readEnvelope(t, conn)
		if welcome.Type != event.TypeSystemNotification {
			t.Fatalf("expected welcome, got %s", welcome.Type)
		}
		waitForCount(t, e.hub, 1)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		conn := dial(t, e, "user_id=mallory")
		reject := readEnvelope(t, conn)
		if reject.Type != event.TypeAuthError {
			t.Fatalf("expected auth_error, got %s", reject.Type)
		}
	})
}

func TestWebSocket_ReplacementClosesOldSocket(t *testing.T) {
	e := startTestServer(t, testServerConfig())
	first := dial(t, e, "user_id=alice")
	readEnvelope(t, first) // welcome

	second := dial(t, e, "user_id=alice")
	readEnvelope(t, second) // welcome

	// The first socket receives a going-away close.
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := first.ReadMessage()
		if err == nil {
			continue // drain any frame sent before the close
		}
		if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
			t.Errorf("expected going-away close on the old socket, got %v", err)
		}
		break
	}

	waitForCount(t, e.hub, 1)
}

func TestRESTEndpoints(t *testing.T) {
	e := startTestServer(t, testServerConfig())
	conn := dial(t, e, "user_id=alice")
	readEnvelope(t, conn) // welcome
	waitForCount(t, e.hub, 1)
	e.hub.Rooms().Join("alice", "project_1", "")

	t.Run("healthz", func(t *testing.T) {
		var body map[string]interface{}
		getJSON(t, e.ts.URL+"/healthz", http.StatusOK, &body)
		if body["status"] != "ok" {
			t.Errorf("unexpected health body: %v", body)
		}
	})

	t.Run("stats", func(t *testing.T) {
		var stats hub.Stats
		getJSON(t, e.ts.URL+"/api/v1/stats", http.StatusOK, &stats)
		if stats.Connections != 1 || stats.Rooms != 1 {
			t.Errorf("unexpected stats: %+v", stats)
		}
	})

	t.Run("online users", func(t *testing.T) {
		var body struct {
			Users []hub.UserPresence `json:"users"`
			Count int                `json:"count"`
		}
		getJSON(t, e.ts.URL+"/api/v1/users/online", http.StatusOK, &body)
		if body.Count != 1 || body.Users[0].UserID != "alice" {
			t.Errorf("unexpected online users: %+v", body)
		}
	})

	t.Run("room info", func(t *testing.T) {
		var info hub.RoomInfo
		getJSON(t, e.ts.URL+"/api/v1/rooms/project_1", http.StatusOK, &info)
		if info.RoomID != "project_1" || len(info.Members) != 1 {
			t.Errorf("unexpected room info: %+v", info)
		}
	})

	t.Run("unknown room is 404", func(t *testing.T) {
		var body map[string]string
		getJSON(t, e.ts.URL+"/api/v1/rooms/nope", http.StatusNotFound, &body)
	})

	t.Run("metrics exposed", func(t *testing.T) {
		resp, err := http.Get(e.ts.URL + "/metrics")
		if err != nil {
			t.Fatalf("metrics request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200 from /metrics, got %d", resp.StatusCode)
		}
	})
}

func getJSON(t *testing.T, url string, wantStatus int, out interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: expected %d, got %d", url, wantStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s response: %v", url, err)
	}
}

func waitForCount(t *testing.T, h *hub.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Connections().Count() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d connections, have %d", n, h.Connections().Count())
}
