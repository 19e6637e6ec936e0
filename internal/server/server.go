// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

// Package server exposes the hub over HTTP: the /ws websocket endpoint
// plus a small read-only introspection API, health and metrics. The
// Server runs as a suture service and shuts down gracefully.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beacon-hub/beacon/internal/config"
	"github.com/beacon-hub/beacon/internal/dispatch"
	"github.com/beacon-hub/beacon/internal/hub"
	"github.com/beacon-hub/beacon/internal/logging"
)

// Server is the HTTP/WebSocket front of the hub.
type Server struct {
	cfg        *config.Config
	hub        *hub.Hub
	dispatcher *dispatch.Dispatcher
	defaults   *dispatch.DefaultHandlers
	auth       Authenticator
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// New wires the server: dispatcher with the default handler set,
// authenticator per the security config, and the chi router.
func New(cfg *config.Config, h *hub.Hub) (*Server, error) {
	auth, err := NewAuthenticator(cfg.Security)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:  cfg,
		hub:  h,
		auth: auth,
	}
	s.dispatcher = dispatch.New(h)
	s.defaults = dispatch.RegisterDefaults(s.dispatcher, h, cfg.Hub)

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s, nil
}

// Dispatcher returns the inbound event dispatcher so hosts can register
// additional handlers before the server starts.
func (s *Server) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httprate.LimitByIP(s.cfg.Server.RateLimitReqs, s.cfg.Server.RateLimitWindow))
		api.Get("/stats", s.handleStats)
		api.Get("/users/online", s.handleOnlineUsers)
		api.Get("/rooms/{roomID}", s.handleRoomInfo)
	})

	return r
}

// checkOrigin mirrors the CORS origin list for websocket upgrades.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Serve runs the HTTP server until the context is canceled, then shuts
// it down gracefully within the configured timeout. Designed for suture
// supervision.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("http server shutdown failed, forcing close")
		_ = s.httpServer.Close()
	}
	logging.Info().Msg("http server stopped")
	return ctx.Err()
}

func (s *Server) String() string { return "http-server" }
