// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

// Package main is the entry point for the Beacon server.
//
// Beacon is a self-hosted real-time event hub for collaborative
// applications. Clients connect over WebSocket, join rooms, and exchange
// typed events: task updates, presence, typing indicators and
// collaborative document edits. Beacon routes every event to the right
// set of connections and evicts clients that stop heartbeating.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, optional YAML file, BEACON_ env vars (Koanf v2)
//  2. Logging: global zerolog pipeline
//  3. Hub: connection registry, room registry, heartbeat monitor, broadcast queue
//  4. HTTP server: /ws endpoint, introspection API, health and metrics
//  5. Supervision tree: suture supervisors restart failed services
//
// # Configuration
//
// Environment variables use the BEACON_ prefix, split at the first
// underscore into section and key:
//
//	export BEACON_SERVER_PORT=8765
//	export BEACON_HUB_HEARTBEAT_TTL=120s
//	export BEACON_SECURITY_AUTH_MODE=jwt
//	export BEACON_SECURITY_JWT_SECRET=$(openssl rand -base64 32)
//	./beacon
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP listener stops
// accepting connections, in-flight requests finish within the shutdown
// timeout, every WebSocket client receives a close frame, and the
// broadcast queue drains.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/beacon-hub/beacon/internal/config"
	"github.com/beacon-hub/beacon/internal/hub"
	"github.com/beacon-hub/beacon/internal/logging"
	"github.com/beacon-hub/beacon/internal/server"
	"github.com/beacon-hub/beacon/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init(logging.Config{Level: "info", Format: "json"})
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("auth_mode", cfg.Security.AuthMode).
		Msg("starting beacon")

	h, err := hub.New(cfg.Hub)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize hub")
	}

	srv, err := server.New(cfg, h)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize server")
	}

	tree := supervisor.NewTree(supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	for _, svc := range h.Services() {
		tree.AddMessagingService(svc)
	}
	tree.AddAPIService(srv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("shutdown signal received")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("supervisor tree stopped with error")
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop in time")
		}
	}

	h.Shutdown()
	logging.Info().Msg("beacon stopped")
	os.Exit(0)
}
