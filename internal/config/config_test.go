// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func loadInTempDir(t *testing.T) (*Config, error) {
	t.Helper()
	// Run away from any real config.yaml in the working directory.
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadInTempDir(t)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8765 {
		t.Errorf("expected default port 8765, got %d", cfg.Server.Port)
	}
	if cfg.Hub.HeartbeatInterval != 30*time.Second {
		t.Errorf("expected 30s heartbeat interval, got %s", cfg.Hub.HeartbeatInterval)
	}
	if cfg.Hub.HeartbeatTTL != 120*time.Second {
		t.Errorf("expected 120s heartbeat TTL, got %s", cfg.Hub.HeartbeatTTL)
	}
	if cfg.Security.AuthMode != "none" {
		t.Errorf("expected auth mode none, got %s", cfg.Security.AuthMode)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BEACON_SERVER_PORT", "9000")
	t.Setenv("BEACON_HUB_HEARTBEAT_TTL", "90s")
	t.Setenv("BEACON_LOGGING_LEVEL", "debug")
	t.Setenv("BEACON_SERVER_CORS_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := loadInTempDir(t)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("env port override lost, got %d", cfg.Server.Port)
	}
	if cfg.Hub.HeartbeatTTL != 90*time.Second {
		t.Errorf("env TTL override lost, got %s", cfg.Hub.HeartbeatTTL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("env level override lost, got %s", cfg.Logging.Level)
	}
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Errorf("comma-separated origins not split, got %v", cfg.Server.CORSOrigins)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beacon.yaml")
	content := []byte("server:\n  port: 9100\nhub:\n  queue_buffer: 512\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := loadInTempDir(t)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("file port override lost, got %d", cfg.Server.Port)
	}
	if cfg.Hub.QueueBuffer != 512 {
		t.Errorf("file queue buffer override lost, got %d", cfg.Hub.QueueBuffer)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"ttl below interval", func(c *Config) { c.Hub.HeartbeatTTL = time.Second }, true},
		{"jwt without secret", func(c *Config) { c.Security.AuthMode = "jwt" }, true},
		{"jwt short secret", func(c *Config) {
			c.Security.AuthMode = "jwt"
			c.Security.JWTSecret = "too-short"
		}, true},
		{"jwt with long secret", func(c *Config) {
			c.Security.AuthMode = "jwt"
			c.Security.JWTSecret = "0123456789abcdef0123456789abcdef"
		}, false},
		{"bad auth mode", func(c *Config) { c.Security.AuthMode = "basic" }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := defaultConfig()
			c.mutate(cfg)
			err := cfg.Validate()
			if c.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !c.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"BEACON_SERVER_PORT", "server.port"},
		{"BEACON_HUB_HEARTBEAT_TTL", "hub.heartbeat_ttl"},
		{"BEACON_SECURITY_JWT_SECRET", "security.jwt_secret"},
		{"BEACON_SERVER_CORS_ORIGINS", "server.cors_origins"},
	}
	for _, c := range cases {
		if got := envTransform(c.in); got != c.want {
			t.Errorf("envTransform(%s): expected %s, got %s", c.in, c.want, got)
		}
	}
}
