// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

// Package config loads Beacon's configuration with Koanf v2 using layered
// sources (highest priority wins):
//
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml, or BEACON_CONFIG_PATH)
//  3. Environment variables with the BEACON_ prefix
//
// Environment variable names map to koanf paths by splitting at the first
// underscore after the prefix: BEACON_HUB_HEARTBEAT_TTL -> hub.heartbeat_ttl.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/beacon/config.yaml",
	"/etc/beacon/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "BEACON_CONFIG_PATH"

// envPrefix namespaces Beacon's environment variables.
const envPrefix = "BEACON_"

// Config is the root configuration for the hub process.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Hub      HubConfig      `koanf:"hub"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// HubConfig tunes connection lifecycle and routing behavior.
type HubConfig struct {
	// HeartbeatInterval is the monitor's sweep period.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval" validate:"gt=0"`

	// HeartbeatTTL is how long a connection may stay silent before the
	// monitor evicts it.
	HeartbeatTTL time.Duration `koanf:"heartbeat_ttl" validate:"gt=0,gtefield=HeartbeatInterval"`

	// QueueBuffer bounds the broadcast queue's channel buffer.
	QueueBuffer int `koanf:"queue_buffer" validate:"gte=1"`

	// SendBuffer bounds each connection's outbound channel. A client that
	// cannot drain this buffer is treated as failed and evicted.
	SendBuffer int `koanf:"send_buffer" validate:"gte=1"`

	// TypingStopDelay is how long after a typing event the automatic
	// "stopped typing" broadcast fires.
	TypingStopDelay time.Duration `koanf:"typing_stop_delay" validate:"gt=0"`

	// TypingIdleWindow is the age past which typing state is stale.
	TypingIdleWindow time.Duration `koanf:"typing_idle_window" validate:"gt=0"`

	// MaxMessageSize caps inbound frame size in bytes.
	MaxMessageSize int64 `koanf:"max_message_size" validate:"gte=1024"`

	// InboundRate and InboundBurst throttle frames per connection.
	InboundRate  float64 `koanf:"inbound_rate" validate:"gt=0"`
	InboundBurst int     `koanf:"inbound_burst" validate:"gte=1"`
}

// SecurityConfig selects the handshake authentication mode.
type SecurityConfig struct {
	// AuthMode is "none" (non-empty identity check only) or "jwt".
	AuthMode string `koanf:"auth_mode" validate:"oneof=none jwt"`

	// JWTSecret signs and verifies handshake tokens in jwt mode.
	JWTSecret string `koanf:"jwt_secret" validate:"required_if=AuthMode jwt,omitempty,min=32"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8765,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Hub: HubConfig{
			HeartbeatInterval: 30 * time.Second,
			HeartbeatTTL:      120 * time.Second,
			QueueBuffer:       256,
			SendBuffer:        256,
			TypingStopDelay:   5 * time.Second,
			TypingIdleWindow:  10 * time.Second,
			MaxMessageSize:    512 * 1024,
			InboundRate:       50,
			InboundBurst:      100,
		},
		Security: SecurityConfig{
			AuthMode:  "none",
			JWTSecret: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// BEACON_-prefixed environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration's struct constraints.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
	}
	return err
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps BEACON_SECTION_SOME_KEY to section.some_key.
// Only the first underscore after the prefix becomes a separator so that
// multi-word keys keep their underscores.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if i := strings.Index(s, "_"); i > 0 {
		return s[:i] + "." + s[i+1:]
	}
	return s
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when supplied via environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env strings to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}
