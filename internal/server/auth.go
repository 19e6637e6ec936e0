// Beacon - Real-Time Collaboration Event Hub
// Copyright 2026 Dan K. (beacon-hub)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beacon-hub/beacon

package server

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/beacon-hub/beacon/internal/config"
)

// Identity is the authenticated result of a handshake.
type Identity struct {
	UserID      string
	DisplayName string
}

// Handshake carries the client-supplied connection parameters.
type Handshake struct {
	UserID      string
	DisplayName string
	Token       string
	Metadata    map[string]string
}

// Authenticator validates a handshake and resolves the client identity.
type Authenticator interface {
	Authenticate(hs Handshake) (Identity, error)
}

var (
	ErrMissingUserID   = errors.New("user_id is required")
	ErrMissingToken    = errors.New("token is required")
	ErrInvalidToken    = errors.New("token is invalid")
	ErrSubjectMismatch = errors.New("token subject does not match user_id")
)

// NewAuthenticator selects the authenticator for the configured mode.
func NewAuthenticator(cfg config.SecurityConfig) (Authenticator, error) {
	switch cfg.AuthMode {
	case "none":
		return identityAuthenticator{}, nil
	case "jwt":
		return &jwtAuthenticator{secret: []byte(cfg.JWTSecret)}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}
}

// identityAuthenticator only requires a non-empty user id. Suitable for
// deployments behind a trusted proxy that injects identity.
type identityAuthenticator struct{}

func (identityAuthenticator) Authenticate(hs Handshake) (Identity, error) {
	if hs.UserID == "" {
		return Identity{}, ErrMissingUserID
	}
	name := hs.DisplayName
	if name == "" {
		name = hs.UserID
	}
	return Identity{UserID: hs.UserID, DisplayName: name}, nil
}

// jwtAuthenticator verifies an HS256 token whose subject is the user id.
type jwtAuthenticator struct {
	secret []byte
}

func (a *jwtAuthenticator) Authenticate(hs Handshake) (Identity, error) {
	if hs.Token == "" {
		return Identity{}, ErrMissingToken
	}

	token, err := jwt.Parse(hs.Token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	// An explicit user_id must agree with the token; absent, the token
	// subject is the identity.
	if hs.UserID != "" && hs.UserID != subject {
		return Identity{}, ErrSubjectMismatch
	}

	name := hs.DisplayName
	if name == "" {
		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if n, ok := claims["name"].(string); ok {
				name = n
			}
		}
	}
	if name == "" {
		name = subject
	}
	return Identity{UserID: subject, DisplayName: name}, nil
}
