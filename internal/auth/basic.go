// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/ostium/internal/config"
)

// Operator verifies the static admin credential: a username plus a
// bcrypt password hash, configured out of band. Caller JWTs are never
// accepted on the admin surface.
type Operator struct {
	username     string
	passwordHash []byte
}

// NewOperator creates the admin credential verifier. The hash is
// validated up front so a malformed config fails at startup, not on
// the first login attempt.
func NewOperator(cfg config.AdminConfig) (*Operator, error) {
	if cfg.Username == "" {
		return nil, fmt.Errorf("admin username is required")
	}
	if cfg.PasswordHash == "" {
		return nil, fmt.Errorf("admin password hash is required")
	}
	if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
		return nil, fmt.Errorf("admin password hash is not a valid bcrypt hash: %w", err)
	}
	return &Operator{
		username:     cfg.Username,
		passwordHash: []byte(cfg.PasswordHash),
	}, nil
}

// ValidateHeader checks an Authorization header carrying Basic
// credentials. Comparison is constant time for the username and
// delegated to bcrypt for the password.
func (o *Operator) ValidateHeader(authHeader string) error {
	encoded, ok := strings.CutPrefix(authHeader, "Basic ")
	if !ok {
		return fmt.Errorf("authorization header must use the Basic scheme")
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("malformed basic credentials")
	}

	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return fmt.Errorf("malformed basic credentials")
	}
	return o.Validate(username, password)
}

// Validate checks a username/password pair.
func (o *Operator) Validate(username, password string) error {
	// Both comparisons always run so a bad username costs the same as
	// a bad password.
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(o.username)) == 1
	passwordMatch := bcrypt.CompareHashAndPassword(o.passwordHash, []byte(password)) == nil

	if !usernameMatch || !passwordMatch {
		return fmt.Errorf("invalid username or password")
	}
	return nil
}

// WWWAuthenticate is the challenge header value sent with 401
// responses on the admin surface.
func (o *Operator) WWWAuthenticate() string {
	return `Basic realm="Ostium Admin", charset="UTF-8"`
}
