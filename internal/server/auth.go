// Package server exposes the mail handler over HTTP with optional
// bearer-token authentication and TLS.
package server

import (
	"crypto/subtle"
	"fmt"
	"strings"
)

// Authenticator verifies request bearer tokens against a configured secret.
type Authenticator struct {
	token string
}

// NewAuthenticator creates an Authenticator with the given token.
// An empty token disables authentication.
func NewAuthenticator(token string) *Authenticator {
	return &Authenticator{token: token}
}

// Enabled returns true if a token is configured.
func (a *Authenticator) Enabled() bool {
	return a.token != ""
}

// Verify checks an Authorization header value of the form "Bearer <token>".
// Returns nil on success or an error describing the failure.
func (a *Authenticator) Verify(header string) error {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return fmt.Errorf("missing bearer token")
	}

	presented := strings.TrimPrefix(header, prefix)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(a.token)) != 1 {
		return fmt.Errorf("authentication failed")
	}

	return nil
}
