// Package auth carries the opaque credentials issued by the external identity
// provider and applies them to kernel handshakes and backend requests.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

// Environment variables read by FromEnv.
const (
	EnvUserID    = "NBCLIENT_USER_ID"
	EnvToken     = "NBCLIENT_TOKEN"
	EnvTokenFile = "NBCLIENT_TOKEN_FILE"
)

// Credentials identify the user. The token is never interpreted here.
type Credentials struct {
	UserID string
	Token  string // Bearer token; empty for unauthenticated local backends
}

// LoadCredentials builds credentials from a user ID and an optional token file.
func LoadCredentials(userID, tokenPath string) (Credentials, error) {
	if userID == "" {
		return Credentials{}, fmt.Errorf("user ID is required")
	}

	creds := Credentials{UserID: userID}
	if tokenPath == "" {
		return creds, nil
	}

	token, err := LoadToken(tokenPath)
	if err != nil {
		return Credentials{}, fmt.Errorf("load token: %w", err)
	}
	creds.Token = token
	return creds, nil
}

// LoadToken reads a bearer token from a file, trimming surrounding whitespace.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return token, nil
}

// FromEnv reads credentials from NBCLIENT_USER_ID and either NBCLIENT_TOKEN
// or NBCLIENT_TOKEN_FILE. The inline token wins when both are set.
func FromEnv() (Credentials, error) {
	userID := os.Getenv(EnvUserID)
	if userID == "" {
		return Credentials{}, fmt.Errorf("%s is not set", EnvUserID)
	}

	if token := os.Getenv(EnvToken); token != "" {
		return Credentials{UserID: userID, Token: token}, nil
	}
	return LoadCredentials(userID, os.Getenv(EnvTokenFile))
}

// Header returns the request headers for these credentials.
func (c Credentials) Header() http.Header {
	h := make(http.Header)
	c.Apply(h)
	return h
}

// Apply sets the Authorization header on h when a token is present.
func (c Credentials) Apply(h http.Header) {
	if c.Token != "" {
		h.Set("Authorization", "Bearer "+c.Token)
	}
}

// LogValue keeps the token out of logs.
func (c Credentials) LogValue() slog.Value {
	token := "none"
	if c.Token != "" {
		token = "redacted"
	}
	return slog.GroupValue(
		slog.String("user_id", c.UserID),
		slog.String("token", token),
	)
}
