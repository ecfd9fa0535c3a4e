package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"talkheal/pkg/oauth2"
)

// ProviderGuest marks identities issued without any credential check.
const ProviderGuest = "guest"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// Session is the opaque current-user handle issued after any successful
// authentication. Identity is a snapshot taken at login; provider data can
// change without invalidating an active session.
type Session struct {
	Token      string          `json:"token"`
	Identity   oauth2.Identity `json:"identity"`
	Guest      bool            `json:"guest"`
	CreatedAt  time.Time       `json:"created_at"`
	LastSeenAt time.Time       `json:"last_seen_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// Store manages server-side sessions. Get refreshes the sliding window and
// extends expiry, bounded by the store's absolute maximum lifetime so a
// permanently active session still re-authenticates eventually.
type Store interface {
	Create(ctx context.Context, identity oauth2.Identity, guest bool) (*Session, error)
	Get(ctx context.Context, token string) (*Session, error)
	Invalidate(ctx context.Context, token string) error
	Close()
}

// Config carries the two session lifetimes.
type Config struct {
	// TTL is the sliding inactivity window.
	TTL time.Duration
	// MaxLifetime caps total session age from creation.
	MaxLifetime time.Duration
}

// newToken generates a session token. Session tokens are longer than state
// tokens and never share a generator call with them.
func newToken() (string, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GuestIdentity issues a scoped anonymous identity. Every call produces a
// fresh external id; guests are never persisted to the user store.
func GuestIdentity() oauth2.Identity {
	return oauth2.Identity{
		ExternalID: uuid.NewString(),
		Provider:   ProviderGuest,
		Name:       "Guest Healer",
	}
}

// expiry computes the next expiry for a session seen at now.
func (c Config) expiry(createdAt, now time.Time) time.Time {
	expires := now.Add(c.TTL)
	if limit := createdAt.Add(c.MaxLifetime); expires.After(limit) {
		expires = limit
	}
	return expires
}
