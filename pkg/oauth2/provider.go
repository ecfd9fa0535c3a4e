package oauth2

import (
	"context"
	"time"
)

// Supported provider names.
const (
	ProviderGoogle    = "google"
	ProviderGithub    = "github"
	ProviderMicrosoft = "microsoft"
)

// Provider defines the base interface for OAuth2/OIDC authentication providers
type Provider interface {
	Name() string
	AuthCodeURL(state string, nonce string) string
	Exchange(ctx context.Context, code string) (*TokenSet, error)
	Identity(ctx context.Context, tokens *TokenSet, nonce string) (*Identity, error)
}

// Identity is the canonical user record derived from a provider payload.
// (Provider, ExternalID) uniquely identifies an account; the same email on
// two providers is still two accounts.
type Identity struct {
	ExternalID    string `json:"external_id"`
	Provider      string `json:"provider"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Picture       string `json:"picture,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// TokenSet represents the complete token response from providers.
// It lives only for the duration of a callback; nothing here is persisted.
type TokenSet struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	IDToken      string
	ExpiresAt    time.Time
}
