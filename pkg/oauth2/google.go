package oauth2

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// GoogleProvider implements Provider over Google's OIDC endpoints. The ID
// token is verified against Google's published keys, so the identity comes
// from a signed document rather than a bare userinfo response.
type GoogleProvider struct {
	config     *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	httpClient *http.Client
}

func NewGoogleProvider(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: clientID,
	})

	return &GoogleProvider{
		config:     config,
		verifier:   verifier,
		httpClient: httpClient,
	}, nil
}

func (g *GoogleProvider) Name() string {
	return ProviderGoogle
}

func (g *GoogleProvider) AuthCodeURL(state string, nonce string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oidc.Nonce(nonce),
	}
	return g.config.AuthCodeURL(state, opts...)
}

func (g *GoogleProvider) Exchange(ctx context.Context, code string) (*TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)

	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	tokens := &TokenSet{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		tokens.IDToken = idToken
	}
	return tokens, nil
}

func (g *GoogleProvider) Identity(ctx context.Context, tokens *TokenSet, nonce string) (*Identity, error) {
	if tokens.IDToken == "" {
		return nil, fmt.Errorf("no id_token in response")
	}

	// The verifier fetches Google's keys on demand; the bounded client
	// rides the context so that fetch cannot hang.
	idToken, err := g.verifier.Verify(oidc.ClientContext(ctx, g.httpClient), tokens.IDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	if idToken.Nonce != nonce {
		return nil, fmt.Errorf("nonce mismatch")
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	if idToken.Subject == "" {
		return nil, fmt.Errorf("%w: empty sub claim", ErrIdentityIncomplete)
	}

	return &Identity{
		ExternalID:    idToken.Subject,
		Provider:      ProviderGoogle,
		Name:          claims.Name,
		Email:         claims.Email,
		Picture:       claims.Picture,
		EmailVerified: claims.EmailVerified,
	}, nil
}
