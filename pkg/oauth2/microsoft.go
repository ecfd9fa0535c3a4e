package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const microsoftGraphMeURL = "https://graph.microsoft.com/v1.0/me"

// MicrosoftProvider implements Provider for Microsoft identity platform
// accounts via the common (multi-tenant) endpoint. Graph exposes no avatar
// URL in the /me payload, so Picture stays empty.
type MicrosoftProvider struct {
	config     *oauth2.Config
	httpClient *http.Client

	// Overridable for tests.
	meURL string
}

type microsoftUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

func NewMicrosoftProvider(clientID, clientSecret, redirectURL string) *MicrosoftProvider {
	return &MicrosoftProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile", "User.Read"},
			Endpoint:     microsoft.AzureADEndpoint("common"),
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		meURL:      microsoftGraphMeURL,
	}
}

func (ms *MicrosoftProvider) Name() string {
	return ProviderMicrosoft
}

func (ms *MicrosoftProvider) AuthCodeURL(state string, nonce string) string {
	return ms.config.AuthCodeURL(state)
}

func (ms *MicrosoftProvider) Exchange(ctx context.Context, code string) (*TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, ms.httpClient)

	token, err := ms.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("no access token in response")
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

func (ms *MicrosoftProvider) Identity(ctx context.Context, tokens *TokenSet, nonce string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ms.meURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := ms.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("user info request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var user microsoftUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	if user.ID == "" {
		return nil, fmt.Errorf("%w: empty graph id", ErrIdentityIncomplete)
	}

	// Personal accounts often have no Mail attribute; the UPN is the
	// routable address in that case, but it is a login name, not a
	// verified mailbox, so the verified bit stays false for it.
	email := user.Mail
	emailVerified := email != ""
	if email == "" {
		email = user.UserPrincipalName
	}

	return &Identity{
		ExternalID:    user.ID,
		Provider:      ProviderMicrosoft,
		Name:          user.DisplayName,
		Email:         email,
		EmailVerified: emailVerified,
	}, nil
}
