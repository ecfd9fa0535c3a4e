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
	"golang.org/x/oauth2/github"
)

const (
	githubUserURL      = "https://api.github.com/user"
	githubUserEmailURL = "https://api.github.com/user/emails"
)

// GithubProvider implements Provider for GitHub OAuth2. GitHub has no OIDC
// support, so the nonce is ignored and identity comes from the REST API.
type GithubProvider struct {
	config     *oauth2.Config
	httpClient *http.Client

	// Overridable for tests.
	userURL  string
	emailURL string
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func NewGithubProvider(clientID, clientSecret, redirectURL string) *GithubProvider {
	return &GithubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		userURL:    githubUserURL,
		emailURL:   githubUserEmailURL,
	}
}

func (gh *GithubProvider) Name() string {
	return ProviderGithub
}

func (gh *GithubProvider) AuthCodeURL(state string, nonce string) string {
	return gh.config.AuthCodeURL(state)
}

func (gh *GithubProvider) Exchange(ctx context.Context, code string) (*TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, gh.httpClient)

	token, err := gh.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("no access token in response")
	}

	return &TokenSet{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}, nil
}

func (gh *GithubProvider) Identity(ctx context.Context, tokens *TokenSet, nonce string) (*Identity, error) {
	var user githubUser
	if err := gh.getJSON(ctx, gh.userURL, tokens.AccessToken, &user); err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}

	if user.ID == 0 {
		return nil, fmt.Errorf("%w: empty github id", ErrIdentityIncomplete)
	}

	email := user.Email
	emailVerified := false

	// The profile email is empty when the user keeps it private; the
	// emails endpoint still lists it under the user:email scope.
	if email == "" {
		var err error
		email, emailVerified, err = gh.primaryEmail(ctx, tokens.AccessToken)
		if err != nil {
			// Email is best effort, some accounts have none visible.
			email = ""
			emailVerified = false
		}
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return &Identity{
		ExternalID:    fmt.Sprintf("%d", user.ID),
		Provider:      ProviderGithub,
		Name:          name,
		Email:         email,
		Picture:       user.AvatarURL,
		EmailVerified: emailVerified,
	}, nil
}

func (gh *GithubProvider) primaryEmail(ctx context.Context, accessToken string) (string, bool, error) {
	var emails []githubEmail
	if err := gh.getJSON(ctx, gh.emailURL, accessToken, &emails); err != nil {
		return "", false, err
	}

	for _, e := range emails {
		if e.Primary {
			return e.Email, e.Verified, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, emails[0].Verified, nil
	}
	return "", false, errors.New("no email found")
}

func (gh *GithubProvider) getJSON(ctx context.Context, url, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := gh.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
