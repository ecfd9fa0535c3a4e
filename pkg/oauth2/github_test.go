package oauth2

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGithubIdentity_PrivateEmailFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 7, "login": "carol", "name": "Carol"})
	})
	mux.HandleFunc("/emails", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"email": "old@x.com", "primary": false, "verified": true},
			{"email": "carol@x.com", "primary": true, "verified": true},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewGithubProvider("id", "secret", "http://localhost/cb")
	p.userURL = srv.URL + "/user"
	p.emailURL = srv.URL + "/emails"

	identity, err := p.Identity(context.Background(), &TokenSet{AccessToken: "tok"}, "")
	require.NoError(t, err)

	assert.Equal(t, "7", identity.ExternalID)
	assert.Equal(t, "Carol", identity.Name)
	assert.Equal(t, "carol@x.com", identity.Email)
	assert.True(t, identity.EmailVerified)
}

func TestGithubIdentity_LoginFallbackAndMissingEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 42, "login": "dave"})
	})
	mux.HandleFunc("/emails", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewGithubProvider("id", "secret", "http://localhost/cb")
	p.userURL = srv.URL + "/user"
	p.emailURL = srv.URL + "/emails"

	identity, err := p.Identity(context.Background(), &TokenSet{AccessToken: "tok"}, "")
	require.NoError(t, err)

	// Email is best effort; the login substitutes for a missing name.
	assert.Equal(t, "dave", identity.Name)
	assert.Empty(t, identity.Email)
	assert.False(t, identity.EmailVerified)
}

func TestGithubIdentity_MissingIDFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"login": "noid"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewGithubProvider("id", "secret", "http://localhost/cb")
	p.userURL = srv.URL + "/user"

	_, err := p.Identity(context.Background(), &TokenSet{AccessToken: "tok"}, "")
	assert.ErrorIs(t, err, ErrIdentityIncomplete)
}
