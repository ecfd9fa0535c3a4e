package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
)

// Stand-in for a real OAuth2 provider during local development. It
// issues a fixed access token from /oauth/token and serves profile
// payloads shaped like the GitHub REST API and Microsoft Graph, so the
// auth service can be pointed at it instead of the live providers.

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

type GithubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type GithubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

type GraphUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

const mockAccessToken = "mock-access-token"

func main() {
	// Default port
	port := "8082"

	// Check if port is provided as command line argument
	if len(os.Args) > 1 {
		port = os.Args[1]
	}

	http.HandleFunc("/oauth/authorize", AuthorizeHandler)
	http.HandleFunc("/oauth/token", TokenHandler)
	http.HandleFunc("/user", GithubUserHandler)
	http.HandleFunc("/user/emails", GithubEmailsHandler)
	http.HandleFunc("/v1.0/me", GraphMeHandler)

	addr := fmt.Sprintf(":%s", port)
	fmt.Printf("Mock OAuth Provider running on port %s...\n", port)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal(err)
	}
}

// AuthorizeHandler skips the consent screen and redirects straight back
// to the caller's redirect_uri with a canned authorization code.
func AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	redirect := r.URL.Query().Get("redirect_uri")
	if redirect == "" {
		http.Error(w, "missing redirect_uri", http.StatusBadRequest)
		return
	}
	target, err := url.Parse(redirect)
	if err != nil {
		http.Error(w, "bad redirect_uri", http.StatusBadRequest)
		return
	}
	q := target.Query()
	q.Set("code", "mock-auth-code")
	q.Set("state", r.URL.Query().Get("state"))
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func TokenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, TokenResponse{
		AccessToken: mockAccessToken,
		TokenType:   "bearer",
		Scope:       "read:user,user:email",
	})
}

func GithubUserHandler(w http.ResponseWriter, r *http.Request) {
	if !authorized(r) {
		http.Error(w, "Bad credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, GithubUser{
		ID:        4242,
		Login:     "mockuser",
		Name:      "Mock User",
		Email:     "",
		AvatarURL: "https://avatars.example.com/u/4242",
	})
}

func GithubEmailsHandler(w http.ResponseWriter, r *http.Request) {
	if !authorized(r) {
		http.Error(w, "Bad credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, []GithubEmail{
		{Email: "mockuser@example.com", Primary: true, Verified: true},
		{Email: "old@example.com", Primary: false, Verified: false},
	})
}

func GraphMeHandler(w http.ResponseWriter, r *http.Request) {
	if !authorized(r) {
		http.Error(w, "InvalidAuthenticationToken", http.StatusUnauthorized)
		return
	}
	writeJSON(w, GraphUser{
		ID:                "ms-mock-id-4242",
		DisplayName:       "Mock User",
		Mail:              "mockuser@example.com",
		UserPrincipalName: "mockuser@example.com",
	})
}

func authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+mockAccessToken ||
		r.Header.Get("Authorization") == "token "+mockAccessToken
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
