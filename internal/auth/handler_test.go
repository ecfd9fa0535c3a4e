package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"talkheal/pkg/oauth2"
)

func newTestRouter(t *testing.T, flow OAuthFlow, store *MockUserStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := newTestService(t, flow, store)
	handler := NewHandler(svc, time.Hour)

	r := gin.New()
	handler.RegisterRoutes(r)
	return r
}

func sessionCookie(t *testing.T, resp *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range resp.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestCallbackHandler_DeniedIsLoginCancelled(t *testing.T) {
	r := newTestRouter(t, &stubFlow{err: oauth2.ErrProviderDenied}, new(MockUserStore))

	req := httptest.NewRequest(http.MethodGet, "/auth/callback/github?error=access_denied&state=S123", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "login cancelled")
}

func TestCallbackHandler_InvalidStateStaysGeneric(t *testing.T) {
	r := newTestRouter(t, &stubFlow{err: oauth2.ErrInvalidState}, new(MockUserStore))

	req := httptest.NewRequest(http.MethodGet, "/auth/callback/github?code=abc&state=bogus", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "invalid state")
	// The detailed reason never reaches the response body.
	assert.NotContains(t, resp.Body.String(), "consumed")
	assert.NotContains(t, resp.Body.String(), "expired")
}

func TestGuestThenMe(t *testing.T) {
	r := newTestRouter(t, &stubFlow{}, new(MockUserStore))

	guestReq := httptest.NewRequest(http.MethodPost, "/auth/guest", nil)
	guestResp := httptest.NewRecorder()
	r.ServeHTTP(guestResp, guestReq)
	require.Equal(t, http.StatusOK, guestResp.Code)

	cookie := sessionCookie(t, guestResp)
	assert.True(t, cookie.HttpOnly)

	meReq := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	meReq.AddCookie(cookie)
	meResp := httptest.NewRecorder()
	r.ServeHTTP(meResp, meReq)

	assert.Equal(t, http.StatusOK, meResp.Code)
	assert.Contains(t, meResp.Body.String(), `"guest":true`)
}

func TestMeHandler_NoCookie(t *testing.T) {
	r := newTestRouter(t, &stubFlow{}, new(MockUserStore))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLoginHandler_InvalidCredentials(t *testing.T) {
	store := new(MockUserStore)
	store.On("GetLocalByEmail", mock.Anything, "a@x.com").Return(nil, ErrUserNotFound)
	r := newTestRouter(t, &stubFlow{}, store)

	body := strings.NewReader(`{"email":"a@x.com","password":"whatever"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Contains(t, resp.Body.String(), "invalid email or password")
}

func TestRegisterHandler_Conflict(t *testing.T) {
	store := new(MockUserStore)
	store.On("CreateLocal", mock.Anything, "Bob", "b@x.com", mock.AnythingOfType("string")).
		Return(nil, ErrEmailTaken)
	r := newTestRouter(t, &stubFlow{}, store)

	body := strings.NewReader(`{"name":"Bob","email":"b@x.com","password":"Sunflower#42"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestLogoutHandler_WithoutSession(t *testing.T) {
	r := newTestRouter(t, &stubFlow{}, new(MockUserStore))

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestResetPasswordHandler_RequiresMailedToken(t *testing.T) {
	store := new(MockUserStore)
	store.On("GetLocalByEmail", mock.Anything, "victim@x.com").
		Return(&UserRecord{ID: 7, Email: "victim@x.com", Provider: ProviderLocal}, nil)
	r := newTestRouter(t, &stubFlow{}, store)

	// An anonymous caller who only knows the email cannot overwrite the
	// stored hash.
	body := strings.NewReader(`{"token":"guessed","password":"Attacker#99"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/password/reset", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "invalid or expired reset token")
	store.AssertNotCalled(t, "UpdatePassword")

	// Supplying an email instead of a token does not work either.
	body = strings.NewReader(`{"email":"victim@x.com","password":"Attacker#99"}`)
	req = httptest.NewRequest(http.MethodPost, "/auth/password/reset", body)
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	store.AssertNotCalled(t, "UpdatePassword")
}

func TestRequestPasswordResetHandler_SameResponseForUnknownEmail(t *testing.T) {
	store := new(MockUserStore)
	store.On("GetLocalByEmail", mock.Anything, "ghost@x.com").
		Return(nil, ErrUserNotFound)
	r := newTestRouter(t, &stubFlow{}, store)

	body := strings.NewReader(`{"email":"ghost@x.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/password/reset/request", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "if the account exists")
}

func TestSessionMiddleware_RefreshesCookie(t *testing.T) {
	r := newTestRouter(t, &stubFlow{}, new(MockUserStore))

	guestReq := httptest.NewRequest(http.MethodPost, "/auth/guest", nil)
	guestResp := httptest.NewRecorder()
	r.ServeHTTP(guestResp, guestReq)
	require.Equal(t, http.StatusOK, guestResp.Code)
	cookie := sessionCookie(t, guestResp)

	meReq := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	meReq.AddCookie(cookie)
	meResp := httptest.NewRecorder()
	r.ServeHTTP(meResp, meReq)
	require.Equal(t, http.StatusOK, meResp.Code)

	// The server-side window slid on this read; the cookie slides with it.
	refreshed := sessionCookie(t, meResp)
	assert.Equal(t, cookie.Value, refreshed.Value)
	assert.Positive(t, refreshed.MaxAge)
}

func TestStartLoginHandler_Redirects(t *testing.T) {
	r := newTestRouter(t, &stubFlow{authURL: "https://github.com/login/oauth/authorize?state=S123", state: "S123"}, new(MockUserStore))

	req := httptest.NewRequest(http.MethodGet, "/auth/login/github", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusTemporaryRedirect, resp.Code)
	assert.Equal(t, "https://github.com/login/oauth/authorize?state=S123", resp.Header().Get("Location"))
}

func TestStartLoginHandler_UnknownProvider(t *testing.T) {
	r := newTestRouter(t, &stubFlow{err: oauth2.ErrUnknownProvider}, new(MockUserStore))

	req := httptest.NewRequest(http.MethodGet, "/auth/login/gitlab", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}
