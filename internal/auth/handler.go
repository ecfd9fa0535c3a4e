package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"talkheal/pkg/oauth2"
	"talkheal/pkg/session"
)

const sessionCookieName = "talkheal_session"

type Handler struct {
	svc       *Service
	cookieTTL time.Duration
}

func NewHandler(svc *Service, cookieTTL time.Duration) *Handler {
	return &Handler{
		svc:       svc,
		cookieTTL: cookieTTL,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.GET("/providers", h.ProvidersHandler)
		auth.GET("/login/:provider", h.StartLoginHandler)
		auth.GET("/callback/:provider", h.CallbackHandler)
		auth.POST("/register", h.RegisterHandler)
		auth.POST("/login", h.LoginHandler)
		auth.POST("/guest", h.GuestHandler)
		auth.POST("/logout", h.LogoutHandler)
		auth.POST("/password/reset/request", h.RequestPasswordResetHandler)
		auth.POST("/password/reset", h.ResetPasswordHandler)
	}

	protected := r.Group("/auth")
	protected.Use(h.SessionMiddleware())
	{
		protected.GET("/me", h.MeHandler)
		protected.POST("/password", h.ChangePasswordHandler)
	}
}

// ProvidersHandler lists the configured OAuth providers
// @Summary List OAuth providers
// @Description Returns provider names available for /auth/login/{provider}
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{} "Providers"
// @Router /auth/providers [get]
func (h *Handler) ProvidersHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.svc.Providers()})
}

// StartLoginHandler starts an OAuth2 login flow
// @Summary Start OAuth2 login
// @Description Redirects the user to the provider authorization page
// @Tags auth
// @Param provider path string true "Provider name"
// @Success 302 {string} string "Redirect"
// @Failure 404 {object} map[string]string "Unknown provider"
// @Router /auth/login/{provider} [get]
func (h *Handler) StartLoginHandler(c *gin.Context) {
	url, err := h.svc.StartLogin(c.Param("provider"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// CallbackHandler handles the OAuth2 provider callback
// @Summary OAuth2 callback
// @Description Validates state, exchanges the code and creates a session
// @Tags auth
// @Produce json
// @Param provider path string true "Provider name"
// @Param code query string false "Authorization code"
// @Param state query string true "Anti-CSRF state"
// @Param error query string false "Provider error"
// @Success 200 {object} map[string]interface{} "Authenticated"
// @Failure 400 {object} map[string]string "Invalid state or denied"
// @Router /auth/callback/{provider} [get]
func (h *Handler) CallbackHandler(c *gin.Context) {
	query := CallbackQuery{
		Code:  c.Query("code"),
		State: c.Query("state"),
		Error: c.Query("error"),
	}

	sess, err := h.svc.HandleOAuthCallback(c.Request.Context(), c.Param("provider"), query)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSessionCookie(c, sess.Token)
	c.JSON(http.StatusOK, gin.H{"user": sess.Identity, "guest": sess.Guest})
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterHandler creates a credential account
// @Summary Register with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body registerRequest true "Registration"
// @Success 201 {object} map[string]interface{} "Registered"
// @Failure 409 {object} map[string]string "Email already registered"
// @Router /auth/register [post]
func (h *Handler) RegisterHandler(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sess, err := h.svc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSessionCookie(c, sess.Token)
	c.JSON(http.StatusCreated, gin.H{"user": sess.Identity, "guest": sess.Guest})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginHandler authenticates with email and password
// @Summary Credential login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "Credentials"
// @Success 200 {object} map[string]interface{} "Authenticated"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /auth/login [post]
func (h *Handler) LoginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sess, err := h.svc.LoginWithCredentials(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSessionCookie(c, sess.Token)
	c.JSON(http.StatusOK, gin.H{"user": sess.Identity, "guest": sess.Guest})
}

// GuestHandler issues an anonymous session
// @Summary Continue as guest
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{} "Guest session"
// @Router /auth/guest [post]
func (h *Handler) GuestHandler(c *gin.Context) {
	sess, err := h.svc.LoginAsGuest(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSessionCookie(c, sess.Token)
	c.JSON(http.StatusOK, gin.H{"user": sess.Identity, "guest": sess.Guest})
}

// LogoutHandler invalidates the session
// @Summary Logout
// @Description Invalidates the session and clears the cookie; idempotent
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string "Logged out"
// @Router /auth/logout [post]
func (h *Handler) LogoutHandler(c *gin.Context) {
	if token, err := c.Cookie(sessionCookieName); err == nil {
		_ = h.svc.Logout(c.Request.Context(), token)
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, "", -1, "/", "", true, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// MeHandler returns the authenticated user
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{} "User info"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /auth/me [get]
func (h *Handler) MeHandler(c *gin.Context) {
	sess := c.MustGet("session").(*session.Session)
	c.JSON(http.StatusOK, gin.H{
		"user":       sess.Identity,
		"guest":      sess.Guest,
		"created_at": sess.CreatedAt,
		"expires_at": sess.ExpiresAt,
	})
}

type changePasswordRequest struct {
	Current string `json:"current" binding:"required"`
	New     string `json:"new" binding:"required"`
}

// ChangePasswordHandler updates the password of a local account
// @Summary Change password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body changePasswordRequest true "Passwords"
// @Success 200 {object} map[string]string "Updated"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /auth/password [post]
func (h *Handler) ChangePasswordHandler(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, _ := c.Cookie(sessionCookieName)
	if err := h.svc.ChangePassword(c.Request.Context(), token, req.Current, req.New); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

type requestPasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// RequestPasswordResetHandler mails a reset token to a local account
// @Summary Request a password reset
// @Description Responds identically whether or not the email exists
// @Tags auth
// @Accept json
// @Produce json
// @Param request body requestPasswordResetRequest true "Account email"
// @Success 200 {object} map[string]string "Accepted"
// @Router /auth/password/reset/request [post]
func (h *Handler) RequestPasswordResetHandler(c *gin.Context) {
	var req requestPasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reset email sent if the account exists"})
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ResetPasswordHandler sets a new password using a mailed reset token
// @Summary Reset password
// @Description Requires the single-use token from the reset email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body resetPasswordRequest true "Reset token and new password"
// @Success 200 {object} map[string]string "Password reset"
// @Failure 400 {object} map[string]string "Invalid token or weak password"
// @Router /auth/password/reset [post]
func (h *Handler) ResetPasswordHandler(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password reset"})
}

// SessionMiddleware resolves the session cookie and aborts with 401 when
// it is missing, unknown or expired.
func (h *Handler) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookieName)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no session found"})
			c.Abort()
			return
		}

		sess, err := h.svc.CurrentSession(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			c.Abort()
			return
		}

		// The server-side window slid forward on this read; the cookie
		// max-age must follow or the browser drops it first.
		h.setSessionCookie(c, token)

		c.Set("session", sess)
		c.Next()
	}
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		sessionCookieName,
		token,
		int(h.cookieTTL.Seconds()),
		"/",
		"",
		true, // Secure: only HTTPS
		true, // HttpOnly: not accessible via JavaScript
	)
}

// respondError maps the error taxonomy onto HTTP responses. Messages stay
// neutral; internal detail never crosses this boundary.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, oauth2.ErrUnknownProvider):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
	case errors.Is(err, oauth2.ErrProviderDenied):
		c.JSON(http.StatusBadRequest, gin.H{"error": "login cancelled"})
	case errors.Is(err, oauth2.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
	case errors.Is(err, oauth2.ErrTokenExchange), errors.Is(err, oauth2.ErrUserInfoFetch):
		c.JSON(http.StatusBadGateway, gin.H{"error": "login failed, try again"})
	case errors.Is(err, oauth2.ErrIdentityIncomplete):
		c.JSON(http.StatusBadGateway, gin.H{"error": "login failed"})
	case errors.Is(err, ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidCredentials.Error()})
	case errors.Is(err, ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": ErrEmailTaken.Error()})
	case errors.Is(err, ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidResetToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidResetToken.Error()})
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
