package auth

import (
	"context"
	"errors"
	"fmt"

	"talkheal/pkg/logger"
	"talkheal/pkg/oauth2"
	"talkheal/pkg/session"
)

// OAuthFlow is the slice of pkg/oauth2 the service depends on.
type OAuthFlow interface {
	AuthURL(provider string) (url string, state string, err error)
	HandleCallback(ctx context.Context, provider, code, state, errParam string) (*oauth2.Identity, error)
}

// CallbackQuery carries the provider's redirect query parameters.
type CallbackQuery struct {
	Code  string
	State string
	Error string
}

// Service is the inbound authentication surface. Credential login, OAuth
// callbacks and guest access all terminate here by handing a canonical
// identity to the session store.
type Service struct {
	flow      OAuthFlow
	sessions  session.Store
	auth      *Authenticator
	users     UserStore
	resets    *ResetTokenManager
	mailer    Mailer
	providers []string
	log       logger.Client
}

func NewService(flow OAuthFlow, sessions session.Store, authenticator *Authenticator, users UserStore, resets *ResetTokenManager, mailer Mailer, providers []string, log logger.Client) *Service {
	return &Service{
		flow:      flow,
		sessions:  sessions,
		auth:      authenticator,
		users:     users,
		resets:    resets,
		mailer:    mailer,
		providers: providers,
		log:       log,
	}
}

// Providers lists the OAuth providers available for login.
func (s *Service) Providers() []string {
	return s.providers
}

// StartLogin returns the provider redirect URL for an OAuth login.
func (s *Service) StartLogin(provider string) (string, error) {
	url, _, err := s.flow.AuthURL(provider)
	if err != nil {
		return "", err
	}
	s.log.Debug("oauth2 login started", logger.Field{Key: "provider", Value: provider})
	return url, nil
}

// HandleOAuthCallback resolves a provider callback into a session. The
// derived profile is upserted into the user store so repeated logins keep
// one record per (provider, external id).
func (s *Service) HandleOAuthCallback(ctx context.Context, provider string, query CallbackQuery) (*session.Session, error) {
	identity, err := s.flow.HandleCallback(ctx, provider, query.Code, query.State, query.Error)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.UpsertOAuth(ctx, *identity); err != nil {
		return nil, fmt.Errorf("failed to persist oauth profile: %w", err)
	}

	sess, err := s.sessions.Create(ctx, *identity, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.log.Info("user authenticated",
		logger.Field{Key: "provider", Value: provider},
		logger.Field{Key: "external_id", Value: identity.ExternalID},
	)
	return sess, nil
}

// LoginWithCredentials authenticates an email/password pair.
func (s *Service) LoginWithCredentials(ctx context.Context, email, password string) (*session.Session, error) {
	identity, err := s.auth.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Create(ctx, *identity, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.log.Info("user authenticated",
		logger.Field{Key: "provider", Value: ProviderLocal},
		logger.Field{Key: "external_id", Value: identity.ExternalID},
	)
	return sess, nil
}

// Register creates a credential account and logs it straight in.
func (s *Service) Register(ctx context.Context, name, email, password string) (*session.Session, error) {
	identity, err := s.auth.Register(ctx, name, email, password)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Create(ctx, *identity, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.log.Info("user registered", logger.Field{Key: "external_id", Value: identity.ExternalID})
	return sess, nil
}

// LoginAsGuest issues an anonymous session. No credential check, always
// succeeds; downstream features decide what guests may do.
func (s *Service) LoginAsGuest(ctx context.Context) (*session.Session, error) {
	identity := session.GuestIdentity()

	sess, err := s.sessions.Create(ctx, identity, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.log.Info("guest session issued", logger.Field{Key: "external_id", Value: identity.ExternalID})
	return sess, nil
}

// CurrentSession resolves a session token, refreshing its sliding window.
func (s *Service) CurrentSession(ctx context.Context, token string) (*session.Session, error) {
	return s.sessions.Get(ctx, token)
}

// Logout invalidates the session. Idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Invalidate(ctx, token)
}

// ChangePassword updates the password of the logged-in local account.
func (s *Service) ChangePassword(ctx context.Context, token, current, next string) error {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return err
	}
	if sess.Guest || sess.Identity.Provider != ProviderLocal {
		return ErrInvalidCredentials
	}
	return s.auth.ChangePassword(ctx, sess.Identity.Email, current, next)
}

// RequestPasswordReset mails a single-use reset token to a local
// account. The outcome is identical for unknown emails and delivery
// failures, so the endpoint cannot be used to probe accounts; the real
// cause goes to the log only.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if _, err := s.users.GetLocalByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.log.Warn("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to look up account: %w", err)
	}

	token, err := s.resets.Issue(email)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, email, token); err != nil {
		s.log.Error("failed to deliver reset token", logger.Err(err))
		return nil
	}

	s.log.Info("password reset token issued")
	return nil
}

// ResetPassword sets a new password for the account a reset token was
// mailed to. The token is the proof of ownership; it is retired whether
// or not the update succeeds afterwards.
func (s *Service) ResetPassword(ctx context.Context, token, next string) error {
	if err := ValidatePassword(next); err != nil {
		return err
	}

	email, err := s.resets.Consume(token)
	if err != nil {
		return err
	}

	if err := s.auth.ResetPassword(ctx, email, next); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	return nil
}
