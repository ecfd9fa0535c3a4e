package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"talkheal/pkg/oauth2"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	// Returning one error for both keeps account enumeration blind.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is a registration conflict, safe to disclose.
	ErrEmailTaken = errors.New("email already registered")
)

// dummyHash is a bcrypt hash of an unguessable throwaway value. It is
// compared against when no credential record exists so that the
// unknown-email path costs the same as a real mismatch.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Authenticator validates email/password pairs against stored bcrypt
// hashes. Plaintext passwords never leave this type and are never logged.
type Authenticator struct {
	users UserStore
}

func NewAuthenticator(users UserStore) *Authenticator {
	return &Authenticator{users: users}
}

// Register creates a local credential account. The password is checked for
// strength and bcrypt-hashed before it touches storage.
func (a *Authenticator) Register(ctx context.Context, name, email, password string) (*oauth2.Identity, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	record, err := a.users.CreateLocal(ctx, name, email, string(hash))
	if err != nil {
		return nil, err
	}
	return localIdentity(record), nil
}

// Authenticate verifies an email/password pair. Unknown accounts and hash
// mismatches produce the identical error and comparable latency.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*oauth2.Identity, error) {
	record, err := a.users.GetLocalByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if record.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return localIdentity(record), nil
}

// ChangePassword re-authenticates with the current password before
// storing a new hash.
func (a *Authenticator) ChangePassword(ctx context.Context, email, current, next string) error {
	if _, err := a.Authenticate(ctx, email, current); err != nil {
		return err
	}
	if err := ValidatePassword(next); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return a.users.UpdatePassword(ctx, email, string(hash))
}

// ResetPassword replaces the stored hash without the current password.
// Callers must have verified ownership of the email through another
// channel before invoking it. ErrUserNotFound propagates so the caller
// can decide how much to disclose.
func (a *Authenticator) ResetPassword(ctx context.Context, email, next string) error {
	if err := ValidatePassword(next); err != nil {
		return err
	}
	if _, err := a.users.GetLocalByEmail(ctx, email); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return a.users.UpdatePassword(ctx, email, string(hash))
}

func localIdentity(record *UserRecord) *oauth2.Identity {
	return &oauth2.Identity{
		ExternalID:    strconv.FormatInt(record.ID, 10),
		Provider:      ProviderLocal,
		Name:          record.Name,
		Email:         record.Email,
		Picture:       record.Picture,
		EmailVerified: record.Verified,
	}
}
