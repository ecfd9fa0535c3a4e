package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"talkheal/pkg/db"
	"talkheal/pkg/idgen"
	"talkheal/pkg/oauth2"
)

// ProviderLocal marks accounts created through email/password registration.
const ProviderLocal = "local"

var ErrUserNotFound = errors.New("user not found")

const pgUniqueViolation = "23505"

// UserRecord is one row of the users table. PasswordHash is empty for
// OAuth-created accounts, which can never log in with credentials.
type UserRecord struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Provider     string
	ProviderID   string
	Picture      string
	Verified     bool
	UpdatedAt    time.Time
}

// UserStore is the persistence boundary for credential and OAuth profiles.
type UserStore interface {
	CreateLocal(ctx context.Context, name, email, passwordHash string) (*UserRecord, error)
	GetLocalByEmail(ctx context.Context, email string) (*UserRecord, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	UpsertOAuth(ctx context.Context, identity oauth2.Identity) (*UserRecord, error)
}

// CredentialStore implements UserStore on Postgres.
type CredentialStore struct {
	db    db.SQLExecutor
	idgen idgen.Generator
}

func NewCredentialStore(executor db.SQLExecutor, generator idgen.Generator) *CredentialStore {
	return &CredentialStore{
		db:    executor,
		idgen: generator,
	}
}

func (s *CredentialStore) CreateLocal(ctx context.Context, name, email, passwordHash string) (*UserRecord, error) {
	record := &UserRecord{
		ID:           s.idgen.GenerateID(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Provider:     ProviderLocal,
		UpdatedAt:    time.Now(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, email, password_hash, provider, provider_id, picture, verified, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULL, '', false, $6)`,
		record.ID, record.Name, record.Email, record.PasswordHash, record.Provider, record.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return record, nil
}

func (s *CredentialStore) GetLocalByEmail(ctx context.Context, email string) (*UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, email, COALESCE(password_hash, ''), provider, COALESCE(provider_id, ''), picture, verified, updated_at
		 FROM users WHERE email = $1 AND provider = $2`,
		email, ProviderLocal,
	)

	var record UserRecord
	err := row.Scan(
		&record.ID, &record.Name, &record.Email, &record.PasswordHash,
		&record.Provider, &record.ProviderID, &record.Picture, &record.Verified, &record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &record, nil
}

func (s *CredentialStore) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE email = $3 AND provider = $4`,
		passwordHash, time.Now(), email, ProviderLocal,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpsertOAuth records the profile behind an OAuth login, keyed by
// (provider, provider_id). The same email on two providers stays two rows;
// accounts are never linked implicitly.
func (s *CredentialStore) UpsertOAuth(ctx context.Context, identity oauth2.Identity) (*UserRecord, error) {
	record := &UserRecord{
		ID:         s.idgen.GenerateID(),
		Name:       identity.Name,
		Email:      identity.Email,
		Provider:   identity.Provider,
		ProviderID: identity.ExternalID,
		Picture:    identity.Picture,
		Verified:   identity.EmailVerified,
		UpdatedAt:  time.Now(),
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO users (id, display_name, email, password_hash, provider, provider_id, picture, verified, updated_at)
		 VALUES ($1, $2, $3, NULL, $4, $5, $6, $7, $8)
		 ON CONFLICT (provider, provider_id) WHERE provider_id IS NOT NULL DO UPDATE
		 SET display_name = EXCLUDED.display_name,
		     email = EXCLUDED.email,
		     picture = EXCLUDED.picture,
		     verified = EXCLUDED.verified,
		     updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		record.ID, record.Name, record.Email, record.Provider, record.ProviderID,
		record.Picture, record.Verified, record.UpdatedAt,
	)
	if err := row.Scan(&record.ID); err != nil {
		return nil, fmt.Errorf("failed to upsert oauth user: %w", err)
	}
	return record, nil
}
