package auth

import (
	"errors"
	"sync"
	"time"

	"talkheal/pkg/oauth2"
)

// ErrInvalidResetToken covers unknown, expired and already-used reset
// tokens alike, so a caller probing the endpoint learns nothing about
// which tokens ever existed.
var ErrInvalidResetToken = errors.New("invalid or expired reset token")

// ResetTokenManager issues single-use password reset tokens bound to an
// email address. Tokens expire after the manager TTL and are deleted on
// consumption, so one emailed link authorizes exactly one reset.
//
// Entries carry their own mutex, so concurrent resets contend only when
// they present the same token.
type ResetTokenManager struct {
	entries sync.Map // token -> *resetEntry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

type resetEntry struct {
	mu        sync.Mutex
	email     string
	expiresAt time.Time
	consumed  bool
}

func NewResetTokenManager(ttl time.Duration) *ResetTokenManager {
	m := &ResetTokenManager{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go m.sweepRoutine()
	return m
}

// Issue generates a reset token for email. The caller is responsible for
// delivering it over a channel the account owner controls.
func (m *ResetTokenManager) Issue(email string) (string, error) {
	token, err := oauth2.GenerateRandomString(32)
	if err != nil {
		return "", err
	}

	m.entries.Store(token, &resetEntry{
		email:     email,
		expiresAt: time.Now().Add(m.ttl),
	})
	return token, nil
}

// Consume validates a reset token and retires it in the same critical
// section, returning the email it was issued for. Every failure mode
// reports the same error.
func (m *ResetTokenManager) Consume(token string) (string, error) {
	v, exists := m.entries.Load(token)
	if !exists {
		return "", ErrInvalidResetToken
	}
	entry := v.(*resetEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.consumed || time.Now().After(entry.expiresAt) {
		m.entries.Delete(token)
		return "", ErrInvalidResetToken
	}

	entry.consumed = true
	m.entries.Delete(token)
	return entry.email, nil
}

// Close stops the background sweep.
func (m *ResetTokenManager) Close() {
	m.once.Do(func() {
		close(m.done)
	})
}

func (m *ResetTokenManager) sweepRoutine() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.removeExpired()
		case <-m.done:
			return
		}
	}
}

func (m *ResetTokenManager) removeExpired() {
	now := time.Now()
	m.entries.Range(func(token, v any) bool {
		entry := v.(*resetEntry)
		entry.mu.Lock()
		expired := now.After(entry.expiresAt)
		entry.mu.Unlock()
		if expired {
			m.entries.Delete(token)
		}
		return true
	})
}
