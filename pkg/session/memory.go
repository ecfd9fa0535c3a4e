package session

import (
	"context"
	"sync"
	"time"

	"talkheal/pkg/oauth2"
)

// MemoryStore keeps sessions in process memory. Each session carries its
// own mutex, so concurrent requests contend only when they present the
// same token; nothing network-bound happens inside a critical section.
type MemoryStore struct {
	sessions sync.Map // token -> *memSession
	cfg      Config
	done     chan struct{}
	once     sync.Once
}

type memSession struct {
	mu   sync.Mutex
	data Session
}

func NewMemoryStore(cfg Config) *MemoryStore {
	s := &MemoryStore{
		cfg:  cfg,
		done: make(chan struct{}),
	}
	go s.sweepRoutine()
	return s
}

func (s *MemoryStore) Create(ctx context.Context, identity oauth2.Identity, guest bool) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := Session{
		Token:      token,
		Identity:   identity,
		Guest:      guest,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  s.cfg.expiry(now, now),
	}

	s.sessions.Store(token, &memSession{data: session})
	return &session, nil
}

func (s *MemoryStore) Get(ctx context.Context, token string) (*Session, error) {
	v, exists := s.sessions.Load(token)
	if !exists {
		return nil, ErrSessionNotFound
	}
	entry := v.(*memSession)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	if now.After(entry.data.ExpiresAt) {
		s.sessions.Delete(token)
		return nil, ErrSessionExpired
	}

	entry.data.LastSeenAt = now
	entry.data.ExpiresAt = s.cfg.expiry(entry.data.CreatedAt, now)

	copied := entry.data
	return &copied, nil
}

// Invalidate removes the session. Removing an unknown token is a no-op,
// so logout is idempotent.
func (s *MemoryStore) Invalidate(ctx context.Context, token string) error {
	s.sessions.Delete(token)
	return nil
}

func (s *MemoryStore) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

func (s *MemoryStore) sweepRoutine() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) removeExpired() {
	now := time.Now()
	s.sessions.Range(func(token, v any) bool {
		entry := v.(*memSession)
		entry.mu.Lock()
		expired := now.After(entry.data.ExpiresAt)
		entry.mu.Unlock()
		if expired {
			s.sessions.Delete(token)
		}
		return true
	})
}
