package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"talkheal/pkg/cache"
	"talkheal/pkg/oauth2"
)

const redisKeyPrefix = "talkheal:session:"

// RedisStore persists sessions through the cache layer so they survive
// process restarts. The cache TTL mirrors the sliding window; the absolute
// lifetime cap is enforced from the stored CreatedAt on every read.
//
// Refreshes for one token are serialized with a per-token lock so two tabs
// hitting the same session cannot interleave the read-modify-write; tokens
// never contend with each other.
type RedisStore struct {
	cache cache.Cache
	cfg   Config
	locks keyedMutex
}

func NewRedisStore(c cache.Cache, cfg Config) *RedisStore {
	return &RedisStore{cache: c, cfg: cfg}
}

func (s *RedisStore) Create(ctx context.Context, identity oauth2.Identity, guest bool) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		Token:      token,
		Identity:   identity,
		Guest:      guest,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  s.cfg.expiry(now, now),
	}

	if err := s.put(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	unlock := s.locks.lock(token)
	defer unlock()

	raw, err := s.cache.Get(ctx, redisKeyPrefix+token)
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	now := time.Now()
	if now.After(session.ExpiresAt) {
		_ = s.cache.Del(ctx, redisKeyPrefix+token)
		return nil, ErrSessionExpired
	}

	session.LastSeenAt = now
	session.ExpiresAt = s.cfg.expiry(session.CreatedAt, now)

	if err := s.put(ctx, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *RedisStore) Invalidate(ctx context.Context, token string) error {
	unlock := s.locks.lock(token)
	defer unlock()
	return s.cache.Del(ctx, redisKeyPrefix+token)
}

func (s *RedisStore) Close() {}

func (s *RedisStore) put(ctx context.Context, session *Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return ErrSessionExpired
	}
	if err := s.cache.Set(ctx, redisKeyPrefix+session.Token, string(raw), ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// keyedMutex hands out one mutex per in-flight key. Entries are reference
// counted and dropped once the last holder unlocks.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, exists := k.locks[key]
	if !exists {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
