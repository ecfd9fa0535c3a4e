package oauth2

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrStateNotFound         = errors.New("state not found")
	ErrStateExpired          = errors.New("state expired")
	ErrStateProviderMismatch = errors.New("state issued for another provider")
	ErrStateAlreadyConsumed  = errors.New("state already consumed")
)

// StateManager issues and validates single-use anti-CSRF state tokens.
// Every callback must present a state previously issued by this process,
// bound to the same provider, unexpired and never used before.
//
// Entries carry their own mutex, so concurrent callbacks contend only
// when they present the same state value.
type StateManager struct {
	entries sync.Map // state -> *stateEntry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

type stateEntry struct {
	mu        sync.Mutex
	provider  string
	nonce     string
	expiresAt time.Time
	consumed  bool
}

func NewStateManager(ttl time.Duration) *StateManager {
	m := &StateManager{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go m.sweepRoutine()
	return m
}

// Issue generates a state token bound to provider, plus an OIDC nonce
// stored alongside it. The entry expires after the manager TTL.
func (m *StateManager) Issue(provider string) (state string, nonce string, err error) {
	state, err = GenerateRandomString(32)
	if err != nil {
		return "", "", err
	}
	nonce, err = GenerateRandomString(32)
	if err != nil {
		return "", "", err
	}

	m.entries.Store(state, &stateEntry{
		provider:  provider,
		nonce:     nonce,
		expiresAt: time.Now().Add(m.ttl),
	})
	return state, nonce, nil
}

// ValidateAndConsume checks a callback state and marks it consumed under
// that entry's lock, so two concurrent callbacks with the same value
// cannot both succeed. Consumed entries are kept until their TTL so a
// replay is reported as ErrStateAlreadyConsumed rather than not-found.
func (m *StateManager) ValidateAndConsume(state string, provider string) (string, error) {
	v, exists := m.entries.Load(state)
	if !exists {
		return "", ErrStateNotFound
	}
	entry := v.(*stateEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if time.Now().After(entry.expiresAt) {
		m.entries.Delete(state)
		return "", ErrStateExpired
	}
	if entry.consumed {
		return "", ErrStateAlreadyConsumed
	}
	if entry.provider != provider {
		return "", ErrStateProviderMismatch
	}

	entry.consumed = true
	return entry.nonce, nil
}

// Close stops the background sweep.
func (m *StateManager) Close() {
	m.once.Do(func() {
		close(m.done)
	})
}

func (m *StateManager) sweepRoutine() {
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

func (m *StateManager) removeExpired() {
	now := time.Now()
	m.entries.Range(func(state, v any) bool {
		entry := v.(*stateEntry)
		entry.mu.Lock()
		expired := now.After(entry.expiresAt)
		entry.mu.Unlock()
		if expired {
			m.entries.Delete(state)
		}
		return true
	})
}
