package oauth2

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateManager(t *testing.T, ttl time.Duration) *StateManager {
	t.Helper()
	m := NewStateManager(ttl)
	t.Cleanup(m.Close)
	return m
}

func loadState(t *testing.T, m *StateManager, state string) *stateEntry {
	t.Helper()
	v, ok := m.entries.Load(state)
	require.True(t, ok)
	return v.(*stateEntry)
}

func expireState(t *testing.T, m *StateManager, state string) {
	t.Helper()
	entry := loadState(t, m, state)
	entry.mu.Lock()
	entry.expiresAt = time.Now().Add(-time.Second)
	entry.mu.Unlock()
}

func TestStateManager_ConsumeExactlyOnce(t *testing.T) {
	m := newTestStateManager(t, 10*time.Minute)

	state, nonce, err := m.Issue(ProviderGoogle)
	require.NoError(t, err)
	assert.NotEmpty(t, state)
	assert.NotEmpty(t, nonce)

	got, err := m.ValidateAndConsume(state, ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, nonce, got)

	_, err = m.ValidateAndConsume(state, ProviderGoogle)
	assert.ErrorIs(t, err, ErrStateAlreadyConsumed)
}

func TestStateManager_UnknownState(t *testing.T) {
	m := newTestStateManager(t, 10*time.Minute)

	_, err := m.ValidateAndConsume("never-issued", ProviderGoogle)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestStateManager_ProviderMismatch(t *testing.T) {
	m := newTestStateManager(t, 10*time.Minute)

	state, _, err := m.Issue(ProviderGoogle)
	require.NoError(t, err)

	_, err = m.ValidateAndConsume(state, ProviderGithub)
	assert.ErrorIs(t, err, ErrStateProviderMismatch)
}

func TestStateManager_Expired(t *testing.T) {
	m := newTestStateManager(t, 10*time.Minute)

	state, _, err := m.Issue(ProviderGithub)
	require.NoError(t, err)

	expireState(t, m, state)

	_, err = m.ValidateAndConsume(state, ProviderGithub)
	assert.ErrorIs(t, err, ErrStateExpired)
}

func TestStateManager_ConcurrentConsumption(t *testing.T) {
	m := newTestStateManager(t, 10*time.Minute)

	state, _, err := m.Issue(ProviderGithub)
	require.NoError(t, err)

	const callers = 32
	var wg sync.WaitGroup
	successes := make(chan struct{}, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.ValidateAndConsume(state, ProviderGithub); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	assert.Equal(t, 1, count, "exactly one caller may consume a state token")
}

func TestStateManager_SweepRemovesExpired(t *testing.T) {
	m := newTestStateManager(t, 10*time.Minute)

	state, _, err := m.Issue(ProviderGoogle)
	require.NoError(t, err)

	expireState(t, m, state)

	m.removeExpired()

	_, exists := m.entries.Load(state)
	assert.False(t, exists)
}

func TestStateManager_UnrelatedStatesDoNotContend(t *testing.T) {
	m := newTestStateManager(t, 10*time.Minute)

	blocked, _, err := m.Issue(ProviderGoogle)
	require.NoError(t, err)
	other, _, err := m.Issue(ProviderGithub)
	require.NoError(t, err)

	// Hold one entry's lock; consuming a different state must not wait
	// behind it.
	entry := loadState(t, m, blocked)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := m.ValidateAndConsume(other, ProviderGithub)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumption of an unrelated state blocked behind another entry's lock")
	}
}
