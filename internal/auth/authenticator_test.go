package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"talkheal/pkg/oauth2"
)

// MockUserStore is a mock implementation of UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateLocal(ctx context.Context, name, email, passwordHash string) (*UserRecord, error) {
	args := m.Called(ctx, name, email, passwordHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*UserRecord), args.Error(1)
}

func (m *MockUserStore) GetLocalByEmail(ctx context.Context, email string) (*UserRecord, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*UserRecord), args.Error(1)
}

func (m *MockUserStore) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	args := m.Called(ctx, email, passwordHash)
	return args.Error(0)
}

func (m *MockUserStore) UpsertOAuth(ctx context.Context, identity oauth2.Identity) (*UserRecord, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*UserRecord), args.Error(1)
}

const strongPassword = "Sunflower#42"

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestRegisterThenAuthenticate(t *testing.T) {
	store := new(MockUserStore)
	a := NewAuthenticator(store)
	ctx := context.Background()

	var storedHash string
	store.On("CreateLocal", mock.Anything, "Alice", "a@x.com", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			storedHash = args.String(3)
		}).
		Return(&UserRecord{ID: 101, Name: "Alice", Email: "a@x.com", Provider: ProviderLocal}, nil)

	identity, err := a.Register(ctx, "Alice", "a@x.com", strongPassword)
	require.NoError(t, err)
	assert.Equal(t, "101", identity.ExternalID)
	assert.Equal(t, ProviderLocal, identity.Provider)
	assert.Equal(t, "a@x.com", identity.Email)
	assert.NotEqual(t, strongPassword, storedHash, "plaintext must never reach storage")

	store.On("GetLocalByEmail", mock.Anything, "a@x.com").
		Return(&UserRecord{ID: 101, Name: "Alice", Email: "a@x.com", PasswordHash: storedHash, Provider: ProviderLocal}, nil)

	authed, err := a.Authenticate(ctx, "a@x.com", strongPassword)
	require.NoError(t, err)
	assert.Equal(t, "Alice", authed.Name)
	assert.Equal(t, "a@x.com", authed.Email)
}

func TestAuthenticate_SameErrorForUnknownAndWrong(t *testing.T) {
	store := new(MockUserStore)
	a := NewAuthenticator(store)
	ctx := context.Background()

	store.On("GetLocalByEmail", mock.Anything, "a@x.com").
		Return(&UserRecord{ID: 1, Email: "a@x.com", PasswordHash: hashOf(t, "right"), Provider: ProviderLocal}, nil)
	store.On("GetLocalByEmail", mock.Anything, "nonexistent@x.com").
		Return(nil, ErrUserNotFound)

	_, errWrong := a.Authenticate(ctx, "a@x.com", "wrong")
	_, errUnknown := a.Authenticate(ctx, "nonexistent@x.com", "anything")

	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.Equal(t, errWrong, errUnknown, "both failures must be indistinguishable")
}

func TestAuthenticate_OAuthOnlyAccountRejected(t *testing.T) {
	store := new(MockUserStore)
	a := NewAuthenticator(store)

	// OAuth-created rows have no password hash and never pass credential login.
	store.On("GetLocalByEmail", mock.Anything, "oauth@x.com").
		Return(&UserRecord{ID: 2, Email: "oauth@x.com", PasswordHash: "", Provider: ProviderLocal}, nil)

	_, err := a.Authenticate(context.Background(), "oauth@x.com", "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_WeakPasswordRejected(t *testing.T) {
	store := new(MockUserStore)
	a := NewAuthenticator(store)

	_, err := a.Register(context.Background(), "Bob", "b@x.com", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
	store.AssertNotCalled(t, "CreateLocal")
}

func TestRegister_EmailTaken(t *testing.T) {
	store := new(MockUserStore)
	a := NewAuthenticator(store)

	store.On("CreateLocal", mock.Anything, "Bob", "b@x.com", mock.AnythingOfType("string")).
		Return(nil, ErrEmailTaken)

	_, err := a.Register(context.Background(), "Bob", "b@x.com", strongPassword)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestChangePassword(t *testing.T) {
	store := new(MockUserStore)
	a := NewAuthenticator(store)
	ctx := context.Background()

	store.On("GetLocalByEmail", mock.Anything, "a@x.com").
		Return(&UserRecord{ID: 1, Email: "a@x.com", PasswordHash: hashOf(t, strongPassword), Provider: ProviderLocal}, nil)
	store.On("UpdatePassword", mock.Anything, "a@x.com", mock.AnythingOfType("string")).
		Return(nil)

	err := a.ChangePassword(ctx, "a@x.com", strongPassword, "NewLeaf!77")
	require.NoError(t, err)
	store.AssertCalled(t, "UpdatePassword", mock.Anything, "a@x.com", mock.AnythingOfType("string"))
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	store := new(MockUserStore)
	a := NewAuthenticator(store)

	store.On("GetLocalByEmail", mock.Anything, "a@x.com").
		Return(&UserRecord{ID: 1, Email: "a@x.com", PasswordHash: hashOf(t, strongPassword), Provider: ProviderLocal}, nil)

	err := a.ChangePassword(context.Background(), "a@x.com", "wrong", "NewLeaf!77")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	store.AssertNotCalled(t, "UpdatePassword")
}

func TestResetPassword(t *testing.T) {
	store := new(MockUserStore)
	a := NewAuthenticator(store)
	ctx := context.Background()

	store.On("GetLocalByEmail", mock.Anything, "a@x.com").
		Return(&UserRecord{ID: 1, Email: "a@x.com", PasswordHash: hashOf(t, strongPassword), Provider: ProviderLocal}, nil)

	var newHash string
	store.On("UpdatePassword", mock.Anything, "a@x.com", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			newHash = args.String(2)
		}).
		Return(nil)

	require.NoError(t, a.ResetPassword(ctx, "a@x.com", "NewLeaf!77"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte("NewLeaf!77")))
}

func TestResetPassword_UnknownEmail(t *testing.T) {
	store := new(MockUserStore)
	a := NewAuthenticator(store)

	store.On("GetLocalByEmail", mock.Anything, "ghost@x.com").
		Return(nil, ErrUserNotFound)

	err := a.ResetPassword(context.Background(), "ghost@x.com", "NewLeaf!77")
	assert.ErrorIs(t, err, ErrUserNotFound)
	store.AssertNotCalled(t, "UpdatePassword")
}

func TestResetPassword_WeakPasswordRejected(t *testing.T) {
	store := new(MockUserStore)
	a := NewAuthenticator(store)

	err := a.ResetPassword(context.Background(), "a@x.com", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
	store.AssertNotCalled(t, "GetLocalByEmail")
}
