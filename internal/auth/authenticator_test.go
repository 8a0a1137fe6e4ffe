package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aquanet/apiserver/internal/store"
	"github.com/aquanet/apiserver/types"
)

func aliceWithPassword(t *testing.T, h *PasswordHasher, pw string) types.User {
	t.Helper()
	digest, err := h.Hash(pw)
	require.NoError(t, err)
	return types.User{ID: 1, Username: "alice", IsActive: true, Role: types.RoleUser, PasswordHash: digest}
}

func TestAuthenticator_Success(t *testing.T) {
	ctx := context.Background()
	h := testHasher()
	alice := aliceWithPassword(t, h, "pw1")

	users := new(MockCredentialStore)
	users.On("GetByUsername", ctx, "alice").Return(alice, nil)

	got, err := NewAuthenticator(users, h).Authenticate(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, alice, got)
	users.AssertExpectations(t)
}

func TestAuthenticator_EnumerationSafe(t *testing.T) {
	ctx := context.Background()
	h := testHasher()
	alice := aliceWithPassword(t, h, "pw1")

	users := new(MockCredentialStore)
	users.On("GetByUsername", ctx, "alice").Return(alice, nil)
	users.On("GetByUsername", ctx, "ghost").Return(types.User{}, store.ErrNotFound)
	a := NewAuthenticator(users, h)

	_, wrongPassword := a.Authenticate(ctx, "alice", "nope")
	_, unknownUser := a.Authenticate(ctx, "ghost", "nope")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	assert.Equal(t, "incorrect username or password", unknownUser.Error())
}

func TestAuthenticator_StoreFailure(t *testing.T) {
	ctx := context.Background()
	users := new(MockCredentialStore)
	users.On("GetByUsername", ctx, "alice").Return(types.User{}, errors.New("connection refused"))

	_, err := NewAuthenticator(users, testHasher()).Authenticate(ctx, "alice", "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticator_Throttle(t *testing.T) {
	ctx := context.Background()
	h := testHasher()
	alice := aliceWithPassword(t, h, "pw1")

	users := new(MockCredentialStore)
	users.On("GetByUsername", mock.Anything, "alice").Return(alice, nil)
	users.On("GetByUsername", mock.Anything, "ghost").Return(types.User{}, store.ErrNotFound)

	attempts := NewMemoryAttemptStore()
	a := NewAuthenticator(users, h).WithThrottle(NewLoginThrottle(attempts, 3, time.Minute))

	for range 2 {
		_, err := a.Authenticate(ctx, "alice", "bad")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := a.Authenticate(ctx, "alice", "pw1")
	require.NoError(t, err, "success before the limit resets the counter")

	for range 3 {
		_, err := a.Authenticate(ctx, "alice", "bad")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err = a.Authenticate(ctx, "alice", "pw1")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	for range 3 {
		_, _ = a.Authenticate(ctx, "ghost", "bad")
	}
	_, err = a.Authenticate(ctx, "ghost", "bad")
	assert.ErrorIs(t, err, ErrTooManyAttempts, "unknown usernames are throttled the same way")
}

func TestAuthenticator_ThrottlePerClientAddress(t *testing.T) {
	ctx := context.Background()
	h := testHasher()
	alice := aliceWithPassword(t, h, "pw1")

	users := new(MockCredentialStore)
	users.On("GetByUsername", mock.Anything, "alice").Return(alice, nil)

	a := NewAuthenticator(users, h).WithThrottle(NewLoginThrottle(NewMemoryAttemptStore(), 2, time.Minute))
	attacker := WithClientAddr(ctx, "203.0.113.9")
	owner := WithClientAddr(ctx, "198.51.100.4")

	for range 2 {
		_, err := a.Authenticate(attacker, "alice", "guess")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := a.Authenticate(attacker, "alice", "pw1")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	got, err := a.Authenticate(owner, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
}

func TestMemoryAttemptStore_Window(t *testing.T) {
	ctx := context.Background()
	now := t0
	m := NewMemoryAttemptStore()
	m.now = func() time.Time { return now }

	n, err := m.RecordFailure(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, _ = m.RecordFailure(ctx, "k", time.Minute)
	assert.Equal(t, 2, n)

	now = t0.Add(time.Minute)
	n, _ = m.Failures(ctx, "k")
	assert.Zero(t, n)

	_, _ = m.RecordFailure(ctx, "k", time.Minute)
	require.NoError(t, m.Reset(ctx, "k"))
	n, _ = m.Failures(ctx, "k")
	assert.Zero(t, n)
}
