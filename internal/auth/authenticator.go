package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/aquanet/apiserver/internal/store"
	"github.com/aquanet/apiserver/types"
)

// CredentialStore looks users up by exact username.
type CredentialStore interface {
	GetByUsername(ctx context.Context, username string) (types.User, error)
}

// Authenticator verifies a username/password pair.
type Authenticator struct {
	users    CredentialStore
	hasher   *PasswordHasher
	throttle *LoginThrottle
}

func NewAuthenticator(users CredentialStore, hasher *PasswordHasher) *Authenticator {
	return &Authenticator{users: users, hasher: hasher}
}

// WithThrottle enables failed-login lockout.
func (a *Authenticator) WithThrottle(t *LoginThrottle) *Authenticator {
	a.throttle = t
	return a
}

// Authenticate returns the matching user. Unknown usernames and wrong
// passwords both yield ErrInvalidCredentials and count against the throttle.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	const op = "auth.Authenticator.Authenticate"

	if err := a.throttle.Check(ctx, username); err != nil {
		return types.User{}, err
	}

	user, err := a.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if err != nil {
		a.hasher.burn(password)
		return types.User{}, a.fail(ctx, username)
	}
	if !a.hasher.Verify(password, user.PasswordHash) {
		return types.User{}, a.fail(ctx, username)
	}

	if err := a.throttle.Succeed(ctx, username); err != nil {
		return types.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (a *Authenticator) fail(ctx context.Context, username string) error {
	if err := a.throttle.Fail(ctx, username); err != nil {
		return fmt.Errorf("auth.Authenticator.Authenticate: %w", err)
	}
	return ErrInvalidCredentials
}
